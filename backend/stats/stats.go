// Package stats derives summary statistics from attempt records and quiz
// content. Everything here is a pure function over already-fetched data;
// nothing is persisted.
package stats

import (
	"math"
	"sort"
	"time"

	"biblequiz/backend/models"
)

// CorrectCount counts results whose selected option matches the current
// content's correct option, joined by question id. Results referencing a
// question that no longer exists are excluded, not counted as wrong.
func CorrectCount(attempt models.QuizAttempt, data models.QuizData) int {
	byID := make(map[int]models.QuizQuestion, len(data.Questions))
	for _, q := range data.Questions {
		byID[q.ID] = q
	}

	count := 0
	for _, r := range attempt.Results {
		question, ok := byID[r.QuestionID]
		if !ok || r.UserAnswer == nil {
			continue
		}
		if *r.UserAnswer == question.CorrectAnswer {
			count++
		}
	}
	return count
}

// AccuracyPercent is the rounded percentage of correct answers over the
// attempt's stored question total. The stored total is historical ground
// truth even if content changed since; a zero total yields 0.
func AccuracyPercent(attempt models.QuizAttempt, data models.QuizData) int {
	if attempt.TotalQuestions == 0 {
		return 0
	}
	correct := CorrectCount(attempt, data)
	return int(math.Round(float64(correct) * 100 / float64(attempt.TotalQuestions)))
}

type Improvement struct {
	Diff      int  `json:"diff"`
	Improving bool `json:"improving"`
	Attempts  int  `json:"attempts"`
}

// ComputeImprovement compares the first and the most recent attempt by
// accuracy. Returns nil when there is no signal (fewer than two attempts).
// Callers should suppress any improved/declined display when Diff is 0.
func ComputeImprovement(attempts []models.QuizAttempt, data models.QuizData) *Improvement {
	if len(attempts) < 2 {
		return nil
	}

	sorted := make([]models.QuizAttempt, len(attempts))
	copy(sorted, attempts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Timestamp != sorted[j].Timestamp {
			return sorted[i].Timestamp < sorted[j].Timestamp
		}
		return sorted[i].ID < sorted[j].ID
	})

	first := AccuracyPercent(sorted[0], data)
	last := AccuracyPercent(sorted[len(sorted)-1], data)
	diff := last - first
	return &Improvement{Diff: diff, Improving: diff > 0, Attempts: len(sorted)}
}

// Streak counts consecutive calendar days with at least one attempt, ending
// today or yesterday. Timestamps are attempt creation times in millis;
// same-day attempts count once. A most recent attempt older than yesterday
// breaks the streak to 0.
func Streak(timestamps []int64, now time.Time) int {
	if len(timestamps) == 0 {
		return 0
	}

	loc := now.Location()
	seen := map[time.Time]bool{}
	days := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		t := time.UnixMilli(ts).In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	yesterday := today.AddDate(0, 0, -1)

	if !days[0].Equal(today) && !days[0].Equal(yesterday) {
		return 0
	}

	streak := 1
	current := days[0]
	for _, day := range days[1:] {
		if day.Equal(current.AddDate(0, 0, -1)) {
			streak++
			current = day
		} else {
			break
		}
	}
	return streak
}
