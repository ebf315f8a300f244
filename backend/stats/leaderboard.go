package stats

import (
	"sort"

	"biblequiz/backend/models"
)

const (
	minLeaderboardLimit     = 1
	maxLeaderboardLimit     = 100
	defaultLeaderboardLimit = 10
)

// UserAttempt is one attempt annotated with its owner, as fetched for a
// single book/chapter across all users.
type UserAttempt struct {
	UserID    uint
	UserName  string
	UserImage string
	Attempt   models.QuizAttempt
}

// LeaderboardEntry is one user's best-accuracy attempt for a chapter.
type LeaderboardEntry struct {
	UserID          uint   `json:"userId"`
	UserName        string `json:"userName"`
	UserImage       string `json:"userImage,omitempty"`
	CorrectAnswers  int    `json:"correctAnswers"`
	TotalQuestions  int    `json:"totalQuestions"`
	Accuracy        int    `json:"accuracy"`
	AttemptCount    int    `json:"attemptCount"`
	LastAttemptTime int64  `json:"lastAttemptTime"`
}

type leaderboardRow struct {
	entry        LeaderboardEntry
	bestAccuracy float64
	bestTime     int64
}

// Leaderboard ranks one row per user: that user's best accuracy, tie-broken
// within a user by the earliest attempt achieving it. Rows sort by accuracy
// descending, then by that best-attempt time ascending, limited to limit
// (clamped to 1..100; 0 means the default of 10).
func Leaderboard(rows []UserAttempt, limit int) []LeaderboardEntry {
	if limit == 0 {
		limit = defaultLeaderboardLimit
	}
	if limit < minLeaderboardLimit {
		limit = minLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	byUser := map[uint]*leaderboardRow{}
	for _, ua := range rows {
		a := ua.Attempt
		accuracy := 0.0
		if a.TotalQuestions > 0 {
			accuracy = float64(a.CorrectAnswers) * 100 / float64(a.TotalQuestions)
		}

		row, ok := byUser[ua.UserID]
		if !ok {
			name := ua.UserName
			if name == "" {
				name = "Anonymous User"
			}
			byUser[ua.UserID] = &leaderboardRow{
				entry: LeaderboardEntry{
					UserID:          ua.UserID,
					UserName:        name,
					UserImage:       ua.UserImage,
					CorrectAnswers:  a.CorrectAnswers,
					TotalQuestions:  a.TotalQuestions,
					Accuracy:        roundPercent(accuracy),
					AttemptCount:    1,
					LastAttemptTime: a.Timestamp,
				},
				bestAccuracy: accuracy,
				bestTime:     a.Timestamp,
			}
			continue
		}

		row.entry.AttemptCount++
		if a.Timestamp > row.entry.LastAttemptTime {
			row.entry.LastAttemptTime = a.Timestamp
		}
		if accuracy > row.bestAccuracy ||
			(accuracy == row.bestAccuracy && a.Timestamp < row.bestTime) {
			row.bestAccuracy = accuracy
			row.bestTime = a.Timestamp
			row.entry.CorrectAnswers = a.CorrectAnswers
			row.entry.TotalQuestions = a.TotalQuestions
			row.entry.Accuracy = roundPercent(accuracy)
		}
	}

	ranked := make([]*leaderboardRow, 0, len(byUser))
	for _, row := range byUser {
		ranked = append(ranked, row)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].bestAccuracy != ranked[j].bestAccuracy {
			return ranked[i].bestAccuracy > ranked[j].bestAccuracy
		}
		if ranked[i].bestTime != ranked[j].bestTime {
			return ranked[i].bestTime < ranked[j].bestTime
		}
		return ranked[i].entry.UserID < ranked[j].entry.UserID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	entries := make([]LeaderboardEntry, len(ranked))
	for i, row := range ranked {
		entries[i] = row.entry
	}
	return entries
}

func roundPercent(v float64) int {
	return int(v + 0.5)
}
