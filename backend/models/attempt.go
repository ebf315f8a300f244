package models

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// QuizAttemptRow is the account-backed copy of a QuizAttempt. Results are kept
// as a JSON object mapping questionId to the selected option, same as the
// original schema, so rows survive round-trips with older data.
type QuizAttemptRow struct {
	ID             string `gorm:"primaryKey"`
	UserID         uint   `gorm:"index"`
	BookID         string `gorm:"index:idx_book_chapter"`
	Book           string
	ChapterNumber  int `gorm:"index:idx_book_chapter"`
	TotalQuestions int
	CorrectAnswers int
	ResultsJSON    string `gorm:"column:results;type:text"`
	Timestamp      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SyncStatus tracks when a user's local history was last merged into the
// account store. One row per user.
type SyncStatus struct {
	UserID       uint `gorm:"primaryKey"`
	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func EncodeResults(results []QuizResult) (string, error) {
	obj := make(map[string]*int, len(results))
	for _, r := range results {
		obj[strconv.Itoa(r.QuestionID)] = r.UserAnswer
	}
	buf, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// DecodeResults parses the stored results object. JSON objects carry no order,
// so entries are sorted by question id; callers must not rely on any other order.
func DecodeResults(raw string) ([]QuizResult, error) {
	obj := map[string]*int{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, err
		}
	}
	results := make([]QuizResult, 0, len(obj))
	for key, answer := range obj {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		results = append(results, QuizResult{QuestionID: id, UserAnswer: answer})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].QuestionID < results[j].QuestionID })
	return results, nil
}

func (row *QuizAttemptRow) ToAttempt() QuizAttempt {
	results, err := DecodeResults(row.ResultsJSON)
	if err != nil {
		results = []QuizResult{}
	}
	return QuizAttempt{
		ID:             row.ID,
		BookID:         row.BookID,
		Book:           row.Book,
		ChapterNumber:  row.ChapterNumber,
		TotalQuestions: row.TotalQuestions,
		CorrectAnswers: row.CorrectAnswers,
		Results:        results,
		Timestamp:      row.Timestamp,
	}
}
