package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeResultsObjectForm(t *testing.T) {
	answer := 2
	raw, err := EncodeResults([]QuizResult{
		{QuestionID: 1, UserAnswer: &answer},
		{QuestionID: 2, UserAnswer: nil},
	})
	require.NoError(t, err)
	// Stored as an object keyed by question id, nulls for unanswered.
	assert.JSONEq(t, `{"1":2,"2":null}`, raw)
}

func TestDecodeResults(t *testing.T) {
	results, err := DecodeResults(`{"3":1,"1":0,"2":null}`)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, results[0].QuestionID)
	assert.Equal(t, 0, *results[0].UserAnswer)
	assert.Nil(t, results[1].UserAnswer)
	assert.Equal(t, 3, results[2].QuestionID)
}

func TestDecodeResultsEmpty(t *testing.T) {
	results, err := DecodeResults("")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRowToAttemptTolerantOfBadResults(t *testing.T) {
	row := QuizAttemptRow{
		ID:             "genesis_1_100",
		BookID:         "genesis",
		ChapterNumber:  1,
		TotalQuestions: 3,
		ResultsJSON:    "{broken",
		Timestamp:      100,
	}
	attempt := row.ToAttempt()
	assert.Equal(t, "genesis_1_100", attempt.ID)
	assert.Empty(t, attempt.Results)
}
