package models

// QuizQuestion is owned by the content files; the backend never constructs one.
type QuizQuestion struct {
	ID            int      `json:"id"`
	Verse         int      `json:"verse"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

type QuizData struct {
	Book        string         `json:"book"`
	Chapter     int            `json:"chapter"`
	Questions   []QuizQuestion `json:"questions"`
	Description string         `json:"description,omitempty"`
}

// QuizResult is one answer. UserAnswer is nil while the question is unanswered.
// Correctness is never stored here; it is recomputed against current content.
type QuizResult struct {
	QuestionID int  `json:"questionId"`
	UserAnswer *int `json:"userAnswer"`
}

// QuizAttempt is one completed quiz run. The JSON tags are the persisted local
// format and must not change: existing user history files depend on them.
type QuizAttempt struct {
	ID             string       `json:"id"`
	BookID         string       `json:"bookId"`
	Book           string       `json:"book"`
	ChapterNumber  int          `json:"chapterNumber"`
	TotalQuestions int          `json:"totalQuestions"`
	CorrectAnswers int          `json:"correctAnswers"`
	Results        []QuizResult `json:"results"`
	Timestamp      int64        `json:"timestamp"`
}

type BookInfo struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Chapters []ChapterInfo `json:"chapters"`
}

type ChapterInfo struct {
	Number        int    `json:"number"`
	Description   string `json:"description,omitempty"`
	QuestionCount int    `json:"questionCount"`
}
