// Package quizrun drives one quiz run from start screen to recorded result.
package quizrun

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"biblequiz/backend/models"
	"biblequiz/backend/stats"
)

type State string

const (
	StateStart     State = "start"
	StateAnswering State = "answering"
	StateReviewing State = "reviewing"
	StateResult    State = "result"
	StateHistory   State = "history"
)

const (
	// Auto-advance waits longer after a wrong answer so the correction can
	// be read. The correct delay must stay shorter than the incorrect one.
	DefaultCorrectDelay   = 1 * time.Second
	DefaultIncorrectDelay = 2 * time.Second
)

var (
	ErrNotAnswering     = errors.New("run is not in the answering state")
	ErrUnknownQuestion  = errors.New("question is not part of this chapter")
	ErrUnansweredRemain = errors.New("unanswered questions remain")
)

// Recorder is the slice of the lifecycle engine a run needs at completion.
type Recorder interface {
	RecordAttempt(ctx context.Context, bookID, book string, chapterNumber, totalQuestions int, correctAnswers int, results []models.QuizResult) (models.QuizAttempt, error)
}

type Summary struct {
	TotalQuestions   int                 `json:"totalQuestions"`
	CorrectAnswers   int                 `json:"correctAnswers"`
	IncorrectAnswers int                 `json:"incorrectAnswers"`
	Accuracy         float64             `json:"accuracy"`
	Results          []models.QuizResult `json:"results"`
}

// Run is one user's pass through a chapter quiz. The first answer to a
// question is final, navigation cancels any pending auto-advance, and a run
// records its attempt exactly once no matter how often the result state is
// re-entered.
type Run struct {
	ID        string
	SessionID string
	BookID    string

	mu             sync.Mutex
	data           models.QuizData
	recorder       Recorder
	state          State
	current        int
	answers        map[int]int
	recorded       bool
	summary        *Summary
	timer          *time.Timer
	timerGen       int
	correctDelay   time.Duration
	incorrectDelay time.Duration
}

// NewRun builds a run for loaded chapter data. Runs with prior history open
// on the history screen, mirroring the start-screen decision in the app.
func NewRun(id, sessionID, bookID string, data models.QuizData, recorder Recorder, hasHistory bool) *Run {
	state := StateStart
	if hasHistory {
		state = StateHistory
	}
	return &Run{
		ID:             id,
		SessionID:      sessionID,
		BookID:         bookID,
		data:           data,
		recorder:       recorder,
		state:          state,
		answers:        map[int]int{},
		correctDelay:   DefaultCorrectDelay,
		incorrectDelay: DefaultIncorrectDelay,
	}
}

// SetAdvanceDelays overrides the auto-advance timing, keeping the
// correct-before-incorrect ordering the caller's responsibility.
func (r *Run) SetAdvanceDelays(correct, incorrect time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.correctDelay = correct
	r.incorrectDelay = incorrect
}

// Start begins answering from the first question with a clean slate.
func (r *Run) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelTimerLocked()
	r.state = StateAnswering
	r.current = 0
	r.answers = map[int]int{}
	r.recorded = false
	r.summary = nil
}

// SubmitAnswer records the selected option for a question. Re-answering is a
// no-op: the first answer is final. A non-final question schedules an
// auto-advance whose delay depends on correctness.
func (r *Run) SubmitAnswer(questionID, selectedOption int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateAnswering {
		return ErrNotAnswering
	}
	question, ok := r.questionByID(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if _, answered := r.answers[questionID]; answered {
		return nil
	}
	r.answers[questionID] = selectedOption

	if r.current < len(r.data.Questions)-1 {
		delay := r.incorrectDelay
		if selectedOption == question.CorrectAnswer {
			delay = r.correctDelay
		}
		r.scheduleAdvanceLocked(delay)
	}
	return nil
}

// Next advances manually. At the last question it finishes the run (all
// answered) or finishes the review pass into the result screen.
func (r *Run) Next(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelTimerLocked()
	if r.current < len(r.data.Questions)-1 {
		r.current++
		return nil
	}

	switch r.state {
	case StateAnswering:
		if !r.allAnsweredLocked() {
			return ErrUnansweredRemain
		}
		return r.finishLocked(ctx)
	case StateReviewing:
		return r.finishLocked(ctx)
	default:
		return nil
	}
}

// Previous steps back one question.
func (r *Run) Previous() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelTimerLocked()
	if r.current > 0 {
		r.current--
	}
}

// StartReview replays the questions read-only from the beginning. Only
// allowed once every question has an answer.
func (r *Run) StartReview() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateAnswering || !r.allAnsweredLocked() {
		return ErrUnansweredRemain
	}
	r.cancelTimerLocked()
	r.state = StateReviewing
	r.current = 0
	return nil
}

// Finish closes the run directly from answering, bypassing review. On a run
// already in the result state whose attempt failed to record, Finish retries
// the recording.
func (r *Run) Finish(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateResult && !r.recorded {
		return r.recordLocked(ctx)
	}
	if r.state != StateAnswering && r.state != StateReviewing {
		return ErrNotAnswering
	}
	if !r.allAnsweredLocked() {
		return ErrUnansweredRemain
	}
	r.cancelTimerLocked()
	return r.finishLocked(ctx)
}

// ViewHistory switches to the history screen.
func (r *Run) ViewHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelTimerLocked()
	r.state = StateHistory
}

// Restart returns to the start screen, dropping the finished run's answers.
func (r *Run) Restart() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelTimerLocked()
	r.state = StateStart
	r.current = 0
	r.answers = map[int]int{}
	r.summary = nil
}

func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) CurrentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Run) Summary() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summary == nil {
		return nil
	}
	copied := *r.summary
	return &copied
}

// Snapshot is the JSON view handed to the HTTP layer.
type Snapshot struct {
	ID              string               `json:"id"`
	State           State                `json:"state"`
	BookID          string               `json:"bookId"`
	Book            string               `json:"book"`
	Chapter         int                  `json:"chapter"`
	CurrentQuestion int                  `json:"currentQuestion"`
	TotalQuestions  int                  `json:"totalQuestions"`
	AnsweredCount   int                  `json:"answeredCount"`
	AllAnswered     bool                 `json:"allAnswered"`
	Results         []models.QuizResult  `json:"results"`
	Summary         *Summary             `json:"summary,omitempty"`
	Question        *models.QuizQuestion `json:"question,omitempty"`
}

func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		ID:              r.ID,
		State:           r.state,
		BookID:          r.BookID,
		Book:            r.data.Book,
		Chapter:         r.data.Chapter,
		CurrentQuestion: r.current,
		TotalQuestions:  len(r.data.Questions),
		AnsweredCount:   len(r.answers),
		AllAnswered:     r.allAnsweredLocked(),
		Results:         r.resultsLocked(),
	}
	if r.summary != nil {
		copied := *r.summary
		snap.Summary = &copied
	}
	if (r.state == StateAnswering || r.state == StateReviewing) && r.current < len(r.data.Questions) {
		q := r.data.Questions[r.current]
		snap.Question = &q
	}
	return snap
}

func (r *Run) finishLocked(ctx context.Context) error {
	results := r.resultsLocked()
	attempt := models.QuizAttempt{
		TotalQuestions: len(r.data.Questions),
		Results:        results,
	}
	correct := stats.CorrectCount(attempt, r.data)
	total := len(r.data.Questions)
	accuracy := 0.0
	if total > 0 {
		accuracy = float64(correct) / float64(total)
	}
	r.summary = &Summary{
		TotalQuestions:   total,
		CorrectAnswers:   correct,
		IncorrectAnswers: total - correct,
		Accuracy:         accuracy,
		Results:          results,
	}
	r.state = StateResult
	return r.recordLocked(ctx)
}

// recordLocked records the finished attempt exactly once, even if the result
// state is re-entered via navigation. A failed record leaves the flag unset
// so a later Finish retries it.
func (r *Run) recordLocked(ctx context.Context) error {
	if r.recorded {
		return nil
	}
	_, err := r.recorder.RecordAttempt(ctx, r.BookID, r.data.Book, r.data.Chapter,
		r.summary.TotalQuestions, r.summary.CorrectAnswers, r.summary.Results)
	if err != nil {
		return err
	}
	r.recorded = true
	return nil
}

func (r *Run) resultsLocked() []models.QuizResult {
	results := make([]models.QuizResult, 0, len(r.answers))
	for questionID, answer := range r.answers {
		a := answer
		results = append(results, models.QuizResult{QuestionID: questionID, UserAnswer: &a})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].QuestionID < results[j].QuestionID })
	return results
}

func (r *Run) allAnsweredLocked() bool {
	return len(r.answers) == len(r.data.Questions) && len(r.data.Questions) > 0
}

func (r *Run) questionByID(id int) (models.QuizQuestion, bool) {
	for _, q := range r.data.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return models.QuizQuestion{}, false
}

func (r *Run) scheduleAdvanceLocked(delay time.Duration) {
	r.timerGen++
	gen := r.timerGen
	r.timer = time.AfterFunc(delay, func() {
		r.advance(gen)
	})
}

func (r *Run) advance(gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A manual transition since scheduling makes this timer stale.
	if gen != r.timerGen || r.state != StateAnswering {
		return
	}
	if r.current < len(r.data.Questions)-1 {
		r.current++
	}
}

func (r *Run) cancelTimerLocked() {
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
