package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"biblequiz/backend/config"
	"biblequiz/backend/content"
	"biblequiz/backend/engine"
	"biblequiz/backend/models"
	"biblequiz/backend/quizrun"
	"biblequiz/backend/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableRemote stands in for the account store. Anonymous sessions must
// never touch it; any call is a test failure.
type unreachableRemote struct{}

func (unreachableRemote) Insert(ctx context.Context, userID uint, attempt models.QuizAttempt) error {
	return storage.ErrStoreUnavailable
}
func (unreachableRemote) ListByKey(ctx context.Context, userID uint, bookID string, chapterNumber int) ([]models.QuizAttempt, error) {
	return nil, storage.ErrStoreUnavailable
}
func (unreachableRemote) LatestByKey(ctx context.Context, userID uint, bookID string, chapterNumber int) (*models.QuizAttempt, error) {
	return nil, storage.ErrStoreUnavailable
}
func (unreachableRemote) DeleteByFilter(ctx context.Context, userID uint, f storage.Filter) error {
	return storage.ErrStoreUnavailable
}
func (unreachableRemote) ExistsByID(ctx context.Context, id string) (bool, error) {
	return false, storage.ErrStoreUnavailable
}
func (unreachableRemote) UpsertSyncMarker(ctx context.Context, userID uint, syncedAt time.Time) error {
	return storage.ErrStoreUnavailable
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	dataDir := t.TempDir()
	chapterDir := filepath.Join(dataDir, "en", "genesis")
	require.NoError(t, os.MkdirAll(chapterDir, 0o755))
	chapter := `{
		"book": "Genesis",
		"chapter": 1,
		"questions": [
			{"id": 1, "question": "q1", "options": ["a", "b"], "correctAnswer": 0},
			{"id": 2, "question": "q2", "options": ["a", "b"], "correctAnswer": 1}
		]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(chapterDir, "1.json"), []byte(chapter), 0o644))

	cfg := &config.Config{DefaultLocale: "en", DataDir: dataDir}
	logger := log.New(io.Discard, "", 0)
	loader := content.NewLoader(dataDir, "en")
	local := storage.NewFileStore(filepath.Join(t.TempDir(), "history.json"))
	manager := engine.NewManager(local, unreachableRemote{}, logger)
	registry := quizrun.NewRegistry()

	app := fiber.New()
	quizController := NewQuizController(loader, cfg, logger)
	app.Get("/api/books", quizController.GetBooks)
	app.Get("/api/books/:bookId/chapters/:chapter", quizController.GetChapter)

	attemptsController := NewAttemptsController(manager, cfg, logger)
	app.Post("/api/attempts", attemptsController.RecordAttempt)
	app.Get("/api/attempts", attemptsController.GetAttempts)
	app.Get("/api/attempts/latest", attemptsController.GetLatestAttempt)
	app.Delete("/api/attempts", attemptsController.ClearHistory)

	runController := NewRunController(manager, registry, loader, cfg, logger)
	app.Post("/api/runs", runController.StartRun)
	app.Get("/api/runs/:id", runController.GetRun)
	app.Post("/api/runs/:id/start", runController.Start)
	app.Post("/api/runs/:id/answers", runController.SubmitAnswer)
	app.Post("/api/runs/:id/finish", runController.Finish)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, sessionID string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var envelope map[string]json.RawMessage
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &envelope))
	}
	return resp, envelope
}

func TestGetBooks(t *testing.T) {
	app := newTestApp(t)

	resp, envelope := doJSON(t, app, "GET", "/api/books", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var books []models.BookInfo
	require.NoError(t, json.Unmarshal(envelope["data"], &books))
	require.Len(t, books, 1)
	assert.Equal(t, "genesis", books[0].ID)
}

func TestGetChapterMissingYieldsPlaceholder(t *testing.T) {
	app := newTestApp(t)

	resp, envelope := doJSON(t, app, "GET", "/api/books/genesis/chapters/9", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var data models.QuizData
	require.NoError(t, json.Unmarshal(envelope["data"], &data))
	assert.Equal(t, "Error Loading Data", data.Book)
	assert.Empty(t, data.Questions)
}

func TestAnonymousAttemptRoundTrip(t *testing.T) {
	app := newTestApp(t)
	session := "test-session"

	answer := 0
	resp, envelope := doJSON(t, app, "POST", "/api/attempts", session, fiber.Map{
		"bookId":         "genesis",
		"book":           "Genesis",
		"chapterNumber":  1,
		"totalQuestions": 2,
		"correctAnswers": 1,
		"results":        []models.QuizResult{{QuestionID: 1, UserAnswer: &answer}},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, session, resp.Header.Get(SessionHeader))

	var recorded models.QuizAttempt
	require.NoError(t, json.Unmarshal(envelope["data"], &recorded))
	assert.NotEmpty(t, recorded.ID)

	resp, envelope = doJSON(t, app, "GET", "/api/attempts?bookId=genesis&chapterNumber=1", session, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var attempts []models.QuizAttempt
	require.NoError(t, json.Unmarshal(envelope["data"], &attempts))
	require.Len(t, attempts, 1)
	assert.Equal(t, recorded.ID, attempts[0].ID)

	resp, _ = doJSON(t, app, "DELETE", "/api/attempts?bookId=genesis&chapterNumber=1", session, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, envelope = doJSON(t, app, "GET", "/api/attempts?bookId=genesis&chapterNumber=1", session, nil)
	attempts = nil
	require.NoError(t, json.Unmarshal(envelope["data"], &attempts))
	assert.Empty(t, attempts)
}

func TestAttemptValidation(t *testing.T) {
	app := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/api/attempts", "s", fiber.Map{"bookId": ""})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, "GET", "/api/attempts", "s", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRunLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	session := "run-session"

	resp, envelope := doJSON(t, app, "POST", "/api/runs", session, fiber.Map{
		"bookId":        "genesis",
		"chapterNumber": 1,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var snap quizrun.Snapshot
	require.NoError(t, json.Unmarshal(envelope["data"], &snap))
	assert.Equal(t, quizrun.StateStart, snap.State)
	runPath := "/api/runs/" + snap.ID

	resp, _ = doJSON(t, app, "POST", runPath+"/start", session, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	for _, answer := range []fiber.Map{
		{"questionId": 1, "selectedOption": 0},
		{"questionId": 2, "selectedOption": 0},
	} {
		resp, _ = doJSON(t, app, "POST", runPath+"/answers", session, answer)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, envelope = doJSON(t, app, "POST", runPath+"/finish", session, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(envelope["data"], &snap))
	assert.Equal(t, quizrun.StateResult, snap.State)
	require.NotNil(t, snap.Summary)
	assert.Equal(t, 1, snap.Summary.CorrectAnswers)

	// Finishing recorded the attempt through the lifecycle engine.
	_, envelope = doJSON(t, app, "GET", "/api/attempts/latest?bookId=genesis&chapterNumber=1", session, nil)
	var latest models.QuizAttempt
	require.NoError(t, json.Unmarshal(envelope["data"], &latest))
	assert.Equal(t, 1, latest.CorrectAnswers)
	assert.Equal(t, 2, latest.TotalQuestions)
}

func TestRunBelongsToItsSession(t *testing.T) {
	app := newTestApp(t)

	_, envelope := doJSON(t, app, "POST", "/api/runs", "owner", fiber.Map{
		"bookId":        "genesis",
		"chapterNumber": 1,
	})
	var snap quizrun.Snapshot
	require.NoError(t, json.Unmarshal(envelope["data"], &snap))

	resp, _ := doJSON(t, app, "GET", "/api/runs/"+snap.ID, "intruder", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestStartRunUnknownChapter(t *testing.T) {
	app := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/api/runs", "s", fiber.Map{
		"bookId":        "judges",
		"chapterNumber": 3,
	})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
