package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"biblequiz/backend/models"
)

// ErrStoreUnavailable reports a storage transport fault (network/backend).
// The lifecycle engine catches it and falls back or reports status; it is
// never surfaced to a caller as a crash.
var ErrStoreUnavailable = errors.New("attempt store unavailable")

// Filter selects attempts for deletion. A nil BookID matches everything,
// a BookID without a chapter matches all chapters of that book.
type Filter struct {
	BookID        *string
	ChapterNumber *int
}

func (f Filter) Matches(bookID string, chapterNumber int) bool {
	if f.BookID == nil {
		return true
	}
	if *f.BookID != bookID {
		return false
	}
	if f.ChapterNumber == nil {
		return true
	}
	return *f.ChapterNumber == chapterNumber
}

// Key is the attempt grouping key used by both stores and the persisted
// local format.
func Key(bookID string, chapterNumber int) string {
	return fmt.Sprintf("%s_%d", bookID, chapterNumber)
}

// LocalStore is the process-local durable store holding attempts made while
// anonymous. Plain inserts assume the caller arranged unique ids; dedup by id
// happens in the engine during migration.
type LocalStore interface {
	Insert(ctx context.Context, attempt models.QuizAttempt) error
	ListByKey(ctx context.Context, bookID string, chapterNumber int) ([]models.QuizAttempt, error)
	LatestByKey(ctx context.Context, bookID string, chapterNumber int) (*models.QuizAttempt, error)
	DeleteByFilter(ctx context.Context, f Filter) error
	All(ctx context.Context) (map[string][]models.QuizAttempt, error)
}

// RemoteStore is the account-backed store. Every operation is scoped to the
// caller's own user id; there is no cross-user write path.
type RemoteStore interface {
	Insert(ctx context.Context, userID uint, attempt models.QuizAttempt) error
	ListByKey(ctx context.Context, userID uint, bookID string, chapterNumber int) ([]models.QuizAttempt, error)
	LatestByKey(ctx context.Context, userID uint, bookID string, chapterNumber int) (*models.QuizAttempt, error)
	DeleteByFilter(ctx context.Context, userID uint, f Filter) error
	ExistsByID(ctx context.Context, id string) (bool, error)
	UpsertSyncMarker(ctx context.Context, userID uint, syncedAt time.Time) error
}

// LatestOf picks the attempt with the greatest timestamp. Equal timestamps are
// broken by the lexicographically greater id: ids embed the creation time and
// are appended in insertion order, so the greater id is the later insertion.
func LatestOf(attempts []models.QuizAttempt) *models.QuizAttempt {
	var latest *models.QuizAttempt
	for i := range attempts {
		a := &attempts[i]
		if latest == nil || a.Timestamp > latest.Timestamp ||
			(a.Timestamp == latest.Timestamp && a.ID > latest.ID) {
			latest = a
		}
	}
	if latest == nil {
		return nil
	}
	copied := *latest
	return &copied
}
