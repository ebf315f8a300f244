package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"biblequiz/backend/models"
)

// FileStore is the local attempt store: a single JSON file holding a mapping
// from "bookId_chapterNumber" to attempt lists. The on-disk envelope
// {"state":{"attempts":{...}},"version":0} matches the history files written
// by earlier releases and must be kept readable as-is. Records that omit
// correctAnswers or carry a per-result isCorrect flag are older schema
// variants; the former defaults to 0, the latter is dropped on read.
//
// The file is shared state: concurrent writers outside this process are
// resolved last-write-wins, by design of the local layer.
type FileStore struct {
	mu   sync.Mutex
	path string
}

type persistedState struct {
	State struct {
		Attempts map[string][]models.QuizAttempt `json:"attempts"`
	} `json:"state"`
	Version int `json:"version"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Insert(ctx context.Context, attempt models.QuizAttempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	key := Key(attempt.BookID, attempt.ChapterNumber)
	state.State.Attempts[key] = append(state.State.Attempts[key], attempt)
	return s.save(state)
}

func (s *FileStore) ListByKey(ctx context.Context, bookID string, chapterNumber int) ([]models.QuizAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}
	attempts := state.State.Attempts[Key(bookID, chapterNumber)]
	out := make([]models.QuizAttempt, len(attempts))
	copy(out, attempts)
	return out, nil
}

func (s *FileStore) LatestByKey(ctx context.Context, bookID string, chapterNumber int) (*models.QuizAttempt, error) {
	attempts, err := s.ListByKey(ctx, bookID, chapterNumber)
	if err != nil {
		return nil, err
	}
	return LatestOf(attempts), nil
}

func (s *FileStore) DeleteByFilter(ctx context.Context, f Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}

	switch {
	case f.BookID == nil:
		state.State.Attempts = map[string][]models.QuizAttempt{}
	case f.ChapterNumber == nil:
		for key := range state.State.Attempts {
			if bookOfKey(key) == *f.BookID {
				delete(state.State.Attempts, key)
			}
		}
	default:
		delete(state.State.Attempts, Key(*f.BookID, *f.ChapterNumber))
	}
	return s.save(state)
}

// bookOfKey recovers the book id from a "<bookId>_<chapter>" key. Book ids may
// contain underscores, so the split is on the last one (the chapter number
// never does).
func bookOfKey(key string) string {
	idx := strings.LastIndex(key, "_")
	if idx < 0 {
		return key
	}
	return key[:idx]
}

func (s *FileStore) All(ctx context.Context) (map[string][]models.QuizAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.QuizAttempt, len(state.State.Attempts))
	for key, attempts := range state.State.Attempts {
		copied := make([]models.QuizAttempt, len(attempts))
		copy(copied, attempts)
		out[key] = copied
	}
	return out, nil
}

func (s *FileStore) load() (*persistedState, error) {
	state := &persistedState{}
	state.State.Attempts = map[string][]models.QuizAttempt{}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(raw) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("%w: corrupt history file: %v", ErrStoreUnavailable, err)
	}
	if state.State.Attempts == nil {
		state.State.Attempts = map[string][]models.QuizAttempt{}
	}
	return state, nil
}

func (s *FileStore) save(state *persistedState) error {
	buf, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, buf, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
