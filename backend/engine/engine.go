// Package engine owns the attempt lifecycle: it is the single place that
// decides whether the local or the account-backed store is authoritative for
// a session, and the only component that migrates local history into the
// account store on login.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"biblequiz/backend/models"
	"biblequiz/backend/storage"
)

// SyncState is the observable migration status surfaced to the UI.
type SyncState string

const (
	SyncIdle    SyncState = "idle"
	SyncSyncing SyncState = "syncing"
	SyncSuccess SyncState = "success"
	SyncError   SyncState = "error"
)

var (
	// ErrIdentityUnresolved reports an operation attempted before the
	// session's identity settled and the wait was cancelled.
	ErrIdentityUnresolved = errors.New("identity not resolved")

	// ErrIdentityConflict reports a resolution that contradicts the state
	// the engine already settled into. The engine never transitions out of
	// an identified state; the manager starts a fresh instance instead.
	ErrIdentityConflict = errors.New("identity conflicts with resolved session")

	// ErrPartialMigration reports that some local records failed to reach
	// the account store. Local history is kept so the remainder retries.
	ErrPartialMigration = errors.New("some attempts failed to sync")
)

type identityState int

const (
	identityUnknown identityState = iota
	identityAnonymous
	identityIdentified
)

// Engine is one session's attempt lifecycle engine. Operations that need to
// pick a store block until identity resolves; they never guess. All
// operations, including migration, serialize on one mutex so a fresh write
// can never race the migration scan.
type Engine struct {
	local  storage.LocalStore
	remote storage.RemoteStore
	logger *log.Logger

	mu       sync.Mutex
	state    identityState
	userID   uint
	resolved chan struct{}

	syncState  SyncState
	syncSubs   map[int]chan SyncState
	changeSubs map[string]map[int]chan struct{}
	nextSubID  int

	now func() time.Time
}

func New(local storage.LocalStore, remote storage.RemoteStore, logger *log.Logger) *Engine {
	return &Engine{
		local:      local,
		remote:     remote,
		logger:     logger,
		resolved:   make(chan struct{}),
		syncState:  SyncIdle,
		syncSubs:   map[int]chan SyncState{},
		changeSubs: map[string]map[int]chan struct{}{},
		now:        time.Now,
	}
}

// ResolveAnonymous settles the session as having no user.
func (e *Engine) ResolveAnonymous() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case identityUnknown:
		e.state = identityAnonymous
		close(e.resolved)
		return nil
	case identityAnonymous:
		return nil
	default:
		return ErrIdentityConflict
	}
}

// ResolveIdentified settles the session on a concrete user. An anonymous
// session with local history migrates it into the account store; a migration
// failure does not block the transition, it only surfaces as sync status.
func (e *Engine) ResolveIdentified(ctx context.Context, userID uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case identityUnknown:
		e.state = identityIdentified
		e.userID = userID
		close(e.resolved)
		return nil
	case identityAnonymous:
		e.state = identityIdentified
		e.userID = userID
		if err := e.migrateLocked(ctx); err != nil {
			e.logger.Printf("sync after login failed: %v", err)
		}
		return nil
	default:
		if e.userID != userID {
			return ErrIdentityConflict
		}
		return nil
	}
}

// CurrentUser reports the resolved user, or false while anonymous/unknown.
func (e *Engine) CurrentUser() (uint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID, e.state == identityIdentified
}

func (e *Engine) awaitIdentity(ctx context.Context) error {
	select {
	case <-e.resolved:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrIdentityUnresolved, ctx.Err())
	}
}

// RecordAttempt builds a new attempt record and writes it to the store the
// current identity selects. When the account store rejects the write, the
// record is kept in the local store instead so a completed quiz is never
// lost; the caller still gets a valid record and only the sync status
// reflects the degradation.
func (e *Engine) RecordAttempt(ctx context.Context, bookID, book string, chapterNumber, totalQuestions int, correctAnswers int, results []models.QuizResult) (models.QuizAttempt, error) {
	if err := e.awaitIdentity(ctx); err != nil {
		return models.QuizAttempt{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	timestamp := e.now().UnixMilli()
	attempt := models.QuizAttempt{
		ID:             fmt.Sprintf("%s_%d", storage.Key(bookID, chapterNumber), timestamp),
		BookID:         bookID,
		Book:           book,
		ChapterNumber:  chapterNumber,
		TotalQuestions: totalQuestions,
		CorrectAnswers: correctAnswers,
		Results:        results,
		Timestamp:      timestamp,
	}

	if e.state == identityIdentified {
		err := e.remote.Insert(ctx, e.userID, attempt)
		if err == nil {
			e.notifyChangeLocked(storage.Key(bookID, chapterNumber))
			return attempt, nil
		}
		e.logger.Printf("remote insert failed, keeping attempt locally: %v", err)
		e.setSyncStateLocked(SyncError)
		if err := e.local.Insert(ctx, attempt); err != nil {
			return models.QuizAttempt{}, err
		}
		e.notifyChangeLocked(storage.Key(bookID, chapterNumber))
		return attempt, nil
	}

	if err := e.local.Insert(ctx, attempt); err != nil {
		return models.QuizAttempt{}, err
	}
	e.notifyChangeLocked(storage.Key(bookID, chapterNumber))
	return attempt, nil
}

// ListAttempts reads from the store the current identity selects. Stores are
// never merged at read time: after migration, local is authoritative-empty.
func (e *Engine) ListAttempts(ctx context.Context, bookID string, chapterNumber int) ([]models.QuizAttempt, error) {
	if err := e.awaitIdentity(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == identityIdentified {
		return e.remote.ListByKey(ctx, e.userID, bookID, chapterNumber)
	}
	return e.local.ListByKey(ctx, bookID, chapterNumber)
}

// LatestAttempt returns the newest attempt for the key, or nil when there is
// none. Ties on timestamp go to the greater id (later insertion).
func (e *Engine) LatestAttempt(ctx context.Context, bookID string, chapterNumber int) (*models.QuizAttempt, error) {
	if err := e.awaitIdentity(ctx); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == identityIdentified {
		return e.remote.LatestByKey(ctx, e.userID, bookID, chapterNumber)
	}
	return e.local.LatestByKey(ctx, bookID, chapterNumber)
}

// ClearHistory deletes matching attempts: account store first when
// identified, then always the local store as well, since local data may be a
// stale leftover from before migration.
func (e *Engine) ClearHistory(ctx context.Context, f storage.Filter) error {
	if err := e.awaitIdentity(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var remoteErr error
	if e.state == identityIdentified {
		remoteErr = e.remote.DeleteByFilter(ctx, e.userID, f)
	}
	localErr := e.local.DeleteByFilter(ctx, f)

	e.notifyAllChangesLocked()
	return errors.Join(remoteErr, localErr)
}

// Sync re-runs the local-to-account migration, retrying anything a partial
// failure left behind. A no-op for anonymous sessions.
func (e *Engine) Sync(ctx context.Context) error {
	if err := e.awaitIdentity(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != identityIdentified {
		return nil
	}
	return e.migrateLocked(ctx)
}

// migrateLocked copies every local attempt into the account store. The merge
// is idempotent by id: records already present remotely are skipped, never
// overwritten. Only a fully clean pass clears the local store and stamps the
// sync marker; on partial failure local records stay for the next retry.
func (e *Engine) migrateLocked(ctx context.Context) error {
	all, err := e.local.All(ctx)
	if err != nil {
		e.setSyncStateLocked(SyncError)
		return err
	}
	if len(all) == 0 {
		e.setSyncStateLocked(SyncSuccess)
		return nil
	}

	e.setSyncStateLocked(SyncSyncing)

	failures := 0
	for _, attempts := range all {
		for _, attempt := range attempts {
			exists, err := e.remote.ExistsByID(ctx, attempt.ID)
			if err != nil {
				e.logger.Printf("sync: existence check failed for %s: %v", attempt.ID, err)
				failures++
				continue
			}
			if exists {
				continue
			}
			if err := e.remote.Insert(ctx, e.userID, attempt); err != nil {
				e.logger.Printf("sync: insert failed for %s: %v", attempt.ID, err)
				failures++
			}
		}
	}

	if failures > 0 {
		e.setSyncStateLocked(SyncError)
		return fmt.Errorf("%w: %d record(s)", ErrPartialMigration, failures)
	}

	if err := e.local.DeleteByFilter(ctx, storage.Filter{}); err != nil {
		e.setSyncStateLocked(SyncError)
		return err
	}
	if err := e.remote.UpsertSyncMarker(ctx, e.userID, e.now()); err != nil {
		e.logger.Printf("sync: marker update failed: %v", err)
	}
	e.setSyncStateLocked(SyncSuccess)
	e.notifyAllChangesLocked()
	return nil
}

// SyncStatus returns the current migration status.
func (e *Engine) SyncStatus() SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncState
}

// SubscribeSync delivers sync status transitions. Slow receivers miss
// intermediate states, never the latest one.
func (e *Engine) SubscribeSync() (<-chan SyncState, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSubID
	e.nextSubID++
	ch := make(chan SyncState, 1)
	e.syncSubs[id] = ch

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.syncSubs, id)
	}
}

// SubscribeChanges signals whenever the attempt list for a book/chapter key
// may have changed, so queries can re-fetch instead of polling.
func (e *Engine) SubscribeChanges(bookID string, chapterNumber int) (<-chan struct{}, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := storage.Key(bookID, chapterNumber)
	id := e.nextSubID
	e.nextSubID++
	ch := make(chan struct{}, 1)
	if e.changeSubs[key] == nil {
		e.changeSubs[key] = map[int]chan struct{}{}
	}
	e.changeSubs[key][id] = ch

	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.changeSubs[key], id)
	}
}

func (e *Engine) setSyncStateLocked(state SyncState) {
	e.syncState = state
	for _, ch := range e.syncSubs {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

func (e *Engine) notifyChangeLocked(key string) {
	for _, ch := range e.changeSubs[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (e *Engine) notifyAllChangesLocked() {
	for key := range e.changeSubs {
		e.notifyChangeLocked(key)
	}
}
