package engine

import (
	"context"
	"errors"
	"log"
	"sync"

	"biblequiz/backend/storage"
)

// Manager hands out one Engine per client session. A session whose identity
// later contradicts its engine (login as a different user, or logout) gets a
// fresh engine; identity never flips inside one instance.
type Manager struct {
	local  storage.LocalStore
	remote storage.RemoteStore
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*Engine
}

func NewManager(local storage.LocalStore, remote storage.RemoteStore, logger *log.Logger) *Manager {
	return &Manager{
		local:    local,
		remote:   remote,
		logger:   logger,
		sessions: map[string]*Engine{},
	}
}

// Resolve returns the session's engine with the request's identity applied.
// Conflicting identity replaces the engine with a freshly resolved one.
func (m *Manager) Resolve(ctx context.Context, sessionID string, userID uint, identified bool) (*Engine, error) {
	m.mu.Lock()
	eng, ok := m.sessions[sessionID]
	if !ok {
		eng = New(m.local, m.remote, m.logger)
		m.sessions[sessionID] = eng
	}
	m.mu.Unlock()

	err := m.apply(ctx, eng, userID, identified)
	if !errors.Is(err, ErrIdentityConflict) {
		return eng, err
	}

	// Logout or user switch: fresh engine for the same session id.
	m.mu.Lock()
	eng = New(m.local, m.remote, m.logger)
	m.sessions[sessionID] = eng
	m.mu.Unlock()

	return eng, m.apply(ctx, eng, userID, identified)
}

func (m *Manager) apply(ctx context.Context, eng *Engine, userID uint, identified bool) error {
	if identified {
		return eng.ResolveIdentified(ctx, userID)
	}
	return eng.ResolveAnonymous()
}

// Drop forgets a session's engine, for explicit logout.
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}
