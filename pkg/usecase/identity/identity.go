package identity

import (
	"context"
	"sync"

	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/repository"
	"github.com/m-mizutani/sahayak/pkg/utils/logging"
)

// Manager hands out the session identifier of a client profile. The
// identifier is generated once and reused for as long as the store keeps it.
// If the store fails, the Manager degrades to an in-memory identifier that
// stays fixed for the lifetime of the Manager.
type Manager struct {
	store repository.SessionStore
	newID func() model.SessionID

	mu       sync.Mutex
	pinned   model.SessionID
	degraded bool
}

// Option is a functional option for Manager
type Option func(*Manager)

// WithGenerator replaces the identifier generator
func WithGenerator(fn func() model.SessionID) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// New creates a Manager backed by store
func New(store repository.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		newID: model.NewSessionID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreate returns the persisted session identifier, creating and
// persisting one on first use. It never fails.
func (m *Manager) GetOrCreate(ctx context.Context) model.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pinned != "" {
		return m.pinned
	}

	logger := logging.From(ctx)

	id, found, err := m.store.GetSessionID(ctx)
	if err != nil {
		m.pinned = m.newID()
		m.degraded = true
		logger.Warn("session storage unavailable, using in-memory session id",
			"session_id", m.pinned, "error", err)
		return m.pinned
	}
	if found {
		m.pinned = id
		logger.Debug("session id restored", "session_id", id)
		return id
	}

	id = m.newID()
	if err := m.store.PutSessionID(ctx, id); err != nil {
		m.degraded = true
		logger.Warn("failed to persist session id, keeping it in memory",
			"session_id", id, "error", err)
	} else {
		logger.Info("session id created", "session_id", id)
	}

	m.pinned = id
	return id
}

// Degraded reports whether the current identifier lives only in memory
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// Clear forgets the session identifier. The next GetOrCreate starts a new session.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pinned = ""
	m.degraded = false

	return m.store.DeleteSessionID(ctx)
}
