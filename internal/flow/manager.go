package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/ports"
)

// ErrSessionNotFound reports an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// Manager owns the live flows for one process. It is created in main and
// passed down; there is no package-level session state.
type Manager struct {
	mu     sync.Mutex
	flows  map[string]*Flow
	oracle ports.Oracle
	cards  ports.CardStore
	logger *slog.Logger
}

// NewManager creates an empty registry.
func NewManager(oracle ports.Oracle, cards ports.CardStore, logger *slog.Logger) *Manager {
	return &Manager{
		flows:  make(map[string]*Flow),
		oracle: oracle,
		cards:  cards,
		logger: logger,
	}
}

// Start creates and registers a new flow, returning it with its session id.
func (m *Manager) Start(ctx context.Context) (*Flow, error) {
	f := New(m.oracle, m.cards, m.logger)
	if err := f.Start(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.flows[f.Snapshot().SessionID] = f
	m.mu.Unlock()
	return f, nil
}

// Get returns the flow for a session id.
func (m *Manager) Get(id string) (*Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flows[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return f, nil
}

// End discards a session.
func (m *Manager) End(id string) {
	m.mu.Lock()
	delete(m.flows, id)
	m.mu.Unlock()
}
