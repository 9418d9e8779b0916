package voice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/domain"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/ports"
)

// ErrVoiceSessionNotFound reports an unknown voice session id.
var ErrVoiceSessionNotFound = errors.New("voice session not found")

// ChannelFactory builds a fresh realtime channel for each session.
type ChannelFactory func() ports.RealtimeChannel

// Manager owns the live voice sessions for one process. Like the text
// surface's manager it is created in main and passed down.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Orchestrator

	channels ChannelFactory
	tokens   ports.TokenIssuer
	cards    ports.CardStore
	rng      domain.RNG
	logger   *slog.Logger

	nudgeDelay  time.Duration
	drawTimeout time.Duration
}

// NewManager creates an empty voice session registry.
func NewManager(channels ChannelFactory, tokens ports.TokenIssuer, cards ports.CardStore, rng domain.RNG, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Orchestrator),
		channels: channels,
		tokens:   tokens,
		cards:    cards,
		rng:      rng,
		logger:   logger,
	}
}

// Start connects a new voice session and returns its id.
func (m *Manager) Start(ctx context.Context) (string, *Orchestrator, error) {
	o := New(Config{
		Channel:     m.channels(),
		Tokens:      m.tokens,
		Cards:       m.cards,
		RNG:         m.rng,
		Logger:      m.logger,
		NudgeDelay:  m.nudgeDelay,
		DrawTimeout: m.drawTimeout,
	})
	if err := o.Start(ctx); err != nil {
		return "", nil, err
	}
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = o
	m.mu.Unlock()
	return id, o, nil
}

// Get returns the orchestrator for a session id.
func (m *Manager) Get(id string) (*Orchestrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.sessions[id]
	if !ok {
		return nil, ErrVoiceSessionNotFound
	}
	return o, nil
}

// End closes and discards a voice session. Closing rejects any pending draw.
func (m *Manager) End(id string) {
	m.mu.Lock()
	o, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		o.Close()
	}
}
