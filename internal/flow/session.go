package flow

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/domain"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/ports"
)

// MessageKind distinguishes message payloads in the session log.
type MessageKind string

const (
	MessageText    MessageKind = "text"
	MessageReading MessageKind = "reading"
	MessageNotice  MessageKind = "notice"
)

// Message is one entry in a session's ordered log.
type Message struct {
	Role    string         `json:"role"`
	Kind    MessageKind    `json:"kind"`
	Content string         `json:"content"`
	Reading *ports.Reading `json:"reading,omitempty"`
}

// Session owns the data for one reading's lifetime: created at flow start,
// discarded at flow end.
type Session struct {
	ID        string
	Seed      string
	Intention string
	Topic     string
	Timeframe string
	CreatedAt time.Time

	Messages []Message
	Chosen   map[int]string // position index -> card id

	Spread *domain.Spread
	Deck   *domain.ShuffledDeck

	handle ports.Handle
}

// newSession creates a session with a fresh seed derived from the creation
// timestamp. The seed fixes the shuffle and every reversal for the session.
func newSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Seed:      strconv.FormatInt(now.UnixMilli(), 10),
		CreatedAt: now,
		Chosen:    make(map[int]string),
	}
}

// Snapshot is a point-in-time copy of a session for rendering. It shares no
// mutable state with the live session, so callers may read it freely while
// the flow keeps running.
type Snapshot struct {
	SessionID string
	Phase     Phase
	Seed      string
	Intention string
	Topic     string
	Timeframe string

	Messages []Message
	Chosen   map[int]string
	Spread   *domain.Spread
	Deck     []string
	Drawn    []domain.DrawnCard
}

func (s *Session) append(msg Message) {
	s.Messages = append(s.Messages, msg)
}

func (s *Session) appendUser(text string) {
	s.append(Message{Role: "user", Kind: MessageText, Content: text})
}

func (s *Session) appendAssistant(text string) {
	s.append(Message{Role: "assistant", Kind: MessageText, Content: text})
}

func (s *Session) appendNotice(text string) {
	s.append(Message{Role: "assistant", Kind: MessageNotice, Content: text})
}
