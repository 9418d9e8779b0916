// Package flow drives the text surface's reading session: an explicit
// finite-state machine from intent collection through card picking to the
// follow-up loop. One Flow instance serves one session; operations are
// serialized, matching the single logical thread of control per session.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/domain"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/ports"
)

var (
	// ErrWrongPhase rejects an operation outside its phase.
	ErrWrongPhase = errors.New("operation not valid in current phase")
	// ErrNoSession rejects operations before Start.
	ErrNoSession = errors.New("no active session")
)

const (
	spreadFailedNotice        = "The cards are taking a moment to align. Give it another try."
	readingFailedNotice       = "The reading could not come through just now. Try once more."
	intentFailedNotice        = "Something interrupted the connection. Please share your question again."
	clarificationFailedNotice = "That thread slipped away. Feel free to ask again."
)

// maxClarificationCards caps additional draws per clarification.
const maxClarificationCards = 3

// Flow is the reading state machine for one text-surface session.
type Flow struct {
	mu     sync.Mutex
	logger *slog.Logger
	oracle ports.Oracle
	cards  ports.CardStore

	phase   Phase
	session *Session
	catalog domain.Catalog

	drawn     []domain.DrawnCard
	drawCount int

	// Clarification sub-cycle state, live only between a card-requesting
	// clarification response and its processing call.
	clarQuestion  string
	clarPositions []domain.SpreadPosition
	clarDrawn     []domain.DrawnCard

	// Spread generation runs at most once per session. The eager path stores
	// the in-flight result channel; the fallback path consumes it instead of
	// issuing a second call.
	spreadFlight  singleflight.Group
	spreadCh      <-chan singleflight.Result
	spreadStarted bool
}

// New creates an idle flow.
func New(oracle ports.Oracle, cards ports.CardStore, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		logger: logger,
		oracle: oracle,
		cards:  cards,
		phase:  Idle{},
	}
}

// Phase returns the current phase.
func (f *Flow) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Snapshot copies the session view under the flow's lock. Handing out the
// live session pointer would let readers race card picks and message
// appends, so every external read goes through this copy instead.
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := Snapshot{Phase: f.phase}
	s := f.session
	if s == nil {
		return snap
	}
	snap.SessionID = s.ID
	snap.Seed = s.Seed
	snap.Intention = s.Intention
	snap.Topic = s.Topic
	snap.Timeframe = s.Timeframe
	snap.Messages = append([]Message(nil), s.Messages...)
	snap.Chosen = make(map[int]string, len(s.Chosen))
	for pos, id := range s.Chosen {
		snap.Chosen[pos] = id
	}
	if s.Spread != nil {
		sp := domain.Spread{Positions: append([]domain.SpreadPosition(nil), s.Spread.Positions...)}
		snap.Spread = &sp
	}
	if s.Deck != nil {
		snap.Deck = s.Deck.Cards()
	}
	drawn := make([]domain.DrawnCard, 0, len(f.drawn)+len(f.clarDrawn))
	drawn = append(drawn, f.drawn...)
	drawn = append(drawn, f.clarDrawn...)
	snap.Drawn = drawn
	return snap
}

// Start creates a fresh session with a new seed and enters intent collection.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.phase.(Idle); !ok {
		return fmt.Errorf("%w: %s", ErrWrongPhase, f.phase)
	}

	catalog, err := f.cards.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	f.catalog = catalog
	f.session = newSession(time.Now())
	f.setPhase(IntentCollecting{})
	return nil
}

// HandleMessage processes a user message. During intent collection it runs
// the intent assessment; during follow-ups it runs the clarification call.
func (f *Flow) HandleMessage(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session == nil {
		return ErrNoSession
	}

	switch f.phase.(type) {
	case IntentCollecting:
		return f.assessIntent(ctx, text)
	case FollowUps:
		return f.handleFollowUp(ctx, text)
	default:
		return fmt.Errorf("%w: %s", ErrWrongPhase, f.phase)
	}
}

func (f *Flow) assessIntent(ctx context.Context, text string) error {
	s := f.session
	s.appendUser(text)

	res, err := f.oracle.AssessIntent(ctx, text, s.handle)
	if err != nil {
		f.logger.WarnContext(ctx, "intent assessment failed", "session_id", s.ID, "error", err)
		s.appendNotice(intentFailedNotice)
		return nil // stay in intentCollecting
	}
	s.handle = res.Handle

	if !res.Clear {
		s.appendAssistant(res.AssistantMessage)
		return nil
	}

	// Clear intent: advance without surfacing the clarifying exchange, and
	// kick off spread generation and the shuffle so they are likely done
	// before the user reaches card picking.
	s.Intention = res.Summary
	s.Topic = res.Topic
	s.Timeframe = res.Timeframe
	s.Deck = domain.NewShuffledDeck(s.Seed)
	f.startSpreadGeneration(ctx)
	f.setPhase(RitualPreparing{})
	return nil
}

// startSpreadGeneration starts the at-most-once spread call in the
// background. Callers hold f.mu; the goroutine only touches the flight.
func (f *Flow) startSpreadGeneration(ctx context.Context) {
	if f.spreadStarted {
		return
	}
	f.spreadStarted = true
	s := f.session
	bg := context.WithoutCancel(ctx)
	f.spreadCh = f.spreadFlight.DoChan(s.ID, func() (any, error) {
		return f.oracle.GenerateSpread(bg, s.Intention, s.Timeframe)
	})
}

// CompleteRitual advances out of ritual preparation once the user-held
// gesture finishes.
func (f *Flow) CompleteRitual(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.phase.(RitualPreparing); !ok {
		return fmt.Errorf("%w: %s", ErrWrongPhase, f.phase)
	}
	f.setPhase(Shuffling{})
	return nil
}

// FinishShuffle completes the shuffle phase. If the background spread call
// already finished this advances straight to the first pick; otherwise it
// waits for (or issues) the one spread call before advancing.
func (f *Flow) FinishShuffle(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.phase.(Shuffling); !ok {
		return fmt.Errorf("%w: %s", ErrWrongPhase, f.phase)
	}
	s := f.session

	if s.Spread == nil {
		if f.spreadCh == nil {
			f.startSpreadGeneration(ctx)
		}
		select {
		case res := <-f.spreadCh:
			f.spreadCh = nil
			if res.Err != nil {
				f.logger.WarnContext(ctx, "spread generation failed", "session_id", s.ID, "error", res.Err)
				s.appendNotice(spreadFailedNotice)
				f.spreadStarted = false // allow a retry to issue a fresh call
				return nil              // stay in shuffling
			}
			spread := res.Val.(ports.SpreadResult)
			s.handle = spread.Handle
			sp := domain.Spread{Positions: spread.Positions}
			if err := domain.ValidateSpread(sp); err != nil {
				s.appendNotice(spreadFailedNotice)
				f.spreadStarted = false
				return nil
			}
			s.Spread = &sp
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.setPhase(Picking{Position: 0})
	return nil
}

// SelectCard records the user's selection for the position being picked. The
// chosen id leaves the live deck and its orientation is fixed forever from
// (seed, cardID, drawIndex).
func (f *Flow) SelectCard(ctx context.Context, cardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch p := f.phase.(type) {
	case Picking:
		pos := f.session.Spread.Positions[p.Position]
		dc, err := f.fixCard(cardID, p.Position, pos)
		if err != nil {
			return err
		}
		f.session.Chosen[p.Position] = cardID
		f.drawn = append(f.drawn, dc)
		f.setPhase(CardRevealing{CardID: cardID, Position: p.Position})
		return nil
	case ClarificationPicking:
		pos := f.clarPositions[p.Position]
		dc, err := f.fixCard(cardID, p.Position, pos)
		if err != nil {
			return err
		}
		f.clarDrawn = append(f.clarDrawn, dc)
		f.setPhase(ClarificationRevealing{CardID: cardID, Position: p.Position})
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrWrongPhase, f.phase)
	}
}

// fixCard removes cardID from the deck and freezes its drawn form.
func (f *Flow) fixCard(cardID string, position int, pos domain.SpreadPosition) (domain.DrawnCard, error) {
	card, err := f.catalog.Get(cardID)
	if err != nil {
		return domain.DrawnCard{}, err
	}
	if err := f.session.Deck.Draw(cardID); err != nil {
		return domain.DrawnCard{}, err
	}
	dc := domain.DrawnCard{
		CardID:        cardID,
		Name:          card.Name,
		IsReversed:    domain.IsReversed(f.session.Seed, cardID, f.drawCount),
		Position:      position,
		PositionLabel: pos.Label,
		PositionRole:  pos.Role,
	}
	f.drawCount++
	return dc, nil
}

// ConfirmReveal acknowledges the currently revealed card and advances: to
// the next pick, or into reading generation after the last main-spread
// reveal, or into clarification processing after the last clarification
// reveal.
func (f *Flow) ConfirmReveal(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch p := f.phase.(type) {
	case CardRevealing:
		if p.Position+1 < f.session.Spread.Size() {
			f.setPhase(Picking{Position: p.Position + 1})
			return nil
		}
		f.setPhase(WaitingBeforeReading{})
		f.generateReading(ctx)
		return nil
	case ClarificationRevealing:
		if p.Position+1 < len(f.clarPositions) {
			f.setPhase(ClarificationPicking{Position: p.Position + 1})
			return nil
		}
		f.setPhase(ClarificationProcessing{})
		f.processClarification(ctx)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrWrongPhase, f.phase)
	}
}

// RetryReading re-issues the reading call after a failure left the flow in
// waitingBeforeReading.
func (f *Flow) RetryReading(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.phase.(WaitingBeforeReading); !ok {
		return fmt.Errorf("%w: %s", ErrWrongPhase, f.phase)
	}
	f.generateReading(ctx)
	return nil
}

func (f *Flow) generateReading(ctx context.Context) {
	s := f.session

	reading, err := f.oracle.GenerateReading(ctx, s.Intention, f.cardContexts(f.drawn))
	if err != nil {
		f.logger.WarnContext(ctx, "reading generation failed", "session_id", s.ID, "error", err)
		s.appendNotice(readingFailedNotice)
		return // stay in waitingBeforeReading
	}
	s.handle = reading.Handle

	interp := make(map[string]string, len(reading.Cards))
	for _, c := range reading.Cards {
		interp[c.CardID] = c.Interpretation
	}
	for i := range f.drawn {
		if text, ok := interp[f.drawn[i].CardID]; ok {
			f.drawn[i].Interpretation = text
		}
	}

	s.append(Message{Role: "assistant", Kind: MessageReading, Content: reading.Synthesis, Reading: &reading})
	f.setPhase(FollowUps{})
}

func (f *Flow) handleFollowUp(ctx context.Context, text string) error {
	s := f.session
	s.appendUser(text)

	res, err := f.oracle.HandleClarification(ctx, text, nil, s.handle)
	if err != nil {
		f.logger.WarnContext(ctx, "clarification failed", "session_id", s.ID, "error", err)
		s.appendNotice(clarificationFailedNotice)
		return nil // stay in followUps
	}
	s.handle = res.Handle

	if res.IsFinalAnswer || len(res.RequestedPositions) == 0 {
		s.appendAssistant(res.Synthesis)
		return nil
	}

	positions := res.RequestedPositions
	if len(positions) > maxClarificationCards {
		positions = positions[:maxClarificationCards]
	}
	f.clarQuestion = text
	f.clarPositions = positions
	f.clarDrawn = nil
	f.setPhase(ClarificationPicking{Position: 0})
	return nil
}

// processClarification issues the second clarification call with the newly
// drawn cards. Success or failure, the flow returns to followUps so the
// user is never stuck.
func (f *Flow) processClarification(ctx context.Context) {
	s := f.session

	res, err := f.oracle.HandleClarification(ctx, f.clarQuestion, f.cardContexts(f.clarDrawn), s.handle)
	if err != nil {
		f.logger.WarnContext(ctx, "clarification processing failed", "session_id", s.ID, "error", err)
		s.appendNotice(clarificationFailedNotice)
	} else {
		s.handle = res.Handle
		s.appendAssistant(res.Synthesis)
	}

	f.drawn = append(f.drawn, f.clarDrawn...)
	f.clarQuestion = ""
	f.clarPositions = nil
	f.clarDrawn = nil
	f.setPhase(FollowUps{})
}

func (f *Flow) cardContexts(cards []domain.DrawnCard) []ports.CardContext {
	out := make([]ports.CardContext, len(cards))
	for i, dc := range cards {
		cc := ports.CardContext{
			CardID:        dc.CardID,
			Name:          dc.Name,
			Reversed:      dc.IsReversed,
			Position:      dc.Position,
			PositionLabel: dc.PositionLabel,
			PositionRole:  dc.PositionRole,
		}
		if card, err := f.catalog.Get(dc.CardID); err == nil {
			cc.Keywords = card.Keywords
			cc.Meaning = card.Meaning(dc.IsReversed)
		}
		out[i] = cc
	}
	return out
}

func (f *Flow) setPhase(next Phase) {
	f.logger.Debug("phase transition", "from", f.phase.String(), "to", next.String())
	f.phase = next
}
