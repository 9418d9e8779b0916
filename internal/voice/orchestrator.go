// Package voice orchestrates the continuous voice surface: four
// conversational agents with explicit handoff points, driven by an external
// realtime runtime, with UI-gated phase seams going through the tool-call
// bridge.
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/bridge"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/domain"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/draw"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/ports"
)

// defaultNudgeDelay is how long a picking phase may sit idle before the
// orchestrator sends one synthetic reminder line.
const defaultNudgeDelay = 45 * time.Second

// Config wires an Orchestrator's collaborators.
type Config struct {
	Channel ports.RealtimeChannel
	Tokens  ports.TokenIssuer
	Cards   ports.CardStore
	RNG     domain.RNG
	Logger  *slog.Logger

	// NudgeDelay overrides the picking-idle reminder delay when positive.
	NudgeDelay time.Duration
	// DrawTimeout overrides the bridge watchdog when positive.
	DrawTimeout time.Duration
	// SettleDelay overrides the card display settle delay when positive.
	SettleDelay time.Duration
}

// Orchestrator manages one voice reading session.
type Orchestrator struct {
	mu sync.Mutex

	logger  *slog.Logger
	channel ports.RealtimeChannel
	tokens  ports.TokenIssuer
	cards   ports.CardStore
	rng     domain.RNG

	drawBridge *bridge.DrawBridge
	display    *bridge.CardDisplay
	ritual     *bridge.Flag
	coord      *draw.Coordinator

	catalog domain.Catalog
	seed    string
	deck    *domain.ShuffledDeck
	spread  *domain.Spread
	drawn   []domain.DrawnCard
	active  ports.AgentRole

	connected  bool
	nudgeDelay time.Duration
	nudgeTimer *time.Timer

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New creates an unconnected orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nudge := cfg.NudgeDelay
	if nudge <= 0 {
		nudge = defaultNudgeDelay
	}
	db := bridge.NewDrawBridge()
	if cfg.DrawTimeout > 0 {
		db = bridge.NewDrawBridgeWithTimeout(cfg.DrawTimeout)
	}
	display := bridge.NewCardDisplay()
	if cfg.SettleDelay > 0 {
		display = bridge.NewCardDisplayWithSettle(cfg.SettleDelay)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		logger:     logger,
		channel:    cfg.Channel,
		tokens:     cfg.Tokens,
		cards:      cfg.Cards,
		rng:        cfg.RNG,
		drawBridge: db,
		display:    display,
		ritual:     bridge.NewFlag(),
		coord:      draw.NewCoordinator(),
		nudgeDelay: nudge,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start opens the realtime channel with a short-lived credential, installs
// the Intent agent, and prompts it to speak first.
func (o *Orchestrator) Start(ctx context.Context) error {
	catalog, err := o.cards.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	token, err := o.tokens.IssueToken(ctx)
	if err != nil {
		kind, suggestion := ClassifyConnectionError(err)
		o.logger.ErrorContext(ctx, "token issue failed", "kind", string(kind), "error", err)
		return fmt.Errorf("issue token (%s): %w", suggestion, err)
	}

	opts := ports.ConnectOptions{AutoHandoffs: autoHandoffs}
	if err := o.channel.Connect(ctx, token, opts); err != nil {
		kind, suggestion := ClassifyConnectionError(err)
		o.logger.ErrorContext(ctx, "voice connect failed", "kind", string(kind), "error", err)
		return fmt.Errorf("connect (%s): %w", suggestion, err)
	}

	o.mu.Lock()
	o.catalog = catalog
	o.seed = strconv.FormatInt(time.Now().UnixMilli(), 10)
	o.deck = domain.NewShuffledDeck(o.seed)
	o.connected = true
	o.active = ports.AgentIntent
	o.mu.Unlock()

	if err := o.channel.SwapAgent(ctx, ports.AgentIntent); err != nil {
		return fmt.Errorf("install intent agent: %w", err)
	}
	if err := o.channel.SendText(ctx, openingLine); err != nil {
		return fmt.Errorf("send opening line: %w", err)
	}

	go o.eventLoop()
	return nil
}

// Done is closed when the session has fully torn down.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// ActiveAgent returns the currently active agent role.
func (o *Orchestrator) ActiveAgent() ports.AgentRole {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// RitualActive reports whether the ritual phase flag is raised.
func (o *Orchestrator) RitualActive() bool { return o.ritual.IsSet() }

// PendingDraw exposes the bridge's outstanding request for the UI.
func (o *Orchestrator) PendingDraw() (bridge.DrawRequest, bool) { return o.drawBridge.Pending() }

// DisplayedCard exposes the currently displayed card for the UI.
func (o *Orchestrator) DisplayedCard() (bridge.DrawResult, bool) { return o.display.Current() }

// CurrentPosition exposes the batch-draw cursor; ok is false when no picker
// should render.
func (o *Orchestrator) CurrentPosition() (domain.SpreadPosition, int, bool) {
	return o.coord.Current()
}

// TotalPositions reports the size of the active batch spread, 0 when none.
func (o *Orchestrator) TotalPositions() int { return o.coord.Total() }

// DrawnCards returns a copy of the cards drawn so far.
func (o *Orchestrator) DrawnCards() []domain.DrawnCard {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.DrawnCard, len(o.drawn))
	copy(out, o.drawn)
	return out
}

func (o *Orchestrator) eventLoop() {
	for ev := range o.channel.Events() {
		switch ev := ev.(type) {
		case ports.ToolCallEvent:
			// Tools block (the single draw waits up to the watchdog window),
			// so each call runs off the event loop.
			go o.handleToolCall(ev.Call)
		case ports.HandoffEvent:
			o.mu.Lock()
			o.logger.Info("agent handoff", "from", string(o.active), "to", string(ev.To))
			o.active = ev.To
			o.mu.Unlock()
		case ports.DisconnectedEvent:
			if ev.Err != nil {
				kind, suggestion := ClassifyConnectionError(ev.Err)
				o.logger.Warn("voice channel disconnected", "kind", string(kind), "suggestion", suggestion, "error", ev.Err)
			}
			o.Close()
			return
		}
	}
	o.Close()
}

func (o *Orchestrator) handleToolCall(call ports.ToolCall) {
	o.mu.Lock()
	allowed := agentTools[o.active][call.Name]
	o.mu.Unlock()
	if !allowed {
		_ = o.channel.ToolError(o.ctx, call.ID, fmt.Errorf("tool %q is not available to the active agent", call.Name))
		return
	}

	var (
		result any
		err    error
	)
	switch call.Name {
	case toolBeginRitual:
		result, err = o.beginRitual()
	case toolWaitForRitual:
		result, err = o.waitForRitual()
	case toolDrawCardsBatch:
		result, err = o.drawCardsBatch(call.Args)
	case toolDrawCardSingle:
		result, err = o.drawCardSingle(call.Args)
	case toolShowCard:
		result, err = o.showCard(call.Args)
	default:
		err = fmt.Errorf("unknown tool %q", call.Name)
	}

	if err != nil {
		o.logger.Warn("tool call failed", "tool", call.Name, "error", err)
		_ = o.channel.ToolError(o.ctx, call.ID, err)
		return
	}
	_ = o.channel.ToolResult(o.ctx, call.ID, result)
}

// beginRitual mutes the audio channel, raises the ritual flag, waits for the
// UI to complete the ritual, then performs the manual Intent->Spread swap
// and restores the audio channel. The transition depends on UI timing, so it
// cannot be a framework-automatic handoff.
func (o *Orchestrator) beginRitual() (any, error) {
	if err := o.channel.SetMuted(true); err != nil {
		return nil, fmt.Errorf("mute: %w", err)
	}
	o.ritual.Set()

	if _, err := o.ritual.Wait(o.ctx); err != nil {
		_ = o.channel.SetMuted(false)
		return nil, fmt.Errorf("await ritual: %w", err)
	}

	if err := o.channel.SwapAgent(o.ctx, ports.AgentSpread); err != nil {
		_ = o.channel.SetMuted(false)
		return nil, fmt.Errorf("swap to spread agent: %w", err)
	}
	o.mu.Lock()
	o.active = ports.AgentSpread
	o.mu.Unlock()

	if err := o.channel.SetMuted(false); err != nil {
		return nil, fmt.Errorf("unmute: %w", err)
	}
	return map[string]any{
		"success": true,
		"message": "The ritual is complete. The cards are ready.",
	}, nil
}

func (o *Orchestrator) waitForRitual() (any, error) {
	alreadyClear, err := o.ritual.Wait(o.ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":            true,
		"message":            "The ritual phase has ended.",
		"wasAlreadyComplete": alreadyClear,
	}, nil
}

// drawCardsBatch stores the requested spread and initializes the position
// cursor. Fire-and-forget: the tool returns immediately and the UI drives
// the user through the positions.
func (o *Orchestrator) drawCardsBatch(args map[string]any) (any, error) {
	raw, ok := args["cards"].([]any)
	if !ok {
		return nil, fmt.Errorf("cards must be an array")
	}
	positions := make([]domain.SpreadPosition, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cards[%d] must be an object", i)
		}
		label, _ := m["positionLabel"].(string)
		role, _ := m["promptRole"].(string)
		if label == "" {
			return nil, fmt.Errorf("cards[%d] is missing positionLabel", i)
		}
		positions = append(positions, domain.SpreadPosition{
			Key:   fmt.Sprintf("position_%d", i+1),
			Label: label,
			Role:  role,
		})
	}

	spread := domain.Spread{Positions: positions}
	if err := o.coord.Begin(spread); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.spread = &spread
	o.mu.Unlock()
	o.armNudge()

	return map[string]any{
		"status":     "started",
		"totalCards": len(positions),
		"message":    fmt.Sprintf("Drawing %d cards. The seeker will pick each one.", len(positions)),
	}, nil
}

// drawCardSingle blocks on the bridge until the UI resolves the draw, the
// watchdog fires, or the session closes.
func (o *Orchestrator) drawCardSingle(args map[string]any) (any, error) {
	label, _ := args["positionLabel"].(string)
	role, _ := args["promptRole"].(string)
	req := bridge.DrawRequest{
		PositionLabel: label,
		PositionRole:  role,
		CardNumber:    intArg(args, "cardNumber", 1),
		TotalCards:    intArg(args, "totalCards", 1),
	}

	card, err := o.drawBridge.Request(o.ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"cardId":   card.CardID,
		"cardName": card.Name,
		"reversed": card.Reversed,
	}, nil
}

// showCard publishes a card to the display slot and resolves only after the
// settle delay, so the visual renders before the spoken interpretation
// continues.
func (o *Orchestrator) showCard(args map[string]any) (any, error) {
	cardID, _ := args["cardId"].(string)
	reversed, _ := args["reversed"].(bool)

	card, err := o.catalog.Get(cardID)
	if err != nil {
		return nil, fmt.Errorf("show card %q: %w", cardID, err)
	}
	if err := o.display.Show(o.ctx, bridge.DrawResult{CardID: cardID, Name: card.Name, Reversed: reversed}); err != nil {
		return nil, err
	}
	return map[string]any{
		"success":  true,
		"cardId":   cardID,
		"reversed": reversed,
	}, nil
}

// CompleteRitual is the UI's signal that the ritual gesture finished.
func (o *Orchestrator) CompleteRitual() {
	o.ritual.Clear()
}

// SelectCard records the seeker's pick for the current batch position and
// advances the cursor. After the last position it swaps to the Reading agent
// and sends it the summary of every drawn card.
func (o *Orchestrator) SelectCard(ctx context.Context, cardID string) error {
	o.mu.Lock()
	if !o.connected {
		o.mu.Unlock()
		return ErrNotConnected
	}
	pos, index, ok := o.coord.Current()
	if !ok {
		o.mu.Unlock()
		return ErrNoActiveSpread
	}

	dc, err := o.fixCard(cardID, index, pos)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.drawn = append(o.drawn, dc)
	o.stopNudge()

	o.coord.Advance()
	if _, _, more := o.coord.Current(); more {
		o.mu.Unlock()
		o.armNudge()
		return nil
	}

	// Last position revealed: manual swap to the Reading agent with a
	// summary so it can interpret without re-querying the bridge.
	o.coord.Complete()
	summary := summarizeDrawn(o.drawn)
	o.mu.Unlock()

	if err := o.channel.SwapAgent(ctx, ports.AgentReading); err != nil {
		return fmt.Errorf("swap to reading agent: %w", err)
	}
	o.mu.Lock()
	o.active = ports.AgentReading
	o.mu.Unlock()
	if err := o.channel.SendText(ctx, summary); err != nil {
		return fmt.Errorf("send card summary: %w", err)
	}
	return nil
}

// ResolveDraw completes the pending single-card draw with the seeker's pick.
// The card is validated first and only committed after the bridge accepts the
// result, so a watchdog firing mid-resolution leaves the deck untouched.
func (o *Orchestrator) ResolveDraw(cardID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	req, pending := o.drawBridge.Pending()
	if !pending {
		return ErrNoPendingDraw
	}
	card, err := o.catalog.Get(cardID)
	if err != nil {
		return err
	}
	if !o.deck.Contains(cardID) {
		return domain.ErrCardNotInDeck
	}
	dc := domain.DrawnCard{
		CardID:        cardID,
		Name:          card.Name,
		IsReversed:    o.rng.Intn(2) == 1,
		Position:      len(o.drawn),
		PositionLabel: req.PositionLabel,
		PositionRole:  req.PositionRole,
	}

	if !o.drawBridge.Resolve(bridge.DrawResult{CardID: dc.CardID, Name: dc.Name, Reversed: dc.IsReversed}) {
		return ErrNoPendingDraw
	}
	_ = o.deck.Draw(cardID)
	o.drawn = append(o.drawn, dc)
	return nil
}

// fixCard removes cardID from the live deck and freezes its drawn form.
// Voice draws use an independent 50/50 coin for orientation. Callers hold
// o.mu.
func (o *Orchestrator) fixCard(cardID string, position int, pos domain.SpreadPosition) (domain.DrawnCard, error) {
	card, err := o.catalog.Get(cardID)
	if err != nil {
		return domain.DrawnCard{}, err
	}
	if err := o.deck.Draw(cardID); err != nil {
		return domain.DrawnCard{}, err
	}
	return domain.DrawnCard{
		CardID:        cardID,
		Name:          card.Name,
		IsReversed:    o.rng.Intn(2) == 1,
		Position:      position,
		PositionLabel: pos.Label,
		PositionRole:  pos.Role,
	}, nil
}

func summarizeDrawn(cards []domain.DrawnCard) string {
	var b strings.Builder
	b.WriteString("All cards are drawn. Interpret them in order, showing each card before you discuss it:\n")
	for i, dc := range cards {
		fmt.Fprintf(&b, "%d. %s: %s (%s) [id: %s]\n", i+1, dc.PositionLabel, dc.Name, dc.Orientation(), dc.CardID)
	}
	return b.String()
}

// armNudge schedules one reminder line if the picking phase sits idle.
// Takes o.mu; callers must not hold it.
func (o *Orchestrator) armNudge() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.nudgeTimer != nil {
		o.nudgeTimer.Stop()
	}
	o.nudgeTimer = time.AfterFunc(o.nudgeDelay, func() {
		_ = o.channel.SendText(o.ctx, "The seeker seems to be taking their time. Gently remind them a card is waiting to be chosen.")
	})
}

// stopNudge cancels the pending reminder. Callers hold o.mu.
func (o *Orchestrator) stopNudge() {
	if o.nudgeTimer != nil {
		o.nudgeTimer.Stop()
		o.nudgeTimer = nil
	}
}

// Close tears the session down: the channel is closed, connection status
// reset, and any in-flight draw request rejected rather than left dangling.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.connected = false
		o.stopNudge()
		o.mu.Unlock()

		o.drawBridge.Reject(ErrSessionClosed)
		o.cancel()
		if err := o.channel.Close(); err != nil {
			o.logger.Warn("channel close", "error", err)
		}
		close(o.done)
	})
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
