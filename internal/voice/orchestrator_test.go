package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/adapters/cards"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/bridge"
	"github.com/dungdc40/tarot-nextjs-sub000/internal/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// toolReply is one completed tool call as seen by the fake runtime.
type toolReply struct {
	callID string
	result any
	err    error
}

// fakeChannel is a scripted realtime runtime: the test injects events and
// observes every call the orchestrator makes back into the channel.
type fakeChannel struct {
	mu        sync.Mutex
	events    chan ports.Event
	replies   chan toolReply
	closeOnce sync.Once

	token string
	opts  ports.ConnectOptions
	swaps []ports.AgentRole
	texts []string
	mutes []bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		events:  make(chan ports.Event, 16),
		replies: make(chan toolReply, 16),
	}
}

func (c *fakeChannel) Connect(_ context.Context, token string, opts ports.ConnectOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.opts = opts
	return nil
}

func (c *fakeChannel) SwapAgent(_ context.Context, role ports.AgentRole) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swaps = append(c.swaps, role)
	return nil
}

func (c *fakeChannel) SendText(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *fakeChannel) SetMuted(muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutes = append(c.mutes, muted)
	return nil
}

func (c *fakeChannel) Events() <-chan ports.Event { return c.events }

func (c *fakeChannel) ToolResult(_ context.Context, callID string, result any) error {
	c.replies <- toolReply{callID: callID, result: result}
	return nil
}

func (c *fakeChannel) ToolError(_ context.Context, callID string, err error) error {
	c.replies <- toolReply{callID: callID, err: err}
	return nil
}

func (c *fakeChannel) Close() error {
	c.closeOnce.Do(func() { close(c.events) })
	return nil
}

func (c *fakeChannel) sentTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.texts))
	copy(out, c.texts)
	return out
}

func (c *fakeChannel) agentSwaps() []ports.AgentRole {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ports.AgentRole, len(c.swaps))
	copy(out, c.swaps)
	return out
}

func (c *fakeChannel) muteCalls() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bool, len(c.mutes))
	copy(out, c.mutes)
	return out
}

type fakeTokens struct {
	token string
	err   error
}

func (f fakeTokens) IssueToken(context.Context) (string, error) { return f.token, f.err }

// fixedRNG always returns the same value, pinning every coin flip.
type fixedRNG struct{ v int }

func (r fixedRNG) Intn(int) int { return r.v }

func startedOrchestrator(t *testing.T, ch *fakeChannel) *Orchestrator {
	t.Helper()
	o := New(Config{
		Channel:     ch,
		Tokens:      fakeTokens{token: "ephemeral-token"},
		Cards:       cards.NewEmbeddedStore(),
		RNG:         fixedRNG{v: 1},
		NudgeDelay:  time.Hour,
		SettleDelay: time.Millisecond,
	})
	require.NoError(t, o.Start(context.Background()))
	t.Cleanup(func() {
		o.Close()
		<-o.Done()
	})
	return o
}

func awaitReply(t *testing.T, ch *fakeChannel) toolReply {
	t.Helper()
	select {
	case r := <-ch.replies:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a tool reply")
		return toolReply{}
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func toolCall(id, name string, args map[string]any) ports.Event {
	return ports.ToolCallEvent{Call: ports.ToolCall{ID: id, Name: name, Args: args}}
}

func TestStartInstallsIntentAgent(t *testing.T) {
	ch := newFakeChannel()
	o := startedOrchestrator(t, ch)

	assert.Equal(t, "ephemeral-token", ch.token)
	assert.Equal(t, ports.AgentFollowup, ch.opts.AutoHandoffs[ports.AgentReading],
		"the reading to follow-up handoff is declared at setup")
	assert.Equal(t, []ports.AgentRole{ports.AgentIntent}, ch.agentSwaps())
	require.Len(t, ch.sentTexts(), 1, "the intent agent is prompted to speak first")
	assert.Equal(t, ports.AgentIntent, o.ActiveAgent())
}

func TestStartFailsWhenTokenIssueFails(t *testing.T) {
	o := New(Config{
		Channel: newFakeChannel(),
		Tokens:  fakeTokens{err: errors.New("401 unauthorized")},
		Cards:   cards.NewEmbeddedStore(),
		RNG:     fixedRNG{},
	})
	err := o.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials", "the failure carries the recovery suggestion")
}

func TestBeginRitualMutesSwapsAndUnmutes(t *testing.T) {
	ch := newFakeChannel()
	o := startedOrchestrator(t, ch)

	ch.events <- toolCall("call-1", "begin_ritual", nil)

	eventually(t, o.RitualActive, "ritual flag never raised")
	assert.Equal(t, []bool{true}, ch.muteCalls(), "audio muted before the ritual")

	o.CompleteRitual()
	reply := awaitReply(t, ch)
	require.NoError(t, reply.err)
	assert.Equal(t, "call-1", reply.callID)

	assert.False(t, o.RitualActive())
	assert.Equal(t, ports.AgentSpread, o.ActiveAgent())
	assert.Equal(t, []ports.AgentRole{ports.AgentIntent, ports.AgentSpread}, ch.agentSwaps())
	assert.Equal(t, []bool{true, false}, ch.muteCalls(), "audio restored after the swap")
}

func TestToolOutsideAgentSurfaceIsRefused(t *testing.T) {
	ch := newFakeChannel()
	startedOrchestrator(t, ch)

	// The intent agent has no draw tools.
	ch.events <- toolCall("call-1", "draw_cards_batch", map[string]any{"cards": []any{}})

	reply := awaitReply(t, ch)
	require.Error(t, reply.err)
	assert.Contains(t, reply.err.Error(), "not available")
}

func batchArgs(labels ...string) map[string]any {
	entries := make([]any, len(labels))
	for i, l := range labels {
		entries[i] = map[string]any{"positionLabel": l, "promptRole": "what " + l + " holds"}
	}
	return map[string]any{"cards": entries}
}

func TestBatchDrawWalksPositionsThenSwapsToReading(t *testing.T) {
	ch := newFakeChannel()
	o := startedOrchestrator(t, ch)

	ch.events <- ports.HandoffEvent{To: ports.AgentSpread}
	eventually(t, func() bool { return o.ActiveAgent() == ports.AgentSpread }, "handoff never applied")

	ch.events <- toolCall("call-1", "draw_cards_batch", batchArgs("Past", "Present", "Future"))
	reply := awaitReply(t, ch)
	require.NoError(t, reply.err)
	res := reply.result.(map[string]any)
	assert.Equal(t, "started", res["status"], "the batch tool returns before any card is picked")
	assert.Equal(t, 3, res["totalCards"])

	pos, index, ok := o.CurrentPosition()
	require.True(t, ok)
	assert.Equal(t, 0, index)
	assert.Equal(t, "Past", pos.Label)
	assert.Equal(t, 3, o.TotalPositions())

	ctx := context.Background()
	picks := []string{"the-fool", "the-magician", "the-high-priestess"}
	for _, id := range picks {
		require.NoError(t, o.SelectCard(ctx, id))
	}

	_, _, ok = o.CurrentPosition()
	assert.False(t, ok, "the cursor clears after the last position")
	assert.Equal(t, ports.AgentReading, o.ActiveAgent())
	assert.Contains(t, ch.agentSwaps(), ports.AgentReading)

	texts := ch.sentTexts()
	summary := texts[len(texts)-1]
	assert.Contains(t, summary, "All cards are drawn")
	for _, id := range picks {
		assert.Contains(t, summary, id, "the summary names every drawn card")
	}

	drawn := o.DrawnCards()
	require.Len(t, drawn, 3)
	assert.Equal(t, "Past", drawn[0].PositionLabel)
	assert.Equal(t, "Future", drawn[2].PositionLabel)
	for _, dc := range drawn {
		assert.True(t, dc.IsReversed, "the pinned coin always lands reversed")
	}
}

func TestSelectCardRejectsDuplicatePick(t *testing.T) {
	ch := newFakeChannel()
	o := startedOrchestrator(t, ch)

	ch.events <- ports.HandoffEvent{To: ports.AgentSpread}
	eventually(t, func() bool { return o.ActiveAgent() == ports.AgentSpread }, "handoff never applied")

	ch.events <- toolCall("call-1", "draw_cards_batch", batchArgs("Past", "Present"))
	require.NoError(t, awaitReply(t, ch).err)

	ctx := context.Background()
	require.NoError(t, o.SelectCard(ctx, "the-fool"))
	assert.Error(t, o.SelectCard(ctx, "the-fool"), "a drawn card has left the deck")
	assert.Error(t, o.SelectCard(ctx, "no-such-card"))
}

func TestSelectCardWithoutSpread(t *testing.T) {
	ch := newFakeChannel()
	o := startedOrchestrator(t, ch)

	err := o.SelectCard(context.Background(), "the-fool")
	assert.ErrorIs(t, err, ErrNoActiveSpread)
}

func TestSelectCardBeforeStart(t *testing.T) {
	o := New(Config{
		Channel: newFakeChannel(),
		Tokens:  fakeTokens{token: "t"},
		Cards:   cards.NewEmbeddedStore(),
		RNG:     fixedRNG{},
	})
	err := o.SelectCard(context.Background(), "the-fool")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSingleDrawResolvedByUI(t *testing.T) {
	ch := newFakeChannel()
	o := startedOrchestrator(t, ch)

	ch.events <- ports.HandoffEvent{To: ports.AgentFollowup}
	eventually(t, func() bool { return o.ActiveAgent() == ports.AgentFollowup }, "handoff never applied")

	ch.events <- toolCall("call-1", "draw_card_single", map[string]any{
		"positionLabel": "Clarification",
		"promptRole":    "what clarifies the reading",
		"cardNumber":    float64(1),
		"totalCards":    float64(1),
	})

	eventually(t, func() bool { _, ok := o.PendingDraw(); return ok }, "draw request never arrived")
	req, _ := o.PendingDraw()
	assert.Equal(t, "Clarification", req.PositionLabel)

	require.NoError(t, o.ResolveDraw("the-sun"))

	reply := awaitReply(t, ch)
	require.NoError(t, reply.err)
	res := reply.result.(map[string]any)
	assert.Equal(t, "the-sun", res["cardId"])
	assert.Equal(t, "The Sun", res["cardName"])
	assert.Equal(t, true, res["reversed"])

	drawn := o.DrawnCards()
	require.Len(t, drawn, 1)
	assert.Equal(t, "Clarification", drawn[0].PositionLabel)
}

func TestResolveDrawWithoutRequest(t *testing.T) {
	ch := newFakeChannel()
	o := startedOrchestrator(t, ch)

	assert.ErrorIs(t, o.ResolveDraw("the-sun"), ErrNoPendingDraw)
}

func TestResolveDrawAfterWatchdogLeavesNoRecord(t *testing.T) {
	ch := newFakeChannel()
	o := New(Config{
		Channel:     ch,
		Tokens:      fakeTokens{token: "t"},
		Cards:       cards.NewEmbeddedStore(),
		RNG:         fixedRNG{v: 1},
		NudgeDelay:  time.Hour,
		DrawTimeout: 100 * time.Millisecond,
		SettleDelay: time.Millisecond,
	})
	require.NoError(t, o.Start(context.Background()))
	defer func() {
		o.Close()
		<-o.Done()
	}()

	ch.events <- ports.HandoffEvent{To: ports.AgentFollowup}
	eventually(t, func() bool { return o.ActiveAgent() == ports.AgentFollowup }, "handoff never applied")

	ch.events <- toolCall("call-1", "draw_card_single", map[string]any{"positionLabel": "Extra"})
	eventually(t, func() bool { _, ok := o.PendingDraw(); return ok }, "draw request never arrived")

	// Let the watchdog expire the agent's call before the seeker picks.
	reply := awaitReply(t, ch)
	assert.ErrorIs(t, reply.err, bridge.ErrDrawTimeout)

	// A pick arriving after the expiry must be refused without side effects:
	// the card stays in the deck and no draw is recorded.
	assert.ErrorIs(t, o.ResolveDraw("the-sun"), ErrNoPendingDraw)
	assert.Empty(t, o.DrawnCards())

	// The untouched card can still satisfy a later draw.
	ch.events <- toolCall("call-2", "draw_card_single", map[string]any{"positionLabel": "Extra"})
	eventually(t, func() bool { _, ok := o.PendingDraw(); return ok }, "second draw request never arrived")
	require.NoError(t, o.ResolveDraw("the-sun"))
	require.NoError(t, awaitReply(t, ch).err)
	require.Len(t, o.DrawnCards(), 1)
}

func TestCloseRejectsInFlightDraw(t *testing.T) {
	ch := newFakeChannel()
	o := startedOrchestrator(t, ch)

	ch.events <- ports.HandoffEvent{To: ports.AgentFollowup}
	eventually(t, func() bool { return o.ActiveAgent() == ports.AgentFollowup }, "handoff never applied")

	ch.events <- toolCall("call-1", "draw_card_single", map[string]any{"positionLabel": "Extra"})
	eventually(t, func() bool { _, ok := o.PendingDraw(); return ok }, "draw request never arrived")

	o.Close()
	reply := awaitReply(t, ch)
	assert.ErrorIs(t, reply.err, ErrSessionClosed)

	select {
	case <-o.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session never finished tearing down")
	}
}

func TestShowCardPublishesToDisplay(t *testing.T) {
	ch := newFakeChannel()
	o := startedOrchestrator(t, ch)

	ch.events <- ports.HandoffEvent{To: ports.AgentReading}
	eventually(t, func() bool { return o.ActiveAgent() == ports.AgentReading }, "handoff never applied")

	ch.events <- toolCall("call-1", "show_card", map[string]any{"cardId": "the-moon", "reversed": true})
	reply := awaitReply(t, ch)
	require.NoError(t, reply.err)

	card, ok := o.DisplayedCard()
	require.True(t, ok)
	assert.Equal(t, "the-moon", card.CardID)
	assert.True(t, card.Reversed)

	ch.events <- toolCall("call-2", "show_card", map[string]any{"cardId": "not-a-card"})
	reply = awaitReply(t, ch)
	assert.Error(t, reply.err, "unknown ids never reach the display")
}

func TestNudgeFiresWhenPickingIdles(t *testing.T) {
	ch := newFakeChannel()
	o := New(Config{
		Channel:    ch,
		Tokens:     fakeTokens{token: "t"},
		Cards:      cards.NewEmbeddedStore(),
		RNG:        fixedRNG{},
		NudgeDelay: 20 * time.Millisecond,
	})
	require.NoError(t, o.Start(context.Background()))
	defer func() {
		o.Close()
		<-o.Done()
	}()

	ch.events <- ports.HandoffEvent{To: ports.AgentSpread}
	eventually(t, func() bool { return o.ActiveAgent() == ports.AgentSpread }, "handoff never applied")

	ch.events <- toolCall("call-1", "draw_cards_batch", batchArgs("Past"))
	require.NoError(t, awaitReply(t, ch).err)

	eventually(t, func() bool { return len(ch.sentTexts()) >= 2 }, "idle reminder never sent")
	texts := ch.sentTexts()
	assert.Contains(t, texts[len(texts)-1], "remind")
}

func TestDisconnectTearsDown(t *testing.T) {
	ch := newFakeChannel()
	o := startedOrchestrator(t, ch)

	ch.events <- ports.DisconnectedEvent{Err: errors.New("connection reset")}

	select {
	case <-o.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect did not tear the session down")
	}
}

func TestClassifyConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{name: "nil error", err: nil, want: FailureUnknown},
		{name: "bad credentials", err: errors.New("server returned 401 unauthorized"), want: FailurePermission},
		{name: "missing api key", err: errors.New("no api key configured"), want: FailurePermission},
		{name: "overloaded", err: errors.New("503 service unavailable"), want: FailureServiceUnavailable},
		{name: "rate limited", err: errors.New("429 rate limit exceeded"), want: FailureServiceUnavailable},
		{name: "network drop", err: errors.New("read tcp: connection reset by peer"), want: FailureTransport},
		{name: "dns failure", err: errors.New("dial: no such host"), want: FailureTransport},
		{name: "anything else", err: errors.New("weird internal state"), want: FailureUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kind, suggestion := ClassifyConnectionError(tc.err)
			assert.Equal(t, tc.want, kind)
			assert.Contains(t, suggestion, "text chat", "every suggestion offers the text fallback")
		})
	}
}
