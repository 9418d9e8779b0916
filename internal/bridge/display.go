package bridge

import (
	"context"
	"sync"
	"time"
)

// DefaultSettleDelay gives the visual a moment to render before the agent's
// spoken interpretation continues.
const DefaultSettleDelay = 500 * time.Millisecond

// CardDisplay holds the single "currently displayed card" slot. Show is
// synchronous per call: it publishes the card, waits the settle delay, then
// returns, so the caller's tool call resolves only after the render window.
type CardDisplay struct {
	mu      sync.Mutex
	current *DrawResult
	settle  time.Duration
	changes chan struct{}
}

// NewCardDisplay creates a display with the default settle delay.
func NewCardDisplay() *CardDisplay {
	return NewCardDisplayWithSettle(DefaultSettleDelay)
}

// NewCardDisplayWithSettle creates a display with an explicit settle delay.
func NewCardDisplayWithSettle(settle time.Duration) *CardDisplay {
	return &CardDisplay{
		settle:  settle,
		changes: make(chan struct{}, 1),
	}
}

// Changes signals whenever the displayed card changes.
func (d *CardDisplay) Changes() <-chan struct{} { return d.changes }

// Current returns the displayed card, if any.
func (d *CardDisplay) Current() (DrawResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return DrawResult{}, false
	}
	return *d.current, true
}

// Show publishes card and blocks for the settle delay.
func (d *CardDisplay) Show(ctx context.Context, card DrawResult) error {
	d.mu.Lock()
	c := card
	d.current = &c
	d.mu.Unlock()

	select {
	case d.changes <- struct{}{}:
	default:
	}

	timer := time.NewTimer(d.settle)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset clears the displayed card.
func (d *CardDisplay) Reset() {
	d.mu.Lock()
	d.current = nil
	d.mu.Unlock()
	select {
	case d.changes <- struct{}{}:
	default:
	}
}
