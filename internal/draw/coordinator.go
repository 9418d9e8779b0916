// Package draw sequences per-position card draws across a spread for the
// voice surface's batch flow.
package draw

import (
	"sync"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/domain"
)

// notStarted is the cursor's sentinel value before Begin and after Complete.
const notStarted = -1

// Coordinator tracks a zero-based cursor over the active spread's positions.
// Callers render a card picker only while Current reports a position.
type Coordinator struct {
	mu     sync.Mutex
	spread *domain.Spread
	cursor int
}

// NewCoordinator returns a coordinator with no active spread.
func NewCoordinator() *Coordinator {
	return &Coordinator{cursor: notStarted}
}

// Begin installs spread and points the cursor at the first position.
func (c *Coordinator) Begin(spread domain.Spread) error {
	if err := domain.ValidateSpread(spread); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := spread
	c.spread = &s
	c.cursor = 0
	return nil
}

// Current returns the position under the cursor. ok is false whenever the
// cursor is out of range: no spread, not started, or past the last position.
func (c *Coordinator) Current() (pos domain.SpreadPosition, index int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.spread == nil || c.cursor < 0 || c.cursor >= len(c.spread.Positions) {
		return domain.SpreadPosition{}, 0, false
	}
	return c.spread.Positions[c.cursor], c.cursor, true
}

// Advance moves the cursor to the next position and returns the new index.
func (c *Coordinator) Advance() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursor++
	return c.cursor
}

// Complete resets the cursor to the not-started sentinel.
func (c *Coordinator) Complete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursor = notStarted
}

// Total returns the active spread's position count, 0 when none is active.
func (c *Coordinator) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.spread == nil {
		return 0
	}
	return len(c.spread.Positions)
}
