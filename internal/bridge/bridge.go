// Package bridge synchronizes agent tool calls with UI-driven completion.
// An agent invokes a tool and blocks; the value it waits for can only be
// produced by a human acting through a separate event stream. The bridge
// holds a single pending slot between the two sides.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultDrawTimeout is the watchdog window for an unresolved draw request.
const DefaultDrawTimeout = 120 * time.Second

var (
	// ErrDrawPending rejects a second request while one is outstanding.
	ErrDrawPending = errors.New("a draw request is already pending")
	// ErrDrawTimeout reports the watchdog firing before resolution.
	ErrDrawTimeout = errors.New("draw request timed out")
)

// DrawRequest describes the card an agent is asking the user to draw.
type DrawRequest struct {
	PositionLabel string
	PositionRole  string
	CardNumber    int // 1-based
	TotalCards    int
}

// DrawResult is the card the user supplied.
type DrawResult struct {
	CardID   string
	Name     string
	Reversed bool
}

type drawOutcome struct {
	card DrawResult
	err  error
}

type pendingDraw struct {
	req  DrawRequest
	done chan drawOutcome // buffered; written exactly once
}

// DrawBridge owns the single pending-request slot. At most one request may
// be pending at a time; a second Request is refused, never silently
// overwritten.
type DrawBridge struct {
	mu      sync.Mutex
	pending *pendingDraw
	timeout time.Duration
	changes chan struct{}
}

// NewDrawBridge creates a bridge with the default watchdog window.
func NewDrawBridge() *DrawBridge {
	return NewDrawBridgeWithTimeout(DefaultDrawTimeout)
}

// NewDrawBridgeWithTimeout creates a bridge with an explicit watchdog window.
func NewDrawBridgeWithTimeout(timeout time.Duration) *DrawBridge {
	return &DrawBridge{
		timeout: timeout,
		changes: make(chan struct{}, 1),
	}
}

// Changes signals whenever the pending slot is published or cleared.
// Notifications coalesce; consumers re-read Pending after each receive.
func (b *DrawBridge) Changes() <-chan struct{} { return b.changes }

func (b *DrawBridge) notify() {
	select {
	case b.changes <- struct{}{}:
	default:
	}
}

// Pending returns the outstanding request, if any.
func (b *DrawBridge) Pending() (DrawRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return DrawRequest{}, false
	}
	return b.pending.req, true
}

// Request publishes req and blocks until Resolve, Reject, the watchdog, or
// ctx. The slot is guaranteed clear by the time Request returns.
func (b *DrawBridge) Request(ctx context.Context, req DrawRequest) (DrawResult, error) {
	b.mu.Lock()
	if b.pending != nil {
		b.mu.Unlock()
		return DrawResult{}, ErrDrawPending
	}
	p := &pendingDraw{req: req, done: make(chan drawOutcome, 1)}
	b.pending = p
	b.mu.Unlock()
	b.notify()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case out := <-p.done:
		return out.card, out.err
	case <-timer.C:
		return b.abandon(p, ErrDrawTimeout)
	case <-ctx.Done():
		return b.abandon(p, ctx.Err())
	}
}

// abandon clears the slot on timeout or cancellation. If a resolution raced
// in first, the stored outcome wins.
func (b *DrawBridge) abandon(p *pendingDraw, cause error) (DrawResult, error) {
	b.mu.Lock()
	if b.pending != p {
		// Already resolved or rejected; the outcome is buffered.
		b.mu.Unlock()
		out := <-p.done
		return out.card, out.err
	}
	b.pending = nil
	b.mu.Unlock()
	b.notify()
	return DrawResult{}, cause
}

// Resolve completes the pending request with card and clears the slot. It is
// a no-op returning false when no request is pending.
func (b *DrawBridge) Resolve(card DrawResult) bool {
	return b.finish(drawOutcome{card: card})
}

// Reject fails the pending request. No-op when the slot is already clear.
func (b *DrawBridge) Reject(err error) bool {
	return b.finish(drawOutcome{err: err})
}

func (b *DrawBridge) finish(out drawOutcome) bool {
	b.mu.Lock()
	p := b.pending
	if p == nil {
		b.mu.Unlock()
		return false
	}
	b.pending = nil
	b.mu.Unlock()
	p.done <- out
	b.notify()
	return true
}
