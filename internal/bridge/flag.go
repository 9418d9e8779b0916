package bridge

import (
	"context"
	"sync"
)

// Flag is the ritual-phase gate: a boolean waiters can block on until it
// clears. Each waiter is woken exactly once and then forgotten, so a later
// Set/Clear cycle never re-notifies an old waiter.
type Flag struct {
	mu      sync.Mutex
	set     bool
	waiters []chan struct{}
}

// NewFlag returns a cleared flag.
func NewFlag() *Flag { return &Flag{} }

// Set raises the flag.
func (f *Flag) Set() {
	f.mu.Lock()
	f.set = true
	f.mu.Unlock()
}

// Clear lowers the flag and wakes every waiter.
func (f *Flag) Clear() {
	f.mu.Lock()
	waiters := f.waiters
	f.waiters = nil
	f.set = false
	f.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

// IsSet reports the current value.
func (f *Flag) IsSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// Wait blocks until the flag is clear. It returns immediately with
// alreadyClear=true if the flag is not set when the wait begins.
func (f *Flag) Wait(ctx context.Context) (alreadyClear bool, err error) {
	f.mu.Lock()
	if !f.set {
		f.mu.Unlock()
		return true, nil
	}
	w := make(chan struct{})
	f.waiters = append(f.waiters, w)
	f.mu.Unlock()

	select {
	case <-w:
		return false, nil
	case <-ctx.Done():
		f.drop(w)
		return false, ctx.Err()
	}
}

func (f *Flag) drop(w chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.waiters {
		if c == w {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}
