package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlag_WaitFastPathWhenClear(t *testing.T) {
	f := NewFlag()

	alreadyClear, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, alreadyClear)
}

func TestFlag_WaitBlocksUntilClear(t *testing.T) {
	f := NewFlag()
	f.Set()
	require.True(t, f.IsSet())

	done := make(chan bool, 1)
	go func() {
		alreadyClear, err := f.Wait(context.Background())
		if err == nil {
			done <- alreadyClear
		}
	}()

	select {
	case <-done:
		t.Fatal("wait returned before the flag cleared")
	case <-time.After(20 * time.Millisecond):
	}

	f.Clear()
	select {
	case alreadyClear := <-done:
		assert.False(t, alreadyClear)
	case <-time.After(2 * time.Second):
		t.Fatal("wait never woke after Clear")
	}
}

func TestFlag_WakesEveryWaiterOnce(t *testing.T) {
	f := NewFlag()
	f.Set()

	const waiters = 5
	done := make(chan struct{}, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			_, _ = f.Wait(context.Background())
			done <- struct{}{}
		}()
	}
	time.Sleep(20 * time.Millisecond)

	f.Clear()
	for i := 0; i < waiters; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("waiter %d never woke", i)
		}
	}

	// A later cycle must not touch the old, already-woken waiters.
	f.Set()
	f.Clear()
	select {
	case <-done:
		t.Fatal("a waiter fired twice")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestFlag_WaitHonorsContext(t *testing.T) {
	f := NewFlag()
	f.Set()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.Wait(ctx)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestCardDisplay_ShowPublishesThenSettles(t *testing.T) {
	d := NewCardDisplayWithSettle(30 * time.Millisecond)

	start := time.Now()
	err := d.Show(context.Background(), DrawResult{CardID: "the-star", Name: "The Star"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	card, ok := d.Current()
	require.True(t, ok)
	assert.Equal(t, "the-star", card.CardID)
}

func TestCardDisplay_Reset(t *testing.T) {
	d := NewCardDisplayWithSettle(time.Millisecond)
	require.NoError(t, d.Show(context.Background(), DrawResult{CardID: "the-sun"}))

	d.Reset()
	_, ok := d.Current()
	assert.False(t, ok)
}

func TestCardDisplay_ChangesSignalShowAndReset(t *testing.T) {
	d := NewCardDisplayWithSettle(time.Millisecond)
	require.NoError(t, d.Show(context.Background(), DrawResult{CardID: "the-star"}))

	select {
	case <-d.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal on show")
	}

	d.Reset()
	select {
	case <-d.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal on reset")
	}
}

func TestCardDisplay_ShowHonorsContext(t *testing.T) {
	d := NewCardDisplayWithSettle(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Show(ctx, DrawResult{CardID: "the-moon"})
	assert.ErrorIs(t, err, context.Canceled)
}
