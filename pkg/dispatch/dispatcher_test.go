package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chenBenjamin97/smart-cart/pkg/crossing"
	"github.com/chenBenjamin97/smart-cart/pkg/inventory"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	Op    string
	Label string
}

//fakeInventory records calls and can fail or block on demand.
type fakeInventory struct {
	mu      sync.Mutex
	calls   []call
	failN   int   //fail the first failN calls
	err     error //error returned while failing
	release chan struct{}
}

func (f *fakeInventory) record(ctx context.Context, op, label string) error {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op, label})
	if f.failN > 0 {
		f.failN--
		return f.err
	}
	return nil
}

func (f *fakeInventory) Increment(ctx context.Context, label string) error {
	return f.record(ctx, "increment", label)
}

func (f *fakeInventory) Decrement(ctx context.Context, label string) error {
	return f.record(ctx, "decrement", label)
}

func (f *fakeInventory) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func waitStopped(t *testing.T, d *Dispatcher) {
	t.Helper()
	d.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestDispatchRoutesByDirection(t *testing.T) {
	inv := &fakeInventory{}
	d := New(inv, Config{Workers: 1, QueueSize: 8})
	d.Start()

	assert.True(t, d.Dispatch(crossing.Event{TrackID: 7, Label: "Oreo", Direction: crossing.Inward}))
	assert.True(t, d.Dispatch(crossing.Event{TrackID: 7, Label: "Oreo", Direction: crossing.Outward}))
	waitStopped(t, d)

	want := []call{{"increment", "Oreo"}, {"decrement", "Oreo"}}
	if diff := cmp.Diff(want, inv.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Stats{Submitted: 2, Succeeded: 2}, d.Stats())
}

func TestDispatchDoesNotBlockOnSlowBackend(t *testing.T) {
	inv := &fakeInventory{release: make(chan struct{})}
	d := New(inv, Config{Workers: 1, QueueSize: 2})
	d.Start()

	start := time.Now()
	accepted := 0
	for i := 0; i < 50; i++ {
		if d.Dispatch(crossing.Event{TrackID: i, Label: "pepsi", Direction: crossing.Inward}) {
			accepted++
		}
	}
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second)
	//one held by the blocked worker at most, two in the queue
	assert.LessOrEqual(t, accepted, 3)
	assert.Equal(t, uint64(50-accepted), d.Stats().Dropped)

	close(inv.release)
	waitStopped(t, d)
	assert.Len(t, inv.Calls(), accepted)
}

func TestDispatchAfterClose(t *testing.T) {
	inv := &fakeInventory{}
	d := New(inv, DefaultConfig())
	d.Start()
	waitStopped(t, d)

	assert.False(t, d.Dispatch(crossing.Event{Label: "pepsi", Direction: crossing.Inward}))
	assert.Equal(t, uint64(1), d.Stats().Dropped)
	assert.Empty(t, inv.Calls())

	//closing twice is harmless
	d.Close()
}

func TestFailuresAreContained(t *testing.T) {
	t.Run("no retry by default", func(t *testing.T) {
		inv := &fakeInventory{failN: 1, err: errors.New("backend down")}
		d := New(inv, Config{Workers: 1, QueueSize: 4})
		d.Start()

		d.Dispatch(crossing.Event{Label: "Milk", Direction: crossing.Inward})
		d.Dispatch(crossing.Event{Label: "Milk", Direction: crossing.Inward})
		waitStopped(t, d)

		assert.Len(t, inv.Calls(), 2)
		assert.Equal(t, Stats{Submitted: 2, Succeeded: 1, Failed: 1}, d.Stats())
	})

	t.Run("bounded retry", func(t *testing.T) {
		inv := &fakeInventory{failN: 2, err: errors.New("timeout")}
		d := New(inv, Config{Workers: 1, QueueSize: 4, Retries: 2, RetryBackoff: time.Millisecond})
		d.Start()

		d.Dispatch(crossing.Event{Label: "Milk", Direction: crossing.Outward})
		waitStopped(t, d)

		assert.Len(t, inv.Calls(), 3)
		assert.Equal(t, Stats{Submitted: 1, Succeeded: 1}, d.Stats())
	})

	t.Run("unknown product is not retried", func(t *testing.T) {
		inv := &fakeInventory{failN: 5, err: fmt.Errorf("%w: %q", inventory.ErrUnknownProduct, "x")}
		d := New(inv, Config{Workers: 1, QueueSize: 4, Retries: 3, RetryBackoff: time.Millisecond})
		d.Start()

		d.Dispatch(crossing.Event{Label: "x", Direction: crossing.Inward})
		waitStopped(t, d)

		assert.Len(t, inv.Calls(), 1)
		assert.Equal(t, uint64(1), d.Stats().Failed)
	})
}

func TestCallTimeout(t *testing.T) {
	inv := &fakeInventory{release: make(chan struct{})}
	d := New(inv, Config{Workers: 1, QueueSize: 1, CallTimeout: 20 * time.Millisecond})
	d.Start()

	d.Dispatch(crossing.Event{Label: "pepsi", Direction: crossing.Inward})
	waitStopped(t, d)

	assert.Equal(t, uint64(1), d.Stats().Failed)
}

func TestWaitWithoutStart(t *testing.T) {
	d := New(&fakeInventory{}, DefaultConfig())
	assert.ErrorIs(t, d.Wait(context.Background()), ErrNotStarted)
}
