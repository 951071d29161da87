//Package dispatch turns crossing events into inventory mutations off the frame loop.
//
//Dispatch never blocks: events go into a bounded queue drained by a fixed pool of
//workers. When the queue is full the event is dropped and logged, so a slow or
//failing inventory backend can never stall frame processing.
package dispatch

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chenBenjamin97/smart-cart/pkg/crossing"
	"github.com/chenBenjamin97/smart-cart/pkg/inventory"
	"github.com/google/uuid"
)

//ErrNotStarted is returned by Wait when Start was never called.
var ErrNotStarted = errors.New("dispatcher was not started")

//Inventory is the persistence side of a crossing. Decrement must remove the
//line instead of storing a zero quantity.
type Inventory interface {
	Increment(ctx context.Context, label string) error
	Decrement(ctx context.Context, label string) error
}

type Config struct {
	Workers      int
	QueueSize    int
	Retries      int           //extra attempts after a failed call
	RetryBackoff time.Duration //pause between attempts
	CallTimeout  time.Duration //per attempt, 0 means no timeout
}

func DefaultConfig() Config {
	return Config{
		Workers:      4,
		QueueSize:    64,
		RetryBackoff: 200 * time.Millisecond,
		CallTimeout:  5 * time.Second,
	}
}

//Stats is a snapshot of dispatcher counters.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Dropped   uint64 `json:"dropped"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
}

type job struct {
	id    string
	event crossing.Event
}

type Dispatcher struct {
	inv   Inventory
	cfg   Config
	queue chan job

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup

	submitted atomic.Uint64
	dropped   atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
}

func New(inv Inventory, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	return &Dispatcher{
		inv:   inv,
		cfg:   cfg,
		queue: make(chan job, cfg.QueueSize),
	}
}

//Start launches the worker pool. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

//Dispatch hands ev to the worker pool and returns immediately. It reports
//whether the event was accepted.
func (d *Dispatcher) Dispatch(ev crossing.Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		log.Printf("Dispatch: dispatcher closed, dropping %s crossing of '%s'", ev.Direction, ev.Label)
		return false
	}

	j := job{id: uuid.NewString(), event: ev}
	select {
	case d.queue <- j:
		d.submitted.Add(1)
		return true
	default:
		d.dropped.Add(1)
		log.Printf("Dispatch: queue full, dropping %s crossing of '%s' (event %s)", ev.Direction, ev.Label, j.id)
		return false
	}
}

//Close stops accepting events. Workers finish what is already queued and exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	close(d.queue)
}

//Wait blocks until the workers exit after Close or ctx is done. In-flight
//mutations are best-effort, so callers usually bound ctx with a short timeout.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.RLock()
	started := d.started
	d.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Dropped:   d.dropped.Load(),
		Succeeded: d.succeeded.Load(),
		Failed:    d.failed.Load(),
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for j := range d.queue {
		if err := d.apply(j); err != nil {
			d.failed.Add(1)
			log.Printf("Dispatch: Error applying %s crossing of '%s' (event %s), got '%v'", j.event.Direction, j.event.Label, j.id, err)
			continue
		}

		d.succeeded.Add(1)
		switch j.event.Direction {
		case crossing.Inward:
			log.Printf("Added %s to cart (event %s, track %d)", j.event.Label, j.id, j.event.TrackID)
		case crossing.Outward:
			log.Printf("Removed %s from cart (event %s, track %d)", j.event.Label, j.id, j.event.TrackID)
		}
	}
}

func (d *Dispatcher) apply(j job) error {
	var err error
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(d.cfg.RetryBackoff)
		}

		err = d.call(j.event)
		if err == nil || errors.Is(err, inventory.ErrUnknownProduct) {
			return err
		}
	}
	return err
}

func (d *Dispatcher) call(ev crossing.Event) error {
	ctx := context.Background()
	if d.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.CallTimeout)
		defer cancel()
	}

	switch ev.Direction {
	case crossing.Inward:
		return d.inv.Increment(ctx, ev.Label)
	case crossing.Outward:
		return d.inv.Decrement(ctx, ev.Label)
	default:
		return errors.New("unknown crossing direction")
	}
}
