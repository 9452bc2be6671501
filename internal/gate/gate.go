// Package gate implements the reload/dispatch serialization barrier:
// while a configuration reload is in flight, incoming changes are deferred
// to a FIFO queue instead of reaching the dispatcher, so that dispatch never
// observes a half-rebuilt index.
package gate

import (
	"context"
	"sync"

	"github.com/mozilla-l10n/l10nsched/internal/change"
	"golang.org/x/sync/errgroup"
)

// Gate is an {Idle, Reloading} state machine. It is driven exclusively by
// the scheduler's dispatcher under the dispatcher's own lock; the mutex here
// only protects the queue/flag pair against the ops status surface reading
// them concurrently.
type Gate struct {
	mu       sync.Mutex
	inFlight bool
	queue    []change.Change
}

// New returns an idle Gate.
func New() *Gate { return &Gate{} }

// Closed reports whether a reload is currently in flight, i.e. whether a new
// change must be deferred rather than dispatched.
func (g *Gate) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Defer appends c to the pendingChanges queue, to be delivered once
// the in-flight reload (and any reload it triggers in turn) has drained.
func (g *Gate) Defer(c change.Change) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queue = append(g.queue, c)
}

// QueueLen reports the current pendingChanges depth, for the ops surface.
func (g *Gate) QueueLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// BeginReload closes the gate. The caller must release the dispatcher's own
// lock before doing the actual (network-bound) reload work, then reacquire
// it before calling EndReload.
func (g *Gate) BeginReload() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = true
}

// EndReload reopens the gate, then drains pendingChanges by invoking drain
// once per queued change, in arrival order. If a
// drained change causes the caller to begin a new reload synchronously from
// within drain (a nested BeginReload/EndReload pair on this same Gate), this
// loop notices the gate closing again and stops; the nested EndReload call
// resumes draining once its own reload completes, and this loop's next
// iteration (after the nested call returns) picks up any remaining items.
func (g *Gate) EndReload(drain func(change.Change)) {
	g.mu.Lock()
	g.inFlight = false
	g.mu.Unlock()

	for {
		g.mu.Lock()
		if g.inFlight || len(g.queue) == 0 {
			g.mu.Unlock()
			return
		}
		next := g.queue[0]
		g.queue = g.queue[1:]
		g.mu.Unlock()

		drain(next)
	}
}

// RunConcurrentReloads submits one reload per item via submit, waiting for
// all of them to finish (successfully or not) before returning. Unlike a
// plain errgroup.WithContext pipeline, a failure from one submit call must
// not cancel the others, so a bare errgroup.Group is used and ctx is passed
// through unmodified.
func RunConcurrentReloads(ctx context.Context, items []string, submit func(context.Context, string) error) error {
	var eg errgroup.Group
	for _, item := range items {
		item := item
		eg.Go(func() error {
			return submit(ctx, item)
		})
	}
	return eg.Wait()
}
