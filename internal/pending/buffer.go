// Package pending implements the Pending Buffer: the accumulation point
// between compareBuild calls and the deferred, coalesced flush that turns
// them into buildsets.
package pending

import (
	"sort"
	"sync"
	"time"

	"github.com/mozilla-l10n/l10nsched/internal/change"
)

// Key identifies one (tree, locale) pending entry.
type Key struct {
	Tree   string
	Locale string
}

// Buffer accumulates changes per (tree, locale) key and coalesces bursts of
// Add calls into a single scheduled flush. The scheduled flush runs on
// whatever goroutine the schedule hook uses (a timer goroutine in
// production), so mu guards entries and flushScheduled against concurrent
// Add and Len calls; onFlush itself runs without mu held.
type Buffer struct {
	mu      sync.Mutex
	entries map[Key][]change.Change

	flushScheduled bool
	// schedule is the hook used to arrange a zero-delay callback; tests wire
	// it to an immediately-or-manually-invoked stub to get deterministic
	// flushes.
	schedule func(fn func())
}

// New returns an empty Buffer. schedule arranges for fn to run "soon" as a
// zero-delay deferred flush; pass nil to default to time.AfterFunc(0, fn),
// the production behavior.
func New(schedule func(fn func())) *Buffer {
	if schedule == nil {
		schedule = func(fn func()) { time.AfterFunc(0, fn) }
	}
	return &Buffer{
		entries:  make(map[Key][]change.Change),
		schedule: schedule,
	}
}

// Add appends changes to the (tree, locale) entry and, if no flush is
// currently scheduled, arranges one via the buffer's schedule hook. onFlush
// is called exactly once per scheduled flush, with a snapshot of the buffer
// taken at flush time: a flush clears the buffer atomically from the
// dispatcher's standpoint.
func (b *Buffer) Add(key Key, changes []change.Change, onFlush func(map[Key][]change.Change)) {
	b.mu.Lock()
	b.entries[key] = append(b.entries[key], changes...)
	if b.flushScheduled {
		b.mu.Unlock()
		return
	}
	b.flushScheduled = true
	b.mu.Unlock()

	b.schedule(func() {
		b.mu.Lock()
		b.flushScheduled = false
		snapshot := b.entries
		b.entries = make(map[Key][]change.Change)
		b.mu.Unlock()
		onFlush(snapshot)
	})
}

// Len returns the number of distinct (tree, locale) keys currently pending,
// without triggering a flush. Used by the ops status surface.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// SortedKeys returns snapshot's keys sorted by (tree, locale), the order in
// which the flush logic submits buildsets.
func SortedKeys(snapshot map[Key][]change.Change) []Key {
	out := make([]Key, 0, len(snapshot))
	for k := range snapshot {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tree != out[j].Tree {
			return out[i].Tree < out[j].Tree
		}
		return out[i].Locale < out[j].Locale
	})
	return out
}
