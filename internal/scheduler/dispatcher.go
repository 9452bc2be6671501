// Package scheduler wires the Tree Registry, Derived Index, Gate, Pending
// Buffer and Buildset Submitter into a dispatcher with a single AddChange
// entry point that classifies, reloads, and schedules comparisons for every
// incoming change.
package scheduler

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/mozilla-l10n/l10nsched/internal/buildset"
	"github.com/mozilla-l10n/l10nsched/internal/change"
	"github.com/mozilla-l10n/l10nsched/internal/gate"
	"github.com/mozilla-l10n/l10nsched/internal/index"
	"github.com/mozilla-l10n/l10nsched/internal/pending"
	"github.com/mozilla-l10n/l10nsched/internal/revision"
	"github.com/mozilla-l10n/l10nsched/internal/tree"
)

// AllLocalesFetcher fetches a tree's all-locales manifest, the asynchronous
// collaborator checkEnUSLocked hands off to on an all-locales fetch trigger.
type AllLocalesFetcher interface {
	FetchAllLocales(ctx context.Context, t tree.Tree, manifestPath string) ([]string, error)
}

// Dispatcher is the core of the scheduler: it has no event-loop goroutine of
// its own, and its callers (the change-source poller and reload paths in
// cmd/l10nsched, or tests) call it directly, serialized by mu. All exported
// methods lock mu; the *Locked family assumes it already held.
type Dispatcher struct {
	mu sync.Mutex

	registry *tree.Registry
	idx      *index.Index

	gate     *gate.Gate
	pending  *pending.Buffer
	submit   buildset.Submitter
	resolve  revision.Resolver
	fetchAll AllLocalesFetcher

	// bg is used for work this Dispatcher schedules onto its own goroutines
	// (the deferred flush, all-locales fetches) that outlives the request
	// context of whichever AddChange call triggered it.
	bg context.Context

	log *log.Logger
}

// Config bundles Dispatcher's collaborators.
type Config struct {
	Registry    *tree.Registry
	Gate        *gate.Gate
	Submitter   buildset.Submitter
	Resolver    revision.Resolver
	AllLocales  AllLocalesFetcher
	Background  context.Context
	Logger      *log.Logger
	// Schedule arranges the zero-delay deferred flush; nil defaults to
	// time.AfterFunc(0, fn) via pending.New.
	Schedule func(func())
}

// New builds a Dispatcher with the index built from the registry's current
// contents. Callers must invoke RebuildIndex again after any later registry
// mutation.
func New(cfg Config) *Dispatcher {
	if cfg.Background == nil {
		cfg.Background = context.Background()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	d := &Dispatcher{
		registry: cfg.Registry,
		idx:      index.Rebuild(cfg.Registry.All()),
		gate:     cfg.Gate,
		submit:   cfg.Submitter,
		resolve:  cfg.Resolver,
		fetchAll: cfg.AllLocales,
		bg:       cfg.Background,
		log:      cfg.Logger,
	}
	d.pending = pending.New(cfg.Schedule)
	return d
}

// RebuildIndex recomputes the derived index from the current registry
// contents. Callers (the tree loader, on startup and after every upsert)
// must call this after mutating the registry and before the next AddChange.
func (d *Dispatcher) RebuildIndex() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rebuildIndexLocked()
}

func (d *Dispatcher) rebuildIndexLocked() {
	d.idx = index.Rebuild(d.registry.All())
}

// ReloadAll engages the Gate around a full-registry reload (the tree
// loader's startup load and its SIGHUP-driven re-read), deferring incoming
// changes until reload runs to completion and the index is rebuilt from the
// result. Without this, a change dispatched mid-reload could be classified
// against a registry that is only half-replaced: some trees already
// upserted, others still stale. reload does the actual work (typically
// driver.LoadAll) and is called with the Dispatcher's lock released, since
// it is network-bound.
func (d *Dispatcher) ReloadAll(ctx context.Context, reload func(ctx context.Context) error) error {
	d.mu.Lock()
	d.gate.BeginReload()
	d.mu.Unlock()

	err := reload(ctx)

	d.mu.Lock()
	d.rebuildIndexLocked()
	d.gate.EndReload(func(dc change.Change) {
		d.dispatchLocked(ctx, dc)
	})
	d.mu.Unlock()

	if err != nil {
		d.log.Printf("scheduler: reload all failed: %v", err)
	}
	return err
}

// QueueDepth reports the Gate's deferred-change backlog, for the ops status
// surface.
func (d *Dispatcher) QueueDepth() int { return d.gate.QueueLen() }

// PendingDepth reports the Pending Buffer's distinct (tree, locale) backlog.
func (d *Dispatcher) PendingDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.Len()
}

// AddChange is the sole entry point: classify, reload if needed, and
// schedule comparisons.
func (d *Dispatcher) AddChange(ctx context.Context, c change.Change) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatchLocked(ctx, c)
}

func (d *Dispatcher) dispatchLocked(ctx context.Context, c change.Change) error {
	if d.gate.Closed() {
		d.gate.Defer(c)
		return nil
	}
	if loc, ok := c.ResolvedLocale(); ok {
		d.handleL10nLocked(c, loc)
		return nil
	}
	return d.handleSourceLocked(ctx, c)
}

func (d *Dispatcher) handleSourceLocked(ctx context.Context, c change.Change) error {
	bi, ok := d.idx.Branch[c.Branch]
	if !ok {
		return nil // not our branch
	}

	var iniTriggers []string
	seen := make(map[string]bool)
	for _, f := range c.Files {
		for _, name := range bi.Inis[f] {
			if !seen[name] {
				seen[name] = true
				iniTriggers = append(iniTriggers, name)
			}
		}
	}

	if len(iniTriggers) == 0 {
		d.checkEnUSLocked(c)
		return nil
	}

	d.gate.BeginReload()
	d.mu.Unlock()
	err := gate.RunConcurrentReloads(ctx, iniTriggers, func(ctx context.Context, treeName string) error {
		return d.submit.SubmitReload(ctx, treeName, c)
	})
	d.mu.Lock()

	// The tree loader's own upsertTree callback (run out-of-band, while mu
	// was released above) is what marks a tree "to-do" in the registry — only
	// when the reload actually produced a different configuration. A
	// reload that re-confirms the same config leaves treesToDo untouched, so
	// checkEnUS below schedules comparisons only from this change's own file
	// matches, not redundantly from the reload trigger itself.
	d.rebuildIndexLocked()
	d.checkEnUSLocked(c)

	d.gate.EndReload(func(dc change.Change) {
		d.dispatchLocked(ctx, dc)
	})

	if err != nil {
		d.log.Printf("scheduler: reload for %v failed: %v", iniTriggers, err)
	}
	return err
}

// checkEnUSLocked applies the en-US change-matching policy: it drains any
// to-do trees, looks for all-locales manifest and "locales/en-US" path
// matches in c's files, and schedules comparisons for every tree reached.
func (d *Dispatcher) checkEnUSLocked(c change.Change) {
	todo := d.registry.DrainTodo()

	bi, ok := d.idx.Branch[c.Branch]
	if !ok {
		d.scheduleForTrees(todo, c)
		return
	}

	toTrigger := make(map[string]bool)
	for _, f := range c.Files {
		if _, ok := bi.AllLocales[f]; ok {
			d.scheduleAllLocalesFetch(f, bi, c)
		}
		if mod, ok := splitEnUSPath(f); ok {
			if mod == "" {
				for name := range bi.TopLevelTrees {
					toTrigger[name] = true
				}
			} else if names, ok := bi.Dirs[mod]; ok {
				for _, name := range names {
					toTrigger[name] = true
				}
			}
		}
	}

	for name := range todo {
		toTrigger[name] = true
	}
	d.scheduleForTrees(toTrigger, c)
}

// splitEnUSPath splits f on its "locales/en-US" substring: mod is the left
// side with any trailing separator stripped. ok is false if f does not
// contain the marker at all.
func splitEnUSPath(f string) (mod string, ok bool) {
	const marker = "locales/en-US"
	idx := strings.Index(f, marker)
	if idx < 0 {
		return "", false
	}
	mod = strings.TrimSuffix(f[:idx], "/")
	return mod, true
}

func (d *Dispatcher) scheduleForTrees(names map[string]bool, c change.Change) {
	for name := range names {
		t, ok := d.registry.Get(name)
		if !ok {
			continue // reload-introduced entry no longer resolves
		}
		for _, loc := range t.Locales {
			d.compareBuildLocked(name, loc, []change.Change{c})
		}
	}
}

// handleL10nLocked handles a locale-repo change: the set of matching trees
// is the union, over every file in the change, of the trees whose l10n
// compare directory is a path prefix of that file.
func (d *Dispatcher) handleL10nLocked(c change.Change, locale string) {
	li, ok := d.idx.L10n[c.Branch]
	if !ok {
		return
	}
	matched := make(map[string]bool)
	for _, f := range c.Files {
		for _, name := range li.TreesForPrefix(f) {
			matched[name] = true
		}
	}
	for name := range matched {
		t, ok := d.registry.Get(name)
		if !ok || !t.HasLocale(locale) {
			continue
		}
		d.compareBuildLocked(name, locale, []change.Change{c})
	}
}

func (d *Dispatcher) compareBuildLocked(treeName, locale string, changes []change.Change) {
	key := pending.Key{Tree: treeName, Locale: locale}
	d.pending.Add(key, changes, d.flush)
}

func (d *Dispatcher) scheduleAllLocalesFetch(manifestPath string, bi *index.BranchIndex, trigger change.Change) {
	for name := range bi.AllLocales[manifestPath] {
		t, ok := d.registry.Get(name)
		if !ok {
			continue
		}
		go d.runAllLocalesFetch(t, manifestPath, trigger)
	}
}

func (d *Dispatcher) runAllLocalesFetch(t tree.Tree, manifestPath string, trigger change.Change) {
	locales, err := d.fetchAll.FetchAllLocales(d.bg, t, manifestPath)
	if err != nil {
		d.log.Printf("scheduler: all-locales fetch for %s failed: %v", t.Name, err)
		return
	}
	d.onAllLocalesFetched(t.Name, locales, trigger)
}

// onAllLocalesFetched runs once an asynchronous all-locales manifest fetch
// completes: newly-added locales get an initial comparison scheduled.
func (d *Dispatcher) onAllLocalesFetched(treeName string, locales []string, trigger change.Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	added := d.registry.UpdateLocales(treeName, locales)
	for _, loc := range added {
		d.compareBuildLocked(treeName, loc, []change.Change{trigger})
	}
}
