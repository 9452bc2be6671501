package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mozilla-l10n/l10nsched/internal/buildset"
	"github.com/mozilla-l10n/l10nsched/internal/change"
	"github.com/mozilla-l10n/l10nsched/internal/gate"
	"github.com/mozilla-l10n/l10nsched/internal/revision"
	"github.com/mozilla-l10n/l10nsched/internal/schedulertest"
	"github.com/mozilla-l10n/l10nsched/internal/tree"
)

// fakeSubmitter is the buildset.Submitter test double. reloadFunc, when set,
// lets a test observe/control the timing of a reload; by default reloads
// succeed immediately.
type fakeSubmitter struct {
	mu         sync.Mutex
	reloads    []string
	compares   []buildset.BuildSet
	reloadFunc func(ctx context.Context, treeName string, trigger change.Change) error
}

func (f *fakeSubmitter) SubmitReload(ctx context.Context, treeName string, trigger change.Change) error {
	f.mu.Lock()
	f.reloads = append(f.reloads, treeName)
	fn := f.reloadFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, treeName, trigger)
	}
	return nil
}

func (f *fakeSubmitter) SubmitCompare(ctx context.Context, bs buildset.BuildSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compares = append(f.compares, bs)
	return nil
}

func (f *fakeSubmitter) comparesFor(treeName, locale string) []buildset.BuildSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []buildset.BuildSet
	for _, bs := range f.compares {
		if bs.Properties["tree"].Value == treeName && bs.Properties["locale"].Value == locale {
			out = append(out, bs)
		}
	}
	return out
}

type fakeResolver struct{}

func (fakeResolver) LatestRevisionOnDefault(context.Context, string, time.Time) (string, error) {
	return revision.Default, nil
}

type fakeAllLocales struct {
	locales []string
}

func (f fakeAllLocales) FetchAllLocales(ctx context.Context, t tree.Tree, manifestPath string) ([]string, error) {
	return f.locales, nil
}

// testSchedule captures the most recently scheduled flush callback and
// signals scheduled whenever a new one arrives, letting tests deterministically
// control when the zero-delay deferred flush "fires" instead of racing a
// real timer.
type testSchedule struct {
	mu        sync.Mutex
	fn        func()
	scheduled chan struct{}
}

func newTestSchedule() *testSchedule {
	return &testSchedule{scheduled: make(chan struct{}, 16)}
}

func (s *testSchedule) hook(fn func()) {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
	select {
	case s.scheduled <- struct{}{}:
	default:
	}
}

func (s *testSchedule) run() {
	s.mu.Lock()
	fn := s.fn
	s.fn = nil
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func baseTree() tree.Tree {
	return tree.Tree{
		Name:        "test",
		Repo:        "http://localhost/",
		Branches:    map[string]string{"en": "test-branch", "l10n": "l10n-test"},
		Branch2Dirs: map[string][]string{"test-branch": {"test-app"}},
		L10nInis:    map[string][]string{"test-branch": {"test-app/locales/l10n.ini"}},
		Locales:     []string{"de", "fr"},
	}
}

func newTestDispatcher(t *testing.T, tr tree.Tree, submitter *fakeSubmitter, allLocales AllLocalesFetcher) (*Dispatcher, *testSchedule) {
	t.Helper()
	reg := tree.NewRegistry()
	reg.Upsert(tr)
	sched := newTestSchedule()
	d := New(Config{
		Registry:   reg,
		Gate:       gate.New(),
		Submitter:  submitter,
		Resolver:   fakeResolver{},
		AllLocales: allLocales,
		Schedule:   sched.hook,
	})
	return d, sched
}

func TestL10nChange(t *testing.T) {
	submitter := &fakeSubmitter{}
	d, sched := newTestDispatcher(t, baseTree(), submitter, fakeAllLocales{})

	c := change.Change{Files: []string{"test-app/file.dtd"}, Branch: "l10n-test", Locale: "de"}
	if err := d.AddChange(context.Background(), c); err != nil {
		t.Fatalf("AddChange: %v", err)
	}

	if got := d.PendingDepth(); got != 1 {
		t.Fatalf("PendingDepth before flush = %d, want 1", got)
	}
	if len(submitter.compares) != 0 {
		t.Fatalf("compares before flush = %d, want 0", len(submitter.compares))
	}

	sched.run()

	got := submitter.comparesFor("test", "de")
	if len(got) != 1 {
		t.Fatalf("compares for (test, de) after flush = %d, want 1", len(got))
	}
	if len(got[0].SourceStamp.Changes) != 1 {
		t.Fatalf("changes in buildset = %d, want 1", len(got[0].SourceStamp.Changes))
	}
}

func TestEnUSChange(t *testing.T) {
	submitter := &fakeSubmitter{}
	d, sched := newTestDispatcher(t, baseTree(), submitter, fakeAllLocales{})

	c := change.Change{Files: []string{"test-app/locales/en-US/file.dtd"}, Branch: "test-branch"}
	if err := d.AddChange(context.Background(), c); err != nil {
		t.Fatalf("AddChange: %v", err)
	}

	if got := d.PendingDepth(); got != 2 {
		t.Fatalf("PendingDepth = %d, want 2", got)
	}

	sched.run()

	for _, locale := range []string{"de", "fr"} {
		got := submitter.comparesFor("test", locale)
		if len(got) != 1 || len(got[0].SourceStamp.Changes) != 1 {
			t.Fatalf("compares for (test, %s) = %+v, want exactly one buildset with one change", locale, got)
		}
	}
}

func TestMixedChanges(t *testing.T) {
	submitter := &fakeSubmitter{}
	d, sched := newTestDispatcher(t, baseTree(), submitter, fakeAllLocales{})
	ctx := context.Background()

	enUS := change.Change{Files: []string{"test-app/locales/en-US/file.dtd"}, Branch: "test-branch"}
	if err := d.AddChange(ctx, enUS); err != nil {
		t.Fatalf("AddChange(enUS): %v", err)
	}
	l10n := change.Change{Files: []string{"test-app/file.dtd"}, Branch: "l10n-test", Locale: "de"}
	if err := d.AddChange(ctx, l10n); err != nil {
		t.Fatalf("AddChange(l10n): %v", err)
	}

	sched.run()

	de := submitter.comparesFor("test", "de")
	if len(de) != 1 || len(de[0].SourceStamp.Changes) != 2 {
		t.Fatalf("compares for (test, de) = %+v, want one buildset with two changes", de)
	}
	fr := submitter.comparesFor("test", "fr")
	if len(fr) != 1 || len(fr[0].SourceStamp.Changes) != 1 {
		t.Fatalf("compares for (test, fr) = %+v, want one buildset with one change", fr)
	}
}

func TestIniChangeTriggersReloadThenEnUS(t *testing.T) {
	submitter := &fakeSubmitter{}
	reloadStarted := make(chan struct{})
	proceed := make(chan struct{})
	submitter.reloadFunc = func(ctx context.Context, treeName string, trigger change.Change) error {
		close(reloadStarted)
		<-proceed
		return nil
	}
	d, sched := newTestDispatcher(t, baseTree(), submitter, fakeAllLocales{})
	ctx := context.Background()

	iniChange := change.Change{Files: []string{"test-app/locales/l10n.ini"}, Branch: "test-branch"}
	done := make(chan error, 1)
	go func() {
		done <- d.AddChange(ctx, iniChange)
	}()

	<-reloadStarted

	// Delivered while the reload is in flight: must defer, not dispatch.
	enUS := change.Change{Files: []string{"test-app/locales/en-US/app.dtd"}, Branch: "test-branch"}
	if err := d.AddChange(ctx, enUS); err != nil {
		t.Fatalf("AddChange(enUS during reload): %v", err)
	}
	if got := d.QueueDepth(); got != 1 {
		t.Fatalf("QueueDepth during reload = %d, want 1", got)
	}

	close(proceed)
	if err := <-done; err != nil {
		t.Fatalf("AddChange(ini): %v", err)
	}

	if got := d.PendingDepth(); got != 2 {
		t.Fatalf("PendingDepth after drain = %d, want 2", got)
	}
	sched.run()

	for _, locale := range []string{"de", "fr"} {
		got := submitter.comparesFor("test", locale)
		if len(got) != 1 || len(got[0].SourceStamp.Changes) != 1 {
			t.Fatalf("compares for (test, %s) = %+v, want exactly one buildset with one change", locale, got)
		}
	}
	submitter.mu.Lock()
	nReloads := len(submitter.reloads)
	submitter.mu.Unlock()
	if nReloads != 1 {
		t.Fatalf("reloads submitted = %d, want 1", nReloads)
	}
}

func TestUnknownBranch(t *testing.T) {
	submitter := &fakeSubmitter{}
	d, _ := newTestDispatcher(t, baseTree(), submitter, fakeAllLocales{})

	c := change.Change{Branch: "other", Files: []string{"x"}}
	if err := d.AddChange(context.Background(), c); err != nil {
		t.Fatalf("AddChange: %v", err)
	}
	if got := d.PendingDepth(); got != 0 {
		t.Fatalf("PendingDepth = %d, want 0", got)
	}
	if len(submitter.compares) != 0 {
		t.Fatalf("compares = %d, want 0", len(submitter.compares))
	}
}

func TestAllLocalesDiscovery(t *testing.T) {
	submitter := &fakeSubmitter{}
	tr := baseTree()
	tr.AllLocales = "app/locales/all-locales"
	d, sched := newTestDispatcher(t, tr, submitter, fakeAllLocales{locales: []string{"de", "fr", "ja"}})

	c := change.Change{Files: []string{"app/locales/all-locales"}, Branch: "test-branch"}
	if err := d.AddChange(context.Background(), c); err != nil {
		t.Fatalf("AddChange: %v", err)
	}

	<-sched.scheduled // the all-locales fetch runs on its own goroutine

	got, ok := d.registry.Get("test")
	if !ok {
		t.Fatalf("tree %q missing from registry", "test")
	}
	schedulertest.EqualStrings(t, got.Locales, []string{"de", "fr", "ja"})

	sched.run()

	ja := submitter.comparesFor("test", "ja")
	if len(ja) != 1 || len(ja[0].SourceStamp.Changes) != 1 {
		t.Fatalf("compares for (test, ja) = %+v, want exactly one buildset with the triggering change", ja)
	}
	if len(submitter.comparesFor("test", "de")) != 0 || len(submitter.comparesFor("test", "fr")) != 0 {
		t.Fatalf("all-locales discovery must only schedule newly added locales")
	}
}
