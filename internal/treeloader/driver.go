package treeloader

import (
	"context"
	"log"

	"golang.org/x/xerrors"

	"github.com/mozilla-l10n/l10nsched/internal/buildset"
	"github.com/mozilla-l10n/l10nsched/internal/change"
	"github.com/mozilla-l10n/l10nsched/internal/tree"
)

// Driver is the Tree Loader Driver. It implements buildset.Submitter:
// SubmitReload is answered in-process by fetching and parsing the named
// tree's configuration, while SubmitCompare is forwarded unchanged to the
// real outbound Submitter (whatever transport the surrounding build system
// speaks).
type Driver struct {
	Registry  *tree.Registry
	Entries   map[string]Entry
	GitHub    *GitHubFetcher
	HgDefault RepoFetcher
	Compare   buildset.Submitter
	Log       *log.Logger

	// rebuild is called after every registry mutation so the dispatcher's
	// derived index stays current. Wired post-construction via
	// SetRebuilder, to break the Dispatcher/Driver construction cycle: the
	// Dispatcher needs a Submitter (this Driver) before it exists to hand
	// back a rebuild callback.
	rebuild func()
}

var _ buildset.Submitter = (*Driver)(nil)

// SetRebuilder wires the callback invoked after every registry mutation.
func (d *Driver) SetRebuilder(rebuild func()) { d.rebuild = rebuild }

// SubmitCompare forwards to the real outbound Submitter.
func (d *Driver) SubmitCompare(ctx context.Context, bs buildset.BuildSet) error {
	return d.Compare.SubmitCompare(ctx, bs)
}

func (d *Driver) logger() *log.Logger {
	if d.Log != nil {
		return d.Log
	}
	return log.Default()
}

// LoadAll submits one reload per entry, used on startup and on SIGHUP-driven
// registry-file re-reads. It does not clear the registry first: a tree that
// is no longer listed in entries stays registered with its last loaded
// configuration.
func (d *Driver) LoadAll(ctx context.Context, entries []Entry, trigger change.Change) error {
	d.Entries = make(map[string]Entry, len(entries))
	for _, e := range entries {
		d.Entries[e.Name] = e
	}
	var firstErr error
	for _, e := range entries {
		if err := d.SubmitReload(ctx, e.Name, trigger); err != nil {
			d.logger().Printf("treeloader: loading %s: %v", e.Name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SubmitReload implements buildset.Submitter: it is the external
// tree-builder, fetching and parsing treeName's l10n.ini family and
// upserting the resulting Tree.
func (d *Driver) SubmitReload(ctx context.Context, treeName string, trigger change.Change) error {
	entry, ok := d.Entries[treeName]
	if !ok {
		return xerrors.Errorf("treeloader: unknown tree %q", treeName)
	}

	t, err := d.loadTree(ctx, entry)
	if err != nil {
		return xerrors.Errorf("loading tree %s: %w", treeName, err)
	}

	result := d.Registry.Upsert(*t)
	if result.Changed && d.rebuild != nil {
		d.rebuild()
	}
	return nil
}

func (d *Driver) loadTree(ctx context.Context, e Entry) (*tree.Tree, error) {
	fetcher := FetcherFor(e.Repo, d.GitHub, d.HgDefault)

	data, err := fetcher.FetchFile(ctx, e.Repo, e.Mozilla, e.L10nIni)
	if err != nil {
		return nil, xerrors.Errorf("fetching root l10n.ini: %w", err)
	}
	ini, err := ParseL10nIni(data)
	if err != nil {
		return nil, err
	}

	t := &tree.Tree{
		Name:        e.Name,
		Repo:        e.Repo,
		Branches:    map[string]string{"en": e.Mozilla, "l10n": e.L10n},
		Branch2Dirs: map[string][]string{e.Mozilla: append([]string(nil), ini.Dirs...)},
		L10nInis:    map[string][]string{e.Mozilla: {e.L10nIni}},
		TLD:         ini.TLD,
		AllLocales:  ini.All,
	}

	for title, path := range ini.Includes {
		if err := d.loadInclude(ctx, t, e, ini, title, path); err != nil {
			return nil, xerrors.Errorf("loading include %s: %w", title, err)
		}
	}

	locales, err := d.resolveLocales(ctx, e, *t)
	if err != nil {
		return nil, err
	}
	t.Locales = locales

	return t, nil
}

// loadInclude fetches and merges one [includes] entry. A title with a
// matching [include_<title>] section pulls from a foreign repo/branch; all
// other includes are loaded relative to the parent tree's own repo/branch.
func (d *Driver) loadInclude(ctx context.Context, t *tree.Tree, e Entry, parent *L10nIni, title, path string) error {
	repo, branch := e.Repo, e.Mozilla
	if foreign, ok := parent.IncludeRepos[title]; ok {
		repo, branch = foreign.Repo, foreign.Mozilla
		t.Branches[title] = branch
		if foreign.L10nIni != "" {
			path = foreign.L10nIni
		}
	}

	fetcher := FetcherFor(repo, d.GitHub, d.HgDefault)
	data, err := fetcher.FetchFile(ctx, repo, branch, path)
	if err != nil {
		return err
	}
	included, err := ParseL10nIni(data)
	if err != nil {
		return err
	}

	t.Branch2Dirs[branch] = appendDedup(t.Branch2Dirs[branch], included.Dirs)
	t.L10nInis[branch] = appendDedupStr(t.L10nInis[branch], path)

	for nestedTitle, nestedPath := range included.Includes {
		if err := d.loadInclude(ctx, t, e, included, nestedTitle, nestedPath); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) resolveLocales(ctx context.Context, e Entry, t tree.Tree) ([]string, error) {
	if !e.AllLocales {
		return append([]string(nil), e.Locales...), nil
	}
	fetcher := FetcherFor(t.Repo, d.GitHub, d.HgDefault)
	if t.AllLocales != "" {
		data, err := fetcher.FetchFile(ctx, t.Repo, t.EnBranch(), t.AllLocales)
		if err == nil {
			if locales := splitLines(string(data)); len(locales) > 0 {
				return locales, nil
			}
		} else {
			d.logger().Printf("treeloader: all-locales manifest fetch for %s failed, falling back to directory listing: %v", e.Name, err)
		}
	}
	return fetcher.ListLocaleDirs(ctx, t.Repo, t.L10nBranch())
}

func appendDedup(existing []string, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	for _, v := range add {
		if !seen[v] {
			seen[v] = true
			existing = append(existing, v)
		}
	}
	return existing
}

func appendDedupStr(existing []string, add string) []string {
	for _, v := range existing {
		if v == add {
			return existing
		}
	}
	return append(existing, add)
}
