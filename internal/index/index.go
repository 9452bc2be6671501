// Package index maintains the derived, per-branch lookup structures the
// dispatcher consults on every change: which trees declare a given ini file,
// compare directory, all-locales manifest, or top-level-directory layout.
//
// Indices are a pure function of the tree registry: Rebuild
// recomputes them from scratch on every registry mutation. The registry is
// small (tens of trees), so a full rebuild is cheap and, unlike an
// incremental diff, trivially correct.
package index

import (
	"sort"

	"github.com/mozilla-l10n/l10nsched/internal/tree"
)

// BranchIndex caches, for one source (en-US) branch, which trees are
// reachable through which ini file, compare directory, or all-locales
// manifest, and which trees treat this branch as single-module (tld-based).
type BranchIndex struct {
	Inis          map[string][]string // ini path -> tree names
	Dirs          map[string][]string // compare dir -> tree names
	AllLocales    map[string]map[string]bool // all-locales path -> set of tree names
	TopLevelTrees map[string]bool            // set of tree names
}

func newBranchIndex() *BranchIndex {
	return &BranchIndex{
		Inis:          make(map[string][]string),
		Dirs:          make(map[string][]string),
		AllLocales:    make(map[string]map[string]bool),
		TopLevelTrees: make(map[string]bool),
	}
}

// L10nIndex caches, for one l10n branch, which trees are reachable through
// which compare directory (used for l10n-side dispatch).
type L10nIndex struct {
	Dirs map[string]map[string]bool // compare dir -> set of tree names
}

func newL10nIndex() *L10nIndex {
	return &L10nIndex{Dirs: make(map[string]map[string]bool)}
}

// Index is the full set of derived indices, keyed by branch name. A source
// branch and an l10n branch never share a name in practice, so both maps are
// kept separate rather than merged.
type Index struct {
	Branch map[string]*BranchIndex
	L10n   map[string]*L10nIndex
}

// Rebuild recomputes the full Index from the given trees. Directory and ini
// entries are deduplicated per tree: a tree whose includes repeat a
// directory, or that is loaded twice, contributes at most one entry per key.
func Rebuild(trees []tree.Tree) *Index {
	idx := &Index{
		Branch: make(map[string]*BranchIndex),
		L10n:   make(map[string]*L10nIndex),
	}

	branchOf := func(b string) *BranchIndex {
		bi, ok := idx.Branch[b]
		if !ok {
			bi = newBranchIndex()
			idx.Branch[b] = bi
		}
		return bi
	}
	l10nOf := func(b string) *L10nIndex {
		li, ok := idx.L10n[b]
		if !ok {
			li = newL10nIndex()
			idx.L10n[b] = li
		}
		return li
	}

	for _, t := range trees {
		for branch, dirs := range t.Branch2Dirs {
			bi := branchOf(branch)
			for _, d := range dirs {
				appendUnique(bi.Dirs, d, t.Name)
				if l10nBranch := t.L10nBranch(); l10nBranch != "" {
					addToSet(l10nOf(l10nBranch).Dirs, d, t.Name)
				}
			}
		}
		for branch, inis := range t.L10nInis {
			bi := branchOf(branch)
			for _, ini := range inis {
				appendUnique(bi.Inis, ini, t.Name)
			}
		}
		if t.TLD != "" {
			if l10nBranch := t.L10nBranch(); l10nBranch != "" {
				li := l10nOf(l10nBranch)
				addToSet(li.Dirs, t.TLD, t.Name)
			}
			if enBranch := t.EnBranch(); enBranch != "" {
				bi := branchOf(enBranch)
				bi.TopLevelTrees[t.Name] = true
			}
		}
		if t.AllLocales != "" {
			if enBranch := t.EnBranch(); enBranch != "" {
				bi := branchOf(enBranch)
				addToSet(bi.AllLocales, t.AllLocales, t.Name)
			}
		}
	}

	return idx
}

func appendUnique(m map[string][]string, key, name string) {
	for _, existing := range m[key] {
		if existing == name {
			return
		}
	}
	m[key] = append(m[key], name)
}

func addToSet(m map[string]map[string]bool, key, name string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]bool)
		m[key] = set
	}
	set[name] = true
}

// TreesForPrefix returns the tree names whose l10n compare directory is a
// path prefix of f, sorted for determinism.
func (li *L10nIndex) TreesForPrefix(f string) []string {
	if li == nil {
		return nil
	}
	seen := make(map[string]bool)
	for dir, set := range li.Dirs {
		if dir == f || hasPathPrefix(f, dir) {
			for n := range set {
				seen[n] = true
			}
		}
	}
	return sortedKeys(seen)
}

func hasPathPrefix(f, dir string) bool {
	return len(f) > len(dir) && f[:len(dir)] == dir && f[len(dir)] == '/'
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
