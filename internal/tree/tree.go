// Package tree holds the Tree registry: the product/branch/locale
// configurations the scheduler dispatches changes against.
package tree

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Tree is a named product/branch configuration.
type Tree struct {
	Name string

	// Repo is the base URL of the source repository host, e.g.
	// "https://hg.mozilla.org/".
	Repo string

	// Branches maps a role ("en", "l10n", and any foreign roles pulled in by
	// includes, e.g. "toolkit") to a branch name.
	Branches map[string]string

	// L10nInis maps a source branch to the list of l10n.ini paths declared
	// for it (the base ini plus any includes).
	L10nInis map[string][]string

	// Branch2Dirs maps a source branch to the list of compare directories
	// declared for it.
	Branch2Dirs map[string][]string

	// TLD is the single top-level directory for "single-module" products
	// (e.g. mobile). Empty means not a single-module product.
	TLD string

	// AllLocales is the path, within the source branch, of the all-locales
	// manifest. Empty means the tree has none.
	AllLocales string

	// Locales is the list of locale codes known to belong to this tree.
	Locales []string
}

// equalOpts excludes nothing at the moment: every field above participates in
// structural equality. It exists as an extension point should Tree later grow
// bookkeeping-only fields that must be excluded (the "to-do" marker lives in
// the Registry, not on Tree itself, precisely to keep this comparison simple).
var equalOpts = []cmp.Option{
	cmpopts.EquateEmpty(),
}

// Equal reports whether t and other describe the same configuration: two
// Trees compare equal iff every field above matches.
func (t Tree) Equal(other Tree) bool {
	return cmp.Equal(t, other, equalOpts...)
}

// Clone returns a deep copy of t, so callers can safely mutate Locales etc.
// without aliasing registry state.
func (t Tree) Clone() Tree {
	out := t
	out.Branches = cloneMap(t.Branches)
	out.L10nInis = cloneSliceMap(t.L10nInis)
	out.Branch2Dirs = cloneSliceMap(t.Branch2Dirs)
	out.Locales = append([]string(nil), t.Locales...)
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSliceMap(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// EnBranch returns the tree's source (en-US) branch name.
func (t Tree) EnBranch() string { return t.Branches["en"] }

// L10nBranch returns the tree's locale branch name.
func (t Tree) L10nBranch() string { return t.Branches["l10n"] }

// HasLocale reports whether loc is among the tree's known locales.
func (t Tree) HasLocale(loc string) bool {
	for _, l := range t.Locales {
		if l == loc {
			return true
		}
	}
	return false
}

// FirstIni returns the first l10n.ini path declared for branch b, or "" if
// none. Used to populate the "l10n.ini" buildset property.
func (t Tree) FirstIni(branch string) string {
	inis := t.L10nInis[branch]
	if len(inis) == 0 {
		return ""
	}
	return inis[0]
}
