// Package change defines the immutable Change record ingested by the
// scheduler and the tagged "locale origin" lookup the dispatcher uses to
// classify it.
package change

import "sort"

// Change is a single commit/push record, normalized by the (external) change
// source before it reaches the dispatcher.
type Change struct {
	Number     int64
	Who        string
	Revision   string
	Comment    string
	Timestamp  float64 // UTC seconds, sub-second precision; 0 means "unknown"
	Branch     string
	Files      []string
	Locale     string            // set directly when the change source already knows the locale
	Properties map[string]string // historical fallback: locale may live in properties["locale"] or properties["loc"]
}

// localeOrigin records how a Change's locale was determined: the direct
// Locale field takes priority, falling back to the Properties bag. It is
// resolved once at dispatch entry.
type localeOrigin int

const (
	localeAbsent localeOrigin = iota
	localePresent
	localeFromProperties
)

// ResolvedLocale returns the change's locale and whether one was found at
// all (directly or via the properties bag). An l10n change is one for which
// ok is true; a source (en-US) change is one for which ok is false.
func (c Change) ResolvedLocale() (locale string, ok bool) {
	origin, loc := c.resolveLocale()
	return loc, origin != localeAbsent
}

func (c Change) resolveLocale() (localeOrigin, string) {
	if c.Locale != "" {
		return localePresent, c.Locale
	}
	for _, key := range []string{"locale", "loc"} {
		if v, ok := c.Properties[key]; ok && v != "" {
			return localeFromProperties, v
		}
	}
	return localeAbsent, ""
}

// HasFile reports whether f is among the change's touched files.
func (c Change) HasFile(f string) bool {
	for _, got := range c.Files {
		if got == f {
			return true
		}
	}
	return false
}

// LatestTimestamp returns the maximum non-zero Timestamp across changes, and
// false if none of them carry a timestamp. Used by the buildset submitter to
// compute the revision-resolution cutoff for a flush key.
func LatestTimestamp(changes []Change) (when float64, ok bool) {
	for _, c := range changes {
		if c.Timestamp == 0 {
			continue
		}
		if !ok || c.Timestamp > when {
			when = c.Timestamp
			ok = true
		}
	}
	return when, ok
}

// SortedFiles returns a copy of files in ascending order, for callers that
// need deterministic iteration (such as tests).
func SortedFiles(files []string) []string {
	out := make([]string, len(files))
	copy(out, files)
	sort.Strings(out)
	return out
}
