// Package buildset defines the outbound unit of work the scheduler submits
// to the external build system, and the Submitter extension point a
// production deployment wires to its actual transport.
//
// Buildsets are serialized with encoding/json rather than a protobuf wire
// format: there is no fixed schema this domain's build systems agree on.
package buildset

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/mozilla-l10n/l10nsched/internal/change"
)

// Property is a (value, source) pair, matching buildbot's convention of
// recording which component set a given property.
type Property struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// SourceStamp carries the branch the buildset applies to, the changes that
// triggered it, and (for reload buildsets only) an optional resolved
// revision.
type SourceStamp struct {
	Branch   string          `json:"branch"`
	Changes  []change.Change `json:"changes"`
	Revision string          `json:"revision,omitempty"`
}

// BuildSet is the outbound unit of work submitted to the build system.
type BuildSet struct {
	Builders    []string            `json:"builders"`
	SourceStamp SourceStamp         `json:"source_stamp"`
	Properties  map[string]Property `json:"properties"`
	Reason      string              `json:"reason,omitempty"`
}

// Marshal serializes b with encoding/json.
func (b BuildSet) Marshal() ([]byte, error) {
	return json.Marshal(b)
}

// SetProperty sets a buildset property with the given source label
// ("Scheduler" or "TreeLoader", naming the component that set it).
func (b *BuildSet) SetProperty(name, value, source string) {
	if b.Properties == nil {
		b.Properties = make(map[string]Property)
	}
	b.Properties[name] = Property{Value: value, Source: source}
}

// SortedPropertyNames returns the buildset's property names in order, for
// deterministic output such as in tests.
func (b BuildSet) SortedPropertyNames() []string {
	names := make([]string, 0, len(b.Properties))
	for n := range b.Properties {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Submitter submits buildsets to the external build system. Comparison and
// reload are split into separate methods because reload buildsets must be
// *awaited* by the Gate while comparison buildsets are fire-and-forget
// from the scheduler's perspective.
type Submitter interface {
	// SubmitReload submits a tree-configuration-reload buildset for tree
	// name, carrying trigger in its source stamp, and blocks until the
	// external tree builder reports completion (success or failure).
	SubmitReload(ctx context.Context, treeName string, trigger change.Change) error

	// SubmitCompare submits a locale-comparison buildset and returns once
	// the external build system has accepted it (not once the comparison
	// itself has finished).
	SubmitCompare(ctx context.Context, bs BuildSet) error
}
