package ops

import (
	"encoding/json"
	"time"

	"github.com/google/renameio"

	"github.com/mozilla-l10n/l10nsched/internal/tree"
)

// Snapshot is the JSON state snapshot written to disk for operators and
// debugging tools, generalizing autobuilder.go's renameio.Symlink pattern
// (there used to atomically update a "latest build" symlink) to an
// atomically-written JSON file.
type Snapshot struct {
	Trees          []tree.Tree `json:"trees"`
	PendingDepth   int         `json:"pending_depth"`
	GateQueueDepth int         `json:"gate_queue_depth"`
	Written        time.Time   `json:"written"`
}

// BuildSnapshot captures the current registry/dispatcher state.
func BuildSnapshot(registry *tree.Registry, stats Stats) Snapshot {
	return Snapshot{
		Trees:          registry.All(),
		PendingDepth:   stats.PendingDepth(),
		GateQueueDepth: stats.QueueDepth(),
		Written:        time.Now(),
	}
}

// WriteSnapshot atomically writes snap as JSON to path, via a temp file plus
// rename so a concurrent reader (or a crash mid-write) never observes a
// truncated file.
func WriteSnapshot(path string, snap Snapshot) error {
	enc, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, enc, 0644)
}

// RunSnapshotLoop writes a fresh snapshot to path every interval, until done
// is closed.
func RunSnapshotLoop(done <-chan struct{}, path string, registry *tree.Registry, stats Stats, interval time.Duration, onError func(error)) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := WriteSnapshot(path, BuildSnapshot(registry, stats)); err != nil && onError != nil {
			onError(err)
		}
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}
