package ops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mozilla-l10n/l10nsched/internal/tree"
)

type fakeStats struct {
	queue, pending int
}

func (f fakeStats) QueueDepth() int   { return f.queue }
func (f fakeStats) PendingDepth() int { return f.pending }

func TestStatusPageRendersTrees(t *testing.T) {
	reg := tree.NewRegistry()
	reg.Upsert(tree.Tree{
		Name:     "test",
		Branches: map[string]string{"en": "test-branch", "l10n": "l10n-test"},
		Locales:  []string{"de", "fr"},
	})
	page := &StatusPage{Registry: reg, Stats: fakeStats{queue: 1, pending: 2}}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	page.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"test-branch", "l10n-test", "pending buffer depth: 2", "gate queue depth: 1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("status page missing %q:\n%s", want, body)
		}
	}
}

func TestWriteSnapshotIsValidJSON(t *testing.T) {
	reg := tree.NewRegistry()
	reg.Upsert(tree.Tree{Name: "test", Locales: []string{"de"}})

	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	snap := BuildSnapshot(reg, fakeStats{queue: 3, pending: 4})
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if got.PendingDepth != 4 || got.GateQueueDepth != 3 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if len(got.Trees) != 1 || got.Trees[0].Name != "test" {
		t.Fatalf("unexpected trees in snapshot: %+v", got.Trees)
	}
}

func TestNewMuxServesStatusAndMetrics(t *testing.T) {
	reg := tree.NewRegistry()
	mux := NewMux(reg, fakeStats{}, "")

	for _, path := range []string{"/status", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}
