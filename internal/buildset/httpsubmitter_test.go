package buildset

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mozilla-l10n/l10nsched/internal/change"
)

func TestHTTPSubmitterSubmitCompare(t *testing.T) {
	var gotPath string
	var gotBody BuildSet
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &HTTPSubmitter{BaseURL: srv.URL}
	bs := BuildSet{Builders: []string{"compare"}}
	bs.SetProperty("tree", "test", "Scheduler")

	if err := s.SubmitCompare(context.Background(), bs); err != nil {
		t.Fatalf("SubmitCompare: %v", err)
	}
	if gotPath != "/compare" {
		t.Fatalf("path = %q, want /compare", gotPath)
	}
	if gotBody.Properties["tree"].Value != "test" {
		t.Fatalf("posted body missing tree property: %+v", gotBody)
	}
}

func TestHTTPSubmitterSubmitReload(t *testing.T) {
	var gotBody BuildSet
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &HTTPSubmitter{BaseURL: srv.URL}
	trigger := change.Change{Branch: "mozilla-central", Revision: "abc"}
	if err := s.SubmitReload(context.Background(), "test", trigger); err != nil {
		t.Fatalf("SubmitReload: %v", err)
	}
	if gotBody.Properties["tree"].Value != "test" {
		t.Fatalf("posted body missing tree property: %+v", gotBody)
	}
	if gotBody.SourceStamp.Branch != "mozilla-central" {
		t.Fatalf("posted body has wrong branch: %+v", gotBody.SourceStamp)
	}
}

func TestHTTPSubmitterPropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "build system unavailable"})
	}))
	defer srv.Close()

	s := &HTTPSubmitter{BaseURL: srv.URL}
	err := s.SubmitCompare(context.Background(), BuildSet{})
	if err == nil {
		t.Fatalf("SubmitCompare returned nil error for a 500 response")
	}
}
