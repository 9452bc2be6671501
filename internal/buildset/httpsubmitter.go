package buildset

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"golang.org/x/xerrors"

	"github.com/mozilla-l10n/l10nsched/internal/change"
)

// HTTPSubmitter is the default Submitter: it POSTs a JSON-encoded buildset
// to the external build system over plain HTTP.
type HTTPSubmitter struct {
	// BaseURL is the build system's buildset-intake root, e.g.
	// "https://buildbot.example.org/buildsets".
	BaseURL string
	Client  *http.Client
}

func (s *HTTPSubmitter) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

// SubmitReload posts a reload buildset carrying trigger in its source stamp
// and the tree name as a "tree" property, blocking until the build system
// accepts (and, per its own contract, completes) the request.
func (s *HTTPSubmitter) SubmitReload(ctx context.Context, treeName string, trigger change.Change) error {
	bs := BuildSet{
		Builders: []string{"reload"},
		SourceStamp: SourceStamp{
			Branch:  trigger.Branch,
			Changes: []change.Change{trigger},
		},
		Reason: "tree configuration reload",
	}
	bs.SetProperty("tree", treeName, "TreeLoader")
	return s.post(ctx, "/reload", bs)
}

// SubmitCompare posts a locale-comparison buildset.
func (s *HTTPSubmitter) SubmitCompare(ctx context.Context, bs BuildSet) error {
	return s.post(ctx, "/compare", bs)
}

func (s *HTTPSubmitter) post(ctx context.Context, path string, bs BuildSet) error {
	body, err := bs.Marshal()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client().Do(req)
	if err != nil {
		return xerrors.Errorf("submitting buildset to %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		var detail struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&detail)
		return xerrors.Errorf("%s: HTTP %s: %s", path, resp.Status, detail.Error)
	}
	return nil
}
