// Package changesource implements the default ChangeSource: it polls a
// pushlog-style JSON HTTP endpoint on an interval and submits one Change per
// changeset to the dispatcher, classifying each push's repository as a
// source or locale branch.
package changesource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/mozilla-l10n/l10nsched/internal/change"
)

// AddChangeFunc is the dispatcher's ingestion entrypoint
// (scheduler.Dispatcher.AddChange), injected rather than imported directly
// so this package never depends on package scheduler.
type AddChangeFunc func(ctx context.Context, c change.Change) error

// changesetEntry mirrors one changeset of a pushlog-style json-pushes entry.
type changesetEntry struct {
	Node   string   `json:"node"`
	Branch string   `json:"branch"`
	Desc   string   `json:"desc"`
	Files  []string `json:"files"`
}

// pushEntry mirrors one push: a repository plus the changesets it carried.
type pushEntry struct {
	Repo       string           `json:"repo"`
	User       string           `json:"user"`
	Date       int64            `json:"date"`
	Changesets []changesetEntry `json:"changesets"`
}

// Poller is the default ChangeSource. It tracks the last-seen push id and,
// on every tick, classifies each new push's repository as one of the
// watched source branches or a locale repository named "<branch>/<locale>".
type Poller struct {
	// BaseURL is the pushlog root, e.g. "https://hg.mozilla.org".
	BaseURL string
	// Branches are the source branch names this poller watches.
	Branches []string
	Client   *http.Client
	// Interval between polls; defaults to 30s.
	Interval  time.Duration
	AddChange AddChangeFunc
	Log       *log.Logger

	latest int64 // last-seen push id
	seeded bool  // set once the first poll has seeded latest (possibly to 0)
}

func (p *Poller) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *Poller) interval() time.Duration {
	if p.Interval > 0 {
		return p.Interval
	}
	return 30 * time.Second
}

func (p *Poller) logger() *log.Logger {
	if p.Log != nil {
		return p.Log
	}
	return log.Default()
}

// Run polls until ctx is canceled: poll once immediately, then once per
// Interval.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()
	for {
		p.poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll is one polling tick. The first call only seeds the last-seen push id
// — no backlog is replayed on startup. A failed poll logs and keeps the
// existing checkpoint for the next tick.
func (p *Poller) poll(ctx context.Context) {
	if !p.seeded && p.latest == 0 {
		id, err := p.seedLatest(ctx)
		if err != nil {
			p.logger().Printf("changesource: seeding last-seen push id: %v", err)
			return
		}
		p.latest = id
		p.seeded = true
		return
	}

	pushes, err := p.fetchPushesSince(ctx, p.latest)
	if err != nil {
		p.logger().Printf("changesource: poll failed, keeping checkpoint at %d: %v", p.latest, err)
		return
	}

	ids := make([]int64, 0, len(pushes))
	for id := range pushes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		p.submitChangesForPush(ctx, pushes[id])
		p.latest = id
	}
}

func (p *Poller) seedLatest(ctx context.Context) (int64, error) {
	pushes, err := p.fetchPushesSince(ctx, 0)
	if err != nil {
		return 0, err
	}
	var max int64
	for id := range pushes {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (p *Poller) fetchPushesSince(ctx context.Context, startID int64) (map[int64]pushEntry, error) {
	u := fmt.Sprintf("%s/json-pushes?full=1&startID=%d", trimSlash(p.BaseURL), startID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.Errorf("%s: HTTP %s", u, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}

	var raw map[string]pushEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, xerrors.Errorf("parsing json-pushes response: %w", err)
	}
	out := make(map[int64]pushEntry, len(raw))
	for idStr, entry := range raw {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		if id > startID {
			out[id] = entry
		}
	}
	return out, nil
}

// submitChangesForPush classifies push.Repo and calls AddChange once per
// changeset. A push whose repository matches none of the watched branches is
// silently ignored.
func (p *Poller) submitChangesForPush(ctx context.Context, push pushEntry) {
	branch, locale, ok := p.classify(push.Repo)
	if !ok {
		return
	}
	for _, cs := range push.Changesets {
		c := change.Change{
			Who:       push.User,
			Revision:  cs.Node,
			Comment:   cs.Desc,
			Timestamp: float64(push.Date),
			Branch:    branch,
			Files:     append([]string(nil), cs.Files...),
		}
		if locale != "" {
			c.Locale = locale
		}
		if err := p.AddChange(ctx, c); err != nil {
			p.logger().Printf("changesource: dispatching change on %s: %v", branch, err)
		}
	}
}

// classify reports whether repo is a watched source branch or one of its
// locale repositories ("<branch>/<locale>").
func (p *Poller) classify(repo string) (branch, locale string, ok bool) {
	for _, b := range p.Branches {
		if repo == b {
			return b, "", true
		}
		if strings.HasPrefix(repo, b+"/") {
			return b, strings.TrimPrefix(repo, b+"/"), true
		}
	}
	return "", "", false
}

func trimSlash(s string) string {
	return strings.TrimSuffix(s, "/")
}
