// Command l10nsched runs the l10n build scheduler: it loads a tree registry,
// polls a change source, and dispatches incoming changes into comparison
// and reload buildsets, following cmd/autobuilder's flag-driven, single
// long-running-process shape.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	l10nsched "github.com/mozilla-l10n/l10nsched"
	"github.com/mozilla-l10n/l10nsched/internal/buildset"
	"github.com/mozilla-l10n/l10nsched/internal/change"
	"github.com/mozilla-l10n/l10nsched/internal/changesource"
	"github.com/mozilla-l10n/l10nsched/internal/gate"
	"github.com/mozilla-l10n/l10nsched/internal/ops"
	"github.com/mozilla-l10n/l10nsched/internal/revision"
	"github.com/mozilla-l10n/l10nsched/internal/scheduler"
	"github.com/mozilla-l10n/l10nsched/internal/tree"
	"github.com/mozilla-l10n/l10nsched/internal/treeloader"
)

var (
	registryFile = flag.String("registry_file", "", "path to the tree-registry INI file")
	pushlogBase  = flag.String("pushlog_base", "https://hg.mozilla.org", "pushlog root the change source polls")
	branches     = flag.String("branches", "", "comma-separated source branch names the change source watches")
	buildBase    = flag.String("build_base", "", "base URL of the external build system's buildset intake")
	githubToken  = flag.String("github_access_token", "", "oauth2 GitHub access token, for trees hosted on github.com")
	listenAddr   = flag.String("listen", ":8080", "address for the ops status/metrics HTTP surface")
	snapshotFile = flag.String("snapshot_file", "", "path for the atomically-written JSON status snapshot; disabled if empty")
	pollInterval = flag.Duration("poll_interval", 30*time.Second, "change-source poll interval")
)

func main() {
	flag.Parse()
	ctx, canc := l10nsched.InterruptibleContext()
	defer canc()

	if *registryFile == "" {
		log.Fatal("-registry_file is required")
	}
	if *buildBase == "" {
		log.Fatal("-build_base is required")
	}

	registry := tree.NewRegistry()

	var gh *treeloader.GitHubFetcher
	if *githubToken != "" {
		gh = treeloader.NewGitHubFetcher(ctx, *githubToken)
	}

	driver := &treeloader.Driver{
		Registry:  registry,
		GitHub:    gh,
		HgDefault: &treeloader.HgFetcher{},
		Compare:   &buildset.HTTPSubmitter{BaseURL: *buildBase},
		Log:       log.Default(),
	}

	d := scheduler.New(scheduler.Config{
		Registry:   registry,
		Gate:       gate.New(),
		Submitter:  driver,
		Resolver:   &revision.HTTPResolver{BaseURL: *pushlogBase},
		AllLocales: &treeloader.AllLocalesService{GitHub: gh, HgDefault: &treeloader.HgFetcher{}},
		Background: ctx,
		Logger:     log.Default(),
		Schedule:   func(fn func()) { time.AfterFunc(0, fn) },
	})
	driver.SetRebuilder(d.RebuildIndex)

	entries, err := treeloader.LoadRegistryFile(*registryFile)
	if err != nil {
		log.Fatalf("loading tree registry %s: %v", *registryFile, err)
	}
	if err := d.ReloadAll(ctx, func(ctx context.Context) error {
		return driver.LoadAll(ctx, entries, change.Change{})
	}); err != nil {
		log.Printf("initial tree load: %v", err)
	}

	poller := &changesource.Poller{
		BaseURL:   *pushlogBase,
		Branches:  splitBranches(*branches),
		Interval:  *pollInterval,
		AddChange: func(c context.Context, ch change.Change) error { return d.AddChange(c, ch) },
		Log:       log.Default(),
	}
	go poller.Run(ctx)

	mux := ops.NewMux(registry, d, "")
	srv := &http.Server{Addr: *listenAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("ops: %v", err)
		}
	}()
	go ops.PollGauges(ctx, d, 5*time.Second)

	if *snapshotFile != "" {
		done := make(chan struct{})
		go func() {
			<-ctx.Done()
			close(done)
		}()
		go ops.RunSnapshotLoop(done, *snapshotFile, registry, d, 30*time.Second, func(err error) {
			log.Printf("ops: writing snapshot: %v", err)
		})
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	for {
		select {
		case <-ctx.Done():
			l10nsched.RunAtExit()
			return
		case <-hup:
			newEntries, err := treeloader.LoadRegistryFile(*registryFile)
			if err != nil {
				log.Printf("reloading tree registry: %v", err)
				continue
			}
			if err := d.ReloadAll(ctx, func(ctx context.Context) error {
				return driver.LoadAll(ctx, newEntries, change.Change{})
			}); err != nil {
				log.Printf("reloading trees: %v", err)
			}
		}
	}
}

func splitBranches(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}
