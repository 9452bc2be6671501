package ops

import (
	"net/http"

	"github.com/lpar/gzipped/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mozilla-l10n/l10nsched/internal/tree"
)

// NewMux builds the ops HTTP surface: the status page at "/status",
// Prometheus metrics at "/metrics" (promhttp.Handler(), the pattern
// vjache-cie's --metrics-addr flag wires up), and pre-gzipped static debug
// artifacts (JSON snapshots, buildset dumps) under "/debug/", mirroring
// autobuilder.go's http.FileServer log serving but gzip-aware.
func NewMux(registry *tree.Registry, stats Stats, debugDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/status", &StatusPage{Registry: registry, Stats: stats})
	mux.Handle("/metrics", promhttp.Handler())
	if debugDir != "" {
		mux.Handle("/debug/", http.StripPrefix("/debug/", gzipped.FileServer(gzipped.Dir(debugDir))))
	}
	return mux
}
