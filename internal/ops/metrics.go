// Package ops is the scheduler's status/ops surface: an HTTP status page,
// Prometheus metrics, and an atomically-written JSON state snapshot.
package ops

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pendingDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "l10nsched_pending_buffer_depth",
		Help: "Number of (tree, locale) keys currently buffered in the pending buffer.",
	})
	gateQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "l10nsched_gate_queue_depth",
		Help: "Number of changes currently deferred behind the reload gate.",
	})
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "l10nsched_dispatch_total",
		Help: "Total AddChange calls, labeled by outcome.",
	}, []string{"outcome"})
	reloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "l10nsched_reload_duration_seconds",
		Help:    "Wall-clock duration of tree-configuration reload buildsets.",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordDispatch increments the dispatch counter for one AddChange call.
func RecordDispatch(err error) {
	if err != nil {
		dispatchTotal.WithLabelValues("error").Inc()
		return
	}
	dispatchTotal.WithLabelValues("ok").Inc()
}

// ObserveReloadDuration records how long one SubmitReload call took.
func ObserveReloadDuration(d time.Duration) {
	reloadDuration.Observe(d.Seconds())
}

// Stats is the subset of scheduler.Dispatcher's accessors the ops surface
// polls; kept as a local interface so this package never imports package
// scheduler (avoiding a dependency the status/metrics surface doesn't need
// on the dispatcher's internals).
type Stats interface {
	QueueDepth() int
	PendingDepth() int
}

// PollGauges updates the gate/pending gauges from s every interval, until ctx
// is canceled. Run as a background goroutine alongside the dispatcher.
func PollGauges(ctx context.Context, s Stats, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		gateQueueDepth.Set(float64(s.QueueDepth()))
		pendingDepth.Set(float64(s.PendingDepth()))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
