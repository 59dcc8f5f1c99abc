// Package metrics exposes Prometheus instrumentation for rebuilds, watch
// filtering, live-reload delivery and HTTP responses.
//
// All Recorder methods are safe to call on a nil receiver, so components can
// be constructed without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ter"

// Rebuild outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Recorder owns a private registry and the collectors registered on it.
type Recorder struct {
	reg *prom.Registry

	rebuildDuration  prom.Histogram
	rebuildOutcomes  *prom.CounterVec
	eventsFiltered   *prom.CounterVec
	reloadClients    prom.Gauge
	reloadBroadcasts prom.Counter
	reloadDropped    prom.Counter
	httpResponses    *prom.CounterVec
}

// New builds a Recorder on reg. A nil reg gets a fresh registry with the Go
// and process collectors attached.
func New(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
		reg.MustRegister(
			promcollect.NewGoCollector(),
			promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}),
		)
	}

	r := &Recorder{
		reg: reg,
		rebuildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "rebuild_duration_seconds",
			Help:      "Duration of watch-triggered rebuilds",
			Buckets:   prom.DefBuckets,
		}),
		rebuildOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "rebuilds_total",
			Help:      "Watch-triggered rebuilds by outcome",
		}, []string{"outcome"}),
		eventsFiltered: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_filtered_total",
			Help:      "Filesystem events discarded before rebuild, by reason",
		}, []string{"reason"}),
		reloadClients: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "livereload_clients",
			Help:      "Currently connected live-reload clients",
		}),
		reloadBroadcasts: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "livereload_broadcasts_total",
			Help:      "Debounced refresh broadcasts sent",
		}),
		reloadDropped: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "livereload_dropped_total",
			Help:      "Refresh messages dropped because a client buffer was full",
		}),
		httpResponses: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_responses_total",
			Help:      "HTTP responses by status code",
		}, []string{"code"}),
	}
	reg.MustRegister(
		r.rebuildDuration, r.rebuildOutcomes, r.eventsFiltered,
		r.reloadClients, r.reloadBroadcasts, r.reloadDropped, r.httpResponses,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveRebuild(d time.Duration, err error) {
	if r == nil {
		return
	}
	r.rebuildDuration.Observe(d.Seconds())
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailed
	}
	r.rebuildOutcomes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) IncEventFiltered(reason string) {
	if r == nil {
		return
	}
	r.eventsFiltered.WithLabelValues(reason).Inc()
}

func (r *Recorder) SetReloadClients(n int) {
	if r == nil {
		return
	}
	r.reloadClients.Set(float64(n))
}

func (r *Recorder) IncReloadBroadcast() {
	if r == nil {
		return
	}
	r.reloadBroadcasts.Inc()
}

func (r *Recorder) IncReloadDropped() {
	if r == nil {
		return
	}
	r.reloadDropped.Inc()
}

func (r *Recorder) IncHTTPResponse(status int) {
	if r == nil {
		return
	}
	r.httpResponses.WithLabelValues(strconv.Itoa(status)).Inc()
}
