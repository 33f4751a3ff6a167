// Package metrics records import, retry and token refresh metrics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

var (
	_ driven.Metrics = (*Prometheus)(nil)
	_ driven.Metrics = Nop{}
)

const namespace = "sercha_connect"

// Prometheus implements driven.Metrics with collectors on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	itemsTotal      *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	refreshTotal    *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_runs_total",
			Help:      "Import runs by final state and abort reason.",
		}, []string{"provider", "kind", "state", "reason"}),
		itemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_items_total",
			Help:      "Items processed by import runs.",
		}, []string{"provider", "kind", "outcome"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_run_duration_seconds",
			Help:      "Wall-clock duration of import runs.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"provider", "kind"}),
		retriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Retried provider list and fetch calls by error kind.",
		}, []string{"provider", "error_kind"}),
		refreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Token refresh attempts by outcome.",
		}, []string{"provider", "outcome"}),
		refreshDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "token_refresh_duration_seconds",
			Help:      "Latency of token refresh attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry the collectors live on.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// ObserveRun records a finished import run.
func (p *Prometheus) ObserveRun(r *domain.ImportReport) {
	provider, kind := string(r.Provider), string(r.Selector.Kind)
	p.runsTotal.WithLabelValues(provider, kind, string(r.State), string(r.AbortReason)).Inc()
	p.itemsTotal.WithLabelValues(provider, kind, "inserted").Add(float64(r.Inserted))
	p.itemsTotal.WithLabelValues(provider, kind, "updated").Add(float64(r.Updated))
	p.itemsTotal.WithLabelValues(provider, kind, "failed").Add(float64(r.Failed))
	if !r.FinishedAt.IsZero() {
		p.runDuration.WithLabelValues(provider, kind).Observe(r.Duration().Seconds())
	}
}

// ObserveItemRetry records one retried provider call.
func (p *Prometheus) ObserveItemRetry(provider domain.ProviderType, kind domain.ErrorKind) {
	p.retriesTotal.WithLabelValues(string(provider), string(kind)).Inc()
}

// ObserveRefresh records a token refresh attempt.
func (p *Prometheus) ObserveRefresh(provider domain.ProviderType, outcome string, d time.Duration) {
	p.refreshTotal.WithLabelValues(string(provider), outcome).Inc()
	p.refreshDuration.WithLabelValues(string(provider)).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Middleware records request counts and latencies labelled by chi route pattern.
func (p *Prometheus) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		p.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		p.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// Nop discards all observations.
type Nop struct{}

// ObserveRun implements driven.Metrics.
func (Nop) ObserveRun(*domain.ImportReport) {}

// ObserveItemRetry implements driven.Metrics.
func (Nop) ObserveItemRetry(domain.ProviderType, domain.ErrorKind) {}

// ObserveRefresh implements driven.Metrics.
func (Nop) ObserveRefresh(domain.ProviderType, string, time.Duration) {}
