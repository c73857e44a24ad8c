// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. Every instance owns its registry.
type Metrics struct {
	Registry *prometheus.Registry

	Events       *prometheus.CounterVec
	Deliveries   *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_events_total",
			Help: "Notifications processed, by outcome.",
		}, []string{"outcome"}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_deliveries_total",
			Help: "Channel delivery attempts, by channel and result.",
		}, []string{"channel", "result"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"path", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notify_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
	}
}

func (m *Metrics) ObserveEvent(outcome string) {
	m.Events.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDelivery(channel, result string) {
	m.Deliveries.WithLabelValues(channel, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records RED metrics per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		status := strconv.Itoa(ww.Status())
		m.HTTPDuration.WithLabelValues(path, r.Method, status).Observe(time.Since(start).Seconds())
		m.HTTPRequests.WithLabelValues(path, r.Method, status).Inc()
	})
}
