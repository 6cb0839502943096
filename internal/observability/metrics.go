package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry             *prometheus.Registry
	handler              http.Handler
	requestsTotal        *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	quoteTransitions     *prometheus.CounterVec
	collaboratorFailures *prometheus.CounterVec
	collaboratorDuration *prometheus.HistogramVec
	computationClamps    *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quotedesk_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quotedesk_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quotedesk_quote_transitions_total",
		Help: "Jumlah perpindahan status quote.",
	}, []string{"from", "to"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quotedesk_collaborator_failures_total",
		Help: "Kegagalan panggilan ke kolaborator eksternal.",
	}, []string{"collaborator", "op"})
	collabDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quotedesk_collaborator_duration_seconds",
		Help:    "Durasi panggilan ke kolaborator eksternal.",
		Buckets: prometheus.DefBuckets,
	}, []string{"collaborator", "op"})
	clamps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quotedesk_computation_clamps_total",
		Help: "Jumlah nilai negatif yang dipotong ke nol saat perhitungan.",
	}, []string{"level"})
	registry.MustRegister(requests, duration, transitions, failures, collabDuration, clamps)
	return &Metrics{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:        requests,
		requestDuration:      duration,
		quoteTransitions:     transitions,
		collaboratorFailures: failures,
		collaboratorDuration: collabDuration,
		computationClamps:    clamps,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveTransition mencatat satu perpindahan status quote.
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.quoteTransitions.WithLabelValues(from, to).Inc()
}

// ObserveCollaborator mencatat durasi dan kegagalan panggilan kolaborator.
func (m *Metrics) ObserveCollaborator(collaborator, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.collaboratorDuration.WithLabelValues(collaborator, op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.collaboratorFailures.WithLabelValues(collaborator, op).Inc()
	}
}

// ObserveClamp mencatat nilai negatif yang dipotong ke nol.
func (m *Metrics) ObserveClamp(level string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.computationClamps.WithLabelValues(level).Add(float64(count))
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
