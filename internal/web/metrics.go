package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/justestif/go-mood-classifier/internal/evaluate"
)

const namespace = "mood_classifier"

// Metrics exposes the latest evaluation report and request counters.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	accuracy       prometheus.Gauge
	weightedPurity prometheus.Gauge
	classF1        *prometheus.GaugeVec
	clusterPurity  *prometheus.GaugeVec
	reportRows     *prometheus.GaugeVec
}

// NewMetrics creates a registry with every collector registered.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		accuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accuracy",
			Help:      "Classification accuracy of the latest report.",
		}),
		weightedPurity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weighted_purity",
			Help:      "Size-weighted cluster purity of the latest report.",
		}),
		classF1: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "class_f1",
			Help:      "Per-mood F1 score of the latest report.",
		}, []string{"mood"}),
		clusterPurity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_purity",
			Help:      "Majority share of each non-empty cluster in the latest report.",
		}, []string{"cluster"}),
		reportRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_rows",
			Help:      "Rows scored by the latest report.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.accuracy,
		m.weightedPurity,
		m.classF1,
		m.clusterPurity,
		m.reportRows,
	)
	return m
}

// Observe replaces the report gauges with the values in r.
func (m *Metrics) Observe(r *evaluate.Report) {
	m.classF1.Reset()
	m.clusterPurity.Reset()
	m.reportRows.Reset()

	if c := r.Classification; c != nil {
		m.accuracy.Set(c.Accuracy)
		m.reportRows.WithLabelValues("classified").Set(float64(c.Rows))
		for _, cm := range c.Classes {
			m.classF1.WithLabelValues(cm.Mood.String()).Set(cm.F1)
		}
	}
	if c := r.Clustering; c != nil {
		m.weightedPurity.Set(c.WeightedPurity)
		m.reportRows.WithLabelValues("clustered").Set(float64(c.Rows))
		for _, cp := range c.Clusters {
			if cp.Purity != nil {
				m.clusterPurity.WithLabelValues(strconv.Itoa(cp.Index)).Set(*cp.Purity)
			}
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by route pattern and status.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
