package api

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

// Metrics contains Prometheus metrics for label interpretation. It
// implements pipeline.Observer.
type Metrics struct {
	registry *prometheus.Registry

	labelsParsedTotal    prometheus.Counter
	labelConfidence      prometheus.Histogram
	uncertainFieldsTotal *prometheus.CounterVec

	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec

	httpRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates the metrics on their own registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.initMetrics()
	if err := m.registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.labelsParsedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "labels_parsed_total",
		Help: "Total number of label texts parsed",
	})

	m.labelConfidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "labels_parse_confidence",
		Help:    "Local confidence score of parsed labels",
		Buckets: prometheus.LinearBuckets(50, 10, 6), // 50..100
	})

	m.uncertainFieldsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labels_uncertain_fields_total",
			Help: "Fields left unresolved by the local parser",
		},
		[]string{"field"},
	)

	m.stageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labels_stage_total",
			Help: "Pipeline stage executions by outcome",
		},
		[]string{"stage", "outcome"},
	)

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "labels_stage_duration_seconds",
			Help: "Time spent in each pipeline stage",
			// 100µs for local stages up to ~50s for slow model calls
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 9),
		},
		[]string{"stage"},
	)

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labels_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "status_code"},
	)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.labelsParsedTotal.Describe(ch)
	m.labelConfidence.Describe(ch)
	m.uncertainFieldsTotal.Describe(ch)
	m.stageTotal.Describe(ch)
	m.stageDuration.Describe(ch)
	m.httpRequestsTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.labelsParsedTotal.Collect(ch)
	m.labelConfidence.Collect(ch)
	m.uncertainFieldsTotal.Collect(ch)
	m.stageTotal.Collect(ch)
	m.stageDuration.Collect(ch)
	m.httpRequestsTotal.Collect(ch)
}

// ObserveParse records a local parse result.
func (m *Metrics) ObserveParse(w models.ParsedWine) {
	m.labelsParsedTotal.Inc()
	m.labelConfidence.Observe(float64(w.Confidence))
	for _, f := range w.UncertainFields {
		m.uncertainFieldsTotal.WithLabelValues(f).Inc()
	}
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage, outcome string, elapsed time.Duration) {
	m.stageTotal.WithLabelValues(stage, outcome).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Metrics) observeRequest(route string, status int) {
	m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
