package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prediction outcomes reported by ObservePrediction.
const (
	OutcomeParsed   = "parsed"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

// Metrics contains the pipeline metrics. A nil *Metrics is valid and records
// nothing, so components can take one optionally.
type Metrics struct {
	registry *prometheus.Registry

	// Predictions
	PredictionsTotal *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec

	// LLM
	LLMRequestsTotal   prometheus.Counter
	LLMRequestDuration prometheus.Histogram
	LLMTokensTotal     *prometheus.CounterVec
	LLMErrorsTotal     prometheus.Counter

	// Index
	IndexDocuments prometheus.Gauge
	RetrievalHits  *prometheus.HistogramVec
}

// NewMetrics creates the pipeline metrics and registers them on reg.
// A nil reg gets a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,

		PredictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agni_predictions_total",
			Help: "Predictions by outcome (parsed, fallback, error).",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agni_stage_duration_seconds",
			Help:    "Duration of each prediction stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),

		LLMRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agni_llm_requests_total",
			Help: "Total LLM API requests.",
		}),
		LLMRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agni_llm_request_duration_seconds",
			Help:    "LLM request duration.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		LLMTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agni_llm_tokens_total",
			Help: "Tokens used, by direction (input, output).",
		}, []string{"direction"}),
		LLMErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agni_llm_errors_total",
			Help: "Total LLM errors.",
		}),

		IndexDocuments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agni_index_documents",
			Help: "Documents in the knowledge index.",
		}),
		RetrievalHits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agni_retrieval_hits",
			Help:    "Passages returned per retrieval pass.",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		}, []string{"pass"}),
	}

	reg.MustRegister(
		m.PredictionsTotal,
		m.StageDuration,
		m.LLMRequestsTotal,
		m.LLMRequestDuration,
		m.LLMTokensTotal,
		m.LLMErrorsTotal,
		m.IndexDocuments,
		m.RetrievalHits,
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePrediction counts a finished prediction.
func (m *Metrics) ObservePrediction(outcome string) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a prediction stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.Inc()
	m.LLMRequestDuration.Observe(duration.Seconds())
	if err != nil {
		m.LLMErrorsTotal.Inc()
		return
	}
	m.LLMTokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	m.LLMTokensTotal.WithLabelValues("output").Add(float64(outputTokens))
}

// SetIndexDocuments sets the index document gauge.
func (m *Metrics) SetIndexDocuments(n int) {
	if m == nil {
		return
	}
	m.IndexDocuments.Set(float64(n))
}

// ObserveRetrieval records the hit count of one retrieval pass.
func (m *Metrics) ObserveRetrieval(pass string, hits int) {
	if m == nil {
		return
	}
	m.RetrievalHits.WithLabelValues(pass).Observe(float64(hits))
}
