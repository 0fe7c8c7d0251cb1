// Package metrics provides Prometheus-based in-process counters for the
// interview core. No exporter is wired here; the embedding layer decides how
// to expose the default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics contract the orchestrator depends on. NopRecorder
// satisfies it for tests.
type Recorder interface {
	RecordTurn(stage, status string, duration time.Duration)
	RecordModelRequest(model, status string, duration time.Duration)
	RecordToolInvocation(tool, status string)
	RecordCompaction(summarized int)
	RecordDigression(stage string)
}

// PrometheusRecorder implements Recorder on promauto collectors.
type PrometheusRecorder struct {
	turnsTotal      *prometheus.CounterVec
	turnDuration    *prometheus.HistogramVec
	modelRequests   *prometheus.CounterVec
	modelDuration   *prometheus.HistogramVec
	toolInvocations *prometheus.CounterVec
	compactions     prometheus.Counter
	messagesSummed  prometheus.Counter
	digressions     *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder registered on the default
// registry. Create at most one per process.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		turnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_turns_total",
				Help: "Total interview turns by stage and status",
			},
			[]string{"stage", "status"},
		),
		turnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "interview_turn_duration_seconds",
				Help:    "Duration of interview turns in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		modelRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_model_requests_total",
				Help: "Total model gateway requests by model and status",
			},
			[]string{"model", "status"},
		),
		modelDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "interview_model_request_duration_seconds",
				Help:    "Duration of model gateway requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		toolInvocations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_tool_invocations_total",
				Help: "Total tool invocations by tool and status",
			},
			[]string{"tool", "status"},
		),
		compactions: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "interview_compactions_total",
				Help: "Total successful context compactions",
			},
		),
		messagesSummed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "interview_compacted_messages_total",
				Help: "Total messages folded into summaries by compaction",
			},
		),
		digressions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interview_digressions_total",
				Help: "Total detected candidate digressions by stage",
			},
			[]string{"stage"},
		),
	}
}

func (r *PrometheusRecorder) RecordTurn(stage, status string, duration time.Duration) {
	r.turnsTotal.WithLabelValues(stage, status).Inc()
	r.turnDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordModelRequest(model, status string, duration time.Duration) {
	r.modelRequests.WithLabelValues(model, status).Inc()
	r.modelDuration.WithLabelValues(model).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordToolInvocation(tool, status string) {
	r.toolInvocations.WithLabelValues(tool, status).Inc()
}

func (r *PrometheusRecorder) RecordCompaction(summarized int) {
	r.compactions.Inc()
	r.messagesSummed.Add(float64(summarized))
}

func (r *PrometheusRecorder) RecordDigression(stage string) {
	r.digressions.WithLabelValues(stage).Inc()
}

// NopRecorder discards all observations.
type NopRecorder struct{}

func (NopRecorder) RecordTurn(string, string, time.Duration)         {}
func (NopRecorder) RecordModelRequest(string, string, time.Duration) {}
func (NopRecorder) RecordToolInvocation(string, string)              {}
func (NopRecorder) RecordCompaction(int)                             {}
func (NopRecorder) RecordDigression(string)                          {}
