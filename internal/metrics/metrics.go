// Package metrics counts what the conversation loop does on a private
// Prometheus registry.
package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/turn"
)

const namespace = "parley"

// Metrics implements turn.Observer and reply.Timer.
type Metrics struct {
	registry *prometheus.Registry

	Partials      prometheus.Counter
	Submissions   prometheus.Counter
	Discards      *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
	StageDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Partials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_transcripts_total",
			Help:      "Non-final transcripts observed while listening",
		}),
		Submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_submitted_total",
			Help:      "Utterances submitted to the reply pipeline",
		}),
		Discards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_discarded_total",
			Help:      "Transcripts dropped by the turn coordinator",
		}, []string{"reason"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by fault kind",
		}, []string{"kind"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Time from submission until the reply finished playing",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Reply pipeline stage duration",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		m.Partials,
		m.Submissions,
		m.Discards,
		m.Errors,
		m.TurnDuration,
		m.StageDuration,
	)
	return m
}

func (m *Metrics) Listening() {}

func (m *Metrics) Partial(string) {
	m.Partials.Inc()
}

func (m *Metrics) Discarded(_ string, reason turn.Reason) {
	m.Discards.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) Submitting(string) {
	m.Submissions.Inc()
}

func (m *Metrics) Settled(_ string, elapsed time.Duration, err error) {
	m.TurnDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.RecordError(err)
	}
}

func (m *Metrics) Diagnostic(event turn.Event) {
	if ev, ok := event.(turn.Error); ok && ev.Err != nil {
		m.RecordError(ev.Err)
	}
}

// ObserveStage records one reply pipeline stage.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// RecordError counts err under its fault kind, or "unknown".
func (m *Metrics) RecordError(err error) {
	kind, ok := fault.KindOf(err)
	label := string(kind)
	if !ok {
		label = "unknown"
	}
	m.Errors.WithLabelValues(label).Inc()
}

// Snapshot flattens the registry into series name to value. Labeled series
// are keyed as name{label="value"}; histograms contribute _count and _sum.
func (m *Metrics) Snapshot() map[string]float64 {
	families, err := m.registry.Gather()
	if err != nil {
		return map[string]float64{}
	}

	out := make(map[string]float64)
	for _, family := range families {
		name := family.GetName()
		for _, metric := range family.GetMetric() {
			key := name + labelSuffix(metric.GetLabel())
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[key] = metric.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				h := metric.GetHistogram()
				suffix := labelSuffix(metric.GetLabel())
				out[name+"_count"+suffix] = float64(h.GetSampleCount())
				out[name+"_sum"+suffix] = h.GetSampleSum()
			}
		}
	}
	return out
}

func labelSuffix(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, label.GetName()+`="`+label.GetValue()+`"`)
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}
