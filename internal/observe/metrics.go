// Package observe records analysis metrics through the OpenTelemetry metrics
// API and exposes them for Prometheus scraping.
//
// Tests should build a Metrics with NewMetrics over a ManualReader-backed
// provider; Nop returns instruments that record nothing.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "tubelens"

// Outcome labels for AnalysesTotal.
const (
	OutcomeCompleted = "completed"
	OutcomeDegraded  = "degraded"
	OutcomeFailed    = "failed"
)

// Metrics holds the instruments recorded by the pipeline and HTTP surface.
type Metrics struct {
	// AnalysesTotal counts finished analyses by outcome.
	AnalysesTotal metric.Int64Counter

	// StageDuration tracks per-stage latency. Attributes: stage, status.
	StageDuration metric.Float64Histogram

	// DegradedTotal counts substitutions by reason (acquisition, transcription).
	DegradedTotal metric.Int64Counter

	// DetectorErrors counts sentences the detector failed to score.
	DetectorErrors metric.Int64Counter

	// ActiveAnalyses is the number of analyses in flight.
	ActiveAnalyses metric.Int64UpDownCounter

	// HTTPRequestDuration tracks API latency. Attributes: method, route, code.
	HTTPRequestDuration metric.Float64Histogram

	// RetentionDeleted counts analyses removed by the retention sweep.
	RetentionDeleted metric.Int64Counter
}

// stageBuckets covers quick scrapes up to multi-minute downloads.
var stageBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AnalysesTotal, err = m.Int64Counter("tubelens.analyses",
		metric.WithDescription("Finished analyses by outcome."),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("tubelens.stage.duration",
		metric.WithDescription("Latency of pipeline stages."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DegradedTotal, err = m.Int64Counter("tubelens.degraded",
		metric.WithDescription("Stage substitutions that degraded a result."),
	); err != nil {
		return nil, err
	}
	if met.DetectorErrors, err = m.Int64Counter("tubelens.detector.errors",
		metric.WithDescription("Sentences the detector failed to score."),
	); err != nil {
		return nil, err
	}
	if met.ActiveAnalyses, err = m.Int64UpDownCounter("tubelens.active_analyses",
		metric.WithDescription("Analyses currently running."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("tubelens.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.RetentionDeleted, err = m.Int64Counter("tubelens.retention.deleted",
		metric.WithDescription("Analyses removed by the retention sweep."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Nop returns metrics backed by a no-op provider.
func Nop() *Metrics {
	met, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return met
}

// RecordStage records how long a stage took and whether it succeeded.
func (m *Metrics) RecordStage(ctx context.Context, stage string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StageDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

// RecordOutcome counts a finished analysis.
func (m *Metrics) RecordOutcome(ctx context.Context, outcome string) {
	m.AnalysesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDegraded counts a substitution.
func (m *Metrics) RecordDegraded(ctx context.Context, reason string) {
	m.DegradedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordDetectorError counts one unscored sentence.
func (m *Metrics) RecordDetectorError(ctx context.Context) {
	m.DetectorErrors.Add(ctx, 1)
}

// RecordHTTP records one API request.
func (m *Metrics) RecordHTTP(ctx context.Context, method, route string, code int, elapsed time.Duration) {
	m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("code", code),
	))
}
