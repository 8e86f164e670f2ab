package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lexinelai/lexinel-oss/pkg/engine/runtime"
)

var (
	metricsOnce             sync.Once
	metricsInitErr          error
	stageExecutionCounter   metric.Int64Counter
	stageDegradedCounter    metric.Int64Counter
	stageLatencyHistogram   metric.Float64Histogram
	requestCompletedCounter metric.Int64Counter
)

// StageMetrics captures the fields needed to record pipeline stage telemetry.
type StageMetrics struct {
	AgentID  string
	Stage    string
	Outcome  runtime.Outcome
	Duration time.Duration
}

// RecordStageMetrics emits counters and histograms describing stage execution.
func RecordStageMetrics(ctx context.Context, metrics StageMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("agent.id", metrics.AgentID),
		attribute.String("stage.name", metrics.Stage),
		attribute.String("stage.outcome", string(metrics.Outcome)),
	}

	stageExecutionCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if metrics.Duration > 0 {
		stageLatencyHistogram.Record(ctx, float64(metrics.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}

	if metrics.Outcome == runtime.OutcomeDegraded {
		stageDegradedCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordRequestCompleted emits one count per finished request, labelled with
// the terminal stage that produced the answer.
func RecordRequestCompleted(ctx context.Context, agentID, terminalStage string) {
	if err := ensureMetrics(); err != nil {
		return
	}

	requestCompletedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent.id", agentID),
		attribute.String("terminal.stage", terminalStage),
	))
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("lexinel.pipeline")

		stageExecutionCounter, metricsInitErr = meter.Int64Counter(
			"lexinel.stage.executions_total",
			metric.WithDescription("Pipeline stage executions partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		stageDegradedCounter, metricsInitErr = meter.Int64Counter(
			"lexinel.stage.degraded_total",
			metric.WithDescription("Stage executions that fell back to their degraded path"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		stageLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"lexinel.stage.duration_ms",
			metric.WithDescription("Observed stage execution latency"),
			metric.WithUnit("ms"),
		)
		if metricsInitErr != nil {
			return
		}

		requestCompletedCounter, metricsInitErr = meter.Int64Counter(
			"lexinel.requests_total",
			metric.WithDescription("Completed compliance requests partitioned by terminal stage"),
			metric.WithUnit("{count}"),
		)
	})

	return metricsInitErr
}
