package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/engine/runtime"
	"github.com/lexinelai/lexinel-oss/pkg/telemetry"
)

// Orchestrator owns the request state for the lifetime of each request and
// drives it through the stage graph: execute the current stage, merge its
// result, pick the successor, repeat until a terminal stage completes.
//
// Stages cannot abort a request, so Run returns an error only for a
// cancelled context or an internal traversal fault; the degraded results of
// failing collaborators are visible in the returned state's audit log.
type Orchestrator struct {
	graph      *Graph
	logger     *slog.Logger
	collectors *telemetry.Collectors
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithCollectors attaches Prometheus collectors updated on each request.
func WithCollectors(c *telemetry.Collectors) Option {
	return func(o *Orchestrator) { o.collectors = c }
}

// NewOrchestrator validates the graph and builds the orchestrator. A
// malformed graph surfaces as a ConfigurationError here, before any request
// is accepted.
func NewOrchestrator(graph *Graph, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := graph.validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{graph: graph, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes one compliance request to completion and returns the final
// state. The returned state is complete and internally consistent even when
// err is non-nil due to cancellation; its audit log records every stage that
// ran before the stop.
func (o *Orchestrator) Run(ctx context.Context, message, agentID string, tx *domain.Transaction) (*domain.RequestState, error) {
	state := domain.NewRequestState(uuid.New().String(), message, agentID, tx)

	o.logger.Info("executing pipeline",
		"run_id", state.RunID,
		"agent_id", agentID,
	)

	tracer := otel.Tracer("lexinel.pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.execute")
	span.SetAttributes(telemetry.RedactAttributes([]attribute.KeyValue{
		attribute.String("run.id", state.RunID),
		attribute.String("agent.id", agentID),
		attribute.Bool("request.has_transaction", tx != nil),
	})...)
	defer span.End()

	start := time.Now()
	terminal, err := o.traverse(ctx, tracer, state)
	if err != nil {
		span.RecordError(err)
		return state, err
	}

	span.SetAttributes(attribute.String("terminal.stage", terminal))
	telemetry.RecordRequestCompleted(ctx, agentID, terminal)
	if o.collectors != nil {
		o.collectors.RequestsTotal.WithLabelValues(terminal).Inc()
		o.collectors.RequestDuration.WithLabelValues(terminal).Observe(time.Since(start).Seconds())
		for _, v := range state.Violations {
			o.collectors.ViolationsTotal.WithLabelValues(v.RuleID).Inc()
		}
	}

	o.logger.Info("pipeline complete",
		"run_id", state.RunID,
		"terminal_stage", terminal,
		"violation_found", state.ViolationFound,
		"stages_executed", len(state.AuditLog)-1,
	)
	return state, nil
}

// traverse walks the graph from the entry stage and returns the name of the
// terminal stage that finished the request. Cancellation is honored between
// stages; a running stage is never interrupted mid-merge.
func (o *Orchestrator) traverse(ctx context.Context, tracer trace.Tracer, state *domain.RequestState) (string, error) {
	current := o.graph.entry
	visited := make(map[string]bool, len(o.graph.stages))

	for {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("pipeline cancelled", "run_id", state.RunID, "next_stage", current)
			return "", err
		}

		if visited[current] {
			return "", fmt.Errorf("cycle detected: stage %q visited twice", current)
		}
		visited[current] = true

		stage, ok := o.graph.stages[current]
		if !ok {
			return "", fmt.Errorf("stage %q not registered", current)
		}

		stageCtx, stageSpan := tracer.Start(ctx, "pipeline.stage",
			trace.WithAttributes(attribute.String("stage.name", current)),
		)

		stageStart := time.Now()
		result := stage.Execute(stageCtx, state).WithDefaults(current)
		duration := time.Since(stageStart)
		result.Apply(state)

		stageSpan.SetAttributes(
			attribute.String("stage.outcome", string(result.Outcome)),
			attribute.Int64("stage.duration_ms", duration.Milliseconds()),
		)
		stageSpan.End()

		telemetry.RecordStageMetrics(ctx, telemetry.StageMetrics{
			AgentID:  state.AgentID,
			Stage:    current,
			Outcome:  result.Outcome,
			Duration: duration,
		})

		if result.Outcome == runtime.OutcomeDegraded {
			o.logger.Warn("stage degraded", "run_id", state.RunID, "stage", current)
		}

		next, more := o.graph.next(current, state)
		if !more {
			return current, nil
		}
		current = next
	}
}
