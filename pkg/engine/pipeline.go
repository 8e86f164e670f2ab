package engine

import (
	"log/slog"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/engine/runtime"
	"github.com/lexinelai/lexinel-oss/pkg/engine/stages"
	"github.com/lexinelai/lexinel-oss/pkg/storage"
	"github.com/lexinelai/lexinel-oss/pkg/telemetry"
)

// Deps are the collaborators injected into the pipeline's stages. Queue and
// Collectors may be nil; every other field is required.
type Deps struct {
	Guard      domain.PromptGuard
	Embedder   domain.Embedder
	Searcher   domain.Searcher
	Completer  domain.Completer
	Notifier   domain.Notifier
	Queue      storage.ViolationQueue
	Collectors *telemetry.Collectors
	Logger     *slog.Logger
}

// NewPipeline assembles the full compliance pipeline: the eight stages wired
// into the fixed graph, validated once at construction.
func NewPipeline(deps Deps, opts ...Option) (*Orchestrator, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Guard == nil {
		return nil, domain.NewConfigurationError("prompt guard collaborator missing")
	}
	if deps.Embedder == nil || deps.Searcher == nil {
		return nil, domain.NewConfigurationError("retrieval collaborators missing")
	}
	if deps.Completer == nil {
		return nil, domain.NewConfigurationError("completion collaborator missing")
	}
	if deps.Notifier == nil {
		return nil, domain.NewConfigurationError("notification collaborator missing")
	}

	if deps.Collectors != nil {
		opts = append(opts, WithCollectors(deps.Collectors))
	}

	graph := NewGraph([]runtime.Stage{
		stages.NewScreen(deps.Guard, logger),
		stages.NewRetrieveContext(deps.Embedder, deps.Searcher, logger),
		stages.NewScoreRisk(deps.Completer, logger),
		stages.NewCheckViolations(deps.Queue, deps.Collectors, logger),
		stages.NewDraftReport(deps.Completer, logger),
		stages.NewNotify(deps.Notifier, logger),
		stages.NewRespondClean(deps.Completer, logger),
		stages.NewRespondBlocked(logger),
	})

	return NewOrchestrator(graph, logger, opts...)
}
