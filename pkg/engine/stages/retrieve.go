package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
	"github.com/lexinelai/lexinel-oss/pkg/engine/runtime"
)

const retrieveTopK = 5

// RetrieveContext embeds the request message and pulls the most relevant
// policy passages from the corpus. Citations are the distinct source names of
// the retrieved passages, in first-seen order.
//
// On failure the stage degrades to an empty context with a generic citation
// so downstream prompts still carry a grounding reference.
type RetrieveContext struct {
	embedder domain.Embedder
	searcher domain.Searcher
	logger   *slog.Logger
}

// NewRetrieveContext builds the retrieval stage.
func NewRetrieveContext(embedder domain.Embedder, searcher domain.Searcher, logger *slog.Logger) *RetrieveContext {
	return &RetrieveContext{embedder: embedder, searcher: searcher, logger: logger}
}

func (s *RetrieveContext) Name() string { return NameRetrieveContext }

func (s *RetrieveContext) Execute(ctx context.Context, state *domain.RequestState) runtime.StageResult {
	s.logger.Debug("fetching policy context", "stage", NameRetrieveContext)

	passages, err := s.retrieve(ctx, state.Message)
	if err != nil {
		s.logger.Warn("retrieval failed, continuing without context", "stage", NameRetrieveContext, "error", err)
		return runtime.StageResult{
			Delta: runtime.Delta{
				PolicyContext: runtime.Ptr([]string{}),
				Citations:     runtime.Ptr([]string{"Lexinel Rulebook"}),
			},
			Audit:   fmt.Sprintf("[%s] RETRIEVE_CONTEXT_ERROR: %v", timestamp(), err),
			Outcome: runtime.OutcomeDegraded,
		}
	}

	contextChunks := make([]string, 0, len(passages))
	citations := make([]string, 0, len(passages))
	seen := make(map[string]bool, len(passages))
	for _, p := range passages {
		contextChunks = append(contextChunks, p.Text)
		source := p.SourceName
		if source == "" {
			source = "Policy Document"
		}
		if !seen[source] {
			seen[source] = true
			citations = append(citations, source)
		}
	}

	return runtime.StageResult{
		Delta: runtime.Delta{
			PolicyContext: runtime.Ptr(contextChunks),
			Citations:     runtime.Ptr(citations),
		},
		Audit: fmt.Sprintf("[%s] RETRIEVE_CONTEXT: Fetching relevant policy context → %d chunks retrieved",
			timestamp(), len(contextChunks)),
		Outcome: runtime.OutcomeSuccess,
	}
}

func (s *RetrieveContext) retrieve(ctx context.Context, message string) ([]domain.Passage, error) {
	embedding, err := s.embedder.Embed(ctx, message)
	if err != nil {
		return nil, err
	}
	return s.searcher.Search(ctx, embedding, retrieveTopK)
}
