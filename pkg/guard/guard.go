// Package guard implements the deterministic prompt guard consulted by the
// screening stage. Decisions come from an embedded OPA rego policy; a regex
// redactor scrubs obvious PII from the message before it travels further
// down the pipeline.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/ast"
	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/rego"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

const (
	moduleName = "lexinel_guard.rego"
	entrypoint = "data.lexinel.guard.decision"
)

// DefaultModule is the built-in guard policy. Deployments may replace it
// with their own rego source; the decision document shape must be preserved.
const DefaultModule = `package lexinel.guard

import rego.v1

blocked_terms := [
	"ignore previous instructions",
	"ignore all previous instructions",
	"bypass compliance",
	"disable the audit",
	"override policy",
	"pretend you are not an aml system",
]

reasons contains msg if {
	some term in blocked_terms
	contains(lower(input.message), term)
	msg := sprintf("prohibited instruction: %q", [term])
}

reasons contains "missing agent identity" if {
	input.agent_id == ""
}

default blocked := false

blocked if count(reasons) > 0

decision := {
	"block": blocked,
	"reason": concat("; ", sort(reasons)),
}
`

// Options control guard construction.
type Options struct {
	// Module is the rego source to load; DefaultModule when empty.
	Module string
	// DisableRedaction turns off PII scrubbing of the processed message.
	DisableRedaction bool
	Logger           *slog.Logger
}

// Guard evaluates prompts against the rego policy and applies redaction.
// Safe for concurrent use; Reload swaps the prepared query atomically.
type Guard struct {
	mu       sync.RWMutex
	prepared rego.PreparedEvalQuery
	redactor *Redactor
	logger   *slog.Logger
}

// New compiles the guard policy and prepares it for evaluation. A malformed
// module is a construction-time failure, surfaced before any request runs.
func New(ctx context.Context, opts Options) (*Guard, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prepared, err := prepare(ctx, opts.Module)
	if err != nil {
		return nil, err
	}

	g := &Guard{prepared: prepared, logger: logger}
	if !opts.DisableRedaction {
		g.redactor = NewRedactor()
	}
	return g, nil
}

// Reload replaces the active policy module. Used by the config watcher for
// hot reload; the previous module stays active when the new one is invalid.
func (g *Guard) Reload(ctx context.Context, module string) error {
	prepared, err := prepare(ctx, module)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.prepared = prepared
	g.mu.Unlock()
	g.logger.Info("guard policy reloaded")
	return nil
}

// Check evaluates the message for the given agent and returns the decision
// plus the possibly-redacted message. Evaluation errors are returned to the
// caller; the screening stage fails open on them.
func (g *Guard) Check(ctx context.Context, message, agentID string) (domain.GuardDecision, error) {
	g.mu.RLock()
	prepared := g.prepared
	g.mu.RUnlock()

	input := map[string]any{
		"message":  message,
		"agent_id": agentID,
	}

	results, err := prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.GuardDecision{}, fmt.Errorf("guard evaluation: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// No decision document means the policy has nothing to say; allow.
		return domain.GuardDecision{Processed: g.redact(message)}, nil
	}

	payload, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return domain.GuardDecision{}, fmt.Errorf("guard evaluation: unexpected result type %T", results[0].Expressions[0].Value)
	}

	blocked, _ := payload["block"].(bool)
	reason, _ := payload["reason"].(string)

	return domain.GuardDecision{
		Blocked:   blocked,
		Processed: g.redact(message),
		Reason:    reason,
	}, nil
}

func (g *Guard) redact(message string) string {
	if g.redactor == nil {
		return message
	}
	return g.redactor.Redact(message)
}

func prepare(ctx context.Context, source string) (rego.PreparedEvalQuery, error) {
	if strings.TrimSpace(source) == "" {
		source = DefaultModule
	}

	module, err := ast.ParseModuleWithOpts(moduleName, source, ast.ParserOptions{RegoVersion: ast.RegoV1})
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("parse guard module: %w", err)
	}

	prepared, err := rego.New(
		rego.Query(entrypoint),
		rego.ParsedModule(module),
	).PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("compile guard module: %w", err)
	}
	return prepared, nil
}
