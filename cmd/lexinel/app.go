package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexinelai/lexinel-oss/pkg/config"
	"github.com/lexinelai/lexinel-oss/pkg/corpus"
	"github.com/lexinelai/lexinel-oss/pkg/engine"
	"github.com/lexinelai/lexinel-oss/pkg/guard"
	"github.com/lexinelai/lexinel-oss/pkg/llm"
	"github.com/lexinelai/lexinel-oss/pkg/logging"
	"github.com/lexinelai/lexinel-oss/pkg/notify"
	"github.com/lexinelai/lexinel-oss/pkg/rules"
	"github.com/lexinelai/lexinel-oss/pkg/storage"
	"github.com/lexinelai/lexinel-oss/pkg/telemetry"
)

// app bundles the wired service components shared by the subcommands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	guard      *guard.Guard
	llmClient  *llm.Client
	corpus     *corpus.Corpus
	queue      storage.ViolationQueue
	ruleStore  storage.RuleStore
	collectors *telemetry.Collectors

	shutdownFns []func(context.Context) error
}

// buildApp loads configuration and assembles the collaborators. Callers must
// invoke shutdown when done.
func buildApp(cmd *cobra.Command) (*app, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger := logging.Setup(logging.Config{Level: cfg.Logging.Level})

	a := &app{cfg: cfg, logger: logger, collectors: telemetry.NewCollectors()}

	shutdownTracing, err := telemetry.SetupProvider(cmd.Context(), telemetry.Config{
		ServiceName: "lexinel",
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}
	a.shutdownFns = append(a.shutdownFns, shutdownTracing)

	if err := a.buildGuard(); err != nil {
		return nil, err
	}

	a.llmClient = llm.NewClient(llm.Config{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		EmbedModel: cfg.LLM.EmbedModel,
		Timeout:    time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	a.corpus = corpus.New()

	if err := a.buildStorage(cmd.Context()); err != nil {
		return nil, err
	}

	return a, nil
}

// loadCorpus indexes the configured policy documents. Skipped silently when
// no directory is configured; retrieval then degrades per stage contract.
func (a *app) loadCorpus(ctx context.Context) error {
	if a.cfg.Corpus.Dir == "" {
		return nil
	}

	entries, err := os.ReadDir(a.cfg.Corpus.Dir)
	if err != nil {
		return fmt.Errorf("read corpus dir: %w", err)
	}

	var docs []corpus.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".md" && ext != ".txt" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(a.cfg.Corpus.Dir, name)) //nolint:gosec // Operator-controlled dir.
		if err != nil {
			return fmt.Errorf("read corpus document %s: %w", name, err)
		}
		docs = append(docs, corpus.Document{Name: name, Text: string(raw)})
	}

	if err := a.corpus.Load(ctx, a.llmClient, docs); err != nil {
		return fmt.Errorf("index corpus: %w", err)
	}
	a.logger.Info("policy corpus indexed", "documents", len(docs), "chunks", a.corpus.Size())
	return nil
}

// buildGuard compiles the prompt guard policy and, when configured, watches
// the module file for hot reload.
func (a *app) buildGuard() error {
	module := guard.DefaultModule
	if a.cfg.Guard.ModulePath != "" {
		raw, err := os.ReadFile(a.cfg.Guard.ModulePath) //nolint:gosec // Operator-controlled path.
		if err != nil {
			return fmt.Errorf("read guard module: %w", err)
		}
		module = string(raw)
	}

	g, err := guard.New(context.Background(), guard.Options{
		Module:           module,
		DisableRedaction: a.cfg.Guard.DisableRedaction,
		Logger:           a.logger,
	})
	if err != nil {
		return fmt.Errorf("compile guard policy: %w", err)
	}
	a.guard = g

	if a.cfg.Guard.Watch && a.cfg.Guard.ModulePath != "" {
		ctx, cancel := context.WithCancel(context.Background())
		a.shutdownFns = append(a.shutdownFns, func(context.Context) error {
			cancel()
			return nil
		})

		path := a.cfg.Guard.ModulePath
		err := config.WatchFile(ctx, path, a.logger, func() {
			raw, err := os.ReadFile(path) //nolint:gosec // Operator-controlled path.
			if err != nil {
				a.logger.Error("guard module reload failed", "path", path, "error", err)
				return
			}
			if err := a.guard.Reload(ctx, string(raw)); err != nil {
				a.logger.Error("guard module rejected, keeping previous policy", "path", path, "error", err)
				return
			}
			a.logger.Info("guard module reloaded", "path", path)
		})
		if err != nil {
			return fmt.Errorf("watch guard module: %w", err)
		}
	}
	return nil
}

// buildStorage opens the violation queue backend.
func (a *app) buildStorage(ctx context.Context) error {
	switch a.cfg.Storage.Driver {
	case "sqlite":
		q, err := storage.NewSQLiteQueue(a.cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open violation queue: %w", err)
		}
		if err := q.SeedRules(ctx, rules.DefaultRules()); err != nil {
			_ = q.Close()
			return fmt.Errorf("seed rule catalog: %w", err)
		}
		a.queue = q
		a.ruleStore = q
	default:
		q := storage.NewMemoryQueue(rules.DefaultRules())
		a.queue = q
		a.ruleStore = q
	}
	a.shutdownFns = append(a.shutdownFns, func(context.Context) error { return a.queue.Close() })
	return nil
}

// pipeline assembles the orchestrator over the app's collaborators.
func (a *app) pipeline() (*engine.Orchestrator, error) {
	return engine.NewPipeline(engine.Deps{
		Guard:     a.guard,
		Embedder:  a.llmClient,
		Searcher:  a.corpus,
		Completer: a.llmClient,
		Notifier: notify.NewWebhook(a.cfg.Notify.WebhookURL,
			notify.WithAuthToken(a.cfg.Notify.AuthToken),
			notify.WithLogger(a.logger),
		),
		Queue:      a.queue,
		Collectors: a.collectors,
		Logger:     a.logger,
	})
}

// shutdown releases app resources in reverse construction order.
func (a *app) shutdown(ctx context.Context) {
	for i := len(a.shutdownFns) - 1; i >= 0; i-- {
		if err := a.shutdownFns[i](ctx); err != nil {
			a.logger.Warn("shutdown step failed", "error", err)
		}
	}
}
