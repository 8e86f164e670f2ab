package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexinelai/lexinel-oss/pkg/sentinel"
	"github.com/lexinelai/lexinel-oss/pkg/storage"
)

// newServeCmd creates the long-running service command: a metrics endpoint
// plus the optional scheduled sentinel scan.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve metrics and run scheduled sentinel scans",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.shutdown(context.Background())

	var schedule *sentinel.Schedule
	if a.cfg.Sentinel.CronSpec != "" {
		scanner := sentinel.NewScanner(a.ruleStore, a.queue, a.logger,
			sentinel.WithCollectors(a.collectors))
		schedule, err = sentinel.NewSchedule(scanner, a.cfg.Sentinel.DatasetPath,
			a.cfg.Sentinel.CronSpec, a.logger)
		if err != nil {
			return err
		}
		schedule.Start()
		a.logger.Info("sentinel schedule started",
			"cron", a.cfg.Sentinel.CronSpec,
			"dataset", a.cfg.Sentinel.DatasetPath)
	}

	// Keep the queue-depth gauge current even when requests are handled by
	// other processes sharing the sqlite backend.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			refreshQueueDepth(ctx, a)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.collectors.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              a.cfg.Server.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if schedule != nil {
		if err := schedule.Stop(shutdownCtx); err != nil {
			a.logger.Warn("sentinel schedule stop", "error", err)
		}
	}
	return server.Shutdown(shutdownCtx)
}

func refreshQueueDepth(ctx context.Context, a *app) {
	pending, err := a.queue.List(ctx, storage.StatusPending)
	if err != nil {
		a.logger.Warn("queue depth refresh failed", "error", err)
		return
	}
	a.collectors.QueueDepth.Set(float64(len(pending)))
}
