package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/config"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/worker"
)

var serveFlags struct {
	configPath string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP evaluation service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.configPath, "config", "c", "", "YAML config file (KESTREL_* env vars override it)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(serveFlags.configPath)
	if err != nil {
		return err
	}

	logger := config.NewLogger(cfg.Logging, os.Stdout)
	logger.Info("starting kestrel",
		"version", version,
		"commit", commit,
		"build_date", buildDate,
	)
	logger.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"eventbus", cfg.EventBus.Type,
		"rules_file", cfg.Engine.RulesFile,
		"worker", cfg.Worker.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("initialize repository: %w", err)
	}
	defer repo.Close()
	logger.Info("repository initialized", "driver", cfg.Repository.Driver)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}
	defer busImpl.Close()
	logger.Info("event bus initialized", "type", cfg.EventBus.Type)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := engine.NewService(ctx, engine.ServiceConfig{
		Repository:            repo,
		EventBus:              busImpl,
		Metrics:               metrics.New(reg),
		Logger:                logger,
		RulesFile:             cfg.Engine.RulesFile,
		LoadStoredDefinitions: cfg.Engine.LoadStoredDefinitions,
		BatchConcurrency:      cfg.Engine.BatchConcurrency,
	})
	if err != nil {
		return fmt.Errorf("load rule catalog: %w", err)
	}

	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(busImpl, svc)
		if err := asyncWorker.Start(worker.Config{WorkerCount: cfg.Worker.WorkerCount}); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}
	}

	deps := api.Deps{
		Service:      svc,
		Repository:   repo,
		EventBus:     busImpl,
		Version:      version,
		MaxBatchSize: cfg.Engine.MaxBatchSize,
	}
	if cfg.Metrics.Enabled {
		deps.Gatherer = reg
		deps.MetricsPath = cfg.Metrics.Path
	}
	srv := api.NewServer(cfg.Server, deps)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"catalog", svc.Catalog().Version(),
		"rules_count", svc.Catalog().Len(),
	)
	printBanner(cmd.OutOrStdout(), cfg, svc.Catalog().Version())

	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		return err
	}

	// Stop the worker first so no evaluation starts after the bus closes.
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			logger.Error("failed to stop worker", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
	return nil
}

func printBanner(w io.Writer, cfg *domain.Config, catalog string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  KESTREL  supplier risk evaluation")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Version:  %s\n", version)
	fmt.Fprintf(w, "  Catalog:  %s\n", catalog)
	fmt.Fprintf(w, "  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Endpoints:")
	fmt.Fprintln(w, "    POST   /evaluate                     - Evaluate a supplier")
	fmt.Fprintln(w, "    POST   /evaluate/batch               - Evaluate many suppliers")
	fmt.Fprintln(w, "    POST   /submit                       - Queue a supplier for the worker")
	fmt.Fprintln(w, "    GET    /evaluations/{id}[/report]    - Audited evaluation or Markdown report")
	fmt.Fprintln(w, "    GET    /suppliers/{id}/evaluations   - Supplier history")
	fmt.Fprintln(w, "    GET    /rules, /rules/{id}, /schema  - Catalog introspection")
	fmt.Fprintln(w, "    GET    /definitions                  - CEL rule definitions")
	fmt.Fprintln(w, "    POST   /definitions[/reload]         - Add a definition or reload the catalog")
	fmt.Fprintln(w, "    DELETE /definitions/{id}             - Remove a definition")
	fmt.Fprintln(w, "    GET    /health, /ready, /metrics")
	fmt.Fprintln(w)
}
