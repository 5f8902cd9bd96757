package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"FeedCurator/internal/api"
	"FeedCurator/internal/config"
	"FeedCurator/internal/domain"
	"FeedCurator/internal/filter"
	"FeedCurator/internal/infrastructure/extract"
	"FeedCurator/internal/infrastructure/feed"
	"FeedCurator/internal/infrastructure/ledger"
	"FeedCurator/internal/infrastructure/llm"
	"FeedCurator/internal/infrastructure/scheduler"
	"FeedCurator/internal/infrastructure/workspace"
	"FeedCurator/internal/logging"
	"FeedCurator/internal/score"
	"FeedCurator/internal/status"
	"FeedCurator/internal/usecase"
	"FeedCurator/internal/writer"
)

// Application wires configuration to the pipeline and its HTTP surface.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	runner    *usecase.Runner
	ledger    *ledger.SQLiteLedger
	scheduler *usecase.Scheduler
	router    http.Handler
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("open dedup ledger: %w", err)
	}

	chat := llm.NewClient(cfg.OpenAI, cfg.Model)
	extractor := extract.New(nil, logging.ForComponent(baseLogger, "extractor"))

	runner := usecase.NewRunner(cfg, usecase.Deps{
		Collector: feed.NewCollector(extractor, logging.ForComponent(baseLogger, "collector")),
		Filter:    filter.New(),
		Scorer:    score.NewScorer(chat, logging.ForComponent(baseLogger, "scorer")),
		Writers:   writer.NewWriters(chat, logging.ForComponent(baseLogger, "writers")),
		Workspace: workspace.NewClient(cfg.Notion),
		Ledger:    store,
		Status:    status.NewTracker(),
		Logger:    logging.ForComponent(baseLogger, "runner"),
	})

	handler := api.NewHandler(runner, store, logging.ForComponent(baseLogger, "api"))

	var sched *usecase.Scheduler
	if cfg.Scheduler.Enabled {
		driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval)
		sched = usecase.NewScheduler(driver, runner, logging.ForComponent(baseLogger, "scheduler"))
	}

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		runner:    runner,
		ledger:    store,
		scheduler: sched,
		router:    api.NewRouter(handler),
	}, nil
}

// RunOnce executes a single pipeline run.
func (a *Application) RunOnce(ctx context.Context, opts usecase.Options) (domain.RunResult, error) {
	return a.runner.Run(ctx, opts)
}

// Serve starts the HTTP API (and the interval scheduler when enabled)
// until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	server := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: a.router,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.scheduler != nil {
		_ = a.scheduler.Stop(context.Background())
	}
	return a.ledger.Close()
}
