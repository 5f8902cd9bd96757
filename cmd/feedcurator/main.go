package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"FeedCurator/internal/app"
	"FeedCurator/internal/config"
	"FeedCurator/internal/logging"
	"FeedCurator/internal/usecase"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML configuration (defaults to $FEEDCURATOR_CONFIG)")
		serve      = flag.Bool("serve", false, "start the HTTP API instead of a one-shot run")
		dryRun     = flag.Bool("dry-run", true, "skip workspace writes and ledger marking")
		limit      = flag.Int("limit", 0, "maximum number of articles to process (0 = unlimited)")
		feeds      = flag.String("feeds", "", "comma-separated feed URLs to restrict the run to")
	)
	flag.Parse()

	// A missing .env is fine; secrets can come from the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *serve {
		if err := application.Serve(ctx); err != nil {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	opts := usecase.Options{
		DryRun: *dryRun,
		Limit:  *limit,
		Feeds:  splitFeeds(*feeds),
	}

	result, err := application.RunOnce(ctx, opts)
	if err != nil {
		logger.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
}

func splitFeeds(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	feeds := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			feeds = append(feeds, trimmed)
		}
	}
	return feeds
}
