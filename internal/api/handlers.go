package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"FeedCurator/internal/domain"
	"FeedCurator/internal/infrastructure/ledger"
	"FeedCurator/internal/status"
	"FeedCurator/internal/usecase"
)

// PipelineRunner is the orchestrator surface the HTTP layer consumes.
type PipelineRunner interface {
	Run(ctx context.Context, opts usecase.Options) (domain.RunResult, error)
	Status() *status.Tracker
	Rules() []domain.FeedRule
}

// StatsProvider exposes ledger growth counters.
type StatsProvider interface {
	Stats(ctx context.Context) (ledger.Stats, error)
}

// Handler serves the pipeline over HTTP.
type Handler struct {
	runner PipelineRunner
	stats  StatsProvider
	logger *slog.Logger
}

// NewHandler wires the orchestrator and ledger into HTTP handlers.
func NewHandler(runner PipelineRunner, stats StatsProvider, logger *slog.Logger) *Handler {
	return &Handler{runner: runner, stats: stats, logger: logger}
}

// Run triggers a synchronous pipeline run. Query parameters: dry_run
// (default true), limit, feeds (repeatable feed URLs).
func (h *Handler) Run(c *gin.Context) {
	dryRun := c.DefaultQuery("dry_run", "true") != "false"

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	opts := usecase.Options{
		DryRun: dryRun,
		Limit:  limit,
		Feeds:  c.QueryArray("feeds"),
	}

	result, err := h.runner.Run(c.Request.Context(), opts)
	switch {
	case errors.Is(err, usecase.ErrRunActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, usecase.ErrNoActiveFeeds):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("pipeline run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Status returns the live run snapshot, or a not-running placeholder
// when no run is active.
func (h *Handler) Status(c *gin.Context) {
	snap, ok := h.runner.Status().Snapshot()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"running": false, "message": "no pipeline run active"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Feeds lists the configured feed rules.
func (h *Handler) Feeds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"feeds": h.runner.Rules()})
}

// LedgerStats reports dedup ledger growth.
func (h *Handler) LedgerStats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("ledger stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Health is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
