package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"FeedCurator/internal/config"
	"FeedCurator/internal/domain"
	"FeedCurator/internal/ports"
	"FeedCurator/internal/score"
	"FeedCurator/internal/status"
	"FeedCurator/internal/writer"
)

// progressEvery is the article progress cadence; the last article is
// always reported regardless.
const progressEvery = 5

// Run-level failures surfaced to callers.
var (
	ErrRunActive     = errors.New("a pipeline run is already active")
	ErrNoActiveFeeds = errors.New("no active feeds resolved")
)

// ArticleScorer is the scoring stage as consumed by the orchestrator.
type ArticleScorer interface {
	Score(ctx context.Context, article domain.Article, rule domain.FeedRule, st score.Settings) (*domain.ScoreResult, error)
}

// ContentWriters is the generation stage as consumed by the orchestrator.
type ContentWriters interface {
	LongFormArticle(ctx context.Context, article domain.Article, st writer.Settings) (string, error)
	PersonalPost(ctx context.Context, article domain.Article, st writer.Settings) (string, error)
}

// RuleFilter applies the per-rule predicates to one article.
type RuleFilter interface {
	Apply(article domain.Article, rule domain.FeedRule) (bool, string)
}

// Deps wires all driven adapters into the run orchestrator.
type Deps struct {
	Collector ports.Collector
	Filter    RuleFilter
	Scorer    ArticleScorer
	Writers   ContentWriters
	Workspace ports.Workspace
	Ledger    ports.Ledger
	Status    *status.Tracker
	Logger    *slog.Logger
}

// Options selects the run mode.
type Options struct {
	// DryRun skips workspace writes and ledger marking.
	DryRun bool
	// Limit truncates the accumulated article list after collection;
	// zero means unlimited.
	Limit int
	// Feeds restricts the run to rules whose feed URL is listed.
	Feeds []string
}

// Runner drives one synchronous pipeline run: collect, dedup, filter,
// score, generate, persist. Articles are processed strictly in
// collection order within a single control flow.
type Runner struct {
	cfg       config.Config
	collector ports.Collector
	filter    RuleFilter
	scorer    ArticleScorer
	writers   ContentWriters
	workspace ports.Workspace
	ledger    ports.Ledger
	status    *status.Tracker
	logger    *slog.Logger
}

// NewRunner constructs the orchestrator.
func NewRunner(cfg config.Config, deps Deps) *Runner {
	return &Runner{
		cfg:       cfg,
		collector: deps.Collector,
		filter:    deps.Filter,
		scorer:    deps.Scorer,
		writers:   deps.Writers,
		workspace: deps.Workspace,
		ledger:    deps.Ledger,
		status:    deps.Status,
		logger:    deps.Logger,
	}
}

// Status exposes the tracker for observers.
func (r *Runner) Status() *status.Tracker {
	return r.status
}

// Rules returns the configured rule set.
func (r *Runner) Rules() []domain.FeedRule {
	return r.cfg.Rules()
}

// Run executes the pipeline and returns the aggregate result. The
// counts in the result always reconcile with the item statuses. A
// single article's failure never aborts the run; only rule resolution
// failures do.
func (r *Runner) Run(ctx context.Context, opts Options) (domain.RunResult, error) {
	start := time.Now()
	active := resolveRules(r.cfg.Rules(), opts.Feeds)

	runID, ok := r.status.TryStart(len(active), opts.DryRun, opts.Limit)
	if !ok {
		return domain.RunResult{}, ErrRunActive
	}

	if len(active) == 0 {
		r.status.Fail(ErrNoActiveFeeds.Error())
		return domain.RunResult{}, ErrNoActiveFeeds
	}

	r.logger.Info("pipeline run starting",
		"run_id", runID, "dry_run", opts.DryRun, "limit", opts.Limit, "feeds", len(active))

	r.status.UpdateStage(status.StageCollecting, "collecting articles from feeds")
	articles := r.collect(ctx, active)

	if opts.Limit > 0 && len(articles) > opts.Limit {
		articles = articles[:opts.Limit]
	}
	r.status.SetTotalArticles(len(articles))
	r.status.UpdateStage(status.StageProcessing, fmt.Sprintf("processing %d articles", len(articles)))

	ruleByLabel := make(map[string]domain.FeedRule, len(active))
	for _, rule := range active {
		ruleByLabel[rule.Label] = rule
	}

	scoreSettings := score.Settings{
		Model:     r.cfg.Model,
		Threshold: r.cfg.ImportanceThreshold(),
		Topics:    r.cfg.Topics,
		Prompts:   r.cfg.Prompts,
	}
	writerSettings := writer.Settings{
		Model:   r.cfg.Model,
		Prompts: r.cfg.Prompts,
	}

	var kept, skipped, filtered int
	items := make([]domain.RunItem, 0, len(articles))

	for i, article := range articles {
		item := r.processArticle(ctx, article, ruleByLabel, scoreSettings, writerSettings, opts.DryRun)
		items = append(items, item)

		switch item.Status {
		case domain.StatusKept:
			kept++
		case domain.StatusFiltered:
			filtered++
		default:
			skipped++
		}

		processed := i + 1
		if processed%progressEvery == 0 || processed == len(articles) {
			r.status.ArticleProgress(article.Title, processed, kept, skipped, filtered)
		}
	}

	duration := time.Since(start)
	r.status.Complete(kept, skipped, filtered, duration)

	r.logger.Info("pipeline run completed",
		"run_id", runID, "kept", kept, "skipped", skipped, "filtered", filtered,
		"duration", duration.Round(time.Millisecond))

	return domain.RunResult{
		RunID:           runID,
		KeptCount:       kept,
		SkippedCount:    skipped,
		FilteredCount:   filtered,
		DurationSeconds: duration.Seconds(),
		Items:           items,
		DryRun:          opts.DryRun,
	}, nil
}

// collect accumulates articles from every enabled rule in order. One
// feed's failure is logged and skips only that feed; collection order
// across feeds determines which articles survive a later limit.
func (r *Runner) collect(ctx context.Context, active []domain.FeedRule) []domain.Article {
	var all []domain.Article
	processedFeeds := 0

	for _, rule := range active {
		if !rule.Enabled {
			continue
		}
		processedFeeds++
		r.status.FeedProgress(rule.Label, processedFeeds, len(all))

		articles, err := r.collector.Collect(ctx, rule)
		if err != nil {
			r.logger.Error("feed collection failed", "label", rule.Label, "error", err)
			continue
		}
		all = append(all, articles...)
	}

	r.logger.Info("collection finished", "articles", len(all))
	return all
}

// processArticle runs the per-article guard chain. Every failure is
// converted into a recorded outcome; nothing escapes to abort the run.
func (r *Runner) processArticle(
	ctx context.Context,
	article domain.Article,
	ruleByLabel map[string]domain.FeedRule,
	scoreSettings score.Settings,
	writerSettings writer.Settings,
	dryRun bool,
) domain.RunItem {
	dup, err := r.ledger.IsDuplicate(ctx, article.URL, article.Title)
	if err != nil {
		r.logger.Error("ledger lookup failed", "title", article.Title, "error", err)
		return skippedItem(article, fmt.Sprintf("processing error: %v", err))
	}
	if dup {
		return skippedItem(article, "duplicate article")
	}

	rule, ok := ruleByLabel[article.SourceLabel]
	if !ok {
		return skippedItem(article, fmt.Sprintf("no feed rule for source %q", article.SourceLabel))
	}

	allowed, reason := r.filter.Apply(article, rule)
	if !allowed {
		return domain.RunItem{
			Article: article,
			Status:  domain.StatusFiltered,
			Reason:  reason,
		}
	}

	scoreResult, err := r.scorer.Score(ctx, article, rule, scoreSettings)
	if err != nil {
		r.logger.Warn("scoring failed", "title", article.Title, "error", err)
		return skippedItem(article, fmt.Sprintf("LLM scoring failed: %v", err))
	}

	item := domain.RunItem{
		Article:     article,
		ScoreResult: scoreResult,
		Reason:      scoreResult.ReasonShort,
	}

	if !scoreResult.Keep {
		item.Status = domain.StatusSkipped
		return item
	}

	item.Status = domain.StatusKept
	item.LongFormArticle = r.writeVariant(ctx, article, writerSettings, r.writers.LongFormArticle, "long-form")
	item.PersonalPost = r.writeVariant(ctx, article, writerSettings, r.writers.PersonalPost, "personal post")

	if !dryRun && item.LongFormArticle != "" && item.PersonalPost != "" {
		r.persist(ctx, article, *scoreResult, item.LongFormArticle, item.PersonalPost)
	}

	return item
}

// persist writes to the workspace and marks the ledger only on
// success, so a failed write leaves the article reprocessable on the
// next run.
func (r *Runner) persist(ctx context.Context, article domain.Article, score domain.ScoreResult, longForm, post string) {
	if err := r.workspace.SaveArticle(ctx, article, score, longForm, post); err != nil {
		r.logger.Error("workspace write failed, article stays unmarked", "title", article.Title, "error", err)
		return
	}
	if err := r.ledger.MarkProcessed(ctx, article.URL, article.Title); err != nil {
		r.logger.Error("ledger mark failed", "title", article.Title, "error", err)
	}
}

func (r *Runner) writeVariant(
	ctx context.Context,
	article domain.Article,
	st writer.Settings,
	write func(context.Context, domain.Article, writer.Settings) (string, error),
	variant string,
) string {
	text, err := write(ctx, article, st)
	if err != nil {
		r.logger.Warn("content generation failed", "variant", variant, "title", article.Title, "error", err)
		return ""
	}
	return text
}

// resolveRules optionally restricts the configured rules to an
// explicit feed URL subset.
func resolveRules(rules []domain.FeedRule, feeds []string) []domain.FeedRule {
	if len(feeds) == 0 {
		return rules
	}

	wanted := make(map[string]bool, len(feeds))
	for _, url := range feeds {
		wanted[url] = true
	}

	resolved := make([]domain.FeedRule, 0, len(rules))
	for _, rule := range rules {
		if wanted[rule.FeedURL] {
			resolved = append(resolved, rule)
		}
	}
	return resolved
}

func skippedItem(article domain.Article, reason string) domain.RunItem {
	return domain.RunItem{
		Article: article,
		Status:  domain.StatusSkipped,
		Reason:  reason,
	}
}
