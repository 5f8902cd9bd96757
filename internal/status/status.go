package status

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Pipeline stages in execution order.
const (
	StageInitializing = "initializing"
	StageCollecting   = "collecting"
	StageProcessing   = "processing"
	StageCompleted    = "completed"
	StageFailed       = "failed"
)

// Snapshot is a point-in-time copy of the run state, safe to hand to
// observers.
type Snapshot struct {
	RunID             string    `json:"run_id"`
	Running           bool      `json:"running"`
	Stage             string    `json:"stage"`
	Message           string    `json:"message"`
	TotalFeeds        int       `json:"total_feeds"`
	ProcessedFeeds    int       `json:"processed_feeds"`
	TotalArticles     int       `json:"total_articles"`
	ProcessedArticles int       `json:"processed_articles"`
	KeptCount         int       `json:"kept_count"`
	SkippedCount      int       `json:"skipped_count"`
	FilteredCount     int       `json:"filtered_count"`
	DryRun            bool      `json:"dry_run"`
	Limit             int       `json:"limit"`
	CurrentFeed       string    `json:"current_feed,omitempty"`
	CurrentArticle    string    `json:"current_article,omitempty"`
	DurationSeconds   float64   `json:"duration_seconds,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Tracker holds the single live run snapshot. Every read and write is
// serialized under one mutex so a concurrent observer can poll while
// the run goroutine updates.
type Tracker struct {
	mu   sync.Mutex
	snap *Snapshot
}

// NewTracker builds an empty tracker; the orchestrator owns it and
// injects it into observers.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Start creates the snapshot for a new run and returns its run ID,
// replacing any previous run unconditionally.
func (t *Tracker) Start(totalFeeds int, dryRun bool, limit int) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.startLocked(totalFeeds, dryRun, limit)
}

// TryStart starts a run only when none is in flight. The check and the
// snapshot swap happen under one mutex hold, so concurrent callers see
// exactly one success.
func (t *Tracker) TryStart(totalFeeds int, dryRun bool, limit int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap != nil && t.snap.Running {
		return "", false
	}
	return t.startLocked(totalFeeds, dryRun, limit), true
}

func (t *Tracker) startLocked(totalFeeds int, dryRun bool, limit int) string {
	runID := uuid.NewString()
	t.snap = &Snapshot{
		RunID:      runID,
		Running:    true,
		Stage:      StageInitializing,
		Message:    "pipeline starting",
		TotalFeeds: totalFeeds,
		DryRun:     dryRun,
		Limit:      limit,
		Timestamp:  time.Now(),
	}
	return runID
}

// UpdateStage moves the run to a new stage with a display message.
func (t *Tracker) UpdateStage(stage, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap == nil {
		return
	}
	t.snap.Stage = stage
	t.snap.Message = message
	t.snap.Timestamp = time.Now()
}

// FeedProgress records the feed currently being collected.
func (t *Tracker) FeedProgress(feed string, processedFeeds, articlesCollected int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap == nil {
		return
	}
	t.snap.Stage = StageCollecting
	t.snap.Message = fmt.Sprintf("collecting feed %d/%d: %s", processedFeeds, t.snap.TotalFeeds, feed)
	t.snap.CurrentFeed = feed
	t.snap.ProcessedFeeds = processedFeeds
	t.snap.TotalArticles = articlesCollected
	t.snap.Timestamp = time.Now()
}

// ArticleProgress records per-article counters during processing.
func (t *Tracker) ArticleProgress(title string, processed, kept, skipped, filtered int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap == nil {
		return
	}
	t.snap.Stage = StageProcessing
	t.snap.Message = fmt.Sprintf("processing article %d/%d: %s", processed, t.snap.TotalArticles, truncate(title, 50))
	t.snap.CurrentArticle = title
	t.snap.ProcessedArticles = processed
	t.snap.KeptCount = kept
	t.snap.SkippedCount = skipped
	t.snap.FilteredCount = filtered
	t.snap.Timestamp = time.Now()
}

// SetTotalArticles fixes the post-limit article count before the
// processing stage starts.
func (t *Tracker) SetTotalArticles(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap == nil {
		return
	}
	t.snap.TotalArticles = total
	t.snap.Timestamp = time.Now()
}

// Complete finalizes the snapshot with the aggregate counts.
func (t *Tracker) Complete(kept, skipped, filtered int, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap == nil {
		return
	}
	t.snap.Running = false
	t.snap.Stage = StageCompleted
	t.snap.Message = fmt.Sprintf("pipeline done: %d kept, %d skipped, %d filtered", kept, skipped, filtered)
	t.snap.KeptCount = kept
	t.snap.SkippedCount = skipped
	t.snap.FilteredCount = filtered
	t.snap.DurationSeconds = duration.Seconds()
	t.snap.Timestamp = time.Now()
}

// Fail marks the run as failed at the orchestration level.
func (t *Tracker) Fail(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap == nil {
		return
	}
	t.snap.Running = false
	t.snap.Stage = StageFailed
	t.snap.Message = message
	t.snap.Timestamp = time.Now()
}

// Snapshot returns a copy of the current state; ok is false when no
// run has been started or the tracker was cleared.
func (t *Tracker) Snapshot() (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap == nil {
		return Snapshot{}, false
	}
	return *t.snap, true
}

// Running reports whether a run is currently in flight.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.snap != nil && t.snap.Running
}

// Clear discards the snapshot.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap = nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
