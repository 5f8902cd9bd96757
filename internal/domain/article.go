package domain

import "time"

// FeedRule describes one RSS source and its inclusion criteria.
// Rules are created by configuration and read-only during a run.
type FeedRule struct {
	FeedURL      string   `json:"feed_url"`
	Label        string   `json:"label"`
	Source       string   `json:"source,omitempty"`
	Language     string   `json:"language,omitempty"`
	TopicDefault string   `json:"topic_default"`
	IncludeAny   []string `json:"include_any,omitempty"`
	IncludeAll   []string `json:"include_all,omitempty"`
	ExcludeAny   []string `json:"exclude_any,omitempty"`
	MinWords     int      `json:"min_words"`
	MaxAgeDays   int      `json:"max_age_days"`
	SourceWeight float64  `json:"source_weight"`
	Enabled      bool     `json:"enabled"`
}

// Article is one extracted unit produced by the collector. It is never
// mutated after creation.
type Article struct {
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	Published    *time.Time `json:"published,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	Content      string     `json:"content,omitempty"`
	WordCount    int        `json:"word_count"`
	SourceLabel  string     `json:"source_label"`
	SourceWeight float64    `json:"source_weight"`
}

// ScoreResult is the LLM verdict for a single article.
type ScoreResult struct {
	Topic         string  `json:"topic"`
	Relevance     int     `json:"relevance"`
	Novelty       int     `json:"novelty"`
	Authority     int     `json:"authority"`
	Actionability int     `json:"actionability"`
	Importance    float64 `json:"importance"`
	Keep          bool    `json:"keep"`
	ReasonShort   string  `json:"reason_short"`
}

// ItemStatus enumerates per-article run outcomes.
type ItemStatus string

const (
	StatusKept     ItemStatus = "kept"
	StatusSkipped  ItemStatus = "skipped"
	StatusFiltered ItemStatus = "filtered"
)

// RunItem records one article's outcome within a run.
//
// Invariants: status "filtered" implies ScoreResult is nil; status
// "kept" implies ScoreResult is present with Keep=true.
type RunItem struct {
	Article         Article      `json:"article"`
	ScoreResult     *ScoreResult `json:"score_result,omitempty"`
	LongFormArticle string       `json:"long_form_article,omitempty"`
	PersonalPost    string       `json:"personal_post,omitempty"`
	Status          ItemStatus   `json:"status"`
	Reason          string       `json:"reason"`
}

// RunResult aggregates a full pipeline run. Counts always reconcile
// with the item list: kept+skipped+filtered == len(Items).
type RunResult struct {
	RunID           string    `json:"run_id"`
	KeptCount       int       `json:"kept_count"`
	SkippedCount    int       `json:"skipped_count"`
	FilteredCount   int       `json:"filtered_count"`
	DurationSeconds float64   `json:"duration_seconds"`
	Items           []RunItem `json:"items"`
	DryRun          bool      `json:"dry_run"`
}
