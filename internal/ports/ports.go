package ports

import (
	"context"
	"errors"

	"FeedCurator/internal/domain"
)

// ErrUnavailable marks a component that was constructed without its
// credential and degrades to "absent" results instead of crashing.
var ErrUnavailable = errors.New("component unavailable: missing credential")

// Collector pulls candidate articles from one configured feed.
type Collector interface {
	Collect(ctx context.Context, rule domain.FeedRule) ([]domain.Article, error)
}

// Extractor fetches a linked page and returns clean article text.
// Network or parse failures yield an empty string, not an error that
// aborts the caller.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) string
}

// ChatClient is the LLM backend. Implementations are either a real
// HTTP-backed client or an offline variant returning ErrUnavailable,
// selected at construction time.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// ChatRequest carries one system+user exchange with sampling bounds.
type ChatRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Ledger answers membership queries over processed (url, title)
// fingerprints and records new ones. MarkProcessed is idempotent.
type Ledger interface {
	IsDuplicate(ctx context.Context, url, title string) (bool, error)
	MarkProcessed(ctx context.Context, url, title string) error
}

// Workspace persists kept articles to the external workspace tool.
type Workspace interface {
	SaveArticle(ctx context.Context, article domain.Article, score domain.ScoreResult, longForm, post string) error
}

// Scheduler triggers periodic pipeline executions.
type Scheduler interface {
	Start(ctx context.Context, job func()) error
	Stop(ctx context.Context) error
}
