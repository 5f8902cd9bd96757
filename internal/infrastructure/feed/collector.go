package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"FeedCurator/internal/domain"
	"FeedCurator/internal/ports"
)

// minExtractWords is the pre-filter sanity floor applied to extracted
// text before the rule-level MinWords check. Kept as a separate
// tunable: it guards against boilerplate-only extractions, not against
// editorially short articles.
const minExtractWords = 120

// Collector turns one feed's entries into candidate articles via the
// content extractor.
type Collector struct {
	parser    *gofeed.Parser
	extractor ports.Extractor
	logger    *slog.Logger
}

var _ ports.Collector = (*Collector)(nil)

// NewCollector wires the RSS parser with the page extractor.
func NewCollector(extractor ports.Extractor, logger *slog.Logger) *Collector {
	parser := gofeed.NewParser()
	parser.UserAgent = "FeedCurator/1.0"
	return &Collector{
		parser:    parser,
		extractor: extractor,
		logger:    logger,
	}
}

// Collect parses the rule's feed and extracts full text per entry. A
// single entry's failure is logged and skipped; it never aborts the
// rest of the feed.
func (c *Collector) Collect(ctx context.Context, rule domain.FeedRule) ([]domain.Article, error) {
	c.info("collecting feed", "label", rule.Label, "url", rule.FeedURL)

	parsed, err := c.parser.ParseURLWithContext(rule.FeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", rule.FeedURL, err)
	}

	articles := make([]domain.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		article, ok := c.processEntry(ctx, item, rule)
		if !ok {
			continue
		}
		articles = append(articles, article)
	}

	c.info("feed collected", "label", rule.Label, "articles", len(articles))
	return articles, nil
}

func (c *Collector) processEntry(ctx context.Context, item *gofeed.Item, rule domain.FeedRule) (domain.Article, bool) {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return domain.Article{}, false
	}

	// Malformed dates arrive as nil from the parser and stay absent.
	var published *time.Time
	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		published = &t
	}

	summary := item.Description
	if item.Content != "" {
		summary = item.Content
	}

	content := c.extractor.Extract(ctx, link)
	wordCount := len(strings.Fields(content))
	if content == "" || wordCount < minExtractWords {
		c.debug("dropping entry, extraction too short", "title", title, "words", wordCount)
		return domain.Article{}, false
	}

	return domain.Article{
		Title:        title,
		URL:          link,
		Published:    published,
		Summary:      summary,
		Content:      content,
		WordCount:    wordCount,
		SourceLabel:  rule.Label,
		SourceWeight: rule.SourceWeight,
	}, true
}

func (c *Collector) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Collector) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
