package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FeedCurator/internal/ports"
)

const (
	fetchTimeout = 30 * time.Second

	// Browser signature reduces anti-bot rejections on article pages.
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// Below this the primary strategy is considered to have missed the
	// article body and the readability fallback runs.
	minPrimaryChars = 100
)

var (
	tagExpr        = regexp.MustCompile(`<[^>]+>`)
	whitespaceExpr = regexp.MustCompile(`\s+`)

	boilerplateExprs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)advertisement\s*`),
		regexp.MustCompile(`(?i)subscribe\s+to\s+[^.!?]*newsletter[^.!?]*[.!?]?`),
	}
)

// HTTPExtractor fetches article pages and extracts clean text through
// ordered strategies: a semantic-container pass first, then a
// readability heuristic over the densest text block.
type HTTPExtractor struct {
	client *http.Client
	logger *slog.Logger
}

var _ ports.Extractor = (*HTTPExtractor)(nil)

// New wires an HTTP client; nil gets a bounded default.
func New(client *http.Client, logger *slog.Logger) *HTTPExtractor {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &HTTPExtractor{client: client, logger: logger}
}

// Extract returns the cleaned article text, or an empty string when
// fetching or both extraction strategies fail.
func (e *HTTPExtractor) Extract(ctx context.Context, pageURL string) string {
	doc, err := e.fetchDocument(ctx, pageURL)
	if err != nil {
		e.debug("fetch page failed", "url", pageURL, "error", err)
		return ""
	}

	removeChrome(doc)

	text := primaryContent(doc)
	if len(strings.TrimSpace(text)) < minPrimaryChars {
		text = readabilityContent(doc)
	}

	return cleanText(text)
}

func (e *HTTPExtractor) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	return doc, nil
}

func removeChrome(doc *goquery.Document) {
	doc.Find("script, style, nav, header, footer, aside, form, noscript, iframe").Remove()
}

// primaryContent reads paragraph text from the first semantic article
// container present in the document.
func primaryContent(doc *goquery.Document) string {
	for _, selector := range []string{"article", "main", "[role=\"main\"]"} {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}

		var parts []string
		container.Find("p").Each(func(_ int, p *goquery.Selection) {
			if t := strings.TrimSpace(p.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
		return container.Text()
	}
	return ""
}

// readabilityContent picks the block element carrying the most
// paragraph text, falling back to the whole body.
func readabilityContent(doc *goquery.Document) string {
	var (
		best    *goquery.Selection
		bestLen int
	)

	doc.Find("div, section, td").Each(func(_ int, block *goquery.Selection) {
		length := 0
		block.ChildrenFiltered("p").Each(func(_ int, p *goquery.Selection) {
			length += len(strings.TrimSpace(p.Text()))
		})
		if length > bestLen {
			best = block
			bestLen = length
		}
	})

	if best != nil && bestLen > 0 {
		return best.Text()
	}
	return doc.Find("body").Text()
}

func cleanText(text string) string {
	if text == "" {
		return ""
	}

	text = tagExpr.ReplaceAllString(text, "")
	text = whitespaceExpr.ReplaceAllString(text, " ")
	for _, expr := range boilerplateExprs {
		text = expr.ReplaceAllString(text, "")
	}

	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(text, " "))
}

func (e *HTTPExtractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
