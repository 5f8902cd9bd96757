package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"FeedCurator/internal/config"
	"FeedCurator/internal/domain"
	"FeedCurator/internal/ports"
)

const notionVersion = "2022-06-28"

// Property names of the target Notion database.
const (
	propTitle  = "Title"
	propTopic  = "Ämne"
	propDate   = "Datum"
	propSource = "Källa"
)

// NotionClient persists kept articles as pages in a Notion database.
type NotionClient struct {
	baseURL    string
	apiKey     string
	databaseID string
	httpClient *http.Client
}

var _ ports.Workspace = (*NotionClient)(nil)

// NewClient selects the workspace variant from configuration: the real
// Notion client when both credential and database target are present,
// otherwise the disabled variant.
func NewClient(cfg config.NotionConfig) ports.Workspace {
	if cfg.APIKey == "" || cfg.DatabaseID == "" {
		return Disabled{}
	}
	return &NotionClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		databaseID: cfg.DatabaseID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SaveArticle creates one page with topic/date/source properties and
// the generated texts as content blocks.
func (c *NotionClient) SaveArticle(ctx context.Context, article domain.Article, score domain.ScoreResult, longForm, post string) error {
	date := time.Now()
	if article.Published != nil {
		date = *article.Published
	}

	payload := map[string]any{
		"parent": map[string]string{"database_id": c.databaseID},
		"properties": map[string]any{
			propTitle: map[string]any{
				"title": []map[string]any{
					{"text": map[string]string{"content": article.Title}},
				},
			},
			propTopic: map[string]any{
				"select": map[string]string{"name": score.Topic},
			},
			propDate: map[string]any{
				"date": map[string]string{"start": date.Format("2006-01-02")},
			},
			propSource: map[string]any{
				"url": article.URL,
			},
		},
		"children": []map[string]any{
			headingBlock("Article (structured)"),
			paragraphBlock(longForm),
			headingBlock("Post (personal touch)"),
			paragraphBlock(post),
		},
	}

	if err := c.post(ctx, "/pages", payload); err != nil {
		return fmt.Errorf("save article %q: %w", article.Title, err)
	}
	return nil
}

// TestConnection retrieves the target database to verify credentials.
func (c *NotionClient) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/databases/"+c.databaseID, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("retrieve database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notion returned %s", resp.Status)
	}
	return nil
}

func (c *NotionClient) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notion error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	return nil
}

func (c *NotionClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")
}

func headingBlock(text string) map[string]any {
	return map[string]any{
		"object": "block",
		"type":   "heading_2",
		"heading_2": map[string]any{
			"rich_text": []map[string]any{
				{"type": "text", "text": map[string]string{"content": text}},
			},
		},
	}
}

func paragraphBlock(text string) map[string]any {
	return map[string]any{
		"object": "block",
		"type":   "paragraph",
		"paragraph": map[string]any{
			"rich_text": []map[string]any{
				{"type": "text", "text": map[string]string{"content": text}},
			},
		},
	}
}

// Disabled is the credential-less workspace variant; saves report
// ErrUnavailable so the run records the outcome instead of crashing.
type Disabled struct{}

var _ ports.Workspace = Disabled{}

// SaveArticle always fails with ErrUnavailable.
func (Disabled) SaveArticle(ctx context.Context, article domain.Article, score domain.ScoreResult, longForm, post string) error {
	return ports.ErrUnavailable
}
