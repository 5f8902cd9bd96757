package llm

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
	"FeedCurator/internal/ports"
)

// OpenAIClient implements ports.ChatClient against OpenAI-compatible
// chat completion APIs.
type OpenAIClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.ChatClient = (*OpenAIClient)(nil)

// NewClient selects the backend variant from configuration: a real
// HTTP client when the API key is present, otherwise the offline
// variant that reports unavailability.
func NewClient(cfg config.OpenAIConfig, model string) ports.ChatClient {
	if cfg.APIKey == "" {
		return Offline{}
	}
	return &OpenAIClient{
		endpoint: cfg.Endpoint,
		model:    model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Complete posts the system+user exchange and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req ports.ChatRequest) (string, error) {
	if c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("chat client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat api error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response contained no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// Offline is the credential-less ChatClient variant. Every call
// reports ports.ErrUnavailable so scorer and writers degrade to
// absent results instead of crashing.
type Offline struct{}

var _ ports.ChatClient = Offline{}

// Complete always fails with ErrUnavailable.
func (Offline) Complete(ctx context.Context, req ports.ChatRequest) (string, error) {
	return "", ports.ErrUnavailable
}
