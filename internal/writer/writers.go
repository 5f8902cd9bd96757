package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"FeedCurator/internal/config"
	"FeedCurator/internal/domain"
	"FeedCurator/internal/ports"
	"FeedCurator/internal/prompts"
	"FeedCurator/pkg/retry"
)

const (
	writerTemperature = 0.3
	maxWriterTokens   = 1500
)

// Settings carries the per-run writer configuration.
type Settings struct {
	Model   string
	Prompts map[string]string
}

// Writers generates derivative content variants for kept articles.
// Each method returns an empty string plus an error on failure; a
// failure never propagates as a fault to the run.
type Writers struct {
	chat   ports.ChatClient
	policy retry.Policy
	logger *slog.Logger
}

// NewWriters wires the chat backend with the default retry budget.
func NewWriters(chat ports.ChatClient, logger *slog.Logger) *Writers {
	return NewWritersWithPolicy(chat, retry.Default(), logger)
}

// NewWritersWithPolicy allows callers to override the retry policy.
func NewWritersWithPolicy(chat ports.ChatClient, policy retry.Policy, logger *slog.Logger) *Writers {
	return &Writers{chat: chat, policy: policy, logger: logger}
}

// LongFormArticle writes the structured long-form variant.
func (w *Writers) LongFormArticle(ctx context.Context, article domain.Article, st Settings) (string, error) {
	return w.generate(ctx, article, st, config.PromptLongFormSystem, config.PromptLongFormUser)
}

// PersonalPost writes the short personal-post variant.
func (w *Writers) PersonalPost(ctx context.Context, article domain.Article, st Settings) (string, error) {
	return w.generate(ctx, article, st, config.PromptPersonalSystem, config.PromptPersonalUser)
}

// BlogPost writes the SEO blog variant.
func (w *Writers) BlogPost(ctx context.Context, article domain.Article, st Settings) (string, error) {
	return w.generate(ctx, article, st, config.PromptBlogSystem, config.PromptBlogUser)
}

func (w *Writers) generate(ctx context.Context, article domain.Article, st Settings, systemSlot, userSlot string) (string, error) {
	system := st.Prompts[systemSlot]
	user := prompts.Render(st.Prompts[userSlot], map[string]string{
		"title":   article.Title,
		"content": article.Content,
	})

	var out string
	call := func() error {
		text, err := w.chat.Complete(ctx, ports.ChatRequest{
			System:      system,
			User:        user,
			Temperature: writerTemperature,
			MaxTokens:   maxWriterTokens,
		})
		if errors.Is(err, ports.ErrUnavailable) {
			return retry.Permanent(err)
		}
		if err != nil {
			w.warn("writer call failed, will retry", "slot", userSlot, "title", article.Title, "error", err)
			return err
		}
		out = text
		return nil
	}

	if err := w.policy.Do(ctx, call); err != nil {
		if errors.Is(err, ports.ErrUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("writer llm call: %w", err)
	}

	return out, nil
}

func (w *Writers) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
