package score

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"FeedCurator/internal/config"
	"FeedCurator/internal/domain"
	"FeedCurator/internal/ports"
	"FeedCurator/internal/prompts"
	"FeedCurator/pkg/retry"
)

const (
	// maxSnippetChars bounds the article body sent to the model.
	maxSnippetChars = 4000
	maxReasonChars  = 240

	scoreTemperature = 0.1
	maxScoreTokens   = 500
)

// Derived importance is a fixed weighted sum of the sub-scores,
// multiplied by the rule's source weight.
const (
	weightRelevance     = 0.35
	weightNovelty       = 0.25
	weightActionability = 0.25
	weightAuthority     = 0.15
)

// Settings carries the per-run scoring configuration.
type Settings struct {
	Model     string
	Threshold float64
	Topics    []string
	Prompts   map[string]string
}

// Scorer asks the LLM for a structured verdict and turns it into a
// keep/drop decision against the importance threshold.
type Scorer struct {
	chat   ports.ChatClient
	policy retry.Policy
	logger *slog.Logger
}

// NewScorer wires the chat backend with the default retry budget.
func NewScorer(chat ports.ChatClient, logger *slog.Logger) *Scorer {
	return NewScorerWithPolicy(chat, retry.Default(), logger)
}

// NewScorerWithPolicy allows callers to override the retry policy.
func NewScorerWithPolicy(chat ports.ChatClient, policy retry.Policy, logger *slog.Logger) *Scorer {
	return &Scorer{chat: chat, policy: policy, logger: logger}
}

// Score prompts the model and post-processes its answer. It returns
// nil with an error when the call budget is exhausted, the backend is
// unavailable, or the response cannot be parsed; none of these abort
// the caller's run.
func (s *Scorer) Score(ctx context.Context, article domain.Article, rule domain.FeedRule, st Settings) (*domain.ScoreResult, error) {
	system := st.Prompts[config.PromptClassifierSystem]
	user := prompts.Render(st.Prompts[config.PromptClassifierUser], map[string]string{
		"include_any":   strings.Join(rule.IncludeAny, ", "),
		"include_all":   strings.Join(rule.IncludeAll, ", "),
		"exclude_any":   strings.Join(rule.ExcludeAny, ", "),
		"source_label":  article.SourceLabel,
		"source_weight": strconv.FormatFloat(article.SourceWeight, 'g', -1, 64),
		"title":         article.Title,
		"url":           article.URL,
		"snippet":       snippet(article.Content),
	})

	var raw string
	call := func() error {
		out, err := s.chat.Complete(ctx, ports.ChatRequest{
			System:      system,
			User:        user,
			Temperature: scoreTemperature,
			MaxTokens:   maxScoreTokens,
		})
		if errors.Is(err, ports.ErrUnavailable) {
			return retry.Permanent(err)
		}
		if err != nil {
			s.warn("score call failed, will retry", "title", article.Title, "error", err)
			return err
		}
		raw = out
		return nil
	}

	if err := s.policy.Do(ctx, call); err != nil {
		if errors.Is(err, ports.ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("score llm call: %w", err)
	}

	blob, ok := extractJSON(raw)
	if !ok {
		s.warn("no json object in score response", "title", article.Title, "response", raw)
		return nil, fmt.Errorf("score response contained no JSON object")
	}

	var payload scorePayload
	if err := json.Unmarshal([]byte(blob), &payload); err != nil {
		s.warn("unparseable score response", "title", article.Title, "error", err)
		return nil, fmt.Errorf("parse score response: %w", err)
	}

	result := s.process(payload, rule, st)
	return &result, nil
}

type scorePayload struct {
	Topic         string   `json:"topic"`
	Relevance     float64  `json:"relevance"`
	Novelty       float64  `json:"novelty"`
	Authority     float64  `json:"authority"`
	Actionability float64  `json:"actionability"`
	Importance    *float64 `json:"importance"`
	Keep          bool     `json:"keep"`
	ReasonShort   string   `json:"reason_short"`
}

// process validates the topic, clamps sub-scores, derives importance
// when the model omitted it, and decides keep against the threshold.
// The model's own keep flag is deliberately ignored.
func (s *Scorer) process(payload scorePayload, rule domain.FeedRule, st Settings) domain.ScoreResult {
	topic := payload.Topic
	if !containsTopic(st.Topics, topic) {
		s.warn("invalid topic from model, using rule default", "topic", topic, "default", rule.TopicDefault)
		topic = rule.TopicDefault
	}

	relevance := clampScore(payload.Relevance)
	novelty := clampScore(payload.Novelty)
	authority := clampScore(payload.Authority)
	actionability := clampScore(payload.Actionability)

	var importance float64
	if payload.Importance != nil {
		importance = *payload.Importance
	} else {
		base := weightRelevance*float64(relevance) +
			weightNovelty*float64(novelty) +
			weightActionability*float64(actionability) +
			weightAuthority*float64(authority)
		importance = round2(base * rule.SourceWeight)
	}

	return domain.ScoreResult{
		Topic:         topic,
		Relevance:     relevance,
		Novelty:       novelty,
		Authority:     authority,
		Actionability: actionability,
		Importance:    importance,
		Keep:          importance >= st.Threshold,
		ReasonShort:   truncateRunes(payload.ReasonShort, maxReasonChars),
	}
}

// extractJSON returns the first balanced {...} span, tolerating prose
// around the object.
func extractJSON(s string) (string, bool) {
	depth := 0
	start := -1
	for i, r := range s {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= maxSnippetChars {
		return content
	}
	return string(runes[:maxSnippetChars]) + "..."
}

func clampScore(v float64) int {
	n := int(v)
	if n < 0 {
		return 0
	}
	if n > 5 {
		return 5
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func containsTopic(topics []string, topic string) bool {
	for _, t := range topics {
		if t == topic {
			return true
		}
	}
	return false
}

func (s *Scorer) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
