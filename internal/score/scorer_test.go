package score

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"FeedCurator/internal/config"
	"FeedCurator/internal/domain"
	"FeedCurator/internal/ports"
	"FeedCurator/pkg/retry"
)

type fakeChat struct {
	responses []string
	errs      []error
	calls     int
	lastReq   ports.ChatRequest
}

func (f *fakeChat) Complete(ctx context.Context, req ports.ChatRequest) (string, error) {
	f.lastReq = req
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func testSettings() Settings {
	return Settings{
		Model:     "gpt-4o-mini",
		Threshold: 3.2,
		Topics:    []string{"SEO & AI visibility", "Webbanalys & AI", "Generativ AI"},
		Prompts: map[string]string{
			config.PromptClassifierSystem: "classify",
			config.PromptClassifierUser:   "Title: {title}\nText: {snippet}",
		},
	}
}

func testArticle() domain.Article {
	return domain.Article{
		Title:        "Search rankings shift",
		URL:          "https://example.org/a",
		Content:      "body text",
		WordCount:    250,
		SourceLabel:  "example",
		SourceWeight: 1.0,
	}
}

func testRule() domain.FeedRule {
	return domain.FeedRule{
		Label:        "example",
		TopicDefault: "Generativ AI",
		SourceWeight: 1.0,
		Enabled:      true,
	}
}

func TestScoreDerivedImportance(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{responses: []string{`{
		"topic": "Generativ AI",
		"relevance": 4,
		"novelty": 3,
		"authority": 2,
		"actionability": 5,
		"keep": false,
		"reason_short": "solid coverage"
	}`}}

	s := NewScorerWithPolicy(chat, fastPolicy(), nil)
	result, err := s.Score(context.Background(), testArticle(), testRule(), testSettings())
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}

	// round(0.35*4 + 0.25*3 + 0.25*5 + 0.15*2, 2) = 3.70
	if result.Importance != 3.70 {
		t.Fatalf("expected derived importance 3.70, got %v", result.Importance)
	}
	if !result.Keep {
		t.Fatal("importance 3.70 >= threshold 3.2 must keep")
	}
}

func TestScoreModelSuppliedImportanceTrusted(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{responses: []string{`{
		"topic": "Generativ AI",
		"relevance": 5, "novelty": 5, "authority": 5, "actionability": 5,
		"importance": 1.5,
		"keep": true,
		"reason_short": "model says keep but importance is low"
	}`}}

	s := NewScorerWithPolicy(chat, fastPolicy(), nil)
	result, err := s.Score(context.Background(), testArticle(), testRule(), testSettings())
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}

	if result.Importance != 1.5 {
		t.Fatalf("expected model importance 1.5, got %v", result.Importance)
	}
	// The keep decision comes from the threshold, never the model.
	if result.Keep {
		t.Fatal("importance 1.5 < 3.2 must not keep")
	}
}

func TestScoreSourceWeightScalesImportance(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{responses: []string{`{
		"topic": "Generativ AI",
		"relevance": 4, "novelty": 3, "authority": 2, "actionability": 5,
		"keep": true, "reason_short": "x"
	}`}}

	rule := testRule()
	rule.SourceWeight = 0.5

	s := NewScorerWithPolicy(chat, fastPolicy(), nil)
	result, err := s.Score(context.Background(), testArticle(), rule, testSettings())
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}

	if result.Importance != 1.85 {
		t.Fatalf("expected weighted importance 1.85, got %v", result.Importance)
	}
	if result.Keep {
		t.Fatal("weighted importance below threshold must not keep")
	}
}

func TestScoreJSONExtractedFromProse(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{responses: []string{
		`Here is my verdict: {"topic": "Generativ AI", "relevance": 4, "novelty": 4, "authority": 4, "actionability": 4, "keep": true, "reason_short": "ok"} hope it helps!`,
	}}

	s := NewScorerWithPolicy(chat, fastPolicy(), nil)
	result, err := s.Score(context.Background(), testArticle(), testRule(), testSettings())
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if result.Relevance != 4 {
		t.Fatalf("unexpected relevance: %d", result.Relevance)
	}
}

func TestScoreUnparseableResponse(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{responses: []string{"no json here"}}

	s := NewScorerWithPolicy(chat, fastPolicy(), nil)
	if _, err := s.Score(context.Background(), testArticle(), testRule(), testSettings()); err == nil {
		t.Fatal("expected error for response without JSON")
	}
}

func TestScoreInvalidTopicFallsBackToRuleDefault(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{responses: []string{`{
		"topic": "Cooking",
		"relevance": 4, "novelty": 4, "authority": 4, "actionability": 4,
		"keep": true, "reason_short": "ok"
	}`}}

	s := NewScorerWithPolicy(chat, fastPolicy(), nil)
	result, err := s.Score(context.Background(), testArticle(), testRule(), testSettings())
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if result.Topic != "Generativ AI" {
		t.Fatalf("expected rule default topic, got %q", result.Topic)
	}
}

func TestScoreClampsSubScores(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{responses: []string{`{
		"topic": "Generativ AI",
		"relevance": 9, "novelty": -3, "authority": 5, "actionability": 2,
		"importance": 4.0, "keep": true, "reason_short": "ok"
	}`}}

	s := NewScorerWithPolicy(chat, fastPolicy(), nil)
	result, err := s.Score(context.Background(), testArticle(), testRule(), testSettings())
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if result.Relevance != 5 || result.Novelty != 0 {
		t.Fatalf("expected clamped scores 5/0, got %d/%d", result.Relevance, result.Novelty)
	}
}

func TestScoreReasonTruncated(t *testing.T) {
	t.Parallel()

	longReason := strings.Repeat("a", 300)
	chat := &fakeChat{responses: []string{fmt.Sprintf(`{
		"topic": "Generativ AI",
		"relevance": 4, "novelty": 4, "authority": 4, "actionability": 4,
		"keep": true, "reason_short": %q
	}`, longReason)}}

	s := NewScorerWithPolicy(chat, fastPolicy(), nil)
	result, err := s.Score(context.Background(), testArticle(), testRule(), testSettings())
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if len(result.ReasonShort) != 240 {
		t.Fatalf("expected reason capped at 240 chars, got %d", len(result.ReasonShort))
	}
}

func TestScoreRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{
		errs: []error{fmt.Errorf("transient"), fmt.Errorf("transient")},
		responses: []string{"", "", `{
			"topic": "Generativ AI",
			"relevance": 4, "novelty": 4, "authority": 4, "actionability": 4,
			"keep": true, "reason_short": "ok"
		}`},
	}

	s := NewScorerWithPolicy(chat, fastPolicy(), nil)
	if _, err := s.Score(context.Background(), testArticle(), testRule(), testSettings()); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if chat.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", chat.calls)
	}
}

func TestScoreExhaustedRetryBudget(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{errs: []error{
		fmt.Errorf("down"), fmt.Errorf("down"), fmt.Errorf("down"), fmt.Errorf("down"),
	}}

	s := NewScorerWithPolicy(chat, fastPolicy(), nil)
	if _, err := s.Score(context.Background(), testArticle(), testRule(), testSettings()); err == nil {
		t.Fatal("expected error after exhausting retry budget")
	}
	if chat.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", chat.calls)
	}
}

func TestScoreUnavailableClientDoesNotRetry(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{errs: []error{ports.ErrUnavailable, ports.ErrUnavailable}}

	s := NewScorerWithPolicy(chat, fastPolicy(), nil)
	_, err := s.Score(context.Background(), testArticle(), testRule(), testSettings())
	if !errors.Is(err, ports.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if chat.calls != 1 {
		t.Fatalf("unavailable client must not be retried, got %d calls", chat.calls)
	}
}

func TestScoreSnippetTruncation(t *testing.T) {
	t.Parallel()

	article := testArticle()
	article.Content = strings.Repeat("x", 5000)

	chat := &fakeChat{responses: []string{`{
		"topic": "Generativ AI",
		"relevance": 4, "novelty": 4, "authority": 4, "actionability": 4,
		"keep": true, "reason_short": "ok"
	}`}}

	s := NewScorerWithPolicy(chat, fastPolicy(), nil)
	if _, err := s.Score(context.Background(), article, testRule(), testSettings()); err != nil {
		t.Fatalf("Score error: %v", err)
	}

	if strings.Contains(chat.lastReq.User, strings.Repeat("x", 4001)) {
		t.Fatal("article body must be truncated to the snippet bound")
	}
	if !strings.Contains(chat.lastReq.User, "...") {
		t.Fatal("truncated snippet should carry an ellipsis")
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	blob, ok := extractJSON(`prefix {"a": {"b": 1}} suffix {"c": 2}`)
	if !ok {
		t.Fatal("expected a JSON span")
	}
	if blob != `{"a": {"b": 1}}` {
		t.Fatalf("expected first balanced span, got %q", blob)
	}

	if _, ok := extractJSON("nothing here"); ok {
		t.Fatal("expected no span")
	}
}
