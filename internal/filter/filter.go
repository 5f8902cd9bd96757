package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"

	"FeedCurator/internal/domain"
)

// languageSampleLen bounds how much content feeds language detection.
const languageSampleLen = 500

// DetectFunc resolves the ISO 639-1 language code of a text sample.
type DetectFunc func(text string) (string, error)

// Filter applies the rule predicates to collected articles. It is pure
// apart from the injected clock and language detector.
type Filter struct {
	now    func() time.Time
	detect DetectFunc
}

// New builds a filter with the real clock and whatlanggo detection.
func New() *Filter {
	return &Filter{
		now:    time.Now,
		detect: detectLanguage,
	}
}

// NewWithDeps injects clock and detector, for callers that need
// deterministic behavior.
func NewWithDeps(now func() time.Time, detect DetectFunc) *Filter {
	f := New()
	if now != nil {
		f.now = now
	}
	if detect != nil {
		f.detect = detect
	}
	return f
}

// Apply runs the predicate chain in order; the first failing predicate
// wins and its reason names the violated threshold or keyword set.
func (f *Filter) Apply(article domain.Article, rule domain.FeedRule) (bool, string) {
	if !rule.Enabled {
		return false, "feed rule disabled"
	}

	if article.Published != nil {
		ageDays := int(f.now().Sub(*article.Published).Hours() / 24)
		if ageDays > rule.MaxAgeDays {
			return false, fmt.Sprintf("article too old (%d days > %d)", ageDays, rule.MaxAgeDays)
		}
	}

	if article.WordCount < rule.MinWords {
		return false, fmt.Sprintf("article too short (%d words < %d)", article.WordCount, rule.MinWords)
	}

	joined := joinedText(article)

	if len(rule.IncludeAny) > 0 && !matchesAny(joined, rule.IncludeAny) {
		return false, fmt.Sprintf("no include_any matches: %s", strings.Join(rule.IncludeAny, ", "))
	}

	if len(rule.IncludeAll) > 0 && !matchesAll(joined, rule.IncludeAll) {
		return false, fmt.Sprintf("not all include_all match: %s", strings.Join(rule.IncludeAll, ", "))
	}

	if len(rule.ExcludeAny) > 0 && matchesAny(joined, rule.ExcludeAny) {
		return false, fmt.Sprintf("excluded by exclude_any: %s", strings.Join(rule.ExcludeAny, ", "))
	}

	if rule.Language != "" {
		detected, err := f.detect(languageSample(article))
		// Fail open when detection itself fails.
		if err == nil && detected != rule.Language {
			return false, fmt.Sprintf("language mismatch (expected: %s, detected: %s)", rule.Language, detected)
		}
	}

	return true, "passed all filters"
}

func joinedText(article domain.Article) string {
	return strings.ToLower(article.Title + " " + article.Content + " " + article.Summary)
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func matchesAll(text string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(text, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

func languageSample(article domain.Article) string {
	sample := article.Title
	if article.Content != "" {
		content := []rune(article.Content)
		if len(content) > languageSampleLen {
			content = content[:languageSampleLen]
		}
		sample += " " + string(content)
	}
	return sample
}

func detectLanguage(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty sample")
	}

	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		return "", fmt.Errorf("no language detected")
	}
	if !info.IsReliable() {
		return "", fmt.Errorf("detection unreliable for %q", code)
	}
	return code, nil
}
