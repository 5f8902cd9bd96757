package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"FeedCurator/internal/domain"
)

const (
	configPathEnv     = "FEEDCURATOR_CONFIG"
	openAIKeyEnv      = "OPENAI_API_KEY"
	openAIEndpointEnv = "OPENAI_ENDPOINT"
	openAIModelEnv    = "OPENAI_MODEL"
	notionKeyEnv      = "NOTION_API_KEY"
	notionDatabaseEnv = "NOTION_DATABASE_ID"
	ledgerPathEnv     = "LEDGER_PATH"
)

// Named prompt template slots consumed by the scorer and writers.
const (
	PromptClassifierSystem = "classifier_system"
	PromptClassifierUser   = "classifier_user_template"
	PromptLongFormSystem   = "writer_longform_system"
	PromptLongFormUser     = "writer_longform_user_template"
	PromptPersonalSystem   = "writer_personal_system"
	PromptPersonalUser     = "writer_personal_user_template"
	PromptBlogSystem       = "writer_blog_system"
	PromptBlogUser         = "writer_blog_user_template"
)

// ThresholdImportance names the keep/drop decision threshold.
const ThresholdImportance = "importance"

// Config holds the full application configuration, validated at load.
type Config struct {
	Server     ServerConfig       `yaml:"server"`
	Logging    LoggingConfig      `yaml:"logging"`
	Model      string             `yaml:"model"`
	Thresholds map[string]float64 `yaml:"thresholds"`
	Topics     []string           `yaml:"topics"`
	Defaults   RuleDefaults       `yaml:"defaults"`
	Prompts    map[string]string  `yaml:"prompts"`
	Feeds      []FeedConfig       `yaml:"feeds"`
	OpenAI     OpenAIConfig       `yaml:"openai"`
	Notion     NotionConfig       `yaml:"notion"`
	Ledger     LedgerConfig       `yaml:"ledger"`
	Scheduler  SchedulerConfig    `yaml:"scheduler"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RuleDefaults fills feed rule fields left unset in the file.
type RuleDefaults struct {
	MinWords     int     `yaml:"minWords"`
	MaxAgeDays   int     `yaml:"maxAgeDays"`
	Language     string  `yaml:"language"`
	SourceWeight float64 `yaml:"sourceWeight"`
}

// FeedConfig is the YAML shape of a single feed rule.
type FeedConfig struct {
	FeedURL      string   `yaml:"feedUrl"`
	Label        string   `yaml:"label"`
	Source       string   `yaml:"source"`
	Language     string   `yaml:"language"`
	TopicDefault string   `yaml:"topicDefault"`
	IncludeAny   []string `yaml:"includeAny"`
	IncludeAll   []string `yaml:"includeAll"`
	ExcludeAny   []string `yaml:"excludeAny"`
	MinWords     int      `yaml:"minWords"`
	MaxAgeDays   int      `yaml:"maxAgeDays"`
	SourceWeight *float64 `yaml:"sourceWeight"`
	Enabled      *bool    `yaml:"enabled"`
}

// OpenAIConfig defines how to reach the chat completion API.
type OpenAIConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// NotionConfig wires the external workspace sink.
type NotionConfig struct {
	BaseURL    string `yaml:"baseUrl"`
	APIKey     string `yaml:"apiKey"`
	DatabaseID string `yaml:"databaseId"`
}

// LedgerConfig locates the dedup database.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig enables periodic runs while serving.
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Load reads YAML configuration from path (or $FEEDCURATOR_CONFIG when
// empty), merges it over defaults, applies environment overrides, and
// validates the result.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()
	cfg.normalizeFeeds()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration back to disk as YAML.
func Save(cfg Config, path string) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Rules converts configured feeds into immutable per-run rules.
func (c Config) Rules() []domain.FeedRule {
	rules := make([]domain.FeedRule, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		weight := c.Defaults.SourceWeight
		if f.SourceWeight != nil {
			weight = *f.SourceWeight
		}
		enabled := true
		if f.Enabled != nil {
			enabled = *f.Enabled
		}
		rules = append(rules, domain.FeedRule{
			FeedURL:      f.FeedURL,
			Label:        f.Label,
			Source:       f.Source,
			Language:     f.Language,
			TopicDefault: f.TopicDefault,
			IncludeAny:   f.IncludeAny,
			IncludeAll:   f.IncludeAll,
			ExcludeAny:   f.ExcludeAny,
			MinWords:     f.MinWords,
			MaxAgeDays:   f.MaxAgeDays,
			SourceWeight: weight,
			Enabled:      enabled,
		})
	}
	return rules
}

// ImportanceThreshold returns the named keep/drop threshold.
func (c Config) ImportanceThreshold() float64 {
	if v, ok := c.Thresholds[ThresholdImportance]; ok {
		return v
	}
	return defaultConfig().Thresholds[ThresholdImportance]
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if len(c.Topics) == 0 {
		return fmt.Errorf("at least one topic is required")
	}

	topics := make(map[string]bool, len(c.Topics))
	for _, t := range c.Topics {
		topics[t] = true
	}

	for i, f := range c.Feeds {
		if f.FeedURL == "" {
			return fmt.Errorf("feed %d: feedUrl must not be empty", i)
		}
		if f.Label == "" {
			return fmt.Errorf("feed %s: label must not be empty", f.FeedURL)
		}
		if f.SourceWeight != nil && (*f.SourceWeight < 0.0 || *f.SourceWeight > 2.0) {
			return fmt.Errorf("feed %s: sourceWeight %.2f outside [0.0, 2.0]", f.Label, *f.SourceWeight)
		}
		if f.MinWords < 0 {
			return fmt.Errorf("feed %s: minWords must not be negative", f.Label)
		}
		if f.MaxAgeDays < 0 {
			return fmt.Errorf("feed %s: maxAgeDays must not be negative", f.Label)
		}
		if f.TopicDefault != "" && !topics[f.TopicDefault] {
			return fmt.Errorf("feed %s: topicDefault %q is not a configured topic", f.Label, f.TopicDefault)
		}
	}

	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive when enabled")
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv(openAIEndpointEnv); v != "" {
		c.OpenAI.Endpoint = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.Model = v
	}
	if v := os.Getenv(notionKeyEnv); v != "" {
		c.Notion.APIKey = v
	}
	if v := os.Getenv(notionDatabaseEnv); v != "" {
		c.Notion.DatabaseID = v
	}
	if v := os.Getenv(ledgerPathEnv); v != "" {
		c.Ledger.Path = v
	}
}

// normalizeFeeds fills unset feed fields from the configured defaults.
func (c *Config) normalizeFeeds() {
	for i := range c.Feeds {
		if c.Feeds[i].MinWords == 0 {
			c.Feeds[i].MinWords = c.Defaults.MinWords
		}
		if c.Feeds[i].MaxAgeDays == 0 {
			c.Feeds[i].MaxAgeDays = c.Defaults.MaxAgeDays
		}
		if c.Feeds[i].Language == "" {
			c.Feeds[i].Language = c.Defaults.Language
		}
		if c.Feeds[i].TopicDefault == "" && len(c.Topics) > 0 {
			c.Feeds[i].TopicDefault = c.Topics[0]
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server = override.Server
	}
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	for name, value := range override.Thresholds {
		base.Thresholds[name] = value
	}
	if len(override.Topics) > 0 {
		base.Topics = override.Topics
	}
	if override.Defaults.MinWords > 0 {
		base.Defaults.MinWords = override.Defaults.MinWords
	}
	if override.Defaults.MaxAgeDays > 0 {
		base.Defaults.MaxAgeDays = override.Defaults.MaxAgeDays
	}
	if override.Defaults.Language != "" {
		base.Defaults.Language = override.Defaults.Language
	}
	if override.Defaults.SourceWeight > 0 {
		base.Defaults.SourceWeight = override.Defaults.SourceWeight
	}
	for slot, text := range override.Prompts {
		base.Prompts[slot] = text
	}
	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}
	if override.OpenAI.Endpoint != "" {
		base.OpenAI.Endpoint = override.OpenAI.Endpoint
	}
	if override.OpenAI.APIKey != "" {
		base.OpenAI.APIKey = override.OpenAI.APIKey
	}
	if override.Notion.BaseURL != "" {
		base.Notion.BaseURL = override.Notion.BaseURL
	}
	if override.Notion.APIKey != "" {
		base.Notion.APIKey = override.Notion.APIKey
	}
	if override.Notion.DatabaseID != "" {
		base.Notion.DatabaseID = override.Notion.DatabaseID
	}
	if override.Ledger.Path != "" {
		base.Ledger = override.Ledger
	}
	if override.Scheduler.Enabled {
		base.Scheduler = override.Scheduler
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Server:     ServerConfig{Addr: ":8080"},
		Logging:    LoggingConfig{Level: "info"},
		Model:      "gpt-4o-mini",
		Thresholds: map[string]float64{ThresholdImportance: 3.2},
		Topics: []string{
			"SEO & AI visibility",
			"Webbanalys & AI",
			"Generativ AI",
		},
		Defaults: RuleDefaults{
			MinWords:     200,
			MaxAgeDays:   10,
			SourceWeight: 1.0,
		},
		Prompts: defaultPrompts(),
		OpenAI: OpenAIConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
		},
		Notion: NotionConfig{
			BaseURL: "https://api.notion.com/v1",
		},
		Ledger:    LedgerConfig{Path: "data/dedupe.db"},
		Scheduler: SchedulerConfig{Interval: 24 * time.Hour},
	}
}

func defaultPrompts() map[string]string {
	return map[string]string{
		PromptClassifierSystem: "You classify and score technology articles. Return exactly the requested JSON object, nothing else.",
		PromptClassifierUser: `Premises:
include_any={include_any}
include_all={include_all}
exclude_any={exclude_any}

Classify the topic as one of:
- SEO & AI visibility
- Webbanalys & AI
- Generativ AI

Rate each on a 0-5 scale:
- relevance
- novelty
- authority
- actionability

Return JSON exactly in this shape:
{
  "topic": "<one of the three>",
  "relevance": 0-5,
  "novelty": 0-5,
  "authority": 0-5,
  "actionability": 0-5,
  "importance": 0-5,
  "keep": true/false,
  "reason_short": "max 240 characters"
}

Source: {source_label} (weight {source_weight})
Title: {title}
URL: {url}
Text: """{snippet}"""`,
		PromptLongFormSystem: "You write fluent, professional, inspiring long-form posts.",
		PromptLongFormUser: `Rewrite the article as a long-form professional network post.
STRUCTURE:
- Headline (short and punchy)
- Lede (1-2 sentences)
- Body (3-5 paragraphs, subheadings welcome)
- Key takeaways (bullet list)
Title: {title}
Content:
{content}`,
		PromptPersonalSystem: "You write in a personal but professional tone.",
		PromptPersonalUser: `Write a short personal post based on the article.
REQUIREMENTS:
- Hook in the first line
- Short paragraphs (2-3 sentences max)
- A practical tie-in to everyday work
- End with an engaging question or call to action
Title: {title}
Content:
{content}`,
		PromptBlogSystem: "You write informative, engaging blog content.",
		PromptBlogUser: `Write a blog article based on the source article.
STRUCTURE:
- Headline (SEO-friendly and inviting)
- Meta description (150-160 characters)
- Introduction (hook and problem statement)
- Main body (3-5 sections with subheadings)
- Practical tips and insights
- Conclusion with a call to action

SEO REQUIREMENTS:
- At least 1000 words
- Subheadings (H2, H3)
- Bulleted and numbered lists
- Internal links (mark as [LINK: description])
- Readability: short paragraphs, sentences under 20 words

Title: {title}
Content:
{content}`,
	}
}
