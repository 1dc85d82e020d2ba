package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Config is the whole application configuration.
//
// The file on disk is YAML (or JSON); both are decoded strictly so typos in
// field names fail loudly instead of being silently ignored.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	LLM      LLMConfig      `json:"llm"`
	News     NewsConfig     `json:"news"`
	Digest   DigestConfig   `json:"digest"`
	Storage  StorageConfig  `json:"storage"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// RatePerSec bounds outbound sends across all chats. 0 means default.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

// LLMConfig describes the personalization capability.
//
// Provider values:
//   - "openai": any OpenAI-compatible chat-completions endpoint
//   - "gemini": Google Gemini via the genai SDK
type LLMConfig struct {
	Provider string `json:"provider"`
	Endpoint string `json:"endpoint,omitempty"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key,omitempty"`
	// Timeout is a Go duration string; digests are non-interactive so the
	// default is generous (12s).
	Timeout   string `json:"timeout,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	// Temperature is a pointer so an explicit 0 (deterministic sampling) is
	// distinguishable from an absent field.
	Temperature *float64 `json:"temperature,omitempty"`
}

// SourceConfig describes one ingestion source.
//
// Kind values:
//   - "rss": RSS/Atom feed, parsed with gofeed
//   - "site": HTML index page, item links discovered with goquery
type SourceConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

type NewsConfig struct {
	Sources               []SourceConfig `json:"sources"`
	UpdateIntervalMinutes int            `json:"update_interval_minutes,omitempty"`
	// Categories is the fixed classification vocabulary, in match-priority
	// order. "general" is the implicit fallback and must not be listed.
	Categories []string `json:"categories,omitempty"`
	// MaxItemsPerSource caps how many discovered URLs are processed per
	// source per run.
	MaxItemsPerSource int `json:"max_items_per_source,omitempty"`
}

type DigestConfig struct {
	PerCategoryCap int    `json:"per_category_cap,omitempty"`
	DefaultTime    string `json:"default_time,omitempty"` // "HH:MM", 24-hour
	HistoryWindow  int    `json:"history_window,omitempty"`
	Workers        int    `json:"workers,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// Default values applied by Normalize.
const (
	DefaultUpdateIntervalMinutes = 60
	DefaultPerCategoryCap        = 2
	DefaultDigestTime            = "08:00"
	DefaultHistoryWindow         = 5
	DefaultDigestWorkers         = 4
	DefaultMaxItemsPerSource     = 300
	DefaultLLMTimeout            = "12s"
	DefaultLLMMaxTokens          = 1000
	DefaultLLMTemperature        = 0.7
)

// DefaultCategories is the classification vocabulary in priority order.
var DefaultCategories = []string{
	"politics", "business", "technology", "science", "health", "entertainment", "sports",
}

var hhmmRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidHHMM reports whether s is a 24-hour "HH:MM" time.
func ValidHHMM(s string) bool { return hhmmRe.MatchString(s) }

// Normalize fills zero values with defaults. It mutates the receiver.
func (c *Config) Normalize() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Timeout == "" {
		c.LLM.Timeout = DefaultLLMTimeout
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = DefaultLLMMaxTokens
	}
	if c.LLM.Temperature == nil {
		t := DefaultLLMTemperature
		c.LLM.Temperature = &t
	}
	if c.News.UpdateIntervalMinutes <= 0 {
		c.News.UpdateIntervalMinutes = DefaultUpdateIntervalMinutes
	}
	if len(c.News.Categories) == 0 {
		c.News.Categories = append([]string(nil), DefaultCategories...)
	}
	if c.News.MaxItemsPerSource <= 0 {
		c.News.MaxItemsPerSource = DefaultMaxItemsPerSource
	}
	for i := range c.News.Sources {
		if c.News.Sources[i].Kind == "" {
			c.News.Sources[i].Kind = "rss"
		}
	}
	if c.Digest.PerCategoryCap <= 0 {
		c.Digest.PerCategoryCap = DefaultPerCategoryCap
	}
	if c.Digest.DefaultTime == "" {
		c.Digest.DefaultTime = DefaultDigestTime
	}
	if c.Digest.HistoryWindow <= 0 {
		c.Digest.HistoryWindow = DefaultHistoryWindow
	}
	if c.Digest.Workers <= 0 {
		c.Digest.Workers = DefaultDigestWorkers
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./digestbot.db"
	}
}

// Validate checks the parts that cannot be defaulted away.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider)
	}
	if c.LLM.Temperature != nil {
		if t := *c.LLM.Temperature; t < 0 || t > 2 {
			return fmt.Errorf("llm.temperature: %v is out of range [0, 2]", t)
		}
	}
	for field, raw := range c.durationFields() {
		if _, err := parseDuration(field, raw); err != nil {
			return err
		}
	}
	if !ValidHHMM(c.Digest.DefaultTime) {
		return fmt.Errorf("digest.default_time: %q is not HH:MM", c.Digest.DefaultTime)
	}
	for _, s := range c.News.Sources {
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("news.sources: source %q has no url", s.Name)
		}
		if s.Kind != "rss" && s.Kind != "site" {
			return fmt.Errorf("news.sources: source %q has unknown kind %q", s.Name, s.Kind)
		}
	}
	for _, cat := range c.News.Categories {
		if cat == "general" {
			return errors.New("news.categories: \"general\" is the implicit fallback and must not be listed")
		}
	}
	return nil
}
