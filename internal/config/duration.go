package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration-valued fields are Go duration strings in the file ("10s", "2m").
// Validate() checks every one of them, so the typed accessors below only
// ever see parseable values on a committed config and fall back to their
// defaults on empty fields.

func parseDuration(field, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", field, raw)
	}
	return d, nil
}

// durationFields maps validation names onto the raw field values.
func (c *Config) durationFields() map[string]string {
	return map[string]string{
		"telegram.poll_timeout": c.Telegram.PollTimeout,
		"llm.timeout":           c.LLM.Timeout,
		"storage.busy_timeout":  c.Storage.BusyTimeout,
	}
}

// PollTimeoutOrDefault is the long-poll timeout for the Telegram transport.
func (c TelegramConfig) PollTimeoutOrDefault() time.Duration {
	if d, err := parseDuration("telegram.poll_timeout", c.PollTimeout); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

// TimeoutOrDefault bounds one personalization or conversation call.
func (c LLMConfig) TimeoutOrDefault() time.Duration {
	if d, err := parseDuration("llm.timeout", c.Timeout); err == nil && d > 0 {
		return d
	}
	return 12 * time.Second
}

// BusyTimeoutOrDefault is the SQLite busy_timeout pragma value.
func (c StorageConfig) BusyTimeoutOrDefault() time.Duration {
	if d, err := parseDuration("storage.busy_timeout", c.BusyTimeout); err == nil && d > 0 {
		return d
	}
	return 5 * time.Second
}
