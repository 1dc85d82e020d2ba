// Package llm wraps the external text-generation capability used for digest
// personalization and conversation replies. Every call site must treat it as
// unreliable and keep a deterministic fallback.
package llm

import (
	"context"
	"errors"
	"fmt"

	"digestbot/internal/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of generation context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrEmptyResponse is returned when the provider answers without usable text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Client generates text from an ordered message context.
type Client interface {
	Generate(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error)
}

// New builds the configured provider.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg), nil
	case "gemini":
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
