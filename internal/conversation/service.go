// Package conversation answers inbound subscriber messages with the language
// model and records each exchange as an excerpt. The excerpt window later
// biases digest personalization.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"digestbot/internal/domain"
	"digestbot/internal/llm"
	"digestbot/pkg/logx"
)

const systemPromptTemplate = `You are a helpful and knowledgeable news assistant for a media company.
Your job is to have natural conversations about news and current events,
help users discover content they might be interested in, and provide
summaries and insights about news articles.

Keep your responses conversational and engaging. When appropriate, ask
follow-up questions to better understand the user's interests.

The user's current news preferences are: %s

Respond in markdown format.`

const apologyReply = "Sorry, I'm having trouble processing your request right now. Please try again later."

// ExcerptStore is the persistence slice the service needs.
type ExcerptStore interface {
	SaveExcerpt(ctx context.Context, subscriberID int64, message, response string) error
	RecentExcerpts(ctx context.Context, subscriberID int64, limit int) ([]domain.Excerpt, error)
}

type Service struct {
	store       ExcerptStore
	gen         llm.Client
	window      int
	timeout     time.Duration
	maxTokens   int
	temperature float64
	log         logx.Logger
}

func New(store ExcerptStore, gen llm.Client, window int, timeout time.Duration, log logx.Logger) *Service {
	if window <= 0 {
		window = 5
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Service{
		store:       store,
		gen:         gen,
		window:      window,
		timeout:     timeout,
		maxTokens:   500,
		temperature: 0.7,
		log:         log,
	}
}

// Reply generates a response to one inbound message and persists the
// exchange. A failing model yields an apology reply, never an error to the
// subscriber.
func (s *Service) Reply(ctx context.Context, sub domain.Subscriber, text string) string {
	prefs := "No specific preferences set yet."
	if len(sub.Categories) > 0 {
		prefs = strings.Join(sub.Categories, ", ")
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(systemPromptTemplate, prefs)},
	}
	history, err := s.store.RecentExcerpts(ctx, sub.ID, s.window)
	if err != nil {
		s.log.Warn("excerpt lookup failed", logx.Int64("subscriber", sub.ID), logx.Err(err))
	}
	for _, e := range history {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: e.Message},
			llm.Message{Role: llm.RoleAssistant, Content: e.Response},
		)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	response, err := s.gen.Generate(gctx, messages, s.maxTokens, s.temperature)
	cancel()
	if err != nil {
		s.log.Warn("conversation reply failed", logx.Int64("subscriber", sub.ID), logx.Err(err))
		response = apologyReply
	}

	if err := s.store.SaveExcerpt(ctx, sub.ID, text, response); err != nil {
		s.log.Error("excerpt persist failed", logx.Int64("subscriber", sub.ID), logx.Err(err))
	}
	return response
}
