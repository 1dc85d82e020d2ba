package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"digestbot/internal/domain"
	"digestbot/internal/llm"
	"digestbot/pkg/logx"
)

type fakeStore struct {
	history []domain.Excerpt
	saved   []domain.Excerpt
	saveErr error
}

func (f *fakeStore) SaveExcerpt(_ context.Context, _ int64, message, response string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, domain.Excerpt{Message: message, Response: response})
	return nil
}

func (f *fakeStore) RecentExcerpts(context.Context, int64, int) ([]domain.Excerpt, error) {
	return f.history, nil
}

type fakeGen struct {
	reply    string
	err      error
	messages []llm.Message
}

func (f *fakeGen) Generate(_ context.Context, messages []llm.Message, _ int, _ float64) (string, error) {
	f.messages = messages
	return f.reply, f.err
}

func TestReplyGeneratesAndSaves(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	gen := &fakeGen{reply: "Here is what I found."}
	svc := New(store, gen, 5, time.Second, logx.Nop())

	got := svc.Reply(context.Background(), domain.Subscriber{ID: 1, Categories: []string{"technology"}}, "any chip news?")
	if got != gen.reply {
		t.Fatalf("Reply = %q, want model reply", got)
	}
	if len(store.saved) != 1 || store.saved[0].Message != "any chip news?" || store.saved[0].Response != gen.reply {
		t.Fatalf("excerpt not saved correctly: %+v", store.saved)
	}
	if !strings.Contains(gen.messages[0].Content, "technology") {
		t.Fatal("system prompt missing subscriber preferences")
	}
}

func TestReplyThreadsHistory(t *testing.T) {
	t.Parallel()
	store := &fakeStore{history: []domain.Excerpt{
		{Message: "hello", Response: "hi"},
		{Message: "more sports", Response: "noted"},
	}}
	gen := &fakeGen{reply: "ok"}
	svc := New(store, gen, 5, time.Second, logx.Nop())

	svc.Reply(context.Background(), domain.Subscriber{ID: 1}, "latest?")
	// system + 2 history pairs + current message
	if len(gen.messages) != 6 {
		t.Fatalf("got %d messages, want 6", len(gen.messages))
	}
	if gen.messages[1].Role != llm.RoleUser || gen.messages[1].Content != "hello" {
		t.Fatalf("history out of order: %+v", gen.messages[1])
	}
	if gen.messages[2].Role != llm.RoleAssistant || gen.messages[2].Content != "hi" {
		t.Fatalf("history out of order: %+v", gen.messages[2])
	}
	if gen.messages[5].Content != "latest?" {
		t.Fatalf("current message must come last, got %+v", gen.messages[5])
	}
}

func TestReplyApologizesOnModelFailure(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	gen := &fakeGen{err: errors.New("503")}
	svc := New(store, gen, 5, time.Second, logx.Nop())

	got := svc.Reply(context.Background(), domain.Subscriber{ID: 1}, "hi")
	if got != apologyReply {
		t.Fatalf("Reply = %q, want apology", got)
	}
	// The failed exchange is still recorded.
	if len(store.saved) != 1 || store.saved[0].Response != apologyReply {
		t.Fatalf("excerpt not saved for failed exchange: %+v", store.saved)
	}
}

func TestReplyDefaultPreferencesLine(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{reply: "ok"}
	svc := New(&fakeStore{}, gen, 5, time.Second, logx.Nop())

	svc.Reply(context.Background(), domain.Subscriber{ID: 1}, "hi")
	if !strings.Contains(gen.messages[0].Content, "No specific preferences set yet.") {
		t.Fatal("system prompt missing default preferences line")
	}
}
