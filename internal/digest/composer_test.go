package digest

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

type fakeGen struct {
	reply    string
	err      error
	messages []llm.Message
}

func (f *fakeGen) Generate(_ context.Context, messages []llm.Message, _ int, _ float64) (string, error) {
	f.messages = messages
	return f.reply, f.err
}

func sampleItems() []domain.ContentItem {
	ts := time.Date(2026, 8, 30, 7, 0, 0, 0, time.UTC)
	return []domain.ContentItem{
		{Title: "Chip fabs expand", Summary: "A long look at semiconductor capacity.", Category: "technology", URL: "http://n/chips", PublishedAt: ts},
		{Title: "Vaccine update", Summary: "Seasonal guidance released.", Category: "health", URL: "http://n/vax", PublishedAt: ts},
	}
}

func TestComposeUsesModelReply(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{reply: "Hi Ann, here is your digest."}
	c := NewComposer(gen, time.Second, 100, 0.7, logx.Nop())

	res := c.Compose(context.Background(), domain.Subscriber{ID: 7, FirstName: "Ann"}, sampleItems(), nil)
	if !res.Personalized {
		t.Fatal("expected personalized result")
	}
	if res.Text != gen.reply {
		t.Fatalf("Text = %q, want model reply", res.Text)
	}
	if res.SubscriberID != 7 {
		t.Fatalf("SubscriberID = %d, want 7", res.SubscriberID)
	}
}

func TestComposeFallsBackOnModelFailure(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{err: errors.New("429 too many requests")}
	c := NewComposer(gen, time.Second, 100, 0.7, logx.Nop())

	res := c.Compose(context.Background(), domain.Subscriber{FirstName: "Ann"}, sampleItems(), nil)
	if res.Personalized {
		t.Fatal("expected fallback result")
	}
	if res.Text != Fallback("Ann", sampleItems()) {
		t.Fatalf("fallback text mismatch:\n%s", res.Text)
	}
}

func TestComposeWithoutGenerator(t *testing.T) {
	t.Parallel()
	c := NewComposer(nil, time.Second, 100, 0.7, logx.Nop())

	res := c.Compose(context.Background(), domain.Subscriber{FirstName: "Ann"}, sampleItems(), nil)
	if res.Personalized {
		t.Fatal("expected fallback result when no generator is configured")
	}
}

func TestComposePromptCarriesContext(t *testing.T) {
	t.Parallel()
	gen := &fakeGen{reply: "ok"}
	c := NewComposer(gen, time.Second, 100, 0.7, logx.Nop())
	sub := domain.Subscriber{FirstName: "Ann", Categories: []string{"technology", "health"}}
	excerpts := []domain.Excerpt{{Message: "любимая тема — чипы", Response: "noted"}}

	c.Compose(context.Background(), sub, sampleItems(), excerpts)
	if len(gen.messages) != 2 {
		t.Fatalf("got %d messages, want system+user", len(gen.messages))
	}
	prompt := gen.messages[1].Content
	for _, want := range []string{"technology, health", "Chip fabs expand", "http://n/vax", "любимая тема — чипы", "Greets the user by name (Ann)"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestFallbackDeterministic(t *testing.T) {
	t.Parallel()
	items := sampleItems()
	first := Fallback("Ann", items)
	for i := 0; i < 5; i++ {
		if got := Fallback("Ann", items); got != first {
			t.Fatal("fallback output changed between identical calls")
		}
	}
}

func TestFallbackLayout(t *testing.T) {
	t.Parallel()
	got := Fallback("Ann", sampleItems())

	for _, want := range []string{
		"# Good day, Ann!\n",
		"\nHere are today's top stories selected for you:\n",
		"\n## Technology\n",
		"**Chip fabs expand**\n",
		"A long look at semiconductor capacity....\n",
		"[Read more](http://n/chips)\n",
		"\n## Health\n",
		"\n---\n",
		"What topics would you like to hear more about? Just let me know!",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("fallback missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "## Technology") > strings.Index(got, "## Health") {
		t.Fatal("categories must appear in first-seen item order")
	}
}

func TestFallbackWithoutName(t *testing.T) {
	t.Parallel()
	got := Fallback("", sampleItems())
	if !strings.HasPrefix(got, "# Your Daily News Digest\n") {
		t.Fatalf("unexpected heading:\n%s", got)
	}
}

func TestFallbackEmptySelection(t *testing.T) {
	t.Parallel()
	got := Fallback("Ann", nil)
	if !strings.Contains(got, "No fresh stories in your topics just yet. Check back soon!") {
		t.Fatalf("missing empty-state line:\n%s", got)
	}
	if strings.Contains(got, "## ") {
		t.Fatalf("empty digest must not contain category sections:\n%s", got)
	}
}

func TestFallbackTruncatesLongSummaries(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("я", 200)
	items := []domain.ContentItem{{Title: "T", Summary: long, Category: "science", URL: "http://n/t"}}
	got := Fallback("", items)
	if !strings.Contains(got, strings.Repeat("я", 150)+"...\n") {
		t.Fatal("summary was not truncated to 150 runes")
	}
	if strings.Contains(got, strings.Repeat("я", 151)) {
		t.Fatal("summary exceeds 150 runes")
	}
}
