package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"digestbot/internal/domain"
	"digestbot/internal/llm"
	"digestbot/pkg/logx"
)

const composerSystemPrompt = "You are a helpful news assistant creating personalized digests."

// Composer turns a selected item set plus subscriber context into digest
// text. The language-model path is preferred; any failure there falls back to
// a deterministic template so a digest is always produced.
type Composer struct {
	gen         llm.Client
	timeout     time.Duration
	maxTokens   int
	temperature float64
	log         logx.Logger
}

func NewComposer(gen llm.Client, timeout time.Duration, maxTokens int, temperature float64, log logx.Logger) *Composer {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Composer{gen: gen, timeout: timeout, maxTokens: maxTokens, temperature: temperature, log: log}
}

// Compose never fails: an empty selection composes an empty-state digest, and
// a personalization failure yields the fallback text with Personalized=false.
func (c *Composer) Compose(ctx context.Context, sub domain.Subscriber, items []domain.ContentItem, excerpts []domain.Excerpt) domain.DigestResult {
	res := domain.DigestResult{SubscriberID: sub.ID, GeneratedAt: time.Now()}

	text, err := c.personalized(ctx, sub, items, excerpts)
	if err == nil {
		res.Text = text
		res.Personalized = true
		return res
	}
	c.log.Warn("personalization failed; using fallback",
		logx.Int64("subscriber", sub.ID), logx.Err(err))

	res.Text = Fallback(sub.FirstName, items)
	return res
}

func (c *Composer) personalized(ctx context.Context, sub domain.Subscriber, items []domain.ContentItem, excerpts []domain.Excerpt) (string, error) {
	if c.gen == nil {
		return "", fmt.Errorf("no personalization capability configured")
	}
	prompt, err := buildPrompt(sub, items, excerpts)
	if err != nil {
		return "", err
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.gen.Generate(cctx, []llm.Message{
		{Role: llm.RoleSystem, Content: composerSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, c.maxTokens, c.temperature)
}

func buildPrompt(sub domain.Subscriber, items []domain.ContentItem, excerpts []domain.Excerpt) (string, error) {
	type article struct {
		Title    string `json:"title"`
		Summary  string `json:"summary"`
		Category string `json:"category"`
		URL      string `json:"url"`
	}
	payload := make([]article, 0, len(items))
	for _, it := range items {
		payload = append(payload, article{Title: it.Title, Summary: it.Summary, Category: it.Category, URL: it.URL})
	}
	articleJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal article payload: %w", err)
	}

	// Excerpts arrive oldest first and render as alternating turns.
	var conv strings.Builder
	for _, e := range excerpts {
		fmt.Fprintf(&conv, "User: %s\nAssistant: %s\n", e.Message, e.Response)
	}

	var b strings.Builder
	b.WriteString("Create a personalized news digest for a user with the following preferences:\n")
	fmt.Fprintf(&b, "- Categories: %s\n\n", strings.Join(sub.Categories, ", "))
	b.WriteString("Recent conversations with the user:\n")
	b.WriteString(conv.String())
	b.WriteString("\nArticles to include in the digest:\n")
	b.Write(articleJSON)
	b.WriteString("\n\nCreate a conversational, engaging digest that:\n")
	fmt.Fprintf(&b, "1. Greets the user by name (%s)\n", sub.FirstName)
	b.WriteString("2. Introduces the digest with a brief overview\n")
	b.WriteString("3. Presents the articles grouped by category or theme\n")
	b.WriteString("4. Uses bold headers per category, a short engaging summary per article, and a clear link for each article\n")
	return b.String(), nil
}

// Fallback renders the deterministic template digest. Identical inputs
// produce byte-identical output; tests rely on this.
func Fallback(name string, items []domain.ContentItem) string {
	var b strings.Builder

	if name != "" {
		fmt.Fprintf(&b, "# Good day, %s!\n", name)
	} else {
		b.WriteString("# Your Daily News Digest\n")
	}
	b.WriteString("\nHere are today's top stories selected for you:\n")

	if len(items) == 0 {
		b.WriteString("\nNo fresh stories in your topics just yet. Check back soon!\n")
	}

	// Group by category, preserving first-seen order.
	var order []string
	grouped := map[string][]domain.ContentItem{}
	for _, it := range items {
		if _, seen := grouped[it.Category]; !seen {
			order = append(order, it.Category)
		}
		grouped[it.Category] = append(grouped[it.Category], it)
	}

	for _, cat := range order {
		fmt.Fprintf(&b, "\n## %s\n\n", titleCase(cat))
		for _, it := range grouped[cat] {
			fmt.Fprintf(&b, "**%s**\n", it.Title)
			fmt.Fprintf(&b, "%s...\n", truncRunes(it.Summary, 150))
			fmt.Fprintf(&b, "[Read more](%s)\n\n", it.URL)
		}
	}

	b.WriteString("\n---\n")
	b.WriteString("What topics would you like to hear more about? Just let me know!")
	return b.String()
}

func truncRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func titleCase(s string) string {
	prev := ' '
	return strings.Map(func(r rune) rune {
		if prev == ' ' || prev == '-' {
			prev = r
			return unicode.ToUpper(r)
		}
		prev = r
		return r
	}, s)
}
