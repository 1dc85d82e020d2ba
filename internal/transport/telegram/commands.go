package telegram

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"digestbot/internal/config"
	"digestbot/internal/domain"
	"digestbot/pkg/logx"
	"digestbot/pkg/tgtext"
)

const welcomeText = `👋 *Welcome to the News Digest Bot!*

I'm your personal news assistant. I can deliver daily news digests tailored to your interests and have conversations about current events.

Let me know what topics you're interested in, or just chat with me about the news. You can also use these commands:

/categories - Set your news preferences
/digest - Get your news digest now
/time - Set your daily digest time
/help - Show all available commands`

const helpText = `*Available commands*

/digest - Get your news digest now
/categories - Show or set your news preferences (e.g. ` + "`/categories politics, technology`" + `)
/time - Set your daily digest time (e.g. ` + "`/time 08:00`" + `)
/stop - Pause daily digests
/resume - Resume daily digests
/help - Show this message

Anything else you send me starts a conversation about the news.`

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.withSubscriber(b.handleStart))
	b.bot.Handle("/help", b.withSubscriber(b.handleHelp))
	b.bot.Handle("/digest", b.withSubscriber(b.handleDigest))
	b.bot.Handle("/categories", b.withSubscriber(b.handleCategories))
	b.bot.Handle("/time", b.withSubscriber(b.handleTime))
	b.bot.Handle("/stop", b.withSubscriber(b.handleStop))
	b.bot.Handle("/resume", b.withSubscriber(b.handleResume))
	b.bot.Handle(tele.OnText, b.withSubscriber(b.handleText))
}

func (b *Bot) ctx() context.Context {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.runCtx != nil {
		return b.runCtx
	}
	return context.Background()
}

// withSubscriber registers the sender on first contact and threads the
// subscriber value into the handler. New subscribers get the welcome message
// instead of the command's usual behavior.
func (b *Bot) withSubscriber(h func(tele.Context, domain.Subscriber) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		sub, created, err := b.registry.EnsureSubscriber(b.ctx(), sender.ID, sender.FirstName, b.cfg.DefaultDigestTime)
		if err != nil {
			b.log.Error("subscriber registration failed", logx.Int64("subscriber", sender.ID), logx.Err(err))
			return c.Send("Something went wrong on my side. Please try again.")
		}
		if created {
			return c.Send(welcomeText, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
		}
		return h(c, sub)
	}
}

func (b *Bot) handleStart(c tele.Context, _ domain.Subscriber) error {
	return c.Send(welcomeText, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
}

func (b *Bot) handleHelp(c tele.Context, _ domain.Subscriber) error {
	return c.Send(helpText, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
}

func (b *Bot) handleDigest(c tele.Context, sub domain.Subscriber) error {
	if err := b.digests.SendNow(b.ctx(), sub); err != nil {
		b.log.Error("on-demand digest failed", logx.Int64("subscriber", sub.ID), logx.Err(err))
		return c.Send("I couldn't put a digest together right now. Please try again in a bit.")
	}
	return nil
}

func (b *Bot) handleCategories(c tele.Context, sub domain.Subscriber) error {
	args := c.Args()
	if len(args) == 0 {
		current := "none yet - you'll get a general digest"
		if len(sub.Categories) > 0 {
			current = strings.Join(sub.Categories, ", ")
		}
		return c.Send(fmt.Sprintf(
			"Your current topics: %s\n\nAvailable topics: %s\n\nSet them with e.g. `/categories politics, technology`",
			current, strings.Join(b.cfg.Vocabulary, ", ")),
			&tele.SendOptions{ParseMode: tele.ModeMarkdown})
	}

	requested := splitCategories(args)
	var unknown []string
	for _, cat := range requested {
		if !contains(b.cfg.Vocabulary, cat) {
			unknown = append(unknown, cat)
		}
	}
	if len(unknown) > 0 {
		return c.Send(fmt.Sprintf("I don't know these topics: %s\nAvailable: %s",
			strings.Join(unknown, ", "), strings.Join(b.cfg.Vocabulary, ", ")))
	}

	if err := b.registry.SetCategories(b.ctx(), sub.ID, requested); err != nil {
		b.log.Error("category update failed", logx.Int64("subscriber", sub.ID), logx.Err(err))
		return c.Send("Couldn't save your topics. Please try again.")
	}
	return c.Send("Got it! Your digest will now cover: " + strings.Join(requested, ", "))
}

func (b *Bot) handleTime(c tele.Context, sub domain.Subscriber) error {
	args := c.Args()
	if len(args) != 1 || !config.ValidHHMM(args[0]) {
		return c.Send("Tell me a 24-hour time like `/time 08:00`.", &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	}
	if err := b.registry.SetDigestTime(b.ctx(), sub.ID, args[0]); err != nil {
		b.log.Error("digest time update failed", logx.Int64("subscriber", sub.ID), logx.Err(err))
		return c.Send("Couldn't save your digest time. Please try again.")
	}
	return c.Send(fmt.Sprintf("Daily digest time set to %s!", args[0]))
}

func (b *Bot) handleStop(c tele.Context, sub domain.Subscriber) error {
	if err := b.registry.SetActive(b.ctx(), sub.ID, false); err != nil {
		b.log.Error("deactivate failed", logx.Int64("subscriber", sub.ID), logx.Err(err))
		return c.Send("Couldn't pause your digests. Please try again.")
	}
	return c.Send("Daily digests paused. Send /resume whenever you want them back.")
}

func (b *Bot) handleResume(c tele.Context, sub domain.Subscriber) error {
	if err := b.registry.SetActive(b.ctx(), sub.ID, true); err != nil {
		b.log.Error("reactivate failed", logx.Int64("subscriber", sub.ID), logx.Err(err))
		return c.Send("Couldn't resume your digests. Please try again.")
	}
	return c.Send(fmt.Sprintf("Welcome back! Your daily digest arrives at %s.", sub.DigestTime))
}

func (b *Bot) handleText(c tele.Context, sub domain.Subscriber) error {
	text := strings.TrimSpace(c.Text())
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "/") {
		return c.Send("I don't know that command. Try /help.")
	}
	response := b.conv.Reply(b.ctx(), sub, text)
	// Conversation replies are single messages; an overlong one is
	// truncated rather than split mid-dialogue.
	return c.Send(tgtext.TruncRunes(response, tgtext.MaxMessageLen),
		&tele.SendOptions{ParseMode: tele.ModeMarkdown})
}

func splitCategories(args []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			cat := strings.ToLower(strings.TrimSpace(part))
			if cat == "" {
				continue
			}
			if _, dup := seen[cat]; dup {
				continue
			}
			seen[cat] = struct{}{}
			out = append(out, cat)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
