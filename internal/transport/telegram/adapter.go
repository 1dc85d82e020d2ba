// Package telegram adapts the bot protocol: outbound digest delivery and
// inbound commands/conversation.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"digestbot/internal/domain"
	"digestbot/pkg/logx"
	"digestbot/pkg/tgtext"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	RatePerSec  int

	// DefaultDigestTime is applied to newly registered subscribers.
	DefaultDigestTime string
	// Vocabulary is the category list offered by /categories.
	Vocabulary []string
}

// Registry is the subscriber-registry slice the transport mutates on behalf
// of inbound commands.
type Registry interface {
	EnsureSubscriber(ctx context.Context, id int64, firstName, defaultTime string) (domain.Subscriber, bool, error)
	Subscriber(ctx context.Context, id int64) (domain.Subscriber, error)
	SetDigestTime(ctx context.Context, id int64, hhmm string) error
	SetCategories(ctx context.Context, id int64, categories []string) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// DigestService serves the on-demand /digest command.
type DigestService interface {
	SendNow(ctx context.Context, sub domain.Subscriber) error
}

// Conversations answers free-form messages.
type Conversations interface {
	Reply(ctx context.Context, sub domain.Subscriber, text string) string
}

type Bot struct {
	bot     *tele.Bot
	log     logx.Logger
	cfg     Config
	limiter *rate.Limiter

	registry Registry
	digests  DigestService
	conv     Conversations

	runMu   sync.Mutex
	runCtx  context.Context
	running bool
	stopWG  sync.WaitGroup
}

func New(cfg Config, registry Registry, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 25
	}
	return &Bot{
		bot:      b,
		log:      log,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
		registry: registry,
	}, nil
}

// Attach wires the services the inbound handlers call. The digest service
// delivers through this bot, so it cannot exist before the bot does.
func (b *Bot) Attach(digests DigestService, conv Conversations) {
	b.digests = digests
	b.conv = conv
}

func (b *Bot) Start(ctx context.Context) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.running {
		return nil
	}
	b.running = true
	b.runCtx = ctx

	b.registerHandlers()

	b.stopWG.Add(1)
	go func() {
		defer b.stopWG.Done()
		b.bot.Start()
	}()
	b.log.Info("telegram adapter started")
	return nil
}

func (b *Bot) Stop(ctx context.Context) error {
	b.runMu.Lock()
	if !b.running {
		b.runMu.Unlock()
		return nil
	}
	b.running = false
	b.runMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.bot.Stop()
		b.stopWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	b.log.Info("telegram adapter stopped")
	return nil
}

// SendText delivers text to a subscriber, splitting overlong payloads and
// rate-limiting across all chats. Markdown that Telegram rejects is resent
// as plain text rather than failing the delivery.
func (b *Bot) SendText(ctx context.Context, subscriberID int64, text string) error {
	for _, chunk := range tgtext.Split(text, tgtext.MaxMessageLen) {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := b.bot.Send(tele.ChatID(subscriberID), chunk, &tele.SendOptions{
			ParseMode:             tele.ModeMarkdown,
			DisableWebPagePreview: true,
		})
		if err != nil {
			b.log.Debug("markdown send failed; retrying as plain text",
				logx.Int64("subscriber", subscriberID), logx.Err(err))
			_, err = b.bot.Send(tele.ChatID(subscriberID), chunk, &tele.SendOptions{
				DisableWebPagePreview: true,
			})
		}
		if err != nil {
			return err
		}
	}
	return nil
}
