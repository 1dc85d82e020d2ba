package digest

import (
	"context"
	"fmt"

	"digestbot/internal/domain"
	"digestbot/pkg/logx"
)

// Sender is the delivery transport handoff.
type Sender interface {
	SendText(ctx context.Context, subscriberID int64, text string) error
}

// ExcerptSource supplies the conversation window used for personalization.
type ExcerptSource interface {
	RecentExcerpts(ctx context.Context, subscriberID int64, limit int) ([]domain.Excerpt, error)
}

// Service ties selection, composition and delivery together for one
// subscriber. It implements the scheduler's Dispatcher.
type Service struct {
	selector      *Selector
	composer      *Composer
	excerpts      ExcerptSource
	sender        Sender
	historyWindow int
	log           logx.Logger
}

func NewService(selector *Selector, composer *Composer, excerpts ExcerptSource, sender Sender, historyWindow int, log logx.Logger) *Service {
	if historyWindow <= 0 {
		historyWindow = 5
	}
	return &Service{
		selector:      selector,
		composer:      composer,
		excerpts:      excerpts,
		sender:        sender,
		historyWindow: historyWindow,
		log:           log,
	}
}

// Build selects eligible content and composes the digest. A selection error
// aborts (store unavailable); a missing excerpt window degrades silently to
// an empty one.
func (s *Service) Build(ctx context.Context, sub domain.Subscriber) (domain.DigestResult, error) {
	items, err := s.selector.Select(ctx, sub.Categories)
	if err != nil {
		return domain.DigestResult{}, fmt.Errorf("select items: %w", err)
	}

	var excerpts []domain.Excerpt
	if s.excerpts != nil {
		excerpts, err = s.excerpts.RecentExcerpts(ctx, sub.ID, s.historyWindow)
		if err != nil {
			s.log.Warn("excerpt window unavailable; composing without it",
				logx.Int64("subscriber", sub.ID), logx.Err(err))
			excerpts = nil
		}
	}

	return s.composer.Compose(ctx, sub, items, excerpts), nil
}

// Dispatch builds and delivers one scheduled digest. A nil return means the
// delivery handoff succeeded; the caller records the slot marker.
func (s *Service) Dispatch(ctx context.Context, sub domain.Subscriber, slot domain.Slot) error {
	res, err := s.Build(ctx, sub)
	if err != nil {
		return err
	}
	if err := s.sender.SendText(ctx, sub.ID, res.Text); err != nil {
		return fmt.Errorf("deliver digest: %w", err)
	}
	s.log.Debug("digest dispatched",
		logx.Int64("subscriber", sub.ID),
		logx.String("slot", slot.String()),
		logx.Bool("personalized", res.Personalized))
	return nil
}

// SendNow builds and delivers an on-demand digest, outside the schedule.
// It never records a delivery marker: the scheduled slot stays due.
func (s *Service) SendNow(ctx context.Context, sub domain.Subscriber) error {
	res, err := s.Build(ctx, sub)
	if err != nil {
		return err
	}
	return s.sender.SendText(ctx, sub.ID, res.Text)
}
