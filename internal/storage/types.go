// Package storage persists content items, subscribers, delivery markers and
// conversation excerpts in SQLite. All methods are transactional at
// single-operation granularity; the URL and delivery-marker uniqueness
// constraints live in the schema, not in caller-side checks.
package storage

import (
	"context"
	"errors"
	"time"

	"digestbot/internal/domain"
)

var (
	// ErrDuplicateURL is returned by InsertArticle when the URL already exists.
	ErrDuplicateURL = errors.New("storage: article url already exists")
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
)

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// ContentStore is the content-item repository consumed by ingestion and
// selection.
type ContentStore interface {
	HasArticle(ctx context.Context, url string) (bool, error)
	InsertArticle(ctx context.Context, item domain.ContentItem) (int64, error)
	RecentByCategory(ctx context.Context, category string, limit int) ([]domain.ContentItem, error)
}

// SubscriberRegistry is the subscriber repository. The scheduler only reads
// from it and writes delivery markers; preference mutation happens on the
// inbound-command path.
type SubscriberRegistry interface {
	EnsureSubscriber(ctx context.Context, id int64, firstName, defaultTime string) (domain.Subscriber, bool, error)
	Subscriber(ctx context.Context, id int64) (domain.Subscriber, error)
	ActiveSubscribersDueAt(ctx context.Context, hhmm string) ([]domain.Subscriber, error)
	ActiveSubscribers(ctx context.Context) ([]domain.Subscriber, error)
	SetDigestTime(ctx context.Context, id int64, hhmm string) error
	SetCategories(ctx context.Context, id int64, categories []string) error
	SetActive(ctx context.Context, id int64, active bool) error

	WasDelivered(ctx context.Context, id int64, slot domain.Slot) (bool, error)
	MarkDelivered(ctx context.Context, id int64, slot domain.Slot) error
}

// ConversationStore keeps the excerpt window used to bias personalization.
type ConversationStore interface {
	SaveExcerpt(ctx context.Context, subscriberID int64, message, response string) error
	RecentExcerpts(ctx context.Context, subscriberID int64, limit int) ([]domain.Excerpt, error)
}

// Store is the full persistence API.
type Store interface {
	ContentStore
	SubscriberRegistry
	ConversationStore
	Close() error
}
