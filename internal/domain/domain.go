// Package domain holds the flat value objects shared across components.
// Repositories return these; nothing here lazy-loads or holds connections.
package domain

import "time"

// ContentItem is one classified news article. Identity is the canonical
// source URL; items are immutable once stored apart from category correction.
type ContentItem struct {
	ID          int64
	URL         string
	Title       string
	Summary     string
	Category    string
	Source      string
	PublishedAt time.Time
}

// Subscriber is a digest recipient. ID is the external Telegram user ID.
type Subscriber struct {
	ID         int64
	FirstName  string
	Categories []string // preferred categories in preference order; may be empty
	DigestTime string   // "HH:MM", 24-hour local time
	Active     bool
}

// Excerpt is one stored conversational exchange with a subscriber.
type Excerpt struct {
	Message  string
	Response string
	At       time.Time
}

// DigestResult is the ephemeral outcome of composing one digest.
// Personalized is false when the deterministic fallback produced the text.
type DigestResult struct {
	SubscriberID int64
	Text         string
	Personalized bool
	GeneratedAt  time.Time
}

// Slot is one scheduled delivery opportunity: a (date, HH:MM) pairing.
// At most one digest is delivered per subscriber per slot.
type Slot struct {
	Date string // "2006-01-02"
	Time string // "15:04"
}

// SlotAt truncates t to its minute slot in t's location.
func SlotAt(t time.Time) Slot {
	return Slot{Date: t.Format("2006-01-02"), Time: t.Format("15:04")}
}

func (s Slot) String() string { return s.Date + " " + s.Time }
