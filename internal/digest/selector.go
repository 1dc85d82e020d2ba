// Package digest selects eligible content and composes the digest text.
package digest

import (
	"context"
	"fmt"
	"sort"

	"digestbot/internal/domain"
)

// DefaultCategories is consulted when a subscriber has no preferences.
var DefaultCategories = []string{"politics", "technology", "health", "entertainment"}

// ContentSource is the content query the selector needs.
type ContentSource interface {
	RecentByCategory(ctx context.Context, category string, limit int) ([]domain.ContentItem, error)
}

// Selector returns a ranked, capped item set for digest inclusion.
type Selector struct {
	store          ContentSource
	perCategoryCap int
}

func NewSelector(store ContentSource, perCategoryCap int) *Selector {
	if perCategoryCap <= 0 {
		perCategoryCap = 2
	}
	return &Selector{store: store, perCategoryCap: perCategoryCap}
}

// Select fetches up to perCategoryCap most recent items per preferred
// category (DefaultCategories when preferred is empty), concatenated in
// preference order and stably sorted by publish time descending. Timestamp
// ties keep the category-concatenation order.
func (s *Selector) Select(ctx context.Context, preferred []string) ([]domain.ContentItem, error) {
	categories := preferred
	if len(categories) == 0 {
		categories = DefaultCategories
	}

	var items []domain.ContentItem
	for _, cat := range categories {
		batch, err := s.store.RecentByCategory(ctx, cat, s.perCategoryCap)
		if err != nil {
			return nil, fmt.Errorf("select category %s: %w", cat, err)
		}
		items = append(items, batch...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	return items, nil
}
