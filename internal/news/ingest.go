package news

import (
	"context"
	"errors"
	"fmt"

	"digestbot/internal/domain"
	"digestbot/internal/storage"
	"digestbot/pkg/logx"
)

// ArticleStore is the slice of persistence the pipeline needs.
type ArticleStore interface {
	HasArticle(ctx context.Context, url string) (bool, error)
	InsertArticle(ctx context.Context, item domain.ContentItem) (int64, error)
}

// Pipeline ingests raw items from sources: discover, fetch, classify,
// de-duplicate by URL, store. Per-item and per-source failures are isolated;
// only persistence unavailability aborts a batch.
type Pipeline struct {
	store        ArticleStore
	classifier   *Classifier
	maxPerSource int
	log          logx.Logger
}

func NewPipeline(store ArticleStore, classifier *Classifier, maxPerSource int, log logx.Logger) *Pipeline {
	if maxPerSource <= 0 {
		maxPerSource = 300
	}
	return &Pipeline{store: store, classifier: classifier, maxPerSource: maxPerSource, log: log}
}

// Run ingests all sources and returns the count of newly stored items.
// A store failure stops the batch early; everything already committed stays
// valid, and a re-run skips existing URLs.
func (p *Pipeline) Run(ctx context.Context, sources []Source) (int, error) {
	total := 0
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := p.runSource(ctx, src)
		total += n
		if err != nil {
			if isStoreFailure(err) || errors.Is(err, context.Canceled) {
				return total, err
			}
			// Source-level failure: isolate, keep going.
			p.log.Error("source ingestion failed", logx.String("source", src.Name()), logx.Err(err))
		}
	}
	return total, nil
}

func (p *Pipeline) runSource(ctx context.Context, src Source) (int, error) {
	urls, err := src.Discover(ctx)
	if err != nil {
		return 0, fmt.Errorf("discover: %w", err)
	}
	if len(urls) > p.maxPerSource {
		urls = urls[:p.maxPerSource]
	}
	p.log.Debug("source discovered", logx.String("source", src.Name()), logx.Int("urls", len(urls)))

	stored := 0
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		exists, err := p.store.HasArticle(ctx, u)
		if err != nil {
			return stored, storeFailure(fmt.Errorf("lookup %s: %w", u, err))
		}
		if exists {
			continue
		}

		raw, err := src.FetchItem(ctx, u)
		if err != nil {
			// Fetch/parse failure: skip the item, never the batch.
			p.log.Warn("item fetch failed", logx.String("source", src.Name()), logx.String("url", u), logx.Err(err))
			continue
		}

		item := domain.ContentItem{
			URL:         u,
			Title:       raw.Title,
			Summary:     raw.Body,
			Category:    p.classifier.Classify(raw.Title, raw.Body, raw.Keywords),
			Source:      src.Name(),
			PublishedAt: raw.PublishedAt,
		}
		if _, err := p.store.InsertArticle(ctx, item); err != nil {
			if errors.Is(err, storage.ErrDuplicateURL) {
				// Lost a race with a concurrent run; the constraint is the
				// source of truth.
				continue
			}
			return stored, storeFailure(fmt.Errorf("insert %s: %w", u, err))
		}
		stored++
		p.log.Info("article stored",
			logx.String("source", src.Name()),
			logx.String("category", item.Category),
			logx.String("title", item.Title))
	}
	return stored, nil
}

// storeFailureErr marks persistence unavailability, which aborts the batch.
type storeFailureErr struct{ err error }

func (e storeFailureErr) Error() string { return "store failure: " + e.err.Error() }
func (e storeFailureErr) Unwrap() error { return e.err }

func storeFailure(err error) error { return storeFailureErr{err: err} }

func isStoreFailure(err error) bool {
	var sf storeFailureErr
	return errors.As(err, &sf)
}
