package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"digestbot/internal/config"
)

// RawItem is one fetched, unclassified document.
type RawItem struct {
	URL         string
	Title       string
	Body        string
	Keywords    []string
	PublishedAt time.Time
}

// Source discovers item URLs and fetches+parses individual items.
// Implementations may block on network I/O and must honor ctx.
type Source interface {
	Name() string
	Discover(ctx context.Context) ([]string, error)
	FetchItem(ctx context.Context, itemURL string) (RawItem, error)
}

// BuildSources maps source configs onto concrete implementations.
func BuildSources(cfgs []config.SourceConfig, client *http.Client) []Source {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	out := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		name := c.Name
		if name == "" {
			name = c.URL
		}
		switch c.Kind {
		case "site":
			out = append(out, NewSiteSource(name, c.URL, client))
		default:
			out = append(out, NewFeedSource(name, c.URL, client))
		}
	}
	return out
}

// ---- RSS/Atom ----

// FeedSource reads an RSS/Atom feed. Discover parses the feed once and caches
// entries so FetchItem is a lookup, not a second network round-trip.
type FeedSource struct {
	name   string
	url    string
	parser *gofeed.Parser

	mu    sync.Mutex
	items map[string]*gofeed.Item
}

func NewFeedSource(name, feedURL string, client *http.Client) *FeedSource {
	p := gofeed.NewParser()
	p.Client = client
	return &FeedSource{name: name, url: feedURL, parser: p}
}

func (f *FeedSource) Name() string { return f.name }

func (f *FeedSource) Discover(ctx context.Context) ([]string, error) {
	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.url, err)
	}

	f.mu.Lock()
	f.items = make(map[string]*gofeed.Item, len(feed.Items))
	urls := make([]string, 0, len(feed.Items))
	for _, it := range feed.Items {
		link := strings.TrimSpace(it.Link)
		if link == "" {
			continue
		}
		if _, dup := f.items[link]; dup {
			continue
		}
		f.items[link] = it
		urls = append(urls, link)
	}
	f.mu.Unlock()
	return urls, nil
}

func (f *FeedSource) FetchItem(ctx context.Context, itemURL string) (RawItem, error) {
	f.mu.Lock()
	it := f.items[itemURL]
	f.mu.Unlock()
	if it == nil {
		return RawItem{}, fmt.Errorf("feed %s: unknown item %s", f.name, itemURL)
	}

	body := it.Content
	if body == "" {
		body = it.Description
	}
	published := time.Now()
	if it.PublishedParsed != nil {
		published = *it.PublishedParsed
	} else if it.UpdatedParsed != nil {
		published = *it.UpdatedParsed
	}
	return RawItem{
		URL:         itemURL,
		Title:       it.Title,
		Body:        body,
		Keywords:    append([]string(nil), it.Categories...),
		PublishedAt: published,
	}, nil
}

// ---- HTML index page ----

// SiteSource scrapes a site front page for article links, then fetches and
// parses each article page.
type SiteSource struct {
	name   string
	url    string
	client *http.Client
}

func NewSiteSource(name, indexURL string, client *http.Client) *SiteSource {
	return &SiteSource{name: name, url: indexURL, client: client}
}

func (s *SiteSource) Name() string { return s.name }

func (s *SiteSource) Discover(ctx context.Context) ([]string, error) {
	doc, err := s.get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("parse source url %s: %w", s.url, err)
	}

	seen := map[string]struct{}{}
	var urls []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		u, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		if u.Host != base.Host {
			return
		}
		u.Fragment = ""
		if !looksLikeArticle(u.Path) {
			return
		}
		abs := u.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		urls = append(urls, abs)
	})
	return urls, nil
}

// looksLikeArticle filters navigation links. Article paths on news sites are
// either nested or contain hyphenated slugs.
func looksLikeArticle(path string) bool {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return false
	}
	return strings.Contains(trimmed, "/") || strings.Contains(trimmed, "-")
}

func (s *SiteSource) FetchItem(ctx context.Context, itemURL string) (RawItem, error) {
	doc, err := s.get(ctx, itemURL)
	if err != nil {
		return RawItem{}, err
	}

	title := strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	body := strings.Join(paragraphs, "\n")

	var keywords []string
	if kw := doc.Find(`meta[name="keywords"]`).AttrOr("content", ""); kw != "" {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keywords = append(keywords, k)
			}
		}
	}

	published := time.Now()
	if raw := doc.Find(`meta[property="article:published_time"]`).AttrOr("content", ""); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			published = t
		}
	}

	return RawItem{URL: itemURL, Title: title, Body: body, Keywords: keywords, PublishedAt: published}, nil
}

func (s *SiteSource) get(ctx context.Context, u string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("new request %s: %w", u, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("get %s: unexpected status %s", u, resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", u, err)
	}
	return doc, nil
}
