package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"digestbot/internal/config"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Test Feed</title>
  <item>
    <title>First story</title>
    <link>http://example.com/news/first-story</link>
    <description>Something happened.</description>
    <category>politics</category>
    <pubDate>Mon, 31 Aug 2026 06:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Second story</title>
    <link>http://example.com/news/second-story</link>
    <description>Something else happened.</description>
  </item>
  <item>
    <title>No link</title>
  </item>
</channel>
</rss>`

func TestFeedSourceDiscoverAndFetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testFeed)
	}))
	defer srv.Close()

	src := NewFeedSource("test", srv.URL, srv.Client())
	urls, err := src.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("discovered %d urls, want 2 (linkless entry skipped)", len(urls))
	}

	item, err := src.FetchItem(context.Background(), "http://example.com/news/first-story")
	if err != nil {
		t.Fatalf("FetchItem: %v", err)
	}
	if item.Title != "First story" || item.Body != "Something happened." {
		t.Fatalf("unexpected item: %+v", item)
	}
	if len(item.Keywords) != 1 || item.Keywords[0] != "politics" {
		t.Fatalf("keywords = %v", item.Keywords)
	}
	want := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)
	if !item.PublishedAt.Equal(want) {
		t.Fatalf("PublishedAt = %v, want %v", item.PublishedAt, want)
	}

	if _, err := src.FetchItem(context.Background(), "http://example.com/unknown"); err == nil {
		t.Fatal("expected error for undiscovered item")
	}
}

func TestSiteSourceDiscover(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a href="/news/big-announcement">story</a>
			<a href="/news/big-announcement">dup</a>
			<a href="/about">nav</a>
			<a href="https://other.example.com/news/elsewhere-today">offsite</a>
			<a href="mailto:tips@example.com">mail</a>
		</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := NewSiteSource("site", srv.URL+"/", srv.Client())
	urls, err := src.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(urls) != 1 {
		t.Fatalf("discovered %v, want exactly the one same-host article link", urls)
	}
	if urls[0] != srv.URL+"/news/big-announcement" {
		t.Fatalf("url = %s", urls[0])
	}
}

func TestSiteSourceFetchItem(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head>
			<meta property="og:title" content="Big Announcement">
			<meta name="keywords" content="technology, chips">
			<meta property="article:published_time" content="2026-08-31T06:30:00Z">
			</head><body>
			<p>First paragraph.</p>
			<p>  </p>
			<p>Second paragraph.</p>
			</body></html>`)
	}))
	defer srv.Close()

	src := NewSiteSource("site", srv.URL, srv.Client())
	item, err := src.FetchItem(context.Background(), srv.URL+"/news/big-announcement")
	if err != nil {
		t.Fatalf("FetchItem: %v", err)
	}
	if item.Title != "Big Announcement" {
		t.Fatalf("Title = %q", item.Title)
	}
	if item.Body != "First paragraph.\nSecond paragraph." {
		t.Fatalf("Body = %q", item.Body)
	}
	if len(item.Keywords) != 2 || item.Keywords[0] != "technology" || item.Keywords[1] != "chips" {
		t.Fatalf("Keywords = %v", item.Keywords)
	}
	want := time.Date(2026, 8, 31, 6, 30, 0, 0, time.UTC)
	if !item.PublishedAt.Equal(want) {
		t.Fatalf("PublishedAt = %v, want %v", item.PublishedAt, want)
	}
}

func TestLooksLikeArticle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		want bool
	}{
		{"/news/story", true},
		{"/big-announcement", true},
		{"/about", false},
		{"/", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := looksLikeArticle(tt.path); got != tt.want {
			t.Fatalf("looksLikeArticle(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestBuildSources(t *testing.T) {
	t.Parallel()
	cfgs := []config.SourceConfig{
		{Name: "feed", URL: "http://x/rss", Kind: "rss"},
		{Name: "site", URL: "http://y/", Kind: "site"},
		{URL: "http://z/rss"},
	}
	sources := BuildSources(cfgs, nil)
	if len(sources) != 3 {
		t.Fatalf("built %d sources, want 3", len(sources))
	}
	if _, ok := sources[0].(*FeedSource); !ok {
		t.Fatalf("source 0 is %T, want *FeedSource", sources[0])
	}
	if _, ok := sources[1].(*SiteSource); !ok {
		t.Fatalf("source 1 is %T, want *SiteSource", sources[1])
	}
	if sources[2].Name() != "http://z/rss" {
		t.Fatalf("unnamed source Name() = %s, want its url", sources[2].Name())
	}
}
