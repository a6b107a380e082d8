package rss

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/deusflow/feeddigest/internal/logger"
	"github.com/deusflow/feeddigest/internal/metrics"
	"github.com/deusflow/feeddigest/internal/pool"
)

// DateLayout is how entry dates are rendered in the table and the records.
const DateLayout = "2006-01-02"

// Entry is one feed item published inside the recency window.
type Entry struct {
	Title     string
	Link      string
	Published time.Time
}

// Date is the publication calendar date (UTC).
func (e Entry) Date() string {
	return e.Published.UTC().Format(DateLayout)
}

// FetchError wraps a network or parse failure for one feed.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads feeds and keeps the entries inside the recency window.
type Fetcher struct {
	parser  *gofeed.Parser
	timeout time.Duration
	window  time.Duration
	now     func() time.Time
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// WithUserAgent sets the User-Agent sent with feed requests.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.parser.UserAgent = ua }
}

// NewFetcher makes a fetcher whose requests give up after timeout and which
// keeps entries published within window before the call.
func NewFetcher(timeout, window time.Duration, opts ...Option) *Fetcher {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}

	f := &Fetcher{
		parser:  parser,
		timeout: timeout,
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the entries of one feed published in (now-window, now].
// "now" is read once, so every item of the feed is judged against the same cutoff.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]Entry, error) {
	now := f.now()
	cutoff := now.Add(-f.window)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}

	var entries []Entry
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		published := publishedAt(item)
		if published == nil {
			logger.Debug("Skipping undated entry", "feed", feedURL, "title", item.Title)
			continue
		}
		if !published.After(cutoff) || published.After(now) {
			continue
		}
		entries = append(entries, Entry{
			Title:     item.Title,
			Link:      item.Link,
			Published: *published,
		})
	}
	return entries, nil
}

// FetchAll runs Fetch over urls on workers goroutines. Failed feeds are logged
// and contribute nothing; the order of the result is unspecified.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, workers int) []Entry {
	entries, stats := pool.Collect(ctx, workers, urls, func(ctx context.Context, u string) ([]Entry, error) {
		logger.Info("Fetching feed", "url", u)
		got, err := f.Fetch(ctx, u)
		if err != nil {
			metrics.Global.FeedsFailed.Add(1)
			logger.Warn("Feed failed", "url", u, "err", err)
			return nil, err
		}
		metrics.Global.FeedsFetched.Add(1)
		metrics.Global.EntriesFetched.Add(int64(len(got)))
		logger.Debug("Feed fetched", "url", u, "entries", len(got))
		return got, nil
	})

	logger.Info("Processed feeds", "ok", stats.Total-stats.Failed, "total", stats.Total, "entries", len(entries))
	return entries
}

func publishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}
