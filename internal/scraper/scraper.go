package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/feeddigest/internal/rss"
)

// Article is a feed entry with its extracted body text.
type Article struct {
	rss.Entry
	Body string
}

// Transcripts retrieves the transcript segments of a video.
type Transcripts interface {
	Transcript(ctx context.Context, videoID string) ([]string, error)
}

// Reasons an entry yields no content.
var (
	ErrUnrecognizedLink = errors.New("link fits no extraction strategy")
	ErrNoArticle        = errors.New("page has no article element")
	ErrEmptyContent     = errors.New("extracted text is empty")
)

// ExtractionError explains why no body could be produced for an entry.
type ExtractionError struct {
	Link string
	Kind Kind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Link, e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor produces body text for feed entries.
type Extractor struct {
	client      *http.Client
	userAgent   string
	transcripts Transcripts
}

// NewExtractor makes an extractor whose page requests give up after timeout.
// The transcript source is expected to bound its own calls.
func NewExtractor(timeout time.Duration, userAgent string, transcripts Transcripts) *Extractor {
	return &Extractor{
		client:      &http.Client{Timeout: timeout},
		userAgent:   userAgent,
		transcripts: transcripts,
	}
}

// Extract returns the article body for entry. Video links go to the
// transcript source only; everything else is fetched as a page.
func (x *Extractor) Extract(ctx context.Context, entry rss.Entry) (Article, error) {
	target := Classify(entry.Link)

	var (
		body string
		err  error
	)
	switch target.Kind {
	case KindVideo:
		body, err = x.transcript(ctx, target.VideoID)
	case KindPage:
		body, err = x.page(ctx, target.URL)
	default:
		err = ErrUnrecognizedLink
	}
	if err == nil && strings.TrimSpace(body) == "" {
		err = ErrEmptyContent
	}
	if err != nil {
		return Article{}, &ExtractionError{Link: entry.Link, Kind: target.Kind, Err: err}
	}

	return Article{Entry: entry, Body: body}, nil
}

func (x *Extractor) transcript(ctx context.Context, videoID string) (string, error) {
	if x.transcripts == nil {
		return "", errors.New("no transcript source configured")
	}
	segments, err := x.transcripts.Transcript(ctx, videoID)
	if err != nil {
		return "", err
	}
	return strings.Join(segments, " "), nil
}

func (x *Extractor) page(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if x.userAgent != "" {
		req.Header.Set("User-Agent", x.userAgent)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error parsing HTML: %w", err)
	}

	return articleText(doc)
}

// articleText is the text of the first <article> element.
func articleText(doc *goquery.Document) (string, error) {
	article := doc.Find("article").First()
	if article.Length() == 0 {
		return "", ErrNoArticle
	}
	// scripts and styles inside the article are not body text
	article.Find("script, style, noscript").Remove()
	return article.Text(), nil
}
