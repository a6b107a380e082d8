// Package newsletter turns the summarized articles into the publishable
// digest: thumbnails, a plain titles-and-links list and an HTML page.
package newsletter

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/feeddigest/internal/logger"
	"github.com/deusflow/feeddigest/internal/metrics"
	"github.com/deusflow/feeddigest/internal/pool"
	"github.com/deusflow/feeddigest/internal/scraper"
	"github.com/deusflow/feeddigest/internal/storage"
	"github.com/deusflow/feeddigest/internal/summarize"
)

//go:embed template.html
var defaultTemplate string

// DefaultVideoThumbnail is the still image YouTube serves for a video id.
const DefaultVideoThumbnail = "https://img.youtube.com/vi/%s/0.jpg"

// Options control where the newsletter files go and how they look.
type Options struct {
	HTMLPath      string // newsletter.html
	LinksPath     string // titles_and_links.txt
	ThumbnailsDir string // thumbnails
	TemplatePath  string // empty: built-in template
	Title         string
	Font          string
	Timeout       time.Duration
	UserAgent     string
	Workers       int
}

// Article is one entry of the rendered page.
type Article struct {
	File      string
	URL       string
	Title     string
	Summary   string
	Thumbnail string // relative to the HTML file, empty when none was found
}

type Builder struct {
	opts       Options
	client     *http.Client
	videoThumb string
}

type Option func(*Builder)

// WithVideoThumbnailURL replaces DefaultVideoThumbnail; format gets the video id.
func WithVideoThumbnailURL(format string) Option {
	return func(b *Builder) { b.videoThumb = format }
}

func NewBuilder(opts Options, extra ...Option) *Builder {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Title == "" {
		opts.Title = "文章摘要通讯"
	}
	if opts.Font == "" {
		opts.Font = "Arial, sans-serif"
	}
	b := &Builder{
		opts:       opts,
		client:     &http.Client{Timeout: opts.Timeout},
		videoThumb: DefaultVideoThumbnail,
	}
	for _, o := range extra {
		o(b)
	}
	return b
}

// Result names the files Build wrote.
type Result struct {
	HTMLPath   string
	LinksPath  string
	Articles   []Article
	Thumbnails int
}

// Build downloads a thumbnail per summary where one can be found, then writes
// the titles-and-links list and the HTML page. A missing thumbnail is not an
// error.
func (b *Builder) Build(ctx context.Context, sums []summarize.Summary) (Result, error) {
	res := Result{HTMLPath: b.opts.HTMLPath, LinksPath: b.opts.LinksPath}
	if err := os.MkdirAll(b.opts.ThumbnailsDir, 0o755); err != nil {
		return res, fmt.Errorf("failed to create thumbnails dir: %w", err)
	}

	articles := make([]Article, len(sums))
	idx := make([]int, len(sums))
	for i, s := range sums {
		idx[i] = i
		articles[i] = Article{File: s.File, URL: s.URL, Title: s.Title, Summary: s.Text}
	}

	var saved atomic.Int64
	pool.ForEach(ctx, b.opts.Workers, idx, func(ctx context.Context, i int) error {
		a := &articles[i]
		src := b.Thumbnail(ctx, a.URL)
		if src == "" {
			logger.Debug("No thumbnail found", "url", a.URL)
			return nil
		}
		path := filepath.Join(b.opts.ThumbnailsDir, thumbnailName(sums[i]))
		if err := b.download(ctx, src, path); err != nil {
			logger.Warn("Failed to download thumbnail", "url", src, "err", err)
			return err
		}
		a.Thumbnail = relativeTo(b.opts.HTMLPath, path)
		saved.Add(1)
		return nil
	})
	res.Thumbnails = int(saved.Load())
	res.Articles = articles
	metrics.Global.ThumbnailsSaved.Add(saved.Load())

	if err := writeLinks(b.opts.LinksPath, articles); err != nil {
		return res, err
	}
	if err := b.render(articles); err != nil {
		return res, err
	}
	logger.Info("Newsletter created", "path", b.opts.HTMLPath, "articles", len(articles), "thumbnails", res.Thumbnails)
	return res, nil
}

// Thumbnail finds a reachable image for the article at link: the video
// still for video links, then the page's og:image, then its first <img>.
func (b *Builder) Thumbnail(ctx context.Context, link string) string {
	target := scraper.Classify(link)
	switch target.Kind {
	case scraper.KindVideo:
		if still := fmt.Sprintf(b.videoThumb, target.VideoID); b.reachable(ctx, still) {
			return still
		}
		target.URL = "https://www.youtube.com/watch?v=" + url.QueryEscape(target.VideoID)
	case scraper.KindUnrecognized:
		return ""
	}

	page, err := url.Parse(target.URL)
	if err != nil {
		return ""
	}
	doc, err := b.fetchDocument(ctx, target.URL)
	if err != nil {
		logger.Debug("Thumbnail page fetch failed", "url", target.URL, "err", err)
		return ""
	}

	var candidates []string
	if og, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		candidates = append(candidates, og)
	}
	if src, ok := doc.Find("img[src]").First().Attr("src"); ok {
		candidates = append(candidates, src)
	}
	for _, c := range candidates {
		ref, err := url.Parse(strings.TrimSpace(c))
		if err != nil || c == "" {
			continue
		}
		if abs := page.ResolveReference(ref).String(); b.reachable(ctx, abs) {
			return abs
		}
	}
	return ""
}

func (b *Builder) newRequest(ctx context.Context, method, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	if b.opts.UserAgent != "" {
		req.Header.Set("User-Agent", b.opts.UserAgent)
	}
	return req, nil
}

// reachable sends a HEAD request and wants a 200.
func (b *Builder) reachable(ctx context.Context, target string) bool {
	req, err := b.newRequest(ctx, http.MethodHead, target)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (b *Builder) fetchDocument(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := b.newRequest(ctx, http.MethodGet, target)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

func (b *Builder) download(ctx context.Context, src, path string) error {
	req, err := b.newRequest(ctx, http.MethodGet, src)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// thumbnailName reuses the record name with a .jpg extension.
func thumbnailName(s summarize.Summary) string {
	name := s.File
	if name == "" {
		name = storage.SanitizeFilename(s.OriginalTitle, 200)
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
}

func relativeTo(htmlPath, target string) string {
	rel, err := filepath.Rel(filepath.Dir(htmlPath), target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}

func writeLinks(path string, articles []Article) error {
	var b strings.Builder
	for _, a := range articles {
		fmt.Fprintf(&b, "%s\n%s\n\n", a.Title, a.URL)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write titles and links: %w", err)
	}
	return nil
}

func (b *Builder) render(articles []Article) error {
	text := defaultTemplate
	if b.opts.TemplatePath != "" {
		data, err := os.ReadFile(b.opts.TemplatePath)
		if err != nil {
			return fmt.Errorf("failed to read newsletter template: %w", err)
		}
		text = string(data)
	}
	tmpl, err := template.New("newsletter").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse newsletter template: %w", err)
	}

	// the font comes from configuration and may carry quoted family names
	font := template.CSS(b.opts.Font)

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		Title    string
		Font     template.CSS
		Articles []Article
	}{
		Title:    b.opts.Title,
		Font:     font,
		Articles: articles,
	})
	if err != nil {
		return fmt.Errorf("failed to render newsletter: %w", err)
	}
	if err := os.WriteFile(b.opts.HTMLPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write newsletter: %w", err)
	}
	return nil
}
