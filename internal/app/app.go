// Package app wires the digest pipeline: sources, feed fetch, entry table,
// extraction, keyword filter and persistence, followed by the optional
// rating, summary and newsletter stages.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/deusflow/feeddigest/internal/config"
	"github.com/deusflow/feeddigest/internal/filter"
	"github.com/deusflow/feeddigest/internal/llm"
	"github.com/deusflow/feeddigest/internal/logger"
	"github.com/deusflow/feeddigest/internal/metrics"
	"github.com/deusflow/feeddigest/internal/newsletter"
	"github.com/deusflow/feeddigest/internal/pool"
	"github.com/deusflow/feeddigest/internal/rating"
	"github.com/deusflow/feeddigest/internal/rss"
	"github.com/deusflow/feeddigest/internal/scraper"
	"github.com/deusflow/feeddigest/internal/sources"
	"github.com/deusflow/feeddigest/internal/storage"
	"github.com/deusflow/feeddigest/internal/summarize"
	"github.com/deusflow/feeddigest/internal/youtube"
)

// Extractor produces the body text of one entry.
type Extractor interface {
	Extract(ctx context.Context, entry rss.Entry) (scraper.Article, error)
}

// Pipeline is one configured digest run.
type Pipeline struct {
	cfg        *config.Config
	fetcher    *rss.Fetcher
	extractor  Extractor
	keywords   *filter.KeywordSet
	store      *storage.Store
	completer  llm.Completer
	rater      *rating.Rater
	summarizer *summarize.Summarizer
	newsletter *newsletter.Builder
}

type Option func(*Pipeline)

func WithFetcher(f *rss.Fetcher) Option {
	return func(p *Pipeline) { p.fetcher = f }
}

func WithExtractor(x Extractor) Option {
	return func(p *Pipeline) { p.extractor = x }
}

func WithNewsletter(b *newsletter.Builder) Option {
	return func(p *Pipeline) { p.newsletter = b }
}

// WithCompleter enables the rating and summary stages with c.
func WithCompleter(c llm.Completer) Option {
	return func(p *Pipeline) { p.completer = c }
}

// New builds the pipeline from cfg. Components not given as options are
// created from the configuration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}

	if p.fetcher == nil {
		p.fetcher = rss.NewFetcher(cfg.RequestTimeout, cfg.Window(), rss.WithUserAgent(cfg.UserAgent))
	}
	if p.extractor == nil {
		p.extractor = scraper.NewExtractor(cfg.RequestTimeout, cfg.UserAgent,
			youtube.NewClient(cfg.TranscriptLang, cfg.RequestTimeout))
	}

	transforms, err := filter.OpenCCTransforms(filter.DefaultConversions...)
	if err != nil {
		return nil, err
	}
	if p.keywords, err = filter.NewKeywordSet(cfg.Keywords, transforms...); err != nil {
		return nil, err
	}
	logger.Debug("Keyword set", "base", p.keywords.Base(), "terms", p.keywords.Terms())

	if p.store, err = storage.NewStore(cfg.ArticlesDir, cfg.MaxFilenameBytes); err != nil {
		return nil, err
	}

	if p.completer == nil && cfg.LLMEnabled() {
		key := cfg.APIKey
		if cfg.LLMProvider == "gemini" {
			key = cfg.GeminiAPIKey
		}
		p.completer, err = llm.New(ctx, llm.Options{
			Provider: cfg.LLMProvider,
			BaseURL:  cfg.APIBaseURL,
			APIKey:   key,
			Model:    cfg.LLMModel,
			Timeout:  cfg.LLMTimeout,
		})
		if err != nil {
			return nil, err
		}
	}
	if p.completer != nil {
		p.rater = rating.NewRater(p.completer, cfg.RatingCriteria)
		p.summarizer = summarize.NewSummarizer(p.completer, cfg.SummaryLanguage)
		if p.newsletter == nil {
			p.newsletter = newsletter.NewBuilder(newsletter.Options{
				HTMLPath:      cfg.NewsletterFile,
				LinksPath:     cfg.LinksFile,
				ThumbnailsDir: cfg.ThumbnailsDir,
				TemplatePath:  cfg.NewsletterTemplate,
				Title:         cfg.NewsletterTitle,
				Font:          cfg.NewsletterFont,
				Timeout:       cfg.RequestTimeout,
				UserAgent:     cfg.UserAgent,
				Workers:       cfg.Threads,
			})
		}
	}
	return p, nil
}

// Close releases the model client, if any.
func (p *Pipeline) Close() {
	if c, ok := p.completer.(interface{ Close() }); ok {
		c.Close()
	}
}

// Report counts what one run did.
type Report struct {
	Sources    int
	Entries    int
	Extracted  int
	Failed     int
	Accepted   int
	Rejected   int
	Persisted  int
	Rated      int
	Summarized int
	Thumbnails int
	Newsletter string
}

// Run executes the pipeline once. Only an unreadable subscription list or
// an unwritable entry table end the run with an error; per-feed and
// per-entry failures are logged and skipped.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	var rep Report

	srcs, err := sources.LoadFile(p.cfg.FeedsFile)
	if err != nil {
		return rep, err
	}
	rep.Sources = len(srcs)
	logger.Info("Loaded feed sources", "count", len(srcs), "file", p.cfg.FeedsFile)

	entries := p.fetcher.FetchAll(ctx, sources.URLs(srcs), p.cfg.Threads)
	rep.Entries = len(entries)

	if err := storage.WriteTable(p.cfg.ArticlesCSV, entries); err != nil {
		return rep, err
	}
	logger.Info("Entries written", "path", p.cfg.ArticlesCSV, "count", len(entries))

	var extracted, accepted, rejected, persisted atomic.Int64
	stats := pool.ForEach(ctx, p.cfg.Threads, entries, func(ctx context.Context, entry rss.Entry) error {
		article, err := p.extractor.Extract(ctx, entry)
		if err != nil {
			metrics.Global.ExtractionFailed.Add(1)
			logger.Warn("No content for entry", "title", entry.Title, "url", entry.Link, "err", err)
			return err
		}
		extracted.Add(1)
		metrics.Global.ArticlesExtracted.Add(1)

		keyword, ok := p.keywords.Match(article.Body)
		if !ok {
			rejected.Add(1)
			metrics.Global.ArticlesRejected.Add(1)
			logger.Info("Skipping article: none of the keywords found", "title", entry.Title)
			return nil
		}
		accepted.Add(1)
		metrics.Global.ArticlesAccepted.Add(1)

		path, err := p.store.Save(article)
		if err != nil {
			metrics.Global.PersistFailed.Add(1)
			logger.Error("Failed to save article", "title", entry.Title, "err", err)
			return err
		}
		persisted.Add(1)
		metrics.Global.ArticlesPersisted.Add(1)
		logger.Info("Saved article", "title", entry.Title, "path", path, "keyword", keyword)
		return nil
	})

	rep.Extracted = int(extracted.Load())
	rep.Failed = stats.Failed
	rep.Accepted = int(accepted.Load())
	rep.Rejected = int(rejected.Load())
	rep.Persisted = int(persisted.Load())
	logger.Info("Extraction finished",
		"entries", stats.Total, "failed", stats.Failed, "accepted", rep.Accepted, "rejected", rep.Rejected)

	if p.rater == nil {
		return rep, nil
	}

	rated, err := p.rater.RateDir(ctx, rating.DirOptions{
		ArticlesDir:  p.cfg.ArticlesDir,
		HighRatedDir: p.cfg.HighRatedDir,
		ResultsPath:  p.cfg.RatingsFile,
		Top:          p.cfg.TopArticles,
		Workers:      p.cfg.Threads,
	})
	rep.Rated = len(rated)
	if err != nil {
		logger.Error("Rating stage failed", "err", err)
		return rep, nil
	}

	sums, err := p.summarizer.SummarizeDir(ctx, summarize.DirOptions{
		SourceDir:   p.cfg.HighRatedDir,
		OutDir:      p.cfg.SummariesDir,
		ResultsPath: p.cfg.SummariesFile,
		Workers:     p.cfg.Threads,
	})
	rep.Summarized = len(sums)
	if err != nil {
		logger.Error("Summary stage failed", "err", err)
		return rep, nil
	}
	if len(sums) == 0 {
		logger.Info("No summaries, skipping newsletter")
		return rep, nil
	}

	res, err := p.newsletter.Build(ctx, sums)
	rep.Thumbnails = res.Thumbnails
	if err != nil {
		logger.Error("Newsletter stage failed", "err", err)
		return rep, nil
	}
	rep.Newsletter = res.HTMLPath
	return rep, nil
}

// Run loads the configuration from the environment and runs the pipeline
// once, recording the outcome in metrics.Global.
func Run(ctx context.Context) error {
	start := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// .env may have set LOG_LEVEL
	logger.Init()

	p, err := New(ctx, cfg)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}
	defer p.Close()

	rep, err := p.Run(ctx)
	metrics.Global.RecordProcessingTime(time.Since(start))
	if err != nil {
		metrics.Global.SetError(err.Error())
		var perr *sources.ParseError
		if errors.As(err, &perr) {
			return fmt.Errorf("no feed sources could be read: %w", err)
		}
		return err
	}
	metrics.Global.SetLastRun()

	logger.Info("Digest run complete",
		"sources", rep.Sources,
		"entries", rep.Entries,
		"persisted", rep.Persisted,
		"rated", rep.Rated,
		"summarized", rep.Summarized,
		"newsletter", rep.Newsletter,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}
