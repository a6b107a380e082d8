// Package config loads the digest pipeline settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Relevance
	Keywords []string

	// Fetch settings
	FeedsFile      string
	Threads        int // shared by the fetch and the extraction phase
	DateRangeDays  int
	RequestTimeout time.Duration
	UserAgent      string
	TranscriptLang string

	// Output settings
	ArticlesCSV      string
	ArticlesDir      string
	MaxFilenameBytes int

	// LLM settings (rating + summaries)
	LLMProvider     string // "openai" | "gemini"
	APIBaseURL      string
	APIKey          string
	LLMModel        string
	LLMTimeout      time.Duration
	GeminiAPIKey    string
	RatingCriteria  string
	TopArticles     int
	HighRatedDir    string
	SummariesDir    string
	SummaryLanguage string
	RatingsFile     string
	SummariesFile   string

	// Newsletter settings
	NewsletterFile     string
	NewsletterTitle    string
	NewsletterFont     string
	NewsletterTemplate string // empty: built-in template
	LinksFile          string
	ThumbnailsDir      string

	// App settings
	Debug bool
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// A missing .env is normal in CI and containers.
	_ = godotenv.Load()

	cfg := &Config{
		// Default values
		FeedsFile:        "feeds.opml",
		Threads:          10,
		DateRangeDays:    7,
		RequestTimeout:   10 * time.Second,
		UserAgent:        "feeddigest/1.0",
		TranscriptLang:   "en",
		ArticlesCSV:      "articles.csv",
		ArticlesDir:      "articles_text",
		MaxFilenameBytes: 200,
		LLMProvider:      "openai",
		LLMModel:         "gpt-3.5-turbo",
		LLMTimeout:       60 * time.Second,
		TopArticles:      5,
		HighRatedDir:     "high_rated_articles",
		SummariesDir:     "article_summaries",
		SummaryLanguage:  "Chinese (zh-CN)",
		RatingsFile:      "article_ratings.json",
		SummariesFile:    "article_summaries.json",
		NewsletterFile:   "newsletter.html",
		NewsletterTitle:  "文章摘要通讯",
		NewsletterFont:   "Arial, sans-serif",
		LinksFile:        "titles_and_links.txt",
		ThumbnailsDir:    "thumbnails",
	}

	cfg.Keywords = splitList(os.Getenv("KEYWORDS"))

	cfg.FeedsFile = getEnvOrDefault("FEEDS_FILE", cfg.FeedsFile)
	cfg.UserAgent = getEnvOrDefault("USER_AGENT", cfg.UserAgent)
	cfg.TranscriptLang = getEnvOrDefault("TRANSCRIPT_LANG", cfg.TranscriptLang)
	cfg.ArticlesCSV = getEnvOrDefault("ARTICLES_CSV", cfg.ArticlesCSV)
	cfg.ArticlesDir = getEnvOrDefault("ARTICLES_DIR", cfg.ArticlesDir)

	var err error
	if cfg.Threads, err = getEnvPositiveInt("THREADS", cfg.Threads); err != nil {
		return nil, err
	}
	if cfg.DateRangeDays, err = getEnvPositiveInt("DATE_RANGE_DAYS", cfg.DateRangeDays); err != nil {
		return nil, err
	}
	if cfg.MaxFilenameBytes, err = getEnvPositiveInt("MAX_FILENAME_BYTES", cfg.MaxFilenameBytes); err != nil {
		return nil, err
	}
	if cfg.TopArticles, err = getEnvPositiveInt("TOP_ARTICLES", cfg.TopArticles); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if cfg.LLMTimeout, err = getEnvDuration("LLM_TIMEOUT", cfg.LLMTimeout); err != nil {
		return nil, err
	}

	// LLM collaborators
	cfg.LLMProvider = strings.ToLower(getEnvOrDefault("LLM_PROVIDER", cfg.LLMProvider))
	cfg.APIBaseURL = os.Getenv("CUSTOM_API_URL")
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.LLMModel = getEnvOrDefault("LLM_MODEL", cfg.LLMModel)
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.RatingCriteria = os.Getenv("RATING_CRITERIA")
	cfg.HighRatedDir = getEnvOrDefault("HIGH_RATED_DIR", cfg.HighRatedDir)
	cfg.SummariesDir = getEnvOrDefault("SUMMARIES_DIR", cfg.SummariesDir)
	cfg.SummaryLanguage = getEnvOrDefault("SUMMARY_LANGUAGE", cfg.SummaryLanguage)
	cfg.RatingsFile = getEnvOrDefault("RATINGS_FILE", cfg.RatingsFile)
	cfg.SummariesFile = getEnvOrDefault("SUMMARIES_FILE", cfg.SummariesFile)

	cfg.NewsletterFile = getEnvOrDefault("NEWSLETTER_FILE", cfg.NewsletterFile)
	cfg.NewsletterTitle = getEnvOrDefault("NEWSLETTER_TITLE", cfg.NewsletterTitle)
	cfg.NewsletterFont = getEnvOrDefault("NEWSLETTER_FONT", cfg.NewsletterFont)
	cfg.NewsletterTemplate = os.Getenv("NEWSLETTER_TEMPLATE")
	cfg.LinksFile = getEnvOrDefault("LINKS_FILE", cfg.LinksFile)
	cfg.ThumbnailsDir = getEnvOrDefault("THUMBNAILS_DIR", cfg.ThumbnailsDir)

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}

	return cfg, cfg.Validate()
}

// Window is the recency window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.DateRangeDays) * 24 * time.Hour
}

// LLMEnabled reports whether a language model key is configured for the
// selected provider.
func (c *Config) LLMEnabled() bool {
	if c.LLMProvider == "gemini" {
		return c.GeminiAPIKey != ""
	}
	return c.APIKey != ""
}

func (c *Config) Validate() error {
	if len(c.Keywords) == 0 {
		return errors.New("KEYWORDS is required")
	}
	if c.LLMProvider != "openai" && c.LLMProvider != "gemini" {
		return fmt.Errorf("LLM_PROVIDER must be 'openai' or 'gemini', got %q", c.LLMProvider)
	}
	if c.LLMEnabled() && c.RatingCriteria == "" {
		return errors.New("RATING_CRITERIA is required when an LLM key is set")
	}
	// "x.txt" is the shortest useful name
	if c.MaxFilenameBytes < 5 {
		return fmt.Errorf("MAX_FILENAME_BYTES must be at least 5, got %d", c.MaxFilenameBytes)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvPositiveInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || intValue <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, value)
	}
	return intValue, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, value)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
