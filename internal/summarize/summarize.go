// Package summarize translates the titles of top-rated records and writes
// short summaries of them in the digest language.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/deusflow/feeddigest/internal/llm"
	"github.com/deusflow/feeddigest/internal/logger"
	"github.com/deusflow/feeddigest/internal/metrics"
	"github.com/deusflow/feeddigest/internal/pool"
)

// Summary is the result for one record. The JSON tags match the results file.
type Summary struct {
	File          string `json:"-"`
	URL           string `json:"url"`
	OriginalTitle string `json:"original_title"`
	Title         string `json:"chinese_title"`
	Text          string `json:"chinese_summary"`
}

type Summarizer struct {
	llm      llm.Completer
	language string
}

func NewSummarizer(c llm.Completer, language string) *Summarizer {
	if language == "" {
		language = "Chinese (zh-CN)"
	}
	return &Summarizer{llm: c, language: language}
}

// Summarize makes two requests: one for the title, one for the summary.
func (s *Summarizer) Summarize(ctx context.Context, title, body string) (Summary, error) {
	translated, err := s.llm.Complete(ctx,
		fmt.Sprintf("You are a translator. Translate the given title to %s. Output only the translated title without any additional text.", s.language),
		fmt.Sprintf("Translate this title to %s:\n\n%s", s.language, title))
	if err != nil {
		return Summary{}, fmt.Errorf("title translation failed: %w", err)
	}

	text, err := s.llm.Complete(ctx,
		fmt.Sprintf("You are an AI assistant that summarizes articles in %s. Provide a concise summary in about 3-5 sentences in %s.", s.language, s.language),
		fmt.Sprintf("Summarize the following article in %s:\n\nTitle: %s\n\nContent:\n%s", s.language, title, llm.TruncatePrompt(body)))
	if err != nil {
		return Summary{}, fmt.Errorf("summary failed: %w", err)
	}

	out := Summary{
		OriginalTitle: title,
		Title:         Spacing(Sanitize(translated)),
		Text:          Spacing(Sanitize(text)),
	}
	if out.Title == "" || out.Text == "" {
		return Summary{}, llm.ErrEmptyResponse
	}
	return out, nil
}

// Format renders the summary record written next to the results file.
func (s *Summarizer) Format(sum Summary) string {
	label := "Title: "
	if strings.Contains(strings.ToLower(s.language), "chinese") {
		label = "标题："
	}
	return fmt.Sprintf("%s%s\n\nURL: %s\n\n%s", label, sum.Title, sum.URL, sum.Text)
}

// ParseRecord splits a saved article record into its title, URL and the
// remaining text.
func ParseRecord(content string) (title, url, body string) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "Title:"):
			if title == "" {
				title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
			}
		case strings.HasPrefix(line, "URL:"):
			if url == "" {
				url = strings.TrimSpace(strings.TrimPrefix(line, "URL:"))
			}
		default:
			kept = append(kept, line)
		}
	}
	return title, url, strings.TrimSpace(strings.Join(kept, "\n"))
}

type DirOptions struct {
	SourceDir   string // high_rated_articles
	OutDir      string // article_summaries
	ResultsPath string // article_summaries.json
	Workers     int
}

// SummarizeDir summarizes every .txt record in SourceDir into
// OutDir/summary_<name> and writes the collected results as JSON keyed by
// record name.
func (s *Summarizer) SummarizeDir(ctx context.Context, opts DirOptions) ([]Summary, error) {
	entries, err := os.ReadDir(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", opts.SourceDir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create summaries dir: %w", err)
	}

	var (
		mu        sync.Mutex
		summaries []Summary
	)
	stats := pool.ForEach(ctx, opts.Workers, names, func(ctx context.Context, name string) error {
		data, err := os.ReadFile(filepath.Join(opts.SourceDir, name))
		if err != nil {
			return err
		}
		title, url, body := ParseRecord(string(data))

		sum, err := s.Summarize(ctx, title, body)
		if err != nil {
			logger.Warn("Failed to summarize", "file", name, "err", err)
			return err
		}
		sum.File = name
		sum.URL = url

		if err := os.WriteFile(filepath.Join(opts.OutDir, "summary_"+name), []byte(s.Format(sum)), 0o644); err != nil {
			return err
		}
		metrics.Global.ArticlesSummarized.Add(1)
		logger.Info("Summary saved", "file", name)

		mu.Lock()
		summaries = append(summaries, sum)
		mu.Unlock()
		return nil
	})
	logger.Info("Summarization finished", "records", stats.Total, "failed", stats.Failed)

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].File < summaries[j].File })

	if opts.ResultsPath != "" {
		byFile := make(map[string]Summary, len(summaries))
		for _, sum := range summaries {
			byFile[sum.File] = sum
		}
		data, err := json.MarshalIndent(byFile, "", "    ")
		if err != nil {
			return summaries, err
		}
		if err := os.WriteFile(opts.ResultsPath, data, 0o644); err != nil {
			return summaries, fmt.Errorf("failed to write summaries: %w", err)
		}
	}
	return summaries, nil
}
