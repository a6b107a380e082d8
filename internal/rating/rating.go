// Package rating scores saved article records against a rubric with a
// language model and promotes the best ones.
package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/deusflow/feeddigest/internal/llm"
	"github.com/deusflow/feeddigest/internal/logger"
	"github.com/deusflow/feeddigest/internal/metrics"
	"github.com/deusflow/feeddigest/internal/pool"
)

// TimestampLayout is used for the "Rated on" line.
const TimestampLayout = "2006-01-02 15:04:05"

var (
	ErrNotRelevant      = errors.New("article not relevant to rating criteria")
	ErrUnexpectedFormat = errors.New("unexpected rating format")
)

var (
	replyScore = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*out of 10`)
	scoreBlock = regexp.MustCompile(`Article Score: \d+(?:\.\d+)?\s*out of 10\nRated on: [^\n]+`)
)

// Rating is a parsed model verdict.
type Rating struct {
	Relevant bool
	Score    float64
	Raw      string
}

type Rater struct {
	llm      llm.Completer
	criteria string
}

func NewRater(c llm.Completer, criteria string) *Rater {
	return &Rater{llm: c, criteria: criteria}
}

func (r *Rater) systemPrompt() string {
	return fmt.Sprintf("You are an AI assistant that rates articles strictly based on the criteria: '%s'. "+
		"First, determine if the article strictly matches the criteria. If it does not, respond with 'Not relevant'. "+
		"If it matches, rate the article based on its value in 'X out of 10' format, where X is a number from 1 to 10.",
		r.criteria)
}

// Rate asks the model for a verdict on one record.
func (r *Rater) Rate(ctx context.Context, content string) (Rating, error) {
	raw, err := r.llm.Complete(ctx, r.systemPrompt(), "Rate the following article:\n\n"+llm.TruncatePrompt(content))
	if err != nil {
		return Rating{}, fmt.Errorf("rating request failed: %w", err)
	}
	logger.Debug("Raw rating response", "reply", raw)
	return ParseRating(raw)
}

// ParseRating reads "Not relevant" or the first "X out of 10" in raw.
func ParseRating(raw string) (Rating, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(strings.TrimRight(raw, ".!"), "not relevant") {
		return Rating{Relevant: false, Raw: raw}, nil
	}
	m := replyScore.FindStringSubmatch(raw)
	if m == nil {
		return Rating{Raw: raw}, fmt.Errorf("%w: %q", ErrUnexpectedFormat, raw)
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil || score < 1 || score > 10 {
		return Rating{Raw: raw}, fmt.Errorf("%w: score %q out of range", ErrUnexpectedFormat, m[1])
	}
	return Rating{Relevant: true, Score: score, Raw: raw}, nil
}

// FormatScore prints whole scores without a fraction.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// ApplyScore replaces an existing score block in content, or appends one
// after a blank line.
func ApplyScore(content string, score float64, at time.Time) string {
	block := fmt.Sprintf("Article Score: %s out of 10\nRated on: %s", FormatScore(score), at.Format(TimestampLayout))
	if scoreBlock.MatchString(content) {
		return scoreBlock.ReplaceAllLiteralString(content, block)
	}
	return content + "\n\n" + block
}

// Result is one rated record.
type Result struct {
	File  string
	Score float64
}

// DirOptions control RateDir.
type DirOptions struct {
	ArticlesDir  string
	HighRatedDir string
	ResultsPath  string // article_ratings.json
	Top          int
	Workers      int
	Now          func() time.Time
}

// RateDir rates every .txt record in ArticlesDir, writes the score back into
// the record, saves the score map as JSON and copies the Top best records
// into HighRatedDir. Failures on single records are logged and skipped.
func (r *Rater) RateDir(ctx context.Context, opts DirOptions) ([]Result, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	files, err := listRecords(opts.ArticlesDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.HighRatedDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create high rated dir: %w", err)
	}

	var (
		mu      sync.Mutex
		results []Result
	)
	stats := pool.ForEach(ctx, opts.Workers, files, func(ctx context.Context, name string) error {
		path := filepath.Join(opts.ArticlesDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		rating, err := r.Rate(ctx, string(data))
		if err != nil {
			logger.Warn("Failed to get rating", "file", name, "err", err)
			return err
		}
		if !rating.Relevant {
			logger.Info("Article not relevant", "file", name)
			return nil
		}

		if err := os.WriteFile(path, []byte(ApplyScore(string(data), rating.Score, opts.Now())), 0o644); err != nil {
			return err
		}
		metrics.Global.ArticlesRated.Add(1)
		logger.Info("Rated article", "file", name, "score", FormatScore(rating.Score))

		mu.Lock()
		results = append(results, Result{File: name, Score: rating.Score})
		mu.Unlock()
		return nil
	})
	logger.Info("Rating finished", "records", stats.Total, "failed", stats.Failed, "rated", len(results))

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].File < results[j].File
	})

	if opts.ResultsPath != "" {
		if err := writeScores(opts.ResultsPath, results); err != nil {
			return results, err
		}
	}

	top := results
	if opts.Top >= 0 && len(top) > opts.Top {
		top = top[:opts.Top]
	}
	for _, res := range top {
		if err := copyFile(filepath.Join(opts.ArticlesDir, res.File), filepath.Join(opts.HighRatedDir, res.File)); err != nil {
			return results, err
		}
		logger.Info("Copied to high rated", "file", res.File, "score", FormatScore(res.Score))
	}
	return results, nil
}

func listRecords(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func writeScores(path string, results []Result) error {
	scores := make(map[string]float64, len(results))
	for _, res := range results {
		scores[res.File] = res.Score
	}
	data, err := json.MarshalIndent(scores, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ratings: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
