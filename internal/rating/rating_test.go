package rating

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeLLM answers based on a marker in the prompt.
type fakeLLM struct {
	mu      sync.Mutex
	systems []string
	replies map[string]string
}

func (f *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.systems = append(f.systems, system)
	f.mu.Unlock()
	for marker, reply := range f.replies {
		if strings.Contains(user, marker) {
			if reply == "ERR" {
				return "", errors.New("upstream unavailable")
			}
			return reply, nil
		}
	}
	return "Not relevant", nil
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		raw      string
		relevant bool
		score    float64
		wantErr  bool
	}{
		{raw: "Not relevant", relevant: false},
		{raw: "not relevant.", relevant: false},
		{raw: "8 out of 10", relevant: true, score: 8},
		{raw: "I would rate this 7.5 out of 10 because it is concise.", relevant: true, score: 7.5},
		{raw: "Score: 10 out of 10", relevant: true, score: 10},
		{raw: "0 out of 10", wantErr: true},
		{raw: "11 out of 10", wantErr: true},
		{raw: "pretty good", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseRating(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnexpectedFormat)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.relevant, got.Relevant)
			require.Equal(t, tt.score, got.Score)
		})
	}
}

func TestApplyScore(t *testing.T) {
	at := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	content := "Title: X\nURL: https://example.com\nDate: 2026-10-16\n\nBody"

	once := ApplyScore(content, 8, at)
	require.Equal(t, content+"\n\nArticle Score: 8 out of 10\nRated on: 2026-10-17 09:30:00", once)

	twice := ApplyScore(once, 6.5, at.Add(time.Hour))
	require.Equal(t, content+"\n\nArticle Score: 6.5 out of 10\nRated on: 2026-10-17 10:30:00", twice)
	require.Equal(t, 1, strings.Count(twice, "Article Score:"))
}

func TestRatePromptCarriesCriteria(t *testing.T) {
	f := &fakeLLM{replies: map[string]string{"body": "9 out of 10"}}
	r := NewRater(f, "AI safety research")

	got, err := r.Rate(context.Background(), "some body")
	require.NoError(t, err)
	require.Equal(t, 9.0, got.Score)
	require.Contains(t, f.systems[0], "'AI safety research'")
}

func TestRateDir(t *testing.T) {
	root := t.TempDir()
	articles := filepath.Join(root, "articles_text")
	high := filepath.Join(root, "high_rated_articles")
	results := filepath.Join(root, "article_ratings.json")
	require.NoError(t, os.MkdirAll(articles, 0o755))

	files := map[string]string{
		"a.txt":       "Title: A\n\nmarker-a",
		"b.txt":       "Title: B\n\nmarker-b",
		"c.txt":       "Title: C\n\nmarker-c",
		"d.txt":       "Title: D\n\nmarker-d",
		"e.txt":       "Title: E\n\nmarker-e",
		"ignored.csv": "marker-a",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(articles, name), []byte(body), 0o644))
	}

	f := &fakeLLM{replies: map[string]string{
		"marker-a": "6 out of 10",
		"marker-b": "9 out of 10",
		"marker-c": "Not relevant",
		"marker-d": "ERR",
		"marker-e": "7.5 out of 10",
	}}
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	got, err := NewRater(f, "tech").RateDir(context.Background(), DirOptions{
		ArticlesDir:  articles,
		HighRatedDir: high,
		ResultsPath:  results,
		Top:          2,
		Workers:      3,
		Now:          func() time.Time { return now },
	})
	require.NoError(t, err)
	require.Equal(t, []Result{{"b.txt", 9}, {"e.txt", 7.5}, {"a.txt", 6}}, got)

	data, err := os.ReadFile(results)
	require.NoError(t, err)
	var scores map[string]float64
	require.NoError(t, json.Unmarshal(data, &scores))
	require.Equal(t, map[string]float64{"a.txt": 6, "b.txt": 9, "e.txt": 7.5}, scores)

	copied, err := os.ReadDir(high)
	require.NoError(t, err)
	require.Len(t, copied, 2)
	require.Equal(t, "b.txt", copied[0].Name())
	require.Equal(t, "e.txt", copied[1].Name())

	b, err := os.ReadFile(filepath.Join(high, "b.txt"))
	require.NoError(t, err)
	require.Contains(t, string(b), "Article Score: 9 out of 10\nRated on: 2026-10-17 12:00:00")

	c, err := os.ReadFile(filepath.Join(articles, "c.txt"))
	require.NoError(t, err)
	require.NotContains(t, string(c), "Article Score")
}
