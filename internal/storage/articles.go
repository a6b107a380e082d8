// Package storage writes the pipeline's file outputs: one text record per
// accepted article and the table of every fetched entry.
package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deusflow/feeddigest/internal/rss"
	"github.com/deusflow/feeddigest/internal/scraper"
)

// Store writes article records into a directory.
type Store struct {
	dir      string
	maxBytes int
}

// NewStore creates dir if needed.
func NewStore(dir string, maxFilenameBytes int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create articles dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxFilenameBytes}, nil
}

// Dir is the directory records are written to.
func (s *Store) Dir() string { return s.dir }

// Save writes the record for a and returns its path. A record with the same
// sanitized name is overwritten.
func (s *Store) Save(a scraper.Article) (string, error) {
	path := filepath.Join(s.dir, SanitizeFilename(a.Title, s.maxBytes))
	if err := os.WriteFile(path, []byte(FormatRecord(a)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write article %q: %w", a.Title, err)
	}
	return path, nil
}

// FormatRecord renders the three header lines, a blank line and the body
// with blank lines removed.
func FormatRecord(a scraper.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", a.Title)
	fmt.Fprintf(&b, "URL: %s\n", a.Link)
	fmt.Fprintf(&b, "Date: %s\n\n", a.Date())
	b.WriteString(CleanBody(a.Body))
	return b.String()
}

// CleanBody drops blank and whitespace-only lines.
func CleanBody(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// WriteTable writes the fetched entries as CSV with a Title,URL,Date header.
func WriteTable(path string, entries []rss.Entry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create table dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	w := csv.NewWriter(f)
	_ = w.Write([]string{"Title", "URL", "Date"})
	for _, e := range entries {
		_ = w.Write([]string{e.Title, e.Link, e.Date()})
	}
	w.Flush()

	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write table: %w", err)
	}
	return f.Close()
}
