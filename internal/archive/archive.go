// Package archive packs one run's artifacts into a timestamped zip, copies
// the publishable ones into output/<timestamp>/ and clears the workspace for
// the next run.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deusflow/feeddigest/internal/logger"
)

const StampLayout = "20060102_150405"

// DefaultItems are the run artifacts, relative to the workspace root.
var DefaultItems = []string{
	"article_summaries",
	"articles_text",
	"high_rated_articles",
	"thumbnails",
	"article_ratings.json",
	"article_summaries.json",
	"articles.csv",
	"newsletter.html",
	"titles_and_links.txt",
	"newsletter.png",
}

// DefaultPublish are the artifacts kept outside the zip.
var DefaultPublish = []string{"newsletter.html", "thumbnails", "titles_and_links.txt", "newsletter.png"}

type Options struct {
	Root    string // workspace root, "." when empty
	Items   []string
	Publish []string
	Now     func() time.Time
}

// Result names what Run produced.
type Result struct {
	ZipPath   string
	OutputDir string
	Archived  []string
}

// Run archives, publishes and removes the items. Missing items are skipped.
func Run(opts Options) (Result, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Items == nil {
		opts.Items = DefaultItems
	}
	if opts.Publish == nil {
		opts.Publish = DefaultPublish
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	stamp := opts.Now().Format(StampLayout)

	res := Result{
		ZipPath:   filepath.Join(opts.Root, "archives", "archive_"+stamp+".zip"),
		OutputDir: filepath.Join(opts.Root, "output", stamp),
	}

	if err := copyToOutput(opts.Root, res.OutputDir, opts.Publish); err != nil {
		return res, err
	}

	logger.Info("Creating zip file", "path", res.ZipPath)
	archived, err := zipItems(opts.Root, res.ZipPath, opts.Items)
	if err != nil {
		return res, err
	}
	res.Archived = archived

	for _, item := range archived {
		if err := os.RemoveAll(filepath.Join(opts.Root, item)); err != nil {
			return res, fmt.Errorf("failed to remove %s: %w", item, err)
		}
	}

	if err := EnsureGitignore(filepath.Join(opts.Root, ".gitignore")); err != nil {
		return res, err
	}
	logger.Info("Cleanup complete", "archive", res.ZipPath, "items", len(archived))
	return res, nil
}

// zipItems writes every existing item into a new zip. Directory entries keep
// the directory name as their first path element.
func zipItems(root, zipPath string, items []string) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(zipPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archives dir: %w", err)
	}
	f, err := os.Create(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create zip: %w", err)
	}
	zw := zip.NewWriter(f)

	var archived []string
	for _, item := range items {
		src := filepath.Join(root, item)
		info, err := os.Stat(src)
		if err != nil {
			continue
		}
		if info.IsDir() {
			err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return err
				}
				rel, err := filepath.Rel(root, path)
				if err != nil {
					return err
				}
				return addFile(zw, path, filepath.ToSlash(rel))
			})
		} else {
			err = addFile(zw, src, filepath.Base(item))
		}
		if err != nil {
			zw.Close()
			f.Close()
			return nil, fmt.Errorf("failed to archive %s: %w", item, err)
		}
		archived = append(archived, item)
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to finish zip: %w", err)
	}
	return archived, f.Close()
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func copyToOutput(root, outDir string, items []string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	for _, item := range items {
		src := filepath.Join(root, item)
		info, err := os.Stat(src)
		if err != nil {
			continue
		}
		dst := filepath.Join(outDir, filepath.Base(item))
		if info.IsDir() {
			err = os.CopyFS(dst, os.DirFS(src))
		} else {
			err = copyFile(src, dst)
		}
		if err != nil {
			return fmt.Errorf("failed to publish %s: %w", item, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// EnsureGitignore appends "archives/" to the ignore file unless it is
// already listed.
func EnsureGitignore(path string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if strings.Contains(string(data), "archives/") {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to update .gitignore: %w", err)
	}
	if _, err := f.WriteString("\n# Archive folder\narchives/\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
