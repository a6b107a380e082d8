// Package sources reads the subscription list that names the feeds to poll.
package sources

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FeedSource is one feed endpoint taken from the subscription list.
type FeedSource struct {
	URL string
}

// ParseError means the subscription list could not be read as markup.
// No sources can be discovered after it, so callers treat it as fatal.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse subscription list: %v", e.Err)
	}
	return fmt.Sprintf("parse subscription list %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FeedsConfig is the YAML list format
// feeds:
//   - https://...
type FeedsConfig struct {
	Feeds []string `yaml:"feeds"`
}

// LoadFile reads an OPML subscription list, or the YAML list when the file
// has a .yaml/.yml extension.
func LoadFile(path string) ([]FeedSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []FeedSource
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		out, err = LoadYAML(f)
	default:
		out, err = LoadOPML(f)
	}

	var perr *ParseError
	if errors.As(err, &perr) {
		perr.Path = path
	}
	return out, err
}

// LoadOPML collects the xmlUrl attribute of every outline element, at any
// depth. Outlines without it (folders, mostly) are skipped. Duplicates are kept.
// The document must have exactly one root element and no text outside it.
func LoadOPML(r io.Reader) ([]FeedSource, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var (
		out    []FeedSource
		depth  int
		closed bool // root element has ended
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if closed {
				return nil, &ParseError{Err: fmt.Errorf("element <%s> after the root element", t.Name.Local)}
			}
			depth++
			if t.Name.Local != "outline" {
				continue
			}
			for _, attr := range t.Attr {
				if attr.Name.Local == "xmlUrl" && strings.TrimSpace(attr.Value) != "" {
					out = append(out, FeedSource{URL: strings.TrimSpace(attr.Value)})
					break
				}
			}
		case xml.EndElement:
			depth--
			if depth == 0 {
				closed = true
			}
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return nil, &ParseError{Err: errors.New("text outside the root element")}
			}
		}
	}

	if !closed {
		return nil, &ParseError{Err: errors.New("no root element")}
	}
	return out, nil
}

// LoadYAML reads the YAML list format.
func LoadYAML(r io.Reader) ([]FeedSource, error) {
	var cfg FeedsConfig
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, &ParseError{Err: err}
	}

	out := make([]FeedSource, 0, len(cfg.Feeds))
	for _, u := range cfg.Feeds {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, FeedSource{URL: u})
		}
	}
	return out, nil
}

// URLs flattens sources to their endpoint strings.
func URLs(in []FeedSource) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = s.URL
	}
	return out
}
