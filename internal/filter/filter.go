// Package filter decides whether extracted text is relevant to the
// configured keywords.
//
// Keywords are widened with script variants (simplified Chinese rendered as
// traditional, Taiwan and Hong Kong forms) so that text written in any of
// them matches. Matching is a case-insensitive substring search; there is no
// word-boundary check, so "AI" also matches inside "maintain".
package filter

import (
	"fmt"
	"strings"

	"github.com/longbridgeapp/opencc"
)

// Transform renders a keyword in another script variant.
type Transform struct {
	Name    string
	Convert func(string) (string, error)
}

// DefaultConversions are the OpenCC configurations applied to every keyword.
var DefaultConversions = []string{"s2t", "s2tw", "s2hk"}

// OpenCCTransforms builds one Transform per OpenCC conversion name.
func OpenCCTransforms(conversions ...string) ([]Transform, error) {
	out := make([]Transform, 0, len(conversions))
	for _, name := range conversions {
		cc, err := opencc.New(name)
		if err != nil {
			return nil, fmt.Errorf("load opencc %s: %w", name, err)
		}
		out = append(out, Transform{Name: name, Convert: cc.Convert})
	}
	return out, nil
}

// KeywordSet holds the base keywords and their variants. It is built once and
// never modified, so Match may be called from any number of goroutines.
type KeywordSet struct {
	base     []string
	variants map[string][]string
	terms    []string // union, lower-cased, deduplicated, in first-seen order
	display  []string // same order as terms, original spelling
}

// NewKeywordSet expands keywords with every transform. Blank keywords are
// dropped.
func NewKeywordSet(keywords []string, transforms ...Transform) (*KeywordSet, error) {
	ks := &KeywordSet{variants: make(map[string][]string, len(transforms))}
	seen := make(map[string]bool)

	add := func(term string) {
		key := strings.ToLower(term)
		if term == "" || seen[key] {
			return
		}
		seen[key] = true
		ks.terms = append(ks.terms, key)
		ks.display = append(ks.display, term)
	}

	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			ks.base = append(ks.base, k)
			add(k)
		}
	}

	for _, tr := range transforms {
		converted := make([]string, 0, len(ks.base))
		for _, k := range ks.base {
			v, err := tr.Convert(k)
			if err != nil {
				return nil, fmt.Errorf("convert keyword %q with %s: %w", k, tr.Name, err)
			}
			v = strings.TrimSpace(v)
			converted = append(converted, v)
			add(v)
		}
		ks.variants[tr.Name] = converted
	}

	return ks, nil
}

// Base returns the configured keywords.
func (ks *KeywordSet) Base() []string {
	return append([]string(nil), ks.base...)
}

// Variants returns the keywords as rendered by the named transform.
func (ks *KeywordSet) Variants(name string) []string {
	return append([]string(nil), ks.variants[name]...)
}

// Terms returns the union of base keywords and all variants.
func (ks *KeywordSet) Terms() []string {
	return append([]string(nil), ks.display...)
}

// Match reports whether any term occurs in text, ignoring case, and which
// term matched first.
func (ks *KeywordSet) Match(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for i, term := range ks.terms {
		if strings.Contains(lower, term) {
			return ks.display[i], true
		}
	}
	return "", false
}
