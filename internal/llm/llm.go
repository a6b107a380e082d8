// Package llm sends single prompts to a language model endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Completer returns the model's reply to one system + user prompt pair.
// Implementations make exactly one request per call.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ErrEmptyResponse is returned when the model answered with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Options configure a provider client.
type Options struct {
	Provider string // "openai" | "gemini"
	BaseURL  string // OpenAI-compatible endpoint, optional
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// New builds the Completer for opts.Provider.
func New(ctx context.Context, opts Options) (Completer, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	switch opts.Provider {
	case "", "openai":
		return NewOpenAI(opts), nil
	case "gemini":
		return NewGemini(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", opts.Provider)
	}
}

// maxPromptRunes keeps long articles inside model context limits.
const maxPromptRunes = 12000

// TruncatePrompt cuts text on a rune boundary, preferring the end of a sentence.
func TruncatePrompt(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r", ""))
	if utf8.RuneCountInString(text) <= maxPromptRunes {
		return text
	}
	runes := []rune(text)
	trimmed := string(runes[:maxPromptRunes])
	if idx := strings.LastIndex(trimmed, ". "); idx > maxPromptRunes/2 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed + "\n[TRUNCATED]"
}
