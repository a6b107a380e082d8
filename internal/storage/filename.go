package storage

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	recordExt    = ".txt"
	untitledStem = "untitled"
)

// reserved on at least one of Linux, macOS or Windows
const reservedChars = `/\:*?"<>|`

// SanitizeFilename turns a title into a record file name no longer than
// maxBytes bytes, extension included. Reserved and control characters become
// "_", whitespace runs collapse to a single "_", leading dots are dropped.
// A title with nothing usable left becomes "untitled.txt"; a title made only
// of reserved characters keeps its underscores ("///" -> "___.txt").
func SanitizeFilename(title string, maxBytes int) string {
	var b strings.Builder
	inSpace := false
	for _, r := range strings.TrimSpace(title) {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		if isReserved(r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}

	stem := strings.TrimLeft(b.String(), ".")

	limit := maxBytes - len(recordExt)
	if limit < 1 {
		limit = 1
	}
	stem = strings.TrimRight(truncateBytes(stem, limit), ".")
	if stem == "" {
		stem = truncateBytes(untitledStem, limit)
	}
	return stem + recordExt
}

func isReserved(r rune) bool {
	return r == utf8.RuneError || unicode.IsControl(r) || strings.ContainsRune(reservedChars, r)
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
