package summarize

import (
	"regexp"
	"strings"
)

var (
	parenNote   = regexp.MustCompile(`(?i)\(\s*note:[^)]*\)`)
	bracketNote = regexp.MustCompile(`(?i)\[\s*note:[^\]]*\]`)
	lineNote    = regexp.MustCompile(`(?im)^[ \t]*note:.*$`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)

	cjkThenLatin = regexp.MustCompile(`(\p{Han}|\p{Hiragana}|\p{Katakana})([A-Za-z0-9])`)
	latinThenCJK = regexp.MustCompile(`([A-Za-z0-9])(\p{Han}|\p{Hiragana}|\p{Katakana})`)
)

// Sanitize strips "Note: ..." disclaimers models like to add to translations.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = parenNote.ReplaceAllString(s, "")
	s = bracketNote.ReplaceAllString(s, "")
	s = lineNote.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}

// Spacing puts a space between CJK characters and adjacent ASCII letters or
// digits.
func Spacing(s string) string {
	s = cjkThenLatin.ReplaceAllString(s, "$1 $2")
	return latinThenCJK.ReplaceAllString(s, "$1 $2")
}
