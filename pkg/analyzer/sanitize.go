package analyzer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinUsableLength is the acceptance bar for inference output: a sanitized
// candidate must be strictly longer than this many characters to be
// returned instead of falling back. The value is empirically tuned;
// change it only deliberately.
const MinUsableLength = 50

const (
	// maxResponseLines bounds sanitized output for display.
	maxResponseLines = 20

	// minLineRunes drops noise lines; small models emit stray fragments.
	minLineRunes = 4
)

// disallowed matches every character outside the allow-list: latin
// letters, digits, underscore, whitespace, common punctuation, and the
// Russian alphabet the narratives are written in.
var disallowed = regexp.MustCompile(`[^0-9A-Za-z_\s%.,!?;:()\-—а-яА-ЯёЁ]`)

// SanitizeResponse cleans raw inference output for display: characters
// outside the allow-list become spaces, whitespace runs collapse, lines
// shorter than four characters are dropped, and the result is capped at
// twenty lines. The transform is idempotent.
func SanitizeResponse(text string) string {
	text = disallowed.ReplaceAllString(text, " ")

	var clean []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if utf8.RuneCountInString(line) < minLineRunes {
			continue
		}
		clean = append(clean, line)
		if len(clean) == maxResponseLines {
			break
		}
	}
	return strings.Join(clean, "\n")
}

// Usable is the acceptance predicate for provider output: the sanitized
// text must exceed minLength characters. Exactly minLength is rejected.
func Usable(sanitized string, minLength int) bool {
	return utf8.RuneCountInString(sanitized) > minLength
}
