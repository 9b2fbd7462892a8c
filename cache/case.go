package cache

import (
	"strings"
	"unicode"
)

// toSnake turns a method name into the lower snake_case segment of a key.
// Runs of anything other than letters and digits become one underscore, so
// the segment never contains KeySeparator.
func toSnake(s string) string {
	var words []string
	var word []rune

	flush := func() {
		if len(word) > 0 {
			words = append(words, strings.ToLower(string(word)))
			word = word[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(word) > 0 {
			prev := word[len(word)-1]
			switch {
			case unicode.IsDigit(r) && !unicode.IsDigit(prev):
				flush()
			case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
				flush()
			case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				// "IDValue": the last capital starts the next word
				flush()
			}
		}
		word = append(word, r)
	}
	flush()

	return strings.Join(words, "_")
}
