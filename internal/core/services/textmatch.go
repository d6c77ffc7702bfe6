package services

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// inflections are suffixes tolerated after a phrase so that "webinars" or
// "Ablaufsimulationen" still match their base phrase.
var inflections = []string{"es", "en", "s", "n"}

// foldText lower-cases s and collapses whitespace runs to single spaces.
func foldText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// foldAll folds every phrase, dropping empties.
func foldAll(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if f := foldText(p); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// containsPhrase reports whether folded text contains folded phrase on word
// boundaries, allowing a short inflection suffix.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], phrase)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(phrase)
		if boundaryBefore(text, start) && boundaryAfterInflected(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

// firstMatch returns the first phrase contained in text.
func firstMatch(text string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if containsPhrase(text, p) {
			return p, true
		}
	}
	return "", false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func boundaryAfterInflected(text string, i int) bool {
	if boundaryAfter(text, i) {
		return true
	}
	for _, suffix := range inflections {
		if strings.HasPrefix(text[i:], suffix) && boundaryAfter(text, i+len(suffix)) {
			return true
		}
	}
	return false
}
