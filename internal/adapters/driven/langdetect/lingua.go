// Package langdetect guesses the language of records whose source did not
// declare one.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"

	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
)

// Ensure Detector implements the interface.
var _ driven.LanguageDetector = (*Detector)(nil)

// minLetters is the shortest sample worth classifying.
const minLetters = 6

// DefaultLanguages are the languages the news sources publish in.
var DefaultLanguages = []lingua.Language{
	lingua.English,
	lingua.German,
	lingua.Chinese,
	lingua.French,
	lingua.Japanese,
	lingua.Spanish,
	lingua.Italian,
}

// Detector wraps a lingua detector that is built on first use.
type Detector struct {
	languages []lingua.Language

	once     sync.Once
	detector lingua.LanguageDetector
}

// New creates a detector restricted to languages. An empty list uses
// DefaultLanguages.
func New(languages ...lingua.Language) *Detector {
	if len(languages) < 2 {
		languages = DefaultLanguages
	}
	return &Detector{languages: languages}
}

// Detect returns an ISO 639-1 code, or "" for short or ambiguous text.
func (d *Detector) Detect(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letters := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < minLetters {
		return ""
	}

	language, ok := d.get().DetectLanguageOf(sample)
	if !ok {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func (d *Detector) get() lingua.LanguageDetector {
	d.once.Do(func() {
		d.detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(d.languages...).
			Build()
	})
	return d.detector
}
