package services

import (
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// DefaultTitleSimilarity is the token Jaccard similarity at which two titles
// are treated as the same item.
const DefaultTitleSimilarity = 0.85

// minTitleTokens guards near-duplicate matching against very short titles.
const minTitleTokens = 4

// Deduplicator collapses documents that refer to the same item.
type Deduplicator struct {
	similarity float64
}

// NewDeduplicator creates a deduplicator. A similarity outside (0,1] uses
// DefaultTitleSimilarity.
func NewDeduplicator(similarity float64) *Deduplicator {
	if similarity <= 0 || similarity > 1 {
		similarity = DefaultTitleSimilarity
	}
	return &Deduplicator{similarity: similarity}
}

// survivor is a kept document with its title signature.
type survivor struct {
	doc    domain.Document
	key    string
	tokens map[string]bool
}

// Dedup merges documents sharing an ID or a near-identical title. The first
// occurrence keeps its position, ID and source priority; the richer excerpt
// wins. Running Dedup on its own output is a no-op.
func (d *Deduplicator) Dedup(docs []domain.Document) []domain.Document {
	kept := make([]*survivor, 0, len(docs))
	byID := make(map[string]*survivor, len(docs))
	byKey := make(map[string]*survivor, len(docs))

	for _, doc := range docs {
		if s, ok := byID[doc.ID]; ok {
			merge(s, doc)
			logger.Debug("dedup: %q merged by id into %q", doc.Title, s.doc.Title)
			continue
		}
		key, tokens := titleSignature(doc.Title)
		if s, ok := byKey[key]; ok && key != "" {
			merge(s, doc)
			alias(byID, doc.ID, s)
			logger.Debug("dedup: %q merged by title", doc.Title)
			continue
		}
		if s := d.nearest(kept, tokens); s != nil {
			merge(s, doc)
			alias(byID, doc.ID, s)
			if key != "" {
				alias(byKey, key, s)
			}
			logger.Debug("dedup: %q merged as near duplicate of %q", doc.Title, s.doc.Title)
			continue
		}
		s := &survivor{doc: doc, key: key, tokens: tokens}
		kept = append(kept, s)
		byID[doc.ID] = s
		if key != "" {
			byKey[key] = s
		}
	}

	out := make([]domain.Document, len(kept))
	for i, s := range kept {
		out[i] = s.doc
	}
	return out
}

// alias points a merged document's ID or title key at its survivor so later
// records carrying it fold into the same item.
func alias(index map[string]*survivor, k string, s *survivor) {
	if _, ok := index[k]; !ok && k != "" {
		index[k] = s
	}
}

func (d *Deduplicator) nearest(kept []*survivor, tokens map[string]bool) *survivor {
	if len(tokens) < minTitleTokens {
		return nil
	}
	for _, s := range kept {
		if len(s.tokens) < minTitleTokens {
			continue
		}
		if jaccard(s.tokens, tokens) >= d.similarity {
			return s
		}
	}
	return nil
}

// merge folds other into the survivor without changing its identity.
func merge(s *survivor, other domain.Document) {
	if len([]rune(other.Excerpt)) > len([]rune(s.doc.Excerpt)) {
		s.doc.Excerpt = other.Excerpt
	}
	if s.doc.PublishedAt == nil && other.PublishedAt != nil {
		s.doc.PublishedAt = other.PublishedAt
	}
	if s.doc.DeclaredLanguage == "" {
		s.doc.DeclaredLanguage = other.DeclaredLanguage
	}
	if s.doc.Views == nil && other.Views != nil {
		s.doc.Views = other.Views
	}
}

// titleSignature returns a normalised title key and its token set.
func titleSignature(title string) (string, map[string]bool) {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make(map[string]bool, len(fields))
	for _, f := range fields {
		tokens[f] = true
	}
	return strings.Join(fields, " "), tokens
}

func jaccard(a, b map[string]bool) float64 {
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
