package services

import (
	"sort"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// Selection is the ranker's output.
type Selection struct {
	// Selected is the analysis budget, in rank order.
	Selected []domain.ScoredDocument

	// Overflow is passing documents that were not selected, in rank order,
	// bounded by the overflow cap.
	Overflow []domain.ScoredDocument
}

// Ranker orders passing documents and enforces the per-run quotas.
type Ranker struct {
	overflowCap int
	typeCaps    map[domain.SourceType]int
}

// NewRanker creates a ranker. overflowCap <= 0 keeps every unselected
// document; typeCaps limits selected items per source type.
func NewRanker(overflowCap int, typeCaps map[domain.SourceType]int) *Ranker {
	return &Ranker{overflowCap: overflowCap, typeCaps: typeCaps}
}

// Select sorts by score, then source priority, then recency (undated last),
// keeping discovery order for full ties. The first topN entries that fit the
// source-type caps are selected; topN <= 0 selects everything that fits.
func (r *Ranker) Select(passed []domain.ScoredDocument, topN int) Selection {
	ranked := make([]domain.ScoredDocument, len(passed))
	copy(ranked, passed)
	SortByRank(ranked)

	var sel Selection
	perType := make(map[domain.SourceType]int)
	for _, d := range ranked {
		full := topN > 0 && len(sel.Selected) >= topN
		capped := false
		if limit, ok := r.typeCaps[d.SourceType]; ok && perType[d.SourceType] >= limit {
			capped = true
		}
		if full || capped {
			sel.Overflow = append(sel.Overflow, d)
			continue
		}
		perType[d.SourceType]++
		sel.Selected = append(sel.Selected, d)
	}

	if r.overflowCap > 0 && len(sel.Overflow) > r.overflowCap {
		sel.Overflow = sel.Overflow[:r.overflowCap]
	}
	return sel
}

// SortByRank stable-sorts documents into rank order in place.
func SortByRank(docs []domain.ScoredDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		return rankLess(docs[i], docs[j])
	})
}

func rankLess(a, b domain.ScoredDocument) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.SourcePriority != b.SourcePriority {
		return a.SourcePriority > b.SourcePriority
	}
	switch {
	case a.PublishedAt == nil && b.PublishedAt == nil:
		return false
	case a.PublishedAt == nil:
		return false
	case b.PublishedAt == nil:
		return true
	default:
		return a.PublishedAt.After(*b.PublishedAt)
	}
}

// relatedRefs converts documents into lightweight references.
func relatedRefs(docs []domain.ScoredDocument) []domain.RelatedRef {
	refs := make([]domain.RelatedRef, 0, len(docs))
	for _, d := range docs {
		refs = append(refs, domain.RefOf(d))
	}
	return refs
}
