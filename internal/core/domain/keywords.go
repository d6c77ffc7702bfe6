package domain

import (
	"fmt"
	"sort"
)

// KeywordTier is a bucket of phrases sharing a score weight.
type KeywordTier struct {
	Name   string
	Weight int

	// Tag is added to a document's persona tags when the tier matches.
	// Empty means TagGeneral.
	Tag string

	Phrases []string
}

// ComboRule excludes a document when a brand phrase and a promotional
// phrase occur together.
type ComboRule struct {
	Name   string
	Brands []string
	Promos []string
}

// VideoRules are additional penalties for video items.
type VideoRules struct {
	ShortFormMarkers []string
	ShortFormPenalty int

	// LowViewThreshold applies LowViewPenalty when the known view count is
	// below it. Zero disables the rule.
	LowViewThreshold int
	LowViewPenalty   int
}

// KeywordTable is the versioned lexicon driving the relevance scorer.
// It is loaded once per run and shared read-only.
type KeywordTable struct {
	Version string

	HardExclude []string
	NoisePaths  []string
	Combos      []ComboRule

	// Tiers are ordered by descending weight.
	Tiers []KeywordTier

	// Broad is the low-confidence net used only when no tier matched.
	Broad []string

	Downweight        []string
	DownweightPenalty int

	Theory          []string
	IndustryContext []string
	TheoryPenalty   int
	TheoryFloor     int

	TrustedDomains []string

	Video VideoRules
}

// Validate checks the table and orders tiers by weight, highest first.
func (t *KeywordTable) Validate() error {
	if t.Version == "" {
		return fmt.Errorf("%w: keyword table has no version", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(t.Tiers))
	for _, tier := range t.Tiers {
		if tier.Name == "" {
			return fmt.Errorf("%w: keyword tier without name", ErrInvalidInput)
		}
		if seen[tier.Name] {
			return fmt.Errorf("%w: duplicate keyword tier %q", ErrInvalidInput, tier.Name)
		}
		seen[tier.Name] = true
		if tier.Weight <= 0 {
			return fmt.Errorf("%w: tier %q weight must be positive", ErrInvalidInput, tier.Name)
		}
	}
	for _, c := range t.Combos {
		if len(c.Brands) == 0 || len(c.Promos) == 0 {
			return fmt.Errorf("%w: combo rule %q needs brands and promos", ErrInvalidInput, c.Name)
		}
	}
	if t.DownweightPenalty < 0 || t.TheoryPenalty < 0 || t.Video.ShortFormPenalty < 0 || t.Video.LowViewPenalty < 0 {
		return fmt.Errorf("%w: penalties must not be negative", ErrInvalidInput)
	}
	sort.SliceStable(t.Tiers, func(i, j int) bool {
		return t.Tiers[i].Weight > t.Tiers[j].Weight
	})
	return nil
}
