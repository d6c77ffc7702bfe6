package services

import (
	"net/url"
	"strings"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// Ensure Scorer implements the interface.
var _ driving.DocumentExplainer = (*Scorer)(nil)

// Rule name prefixes recorded in score breakdowns.
const (
	RuleHardExclude    = "hard_exclude"
	RuleNoisePath      = "noise_path"
	RuleComboExclude   = "combo_exclude"
	RuleTier           = "tier"
	RuleBroad          = "broad"
	RuleTrustedSource  = "trusted_source"
	RuleDownweight     = "downweight"
	RuleTheoryGate     = "theory_gate"
	RuleTheoryPenalty  = "theory_penalty"
	RuleVideoShortForm = "video_short_form"
	RuleVideoLowViews  = "video_low_views"
)

// Scorer is the lexical relevance scorer. It is a pure function of the
// document and its keyword table; it never performs I/O.
type Scorer struct {
	table     domain.KeywordTable
	threshold int
}

// NewScorer creates a scorer over a validated keyword table. Phrases are
// folded once here so scoring does no per-call normalisation of the table.
func NewScorer(table domain.KeywordTable, passThreshold int) *Scorer {
	folded := domain.KeywordTable{
		Version:           table.Version,
		HardExclude:       foldAll(table.HardExclude),
		NoisePaths:        foldAll(table.NoisePaths),
		Broad:             foldAll(table.Broad),
		Downweight:        foldAll(table.Downweight),
		DownweightPenalty: table.DownweightPenalty,
		Theory:            foldAll(table.Theory),
		IndustryContext:   foldAll(table.IndustryContext),
		TheoryPenalty:     table.TheoryPenalty,
		TheoryFloor:       table.TheoryFloor,
		TrustedDomains:    foldAll(table.TrustedDomains),
		Video: domain.VideoRules{
			ShortFormMarkers: foldAll(table.Video.ShortFormMarkers),
			ShortFormPenalty: table.Video.ShortFormPenalty,
			LowViewThreshold: table.Video.LowViewThreshold,
			LowViewPenalty:   table.Video.LowViewPenalty,
		},
	}
	for _, c := range table.Combos {
		folded.Combos = append(folded.Combos, domain.ComboRule{
			Name:   c.Name,
			Brands: foldAll(c.Brands),
			Promos: foldAll(c.Promos),
		})
	}
	for _, t := range table.Tiers {
		folded.Tiers = append(folded.Tiers, domain.KeywordTier{
			Name:    t.Name,
			Weight:  t.Weight,
			Tag:     t.Tag,
			Phrases: foldAll(t.Phrases),
		})
	}
	return &Scorer{table: folded, threshold: passThreshold}
}

// Threshold returns the pass threshold in use.
func (s *Scorer) Threshold() int {
	return s.threshold
}

// Explain scores one document; the breakdown is the explanation.
func (s *Scorer) Explain(doc domain.Document) domain.ScoredDocument {
	return s.Score(doc)
}

// ScoreAll scores documents in order.
func (s *Scorer) ScoreAll(docs []domain.Document) []domain.ScoredDocument {
	out := make([]domain.ScoredDocument, len(docs))
	for i, d := range docs {
		out[i] = s.Score(d)
		logger.Debug("score %d passed=%t %q %v", out[i].Score, out[i].Passed, d.Title, out[i].Breakdown)
	}
	return out
}

// scoring is the running state of one Score call.
type scoring struct {
	res   domain.ScoredDocument
	score int
	tags  []string
}

func (sc *scoring) apply(rule string, delta int) {
	if delta == 0 {
		return
	}
	sc.score += delta
	sc.res.Breakdown = append(sc.res.Breakdown, domain.ScoreStep{Rule: rule, Delta: delta})
}

func (sc *scoring) terminate(rule string) domain.ScoredDocument {
	sc.res.Breakdown = append(sc.res.Breakdown, domain.ScoreStep{Rule: rule, Delta: -sc.score, Terminal: true})
	sc.res.Score = 0
	sc.res.Passed = false
	sc.res.PersonaTags = nil
	return sc.res
}

func (sc *scoring) tag(t string) {
	if t == "" {
		t = domain.TagGeneral
	}
	for _, have := range sc.tags {
		if have == t {
			return
		}
	}
	sc.tags = append(sc.tags, t)
}

// floorPenalty returns the delta that subtracts penalty without going below floor.
func floorPenalty(score, penalty, floor int) int {
	target := score - penalty
	if target < floor {
		target = floor
	}
	return target - score
}

// Score applies the rules in fixed order. Terminal rules end evaluation.
//
//nolint:gocyclo // Ordered rule evaluation reads best as one function.
func (s *Scorer) Score(doc domain.Document) domain.ScoredDocument {
	t := &s.table
	sc := &scoring{res: domain.ScoredDocument{Document: doc}}
	text := foldText(doc.Title + " " + doc.Excerpt)

	// 1. Hard excludes on text, then noise paths on the URL.
	if p, ok := firstMatch(text, t.HardExclude); ok {
		return sc.terminate(RuleHardExclude + ":" + p)
	}
	path, host := splitURL(doc.URL)
	for _, pattern := range t.NoisePaths {
		if matchPath(path, pattern) {
			return sc.terminate(RuleNoisePath + ":" + pattern)
		}
	}

	// 2. Brand plus promotion.
	for _, combo := range t.Combos {
		brand, okBrand := firstMatch(text, combo.Brands)
		promo, okPromo := firstMatch(text, combo.Promos)
		if okBrand && okPromo {
			return sc.terminate(RuleComboExclude + ":" + brand + "+" + promo)
		}
	}

	// 3. Tiers, or the broad net when nothing matched.
	matched := false
	for _, tier := range t.Tiers {
		for _, p := range tier.Phrases {
			if containsPhrase(text, p) {
				sc.apply(RuleTier+":"+tier.Name+":"+p, tier.Weight)
				sc.tag(tier.Tag)
				matched = true
			}
		}
	}
	if !matched {
		if p, ok := firstMatch(text, t.Broad); ok {
			sc.apply(RuleBroad+":"+p, 1)
			sc.tag(domain.TagGeneral)
		}
	}

	// 4. Trusted sources never score below the threshold.
	if d, ok := trustedDomain(host, t.TrustedDomains); ok && sc.score < s.threshold {
		sc.apply(RuleTrustedSource+":"+d, s.threshold-sc.score)
		sc.tag(domain.TagGeneral)
	}

	// 5. Low-value content.
	if p, ok := firstMatch(text, t.Downweight); ok {
		sc.apply(RuleDownweight+":"+p, floorPenalty(sc.score, t.DownweightPenalty, 0))
	}

	// 6. Theory-only content needs industry context to survive.
	if p, ok := firstMatch(text, t.Theory); ok {
		if _, hasContext := firstMatch(text, t.IndustryContext); !hasContext {
			return sc.terminate(RuleTheoryGate + ":" + p)
		}
		sc.apply(RuleTheoryPenalty+":"+p, floorPenalty(sc.score, t.TheoryPenalty, t.TheoryFloor))
	}

	// 7. Video-specific penalties compound with the above.
	if doc.SourceType == domain.SourceTypeVideo {
		if m, ok := firstMatch(text, t.Video.ShortFormMarkers); ok || strings.Contains(path, "/shorts/") {
			if !ok {
				m = "/shorts/"
			}
			sc.apply(RuleVideoShortForm+":"+m, floorPenalty(sc.score, t.Video.ShortFormPenalty, 0))
		}
		if doc.Views != nil && t.Video.LowViewThreshold > 0 && *doc.Views < t.Video.LowViewThreshold {
			sc.apply(RuleVideoLowViews, floorPenalty(sc.score, t.Video.LowViewPenalty, 0))
		}
	}

	// 8. Verdict.
	if sc.score < 0 {
		sc.score = 0
	}
	sc.res.Score = sc.score
	sc.res.Passed = sc.score >= s.threshold
	sc.res.PersonaTags = sc.tags
	return sc.res
}

// splitURL returns the lower-cased path and host of raw, or empty strings.
func splitURL(raw string) (path, host string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ""
	}
	return strings.ToLower(u.Path), strings.ToLower(u.Hostname())
}

// matchPath reports whether pattern occurs in path ending at a segment boundary.
func matchPath(path, pattern string) bool {
	if pattern == "" || path == "" {
		return false
	}
	for offset := 0; offset < len(path); {
		idx := strings.Index(path[offset:], pattern)
		if idx < 0 {
			return false
		}
		end := offset + idx + len(pattern)
		if end == len(path) || path[end] == '/' || path[end] == '.' {
			return true
		}
		offset += idx + 1
	}
	return false
}

// trustedDomain returns the allowlisted domain host belongs to.
func trustedDomain(host string, domains []string) (string, bool) {
	if host == "" {
		return "", false
	}
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return d, true
		}
	}
	return "", false
}
