package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// testKeywordTable is a small table mirroring the shape of the shipped one.
func testKeywordTable() domain.KeywordTable {
	table := domain.KeywordTable{
		Version:     "test-1",
		HardExclude: []string{"Webinar", "Stellenangebot", "Pressekontakt"},
		NoisePaths:  []string{"/presse/kontakt", "/press-contact", "/impressum"},
		Combos: []domain.ComboRule{
			{Name: "brand-promo", Brands: []string{"Siemens", "NVIDIA"}, Promos: []string{"sponsored", "Anzeige"}},
		},
		Tiers: []domain.KeywordTier{
			{Name: "medium", Weight: 1, Phrases: []string{"Smart Factory", "Predictive Maintenance", "Siemens", "Industrie 4.0"}},
			{Name: "high", Weight: 2, Phrases: []string{"Digital Twin", "Discrete Event Simulation", "Ablaufsimulation"}},
			{Name: "technician", Weight: 3, Tag: domain.TagTechnician, Phrases: []string{"SPS", "OEE", "TIA Portal"}},
		},
		Broad:             []string{"simulation", "automation", "robotics"},
		Downweight:        []string{"tutorial", "visit our booth"},
		DownweightPenalty: 1,
		Theory:            []string{"literature review", "human resources"},
		IndustryContext:   []string{"manufacturing", "factory floor", "production line"},
		TheoryPenalty:     1,
		TheoryFloor:       1,
		TrustedDomains:    []string{"dfki.de", "plattform-i40.de"},
		Video: domain.VideoRules{
			ShortFormMarkers: []string{"#shorts"},
			ShortFormPenalty: 1,
			LowViewThreshold: 1000,
			LowViewPenalty:   1,
		},
	}
	if err := table.Validate(); err != nil {
		panic(err)
	}
	return table
}

// doc builds a document with a deterministic ID.
func doc(id, title string) domain.Document {
	return domain.Document{
		ID:             id,
		Title:          title,
		URL:            "https://example.com/" + id,
		SourceID:       "src",
		SourceName:     "Example",
		SourceType:     domain.SourceTypeWeb,
		SourcePriority: 1,
	}
}

// scored builds a passing scored document.
func scored(id string, score, priority int, published *time.Time) domain.ScoredDocument {
	d := doc(id, fmt.Sprintf("Item %s", id))
	d.SourcePriority = priority
	d.PublishedAt = published
	return domain.ScoredDocument{Document: d, Score: score, Passed: true, PersonaTags: []string{domain.TagGeneral}}
}

func at(day int) *time.Time {
	t := time.Date(2026, 3, day, 8, 0, 0, 0, time.UTC)
	return &t
}

// analyzed wraps a scored document with a filled analysis.
func analyzed(sd domain.ScoredDocument, category string) domain.AnalyzedDocument {
	a := domain.Analysis{CategoryTag: category}
	a.FillDefaults(sd)
	return domain.AnalyzedDocument{ScoredDocument: sd, Analysis: a}
}
