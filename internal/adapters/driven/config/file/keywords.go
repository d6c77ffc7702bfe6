package file

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

//go:embed keywords.toml
var defaultKeywords []byte

// keywordFile mirrors the TOML layout of a keyword table.
type keywordFile struct {
	Version           string   `toml:"version"`
	HardExclude       []string `toml:"hard_exclude"`
	NoisePaths        []string `toml:"noise_paths"`
	Broad             []string `toml:"broad"`
	Downweight        []string `toml:"downweight"`
	DownweightPenalty int      `toml:"downweight_penalty"`
	Theory            []string `toml:"theory"`
	IndustryContext   []string `toml:"industry_context"`
	TheoryPenalty     int      `toml:"theory_penalty"`
	TheoryFloor       int      `toml:"theory_floor"`
	TrustedDomains    []string `toml:"trusted_domains"`

	Combos []struct {
		Name   string   `toml:"name"`
		Brands []string `toml:"brands"`
		Promos []string `toml:"promos"`
	} `toml:"combos"`

	Tiers []struct {
		Name    string   `toml:"name"`
		Weight  int      `toml:"weight"`
		Tag     string   `toml:"tag"`
		Phrases []string `toml:"phrases"`
	} `toml:"tiers"`

	Video struct {
		ShortFormMarkers []string `toml:"short_form_markers"`
		ShortFormPenalty int      `toml:"short_form_penalty"`
		LowViewThreshold int      `toml:"low_view_threshold"`
		LowViewPenalty   int      `toml:"low_view_penalty"`
	} `toml:"video"`
}

// LoadKeywordTable reads a keyword table from path, or the built-in table
// when path is empty. The returned table is validated.
func LoadKeywordTable(path string) (domain.KeywordTable, error) {
	data := defaultKeywords
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return domain.KeywordTable{}, &domain.ConfigError{Field: "keywords_file", Err: err}
		}
	}
	return ParseKeywordTable(data)
}

// ParseKeywordTable decodes and validates a TOML keyword table.
func ParseKeywordTable(data []byte) (domain.KeywordTable, error) {
	var kf keywordFile
	if err := toml.Unmarshal(data, &kf); err != nil {
		return domain.KeywordTable{}, &domain.ConfigError{Field: "keywords", Err: fmt.Errorf("decode: %w", err)}
	}

	table := domain.KeywordTable{
		Version:           kf.Version,
		HardExclude:       kf.HardExclude,
		NoisePaths:        kf.NoisePaths,
		Broad:             kf.Broad,
		Downweight:        kf.Downweight,
		DownweightPenalty: kf.DownweightPenalty,
		Theory:            kf.Theory,
		IndustryContext:   kf.IndustryContext,
		TheoryPenalty:     kf.TheoryPenalty,
		TheoryFloor:       kf.TheoryFloor,
		TrustedDomains:    kf.TrustedDomains,
		Video: domain.VideoRules{
			ShortFormMarkers: kf.Video.ShortFormMarkers,
			ShortFormPenalty: kf.Video.ShortFormPenalty,
			LowViewThreshold: kf.Video.LowViewThreshold,
			LowViewPenalty:   kf.Video.LowViewPenalty,
		},
	}
	for _, c := range kf.Combos {
		table.Combos = append(table.Combos, domain.ComboRule{Name: c.Name, Brands: c.Brands, Promos: c.Promos})
	}
	for _, t := range kf.Tiers {
		tag := t.Tag
		if tag == "" {
			tag = domain.TagGeneral
		}
		table.Tiers = append(table.Tiers, domain.KeywordTier{Name: t.Name, Weight: t.Weight, Tag: tag, Phrases: t.Phrases})
	}

	if err := table.Validate(); err != nil {
		return domain.KeywordTable{}, &domain.ConfigError{Field: "keywords", Err: err}
	}
	return table, nil
}
