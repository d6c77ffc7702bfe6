package domain

import "time"

// SourceType classifies how a source produces records.
type SourceType string

// Known source types.
const (
	SourceTypeWeb     SourceType = "web"
	SourceTypeRSS     SourceType = "rss"
	SourceTypeDynamic SourceType = "dynamic"
	SourceTypeVideo   SourceType = "video"
)

// IsValid returns true if the source type is recognised.
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypeWeb, SourceTypeRSS, SourceTypeDynamic, SourceTypeVideo:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t SourceType) String() string {
	return string(t)
}

// RawRecord is a single record as produced by a scraper.
// Only Title and URL are required; everything else may be missing.
type RawRecord struct {
	Title       string
	URL         string
	SourceID    string
	Excerpt     string
	PublishedAt *time.Time
	Language    string

	// SourceType overrides the configured source type (e.g. a video feed
	// scraped through an RSS source).
	SourceType SourceType

	// Views is the view count reported for video items, if known.
	Views *int
}

// Document is one scraped item in canonical form.
// It is immutable once created by the normaliser.
type Document struct {
	// ID is a stable hash of the normalised URL (or URL+title).
	ID string

	Title    string
	URL      string
	SourceID string

	// SourceName is the human-readable source name used in deliveries.
	SourceName string

	SourceType SourceType

	// SourcePriority is ordinal; higher means more trusted.
	SourcePriority int

	// PublishedAt is nil when the source did not report a date.
	PublishedAt *time.Time

	// Excerpt is the short plain-text body used for scoring.
	Excerpt string

	DeclaredLanguage string

	// Category is the source's declared category (research, industry, ...).
	Category string

	// Views is the view count for video items, if known.
	Views *int

	// Seq is the discovery order within the run.
	Seq int
}

// ScoreStep is one entry in a score breakdown.
type ScoreStep struct {
	// Rule names the rule and the phrase that fired, e.g. "tier:high:digital twin".
	Rule string

	// Delta is the change applied to the running score.
	Delta int

	// Terminal marks a rule that ended scoring (hard excludes).
	Terminal bool
}

// ScoredDocument is a Document with its relevance decision attached.
// It is never mutated after scoring.
type ScoredDocument struct {
	Document

	// Score is the final relevance score, never negative.
	Score int

	// Breakdown lists every rule that changed the score, in evaluation order.
	Breakdown []ScoreStep

	Passed bool

	// PersonaTags are derived from which keyword tiers matched.
	PersonaTags []string
}

// Excluded reports whether a terminal rule rejected the document.
func (d ScoredDocument) Excluded() bool {
	for _, step := range d.Breakdown {
		if step.Terminal {
			return true
		}
	}
	return false
}

// RelatedRef is a lightweight reference to a passing document that was not
// deep-analysed (or did not fit a profile's payload).
type RelatedRef struct {
	DocumentID string
	Title      string
	URL        string
	SourceName string
	Score      int
}

// RefOf builds a RelatedRef for a scored document.
func RefOf(d ScoredDocument) RelatedRef {
	return RelatedRef{
		DocumentID: d.ID,
		Title:      d.Title,
		URL:        d.URL,
		SourceName: d.SourceName,
		Score:      d.Score,
	}
}
