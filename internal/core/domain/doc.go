// Package domain defines the core business entities for the digest pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawRecord: an untyped record handed over by a scraper
//   - Document: a normalised item, unique per run after deduplication
//   - ScoredDocument: a Document plus its relevance score and audit trail
//   - AnalyzedDocument: a ScoredDocument plus persona-tagged analysis
//   - RecipientProfile: a named delivery target
//   - DeliveryHistoryEntry: one persisted (profile, document, time) delivery
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
