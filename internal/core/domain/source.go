package domain

import "fmt"

// SourceConfig describes one configured scraper output.
type SourceConfig struct {
	ID   string
	Name string
	Type SourceType

	// Path is the scraper output file (JSON array or JSON Lines).
	Path string

	// URL is the upstream location the scraper reads; informational.
	URL string

	Language string
	Category string

	// Priority is 1 (standard) to 3 (critical).
	Priority int
}

// Validate checks the source configuration.
func (s SourceConfig) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: source id is required", ErrInvalidInput)
	}
	if !s.Type.IsValid() {
		return fmt.Errorf("%w: source %s has unknown type %q", ErrInvalidInput, s.ID, s.Type)
	}
	if s.Path == "" {
		return fmt.Errorf("%w: source %s has no path", ErrInvalidInput, s.ID)
	}
	return nil
}

// DisplayName returns Name, or ID when no name is configured.
func (s SourceConfig) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}
