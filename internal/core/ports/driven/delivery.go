package driven

import (
	"context"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// Deliverer hands a payload for one profile to an external channel.
// A nil error confirms delivery.
type Deliverer interface {
	// Name is the channel name profiles refer to.
	Name() string

	Deliver(ctx context.Context, profile domain.RecipientProfile, payload domain.DeliveryPayload) error
}

// SourceReader reads scraper output for one configured source.
type SourceReader interface {
	Read(ctx context.Context, source domain.SourceConfig) ([]domain.RawRecord, error)
}
