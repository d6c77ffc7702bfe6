package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-digest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// Ensure Resender implements the interface.
var _ driving.DigestResender = (*Resender)(nil)

// Resender delivers archived digests again, for instance after a mail
// outage. It never records history, so a resent digest does not extend the
// cooldown of its items.
type Resender struct {
	archive    driven.DigestArchive
	profiles   map[string]domain.RecipientProfile
	deliverers map[string]driven.Deliverer
}

// NewResender creates a resender over the archive and the configured
// profiles and deliverers.
func NewResender(archive driven.DigestArchive, profiles []domain.RecipientProfile, deliverers []driven.Deliverer) *Resender {
	r := &Resender{
		archive:    archive,
		profiles:   make(map[string]domain.RecipientProfile, len(profiles)),
		deliverers: make(map[string]driven.Deliverer, len(deliverers)),
	}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	for _, d := range deliverers {
		r.deliverers[d.Name()] = d
	}
	return r
}

// Resend delivers the newest archived digest of profileID on channel, or on
// every channel of the profile when channel is empty. Every channel is
// attempted; failures are joined.
func (r *Resender) Resend(ctx context.Context, profileID, channel string) (domain.ArchivedDigest, error) {
	prof, ok := r.profiles[profileID]
	if !ok {
		return domain.ArchivedDigest{}, fmt.Errorf("%w: profile %q", domain.ErrNotFound, profileID)
	}
	targets, err := r.targets(prof, channel)
	if err != nil {
		return domain.ArchivedDigest{}, err
	}

	digest, err := r.archive.Latest(ctx, profileID)
	if err != nil {
		return domain.ArchivedDigest{}, err
	}

	var errs []error
	for _, d := range targets {
		if err := d.Deliver(ctx, prof, digest.Payload); err != nil {
			errs = append(errs, &domain.DeliveryError{ProfileID: profileID, Channel: d.Name(), Err: err})
			continue
		}
		logger.Info("%s: resent digest of run %s via %s", profileID, digest.RunID, d.Name())
	}
	return digest, errors.Join(errs...)
}

func (r *Resender) targets(prof domain.RecipientProfile, channel string) ([]driven.Deliverer, error) {
	names := prof.Channels
	if channel != "" {
		listed := false
		for _, ch := range prof.Channels {
			if ch == channel {
				listed = true
				break
			}
		}
		if !listed {
			return nil, fmt.Errorf("%w: %s is not a channel of %s", domain.ErrUnknownChannel, channel, prof.ID)
		}
		names = []string{channel}
	}

	out := make([]driven.Deliverer, 0, len(names))
	for _, name := range names {
		d, ok := r.deliverers[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownChannel, name)
		}
		out = append(out, d)
	}
	return out, nil
}
