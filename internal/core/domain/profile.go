package domain

import "strings"

// RecipientProfile is a named delivery target.
// Profiles are loaded once per run and never modified during it.
type RecipientProfile struct {
	ID       string
	Name     string
	Persona  Persona
	Language string

	// AcceptedTags restricts routing. An empty list makes the profile a
	// catch-all.
	AcceptedTags []string

	MinItems int
	MaxItems int

	// Keywords are affinities used to order equally scored items.
	Keywords []string

	// Channels names the deliverers used for this profile.
	Channels []string

	// Destinations holds a per-channel target keyed by channel name: email
	// addresses, a Notion database, a directory. Channels without an entry
	// use their configured default.
	Destinations map[string]string
}

// Destination returns the profile's target for channel, or "".
func (p RecipientProfile) Destination(channel string) string {
	return p.Destinations[channel]
}

// IsCatchAll reports whether the profile accepts every tag.
func (p RecipientProfile) IsCatchAll() bool {
	return len(p.AcceptedTags) == 0
}

// Accepts reports whether any of the tags is accepted by the profile.
func (p RecipientProfile) Accepts(tags []string) bool {
	for _, want := range p.AcceptedTags {
		for _, have := range tags {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// AcceptsTag reports whether the profile explicitly lists the tag.
func (p RecipientProfile) AcceptsTag(tag string) bool {
	return p.Accepts([]string{tag})
}

// DeliveredItem is one primary item in a payload.
type DeliveredItem struct {
	AnalyzedDocument

	// Backfill marks a repeat re-admitted by the history guard to reach the
	// profile's minimum.
	Backfill bool

	// TopUp marks an item pulled from outside the profile's tags to reach the
	// profile's minimum.
	TopUp bool
}

// DeliveryPayload is what a delivery channel receives for one profile.
type DeliveryPayload struct {
	ProfileID string
	Primary   []DeliveredItem
	Related   []RelatedRef
	Run       RunStats
}

// DocumentIDs returns the IDs of the primary items in order.
func (p DeliveryPayload) DocumentIDs() []string {
	ids := make([]string, len(p.Primary))
	for i, item := range p.Primary {
		ids[i] = item.ID
	}
	return ids
}

// Routing is the router's output: payloads keyed by profile ID plus the
// order in which profiles were filled.
type Routing struct {
	Order    []string
	Payloads map[string]DeliveryPayload
}
