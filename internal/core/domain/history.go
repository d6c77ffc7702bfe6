package domain

import "time"

// DeliveryHistoryEntry records that a document was delivered to a profile.
type DeliveryHistoryEntry struct {
	ProfileID   string
	DocumentID  string
	DeliveredAt time.Time
}

// ArchivedDigest is a delivered payload kept so it can be sent again.
type ArchivedDigest struct {
	ProfileID   string
	RunID       string
	DeliveredAt time.Time
	Payload     DeliveryPayload
}
