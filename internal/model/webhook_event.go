package model

import "time"

// Webhook event processing states.  An event moves received -> processing ->
// completed or failed and is never deleted: the table is the audit trail of
// every notification the feed has ever sent us.
const (
	WebhookStatusReceived   = "received"
	WebhookStatusProcessing = "processing"
	WebhookStatusCompleted  = "completed"
	WebhookStatusFailed     = "failed"
)

// WebhookEvent records one inbound change notification from the feed.
// LineID is nil when the external line identifier could not be mapped to an
// internal line; such events are acknowledged and left in "received" forever.
// The counts are filled in by the bulk run that processes the event.
type WebhookEvent struct {
	ID             uint64
	EventID        string // uuid assigned on receipt, used for correlation in logs
	LineExternalID uint64 // line identifier as the feed knows it
	LineID         *uint64
	EventType      string // e.g. "CRUISELINE_PRICES_UPDATED"
	Status         string
	CruisesUpdated uint
	CruisesFailed  uint
	ErrorMessage   *string
	ReceivedAt     time.Time
	ProcessedAt    *time.Time
}
