// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns queued change notifications into
// bulk refresh runs.
package queue

// LineChangedEvent is published when a webhook notification affects more
// cruises than the inline threshold allows processing synchronously.  It
// carries enough information for the consumer to run the refresh without
// re-reading the webhook payload.
type LineChangedEvent struct {
	EventID        string `json:"event_id"`
	LineID         uint64 `json:"line_id"`
	LineExternalID uint64 `json:"line_external_id"`
	EventType      string `json:"event_type"`
	CruiseCount    int64  `json:"cruise_count"`
	ReceivedAt     string `json:"received_at"`
}
