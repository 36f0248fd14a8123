// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// webhook handler and the sync pipeline to distinguish between failure
// scenarios with errors.Is instead of string matching.
package repository

import "errors"

// ErrLineNotFound is returned when an external line identifier has no
// mapping in cruise_lines. Webhook ingestion treats this as a no-op
// acknowledgment, never as a caller-visible error.
var ErrLineNotFound = errors.New("cruise line not found")

// ErrCruiseNotFound is returned when a cruise row does not exist.
var ErrCruiseNotFound = errors.New("cruise not found")

// ErrLockHeld is returned when a sync lock for a line is already in
// "processing" state and younger than the max age. It is a normal
// skip-and-retry-later condition, not a failure.
var ErrLockHeld = errors.New("sync lock held")

// ErrEventNotFound is returned when a webhook event row does not exist.
var ErrEventNotFound = errors.New("webhook event not found")
