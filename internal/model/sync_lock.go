package model

import "time"

// Sync lock states.  At most one lock row exists per line, and at most one
// may read "processing" at any time — that row is the lease that keeps two
// bulk runs for the same line from overlapping.
const (
	SyncLockIdle       = "idle"
	SyncLockProcessing = "processing"
)

// SyncLock is a database-backed lease.  Holder identifies the process/run
// that acquired it (a uuid), and AcquiredAt drives force-reclaim: a lock in
// "processing" older than the configured max age is considered abandoned by
// a crashed run and may be taken over.
type SyncLock struct {
	ID         uint64
	LineID     uint64
	Status     string
	Holder     *string
	AcquiredAt *time.Time
}
