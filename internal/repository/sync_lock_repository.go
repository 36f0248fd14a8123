package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cruise-feed-sync/internal/model"
)

// SyncLockRepo implements the per-line lease that keeps two bulk runs for
// the same line from overlapping.  The lease lives in a database row rather
// than a language-level mutex because the holder may be another process —
// or a crashed one, which is why acquisition can reclaim a lock whose
// acquired_at exceeds the max age.
type SyncLockRepo struct {
	db *sql.DB
}

// NewSyncLockRepo returns a new SyncLockRepo bound to the provided database.
func NewSyncLockRepo(db *sql.DB) *SyncLockRepo { return &SyncLockRepo{db: db} }

// Acquire attempts the atomic idle -> processing transition for a line.
// The holder is an opaque id (a uuid per run) recorded for diagnostics and
// required again on Release.  A lock already in "processing" is taken over
// only when it is older than maxAge; otherwise ErrLockHeld is returned and
// the caller skips the line this cycle.  Acquire never blocks.
func (r *SyncLockRepo) Acquire(ctx context.Context, lineID uint64, holder string, maxAge time.Duration) error {
	// Make sure the row exists; INSERT IGNORE keeps this idempotent under races.
	if _, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO sync_locks (line_id, status) VALUES (?, 'idle')`, lineID); err != nil {
		return err
	}
	// A single conditional UPDATE is the atomic transition: only one
	// concurrent caller can move the row out of idle (or off a stale holder).
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_locks
		 SET status = 'processing', holder = ?, acquired_at = UTC_TIMESTAMP()
		 WHERE line_id = ?
		   AND (status = 'idle' OR acquired_at < (UTC_TIMESTAMP() - INTERVAL ? SECOND))`,
		holder, lineID, int64(maxAge.Seconds()))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockHeld
	}
	return nil
}

// Release moves the lock back to idle.  The holder must match so a run whose
// lock was force-reclaimed cannot release the new holder's lease.
func (r *SyncLockRepo) Release(ctx context.Context, lineID uint64, holder string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_locks SET status = 'idle', holder = NULL, acquired_at = NULL
		 WHERE line_id = ? AND holder = ?`,
		lineID, holder)
	return err
}

// List returns every lock row for operational visibility.
func (r *SyncLockRepo) List(ctx context.Context) ([]model.SyncLock, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, line_id, status, holder, acquired_at FROM sync_locks ORDER BY line_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var locks []model.SyncLock
	for rows.Next() {
		var l model.SyncLock
		if err := rows.Scan(&l.ID, &l.LineID, &l.Status, &l.Holder, &l.AcquiredAt); err != nil {
			return nil, err
		}
		locks = append(locks, l)
	}
	return locks, rows.Err()
}
