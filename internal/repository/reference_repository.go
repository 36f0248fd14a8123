package repository

import (
	"context"
	"database/sql"
)

// ReferenceRepo maintains the ships/ports/regions dimension tables.  All
// writes are insert-if-absent so the sync pipeline can call them on every
// document without caring whether the dimension was seen before; rows are
// never deleted by this subsystem.
type ReferenceRepo struct {
	db *sql.DB
}

// NewReferenceRepo returns a new ReferenceRepo bound to the provided database.
func NewReferenceRepo(db *sql.DB) *ReferenceRepo { return &ReferenceRepo{db: db} }

// EnsureShip upserts a ship by (line, external id) and returns its internal
// id.  A non-empty name refreshes the stored name.  Unlike the port/region
// helpers this one runs outside the per-cruise transaction: ships are
// observed during feed discovery, before any cruise row exists, and both
// statements are idempotent on their own.
func (r *ReferenceRepo) EnsureShip(ctx context.Context, lineID, externalID uint64, name string) (uint64, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ships (line_id, external_id, name) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE name = IF(VALUES(name) <> '', VALUES(name), name)`,
		lineID, externalID, name)
	if err != nil {
		return 0, err
	}
	var id uint64
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM ships WHERE line_id = ? AND external_id = ?`,
		lineID, externalID).Scan(&id)
	return id, err
}

// EnsurePortTx upserts a port by external id and returns its internal id.
func (r *ReferenceRepo) EnsurePortTx(ctx context.Context, tx *sql.Tx, externalID uint64, name string) (uint64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ports (external_id, name) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE name = IF(VALUES(name) <> '', VALUES(name), name)`,
		externalID, name)
	if err != nil {
		return 0, err
	}
	var id uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM ports WHERE external_id = ?`, externalID).Scan(&id)
	return id, err
}

// EnsureRegionTx upserts a region by external id and returns its internal id.
func (r *ReferenceRepo) EnsureRegionTx(ctx context.Context, tx *sql.Tx, externalID uint64, name string) (uint64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO regions (external_id, name) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE name = IF(VALUES(name) <> '', VALUES(name), name)`,
		externalID, name)
	if err != nil {
		return 0, err
	}
	var id uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM regions WHERE external_id = ?`, externalID).Scan(&id)
	return id, err
}

// LinkCruiseRegionTx associates a cruise with a region, ignoring duplicates.
func (r *ReferenceRepo) LinkCruiseRegionTx(ctx context.Context, tx *sql.Tx, cruiseID, regionID uint64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO cruise_regions (cruise_id, region_id) VALUES (?, ?)`,
		cruiseID, regionID)
	return err
}
