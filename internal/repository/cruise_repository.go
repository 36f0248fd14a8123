package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cruise-feed-sync/internal/model"
)

// SyncTarget is the slice of a cruise row the bulk downloader needs to
// locate and refresh its remote file: identity plus the external line/ship
// identifiers that make up the feed's directory path.
type SyncTarget struct {
	CruiseID       uint64
	FileCode       string
	SailDate       time.Time
	LineID         uint64
	LineExternalID uint64
	ShipExternalID uint64
}

// CruiseRepo provides data access to the cruises table.  The sync pipeline
// is the sole writer of the pricing columns and of the pending-update flag;
// all price mutations go through the ...Tx methods inside one transaction
// per cruise.
type CruiseRepo struct {
	db *sql.DB
}

// NewCruiseRepo returns a new CruiseRepo bound to the provided database.
func NewCruiseRepo(db *sql.DB) *CruiseRepo { return &CruiseRepo{db: db} }

// DB exposes the underlying handle so orchestrators can open transactions
// spanning several repositories.
func (r *CruiseRepo) DB() *sql.DB { return r.db }

// GetByID fetches one cruise row.  Returns ErrCruiseNotFound when the id has
// no row.
func (r *CruiseRepo) GetByID(ctx context.Context, id uint64) (*model.Cruise, error) {
	var c model.Cruise
	err := r.db.QueryRowContext(ctx,
		`SELECT id, file_code, external_cruise_id, line_id, ship_id, title, sail_date,
		        duration_nights, embark_port_id, disembark_port_id,
		        price_interior, price_oceanview, price_balcony, price_suite, cheapest_price,
		        currency, needs_update, needs_update_at, active, created_at, updated_at
		 FROM cruises WHERE id = ?`, id).Scan(
		&c.ID, &c.FileCode, &c.ExternalCruiseID, &c.LineID, &c.ShipID, &c.Title, &c.SailDate,
		&c.DurationNights, &c.EmbarkPortID, &c.DisembarkPortID,
		&c.PriceInterior, &c.PriceOceanview, &c.PriceBalcony, &c.PriceSuite, &c.CheapestPrice,
		&c.Currency, &c.NeedsUpdate, &c.NeedsUpdateAt, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCruiseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertDiscovered creates the row for a sailing first observed in the feed,
// flagged pending so the next bulk run fetches its document.  The feed's own
// file code is the identity, so re-observing a known sailing is a no-op apart
// from reactivating it if it was soft-deleted.  Returns whether a new row was
// created.  The sail date is provisional (directory granularity); the first
// document refresh replaces it with the date inside the file.
func (r *CruiseRepo) UpsertDiscovered(ctx context.Context, fileCode string, lineID, shipID uint64, sailDate time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO cruises (file_code, external_cruise_id, line_id, ship_id, sail_date,
		                      needs_update, needs_update_at, active)
		 VALUES (?, 0, ?, ?, ?, 1, UTC_TIMESTAMP(), 1)
		 ON DUPLICATE KEY UPDATE ship_id = VALUES(ship_id), active = 1`,
		fileCode, lineID, shipID, sailDate)
	if err != nil {
		return false, err
	}
	// MySQL reports 1 affected row for an insert, 2 for an update, 0 for a
	// no-change duplicate.
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkPendingByLine flags every active, future-sailing cruise of a line as
// awaiting refresh and stamps the flag time.  Returns the number of cruises
// flagged, which the webhook handler compares against the inline threshold.
func (r *CruiseRepo) MarkPendingByLine(ctx context.Context, lineID uint64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cruises
		 SET needs_update = 1, needs_update_at = UTC_TIMESTAMP()
		 WHERE line_id = ? AND active = 1 AND sail_date >= UTC_DATE()`,
		lineID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PendingLineIDs returns the distinct lines with outstanding pending-update
// flags, the scheduler's work list.
func (r *CruiseRepo) PendingLineIDs(ctx context.Context) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT line_id FROM cruises WHERE needs_update = 1 AND active = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PendingTargets returns up to limit pending cruises of one line joined with
// the external identifiers needed to build candidate remote paths.  Oldest
// flags first so repeatedly-notified lines still drain in arrival order.
func (r *CruiseRepo) PendingTargets(ctx context.Context, lineID uint64, limit int) ([]SyncTarget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.file_code, c.sail_date, c.line_id, l.external_id, s.external_id
		 FROM cruises c
		 JOIN cruise_lines l ON l.id = c.line_id
		 JOIN ships s ON s.id = c.ship_id
		 WHERE c.line_id = ? AND c.needs_update = 1 AND c.active = 1
		 ORDER BY c.needs_update_at ASC, c.id ASC
		 LIMIT ?`,
		lineID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var targets []SyncTarget
	for rows.Next() {
		var t SyncTarget
		if err := rows.Scan(&t.CruiseID, &t.FileCode, &t.SailDate, &t.LineID, &t.LineExternalID, &t.ShipExternalID); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// CountPendingByLine counts the outstanding pending flags for one line.
func (r *CruiseRepo) CountPendingByLine(ctx context.Context, lineID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cruises WHERE line_id = ? AND needs_update = 1 AND active = 1`,
		lineID).Scan(&n)
	return n, err
}

// UpdatePricesTx writes the four category prices and the derived cheapest
// price for one cruise.  The derived column is always recomputed here so it
// can never drift from the category columns.
func (r *CruiseRepo) UpdatePricesTx(ctx context.Context, tx *sql.Tx, cruiseID uint64, interior, oceanview, balcony, suite *float64, currency string) error {
	cheapest := model.CheapestOf(interior, oceanview, balcony, suite)
	_, err := tx.ExecContext(ctx,
		`UPDATE cruises
		 SET price_interior = ?, price_oceanview = ?, price_balcony = ?, price_suite = ?,
		     cheapest_price = ?, currency = IF(? <> '', ?, currency)
		 WHERE id = ?`,
		interior, oceanview, balcony, suite, cheapest, currency, currency, cruiseID)
	return err
}

// UpdateAttributesTx refreshes the descriptive columns from the latest
// document.  Zero values leave the stored column untouched; in particular a
// nil sailDate keeps the provisional date set at discovery time.
func (r *CruiseRepo) UpdateAttributesTx(ctx context.Context, tx *sql.Tx, cruiseID uint64, title string, durationNights uint, sailDate *time.Time, externalCruiseID uint64, embarkPortID, disembarkPortID *uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE cruises
		 SET title = IF(? <> '', ?, title),
		     duration_nights = IF(? > 0, ?, duration_nights),
		     sail_date = COALESCE(?, sail_date),
		     external_cruise_id = IF(? > 0, ?, external_cruise_id),
		     embark_port_id = COALESCE(?, embark_port_id),
		     disembark_port_id = COALESCE(?, disembark_port_id)
		 WHERE id = ?`,
		title, title, durationNights, durationNights, sailDate,
		externalCruiseID, externalCruiseID, embarkPortID, disembarkPortID, cruiseID)
	return err
}

// ClearPendingTx clears the pending-update flag for one cruise.  Called only
// inside the per-cruise persistence transaction so a flag is never cleared
// for a cruise whose refresh did not commit.
func (r *CruiseRepo) ClearPendingTx(ctx context.Context, tx *sql.Tx, cruiseID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE cruises SET needs_update = 0, needs_update_at = NULL WHERE id = ?`,
		cruiseID)
	return err
}

// DeactivateDeparted soft-deletes cruises whose sailing date has passed.
// Rows are kept (price history references them); they simply stop being
// candidates for refresh.
func (r *CruiseRepo) DeactivateDeparted(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cruises SET active = 0, needs_update = 0, needs_update_at = NULL
		 WHERE active = 1 AND sail_date < UTC_DATE()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
