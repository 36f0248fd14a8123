package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/cruise-feed-sync/internal/model"
)

// PriceHistoryRepo provides data access to price_snapshots (append-only) and
// price_trends (a rebuildable rollup cache).
type PriceHistoryRepo struct {
	db *sql.DB
}

// NewPriceHistoryRepo returns a new PriceHistoryRepo bound to the provided database.
func NewPriceHistoryRepo(db *sql.DB) *PriceHistoryRepo { return &PriceHistoryRepo{db: db} }

// LatestSnapshotTx returns the most recent snapshot for a cruise, or nil
// when none exists yet.  Runs inside the caller's per-cruise transaction so
// the compare-then-append sequence cannot race another writer.
func (r *PriceHistoryRepo) LatestSnapshotTx(ctx context.Context, tx *sql.Tx, cruiseID uint64) (*model.PriceSnapshot, error) {
	var s model.PriceSnapshot
	err := tx.QueryRowContext(ctx,
		`SELECT id, cruise_id, price_interior, price_oceanview, price_balcony, price_suite,
		        change_interior_pct, change_oceanview_pct, change_balcony_pct, change_suite_pct,
		        source, created_at
		 FROM price_snapshots WHERE cruise_id = ? ORDER BY id DESC LIMIT 1`,
		cruiseID).Scan(&s.ID, &s.CruiseID,
		&s.PriceInterior, &s.PriceOceanview, &s.PriceBalcony, &s.PriceSuite,
		&s.ChangeInteriorPct, &s.ChangeOceanviewPct, &s.ChangeBalconyPct, &s.ChangeSuitePct,
		&s.Source, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// InsertSnapshotTx appends one snapshot row.
func (r *PriceHistoryRepo) InsertSnapshotTx(ctx context.Context, tx *sql.Tx, s *model.PriceSnapshot) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO price_snapshots
		 (cruise_id, price_interior, price_oceanview, price_balcony, price_suite,
		  change_interior_pct, change_oceanview_pct, change_balcony_pct, change_suite_pct, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.CruiseID, s.PriceInterior, s.PriceOceanview, s.PriceBalcony, s.PriceSuite,
		s.ChangeInteriorPct, s.ChangeOceanviewPct, s.ChangeBalconyPct, s.ChangeSuitePct,
		s.Source)
	return err
}

// ListByCruise returns the newest snapshots for one cruise, for the admin
// surface and trend inspection.
func (r *PriceHistoryRepo) ListByCruise(ctx context.Context, cruiseID uint64, limit int) ([]model.PriceSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, cruise_id, price_interior, price_oceanview, price_balcony, price_suite,
		        change_interior_pct, change_oceanview_pct, change_balcony_pct, change_suite_pct,
		        source, created_at
		 FROM price_snapshots WHERE cruise_id = ? ORDER BY id DESC LIMIT ?`,
		cruiseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var snaps []model.PriceSnapshot
	for rows.Next() {
		var s model.PriceSnapshot
		if err := rows.Scan(&s.ID, &s.CruiseID,
			&s.PriceInterior, &s.PriceOceanview, &s.PriceBalcony, &s.PriceSuite,
			&s.ChangeInteriorPct, &s.ChangeOceanviewPct, &s.ChangeBalconyPct, &s.ChangeSuitePct,
			&s.Source, &s.CreatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// trendCabins maps the trend cabin label to its snapshot price column.  The
// column names are fixed constants, never user input.
var trendCabins = map[string]string{
	"interior":  "price_interior",
	"oceanview": "price_oceanview",
	"balcony":   "price_balcony",
	"suite":     "price_suite",
}

// RecomputeTrends rebuilds the per-cruise, per-cabin, per-month rollups from
// the snapshot series.  One aggregate statement per cabin category; upserts
// keep the unique (cruise, cabin, period) rows current.  Called from the
// maintenance job only.
func (r *PriceHistoryRepo) RecomputeTrends(ctx context.Context) error {
	for cabin, col := range trendCabins {
		stmt := fmt.Sprintf(
			`INSERT INTO price_trends (cruise_id, cabin, period, avg_price, min_price, max_price, volatility, samples)
			 SELECT cruise_id, ?, DATE_FORMAT(created_at, '%%Y-%%m'),
			        AVG(%[1]s), MIN(%[1]s), MAX(%[1]s), IFNULL(STDDEV_POP(%[1]s), 0), COUNT(%[1]s)
			 FROM price_snapshots
			 WHERE %[1]s IS NOT NULL
			 GROUP BY cruise_id, DATE_FORMAT(created_at, '%%Y-%%m')
			 ON DUPLICATE KEY UPDATE
			   avg_price = VALUES(avg_price), min_price = VALUES(min_price),
			   max_price = VALUES(max_price), volatility = VALUES(volatility),
			   samples = VALUES(samples)`, col)
		if _, err := r.db.ExecContext(ctx, stmt, cabin); err != nil {
			return fmt.Errorf("recompute %s trends: %w", cabin, err)
		}
	}
	return nil
}
