package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cruise-feed-sync/internal/model"
)

// LineRepo provides data access to the cruise_lines table.  The table is the
// fixed lookup between the feed's external line numbering and internal
// primary keys; webhook ingestion resolves every notification through it.
type LineRepo struct {
	db *sql.DB
}

// NewLineRepo returns a new LineRepo bound to the provided database.
func NewLineRepo(db *sql.DB) *LineRepo { return &LineRepo{db: db} }

// GetByExternalID resolves a feed-assigned line identifier to the internal
// row.  Returns ErrLineNotFound when no mapping exists.
func (r *LineRepo) GetByExternalID(ctx context.Context, externalID uint64) (*model.CruiseLine, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, external_id, name, divide_prices_by_1000, active, created_at
		 FROM cruise_lines WHERE external_id = ?`, externalID))
}

// GetByID fetches a line by its internal primary key.
func (r *LineRepo) GetByID(ctx context.Context, id uint64) (*model.CruiseLine, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, external_id, name, divide_prices_by_1000, active, created_at
		 FROM cruise_lines WHERE id = ?`, id))
}

// ListActive returns every line still being synced, the work list for feed
// discovery.
func (r *LineRepo) ListActive(ctx context.Context) ([]model.CruiseLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, external_id, name, divide_prices_by_1000, active, created_at
		 FROM cruise_lines WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []model.CruiseLine
	for rows.Next() {
		var l model.CruiseLine
		if err := rows.Scan(&l.ID, &l.ExternalID, &l.Name, &l.DividePricesBy1000, &l.Active, &l.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *LineRepo) scanOne(row *sql.Row) (*model.CruiseLine, error) {
	var l model.CruiseLine
	err := row.Scan(&l.ID, &l.ExternalID, &l.Name, &l.DividePricesBy1000, &l.Active, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLineNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}
