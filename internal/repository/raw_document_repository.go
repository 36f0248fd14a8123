package repository

import (
	"context"
	"database/sql"
)

// RawDocRow is one archived feed document, joined with the owning line's
// unit-correction flag so re-extraction can apply it without extra lookups.
type RawDocRow struct {
	CruiseID           uint64
	Doc                string
	DividePricesBy1000 bool
}

// RawDocRepo stores the latest raw feed document per cruise.  The archive
// exists so prices can be re-extracted without a feed round-trip and so the
// reconciliation sweep has something to repair.
type RawDocRepo struct {
	db *sql.DB
}

// NewRawDocRepo returns a new RawDocRepo bound to the provided database.
func NewRawDocRepo(db *sql.DB) *RawDocRepo { return &RawDocRepo{db: db} }

// ArchiveTx replaces the stored document for a cruise inside the caller's
// transaction.
func (r *RawDocRepo) ArchiveTx(ctx context.Context, tx *sql.Tx, cruiseID uint64, doc string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO cruise_raw_documents (cruise_id, doc) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE doc = VALUES(doc)`,
		cruiseID, doc)
	return err
}

// ListAfter pages through the archive in cruise-id order.  The reconciler
// sweeps with it in bounded batches.
func (r *RawDocRepo) ListAfter(ctx context.Context, afterCruiseID uint64, limit int) ([]RawDocRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rd.cruise_id, rd.doc, l.divide_prices_by_1000
		 FROM cruise_raw_documents rd
		 JOIN cruises c ON c.id = rd.cruise_id
		 JOIN cruise_lines l ON l.id = c.line_id
		 WHERE rd.cruise_id > ? ORDER BY rd.cruise_id ASC LIMIT ?`,
		afterCruiseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []RawDocRow
	for rows.Next() {
		var d RawDocRow
		if err := rows.Scan(&d.CruiseID, &d.Doc, &d.DividePricesBy1000); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Update overwrites the stored document for a cruise.  Used by the
// reconciler after reconstructing a corrupted row.
func (r *RawDocRepo) Update(ctx context.Context, cruiseID uint64, doc string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE cruise_raw_documents SET doc = ? WHERE cruise_id = ?`,
		doc, cruiseID)
	return err
}
