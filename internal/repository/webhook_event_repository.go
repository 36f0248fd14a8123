package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/cruise-feed-sync/internal/model"
)

// WebhookEventRepo provides data access to the webhook_events audit table.
// Rows are created on receipt and mutated only by the run that processes
// them; nothing ever deletes them.
type WebhookEventRepo struct {
	db *sql.DB
}

// NewWebhookEventRepo returns a new WebhookEventRepo bound to the provided database.
func NewWebhookEventRepo(db *sql.DB) *WebhookEventRepo { return &WebhookEventRepo{db: db} }

// Create persists a freshly received notification and returns its row id.
// lineID is nil for unmapped external identifiers; those rows stay in
// "received" forever as a record of what the feed sent.
func (r *WebhookEventRepo) Create(ctx context.Context, eventID string, lineExternalID uint64, lineID *uint64, eventType string) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_events (event_id, line_external_id, line_id, event_type, status)
		 VALUES (?, ?, ?, ?, 'received')`,
		eventID, lineExternalID, lineID, eventType)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// MarkProcessing flips unfinished events of a line into "processing" and
// returns their row ids so the run can finalize exactly the events it
// claimed.  Several queued notifications for the same line are claimed
// together: one bulk run satisfies all of them.  Select and update run in one
// transaction with the rows locked, so an event arriving mid-claim is left in
// "received" for the next run instead of being flipped without being on the
// returned list.
func (r *WebhookEventRepo) MarkProcessing(ctx context.Context, lineID uint64) ([]uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM webhook_events WHERE line_id = ? AND status = 'received'
		 ORDER BY id FOR UPDATE`,
		lineID)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Update exactly the selected ids, not the line/status predicate again.
	args := make([]interface{}, 0, len(ids))
	placeholders := make([]string, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
		placeholders = append(placeholders, "?")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE webhook_events SET status = 'processing' WHERE id IN (`+strings.Join(placeholders, ",")+`)`,
		args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return ids, nil
}

// Finalize records the outcome of the run for the claimed events.
func (r *WebhookEventRepo) Finalize(ctx context.Context, ids []uint64, status string, updated, failed uint, errMsg *string) error {
	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE webhook_events
			 SET status = ?, cruises_updated = ?, cruises_failed = ?, error_message = ?,
			     processed_at = UTC_TIMESTAMP()
			 WHERE id = ?`,
			status, updated, failed, errMsg, id); err != nil {
			return err
		}
	}
	return nil
}

// GetByEventID fetches one event by its correlation uuid, the id operators
// see in logs.  Returns ErrEventNotFound when no such event exists.
func (r *WebhookEventRepo) GetByEventID(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	var e model.WebhookEvent
	err := r.db.QueryRowContext(ctx,
		`SELECT id, event_id, line_external_id, line_id, event_type, status,
		        cruises_updated, cruises_failed, error_message, received_at, processed_at
		 FROM webhook_events WHERE event_id = ?`, eventID).Scan(
		&e.ID, &e.EventID, &e.LineExternalID, &e.LineID, &e.EventType,
		&e.Status, &e.CruisesUpdated, &e.CruisesFailed, &e.ErrorMessage,
		&e.ReceivedAt, &e.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListRecent returns the newest events for the admin surface.
func (r *WebhookEventRepo) ListRecent(ctx context.Context, limit int) ([]model.WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, line_external_id, line_id, event_type, status,
		        cruises_updated, cruises_failed, error_message, received_at, processed_at
		 FROM webhook_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []model.WebhookEvent
	for rows.Next() {
		var e model.WebhookEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.LineExternalID, &e.LineID, &e.EventType,
			&e.Status, &e.CruisesUpdated, &e.CruisesFailed, &e.ErrorMessage,
			&e.ReceivedAt, &e.ProcessedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
