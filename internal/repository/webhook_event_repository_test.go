package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestMarkProcessing_ClaimsInsideOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM webhook_events WHERE line_id = \? AND status = 'received'\s+ORDER BY id FOR UPDATE`).
		WithArgs(uint64(22)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5).AddRow(9))
	// The update targets the claimed ids, not the line/status predicate:
	// an event inserted between the two statements must stay 'received'.
	mock.ExpectExec(`UPDATE webhook_events SET status = 'processing' WHERE id IN \(\?,\?\)`).
		WithArgs(uint64(5), uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	repo := NewWebhookEventRepo(db)
	ids, err := repo.MarkProcessing(context.Background(), 22)
	if err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if len(ids) != 2 || ids[0] != 5 || ids[1] != 9 {
		t.Fatalf("claimed ids = %v, want [5 9]", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkProcessing_NothingQueuedReleasesTheLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM webhook_events`).
		WithArgs(uint64(22)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	repo := NewWebhookEventRepo(db)
	ids, err := repo.MarkProcessing(context.Background(), 22)
	if err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if ids != nil {
		t.Fatalf("claimed ids = %v, want none", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
