package database

import (
	"strings"
	"testing"
)

func TestDSN(t *testing.T) {
	got := dsn("app", "s3cret", "db.internal", "3306", "cruises")
	want := "app:s3cret@tcp(db.internal:3306)/cruises?charset=utf8mb4&parseTime=true&loc=UTC"
	if got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
}

func TestDSN_EmptyPasswordOmitsColon(t *testing.T) {
	got := dsn("app", "", "localhost", "3306", "cruises")
	if strings.Contains(got, ":@") {
		t.Fatalf("empty password must not leave a dangling colon: %q", got)
	}
	if !strings.HasPrefix(got, "app@tcp(") {
		t.Fatalf("unexpected auth segment: %q", got)
	}
}

func TestDSN_TimeHandlingParams(t *testing.T) {
	got := dsn("u", "p", "h", "3306", "d")
	// Dropping either of these silently breaks every DATETIME scan and the
	// UTC-based schedule comparisons, so pin them.
	for _, param := range []string{"parseTime=true", "loc=UTC"} {
		if !strings.Contains(got, param) {
			t.Errorf("dsn missing %s: %q", param, got)
		}
	}
}
