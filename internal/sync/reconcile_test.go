package sync

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/iliyamo/cruise-feed-sync/internal/repository"
)

// charIndex corrupts a document the way the historical bug did: one key per
// character of the original text.
func charIndex(t *testing.T, original string) string {
	t.Helper()
	obj := make(map[string]string, len(original))
	for i, r := range []rune(original) {
		obj[strconv.Itoa(i)] = string(r)
	}
	b, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal corrupted doc: %v", err)
	}
	return string(b)
}

func TestReassembleCharIndexed(t *testing.T) {
	original := `{"cheapestinside":"512.50","name":"Fjords Ålesund"}`

	fixed, corrupted, err := ReassembleCharIndexed(charIndex(t, original))
	if err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	if !corrupted {
		t.Fatalf("corruption signature not detected")
	}
	if fixed != original {
		t.Fatalf("reassembled %q, want %q", fixed, original)
	}

	// A healthy document must pass through untouched.
	_, corrupted, err = ReassembleCharIndexed(original)
	if err != nil || corrupted {
		t.Fatalf("healthy document flagged: corrupted=%v err=%v", corrupted, err)
	}
}

func TestReassembleCharIndexed_RejectsLookalikes(t *testing.T) {
	cases := map[string]string{
		"sparse keys":        `{"0":"a","2":"b"}`,
		"multi-char values":  `{"0":"ab","1":"c"}`,
		"non-string values":  `{"0":1,"1":2}`,
		"mixed numeric keys": `{"0":"a","x":"b"}`,
		"empty object":       `{}`,
	}
	for name, doc := range cases {
		if _, corrupted, err := ReassembleCharIndexed(doc); err != nil || corrupted {
			t.Errorf("%s: corrupted=%v err=%v, want healthy", name, corrupted, err)
		}
	}
	if _, _, err := ReassembleCharIndexed("not json"); err == nil {
		t.Errorf("unparseable document should report an error")
	}
}

type fakeRawDocStore struct {
	rows    []repository.RawDocRow
	updates map[uint64]string
}

func (f *fakeRawDocStore) ListAfter(ctx context.Context, afterCruiseID uint64, limit int) ([]repository.RawDocRow, error) {
	var out []repository.RawDocRow
	for _, r := range f.rows {
		if r.CruiseID > afterCruiseID {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRawDocStore) Update(ctx context.Context, cruiseID uint64, doc string) error {
	if f.updates == nil {
		f.updates = map[uint64]string{}
	}
	f.updates[cruiseID] = doc
	for i := range f.rows {
		if f.rows[i].CruiseID == cruiseID {
			f.rows[i].Doc = doc
		}
	}
	return nil
}

func TestReconcilerSweep(t *testing.T) {
	healthy := `{"cheapestinside":"300","cheapestsuite":"1200"}`
	broken := `{"cheapestbalcony":"845000"}`
	store := &fakeRawDocStore{rows: []repository.RawDocRow{
		{CruiseID: 1, Doc: healthy},
		{CruiseID: 2, Doc: charIndex(t, broken), DividePricesBy1000: true},
		{CruiseID: 3, Doc: healthy},
	}}
	persister := newFakePersister()
	rec := NewReconciler(store, persister, 2) // small page to exercise pagination

	stats, err := rec.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Scanned != 3 || stats.Repaired != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want 3 scanned / 1 repaired / 0 failed", *stats)
	}
	if store.updates[2] != broken {
		t.Fatalf("cruise 2 rewritten as %q, want %q", store.updates[2], broken)
	}
	if _, touched := store.updates[1]; touched {
		t.Fatalf("healthy row must not be rewritten")
	}
	if len(persister.applied) != 1 || persister.applied[0].CruiseID != 2 {
		t.Fatalf("exactly the repaired cruise must be re-applied, got %v", persister.applied)
	}
	// The line's per-mille flag applies on the reconcile path too.
	got := persister.prices[2]
	if got.Balcony == nil || *got.Balcony != 845 {
		t.Fatalf("balcony price = %v, want 845 after unit correction", got.Balcony)
	}

	// A second sweep over the repaired archive changes nothing.
	stats, err = rec.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if stats.Repaired != 0 || stats.Failed != 0 {
		t.Fatalf("second sweep must be a no-op, got %+v", *stats)
	}
	if len(persister.applied) != 1 {
		t.Fatalf("second sweep re-applied prices: %v", persister.applied)
	}
}

func TestReconcilerSweep_CountsUnparseableRows(t *testing.T) {
	store := &fakeRawDocStore{rows: []repository.RawDocRow{
		{CruiseID: 1, Doc: "garbage"},
	}}
	rec := NewReconciler(store, newFakePersister(), 50)
	stats, err := rec.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.Failed != 1 || stats.Repaired != 0 {
		t.Fatalf("stats = %+v, want the garbage row counted as failed", *stats)
	}
}
