package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/iliyamo/cruise-feed-sync/internal/extractor"
	"github.com/iliyamo/cruise-feed-sync/internal/model"
	"github.com/iliyamo/cruise-feed-sync/internal/repository"
)

// A historical serialization bug wrote some raw documents character by
// character: an object keyed "0","1","2",... whose values are the individual
// characters of the original JSON text.  The Reconciler sweeps the archive,
// detects that signature, reassembles the original document, and re-extracts
// prices from it.  It runs as a batch job on demand or on a long interval,
// never inside the ingestion path, and leaves healthy rows untouched — so
// running it twice is a no-op the second time.

type rawDocStore interface {
	ListAfter(ctx context.Context, afterCruiseID uint64, limit int) ([]repository.RawDocRow, error)
	Update(ctx context.Context, cruiseID uint64, doc string) error
}

// ReconcileStats summarizes one sweep.
type ReconcileStats struct {
	Scanned  int
	Repaired int
	Failed   int
}

// Reconciler repairs the documented corruption class in the raw-document
// archive.
type Reconciler struct {
	rawDocs   rawDocStore
	persister Persister
	batchSize int
}

// NewReconciler builds a Reconciler.  batchSize bounds one page of the sweep.
func NewReconciler(rawDocs rawDocStore, persister Persister, batchSize int) *Reconciler {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Reconciler{rawDocs: rawDocs, persister: persister, batchSize: batchSize}
}

// Sweep pages through the whole archive once.
func (r *Reconciler) Sweep(ctx context.Context) (*ReconcileStats, error) {
	stats := &ReconcileStats{}
	var after uint64
	for {
		rows, err := r.rawDocs.ListAfter(ctx, after, r.batchSize)
		if err != nil {
			return stats, fmt.Errorf("list raw documents after %d: %w", after, err)
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			after = row.CruiseID
			stats.Scanned++
			repaired, err := r.repairRow(ctx, row)
			if err != nil {
				log.Printf("reconcile: cruise %d: %v", row.CruiseID, err)
				stats.Failed++
				continue
			}
			if repaired {
				stats.Repaired++
			}
		}
		if len(rows) < r.batchSize {
			break
		}
	}
	log.Printf("reconcile: sweep done: %d scanned, %d repaired, %d failed",
		stats.Scanned, stats.Repaired, stats.Failed)
	return stats, nil
}

// repairRow fixes one archived document if it carries the corruption
// signature; healthy rows pass through untouched.
func (r *Reconciler) repairRow(ctx context.Context, row repository.RawDocRow) (bool, error) {
	fixed, corrupted, err := ReassembleCharIndexed(row.Doc)
	if err != nil {
		return false, err
	}
	if !corrupted {
		return false, nil
	}

	var doc extractor.Document
	if err := json.Unmarshal([]byte(fixed), &doc); err != nil {
		return false, fmt.Errorf("reassembled document does not parse: %w", err)
	}
	if err := r.rawDocs.Update(ctx, row.CruiseID, fixed); err != nil {
		return false, fmt.Errorf("rewrite document: %w", err)
	}

	prices := extractor.AdjustForLine(extractor.Extract(doc), row.DividePricesBy1000)
	target := repository.SyncTarget{CruiseID: row.CruiseID}
	if err := r.persister.Apply(ctx, target, doc, prices, []byte(fixed), model.SnapshotSourceReconcile); err != nil {
		return false, fmt.Errorf("re-apply prices: %w", err)
	}
	return true, nil
}

// ReassembleCharIndexed detects the character-indexed corruption and
// reconstructs the original JSON text.  The signature is strict: a JSON
// object whose keys are a dense run of stringified integers starting at "0"
// and whose values are all single-character strings.  Anything else —
// including an already-repaired document — returns corrupted=false, which is
// what makes the sweep idempotent.
func ReassembleCharIndexed(doc string) (fixed string, corrupted bool, err error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &obj); err != nil {
		// Not even JSON; nothing this sweep can do.
		return "", false, fmt.Errorf("stored document does not parse: %w", err)
	}
	if len(obj) == 0 {
		return "", false, nil
	}

	chars := make([]string, len(obj))
	for k, v := range obj {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil || idx < 0 || idx >= len(obj) {
			return "", false, nil // non-numeric or sparse keys: a healthy document
		}
		s, ok := v.(string)
		if !ok || len([]rune(s)) != 1 {
			return "", false, nil
		}
		chars[idx] = s
	}
	// A duplicate index would leave a hole; treat that as healthy rather
	// than guess.
	for _, c := range chars {
		if c == "" {
			return "", false, nil
		}
	}
	return strings.Join(chars, ""), true, nil
}
