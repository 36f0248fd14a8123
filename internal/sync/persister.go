package sync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/cruise-feed-sync/internal/extractor"
	"github.com/iliyamo/cruise-feed-sync/internal/repository"
)

// Persister applies one cruise's refreshed document and extracted prices to
// storage.  Implementations must be atomic per cruise: either every effect
// (attribute refresh, price update, snapshot, raw-document archive, pending
// flag clear) commits, or none do.
type Persister interface {
	Apply(ctx context.Context, target repository.SyncTarget, doc extractor.Document, prices extractor.PriceTuple, raw []byte, source string) error
}

// StorePersister is the MySQL Persister.  It opens one transaction per
// cruise and drives the repository Tx methods inside it.
type StorePersister struct {
	db      *sql.DB
	cruises *repository.CruiseRepo
	refs    *repository.ReferenceRepo
	history *repository.PriceHistoryRepo
	rawDocs *repository.RawDocRepo
}

// NewStorePersister constructs a StorePersister over the shared repositories.
func NewStorePersister(db *sql.DB, cruises *repository.CruiseRepo, refs *repository.ReferenceRepo, history *repository.PriceHistoryRepo, rawDocs *repository.RawDocRepo) *StorePersister {
	return &StorePersister{db: db, cruises: cruises, refs: refs, history: history, rawDocs: rawDocs}
}

// Apply persists one refreshed cruise.  On any error the transaction rolls
// back and the pending-update flag stays set, so the next cycle retries the
// cruise.
func (p *StorePersister) Apply(ctx context.Context, target repository.SyncTarget, doc extractor.Document, prices extractor.PriceTuple, raw []byte, source string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	embarkID, disembarkID, err := p.ensurePorts(ctx, tx, doc)
	if err != nil {
		return err
	}
	if err := p.ensureRegions(ctx, tx, target.CruiseID, doc); err != nil {
		return err
	}
	if err := p.cruises.UpdateAttributesTx(ctx, tx, target.CruiseID,
		docString(doc, "name"), uint(docUint(doc, "nights")),
		docDate(doc, "saildate"), docUint(doc, "cruiseid"),
		embarkID, disembarkID); err != nil {
		return fmt.Errorf("update attributes: %w", err)
	}
	if err := p.cruises.UpdatePricesTx(ctx, tx, target.CruiseID,
		prices.Interior, prices.Oceanview, prices.Balcony, prices.Suite,
		docString(doc, "currency")); err != nil {
		return fmt.Errorf("update prices: %w", err)
	}

	prev, err := p.history.LatestSnapshotTx(ctx, tx, target.CruiseID)
	if err != nil {
		return fmt.Errorf("load latest snapshot: %w", err)
	}
	if priceChanged(prev, prices) {
		if err := p.history.InsertSnapshotTx(ctx, tx, buildSnapshot(target.CruiseID, prices, prev, source)); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}

	if len(raw) > 0 {
		if err := p.rawDocs.ArchiveTx(ctx, tx, target.CruiseID, string(raw)); err != nil {
			return fmt.Errorf("archive raw document: %w", err)
		}
	}
	if err := p.cruises.ClearPendingTx(ctx, tx, target.CruiseID); err != nil {
		return fmt.Errorf("clear pending flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// ensurePorts upserts the embark/disembark ports named in the document and
// returns their internal ids (nil when the document omits them).
func (p *StorePersister) ensurePorts(ctx context.Context, tx *sql.Tx, doc extractor.Document) (embark, disembark *uint64, err error) {
	if id := docUint(doc, "startportid"); id != 0 {
		pid, err := p.refs.EnsurePortTx(ctx, tx, id, docString(doc, "startportname"))
		if err != nil {
			return nil, nil, fmt.Errorf("ensure embark port: %w", err)
		}
		embark = &pid
	}
	if id := docUint(doc, "endportid"); id != 0 {
		pid, err := p.refs.EnsurePortTx(ctx, tx, id, docString(doc, "endportname"))
		if err != nil {
			return nil, nil, fmt.Errorf("ensure disembark port: %w", err)
		}
		disembark = &pid
	}
	return embark, disembark, nil
}

// ensureRegions upserts the document's region list and links it to the cruise.
func (p *StorePersister) ensureRegions(ctx context.Context, tx *sql.Tx, cruiseID uint64, doc extractor.Document) error {
	regions, ok := doc["regions"].([]interface{})
	if !ok {
		return nil
	}
	for _, rv := range regions {
		region, ok := rv.(map[string]interface{})
		if !ok {
			continue
		}
		extID := docUint(extractor.Document(region), "id")
		if extID == 0 {
			continue
		}
		rid, err := p.refs.EnsureRegionTx(ctx, tx, extID, docString(extractor.Document(region), "name"))
		if err != nil {
			return fmt.Errorf("ensure region %d: %w", extID, err)
		}
		if err := p.refs.LinkCruiseRegionTx(ctx, tx, cruiseID, rid); err != nil {
			return fmt.Errorf("link region %d: %w", extID, err)
		}
	}
	return nil
}

// docString reads a string field from the document, tolerating absence.
func docString(doc extractor.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

// docDate reads a date field, nil when absent or unparseable.  The feed
// writes dates either bare or with a time component.
func docDate(doc extractor.Document, key string) *time.Time {
	s, _ := doc[key].(string)
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// docUint reads a numeric field that the feed serializes either as a number
// or as a digit string.
func docUint(doc extractor.Document, key string) uint64 {
	switch v := doc[key].(type) {
	case float64:
		if v > 0 {
			return uint64(v)
		}
	case string:
		var n uint64
		for _, c := range v {
			if c < '0' || c > '9' {
				return 0
			}
			n = n*10 + uint64(c-'0')
		}
		return n
	}
	return 0
}
