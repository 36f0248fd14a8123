// Package sync implements the webhook-driven incremental synchronization
// pipeline: bulk refresh runs over the feed connection pool, per-cruise
// transactional persistence with price-history recording, the periodic
// scheduler that drains the pending-update backlog under per-line locks, and
// the reconciliation sweep for a known storage corruption.
package sync

import (
	"math"

	"github.com/iliyamo/cruise-feed-sync/internal/extractor"
	"github.com/iliyamo/cruise-feed-sync/internal/model"
)

// priceEpsilon is the threshold below which two prices are considered equal.
// Snapshots represent changes; sub-cent jitter is not a change.
const priceEpsilon = 0.01

// priceChanged reports whether any category of the new tuple differs from
// the previous snapshot beyond the epsilon.  A nil previous snapshot always
// counts as changed so the first observation of a cruise is recorded.
func priceChanged(prev *model.PriceSnapshot, t extractor.PriceTuple) bool {
	if prev == nil {
		return true
	}
	return categoryChanged(prev.PriceInterior, t.Interior) ||
		categoryChanged(prev.PriceOceanview, t.Oceanview) ||
		categoryChanged(prev.PriceBalcony, t.Balcony) ||
		categoryChanged(prev.PriceSuite, t.Suite)
}

func categoryChanged(old, new *float64) bool {
	if old == nil && new == nil {
		return false
	}
	if old == nil || new == nil {
		return true
	}
	return math.Abs(*old-*new) > priceEpsilon
}

// pctChange returns the percentage change from old to new, or nil when
// either side is absent or the old price is zero.
func pctChange(old, new *float64) *float64 {
	if old == nil || new == nil || *old == 0 {
		return nil
	}
	pct := (*new - *old) / *old * 100
	return &pct
}

// buildSnapshot assembles the snapshot row for a detected change, computing
// the per-category percentage change against the previous snapshot.
func buildSnapshot(cruiseID uint64, t extractor.PriceTuple, prev *model.PriceSnapshot, source string) *model.PriceSnapshot {
	s := &model.PriceSnapshot{
		CruiseID:       cruiseID,
		PriceInterior:  t.Interior,
		PriceOceanview: t.Oceanview,
		PriceBalcony:   t.Balcony,
		PriceSuite:     t.Suite,
		Source:         source,
	}
	if prev != nil {
		s.ChangeInteriorPct = pctChange(prev.PriceInterior, t.Interior)
		s.ChangeOceanviewPct = pctChange(prev.PriceOceanview, t.Oceanview)
		s.ChangeBalconyPct = pctChange(prev.PriceBalcony, t.Balcony)
		s.ChangeSuitePct = pctChange(prev.PriceSuite, t.Suite)
	}
	return s
}
