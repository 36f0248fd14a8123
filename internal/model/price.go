package model

import "time"

// Snapshot sources record what triggered the re-price that produced the
// snapshot.
const (
	SnapshotSourceWebhook   = "webhook"
	SnapshotSourceScheduled = "scheduled"
	SnapshotSourceReconcile = "reconcile"
)

// PriceSnapshot is an immutable point-in-time record of a cruise's four
// category prices.  Snapshots are written only when at least one category
// changed beyond the comparison epsilon, so the table grows with actual
// volatility rather than with polling frequency.  The Change*Pct fields hold
// the percentage change from the previous snapshot (nil when the previous
// value was absent).
type PriceSnapshot struct {
	ID                 uint64
	CruiseID           uint64
	PriceInterior      *float64
	PriceOceanview     *float64
	PriceBalcony       *float64
	PriceSuite         *float64
	ChangeInteriorPct  *float64
	ChangeOceanviewPct *float64
	ChangeBalconyPct   *float64
	ChangeSuitePct     *float64
	Source             string
	CreatedAt          time.Time
}

// PriceTrend is a per-cruise, per-cabin, per-period rollup of the snapshot
// series.  It is a cache: safe to drop and rebuild from price_snapshots at
// any time, and recomputed only by the maintenance job, never in the hot
// ingestion path.
type PriceTrend struct {
	ID         uint64
	CruiseID   uint64
	Cabin      string // interior | oceanview | balcony | suite
	Period     string // calendar month, e.g. "2026-08"
	AvgPrice   float64
	MinPrice   float64
	MaxPrice   float64
	Volatility float64 // population stddev of snapshot prices in the period
	Samples    uint
	UpdatedAt  time.Time
}
