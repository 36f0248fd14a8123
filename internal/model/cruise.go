package model

import "time"

// Cruise represents one bookable sailing.  The internal ID is distinct from
// the upstream cruise identifier: the feed reuses the same cruise ID across
// several sailing dates, so identity is keyed off FileCode, the per-file
// unique code of the sailing document.
//
// Price fields are nullable: a nil pointer means the cabin category is not
// offered on this sailing.  CheapestPrice is derived and must always equal
// the minimum of the populated category prices (nil only when all four are
// nil).  Prices are mutated exclusively by the sync pipeline.
type Cruise struct {
	ID               uint64     // primary key
	FileCode         string     // upstream per-file unique code, identity of the sailing
	ExternalCruiseID uint64     // upstream cruise id (recurs across sailing dates)
	LineID           uint64     // owning cruise line
	ShipID           uint64     // ship performing the sailing
	Title            string     // itinerary name
	SailDate         time.Time  // departure date
	DurationNights   uint       // length of the sailing in nights
	EmbarkPortID     *uint64    // embarkation port, nil when unknown
	DisembarkPortID  *uint64    // disembarkation port, nil when unknown
	PriceInterior    *float64   // cheapest interior cabin price
	PriceOceanview   *float64   // cheapest ocean-view cabin price
	PriceBalcony     *float64   // cheapest balcony cabin price
	PriceSuite       *float64   // cheapest suite price
	CheapestPrice    *float64   // min of the populated category prices
	Currency         string     // ISO currency code of the prices
	NeedsUpdate      bool       // pending-update flag set by webhook ingestion
	NeedsUpdateAt    *time.Time // when the pending-update flag was last set
	Active           bool       // false once the sailing disappears from the feed or departs
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CheapestOf returns the minimum of the non-nil category prices, or nil when
// all four are nil.  Repositories use it to keep the derived cheapest_price
// column consistent with the category columns on every write.
func CheapestOf(interior, oceanview, balcony, suite *float64) *float64 {
	var min *float64
	for _, p := range []*float64{interior, oceanview, balcony, suite} {
		if p == nil {
			continue
		}
		if min == nil || *p < *min {
			v := *p
			min = &v
		}
	}
	return min
}
