package model

import "time"

// CruiseLine is a cruise operator/brand.  ExternalID is the identifier used
// by the feed (and by webhook notifications); it does not match the internal
// primary key, so webhook ingestion always resolves through this table.
// DividePricesBy1000 marks the one provider whose documents carry prices in
// a mismatched unit; the extractor divides every price for that line.
type CruiseLine struct {
	ID                 uint64
	ExternalID         uint64
	Name               string
	DividePricesBy1000 bool
	Active             bool
	CreatedAt          time.Time
}

// Ship belongs to exactly one line.  The upstream ship id is only unique
// within a line, hence the composite (line, external id) identity.
type Ship struct {
	ID         uint64
	LineID     uint64
	ExternalID uint64
	Name       string
	CreatedAt  time.Time
}

// Port is a reference dimension created on first sighting in the feed and
// never deleted by the sync pipeline.
type Port struct {
	ID         uint64
	ExternalID uint64
	Name       string
}

// Region is a reference dimension; cruises link to regions through the
// cruise_regions join table.
type Region struct {
	ID         uint64
	ExternalID uint64
	Name       string
}
