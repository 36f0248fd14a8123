package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/cruise-feed-sync/internal/feed"
	"github.com/iliyamo/cruise-feed-sync/internal/model"
)

// The feed never announces new sailings; they simply appear as files under
// the YEAR/MONTH/LINE/SHIP directories.  The Discoverer walks those
// directories for every active line and inserts a pending cruise row for
// each file code not seen before, which is how a sailing enters the pipeline:
// the next bulk run downloads its document and fills in the real attributes.

type feedLister interface {
	List(ctx context.Context, dir string) ([]string, error)
}

type discoveryLineStore interface {
	ListActive(ctx context.Context) ([]model.CruiseLine, error)
}

type shipStore interface {
	EnsureShip(ctx context.Context, lineID, externalID uint64, name string) (uint64, error)
}

type sailingStore interface {
	UpsertDiscovered(ctx context.Context, fileCode string, lineID, shipID uint64, sailDate time.Time) (bool, error)
}

// DiscoveryStats summarizes one discovery pass.
type DiscoveryStats struct {
	Lines    int
	Sailings int
	Created  int
}

// Discoverer walks the feed's directory tree and seeds cruise rows for newly
// observed sailings.
type Discoverer struct {
	lister   feedLister
	lines    discoveryLineStore
	ships    shipStore
	sailings sailingStore
	months   int
	now      func() time.Time
}

// NewDiscoverer builds a Discoverer.  months is how many calendar months of
// directories to walk, starting with the current one.
func NewDiscoverer(lister feedLister, lines discoveryLineStore, ships shipStore, sailings sailingStore, months int) *Discoverer {
	if months <= 0 {
		months = 3
	}
	return &Discoverer{lister: lister, lines: lines, ships: ships, sailings: sailings, months: months, now: time.Now}
}

// Discover walks the configured months for every active line.  A feed outage
// (breaker open) aborts the pass; everything else is logged and skipped so
// one bad directory never hides the rest of the feed.
func (d *Discoverer) Discover(ctx context.Context) (*DiscoveryStats, error) {
	lines, err := d.lines.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active lines: %w", err)
	}
	stats := &DiscoveryStats{}
	for i := range lines {
		if err := d.discoverLine(ctx, &lines[i], stats); err != nil {
			return stats, err
		}
		stats.Lines++
	}
	log.Printf("discovery: %d lines walked, %d sailings seen, %d new",
		stats.Lines, stats.Sailings, stats.Created)
	return stats, nil
}

func (d *Discoverer) discoverLine(ctx context.Context, line *model.CruiseLine, stats *DiscoveryStats) error {
	// Anchor on the first of the month: AddDate from day 31 would normalize
	// past short months and skip them.
	now := d.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < d.months; i++ {
		month := start.AddDate(0, i, 0)
		dir := fmt.Sprintf("%d/%02d/%d", month.Year(), int(month.Month()), line.ExternalID)

		ships, err := d.lister.List(ctx, dir)
		if errors.Is(err, feed.ErrFileNotFound) {
			continue // the line has nothing in this month
		}
		if errors.Is(err, feed.ErrBreakerOpen) {
			return err
		}
		if err != nil {
			log.Printf("discovery: list %s: %v", dir, err)
			continue
		}

		for _, entry := range ships {
			shipExt, err := strconv.ParseUint(entry, 10, 64)
			if err != nil {
				continue // stray file among the ship directories
			}
			if err := d.discoverShip(ctx, line, dir, shipExt, month, stats); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Discoverer) discoverShip(ctx context.Context, line *model.CruiseLine, monthDir string, shipExt uint64, month time.Time, stats *DiscoveryStats) error {
	dir := fmt.Sprintf("%s/%d", monthDir, shipExt)
	files, err := d.lister.List(ctx, dir)
	if errors.Is(err, feed.ErrBreakerOpen) {
		return err
	}
	if err != nil {
		log.Printf("discovery: list %s: %v", dir, err)
		return nil
	}

	shipID, err := d.ships.EnsureShip(ctx, line.ID, shipExt, "")
	if err != nil {
		log.Printf("discovery: ensure ship %d of line %d: %v", shipExt, line.ID, err)
		return nil
	}

	// The directory only tells us the sailing month; the first document
	// refresh overwrites this with the date inside the file.
	provisional := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	for _, name := range files {
		code, ok := strings.CutSuffix(name, ".json")
		if !ok || code == "" {
			continue
		}
		stats.Sailings++
		created, err := d.sailings.UpsertDiscovered(ctx, code, line.ID, shipID, provisional)
		if err != nil {
			log.Printf("discovery: upsert sailing %s: %v", code, err)
			continue
		}
		if created {
			stats.Created++
		}
	}
	return nil
}
