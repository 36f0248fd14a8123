package sync

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/cruise-feed-sync/internal/model"
	"github.com/iliyamo/cruise-feed-sync/internal/repository"
)

// maintenanceStore covers the periodic housekeeping the scheduler performs
// alongside backlog draining.
type maintenanceStore interface {
	DeactivateDeparted(ctx context.Context) (int64, error)
}

type trendStore interface {
	RecomputeTrends(ctx context.Context) error
}

// Scheduler periodically drains the pending-update backlog: every tick it
// lists the lines with outstanding flags and hands each to the Runner.
// Lines whose lock is held are skipped, not queued — the next tick retries.
// On a longer interval it also runs maintenance: soft-deleting departed
// sailings and recomputing the price-trend rollups.
type Scheduler struct {
	runner      *Runner
	cruises     cruiseStore
	maintenance maintenanceStore
	trends      trendStore
	discovery   *Discoverer
	interval    time.Duration
	maintEvery  time.Duration
}

// NewScheduler builds a Scheduler.  discovery may be nil to disable the
// feed-directory walk.
func NewScheduler(runner *Runner, cruises cruiseStore, maintenance maintenanceStore, trends trendStore, discovery *Discoverer, interval, maintEvery time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if maintEvery <= 0 {
		maintEvery = 6 * time.Hour
	}
	return &Scheduler{
		runner:      runner,
		cruises:     cruises,
		maintenance: maintenance,
		trends:      trends,
		discovery:   discovery,
		interval:    interval,
		maintEvery:  maintEvery,
	}
}

// Start runs the scheduler loop until the context is cancelled.  Call it in
// its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	tick := time.NewTicker(s.interval)
	maint := time.NewTicker(s.maintEvery)
	defer tick.Stop()
	defer maint.Stop()

	log.Printf("scheduler: started (interval=%s, maintenance=%s)", s.interval, s.maintEvery)
	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler: stopped")
			return
		case <-tick.C:
			s.Tick(ctx)
		case <-maint.C:
			s.Maintain(ctx)
		}
	}
}

// Tick processes every line with an outstanding pending-update flag.  Lock
// contention is a normal skip, never an error.
func (s *Scheduler) Tick(ctx context.Context) {
	lineIDs, err := s.cruises.PendingLineIDs(ctx)
	if err != nil {
		log.Printf("scheduler: list pending lines: %v", err)
		return
	}
	for _, id := range lineIDs {
		res, err := s.runner.RunLine(ctx, id, model.SnapshotSourceScheduled)
		switch {
		case errors.Is(err, repository.ErrLockHeld):
			log.Printf("scheduler: line %d locked, skipping this cycle", id)
		case err != nil:
			log.Printf("scheduler: line %d run aborted: %v", id, err)
		default:
			log.Printf("scheduler: line %d drained: %d ok, %d failed", id, res.Succeeded, res.Failed)
		}
	}
}

// Maintain performs the slow housekeeping pass.  Discovery runs first so
// newly seeded sailings are already flagged pending when the next Tick fires.
func (s *Scheduler) Maintain(ctx context.Context) {
	if s.discovery != nil {
		if _, err := s.discovery.Discover(ctx); err != nil {
			log.Printf("scheduler: feed discovery: %v", err)
		}
	}
	if n, err := s.maintenance.DeactivateDeparted(ctx); err != nil {
		log.Printf("scheduler: deactivate departed sailings: %v", err)
	} else if n > 0 {
		log.Printf("scheduler: deactivated %d departed sailings", n)
	}
	if err := s.trends.RecomputeTrends(ctx); err != nil {
		log.Printf("scheduler: recompute trends: %v", err)
	}
}
