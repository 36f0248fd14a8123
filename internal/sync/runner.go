package sync

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cruise-feed-sync/internal/model"
	"github.com/iliyamo/cruise-feed-sync/internal/repository"
)

// Narrow store interfaces so the orchestration layer can be exercised
// without a database.  The repository types satisfy them.

type lineStore interface {
	GetByID(ctx context.Context, id uint64) (*model.CruiseLine, error)
}

type cruiseStore interface {
	PendingLineIDs(ctx context.Context) ([]uint64, error)
	PendingTargets(ctx context.Context, lineID uint64, limit int) ([]repository.SyncTarget, error)
}

type lockStore interface {
	Acquire(ctx context.Context, lineID uint64, holder string, maxAge time.Duration) error
	Release(ctx context.Context, lineID uint64, holder string) error
}

type eventStore interface {
	MarkProcessing(ctx context.Context, lineID uint64) ([]uint64, error)
	Finalize(ctx context.Context, ids []uint64, status string, updated, failed uint, errMsg *string) error
}

// Runner executes lock-guarded refresh passes for one line at a time.  It is
// the single entry point shared by the inline webhook path, the queue
// consumer and the scheduler, so the at-most-one-concurrent-run-per-line
// invariant has exactly one enforcement site.
type Runner struct {
	lines      lineStore
	cruises    cruiseStore
	locks      lockStore
	events     eventStore
	bulk       *BulkDownloader
	megaBatch  int
	lockMaxAge time.Duration
}

// NewRunner builds a Runner.  megaBatch is the hard ceiling on cruises per
// bulk run; a line with more pending cruises is drained in several bounded
// runs under the same lease.
func NewRunner(lines lineStore, cruises cruiseStore, locks lockStore, events eventStore, bulk *BulkDownloader, megaBatch int, lockMaxAge time.Duration) *Runner {
	if megaBatch <= 0 {
		megaBatch = 500
	}
	return &Runner{
		lines:      lines,
		cruises:    cruises,
		locks:      locks,
		events:     events,
		bulk:       bulk,
		megaBatch:  megaBatch,
		lockMaxAge: lockMaxAge,
	}
}

// RunLine drains the pending-update backlog of one line.  It acquires the
// line's sync lock (returning repository.ErrLockHeld without blocking when
// another run holds it), claims the line's queued webhook events, executes
// bulk runs of at most megaBatch cruises until the backlog is empty, and
// finalizes events and lock on the way out.  Pending flags are cleared
// per-cruise inside the persistence transactions, so only cruises actually
// processed lose their flag.
func (r *Runner) RunLine(ctx context.Context, lineID uint64, source string) (*RunResult, error) {
	holder := uuid.NewString()
	if err := r.locks.Acquire(ctx, lineID, holder, r.lockMaxAge); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.locks.Release(ctx, lineID, holder); err != nil {
			log.Printf("runner: release lock line %d: %v", lineID, err)
		}
	}()

	eventIDs, err := r.events.MarkProcessing(ctx, lineID)
	if err != nil {
		return nil, err
	}

	line, err := r.lines.GetByID(ctx, lineID)
	if err != nil {
		r.finalize(ctx, eventIDs, model.WebhookStatusFailed, &RunResult{}, err)
		return nil, err
	}

	total := &RunResult{}
	for {
		targets, err := r.cruises.PendingTargets(ctx, lineID, r.megaBatch)
		if err != nil {
			r.finalize(ctx, eventIDs, model.WebhookStatusFailed, total, err)
			return total, err
		}
		if len(targets) == 0 {
			break
		}

		res, runErr := r.bulk.Run(ctx, line, targets, source)
		total.Succeeded += res.Succeeded
		total.Failed += res.Failed
		total.Failures = append(total.Failures, res.Failures...)
		if runErr != nil {
			r.finalize(ctx, eventIDs, model.WebhookStatusFailed, total, runErr)
			return total, runErr
		}
		// A short batch means the backlog is drained; a batch that cleared
		// nothing would only return the same failed cruises again.
		if len(targets) < r.megaBatch || res.Succeeded == 0 {
			break
		}
	}

	r.finalize(ctx, eventIDs, model.WebhookStatusCompleted, total, nil)
	return total, nil
}

func (r *Runner) finalize(ctx context.Context, eventIDs []uint64, status string, res *RunResult, runErr error) {
	if len(eventIDs) == 0 {
		return
	}
	var msg *string
	if runErr != nil {
		s := runErr.Error()
		msg = &s
	}
	if err := r.events.Finalize(ctx, eventIDs, status, uint(res.Succeeded), uint(res.Failed), msg); err != nil {
		log.Printf("runner: finalize webhook events: %v", err)
	}
}
