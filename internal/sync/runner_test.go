package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/cruise-feed-sync/internal/model"
	"github.com/iliyamo/cruise-feed-sync/internal/repository"
)

type fakeLineStore struct {
	line *model.CruiseLine
}

func (f *fakeLineStore) GetByID(ctx context.Context, id uint64) (*model.CruiseLine, error) {
	if f.line == nil || f.line.ID != id {
		return nil, repository.ErrLineNotFound
	}
	return f.line, nil
}

// fakeCruiseStore keeps an in-memory pending set per line and records the
// batch sizes handed out, which is how the tests observe run splitting.
type fakeCruiseStore struct {
	mu         sync.Mutex
	pending    map[uint64][]repository.SyncTarget
	batchSizes []int
}

func (f *fakeCruiseStore) PendingLineIDs(ctx context.Context) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint64
	for id, ts := range f.pending {
		if len(ts) > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeCruiseStore) PendingTargets(ctx context.Context, lineID uint64, limit int) ([]repository.SyncTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.pending[lineID]
	if len(ts) > limit {
		ts = ts[:limit]
	}
	if len(ts) > 0 {
		f.batchSizes = append(f.batchSizes, len(ts))
	}
	out := make([]repository.SyncTarget, len(ts))
	copy(out, ts)
	return out, nil
}

// clear removes a processed cruise from the pending set, mimicking the
// per-cruise flag clear inside the persistence transaction.
func (f *fakeCruiseStore) clear(lineID, cruiseID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.pending[lineID]
	for i, t := range ts {
		if t.CruiseID == cruiseID {
			f.pending[lineID] = append(ts[:i], ts[i+1:]...)
			return
		}
	}
}

type fakeLockStore struct {
	mu       sync.Mutex
	held     map[uint64]string
	acquires int
	releases int
	deny     map[uint64]bool // lines whose lock is "already held elsewhere"
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{held: map[uint64]string{}, deny: map[uint64]bool{}}
}

func (f *fakeLockStore) Acquire(ctx context.Context, lineID uint64, holder string, maxAge time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deny[lineID] {
		return repository.ErrLockHeld
	}
	if _, taken := f.held[lineID]; taken {
		return repository.ErrLockHeld
	}
	f.held[lineID] = holder
	f.acquires++
	return nil
}

func (f *fakeLockStore) Release(ctx context.Context, lineID uint64, holder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[lineID] == holder {
		delete(f.held, lineID)
		f.releases++
	}
	return nil
}

type fakeEventStore struct {
	mu        sync.Mutex
	queued    map[uint64][]uint64 // lineID -> unfinished event ids
	finalized map[uint64]string   // event id -> final status
	updated   uint
	failed    uint
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{queued: map[uint64][]uint64{}, finalized: map[uint64]string{}}
}

func (f *fakeEventStore) MarkProcessing(ctx context.Context, lineID uint64) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.queued[lineID]
	delete(f.queued, lineID)
	return ids, nil
}

func (f *fakeEventStore) Finalize(ctx context.Context, ids []uint64, status string, updated, failed uint, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.finalized[id] = status
	}
	f.updated = updated
	f.failed = failed
	return nil
}

// runnerFixture wires a Runner over in-memory fakes with a working feed.
func runnerFixture(t *testing.T, pendingCount, megaBatch int) (*Runner, *fakeCruiseStore, *fakeLockStore, *fakeEventStore) {
	t.Helper()
	targets := makeTargets(pendingCount)
	fetcher := &fakeFetcher{docs: map[string]string{}, connErr: map[string]bool{}}
	for _, tgt := range targets {
		fetcher.docs[tgt.FileCode] = `{"cheapestinside":"500"}`
	}
	cruises := &fakeCruiseStore{pending: map[uint64][]repository.SyncTarget{22: targets}}
	persister := newFakePersister()
	persister.onApply = func(target repository.SyncTarget) {
		cruises.clear(22, target.CruiseID)
	}
	locks := newFakeLockStore()
	events := newFakeEventStore()
	lines := &fakeLineStore{line: testLine()}
	bulk := NewBulkDownloader(fetcher, persister, 8)
	runner := NewRunner(lines, cruises, locks, events, bulk, megaBatch, 30*time.Minute)
	return runner, cruises, locks, events
}

func TestRunLine_SplitsLargeBacklogIntoBoundedRuns(t *testing.T) {
	runner, cruises, locks, events := runnerFixture(t, 650, 500)
	events.queued[22] = []uint64{101}

	res, err := runner.RunLine(context.Background(), 22, model.SnapshotSourceWebhook)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Succeeded != 650 || res.Failed != 0 {
		t.Fatalf("expected 650/0, got %d/%d", res.Succeeded, res.Failed)
	}
	// 650 pending with a 500 ceiling means exactly two bounded runs.
	if len(cruises.batchSizes) != 2 || cruises.batchSizes[0] != 500 || cruises.batchSizes[1] != 150 {
		t.Fatalf("expected batches [500 150], got %v", cruises.batchSizes)
	}
	if len(cruises.pending[22]) != 0 {
		t.Fatalf("backlog should be drained, %d left", len(cruises.pending[22]))
	}
	if locks.acquires != 1 || locks.releases != 1 {
		t.Fatalf("lock must be acquired and released exactly once, got %d/%d", locks.acquires, locks.releases)
	}
	if events.finalized[101] != model.WebhookStatusCompleted {
		t.Fatalf("event should be completed, got %q", events.finalized[101])
	}
	if events.updated != 650 {
		t.Fatalf("event counts: got %d updated, want 650", events.updated)
	}
}

func TestRunLine_SkipsWhenLockHeld(t *testing.T) {
	runner, _, locks, events := runnerFixture(t, 10, 500)
	locks.deny[22] = true
	events.queued[22] = []uint64{55}

	_, err := runner.RunLine(context.Background(), 22, model.SnapshotSourceScheduled)
	if !errors.Is(err, repository.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
	// The queued event stays claimed by nobody: the holder's run covers it.
	if len(events.finalized) != 0 {
		t.Fatalf("no event should be finalized on a skipped line")
	}
	if _, still := events.queued[22]; !still {
		t.Fatalf("queued events must remain for the lock holder or a later cycle")
	}
}

func TestRunLine_ReleasesLockOnFailure(t *testing.T) {
	runner, cruises, locks, events := runnerFixture(t, 5, 500)
	events.queued[22] = []uint64{9}
	// Unknown line id: GetByID fails after the lock is taken.
	cruises.pending[77] = makeTargets(1)
	_, err := runner.RunLine(context.Background(), 77, model.SnapshotSourceScheduled)
	if err == nil {
		t.Fatalf("expected an error for an unknown line")
	}
	locks.mu.Lock()
	defer locks.mu.Unlock()
	if _, held := locks.held[77]; held {
		t.Fatalf("lock must be released even when the run fails")
	}
}

func TestSchedulerTick_DrainsPendingAndSkipsLocked(t *testing.T) {
	runner, cruises, locks, _ := runnerFixture(t, 20, 500)
	// A second line whose lock is held elsewhere.
	locked := makeTargets(4)
	for i := range locked {
		locked[i].LineID = 23
	}
	cruises.pending[23] = locked
	locks.deny[23] = true

	sched := NewScheduler(runner, cruises, &fakeMaintenance{}, &fakeTrends{}, nil, time.Minute, time.Hour)
	sched.Tick(context.Background())

	if len(cruises.pending[22]) != 0 {
		t.Fatalf("tick should drain line 22, %d left", len(cruises.pending[22]))
	}
	if len(cruises.pending[23]) != 4 {
		t.Fatalf("locked line must keep its backlog for the next cycle, %d left", len(cruises.pending[23]))
	}
}

type fakeMaintenance struct{ calls int }

func (f *fakeMaintenance) DeactivateDeparted(ctx context.Context) (int64, error) {
	f.calls++
	return 3, nil
}

type fakeTrends struct{ calls int }

func (f *fakeTrends) RecomputeTrends(ctx context.Context) error {
	f.calls++
	return nil
}

func TestSchedulerMaintain(t *testing.T) {
	runner, cruises, _, _ := runnerFixture(t, 0, 500)
	m := &fakeMaintenance{}
	tr := &fakeTrends{}
	sched := NewScheduler(runner, cruises, m, tr, nil, time.Minute, time.Hour)
	sched.Maintain(context.Background())
	if m.calls != 1 || tr.calls != 1 {
		t.Fatalf("maintenance pass must sweep departed sailings and recompute trends (%d/%d)", m.calls, tr.calls)
	}
}
