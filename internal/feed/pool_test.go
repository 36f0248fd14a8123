package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeConn scripts Download behaviour per path.
type fakeConn struct {
	download func(path string, maxBytes int64) ([]byte, error)
	closed   atomic.Bool
}

func (f *fakeConn) List(dir string) ([]string, error) { return nil, nil }
func (f *fakeConn) Download(path string, maxBytes int64) ([]byte, error) {
	return f.download(path, maxBytes)
}
func (f *fakeConn) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeDialer counts dials and can be told to fail.
type fakeDialer struct {
	dials    atomic.Int64
	failDial atomic.Bool
	download func(path string, maxBytes int64) ([]byte, error)
}

func (f *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	f.dials.Add(1)
	if f.failDial.Load() {
		return nil, errors.New("connection refused")
	}
	return &fakeConn{download: f.download}, nil
}

func newTestPool(d *fakeDialer, cooldown time.Duration) *Pool {
	return NewPool(d, PoolConfig{
		Size:             2,
		AcquireTimeout:   100 * time.Millisecond,
		MaxFileBytes:     1 << 20,
		BreakerThreshold: 5,
		BreakerCooldown:  cooldown,
	})
}

func TestPool_FetchSuccess(t *testing.T) {
	d := &fakeDialer{download: func(path string, _ int64) ([]byte, error) {
		return []byte(`{"ok":true}`), nil
	}}
	p := newTestPool(d, time.Minute)

	data, err := p.Fetch(context.Background(), "2026/07/22/410/X.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("unexpected payload: %s", data)
	}
	if d.dials.Load() != 1 {
		t.Fatalf("expected one lazy dial, got %d", d.dials.Load())
	}
}

func TestPool_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	d := &fakeDialer{}
	d.failDial.Store(true)
	p := newTestPool(d, time.Minute)

	// Five consecutive connection failures trip the breaker.
	for i := 0; i < 5; i++ {
		if _, err := p.Fetch(context.Background(), "a.json"); err == nil {
			t.Fatalf("fetch %d should fail", i)
		}
	}

	dialsBefore := d.dials.Load()
	_, err := p.Fetch(context.Background(), "a.json")
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected ErrBreakerOpen, got %v", err)
	}
	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("Acquire must fail fast while open, got %v", err)
	}
	if d.dials.Load() != dialsBefore {
		t.Fatalf("open breaker must not contact the feed (dials %d -> %d)", dialsBefore, d.dials.Load())
	}
}

func TestPool_HalfOpenAllowsOneTrialThenCloses(t *testing.T) {
	d := &fakeDialer{download: func(path string, _ int64) ([]byte, error) {
		return []byte(`{}`), nil
	}}
	d.failDial.Store(true)
	p := newTestPool(d, 50*time.Millisecond)

	for i := 0; i < 5; i++ {
		_, _ = p.Fetch(context.Background(), "a.json")
	}
	if _, err := p.Fetch(context.Background(), "a.json"); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("breaker should be open, got %v", err)
	}

	// After the cooldown the remote has recovered; the single trial request
	// succeeds and the breaker closes.
	d.failDial.Store(false)
	time.Sleep(60 * time.Millisecond)
	if _, err := p.Fetch(context.Background(), "a.json"); err != nil {
		t.Fatalf("trial request should succeed: %v", err)
	}
	if _, err := p.Fetch(context.Background(), "a.json"); err != nil {
		t.Fatalf("breaker should be closed again: %v", err)
	}
}

func TestPool_NotFoundDoesNotTripBreaker(t *testing.T) {
	d := &fakeDialer{download: func(path string, _ int64) ([]byte, error) {
		return nil, ErrFileNotFound
	}}
	p := newTestPool(d, time.Minute)

	for i := 0; i < 10; i++ {
		if _, err := p.Fetch(context.Background(), "missing.json"); !errors.Is(err, ErrFileNotFound) {
			t.Fatalf("expected ErrFileNotFound, got %v", err)
		}
	}
	// Still closed: a present connection reporting missing files is healthy.
	if _, err := p.Fetch(context.Background(), "missing.json"); errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("not-found responses must not open the breaker")
	}
}

func TestPool_AcquireTimesOutWhenExhausted(t *testing.T) {
	d := &fakeDialer{download: func(path string, _ int64) ([]byte, error) {
		return []byte(`{}`), nil
	}}
	p := newTestPool(d, time.Minute)

	c1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	c2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}

	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("expected ErrAcquireTimeout on exhausted pool, got %v", err)
	}

	p.Release(c1, true)
	p.Release(c2, true)
	c3, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	p.Release(c3, true)
}

func TestPool_UnhealthyReleaseRedials(t *testing.T) {
	d := &fakeDialer{download: func(path string, _ int64) ([]byte, error) {
		return []byte(`{}`), nil
	}}
	p := newTestPool(d, time.Minute)

	// Warm both slots.
	a, _ := p.Acquire(context.Background())
	b, _ := p.Acquire(context.Background())
	p.Release(a, true)
	p.Release(b, true)
	if d.dials.Load() != 2 {
		t.Fatalf("expected 2 warm-up dials, got %d", d.dials.Load())
	}

	pc, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	conn := pc.Conn.(*fakeConn)
	p.Release(pc, false)
	if !conn.closed.Load() {
		t.Fatalf("unhealthy connection must be closed on release")
	}

	// Draining the pool again should redial only the discarded slot.
	a, _ = p.Acquire(context.Background())
	b, _ = p.Acquire(context.Background())
	if d.dials.Load() != 3 {
		t.Fatalf("expected exactly one redial for the discarded slot, got %d total dials", d.dials.Load())
	}
	p.Release(a, true)
	p.Release(b, true)
}
