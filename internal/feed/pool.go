package feed

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// PoolConfig tunes the connection pool and its circuit breaker.
type PoolConfig struct {
	Size             int           // fixed number of pooled connections
	AcquireTimeout   time.Duration // how long Acquire waits for a free slot
	MaxFileBytes     int64         // per-file download ceiling
	BreakerThreshold int           // consecutive connection failures before opening
	BreakerCooldown  time.Duration // open duration before a half-open trial
}

// Pool owns a small fixed set of feed connections shared by every concurrent
// bulk run in the process; it is the single point of backpressure towards
// the remote service.  Connections are dialed lazily and redialed after an
// unhealthy release.  A circuit breaker tracks consecutive connection
// failures across the whole pool: after the threshold it opens and every
// call fails fast with ErrBreakerOpen until the cooldown elapses, then a
// single trial request decides whether it closes again.
type Pool struct {
	dialer  Dialer
	slots   chan *slot
	cfg     PoolConfig
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// slot is one pooled position.  conn is nil until first use and after an
// unhealthy release.
type slot struct {
	conn Conn
}

// PooledConn is a connection checked out of the pool.  It must be returned
// with Release exactly once.
type PooledConn struct {
	Conn Conn
	s    *slot
}

// NewPool builds a Pool over the given dialer.
func NewPool(dialer Dialer, cfg PoolConfig) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 4
	}
	slots := make(chan *slot, cfg.Size)
	for i := 0; i < cfg.Size; i++ {
		slots <- &slot{}
	}
	p := &Pool{dialer: dialer, slots: slots, cfg: cfg}
	p.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "cruise-feed",
		MaxRequests: 1, // half-open admits exactly one trial request
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerThreshold)
		},
		// Only connection-class errors count against the breaker; a missing
		// or oversized file says nothing about the feed's health.
		IsSuccessful: func(err error) bool {
			return err == nil || !isConnErr(err)
		},
	})
	return p
}

// Acquire checks a connection out of the pool, dialing if the slot has no
// live connection yet.  It blocks until a slot frees up, the configured
// acquire timeout passes, or the context is cancelled.  While the breaker is
// open it fails fast with ErrBreakerOpen.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	if p.breaker.State() == gobreaker.StateOpen {
		return nil, ErrBreakerOpen
	}
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case s := <-p.slots:
		if s.conn == nil {
			conn, err := p.dialer.Dial(ctx)
			if err != nil {
				p.slots <- s
				return nil, err
			}
			s.conn = conn
		}
		return &PooledConn{Conn: s.conn, s: s}, nil
	case <-timer.C:
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a connection to the pool.  An unhealthy connection is
// closed and its slot redials on next use.
func (p *Pool) Release(pc *PooledConn, healthy bool) {
	if !healthy && pc.s.conn != nil {
		_ = pc.s.conn.Close()
		pc.s.conn = nil
	}
	p.slots <- pc.s
}

// Fetch downloads one file through the pool under circuit-breaker
// accounting.  This is the path the bulk downloader uses: breaker open maps
// to ErrBreakerOpen, connection failures feed the consecutive-failure count,
// and not-found/too-large pass through untouched.
func (p *Pool) Fetch(ctx context.Context, path string) ([]byte, error) {
	data, err := p.breaker.Execute(func() ([]byte, error) {
		pc, err := p.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		data, err := pc.Conn.Download(path, p.cfg.MaxFileBytes)
		p.Release(pc, !isConnErr(err))
		return data, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrBreakerOpen
	}
	return data, err
}

// List returns the entries of a remote directory through the pool.  Listings
// share the breaker's fail-fast behaviour via Acquire but do not count
// towards its failure tally; discovery walks many directories and a missing
// month is routine.
func (p *Pool) List(ctx context.Context, dir string) ([]string, error) {
	pc, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	names, err := pc.Conn.List(dir)
	p.Release(pc, !isConnErr(err))
	return names, err
}

// isConnErr reports whether an error indicates trouble with the connection
// or the remote service itself, as opposed to a per-file condition or local
// cancellation.
func isConnErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrAcquireTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
