// Package feed talks to the upstream cruise feed: a plain FTP file store
// holding one JSON document per sailing under a date-keyed directory layout.
// Client dials and authenticates single connections; Pool owns a small fixed
// set of them and guards the remote service with a circuit breaker.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"time"

	"github.com/jlaffaye/ftp"
)

// Sentinel errors surfaced by the feed layer.  Callers use errors.Is; the
// bulk downloader treats not-found and too-large as per-file failures while
// ErrBreakerOpen aborts the whole run.
var (
	// ErrFileNotFound means the remote path does not exist.  Expected during
	// candidate-path probing; never counted as a connection failure.
	ErrFileNotFound = errors.New("feed: file not found")
	// ErrFileTooLarge means the download exceeded the configured size ceiling.
	// Treated as an extraction failure, not retried within the run.
	ErrFileTooLarge = errors.New("feed: file exceeds size limit")
	// ErrBreakerOpen means the circuit breaker is open and the feed is not
	// being contacted until the cooldown elapses.
	ErrBreakerOpen = errors.New("feed: circuit breaker open")
	// ErrAcquireTimeout means no pooled connection became free in time.
	ErrAcquireTimeout = errors.New("feed: timed out acquiring connection")
)

// Conn is one live, authenticated feed connection.
type Conn interface {
	// List returns the file names in a remote directory.
	List(dir string) ([]string, error)
	// Download retrieves one file, refusing to read past maxBytes.
	Download(path string, maxBytes int64) ([]byte, error)
	// Close terminates the connection.
	Close() error
}

// Dialer opens new feed connections.  Client is the production
// implementation; tests substitute fakes.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Client dials FTP connections to the feed.  It is stateless: every Dial
// returns an independent connection, so one Client is shared process-wide.
type Client struct {
	addr    string
	user    string
	pass    string
	timeout time.Duration
}

// NewClient builds a Client for the given FTP endpoint.
func NewClient(host, port, user, pass string, timeout time.Duration) *Client {
	return &Client{
		addr:    fmt.Sprintf("%s:%s", host, port),
		user:    user,
		pass:    pass,
		timeout: timeout,
	}
}

// Dial opens and authenticates one connection.
func (c *Client) Dial(ctx context.Context) (Conn, error) {
	sc, err := ftp.Dial(c.addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(c.timeout))
	if err != nil {
		return nil, fmt.Errorf("feed dial %s: %w", c.addr, err)
	}
	if err := sc.Login(c.user, c.pass); err != nil {
		_ = sc.Quit()
		return nil, fmt.Errorf("feed login: %w", err)
	}
	return &ftpConn{sc: sc}, nil
}

// ftpConn adapts *ftp.ServerConn to the Conn interface.
type ftpConn struct {
	sc *ftp.ServerConn
}

func (f *ftpConn) List(dir string) ([]string, error) {
	entries, err := f.sc.List(dir)
	if err != nil {
		return nil, mapFTPErr(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

func (f *ftpConn) Download(path string, maxBytes int64) ([]byte, error) {
	resp, err := f.sc.Retr(path)
	if err != nil {
		return nil, mapFTPErr(err)
	}
	defer resp.Close()

	// Read one byte past the ceiling so oversize files are detected without
	// buffering them whole.
	data, err := io.ReadAll(io.LimitReader(resp, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("feed read %s: %w", path, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, path)
	}
	return data, nil
}

func (f *ftpConn) Close() error {
	return f.sc.Quit()
}

// mapFTPErr translates the FTP 550 reply (file unavailable) into
// ErrFileNotFound; everything else passes through as a connection-class
// error.
func mapFTPErr(err error) error {
	var proto *textproto.Error
	if errors.As(err, &proto) && proto.Code == ftp.StatusFileUnavailable {
		return fmt.Errorf("%w: %s", ErrFileNotFound, proto.Msg)
	}
	return err
}
