package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/iliyamo/cruise-feed-sync/internal/extractor"
	"github.com/iliyamo/cruise-feed-sync/internal/feed"
	"github.com/iliyamo/cruise-feed-sync/internal/model"
	"github.com/iliyamo/cruise-feed-sync/internal/repository"
)

// Fetcher downloads one remote file.  *feed.Pool is the production
// implementation; tests substitute fakes.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// CruiseFailure records why one cruise could not be refreshed.
type CruiseFailure struct {
	CruiseID uint64
	FileCode string
	Err      error
}

// RunResult summarizes one bulk run.  A run with failures is still a
// successful run at the batch level; callers read the ratio, they do not
// receive an exception.
type RunResult struct {
	Succeeded int
	Failed    int
	Failures  []CruiseFailure
}

func (r *RunResult) fail(t repository.SyncTarget, err error) {
	r.Failed++
	r.Failures = append(r.Failures, CruiseFailure{CruiseID: t.CruiseID, FileCode: t.FileCode, Err: err})
}

// fetchedDoc pairs a successfully downloaded document with its cruise.
type fetchedDoc struct {
	target repository.SyncTarget
	doc    extractor.Document
	raw    []byte
}

// BulkDownloader orchestrates one bounded refresh run for one line:
// chunked parallel downloads through the connection pool, price extraction,
// then per-cruise transactional persistence.  Individual download or parse
// failures are recorded and skipped — the run always finishes its list.
// Only a circuit-breaker outage stops it early, and even then the documents
// already in hand are persisted before the error is reported.
type BulkDownloader struct {
	fetcher   Fetcher
	persister Persister
	chunkSize int
}

// NewBulkDownloader builds a BulkDownloader.  chunkSize is normally the feed
// pool size: a chunk saturates the pool without queueing beyond it.
func NewBulkDownloader(fetcher Fetcher, persister Persister, chunkSize int) *BulkDownloader {
	if chunkSize <= 0 {
		chunkSize = 4
	}
	return &BulkDownloader{fetcher: fetcher, persister: persister, chunkSize: chunkSize}
}

// Run refreshes the given cruises of one line.  source tags the resulting
// price snapshots (webhook vs scheduled vs reconcile).  The returned error
// is non-nil only for a run-aborting condition (breaker open); per-cruise
// problems live in the result.
func (b *BulkDownloader) Run(ctx context.Context, line *model.CruiseLine, targets []repository.SyncTarget, source string) (*RunResult, error) {
	result := &RunResult{}
	var (
		mu      sync.Mutex
		docs    []fetchedDoc
		aborted error
	)

	for start := 0; start < len(targets); start += b.chunkSize {
		if aborted != nil {
			break
		}
		end := start + b.chunkSize
		if end > len(targets) {
			end = len(targets)
		}

		var wg sync.WaitGroup
		for _, t := range targets[start:end] {
			wg.Add(1)
			go func(t repository.SyncTarget) {
				defer wg.Done()
				doc, raw, err := b.fetchOne(ctx, t)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case errors.Is(err, feed.ErrBreakerOpen):
					aborted = err
					result.fail(t, err)
				case err != nil:
					result.fail(t, err)
				default:
					docs = append(docs, fetchedDoc{target: t, doc: doc, raw: raw})
				}
			}(t)
		}
		wg.Wait()
	}

	// Extraction and persistence are sequential and transactional per
	// cruise; a rollback for one cruise never touches the others.
	for _, fd := range docs {
		prices := extractor.AdjustForLine(extractor.Extract(fd.doc), line.DividePricesBy1000)
		if err := b.persister.Apply(ctx, fd.target, fd.doc, prices, fd.raw, source); err != nil {
			log.Printf("bulk: persist cruise %d (%s) failed: %v", fd.target.CruiseID, fd.target.FileCode, err)
			result.fail(fd.target, err)
			continue
		}
		result.Succeeded++
	}

	log.Printf("bulk: line %d run done: %d ok, %d failed (source=%s)",
		line.ID, result.Succeeded, result.Failed, source)
	return result, aborted
}

// fetchOne tries the candidate remote paths for a cruise in order and parses
// the first hit.  Not-found moves on to the next candidate; any other
// download error is final for this cruise within the run.
func (b *BulkDownloader) fetchOne(ctx context.Context, t repository.SyncTarget) (extractor.Document, []byte, error) {
	paths := feed.CandidatePaths(t.LineExternalID, t.ShipExternalID, t.FileCode, t.SailDate)
	var raw []byte
	found := false
	for _, p := range paths {
		data, err := b.fetcher.Fetch(ctx, p)
		if errors.Is(err, feed.ErrFileNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("download %s: %w", p, err)
		}
		raw = data
		found = true
		break
	}
	if !found {
		return nil, nil, fmt.Errorf("%w: no candidate path for %s", feed.ErrFileNotFound, t.FileCode)
	}

	var doc extractor.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", t.FileCode, err)
	}
	return doc, raw, nil
}
