// Package etl runs the bundle pipeline: fetch the catalog, sweep expired
// records, upsert the fresh ones with their image observations, and append a
// raw payload snapshot.
package etl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bundlefeed/bundlefeed/internal/models"
	"github.com/ubuntu/decorate"
)

// Summary reports what one run did.
type Summary struct {
	BundlesProcessed int
	Discarded        int
	Expired          int64
	CleanupRan       bool
}

type catalogSource interface {
	FetchBundles(ctx context.Context, now time.Time) ([]models.ScrapedBundle, int, error)
	Snapshot(now time.Time) (*models.RawSnapshot, error)
}

type storeManager interface {
	AcquireRunLock(ctx context.Context) error
	ReleaseRunLock(ctx context.Context) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	StoreBundles(ctx context.Context, bundles []models.ScrapedBundle, now time.Time) error
	AppendSnapshot(ctx context.Context, snap models.RawSnapshot) error
}

// Service executes pipeline runs. It is constructed per run assembly; the
// spider and store are injected so neither is a process-wide singleton.
type Service struct {
	spider catalogSource
	store  storeManager
	nowFn  func() time.Time
}

type options struct {
	nowFn func() time.Time
}

// Options represents an optional function to override Service default values.
type Options func(*options)

// WithClock overrides the clock used to stamp a run.
func WithClock(nowFn func() time.Time) Options {
	return func(o *options) {
		o.nowFn = nowFn
	}
}

// New creates an ETL service over the given catalog source and store.
func New(spider catalogSource, store storeManager, args ...Options) *Service {
	opts := options{
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Service{
		spider: spider,
		store:  store,
		nowFn:  opts.nowFn,
	}
}

// Run executes one full pipeline pass, strictly sequential:
// fetch -> extract -> normalize -> enrich -> validate, then under the run
// lock: expiry sweep, transactional upsert with image replacement, snapshot
// append.
//
// Catalog failures and persistence failures are fatal and returned. The
// snapshot is still appended when the bundle phase fails, so the audit trail
// records every payload that was actually fetched.
func (s *Service) Run(ctx context.Context) (summary Summary, err error) {
	defer decorate.OnError(&err, "pipeline run failed")

	now := s.nowFn()

	bundles, discarded, err := s.spider.FetchBundles(ctx, now)
	if err != nil {
		return Summary{}, err
	}
	summary = Summary{BundlesProcessed: len(bundles), Discarded: discarded}
	slog.Info("Fetched bundle catalog", "bundles", len(bundles), "discarded", discarded)

	if err := s.store.AcquireRunLock(ctx); err != nil {
		return summary, err
	}
	defer func() {
		if releaseErr := s.store.ReleaseRunLock(ctx); releaseErr != nil {
			slog.Warn("Failed to release run lock", "err", releaseErr)
		}
	}()

	var persistErr error
	expired, sweepErr := s.store.SweepExpired(ctx, now)
	if sweepErr == nil {
		summary.CleanupRan = true
		summary.Expired = expired
		slog.Info("Swept expired bundles", "removed", expired)

		persistErr = s.store.StoreBundles(ctx, bundles, now)
	}

	// The payload was fetched, so snapshot it even when the bundle phase
	// failed.
	var snapErr error
	snap, snapErr := s.spider.Snapshot(now)
	if snapErr == nil && snap != nil {
		snapErr = s.store.AppendSnapshot(ctx, *snap)
	}

	if err := errors.Join(sweepErr, persistErr, snapErr); err != nil {
		return summary, err
	}

	slog.Info("Pipeline run complete", "bundles", summary.BundlesProcessed, "expired", summary.Expired)
	return summary, nil
}
