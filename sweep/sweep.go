// Package sweep runs the periodic background work of the module: pushing
// every known principal through the identity outbox so suspected-stale
// directory memberships converge, and trimming mirrored rows of finished
// process instances past the retention window.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/lucas-luzj/magic-crm/identity"
	"github.com/lucas-luzj/magic-crm/internal/log"
	"github.com/lucas-luzj/magic-crm/internal/metrickeys"
	im "github.com/lucas-luzj/magic-crm/internal/metrics"
	"github.com/lucas-luzj/magic-crm/metrics"
	"github.com/lucas-luzj/magic-crm/mirror"
)

type Options struct {
	Logger *slog.Logger

	Metrics metrics.Client

	Clock clock.Clock

	// SyncInterval is the cadence of the stale-membership sweep.
	SyncInterval time.Duration

	// CleanupInterval is the cadence of the mirror retention sweep.
	CleanupInterval time.Duration

	// Retention is how long mirrored rows of finished instances are kept.
	Retention time.Duration
}

var DefaultOptions = Options{
	SyncInterval:    time.Hour * 6,
	CleanupInterval: time.Hour,
	Retention:       time.Hour * 24 * 30,
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithMetrics(client metrics.Client) Option {
	return func(o *Options) {
		o.Metrics = client
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

func WithSyncInterval(d time.Duration) Option {
	return func(o *Options) {
		o.SyncInterval = d
	}
}

func WithCleanupInterval(d time.Duration) Option {
	return func(o *Options) {
		o.CleanupInterval = d
	}
}

func WithRetention(d time.Duration) Option {
	return func(o *Options) {
		o.Retention = d
	}
}

type Sweeper struct {
	outbox     *identity.Outbox
	principals identity.PrincipalLister
	store      mirror.Store

	options Options

	done chan struct{}
}

func NewSweeper(outbox *identity.Outbox, principals identity.PrincipalLister, store mirror.Store, opts ...Option) *Sweeper {
	options := DefaultOptions

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Metrics == nil {
		options.Metrics = im.NewNoopMetricsClient()
	}
	if options.Clock == nil {
		options.Clock = clock.New()
	}

	return &Sweeper{
		outbox:     outbox,
		principals: principals,
		store:      store,
		options:    options,
		done:       make(chan struct{}),
	}
}

// Start runs both sweeps until the context is cancelled. The tickers are
// created before the loop goroutine is spawned so that a mock clock
// advanced immediately after Start observes them.
func (s *Sweeper) Start(ctx context.Context) {
	syncTicker := s.options.Clock.Ticker(s.options.SyncInterval)
	cleanupTicker := s.options.Clock.Ticker(s.options.CleanupInterval)

	go s.run(ctx, syncTicker, cleanupTicker)
}

// WaitForCompletion blocks until the sweep loop has observed cancellation
// and stopped.
func (s *Sweeper) WaitForCompletion() {
	<-s.done
}

func (s *Sweeper) run(ctx context.Context, syncTicker, cleanupTicker *clock.Ticker) {
	defer close(s.done)

	defer syncTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-syncTicker.C:
			s.syncPrincipals(ctx)
		case <-cleanupTicker.C:
			s.cleanupMirror(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) syncPrincipals(ctx context.Context) {
	ids, err := s.principals.PrincipalIDs(ctx)
	if err != nil {
		s.options.Logger.ErrorContext(ctx, "Listing principals for sweep failed", "error", err)
		return
	}

	for _, id := range ids {
		if err := s.outbox.Enqueue(ctx, id); err != nil {
			s.options.Logger.ErrorContext(ctx, "Enqueuing principal for sweep failed",
				log.PrincipalIDKey, id,
				"error", err,
			)

			return
		}
	}
}

func (s *Sweeper) cleanupMirror(ctx context.Context) {
	cutoff := s.options.Clock.Now().Add(-s.options.Retention)

	removed, err := s.store.RemoveFinishedInstances(ctx, cutoff)
	if err != nil {
		s.options.Logger.ErrorContext(ctx, "Removing finished instances failed", "error", err)
		return
	}

	if removed > 0 {
		s.options.Logger.DebugContext(ctx, "Removed finished instances", log.RemovedKey, removed)

		s.options.Metrics.Counter(metrickeys.MirrorRowsRemoved, metrics.Tags{}, int64(removed))
	}
}
