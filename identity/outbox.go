package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	goerrors "github.com/go-errors/errors"
	"github.com/google/uuid"

	"github.com/lucas-luzj/magic-crm/internal/log"
	"github.com/lucas-luzj/magic-crm/internal/metrickeys"
	im "github.com/lucas-luzj/magic-crm/internal/metrics"
	"github.com/lucas-luzj/magic-crm/metrics"
)

type message struct {
	id          string
	principalID string
}

type OutboxOptions struct {
	Logger *slog.Logger

	Metrics metrics.Client

	Clock clock.Clock

	// BufferSize is the capacity of the outbox queue. Enqueue blocks once
	// the buffer is full.
	BufferSize int

	// MaxElapsedTime caps the backoff redelivery of a failing reconciliation
	// before the message is dropped.
	MaxElapsedTime time.Duration

	// InitialInterval is the first backoff delay after a failure.
	InitialInterval time.Duration
}

var defaultOutboxOptions = OutboxOptions{
	BufferSize:      256,
	MaxElapsedTime:  time.Minute * 5,
	InitialInterval: time.Second,
}

type OutboxOption func(*OutboxOptions)

func WithOutboxLogger(logger *slog.Logger) OutboxOption {
	return func(o *OutboxOptions) {
		o.Logger = logger
	}
}

func WithOutboxMetrics(client metrics.Client) OutboxOption {
	return func(o *OutboxOptions) {
		o.Metrics = client
	}
}

func WithOutboxClock(c clock.Clock) OutboxOption {
	return func(o *OutboxOptions) {
		o.Clock = c
	}
}

func WithMaxElapsedTime(d time.Duration) OutboxOption {
	return func(o *OutboxOptions) {
		o.MaxElapsedTime = d
	}
}

func WithInitialInterval(d time.Duration) OutboxOption {
	return func(o *OutboxOptions) {
		o.InitialInterval = d
	}
}

// Outbox is the commit-phase dispatch queue between CRM principal mutations
// and directory reconciliation. Producers call Enqueue after their own
// transaction committed; a single consumer delivers each message at least
// once to the reconciler, which is idempotent. Delivery order between
// messages for the same principal does not matter because reconciliation
// reads current state.
type Outbox struct {
	reconciler *Reconciler

	options OutboxOptions

	queue chan message

	done chan struct{}
	once sync.Once
}

func NewOutbox(reconciler *Reconciler, opts ...OutboxOption) *Outbox {
	options := defaultOutboxOptions

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

	return &Outbox{
		reconciler: reconciler,
		options:    options,
		queue:      make(chan message, options.BufferSize),
		done:       make(chan struct{}),
	}
}

// Enqueue schedules a reconciliation for the principal. Call after the
// principal mutation is durably committed.
func (o *Outbox) Enqueue(ctx context.Context, principalID string) error {
	m := message{
		id:          uuid.NewString(),
		principalID: principalID,
	}

	select {
	case o.queue <- m:
	case <-ctx.Done():
		return ctx.Err()
	}

	o.options.Metrics.Gauge(metrickeys.OutboxDepth, metrics.Tags{}, int64(len(o.queue)))

	return nil
}

// Start runs the consumer until the context is cancelled.
func (o *Outbox) Start(ctx context.Context) {
	go o.consumer(ctx)
}

// WaitForCompletion blocks until the consumer has observed cancellation and
// stopped.
func (o *Outbox) WaitForCompletion() {
	<-o.done
}

func (o *Outbox) consumer(ctx context.Context) {
	defer close(o.done)

	for {
		select {
		case m := <-o.queue:
			o.deliver(ctx, m)

			o.options.Metrics.Gauge(metrickeys.OutboxDepth, metrics.Tags{}, int64(len(o.queue)))
		case <-ctx.Done():
			return
		}
	}
}

// deliver reconciles with backoff until success or the retry budget is spent.
// Messages exhausting the budget are dropped; the stale-membership sweep
// picks the principal up later.
func (o *Outbox) deliver(ctx context.Context, m message) {
	attempt := 0

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.options.InitialInterval
	b.MaxElapsedTime = o.options.MaxElapsedTime

	err := backoff.Retry(func() error {
		attempt++

		return o.reconcile(ctx, m.principalID)
	}, backoff.WithContext(b, ctx))

	if err != nil {
		o.options.Logger.ErrorContext(ctx, "Dropping reconciliation after retries",
			log.PrincipalIDKey, m.principalID,
			log.AttemptKey, attempt,
			"error", err,
		)
	}
}

func (o *Outbox) reconcile(ctx context.Context, principalID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = backoff.Permanent(fmt.Errorf("reconciliation panicked: %v\n%s", r, goerrors.Wrap(r, 2).Stack()))
		}
	}()

	return o.reconciler.Reconcile(ctx, principalID)
}
