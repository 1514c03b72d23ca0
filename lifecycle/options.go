package lifecycle

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/trace"

	im "github.com/lucas-luzj/magic-crm/internal/metrics"
	"github.com/lucas-luzj/magic-crm/metrics"
)

const TracerName = "magic-crm"

type Options struct {
	Logger *slog.Logger

	Metrics metrics.Client

	TracerProvider trace.TracerProvider

	Clock clock.Clock

	// Notifier receives lifecycle events after successful transitions.
	Notifier Notifier

	// GraphCacheSize bounds the compiled process graph cache.
	GraphCacheSize int

	// GraphCacheTTL is how long a compiled graph stays cached. Process
	// definitions change rarely; rollback validation tolerates this lag.
	GraphCacheTTL time.Duration
}

var DefaultOptions = Options{
	GraphCacheSize: 64,
	GraphCacheTTL:  time.Minute * 5,
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

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

func WithNotifier(n Notifier) Option {
	return func(o *Options) {
		o.Notifier = n
	}
}

func WithGraphCacheSize(size int) Option {
	return func(o *Options) {
		o.GraphCacheSize = size
	}
}

func WithGraphCacheTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.GraphCacheTTL = ttl
	}
}

func ApplyOptions(opts ...Option) Options {
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
	if options.TracerProvider == nil {
		options.TracerProvider = trace.NewNoopTracerProvider()
	}
	if options.Clock == nil {
		options.Clock = clock.New()
	}
	if options.Notifier == nil {
		options.Notifier = &noopNotifier{}
	}

	return options
}
