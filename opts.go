package asyncpub

import (
	"asyncpub/log"
	"asyncpub/metrics"
	"time"

	"github.com/google/uuid"
)

type (
	Options struct {
		Name string

		// Negative IdleTimeout keeps the connection open until stop.
		IdleTimeout time.Duration
		Heartbeat   time.Duration
		// Negative ExitFlushTimeout waits until the queue is empty.
		ExitFlushTimeout time.Duration
		// Retries after the first failed attempt; negative retries forever.
		MaxRetry int

		Logger  *log.Logger
		Metrics *metrics.Metrics
	}

	Option func(*Options)

	AppOptions struct {
		ShutdownTimeout time.Duration
		Logger          *log.Logger
	}

	AppOption func(*AppOptions)
)

func newOptions(opts ...Option) Options {
	o := Options{
		IdleTimeout:      DefaultIdleTimeout,
		Heartbeat:        DefaultHeartbeat,
		ExitFlushTimeout: DefaultExitFlushTimeout,
		MaxRetry:         DefaultMaxRetry,
	}

	for _, f := range opts {
		f(&o)
	}

	if o.Name == "" {
		o.Name = uuid.New().String()
	}

	if o.Heartbeat <= 0 {
		o.Heartbeat = DefaultHeartbeat
	}

	if o.Logger == nil {
		o.Logger = log.NewNop()
	}

	return o
}

func OptionWithName(n string) Option {
	return func(o *Options) {
		o.Name = n
	}
}

func OptionWithIdleTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.IdleTimeout = d
	}
}

func OptionWithHeartbeat(d time.Duration) Option {
	return func(o *Options) {
		o.Heartbeat = d
	}
}

func OptionWithExitFlushTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ExitFlushTimeout = d
	}
}

func OptionWithMaxRetry(n int) Option {
	return func(o *Options) {
		o.MaxRetry = n
	}
}

func OptionWithLogger(l *log.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func OptionWithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}

func AppOptionWithShutdownTimeout(d time.Duration) AppOption {
	return func(o *AppOptions) {
		o.ShutdownTimeout = d
	}
}

func AppOptionWithLogger(l *log.Logger) AppOption {
	return func(o *AppOptions) {
		o.Logger = l
	}
}
