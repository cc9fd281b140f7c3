package asyncpub

import (
	"asyncpub/broker"
	"asyncpub/util/queue"
	"context"
	"errors"
	"time"
)

const (
	DefaultHeartbeat        = 300 * time.Millisecond
	DefaultIdleTimeout      = 30 * time.Second
	DefaultExitFlushTimeout = 5 * time.Second
	DefaultMaxRetry         = 3
	DefaultShutdownTimeout  = 30 * time.Second

	TimestampHeader   = "_publisher_timestamp"
	DestinationHeader = "destination"
)

var (
	ErrorNameIsExist         = errors.New("name is exist")
	ErrorPublisherIsNotExist = errors.New("publisher is not exist")
	ErrorShutdownTimeout     = errors.New("publishers did not stop in time")
	ErrorFlushIncomplete     = errors.New("exit flush left messages queued")

	ErrorConnection       = errors.New("connection error")
	ErrorTransmit         = errors.New("transmit error")
	ErrorQueueUnavailable = queue.ErrorQueueUnavailable
)

type State int32

const (
	StateIdle State = iota
	StateSending
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Publisher queues messages from any goroutine and publishes them from a
// single worker goroutine that owns the broker connection.
type Publisher interface {
	// Send never blocks on I/O and never fails from the caller's point of
	// view; delivery problems only reach the logger and metrics.
	Send(destination string, body []byte, header, extra map[string]string)
	SendContext(ctx context.Context, destination string, body []byte, header, extra map[string]string)
	Start()
	Stop()
	IsStopRequested() bool
	RegisterExitFlush(timeout time.Duration)
	// Finalize reports whether any exit flush was registered and ran.
	Finalize() bool
	State() State
	IsSending() bool
	Len() int
	Done() <-chan struct{}
	Options() Options
	String() string
}

type App interface {
	AddPublisher(...Publisher) error
	Publisher(string) (Publisher, error)
	Start()
	Run(context.Context) error
	Shutdown() error
}

func NewPublisher(b broker.Broker, opts ...Option) Publisher {
	return newPublisher(b, newOptions(opts...))
}

func NewApp(opts ...AppOption) App {
	a := &app{
		pubs: make(map[string]Publisher),
	}

	a.opts.ShutdownTimeout = DefaultShutdownTimeout

	for _, o := range opts {
		o(&a.opts)
	}

	return a
}
