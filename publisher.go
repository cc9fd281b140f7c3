package asyncpub

import (
	"asyncpub/broker"
	"asyncpub/log"
	"asyncpub/metrics"
	"asyncpub/util/queue"
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type publisher struct {
	opts Options
	b    broker.Broker
	q    *queue.Queue
	log  *log.Logger

	state         atomic.Int32
	started       atomic.Bool
	stopRequested atomic.Bool
	sending       atomic.Bool
	held          atomic.Bool

	wake     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	exitMtx sync.Mutex
	exits   []*ExitFlush

	// owned by the worker goroutine
	head     *broker.Message // popped but not yet delivered or dropped
	attempts int
}

func newPublisher(b broker.Broker, opts Options) *publisher {
	return &publisher{
		opts: opts,
		b:    b,
		q:    queue.New(),
		log:  opts.Logger.With(zap.String("publisher", opts.Name)),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func timestamp(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/float64(time.Second), 'f', 6, 64)
}

func (p *publisher) Send(destination string, body []byte, header, extra map[string]string) {
	p.SendContext(context.Background(), destination, body, header, extra)
}

// SendContext also injects the trace context carried by ctx through the
// global otel propagator. Caller headers override injected ones.
func (p *publisher) SendContext(ctx context.Context, destination string, body []byte, header, extra map[string]string) {
	h := make(map[string]string, len(header)+len(extra)+2)

	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(h))

	for k, v := range header {
		h[k] = v
	}

	for k, v := range extra {
		h[k] = v
	}

	if destination != "" {
		h[DestinationHeader] = destination
	} else {
		destination = h[DestinationHeader]
	}

	if _, ok := h[TimestampHeader]; !ok {
		h[TimestampHeader] = timestamp(time.Now())
	}

	m := &broker.Message{
		Destination: destination,
		Header:      h,
		Body:        append([]byte(nil), body...),
	}

	if err := p.q.Push(m); err != nil {
		p.log.Warn("publisher.queue unavailable",
			zap.String("destination", destination),
			zap.Error(err))
		p.opts.Metrics.MessagesDropped(p.opts.Name, metrics.ReasonUnavailable, 1)

		return
	}

	p.log.Debug("publisher.queued message",
		zap.String("destination", destination),
		zap.Any("header", h),
		zap.Int("body", len(m.Body)))
	p.opts.Metrics.MessageQueued(p.opts.Name, p.q.Len())
}

func (p *publisher) Start() {
	if !p.started.CAS(false, true) {
		p.log.Warn("publisher.already started")

		return
	}

	go p.run()
}

func (p *publisher) run() {
	defer close(p.done)
	defer p.finish()
	defer p.recoverPanic()

	var idle time.Duration

	for !(p.stopRequested.Load() && p.Len() == 0) {
		if p.drain() {
			idle = 0
		}

		p.sleep(p.opts.Heartbeat)
		idle += p.opts.Heartbeat

		if p.opts.IdleTimeout >= 0 && idle >= p.opts.IdleTimeout {
			p.disconnect(metrics.ReasonIdle)
		}
	}
}

// drain publishes until the queue is empty or a delivery fails. It reports
// whether anything was published.
func (p *publisher) drain() bool {
	var sent bool

	for {
		p.sending.Store(true)

		m := p.next()
		if m == nil {
			p.sending.Store(false)

			break
		}

		p.setState(StateSending)
		err := p.deliver(m)
		p.sending.Store(false)

		if err != nil {
			p.fail(m, err)

			break
		}

		p.head = nil
		p.attempts = 0
		p.held.Store(false)
		sent = true
	}

	p.setState(StateIdle)

	return sent
}

// next returns the message at the head of the line. A popped message stays
// held until it is delivered or dropped.
func (p *publisher) next() *broker.Message {
	if p.head != nil {
		return p.head
	}

	m, ok := p.q.Pop()
	if !ok {
		return nil
	}

	p.head = m
	p.held.Store(true)

	return m
}

func (p *publisher) deliver(m *broker.Message) error {
	if !p.b.IsConnected() {
		p.log.Debug("publisher.connecting", zap.String("broker", p.b.String()))

		if err := p.b.Connect(); err != nil {
			p.opts.Metrics.ConnectError(p.opts.Name)

			return &ConnectionError{Broker: p.b.String(), Err: err}
		}

		p.log.Debug("publisher.connected", zap.String("broker", p.b.String()))
		p.opts.Metrics.Connected(p.opts.Name)
	}

	p.log.Debug("publisher.sending message",
		zap.String("destination", m.Destination),
		zap.Any("header", m.Header))

	start := time.Now()

	if err := p.b.Publish(m); err != nil {
		p.opts.Metrics.TransmitError(p.opts.Name)

		return &TransmitError{Broker: p.b.String(), Destination: m.Destination, Err: err}
	}

	p.log.Debug("publisher.sent message", zap.String("destination", m.Destination))
	p.opts.Metrics.MessageSent(p.opts.Name, time.Since(start), p.q.Len())

	return nil
}

// fail leaves m at the head of the line for the next heartbeat until
// MaxRetry is exhausted.
func (p *publisher) fail(m *broker.Message, err error) {
	p.attempts++

	if errors.Is(err, ErrorTransmit) {
		p.disconnect(metrics.ReasonError)
	}

	if p.opts.MaxRetry >= 0 && p.attempts > p.opts.MaxRetry {
		p.log.Warn("publisher.dropping message",
			zap.String("destination", m.Destination),
			zap.Int("attempts", p.attempts),
			zap.Error(err))
		p.opts.Metrics.MessagesDropped(p.opts.Name, metrics.ReasonRetry, 1)

		p.head = nil
		p.attempts = 0
		p.held.Store(false)

		return
	}

	p.log.Warn("publisher.delivery failed",
		zap.String("destination", m.Destination),
		zap.Int("attempts", p.attempts),
		zap.Error(err))

}

func (p *publisher) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-p.wake:
	}
}

func (p *publisher) disconnect(reason string) {
	if !p.b.IsConnected() {
		return
	}

	p.log.Debug("publisher.disconnecting", zap.String("reason", reason))

	if err := p.b.Disconnect(); err != nil {
		p.log.Warn("publisher.disconnect failed", zap.Error(err))
	}

	p.opts.Metrics.Disconnected(p.opts.Name, reason)
}

func (p *publisher) recoverPanic() {
	r := recover()
	if r == nil {
		return
	}

	n := p.q.Release()
	if p.head != nil {
		n++
		p.head = nil
		p.held.Store(false)
	}

	p.sending.Store(false)
	p.log.Error("publisher.worker panic",
		zap.Any("panic", r),
		zap.Int("dropped", n),
		zap.Stack("stack"))
	p.opts.Metrics.MessagesDropped(p.opts.Name, metrics.ReasonPanic, n)
}

// finish runs on every exit path and always attempts a disconnect.
func (p *publisher) finish() {
	defer p.setState(StateStopped)
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("publisher.final disconnect panic", zap.Any("panic", r))
		}
	}()

	wasConnected := p.b.IsConnected()

	if err := p.b.Disconnect(); err != nil {
		p.log.Warn("publisher.disconnect failed", zap.Error(err))
	}

	if wasConnected {
		p.log.Debug("publisher.disconnected", zap.String("reason", metrics.ReasonStop))
		p.opts.Metrics.Disconnected(p.opts.Name, metrics.ReasonStop)
	}

	p.log.Debug("publisher.stopped")
}

func (p *publisher) Stop() {
	p.stopOnce.Do(func() {
		p.log.Debug("publisher.stopping", zap.Int("queue", p.Len()))
		p.stopRequested.Store(true)

		select {
		case p.wake <- struct{}{}:
		default:
		}
	})
}

func (p *publisher) IsStopRequested() bool {
	return p.stopRequested.Load()
}

func (p *publisher) RegisterExitFlush(timeout time.Duration) {
	e := newExitFlush(p, timeout, p.opts)

	p.exitMtx.Lock()
	defer p.exitMtx.Unlock()

	p.exits = append(p.exits, e)
}

// Finalize runs the registered exit flushes, most recent first, in the
// calling goroutine.
func (p *publisher) Finalize() bool {
	p.exitMtx.Lock()
	exits := append([]*ExitFlush(nil), p.exits...)
	p.exitMtx.Unlock()

	for i := len(exits) - 1; i >= 0; i-- {
		exits[i].Flush()
	}

	return len(exits) > 0
}

func (p *publisher) setState(s State) {
	p.state.Store(int32(s))
}

func (p *publisher) State() State {
	return State(p.state.Load())
}

func (p *publisher) IsSending() bool {
	return p.sending.Load()
}

// Len counts queued messages plus the one the worker is holding.
func (p *publisher) Len() int {
	n := p.q.Len()
	if p.held.Load() {
		n++
	}

	return n
}

func (p *publisher) Done() <-chan struct{} {
	return p.done
}

func (p *publisher) Options() Options {
	return p.opts
}

func (p *publisher) String() string {
	return "async-publisher"
}
