package asyncpub

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Drainer is the part of a publisher an exit flush watches.
type Drainer interface {
	Len() int
	IsSending() bool
	String() string
}

// ExitFlush holds the host's shutdown sequence until a drainer is empty and
// idle, or until the timeout elapses. It never stops the worker itself.
type ExitFlush struct {
	w       Drainer
	timeout time.Duration
	opts    Options

	once    sync.Once
	elapsed time.Duration
}

func NewExitFlush(w Drainer, timeout time.Duration, opts ...Option) *ExitFlush {
	return newExitFlush(w, timeout, newOptions(opts...))
}

func newExitFlush(w Drainer, timeout time.Duration, opts Options) *ExitFlush {
	return &ExitFlush{
		w:       w,
		timeout: timeout,
		opts:    opts,
	}
}

func (e *ExitFlush) drained() bool {
	return e.w.Len() == 0 && !e.w.IsSending()
}

// Flush blocks the caller at most once; later calls return the first
// call's elapsed time. A negative timeout waits until drained.
func (e *ExitFlush) Flush() time.Duration {
	e.once.Do(func() {
		logger := e.opts.Logger.With(zap.String("publisher", e.opts.Name))
		start := time.Now()

		logger.Debug("publisher.finalizing",
			zap.Int("queue", e.w.Len()),
			zap.Duration("timeout", e.timeout))

	EndFor:
		for !e.drained() {
			wait := e.opts.Heartbeat

			if e.timeout >= 0 {
				remaining := e.timeout - time.Since(start)
				if remaining <= 0 {
					break EndFor
				}

				if remaining < wait {
					wait = remaining
				}
			}

			logger.Debug("publisher.finalize waiting", zap.Int("queue", e.w.Len()))
			time.Sleep(wait)
		}

		e.elapsed = time.Since(start)
		left := e.w.Len()

		if left > 0 {
			logger.Warn("publisher.finalize timed out",
				zap.Int("queue", left),
				zap.Duration("elapsed", e.elapsed))
		} else {
			logger.Debug("publisher.finalized", zap.Duration("elapsed", e.elapsed))
		}

		e.opts.Metrics.Finalized(e.opts.Name, e.elapsed, left)
	})

	return e.elapsed
}
