package asyncpub

import (
	"asyncpub/log"
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type app struct {
	opts AppOptions

	mtx  sync.RWMutex
	pubs map[string]Publisher
}

func (app *app) logger() *log.Logger {
	if app.opts.Logger == nil {
		return log.Default()
	}

	return app.opts.Logger
}

func (app *app) AddPublisher(pubs ...Publisher) error {
	app.mtx.Lock()
	defer app.mtx.Unlock()

	for _, v := range pubs {
		if _, ok := app.pubs[v.Options().Name]; ok {
			return ErrorNameIsExist
		}

		app.pubs[v.Options().Name] = v
	}

	return nil
}

func (app *app) Publisher(name string) (Publisher, error) {
	app.mtx.RLock()
	defer app.mtx.RUnlock()

	p, ok := app.pubs[name]
	if !ok {
		return nil, ErrorPublisherIsNotExist
	}

	return p, nil
}

// list returns publishers in name order so shutdown logs are stable.
func (app *app) list() []Publisher {
	app.mtx.RLock()
	defer app.mtx.RUnlock()

	names := make([]string, 0, len(app.pubs))
	for k := range app.pubs {
		names = append(names, k)
	}

	sort.Strings(names)

	pubs := make([]Publisher, 0, len(names))
	for _, k := range names {
		pubs = append(pubs, app.pubs[k])
	}

	return pubs
}

func (app *app) Start() {
	for _, v := range app.list() {
		app.logger().Debug("app.starting publisher", zap.String("publisher", v.Options().Name))
		v.Start()
	}
}

// Run starts every publisher and blocks until ctx is done or the process
// receives SIGINT or SIGTERM, then shuts down.
func (app *app) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Start()

	<-ctx.Done()

	app.logger().Info("app.shutting down")

	return app.Shutdown()
}

// Shutdown requests every publisher to stop and runs their exit flushes.
// A publisher whose exit flush ran out of time is abandoned with its queue;
// the others are waited for up to ShutdownTimeout.
func (app *app) Shutdown() error {
	pubs := app.list()

	for _, v := range pubs {
		v.Stop()
	}

	wait := make([]Publisher, 0, len(pubs))
	var incomplete int

	for _, v := range pubs {
		if v.Finalize() && v.Len() > 0 {
			app.logger().Warn("app.exit flush incomplete",
				zap.String("publisher", v.Options().Name),
				zap.Int("queue", v.Len()))

			incomplete++

			continue
		}

		wait = append(wait, v)
	}

	t := time.NewTimer(app.opts.ShutdownTimeout)
	defer t.Stop()

	for _, v := range wait {
		select {
		case <-v.Done():
		case <-t.C:
			app.logger().Warn("app.shutdown timed out",
				zap.String("publisher", v.Options().Name),
				zap.Int("queue", v.Len()))

			return ErrorShutdownTimeout
		}
	}

	if incomplete > 0 {
		return ErrorFlushIncomplete
	}

	app.logger().Info("app.stopped", zap.Int("publishers", len(pubs)))

	return nil
}
