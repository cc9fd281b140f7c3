package timer

import (
	"sync"
	"time"
)

type Ticker interface {
	Stop()
}

type ticker struct {
	t    *time.Ticker
	stop chan struct{}
	once sync.Once
}

// NewTicker calls f every d on its own goroutine until Stop.
func NewTicker(d time.Duration, f func()) Ticker {
	t := &ticker{
		t:    time.NewTicker(d),
		stop: make(chan struct{}),
	}

	go func() {
	EndFor:
		for {
			select {
			case <-t.t.C:
				f()
			case <-t.stop:
				break EndFor
			}
		}
		t.t.Stop()
	}()

	return t
}

func (t *ticker) Stop() {
	t.once.Do(func() {
		close(t.stop)
	})
}
