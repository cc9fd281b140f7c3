package asyncpub

import (
	"asyncpub/broker"
	"errors"
	"sync"
	"time"
)

var errFake = errors.New("fake failure")

// fakeBroker records every call made by a publisher worker. The hooks get
// the 1-based call number and may fail, sleep or panic.
type fakeBroker struct {
	opts broker.Options

	mu          sync.Mutex
	connected   bool
	connects    int
	disconnects int
	publishes   int
	events      []string
	published   []*broker.Message
	disconnAt   []time.Time
	publishedAt []time.Time

	onConnect func(n int) error
	onPublish func(n int) error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{opts: broker.NewOptions(broker.OptionWithName("fake"))}
}

func (f *fakeBroker) Connect() error {
	f.mu.Lock()
	f.connects++
	n := f.connects
	hook := f.onConnect
	f.mu.Unlock()

	if hook != nil {
		if err := hook(n); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.connected = true
	f.events = append(f.events, "connect")

	return nil
}

func (f *fakeBroker) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.connected {
		f.disconnects++
		f.disconnAt = append(f.disconnAt, time.Now())
		f.events = append(f.events, "disconnect")
	}

	f.connected = false

	return nil
}

func (f *fakeBroker) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connected
}

func (f *fakeBroker) Publish(m *broker.Message) error {
	f.mu.Lock()
	f.publishes++
	n := f.publishes
	hook := f.onPublish
	connected := f.connected
	f.mu.Unlock()

	if !connected {
		return broker.ErrorNotConnected
	}

	if hook != nil {
		if err := hook(n); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.published = append(f.published, m)
	f.publishedAt = append(f.publishedAt, time.Now())
	f.events = append(f.events, "publish")

	return nil
}

func (f *fakeBroker) Options() broker.Options {
	return f.opts
}

func (f *fakeBroker) String() string {
	return "fake-broker"
}

func (f *fakeBroker) stats() (connects, disconnects, publishes int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connects, f.disconnects, f.publishes
}

func (f *fakeBroker) bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.published))
	for _, m := range f.published {
		out = append(out, string(m.Body))
	}

	return out
}

func (f *fakeBroker) messages() []*broker.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*broker.Message(nil), f.published...)
}

func (f *fakeBroker) eventLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.events...)
}
