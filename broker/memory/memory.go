// Package memory is an in-process broker that records every published
// message. It backs dry runs of the CLI and publisher tests.
package memory

import (
	"asyncpub/broker"
	"sync"

	"go.uber.org/zap"
)

type Broker struct {
	opts broker.Options

	mu          sync.Mutex
	connected   bool
	connects    int
	disconnects int
	messages    []*broker.Message
}

func NewBroker(opts ...broker.Option) *Broker {
	return &Broker{
		opts: broker.NewOptions(opts...),
	}
}

func (b *Broker) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		b.connected = true
		b.connects++
		b.opts.Logger.Debug("memory.connected", zap.String("broker", b.opts.Name))
	}

	return nil
}

func (b *Broker) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connected {
		b.connected = false
		b.disconnects++
		b.opts.Logger.Debug("memory.disconnected", zap.String("broker", b.opts.Name))
	}

	return nil
}

func (b *Broker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.connected
}

func (b *Broker) Publish(m *broker.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return broker.ErrorNotConnected
	}

	header := make(map[string]string, len(m.Header))
	for k, v := range m.Header {
		header[k] = v
	}

	b.messages = append(b.messages, &broker.Message{
		Destination: m.Destination,
		Header:      header,
		Body:        append([]byte(nil), m.Body...),
	})

	return nil
}

// Messages returns a snapshot of everything published so far.
func (b *Broker) Messages() []*broker.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]*broker.Message(nil), b.messages...)
}

func (b *Broker) Stats() (connects, disconnects int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.connects, b.disconnects
}

func (b *Broker) Options() broker.Options {
	return b.opts
}

func (b *Broker) String() string {
	return "memory-broker"
}
