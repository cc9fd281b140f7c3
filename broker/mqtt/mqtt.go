package mqtt

import (
	"asyncpub/broker"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var (
	ErrorNoTopic = errors.New("topic must not be empty")
	ErrorTimeout = errors.New("mqtt token timeout")
)

// DefaultQuiesce is how long Disconnect lets in-flight work finish, in ms.
const DefaultQuiesce uint = 250

type mqttBroker struct {
	opts     broker.Options
	clientID string
	qos      byte
	retained bool

	mu     sync.Mutex
	client paho.Client

	newClient func(*paho.ClientOptions) paho.Client
}

func (b *mqttBroker) clientOptions() *paho.ClientOptions {
	o := paho.NewClientOptions()

	for _, addr := range strings.Split(b.opts.Addr, ",") {
		addr = strings.TrimSpace(addr)
		if !strings.Contains(addr, "://") {
			addr = "tcp://" + addr
		}

		o.AddBroker(addr)
	}

	o.SetClientID(b.clientID)
	o.SetUsername(b.opts.User)
	o.SetPassword(b.opts.Password)
	o.SetConnectTimeout(b.opts.Timeout)
	o.SetWriteTimeout(b.opts.Timeout)
	// the publisher worker owns reconnection
	o.SetAutoReconnect(false)
	o.SetConnectRetry(false)
	o.SetCleanSession(true)

	o.OnConnectionLost = func(c paho.Client, err error) {
		b.opts.Logger.Warn("mqtt.connection lost", zap.String("addr", b.opts.Addr), zap.Error(err))
	}

	return o
}

func wait(t paho.Token, d time.Duration) error {
	if !t.WaitTimeout(d) {
		return ErrorTimeout
	}

	return t.Error()
}

func (b *mqttBroker) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil && b.client.IsConnectionOpen() {
		return nil
	}

	b.opts.Logger.Debug("mqtt.connecting", zap.String("addr", b.opts.Addr))

	c := b.newClient(b.clientOptions())
	if err := wait(c.Connect(), b.opts.Timeout); err != nil {
		return fmt.Errorf("failed to connect mqtt %w", err)
	}

	b.client = c
	b.opts.Logger.Debug("mqtt.connected", zap.String("addr", b.opts.Addr), zap.String("clientID", b.clientID))

	return nil
}

func (b *mqttBroker) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return nil
	}

	b.client.Disconnect(DefaultQuiesce)
	b.client = nil
	b.opts.Logger.Debug("mqtt.disconnected", zap.String("addr", b.opts.Addr))

	return nil
}

func (b *mqttBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.client != nil && b.client.IsConnectionOpen()
}

// Publish sends the body only; MQTT 3.1.1 has no message headers.
func (b *mqttBroker) Publish(m *broker.Message) error {
	if m.Destination == "" {
		return ErrorNoTopic
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil || !b.client.IsConnectionOpen() {
		return broker.ErrorNotConnected
	}

	if err := wait(b.client.Publish(m.Destination, b.qos, b.retained, m.Body), b.opts.Timeout); err != nil {
		return fmt.Errorf("failed to publish mqtt %w", err)
	}

	return nil
}

func (b *mqttBroker) Options() broker.Options {
	return b.opts
}

func (b *mqttBroker) String() string {
	return "mqtt-broker"
}

func NewBroker(opts ...broker.Option) broker.Broker {
	b := &mqttBroker{
		opts:      broker.NewOptions(opts...),
		newClient: paho.NewClient,
	}

	if b.opts.Context != nil {
		if c, ok := b.opts.Context.Value(mqttBrokerConfigKey{}).(*mqttBrokerConfig); ok {
			b.clientID = c.ClientID
			b.qos = c.QoS
			b.retained = c.Retained
		}
	}

	if b.clientID == "" {
		b.clientID = b.opts.Name
	}

	return b
}
