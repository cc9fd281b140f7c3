package rabbit

import (
	"asyncpub/broker"
	"errors"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var ErrorNoDestination = errors.New("routing key must not be empty")

const DefaultExchangeType = "direct"

type rabbitBroker struct {
	opts broker.Options

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel

	exchangeName string
	exchangeType string
	declared     bool

	dial func(string) (*amqp.Connection, error)
}

func (r *rabbitBroker) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connectedLocked() {
		return nil
	}

	r.closeLocked()

	r.opts.Logger.Debug("rabbit.connecting", zap.String("addr", r.opts.Addr))

	conn, err := r.dial(r.opts.Addr)
	if err != nil {
		return fmt.Errorf("fail to connect amqp %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()

		return fmt.Errorf("fail to connect channel %w", err)
	}

	r.conn = conn
	r.channel = channel
	r.declared = false

	r.opts.Logger.Debug("rabbit.connected", zap.String("addr", r.opts.Addr))

	return nil
}

func (r *rabbitBroker) dialConfig(addr string) (*amqp.Connection, error) {
	cfg := amqp.Config{
		Dial: amqp.DefaultDial(r.opts.Timeout),
	}

	if r.opts.User != "" {
		cfg.SASL = []amqp.Authentication{&amqp.PlainAuth{
			Username: r.opts.User,
			Password: r.opts.Password,
		}}
	}

	return amqp.DialConfig(addr, cfg)
}

func (r *rabbitBroker) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil && r.channel == nil {
		return nil
	}

	r.closeLocked()
	r.opts.Logger.Debug("rabbit.disconnected", zap.String("addr", r.opts.Addr))

	return nil
}

func (r *rabbitBroker) closeLocked() {
	if r.channel != nil {
		r.channel.Close()
		r.channel = nil
	}

	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

func (r *rabbitBroker) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.connectedLocked()
}

func (r *rabbitBroker) connectedLocked() bool {
	return r.conn != nil && r.channel != nil && !r.conn.IsClosed()
}

func (r *rabbitBroker) declare() error {
	if r.declared || r.exchangeName == "" {
		return nil
	}

	if r.exchangeType == "" {
		r.exchangeType = DefaultExchangeType
	}

	err := r.channel.ExchangeDeclare(r.exchangeName, r.exchangeType, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("fail to register exchangeDeclare %w", err)
	}

	r.declared = true

	return nil
}

func (r *rabbitBroker) Publish(msg *broker.Message) error {
	if msg.Destination == "" {
		return ErrorNoDestination
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.connectedLocked() {
		return broker.ErrorNotConnected
	}

	if err := r.declare(); err != nil {
		return err
	}

	return r.channel.Publish(r.exchangeName, msg.Destination, false, false, toPublishing(msg))
}

func toPublishing(msg *broker.Message) amqp.Publishing {
	m := amqp.Publishing{
		Body:    msg.Body,
		Headers: amqp.Table{},
	}

	for k, v := range msg.Header {
		switch k {
		case "content-type":
			m.ContentType = v
		case "message-id":
			m.MessageId = v
		default:
			m.Headers[k] = v
		}
	}

	return m
}

func (r *rabbitBroker) Options() broker.Options {
	return r.opts
}

func (r *rabbitBroker) String() string {
	return "rabbit-broker"
}

// NewBroker publishes to the default exchange unless OptionWithExchange is
// given; the message destination is used as routing key.
func NewBroker(opts ...broker.Option) broker.Broker {
	b := &rabbitBroker{
		opts: broker.NewOptions(opts...),
	}
	b.dial = b.dialConfig

	if b.opts.Context != nil {
		if ex, ok := b.opts.Context.Value(rabbitExchangeKey{}).(*rabbitExchange); ok {
			b.exchangeName = ex.Name
			b.exchangeType = ex.Kind
		}
	}

	return b
}
