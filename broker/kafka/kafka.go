package kafka

import (
	"asyncpub/broker"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

var ErrorNoTopic = errors.New("topic must not be empty")

type producerFactory func(addrs []string, cfg *sarama.Config) (sarama.SyncProducer, error)

type kafkaBroker struct {
	opts broker.Options

	mu sync.Mutex
	p  sarama.SyncProducer

	clientID    string
	newProducer producerFactory
}

func (s *kafkaBroker) config() *sarama.Config {
	config := sarama.NewConfig()
	config.Version = sarama.V0_11_0_0
	config.Producer.Return.Successes = true
	config.Producer.Timeout = s.opts.Timeout
	config.Net.DialTimeout = s.opts.Timeout

	if s.clientID != "" {
		config.ClientID = s.clientID
	}

	if s.opts.User != "" {
		config.Net.SASL.Enable = true
		config.Net.SASL.User = s.opts.User
		config.Net.SASL.Password = s.opts.Password
	}

	return config
}

func (s *kafkaBroker) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.p != nil {
		return nil
	}

	s.opts.Logger.Debug("kafka.connecting", zap.String("addr", s.opts.Addr))

	p, err := s.newProducer(strings.Split(s.opts.Addr, ","), s.config())
	if err != nil {
		return fmt.Errorf("fail to connect kafka %w", err)
	}

	s.p = p
	s.opts.Logger.Debug("kafka.connected", zap.String("addr", s.opts.Addr))

	return nil
}

func (s *kafkaBroker) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.p == nil {
		return nil
	}

	err := s.p.Close()
	s.p = nil
	s.opts.Logger.Debug("kafka.disconnected", zap.String("addr", s.opts.Addr))

	if err != nil {
		return fmt.Errorf("fail to close producer %w", err)
	}

	return nil
}

func (s *kafkaBroker) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.p != nil
}

func (s *kafkaBroker) Publish(m *broker.Message) error {
	if m.Destination == "" {
		return ErrorNoTopic
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.p == nil {
		return broker.ErrorNotConnected
	}

	if _, _, err := s.p.SendMessage(toProducerMessage(m)); err != nil {
		return fmt.Errorf("fail to publish %w", err)
	}

	return nil
}

func toProducerMessage(m *broker.Message) *sarama.ProducerMessage {
	msg := &sarama.ProducerMessage{
		Topic: m.Destination,
		Value: sarama.ByteEncoder(m.Body),
	}

	if key, ok := m.Get("key"); ok {
		msg.Key = sarama.StringEncoder(key)
	}

	for k, v := range m.Header {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	return msg
}

func (s *kafkaBroker) Options() broker.Options {
	return s.opts
}

func (s *kafkaBroker) String() string {
	return "kafka-broker"
}

// NewBroker takes a comma separated list of bootstrap servers as address.
func NewBroker(opts ...broker.Option) broker.Broker {
	b := &kafkaBroker{
		opts:        broker.NewOptions(opts...),
		newProducer: sarama.NewSyncProducer,
	}

	if b.opts.Context != nil {
		if id, ok := b.opts.Context.Value(kafkaClientIDKey{}).(string); ok {
			b.clientID = id
		}
	}

	return b
}
