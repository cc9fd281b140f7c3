package redis

import (
	"asyncpub/broker"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"
)

var (
	ErrorNoConn  = errors.New("no redigo conn")
	ErrorNoTopic = errors.New("channel must not be empty")
)

const (
	DefaultMaxIdle     uint32        = 2
	DefaultMaxActive   uint32        = 4
	DefaultIdleTimeout time.Duration = 1000 * time.Millisecond
)

type redisBroker struct {
	opts        broker.Options
	maxIdle     uint32
	maxActive   uint32
	idleTimeout time.Duration

	mu   sync.Mutex
	pool *redis.Pool
}

func (b *redisBroker) String() string {
	return "redis-broker"
}

func (b *redisBroker) newPool() *redis.Pool {
	return &redis.Pool{
		MaxIdle:     int(b.maxIdle),
		MaxActive:   int(b.maxActive),
		IdleTimeout: b.idleTimeout,
		Dial: func() (redis.Conn, error) {
			c, err := redis.Dial("tcp", b.opts.Addr, redis.DialConnectTimeout(b.opts.Timeout))
			if err != nil {
				return nil, fmt.Errorf("failed to dial addr %w", err)
			}

			if b.opts.Password == "" {
				return c, nil
			}

			args := []interface{}{b.opts.Password}
			if b.opts.User != "" {
				args = []interface{}{b.opts.User, b.opts.Password}
			}

			if _, err := c.Do("AUTH", args...); err != nil {
				c.Close()

				return nil, fmt.Errorf("failed to auth %w", err)
			}

			return c, nil
		},
	}
}

func (b *redisBroker) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pool != nil {
		return nil
	}

	b.opts.Logger.Debug("redis.connecting", zap.String("addr", b.opts.Addr))

	pool := b.newPool()

	c := pool.Get()
	if c == nil {
		pool.Close()

		return ErrorNoConn
	}

	defer c.Close()

	if _, err := c.Do("PING"); err != nil {
		pool.Close()

		return fmt.Errorf("failed to ping %w", err)
	}

	b.pool = pool
	b.opts.Logger.Debug("redis.connected", zap.String("addr", b.opts.Addr))

	return nil
}

func (b *redisBroker) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pool == nil {
		return nil
	}

	err := b.pool.Close()
	b.pool = nil
	b.opts.Logger.Debug("redis.disconnected", zap.String("addr", b.opts.Addr))

	if err != nil {
		return fmt.Errorf("failed to disconnect %w", err)
	}

	return nil
}

func (b *redisBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.pool != nil
}

// Publish sends the body on a pub/sub channel. Redis pub/sub carries no
// headers, so they are not transmitted.
func (b *redisBroker) Publish(msg *broker.Message) error {
	if msg.Destination == "" {
		return ErrorNoTopic
	}

	b.mu.Lock()
	pool := b.pool
	b.mu.Unlock()

	if pool == nil {
		return broker.ErrorNotConnected
	}

	conn := pool.Get()
	defer conn.Close()

	if _, err := redis.Int(conn.Do("PUBLISH", msg.Destination, msg.Body)); err != nil {
		return fmt.Errorf("failed to publish %w", err)
	}

	return nil
}

func (b *redisBroker) Options() broker.Options {
	return b.opts
}

func NewBroker(opts ...broker.Option) broker.Broker {
	b := &redisBroker{
		opts:        broker.NewOptions(opts...),
		maxIdle:     DefaultMaxIdle,
		maxActive:   DefaultMaxActive,
		idleTimeout: DefaultIdleTimeout,
	}

	if b.opts.Context != nil {
		cfg, ok := b.opts.Context.Value(redisBrokerConfigKey{}).(*redisBrokerConfig)
		if ok {
			b.maxIdle = cfg.MaxIdle
			b.maxActive = cfg.MaxActive
			b.idleTimeout = cfg.IdleTimeout
		}
	}

	return b
}
