package main

import (
	"asyncpub"
	"asyncpub/broker/memory"
	"asyncpub/log"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func parseArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()

	var (
		cfg *Config
		err error
	)

	app := &cli.App{
		Name: "asyncpub",
		Commands: []*cli.Command{
			{
				Name:  "publish",
				Flags: publishFlags(),
				Action: func(c *cli.Context) error {
					cfg, err = buildConfig(c)

					return nil
				},
			},
		},
	}

	require.NoError(t, app.Run(append([]string{"asyncpub", "publish"}, args...)))

	return cfg, err
}

func TestBuildConfig_Defaults(t *testing.T) {
	cfg, err := parseArgs(t, "--addr", "localhost:61613", "--destination", "/queue/a", "hello", "world")
	require.NoError(t, err)

	assert.Equal(t, brokerStomp, cfg.Broker)
	assert.Equal(t, "localhost:61613", cfg.Addr)
	assert.Equal(t, "/queue/a", cfg.Destination)
	assert.Equal(t, []string{"hello", "world"}, cfg.Messages)
	assert.Equal(t, asyncpub.DefaultHeartbeat, cfg.Heartbeat)
	assert.Equal(t, asyncpub.DefaultIdleTimeout, cfg.IdleTimeout)
	assert.Equal(t, asyncpub.DefaultExitFlushTimeout, cfg.ExitFlushTimeout)
	assert.Equal(t, asyncpub.DefaultMaxRetry, cfg.MaxRetry)
	assert.Empty(t, cfg.Headers)
}

func TestBuildConfig_Overrides(t *testing.T) {
	cfg, err := parseArgs(t,
		"--broker", "KAFKA",
		"--addr", "k1:9092,k2:9092",
		"--destination", "events",
		"--header", "content-type=application/json",
		"--header", "key=order-1",
		"--idle-timeout=-1s",
		"--heartbeat", "50ms",
		"--exit-flush-timeout", "2s",
		"--max-retry=-1",
		"--client-id", "svc")
	require.NoError(t, err)

	assert.Equal(t, brokerKafka, cfg.Broker)
	assert.Equal(t, map[string]string{"content-type": "application/json", "key": "order-1"}, cfg.Headers)
	assert.Equal(t, -time.Second, cfg.IdleTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Heartbeat)
	assert.Equal(t, 2*time.Second, cfg.ExitFlushTimeout)
	assert.Equal(t, -1, cfg.MaxRetry)
	assert.Equal(t, "svc", cfg.ClientID)
}

func TestBuildConfig_ShortHeaderForm(t *testing.T) {
	cfg, err := parseArgs(t, "--broker", "memory", "--destination", "/queue/a", "-H", "a=1", "-H", "b=2")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, cfg.Headers)
}

func TestBuildConfig_Invalid(t *testing.T) {
	_, err := parseArgs(t, "--destination", "/queue/a")
	assert.ErrorIs(t, err, ErrorMissingAddr)

	_, err = parseArgs(t, "--broker", "nats", "--addr", "x", "--destination", "/queue/a")
	assert.ErrorIs(t, err, ErrorUnknownBroker)

	_, err = parseArgs(t, "--broker", "memory", "--destination", "/queue/a", "--header", "novalue")
	assert.ErrorIs(t, err, ErrorBadHeader)

	_, err = parseArgs(t, "--broker", "memory", "--destination", "/queue/a", "--heartbeat", "0s")
	assert.ErrorIs(t, err, ErrorBadHeartbeat)
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{Broker: brokerMemory, Destination: "/queue/a", Heartbeat: time.Millisecond}
	require.NoError(t, cfg.Validate())

	cfg.Destination = ""
	assert.ErrorIs(t, cfg.Validate(), ErrorNoDestination)

	cfg.Destination = "/queue/a"
	cfg.SystemInterval = -time.Second
	assert.ErrorIs(t, cfg.Validate(), ErrorBadInterval)

	cfg.SystemInterval = 0
	cfg.QoS = 3
	assert.ErrorIs(t, cfg.Validate(), ErrorBadQoS)
}

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"a=1", " b =x=y", "c="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y", "c": ""}, h)

	_, err = parseHeaders([]string{"=v"})
	assert.ErrorIs(t, err, ErrorBadHeader)
}

func TestNewBroker(t *testing.T) {
	for kind, want := range map[string]string{
		brokerStomp:  "stomp-broker",
		brokerRabbit: "rabbit-broker",
		brokerKafka:  "kafka-broker",
		brokerRedis:  "redis-broker",
		brokerMQTT:   "mqtt-broker",
		brokerMemory: "memory-broker",
	} {
		cfg := &Config{Broker: kind, Addr: "localhost:1", Name: "p", BrokerTimeout: time.Second, Exchange: "ex", ExchangeType: "topic"}
		b := newBroker(cfg, log.NewNop())

		assert.Equal(t, want, b.String(), kind)
		assert.Equal(t, "p", b.Options().Name, kind)
		assert.False(t, b.IsConnected(), kind)
	}
}

func TestFeed(t *testing.T) {
	cfg := &Config{
		Destination: "/queue/a",
		Headers:     map[string]string{"k": "v"},
	}

	b := memory.NewBroker()
	pub := asyncpub.NewPublisher(b, asyncpub.OptionWithHeartbeat(5*time.Millisecond))

	n, err := feed(context.Background(), pub, cfg, strings.NewReader("one\ntwo\nthree\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, pub.Len())

	cfg.Messages = []string{"arg"}
	n, err = feed(context.Background(), pub, cfg, strings.NewReader("ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pub.Start()
	pub.Stop()
	<-pub.Done()

	msgs := b.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "one", string(msgs[0].Body))
	assert.Equal(t, "arg", string(msgs[3].Body))
	assert.Equal(t, "v", msgs[0].Header["k"])
	assert.Equal(t, "/queue/a", msgs[0].Destination)
}

func TestFeed_StopsOnCancel(t *testing.T) {
	cfg := &Config{Destination: "/queue/a"}
	pub := asyncpub.NewPublisher(memory.NewBroker())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, w := io.Pipe()
	defer w.Close()

	n, err := feed(ctx, pub, cfg, r)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
