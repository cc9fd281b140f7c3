package redis

import (
	"asyncpub/broker"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBroker_Config(t *testing.T) {
	b := NewBroker(OptionWithConfig(5, 7, time.Minute)).(*redisBroker)

	assert.Equal(t, uint32(5), b.maxIdle)
	assert.Equal(t, uint32(7), b.maxActive)
	assert.Equal(t, time.Minute, b.idleTimeout)
	assert.Equal(t, "redis-broker", b.String())
}

func TestConnect_Unreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	b := NewBroker(
		broker.OptionWithAddr(addr),
		broker.OptionWithTimeout(time.Second))

	require.Error(t, b.Connect())
	assert.False(t, b.IsConnected())
	require.NoError(t, b.Disconnect())
}

func TestPublish_Guards(t *testing.T) {
	b := NewBroker()

	require.ErrorIs(t, b.Publish(&broker.Message{}), ErrorNoTopic)
	require.ErrorIs(t, b.Publish(&broker.Message{Destination: "c"}), broker.ErrorNotConnected)
}
