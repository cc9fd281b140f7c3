package asyncpub

import (
	"asyncpub/broker/memory"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_AddPublisher(t *testing.T) {
	a := NewApp()

	p1 := NewPublisher(memory.NewBroker(), OptionWithName("orders"))
	p2 := NewPublisher(memory.NewBroker(), OptionWithName("orders"))

	require.NoError(t, a.AddPublisher(p1))
	assert.ErrorIs(t, a.AddPublisher(p2), ErrorNameIsExist)

	got, err := a.Publisher("orders")
	require.NoError(t, err)
	assert.Equal(t, p1, got)

	_, err = a.Publisher("missing")
	assert.ErrorIs(t, err, ErrorPublisherIsNotExist)
}

func TestApp_RunFlushesOnCancel(t *testing.T) {
	b1 := memory.NewBroker()
	b2 := memory.NewBroker()

	p1 := NewPublisher(b1, OptionWithName("a"), OptionWithHeartbeat(hb))
	p2 := NewPublisher(b2, OptionWithName("b"), OptionWithHeartbeat(hb))
	p1.RegisterExitFlush(time.Second)

	a := NewApp(AppOptionWithShutdownTimeout(2 * time.Second))
	require.NoError(t, a.AddPublisher(p1, p2))

	p1.Send("/queue/a", []byte("1"), nil, nil)
	p2.Send("/queue/b", []byte("2"), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)

	go func() {
		errc <- a.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(b1.Messages()) == 1 && len(b2.Messages()) == 1
	}, time.Second, time.Millisecond)

	p1.Send("/queue/a", []byte("3"), nil, nil)
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return")
	}

	assert.Len(t, b1.Messages(), 2)
	assert.Equal(t, StateStopped, p1.State())
	assert.Equal(t, StateStopped, p2.State())
	assert.False(t, b1.IsConnected())
	assert.False(t, b2.IsConnected())
}

func TestApp_ShutdownTimeout(t *testing.T) {
	b := newFakeBroker()
	b.onPublish = func(int) error {
		time.Sleep(time.Second)

		return nil
	}

	p := NewPublisher(b, OptionWithName("slow"), OptionWithHeartbeat(hb))
	p.Send("/queue/a", []byte("x"), nil, nil)

	a := NewApp(AppOptionWithShutdownTimeout(50 * time.Millisecond))
	require.NoError(t, a.AddPublisher(p))
	a.Start()

	require.Eventually(t, p.IsSending, time.Second, time.Millisecond)

	assert.ErrorIs(t, a.Shutdown(), ErrorShutdownTimeout)
	assert.True(t, p.IsStopRequested())
}

func TestApp_ShutdownBoundedByExitFlush(t *testing.T) {
	const flush = 100 * time.Millisecond

	b := newFakeBroker()
	b.onPublish = func(int) error {
		time.Sleep(500 * time.Millisecond)

		return nil
	}

	p := NewPublisher(b, OptionWithName("slow"), OptionWithHeartbeat(hb))
	for i := 0; i < 6; i++ {
		p.Send("/queue/a", []byte("x"), nil, nil)
	}

	p.RegisterExitFlush(flush)

	a := NewApp()
	require.NoError(t, a.AddPublisher(p))
	a.Start()

	require.Eventually(t, p.IsSending, time.Second, time.Millisecond)

	start := time.Now()
	err := a.Shutdown()
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrorFlushIncomplete)
	assert.GreaterOrEqual(t, elapsed, flush)
	assert.Less(t, elapsed, flush+300*time.Millisecond)
	assert.Greater(t, p.Len(), 0)
	assert.True(t, p.IsStopRequested())
}
