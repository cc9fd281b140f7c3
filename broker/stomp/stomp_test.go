package stomp

import (
	"asyncpub/broker"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/server"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func startServer(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = server.Serve(l)
	}()

	t.Cleanup(func() {
		l.Close()
	})

	return l.Addr().String()
}

func TestPublish_RoundTrip(t *testing.T) {
	addr := startServer(t)

	consumer, err := stomp.Dial("tcp", addr)
	require.NoError(t, err)
	defer consumer.Disconnect()

	sub, err := consumer.Subscribe("/queue/test", stomp.AckAuto)
	require.NoError(t, err)

	b := NewBroker(
		broker.OptionWithAddr("tcp://"+addr),
		broker.OptionWithTimeout(time.Second),
		OptionWithConfig("", 0))

	require.NoError(t, b.Connect())
	require.NoError(t, b.Connect())
	assert.True(t, b.IsConnected())

	err = b.Publish(&broker.Message{
		Destination: "/queue/test",
		Header: map[string]string{
			"destination":          "/queue/test",
			"content-type":         "text/plain",
			"_publisher_timestamp": "1700000000.000000",
		},
		Body: []byte("Hello World!"),
	})
	require.NoError(t, err)

	select {
	case msg := <-sub.C:
		require.NoError(t, msg.Err)
		assert.Equal(t, "Hello World!", string(msg.Body))
		assert.Equal(t, "1700000000.000000", msg.Header.Get("_publisher_timestamp"))
		assert.True(t, strings.HasPrefix(msg.ContentType, "text/plain"))
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}

	require.NoError(t, b.Disconnect())
	require.NoError(t, b.Disconnect())
	assert.False(t, b.IsConnected())
}

func TestConnect_Unreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	b := NewBroker(broker.OptionWithAddr(addr), broker.OptionWithTimeout(time.Second))

	require.Error(t, b.Connect())
	assert.False(t, b.IsConnected())
}

func TestPublish_Guards(t *testing.T) {
	b := NewBroker()

	require.ErrorIs(t, b.Publish(&broker.Message{}), ErrorNoDestination)
	require.ErrorIs(t, b.Publish(&broker.Message{
		Header: map[string]string{"destination": "/topic/x"},
	}), broker.ErrorNotConnected)
	assert.Equal(t, "stomp-broker", b.String())
}

func TestSendOpts_SkipsReserved(t *testing.T) {
	opts := sendOpts(map[string]string{
		"destination":    "/queue/a",
		"content-type":   "text/plain",
		"content-length": "3",
		"a":              "1",
	})

	assert.Len(t, opts, 1)
}

func TestWsConn_MessageStream(t *testing.T) {
	upgrader := websocket.Upgrader{Subprotocols: Subprotocols}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}

			if err := c.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	u, err := url.Parse("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)

	c, err := dialWebsocket(u, time.Second)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Write([]byte("CONN"))
	require.NoError(t, err)
	_, err = c.Write([]byte("ECT\n"))
	require.NoError(t, err)

	buf := make([]byte, 8)
	got := ""

	for len(got) < len("CONNECT\n") {
		n, err := c.Read(buf)
		require.NoError(t, err)
		got += string(buf[:n])
	}

	assert.Equal(t, "CONNECT\n", got)
}

type recordingListener struct {
	net.Listener

	mu    sync.Mutex
	conns []net.Conn
}

func (l *recordingListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err == nil {
		l.mu.Lock()
		l.conns = append(l.conns, c)
		l.mu.Unlock()
	}

	return c, err
}

func (l *recordingListener) dropAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range l.conns {
		c.Close()
	}

	l.conns = nil
}

func TestConnect_ServerDropsConnection(t *testing.T) {
	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	l := &recordingListener{Listener: inner}

	go func() {
		_ = server.Serve(l)
	}()

	t.Cleanup(func() {
		inner.Close()
	})

	b := NewBroker(
		broker.OptionWithAddr(inner.Addr().String()),
		broker.OptionWithTimeout(time.Second),
		OptionWithConfig("", 0))

	require.NoError(t, b.Connect())
	assert.True(t, b.IsConnected())

	l.dropAll()

	assert.Eventually(t, func() bool {
		return !b.IsConnected()
	}, 5*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, b.Publish(&broker.Message{Destination: "/queue/test", Body: []byte("x")}),
		broker.ErrorNotConnected)

	require.NoError(t, b.Connect())
	assert.True(t, b.IsConnected())
	require.NoError(t, b.Publish(&broker.Message{Destination: "/queue/test", Body: []byte("x")}))
	require.NoError(t, b.Disconnect())
	assert.False(t, b.IsConnected())
}

type failingRW struct {
	err error
}

func (f failingRW) Read(p []byte) (int, error)  { return 0, f.err }
func (f failingRW) Write(p []byte) (int, error) { return 0, f.err }
func (f failingRW) Close() error                { return nil }

func TestTrackedConn_FlagsFailures(t *testing.T) {
	c := &trackedConn{ReadWriteCloser: failingRW{}, lost: atomic.NewBool(false)}

	_, err := c.Write([]byte("x"))
	require.NoError(t, err)
	_, err = c.Read(make([]byte, 1))
	require.NoError(t, err)
	assert.False(t, c.lost.Load())

	c = &trackedConn{ReadWriteCloser: failingRW{err: io.EOF}, lost: atomic.NewBool(false)}
	_, err = c.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, c.lost.Load())

	c = &trackedConn{ReadWriteCloser: failingRW{err: net.ErrClosed}, lost: atomic.NewBool(false)}
	_, err = c.Write([]byte("x"))
	assert.ErrorIs(t, err, net.ErrClosed)
	assert.True(t, c.lost.Load())
}
