package stomp

import (
	"asyncpub/broker"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var ErrorNoDestination = errors.New("destination must not be empty")

type stompBroker struct {
	opts broker.Options
	cfg  stompConfig

	mu   sync.Mutex
	conn *stomp.Conn
	lost *atomic.Bool
}

// trackedConn flags the first read or write failure on the transport, so a
// connection the server dropped stops reporting itself as open.
type trackedConn struct {
	io.ReadWriteCloser
	lost *atomic.Bool
}

func (c *trackedConn) Read(p []byte) (int, error) {
	n, err := c.ReadWriteCloser.Read(p)
	if err != nil {
		c.lost.Store(true)
	}

	return n, err
}

func (c *trackedConn) Write(p []byte) (int, error) {
	n, err := c.ReadWriteCloser.Write(p)
	if err != nil {
		c.lost.Store(true)
	}

	return n, err
}

func (s *stompBroker) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		if !s.lost.Load() {
			return nil
		}

		s.opts.Logger.Warn("stomp.connection lost", zap.String("addr", s.opts.Addr))
		_ = s.conn.MustDisconnect()
		s.conn = nil
	}

	s.opts.Logger.Debug("stomp.connecting", zap.String("addr", s.opts.Addr))

	transport, host, err := s.dial()
	if err != nil {
		return fmt.Errorf("failed to dial %s %w", s.opts.Addr, err)
	}

	s.opts.Logger.Debug("stomp.transport connected", zap.String("addr", s.opts.Addr))

	if s.cfg.VirtualHost != "" {
		host = s.cfg.VirtualHost
	}

	lost := atomic.NewBool(false)
	transport = &trackedConn{ReadWriteCloser: transport, lost: lost}

	conn, err := stomp.Connect(transport,
		stomp.ConnOpt.Login(s.opts.User, s.opts.Password),
		stomp.ConnOpt.Host(host),
		stomp.ConnOpt.HeartBeat(s.cfg.HeartBeat, s.cfg.HeartBeat))
	if err != nil {
		transport.Close()

		return fmt.Errorf("failed to connect stomp %w", err)
	}

	s.conn = conn
	s.lost = lost
	s.opts.Logger.Debug("stomp.connected",
		zap.String("server", conn.Server()),
		zap.String("version", conn.Version().String()))

	return nil
}

func (s *stompBroker) dial() (io.ReadWriteCloser, string, error) {
	u, err := url.Parse(s.opts.Addr)
	if err == nil && (u.Scheme == "ws" || u.Scheme == "wss") {
		c, err := dialWebsocket(u, s.opts.Timeout)
		if err != nil {
			return nil, "", err
		}

		return c, u.Hostname(), nil
	}

	addr := s.opts.Addr
	if err == nil && u.Scheme == "tcp" {
		addr = u.Host
	}

	c, err := net.DialTimeout("tcp", addr, s.opts.Timeout)
	if err != nil {
		return nil, "", err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	return c, host, nil
}

func (s *stompBroker) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	var err error
	if s.lost.Load() {
		err = s.conn.MustDisconnect()
	} else {
		err = s.conn.Disconnect()
	}
	s.conn = nil
	s.opts.Logger.Debug("stomp.disconnected", zap.String("addr", s.opts.Addr))

	if err != nil && !errors.Is(err, stomp.ErrAlreadyClosed) {
		return fmt.Errorf("failed to disconnect %w", err)
	}

	return nil
}

func (s *stompBroker) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn != nil && !s.lost.Load()
}

func (s *stompBroker) Publish(m *broker.Message) error {
	destination := m.Destination
	if destination == "" {
		destination, _ = m.Get(frame.Destination)
	}

	if destination == "" {
		return ErrorNoDestination
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.lost.Load() {
		return broker.ErrorNotConnected
	}

	contentType, _ := m.Get(frame.ContentType)

	err := s.conn.Send(destination, contentType, m.Body, sendOpts(m.Header)...)
	if err == nil {
		return nil
	}

	if errors.Is(err, stomp.ErrAlreadyClosed) || errors.Is(err, stomp.ErrClosedUnexpectedly) {
		s.opts.Logger.Warn("stomp.connection lost", zap.String("addr", s.opts.Addr))
		s.conn = nil
	}

	return fmt.Errorf("failed to send %w", err)
}

func sendOpts(header map[string]string) []func(*frame.Frame) error {
	opts := make([]func(*frame.Frame) error, 0, len(header))

	for k, v := range header {
		switch k {
		case frame.Destination, frame.ContentType, frame.ContentLength:
			continue
		}

		opts = append(opts, stomp.SendOpt.Header(k, v))
	}

	return opts
}

func (s *stompBroker) Options() broker.Options {
	return s.opts
}

func (s *stompBroker) String() string {
	return "stomp-broker"
}

// NewBroker accepts host:port, tcp://host:port or ws(s)://host:port/path
// addresses.
func NewBroker(opts ...broker.Option) broker.Broker {
	b := &stompBroker{
		opts: broker.NewOptions(opts...),
		cfg: stompConfig{
			HeartBeat: DefaultHeartBeat,
		},
	}

	if b.opts.Context != nil {
		if cfg, ok := b.opts.Context.Value(stompConfigKey{}).(*stompConfig); ok {
			b.cfg = *cfg
		}
	}

	return b
}
