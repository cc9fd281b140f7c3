package stomp

import (
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var Subprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// wsConn exposes a websocket as the byte stream the STOMP codec expects.
// Every Write becomes one binary message; reads run across message
// boundaries.
type wsConn struct {
	c   *websocket.Conn
	r   io.Reader
	wmu sync.Mutex
}

func dialWebsocket(u *url.URL, timeout time.Duration) (*wsConn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		Subprotocols:     Subprotocols,
	}

	c, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	return &wsConn{c: c}, nil
}

func (w *wsConn) Read(p []byte) (int, error) {
	for {
		if w.r == nil {
			_, r, err := w.c.NextReader()
			if err != nil {
				return 0, err
			}

			w.r = r
		}

		n, err := w.r.Read(p)
		if err == io.EOF {
			w.r = nil

			if n > 0 {
				return n, nil
			}

			continue
		}

		return n, err
	}
}

func (w *wsConn) Write(p []byte) (int, error) {
	w.wmu.Lock()
	defer w.wmu.Unlock()

	if err := w.c.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}

	return len(p), nil
}

func (w *wsConn) Close() error {
	w.wmu.Lock()
	_ = w.c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.wmu.Unlock()

	return w.c.Close()
}
