package broker

import "errors"

var ErrorNotConnected = errors.New("broker is not connected")

// Broker is the wire client a publisher drives. Only the publisher's worker
// goroutine calls into it, so implementations need not be safe for
// concurrent use beyond IsConnected.
type Broker interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	Publish(m *Message) error
	Options() Options
	String() string
}

type Message struct {
	Destination string
	Header      map[string]string
	Body        []byte
}

func (m *Message) Get(key string) (string, bool) {
	if m == nil || m.Header == nil {
		return "", false
	}

	v, ok := m.Header[key]

	return v, ok
}
