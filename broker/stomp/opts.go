package stomp

import (
	"asyncpub/broker"
	"context"
	"time"
)

const DefaultHeartBeat = time.Minute

type stompConfigKey struct{}

type stompConfig struct {
	VirtualHost string
	HeartBeat   time.Duration
}

// OptionWithConfig sets the STOMP virtual host sent in CONNECT and the
// heart-beat negotiated with the server. A zero heartBeat disables it.
func OptionWithConfig(virtualHost string, heartBeat time.Duration) broker.Option {
	return func(o *broker.Options) {
		if o.Context == nil {
			o.Context = context.Background()
		}

		o.Context = context.WithValue(o.Context, stompConfigKey{}, &stompConfig{
			VirtualHost: virtualHost,
			HeartBeat:   heartBeat,
		})
	}
}
