package mqtt

import (
	"asyncpub/broker"
	"context"
)

type mqttBrokerConfigKey struct{}

type mqttBrokerConfig struct {
	ClientID string
	QoS      byte
	Retained bool
}

func OptionWithConfig(clientID string, qos byte, retained bool) broker.Option {
	return func(o *broker.Options) {
		if o.Context == nil {
			o.Context = context.Background()
		}

		o.Context = context.WithValue(o.Context, mqttBrokerConfigKey{}, &mqttBrokerConfig{
			ClientID: clientID,
			QoS:      qos,
			Retained: retained,
		})
	}
}
