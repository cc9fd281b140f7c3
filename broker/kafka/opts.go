package kafka

import (
	"asyncpub/broker"
	"context"
)

type kafkaClientIDKey struct{}

func OptionWithClientID(id string) broker.Option {
	return func(o *broker.Options) {
		if o.Context == nil {
			o.Context = context.Background()
		}

		o.Context = context.WithValue(o.Context, kafkaClientIDKey{}, id)
	}
}
