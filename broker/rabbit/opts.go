package rabbit

import (
	"asyncpub/broker"
	"context"
)

type rabbitExchangeKey struct{}

type rabbitExchange struct {
	Name string
	Kind string
}

func OptionWithExchange(name, kind string) broker.Option {
	return func(o *broker.Options) {
		if o.Context == nil {
			o.Context = context.Background()
		}

		o.Context = context.WithValue(o.Context, rabbitExchangeKey{}, &rabbitExchange{
			Name: name,
			Kind: kind,
		})
	}
}
