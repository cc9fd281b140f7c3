package broker

import (
	"asyncpub/log"
	"context"
	"time"
)

const DefaultTimeout = 10 * time.Second

type Options struct {
	Name     string
	Addr     string
	User     string
	Password string
	Timeout  time.Duration
	Logger   *log.Logger
	Context  context.Context
}

type Option func(*Options)

func NewOptions(opts ...Option) Options {
	o := Options{
		Timeout: DefaultTimeout,
	}

	for _, f := range opts {
		f(&o)
	}

	if o.Logger == nil {
		o.Logger = log.NewNop()
	}

	return o
}

func OptionWithName(n string) Option {
	return func(o *Options) {
		o.Name = n
	}
}

func OptionWithAddr(a string) Option {
	return func(o *Options) {
		o.Addr = a
	}
}

func OptionWithUser(u string) Option {
	return func(o *Options) {
		o.User = u
	}
}

func OptionWithPassword(p string) Option {
	return func(o *Options) {
		o.Password = p
	}
}

func OptionWithTimeout(t time.Duration) Option {
	return func(o *Options) {
		o.Timeout = t
	}
}

func OptionWithLogger(l *log.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func OptionWithContext(ctx context.Context) Option {
	return func(o *Options) {
		o.Context = ctx
	}
}
