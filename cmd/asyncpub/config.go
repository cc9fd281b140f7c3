package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

const (
	brokerStomp  = "stomp"
	brokerRabbit = "rabbit"
	brokerKafka  = "kafka"
	brokerRedis  = "redis"
	brokerMQTT   = "mqtt"
	brokerMemory = "memory"
)

var (
	ErrorUnknownBroker = errors.New("unknown broker")
	ErrorMissingAddr   = errors.New("broker address is required")
	ErrorBadHeader     = errors.New("header must be key=value")
	ErrorBadHeartbeat  = errors.New("heartbeat must be positive")
	ErrorNoDestination = errors.New("destination is required")
	ErrorBadInterval   = errors.New("system interval must not be negative")
	ErrorBadQoS        = errors.New("qos must be 0, 1 or 2")
)

// Config holds all configuration for the publish command
type Config struct {
	Verbose bool

	// Broker settings
	Broker        string
	Addr          string
	User          string
	Password      string
	BrokerTimeout time.Duration
	Exchange      string
	ExchangeType  string
	ClientID      string
	VirtualHost   string
	StompBeat     time.Duration
	QoS           int
	Retained      bool

	// Message settings
	Destination string
	Headers     map[string]string
	Messages    []string

	// Publisher settings
	Name             string
	IdleTimeout      time.Duration
	Heartbeat        time.Duration
	ExitFlushTimeout time.Duration
	ShutdownTimeout  time.Duration
	MaxRetry         int

	// Metrics settings
	MetricsAddr    string
	SystemInterval time.Duration

	// Profiling settings
	CPUProfile string
	MemProfile string
}

// buildConfig builds a Config from CLI context flags
func buildConfig(c *cli.Context) (*Config, error) {
	headers, err := parseHeaders(c.StringSlice("header"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Verbose:          c.Bool("verbose"),
		Broker:           strings.ToLower(c.String("broker")),
		Addr:             c.String("addr"),
		User:             c.String("user"),
		Password:         c.String("password"),
		BrokerTimeout:    c.Duration("broker-timeout"),
		Exchange:         c.String("exchange"),
		ExchangeType:     c.String("exchange-type"),
		ClientID:         c.String("client-id"),
		VirtualHost:      c.String("virtual-host"),
		StompBeat:        c.Duration("stomp-heartbeat"),
		QoS:              c.Int("qos"),
		Retained:         c.Bool("retained"),
		Destination:      c.String("destination"),
		Headers:          headers,
		Messages:         c.Args().Slice(),
		Name:             c.String("name"),
		IdleTimeout:      c.Duration("idle-timeout"),
		Heartbeat:        c.Duration("heartbeat"),
		ExitFlushTimeout: c.Duration("exit-flush-timeout"),
		ShutdownTimeout:  c.Duration("shutdown-timeout"),
		MaxRetry:         c.Int("max-retry"),
		MetricsAddr:      c.String("metrics-addr"),
		SystemInterval:   c.Duration("system-interval"),
		CPUProfile:       c.String("cpu-profile"),
		MemProfile:       c.String("mem-profile"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Broker {
	case brokerStomp, brokerRabbit, brokerKafka, brokerRedis, brokerMQTT:
		if c.Addr == "" {
			return fmt.Errorf("%s: %w", c.Broker, ErrorMissingAddr)
		}
	case brokerMemory:
	default:
		return fmt.Errorf("%q: %w", c.Broker, ErrorUnknownBroker)
	}

	if c.Destination == "" {
		return ErrorNoDestination
	}

	if c.Heartbeat <= 0 {
		return ErrorBadHeartbeat
	}

	if c.SystemInterval < 0 {
		return ErrorBadInterval
	}

	if c.QoS < 0 || c.QoS > 2 {
		return ErrorBadQoS
	}

	return nil
}

func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))

	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)

		if !ok || k == "" {
			return nil, fmt.Errorf("%q: %w", kv, ErrorBadHeader)
		}

		headers[k] = v
	}

	return headers, nil
}
