package main

import (
	"asyncpub"
	"asyncpub/broker"
	"asyncpub/broker/stomp"
	"time"

	"github.com/urfave/cli/v2"
)

// publishFlags returns all CLI flags for the publish command
func publishFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
		},
		&cli.StringFlag{
			Name:    "broker",
			Aliases: []string{"b"},
			Usage:   "Broker kind (stomp, rabbit, kafka, redis, mqtt or memory)",
			EnvVars: []string{"BROKER"},
			Value:   brokerStomp,
		},
		&cli.StringFlag{
			Name:    "addr",
			Aliases: []string{"a"},
			Usage:   "Broker address; comma-separated for kafka, ws:// or wss:// for stomp over websocket",
			EnvVars: []string{"BROKER_ADDR"},
		},
		&cli.StringFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "Broker login",
			EnvVars: []string{"BROKER_USER"},
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "Broker passcode",
			EnvVars: []string{"BROKER_PASSWORD"},
		},
		&cli.DurationFlag{
			Name:    "broker-timeout",
			Usage:   "Dial and request timeout for the broker client",
			EnvVars: []string{"BROKER_TIMEOUT"},
			Value:   broker.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:     "destination",
			Aliases:  []string{"d"},
			Usage:    "Queue, topic, routing key or channel to publish to",
			EnvVars:  []string{"DESTINATION"},
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:    "header",
			Aliases: []string{"H"},
			Usage:   "Message header as key=value, repeatable; repeat one form, --header or -H, not both",
			EnvVars: []string{"HEADERS"},
		},
		&cli.StringFlag{
			Name:    "name",
			Usage:   "Publisher name used in logs and metric labels",
			EnvVars: []string{"PUBLISHER_NAME"},
			Value:   "asyncpub",
		},
		&cli.DurationFlag{
			Name:    "idle-timeout",
			Usage:   "Disconnect after this long without traffic; negative keeps the connection open",
			EnvVars: []string{"IDLE_TIMEOUT"},
			Value:   asyncpub.DefaultIdleTimeout,
		},
		&cli.DurationFlag{
			Name:    "heartbeat",
			Usage:   "Worker polling interval",
			EnvVars: []string{"HEARTBEAT"},
			Value:   asyncpub.DefaultHeartbeat,
		},
		&cli.DurationFlag{
			Name:    "exit-flush-timeout",
			Usage:   "How long to wait for queued messages on exit; negative waits until drained",
			EnvVars: []string{"EXIT_FLUSH_TIMEOUT"},
			Value:   asyncpub.DefaultExitFlushTimeout,
		},
		&cli.DurationFlag{
			Name:    "shutdown-timeout",
			Usage:   "How long to wait for the worker to exit after the flush",
			EnvVars: []string{"SHUTDOWN_TIMEOUT"},
			Value:   asyncpub.DefaultShutdownTimeout,
		},
		&cli.IntFlag{
			Name:    "max-retry",
			Usage:   "Retries per message after the first failure; negative retries forever",
			EnvVars: []string{"MAX_RETRY"},
			Value:   asyncpub.DefaultMaxRetry,
		},
		&cli.StringFlag{
			Name:    "exchange",
			Usage:   "RabbitMQ exchange to declare and publish to",
			EnvVars: []string{"RABBIT_EXCHANGE"},
		},
		&cli.StringFlag{
			Name:    "exchange-type",
			Usage:   "RabbitMQ exchange type",
			EnvVars: []string{"RABBIT_EXCHANGE_TYPE"},
			Value:   "direct",
		},
		&cli.StringFlag{
			Name:    "client-id",
			Usage:   "Kafka or MQTT client ID",
			EnvVars: []string{"KAFKA_CLIENT_ID"},
			Value:   "asyncpub",
		},
		&cli.StringFlag{
			Name:    "virtual-host",
			Usage:   "STOMP virtual host sent in the CONNECT frame",
			EnvVars: []string{"STOMP_VIRTUAL_HOST"},
		},
		&cli.DurationFlag{
			Name:    "stomp-heartbeat",
			Usage:   "STOMP heart-beat negotiated with the server",
			EnvVars: []string{"STOMP_HEARTBEAT"},
			Value:   stomp.DefaultHeartBeat,
		},
		&cli.IntFlag{
			Name:    "qos",
			Usage:   "MQTT quality of service (0, 1 or 2)",
			EnvVars: []string{"MQTT_QOS"},
		},
		&cli.BoolFlag{
			Name:    "retained",
			Usage:   "Publish MQTT messages with the retained flag",
			EnvVars: []string{"MQTT_RETAINED"},
		},
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "Listen address for /metrics and /heart; empty disables the server",
			EnvVars: []string{"METRICS_ADDR"},
		},
		&cli.DurationFlag{
			Name:    "system-interval",
			Usage:   "Sampling interval for memory and CPU gauges; zero disables sampling",
			EnvVars: []string{"SYSTEM_INTERVAL"},
			Value:   15 * time.Second,
		},
		&cli.StringFlag{
			Name:    "cpu-profile",
			Usage:   "Write a CPU profile of the whole run to this file",
			EnvVars: []string{"CPU_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "mem-profile",
			Usage:   "Write a heap profile to this file on exit",
			EnvVars: []string{"MEM_PROFILE"},
		},
	}
}
