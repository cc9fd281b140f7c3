package main

import (
	"asyncpub"
	"asyncpub/broker"
	"asyncpub/broker/kafka"
	"asyncpub/broker/memory"
	"asyncpub/broker/mqtt"
	"asyncpub/broker/rabbit"
	"asyncpub/broker/redis"
	"asyncpub/broker/stomp"
	"asyncpub/log"
	"asyncpub/metrics"
	"asyncpub/util/profile"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func run(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	level := log.INFO
	if cfg.Verbose {
		level = log.DEBUG
	}

	logger, err := log.New("asyncpub", level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	log.SetDefault(logger)

	logger.Info("config",
		zap.String("broker", cfg.Broker),
		zap.String("addr", cfg.Addr),
		zap.String("destination", cfg.Destination),
		zap.String("name", cfg.Name),
		zap.Duration("idleTimeout", cfg.IdleTimeout),
		zap.Duration("heartbeat", cfg.Heartbeat),
		zap.Duration("exitFlushTimeout", cfg.ExitFlushTimeout),
		zap.Int("maxRetry", cfg.MaxRetry),
		zap.String("metricsAddr", cfg.MetricsAddr))

	prof, err := profile.Start(cfg.CPUProfile, cfg.MemProfile)
	if err != nil {
		return fmt.Errorf("failed to start profile: %w", err)
	}
	defer prof.Stop()

	registry := prometheus.NewRegistry()

	m, err := metrics.New(registry, metrics.Namespace)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	if cfg.SystemInterval > 0 {
		sys, err := metrics.StartSystem(registry, metrics.Namespace, cfg.SystemInterval)
		if err != nil {
			return fmt.Errorf("failed to start system metrics: %w", err)
		}
		defer sys.Stop()
	}

	b := newBroker(cfg, logger)

	pub := asyncpub.NewPublisher(b,
		asyncpub.OptionWithName(cfg.Name),
		asyncpub.OptionWithIdleTimeout(cfg.IdleTimeout),
		asyncpub.OptionWithHeartbeat(cfg.Heartbeat),
		asyncpub.OptionWithExitFlushTimeout(cfg.ExitFlushTimeout),
		asyncpub.OptionWithMaxRetry(cfg.MaxRetry),
		asyncpub.OptionWithLogger(logger),
		asyncpub.OptionWithMetrics(m))
	pub.RegisterExitFlush(pub.Options().ExitFlushTimeout)

	app := asyncpub.NewApp(
		asyncpub.AppOptionWithShutdownTimeout(cfg.ShutdownTimeout),
		asyncpub.AppOptionWithLogger(logger))
	if err := app.AddPublisher(pub); err != nil {
		return fmt.Errorf("failed to add publisher: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// runCtx ends the app once the input is exhausted.
	runCtx, finish := context.WithCancel(ctx)
	defer finish()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer finish()

		return app.Run(gctx)
	})

	g.Go(func() error {
		defer finish()

		n, err := feed(gctx, pub, cfg, os.Stdin)
		logger.Info("input done", zap.Int("messages", n))

		return err
	})

	if cfg.MetricsAddr != "" {
		logger.Info("metrics server listening", zap.String("addr", "http://"+cfg.MetricsAddr+"/metrics"))

		g.Go(func() error {
			if err := metrics.Serve(gctx, cfg.MetricsAddr, registry); err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if mb, ok := b.(*memory.Broker); ok {
		for _, msg := range mb.Messages() {
			logger.Info("dry run message",
				zap.String("destination", msg.Destination),
				zap.Any("header", msg.Header),
				zap.ByteString("body", msg.Body))
		}
	}

	return nil
}

func newBroker(cfg *Config, logger *log.Logger) broker.Broker {
	opts := []broker.Option{
		broker.OptionWithName(cfg.Name),
		broker.OptionWithAddr(cfg.Addr),
		broker.OptionWithUser(cfg.User),
		broker.OptionWithPassword(cfg.Password),
		broker.OptionWithTimeout(cfg.BrokerTimeout),
		broker.OptionWithLogger(logger),
	}

	switch cfg.Broker {
	case brokerRabbit:
		if cfg.Exchange != "" {
			opts = append(opts, rabbit.OptionWithExchange(cfg.Exchange, cfg.ExchangeType))
		}

		return rabbit.NewBroker(opts...)
	case brokerKafka:
		return kafka.NewBroker(append(opts, kafka.OptionWithClientID(cfg.ClientID))...)
	case brokerRedis:
		return redis.NewBroker(opts...)
	case brokerMQTT:
		return mqtt.NewBroker(append(opts, mqtt.OptionWithConfig(cfg.ClientID, byte(cfg.QoS), cfg.Retained))...)
	case brokerMemory:
		return memory.NewBroker(opts...)
	default:
		return stomp.NewBroker(append(opts, stomp.OptionWithConfig(cfg.VirtualHost, cfg.StompBeat))...)
	}
}

// feed sends the positional messages, or every stdin line when there are
// none, until the input ends or ctx is done.
func feed(ctx context.Context, pub asyncpub.Publisher, cfg *Config, stdin io.Reader) (int, error) {
	send := func(body string) {
		pub.Send(cfg.Destination, []byte(body), cfg.Headers, nil)
	}

	if len(cfg.Messages) > 0 {
		for _, body := range cfg.Messages {
			send(body)
		}

		return len(cfg.Messages), nil
	}

	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		errc <- scanner.Err()
	}()

	var n int

EndFor:
	for {
		select {
		case <-ctx.Done():
			break EndFor
		case line, ok := <-lines:
			if !ok {
				break EndFor
			}

			send(line)
			n++
		}
	}

	select {
	case err := <-errc:
		if err != nil {
			return n, fmt.Errorf("failed to read stdin: %w", err)
		}
	default:
	}

	return n, nil
}
