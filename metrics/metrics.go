package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "asyncpub"

	ReasonIdle        = "idle"
	ReasonStop        = "stop"
	ReasonError       = "error"
	ReasonRetry       = "retry"
	ReasonPanic       = "panic"
	ReasonUnavailable = "unavailable"
)

// Metrics collects per-publisher counters. Every method is safe to call on
// a nil *Metrics so publishers can run without instrumentation.
type Metrics struct {
	queued         *prometheus.CounterVec
	sent           *prometheus.CounterVec
	transmitErrors *prometheus.CounterVec
	connectErrors  *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	connects       *prometheus.CounterVec
	disconnects    *prometheus.CounterVec

	queueLen  *prometheus.GaugeVec
	connected *prometheus.GaugeVec

	publishDuration  *prometheus.HistogramVec
	finalizeDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = Namespace
	}

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, append([]string{"publisher"}, labels...))
	}

	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"publisher"})
	}

	m := &Metrics{
		queued:         counter("messages_queued_total", "Messages accepted by Send"),
		sent:           counter("messages_sent_total", "Messages published to the broker"),
		transmitErrors: counter("transmit_errors_total", "Failed publish attempts"),
		connectErrors:  counter("connect_errors_total", "Failed connect attempts"),
		dropped:        counter("messages_dropped_total", "Messages given up on", "reason"),
		connects:       counter("connects_total", "Successful broker connects"),
		disconnects:    counter("disconnects_total", "Broker disconnects", "reason"),
		queueLen:       gauge("queue_length", "Messages waiting in the local queue"),
		connected:      gauge("connected", "1 while the broker connection is open"),
		publishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent in a single broker publish",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"publisher"}),
		finalizeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "finalize_duration_seconds",
			Help:      "Time spent waiting for the queue to drain on exit",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"publisher"}),
	}

	for _, c := range []prometheus.Collector{
		m.queued, m.sent, m.transmitErrors, m.connectErrors, m.dropped,
		m.connects, m.disconnects, m.queueLen, m.connected,
		m.publishDuration, m.finalizeDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) MessageQueued(publisher string, queueLen int) {
	if m == nil {
		return
	}

	m.queued.WithLabelValues(publisher).Inc()
	m.queueLen.WithLabelValues(publisher).Set(float64(queueLen))
}

func (m *Metrics) MessageSent(publisher string, d time.Duration, queueLen int) {
	if m == nil {
		return
	}

	m.sent.WithLabelValues(publisher).Inc()
	m.publishDuration.WithLabelValues(publisher).Observe(d.Seconds())
	m.queueLen.WithLabelValues(publisher).Set(float64(queueLen))
}

func (m *Metrics) TransmitError(publisher string) {
	if m == nil {
		return
	}

	m.transmitErrors.WithLabelValues(publisher).Inc()
}

func (m *Metrics) ConnectError(publisher string) {
	if m == nil {
		return
	}

	m.connectErrors.WithLabelValues(publisher).Inc()
}

func (m *Metrics) MessagesDropped(publisher, reason string, n int) {
	if m == nil || n <= 0 {
		return
	}

	m.dropped.WithLabelValues(publisher, reason).Add(float64(n))
}

func (m *Metrics) Connected(publisher string) {
	if m == nil {
		return
	}

	m.connects.WithLabelValues(publisher).Inc()
	m.connected.WithLabelValues(publisher).Set(1)
}

func (m *Metrics) Disconnected(publisher, reason string) {
	if m == nil {
		return
	}

	m.disconnects.WithLabelValues(publisher, reason).Inc()
	m.connected.WithLabelValues(publisher).Set(0)
}

func (m *Metrics) Finalized(publisher string, d time.Duration, queueLen int) {
	if m == nil {
		return
	}

	m.finalizeDuration.WithLabelValues(publisher).Observe(d.Seconds())
	m.queueLen.WithLabelValues(publisher).Set(float64(queueLen))
}
