package metrics

import (
	"asyncpub/util/timer"
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

const nb1024 = 1024

type System struct {
	memoryUse     prometheus.Gauge
	memoryPercent prometheus.Gauge
	cpuPercent    prometheus.Gauge
	t             timer.Ticker
}

// StartSystem samples process and host usage every interval until Stop.
func StartSystem(reg prometheus.Registerer, namespace string, interval time.Duration) (*System, error) {
	if namespace == "" {
		namespace = Namespace
	}

	s := &System{
		memoryUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_use_megabytes",
			Help:      "Memory obtained from the OS by the process",
		}),
		memoryPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_percent",
			Help:      "Host memory usage percent",
		}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cpu_percent",
			Help:      "Host CPU usage percent since the previous sample",
		}),
	}

	for _, c := range []prometheus.Collector{s.memoryUse, s.memoryPercent, s.cpuPercent} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector %w", err)
		}
	}

	s.sample()
	s.t = timer.NewTicker(interval, s.sample)

	return s, nil
}

func (s *System) sample() {
	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)
	s.memoryUse.Set(float64(m.Sys) / float64(nb1024*nb1024))

	if memInfo, err := mem.VirtualMemory(); err == nil {
		s.memoryPercent.Set(memInfo.UsedPercent)
	}

	// A zero interval compares against the previous call instead of blocking.
	if percent, err := cpu.Percent(0, false); err == nil && len(percent) > 0 {
		s.cpuPercent.Set(percent[0])
	}
}

func (s *System) Stop() {
	s.t.Stop()
}
