package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// runtimeMetric связывает дескриптор с функцией чтения значения из MemStats
type runtimeMetric struct {
	desc *prometheus.Desc
	typ  prometheus.ValueType
	read func(*runtime.MemStats) float64
}

// RuntimeCollector отдаёт метрики Go runtime: горутины, память, GC.
// Регистрируется вместе с остальными метриками в InitMetrics.
type RuntimeCollector struct {
	metrics []runtimeMetric
}

// NewRuntimeCollector создаёт коллектор runtime-метрик
func NewRuntimeCollector(namespace, subsystem string) *RuntimeCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}

	return &RuntimeCollector{metrics: []runtimeMetric{
		{
			desc: desc("runtime_goroutines", "Number of goroutines"),
			typ:  prometheus.GaugeValue,
			read: func(*runtime.MemStats) float64 { return float64(runtime.NumGoroutine()) },
		},
		{
			desc: desc("runtime_memory_alloc_bytes", "Bytes allocated and still in use"),
			typ:  prometheus.GaugeValue,
			read: func(s *runtime.MemStats) float64 { return float64(s.Alloc) },
		},
		{
			desc: desc("runtime_memory_total_alloc_bytes", "Total bytes allocated (even if freed)"),
			typ:  prometheus.CounterValue,
			read: func(s *runtime.MemStats) float64 { return float64(s.TotalAlloc) },
		},
		{
			desc: desc("runtime_memory_sys_bytes", "Bytes obtained from system"),
			typ:  prometheus.GaugeValue,
			read: func(s *runtime.MemStats) float64 { return float64(s.Sys) },
		},
		{
			desc: desc("runtime_gc_runs_total", "Total number of completed GC cycles"),
			typ:  prometheus.CounterValue,
			read: func(s *runtime.MemStats) float64 { return float64(s.NumGC) },
		},
		{
			desc: desc("runtime_gc_last_pause_seconds", "Duration of the most recent GC pause"),
			typ:  prometheus.GaugeValue,
			read: func(s *runtime.MemStats) float64 {
				if s.NumGC == 0 {
					return 0
				}
				return float64(s.PauseNs[(s.NumGC-1)%uint32(len(s.PauseNs))]) / 1e9
			},
		},
	}}
}

// Describe implements prometheus.Collector
func (c *RuntimeCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector
func (c *RuntimeCollector) Collect(ch chan<- prometheus.Metric) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.typ, m.read(&stats))
	}
}
