package metrics

import (
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestInitMetrics(t *testing.T) {
	// Create fresh registry to avoid conflicts
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	m := InitMetrics("test", "service")

	if m == nil {
		t.Fatal("InitMetrics returned nil")
	}

	if m.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal should not be nil")
	}
	if m.OptimizeTotal == nil {
		t.Error("OptimizeTotal should not be nil")
	}
	if m.SolveDuration == nil {
		t.Error("SolveDuration should not be nil")
	}
	if m.MatrixProviderRequests == nil {
		t.Error("MatrixProviderRequests should not be nil")
	}
}

func TestGet(t *testing.T) {
	// Reset default metrics
	defaultMetrics = nil

	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	m := Get()
	if m == nil {
		t.Error("Get() should not return nil")
	}

	// Second call should return same instance
	m2 := Get()
	if m2 != m {
		t.Error("Get() should return same instance")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	m := InitMetrics("test", "http")

	// Should not panic
	m.RecordHTTPRequest("POST", "/api/v1/optimize", "200", 100*time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/v1/optimize", "400", 5*time.Millisecond)
}

func TestRecordOptimize(t *testing.T) {
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	m := InitMetrics("test", "optimize")

	m.RecordOptimize("cvrp", "success", 500*time.Millisecond, 3, 0)
	m.RecordOptimize("vrptw", "no_solution", 1*time.Second, 0, 5)
}

func TestRecordReroute(t *testing.T) {
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	m := InitMetrics("test", "reroute")

	m.RecordReroute("traffic", "success")
	m.RecordReroute("roadblock", "error")
}

func TestRecordMatrixBuild(t *testing.T) {
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	m := InitMetrics("test", "matrix")

	m.RecordMatrixBuild("haversine", 2*time.Millisecond)
	m.RecordMatrixBuild("api", 300*time.Millisecond)
	m.RecordMatrixBuild("cache", 1*time.Millisecond)
	m.RecordProviderCall("success")
	m.RecordProviderCall("fallback")
}

func TestRecordCacheAccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	m := InitMetrics("test", "cache")

	m.RecordCacheAccess("matrix", true)
	m.RecordCacheAccess("matrix", false)
	m.RecordCacheAccess("result", true)
}

func TestSetServiceInfo(t *testing.T) {
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	m := InitMetrics("test", "info")

	m.SetServiceInfo("1.0.0", "production")
}

func TestRuntimeCollector(t *testing.T) {
	collector := NewRuntimeCollector("test", "runtime")

	descCh := make(chan *prometheus.Desc, 16)
	collector.Describe(descCh)
	close(descCh)

	descs := 0
	for range descCh {
		descs++
	}

	metricCh := make(chan prometheus.Metric, 16)
	collector.Collect(metricCh)
	close(metricCh)

	got := 0
	for range metricCh {
		got++
	}
	if got != descs {
		t.Errorf("Collect emitted %d metrics for %d descriptors", got, descs)
	}
	if got != 6 {
		t.Errorf("metrics = %d, want 6", got)
	}
}

func TestRuntimeCollector_AfterGC(t *testing.T) {
	runtime.GC()

	reg := prometheus.NewRegistry()
	if err := reg.Register(NewRuntimeCollector("test", "gc")); err != nil {
		t.Fatalf("register: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families gathered")
	}
}

func TestHandler(t *testing.T) {
	handler := Handler()
	if handler == nil {
		t.Error("Handler() should not return nil")
	}
}
