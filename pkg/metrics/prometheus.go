package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик
type Metrics struct {
	// HTTP метрики
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Бизнес-метрики
	OptimizeTotal      *prometheus.CounterVec
	RerouteTotal       *prometheus.CounterVec
	SolveDuration      *prometheus.HistogramVec
	SolverIterations   *prometheus.HistogramVec
	RoutesPerSolve     *prometheus.HistogramVec
	UnassignedPerSolve *prometheus.HistogramVec
	ProblemLocations   *prometheus.HistogramVec

	// Матрица расстояний
	MatrixProviderRequests *prometheus.CounterVec
	MatrixBuildDuration    *prometheus.HistogramVec

	// Кэш
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics инициализирует метрики
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		// HTTP метрики
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Бизнес-метрики
		OptimizeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "optimize_operations_total",
				Help:      "Total number of optimize operations",
			},
			[]string{"mode", "status"},
		),

		RerouteTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reroute_operations_total",
				Help:      "Total number of reroute operations",
			},
			[]string{"reason", "status"},
		),

		SolveDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_duration_seconds",
				Help:      "Duration of solver runs",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),

		SolverIterations: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solver_iterations",
				Help:      "Local search iterations per solve",
				Buckets:   []float64{10, 100, 1000, 10000, 100000, 1000000},
			},
			[]string{"mode"},
		),

		RoutesPerSolve: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "routes_per_solve",
				Help:      "Number of vehicle routes in returned solutions",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"mode"},
		),

		UnassignedPerSolve: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "unassigned_deliveries_per_solve",
				Help:      "Number of deliveries left unassigned",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"mode"},
		),

		ProblemLocations: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "problem_locations",
				Help:      "Number of locations in processed problems",
				Buckets:   []float64{2, 5, 10, 25, 50, 100, 250, 500},
			},
			[]string{"operation"},
		),

		// Матрица расстояний
		MatrixProviderRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "matrix_provider_requests_total",
				Help:      "Distance matrix provider calls by outcome",
			},
			[]string{"outcome"},
		),

		MatrixBuildDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "matrix_build_duration_seconds",
				Help:      "Duration of distance matrix construction",
				Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5, 15, 30},
			},
			[]string{"source"},
		),

		// Кэш
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_hits_total",
				Help:      "Cache hits by cache name",
			},
			[]string{"cache"},
		),

		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_misses_total",
				Help:      "Cache misses by cache name",
			},
			[]string{"cache"},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	prometheus.MustRegister(NewRuntimeCollector(namespace, subsystem))

	defaultMetrics = m
	return m
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("routeopt", "")
	}
	return defaultMetrics
}

// RecordHTTPRequest записывает метрики HTTP запроса
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordOptimize записывает метрики операции оптимизации
func (m *Metrics) RecordOptimize(mode, status string, duration time.Duration, routes, unassigned int) {
	m.OptimizeTotal.WithLabelValues(mode, status).Inc()
	m.SolveDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.RoutesPerSolve.WithLabelValues(mode).Observe(float64(routes))
	m.UnassignedPerSolve.WithLabelValues(mode).Observe(float64(unassigned))
}

// RecordReroute записывает метрики операции перестроения
func (m *Metrics) RecordReroute(reason, status string) {
	m.RerouteTotal.WithLabelValues(reason, status).Inc()
}

// RecordMatrixBuild записывает метрики построения матрицы
func (m *Metrics) RecordMatrixBuild(source string, duration time.Duration) {
	m.MatrixBuildDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordProviderCall записывает исход обращения к провайдеру матриц
func (m *Metrics) RecordProviderCall(outcome string) {
	m.MatrixProviderRequests.WithLabelValues(outcome).Inc()
}

// RecordCacheAccess записывает попадание или промах кэша
func (m *Metrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(cache).Inc()
	} else {
		m.CacheMisses.WithLabelValues(cache).Inc()
	}
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer запускает HTTP сервер для метрик
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		// Игнорируем ошибку записи - response уже отправлен
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, ошибка записи не критична
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
