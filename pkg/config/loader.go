package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "ROUTEOPT_"
	configEnvVar = "CONFIG_PATH"
)

// Loader собирает конфигурацию из нескольких источников
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
	envKeys     map[string]string
}

// NewLoader создаёт новый загрузчик конфигурации
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/routeopt/config.yaml",
		},
		envPrefix: envPrefix,
		envKeys:   buildEnvKeyIndex(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption - опция для конфигурации загрузчика
type LoaderOption func(*Loader)

// WithConfigPaths устанавливает пути поиска конфигурации
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix устанавливает префикс переменных окружения
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load собирает конфигурацию по приоритету источников:
// defaults < yaml-файл < переменные окружения.
func (l *Loader) Load() (*Config, error) {
	// .env файл подхватываем до чтения окружения; отсутствие файла не ошибка
	_ = godotenv.Load()

	if err := l.k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Файл не обязателен: без него работаем на defaults и окружении
	if err := l.loadConfigFile(); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	// Плоские переменные без префикса (GOOGLE_MAPS_API_KEY и т.п.)
	if err := l.loadFlatEnv(); err != nil {
		return nil, fmt.Errorf("failed to load flat env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// defaults возвращает значения по умолчанию для всех секций конфига
func defaults() map[string]any {
	return map[string]any{
		// App
		"app.name":        "optimizer-svc",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,
		"app.testing":     false,

		// HTTP
		"http.port":             8080,
		"http.read_timeout":     30 * time.Second,
		"http.write_timeout":    60 * time.Second,
		"http.shutdown_timeout": 30 * time.Second,
		// CORS - явно указываем Authorization!
		"http.cors.enabled":           true,
		"http.cors.allowed_origins":   []string{"*"},
		"http.cors.allowed_methods":   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		"http.cors.allowed_headers":   []string{"Content-Type", "Authorization", "Accept", "Origin", "X-Requested-With", "X-API-Key", "X-Request-Id"},
		"http.cors.exposed_headers":   []string{"X-Request-Id"},
		"http.cors.allow_credentials": false,
		"http.cors.max_age":           86400,

		// Log
		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		// Metrics
		"metrics.enabled":   true,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "routeopt",
		"metrics.subsystem": "",

		// Tracing
		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "optimizer-svc",
		"tracing.sample_rate":  0.1,

		// Database
		"database.enabled":            false,
		"database.driver":             "postgres",
		"database.host":               "localhost",
		"database.port":               5432,
		"database.database":           "routeopt",
		"database.username":           "postgres",
		"database.password":           "",
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  5 * time.Minute,
		"database.conn_max_idle_time": 5 * time.Minute,
		"database.auto_migrate":       true,

		// Cache
		"cache.enabled":     true,
		"cache.driver":      "memory",
		"cache.host":        "localhost",
		"cache.port":        6379,
		"cache.db":          0,
		"cache.default_ttl": 5 * time.Minute,
		"cache.max_entries": 10000,

		// Rate Limit
		"rate_limit.enabled":          true,
		"rate_limit.requests":         100,
		"rate_limit.window":           time.Minute,
		"rate_limit.strategy":         "sliding_window",
		"rate_limit.backend":          "memory",
		"rate_limit.burst_size":       10,
		"rate_limit.cleanup_interval": 5 * time.Minute,

		// Audit
		"audit.enabled":      true,
		"audit.backend":      "stdout",
		"audit.buffer_size":  1000,
		"audit.flush_period": 5 * time.Second,

		// Auth
		"auth.enabled":              false,
		"auth.access_token_expiry":  15 * time.Minute,
		"auth.refresh_token_expiry": 7 * 24 * time.Hour,
		"auth.issuer":               "routeopt",

		// Swagger
		"swagger.enabled": true,
		"swagger.title":   "Route Optimization API",

		// Maps provider
		"maps.api_key":             "",
		"maps.api_url":             "https://maps.googleapis.com/maps/api/distancematrix/json",
		"maps.use_api_by_default":  false,
		"maps.timeout":             10 * time.Second,
		"maps.max_retries":         3,
		"maps.backoff_factor":      2,
		"maps.retry_delay_seconds": 1,
		"maps.cache_expiry_days":   30,
		"maps.batch_size":          10,

		// Solver
		"solver.distance_scaling_factor":  100,
		"solver.time_scaling_factor":      100,
		"solver.capacity_scaling_factor":  1,
		"solver.max_route_distance_km":    10000.0,
		"solver.max_route_duration_min":   1440.0,
		"solver.time_limit":               10 * time.Second,
		"solver.load_balance_coeff":       100,
		"solver.drop_penalty_base":        1000000,
		"solver.time_window_slack_min":    60.0,
		"solver.default_speed_kmh":        50.0,
		"solver.max_concurrent_solves":    4,
		"solver.result_cache_ttl_seconds": 3600,

		// Export
		"export.company_name":    "Route Optimizer",
		"export.pdf.page_size":   "A4",
		"export.pdf.orientation": "portrait",
		"export.pdf.margin_top":  15.0,
		"export.pdf.margin_left": 15.0,
	}
}

// extraConfigKeys - ключи без значений по умолчанию: секреты и
// необязательные пути. Нужны индексу переменных окружения.
var extraConfigKeys = []string{
	"cache.password",
	"rate_limit.redis_addr",
	"audit.file_path",
	"audit.exclude_paths",
	"auth.jwt_secret",
	"auth.api_key_hashes",
	"log.file_path",
}

// buildEnvKeyIndex выводит маппинг ROUTEOPT_-переменных на ключи конфига
// из самого набора известных ключей: database.max_open_conns доступен как
// ROUTEOPT_DATABASE_MAX_OPEN_CONNS. Таблицу вести вручную не нужно.
func buildEnvKeyIndex() map[string]string {
	index := make(map[string]string)
	for key := range defaults() {
		index[strings.ReplaceAll(key, ".", "_")] = key
	}
	for _, key := range extraConfigKeys {
		index[strings.ReplaceAll(key, ".", "_")] = key
	}
	return index
}

// loadConfigFile читает первый существующий yaml из списка путей;
// CONFIG_PATH имеет приоритет над списком.
func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

// loadEnv читает переменные с префиксом, сопоставляя их ключам конфига
// через индекс. Неизвестные ключи раскладываются заменой подчёркиваний
// на точки.
func (l *Loader) loadEnv() error {
	return l.k.Load(env.ProviderWithValue(l.envPrefix, ".", func(envKey string, value string) (string, interface{}) {
		key := strings.ToLower(strings.TrimPrefix(envKey, l.envPrefix))

		if mapped, ok := l.envKeys[key]; ok {
			key = mapped
		} else {
			key = strings.ReplaceAll(key, "_", ".")
		}

		if isSliceField(key) {
			return key, splitAndTrim(value)
		}

		return key, value
	}), nil)
}

// loadFlatEnv подхватывает исторические переменные без префикса,
// которыми сервис конфигурировался до перехода на ROUTEOPT_*
func (l *Loader) loadFlatEnv() error {
	overlay := make(map[string]any)
	for envKey, confKey := range flatEnvVars {
		if value, ok := os.LookupEnv(envKey); ok && value != "" {
			overlay[confKey] = value
		}
	}
	if len(overlay) == 0 {
		return nil
	}
	return l.k.Load(confmap.Provider(overlay, "."), nil)
}

// flatEnvVars - маппинг плоских переменных окружения на ключи конфига
var flatEnvVars = map[string]string{
	"GOOGLE_MAPS_API_KEY":               "maps.api_key",
	"GOOGLE_MAPS_API_URL":               "maps.api_url",
	"USE_API_BY_DEFAULT":                "maps.use_api_by_default",
	"MAX_RETRIES":                       "maps.max_retries",
	"BACKOFF_FACTOR":                    "maps.backoff_factor",
	"RETRY_DELAY_SECONDS":               "maps.retry_delay_seconds",
	"CACHE_EXPIRY_DAYS":                 "maps.cache_expiry_days",
	"OPTIMIZATION_RESULT_CACHE_TIMEOUT": "solver.result_cache_ttl_seconds",
	"TESTING":                           "app.testing",
}

// sliceFields - ключи, значения которых задаются списком через запятую
var sliceFields = map[string]bool{
	"http.cors.allowed_origins": true,
	"http.cors.allowed_methods": true,
	"http.cors.allowed_headers": true,
	"http.cors.exposed_headers": true,
	"audit.exclude_paths":       true,
	"auth.api_key_hashes":       true,
}

func isSliceField(key string) bool {
	return sliceFields[key]
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// MustLoad загружает конфигурацию или паникует
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load - удобная функция для загрузки с дефолтными настройками
func Load() (*Config, error) {
	return NewLoader().Load()
}
