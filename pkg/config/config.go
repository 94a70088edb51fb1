// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App       AppConfig       `koanf:"app"`
	HTTP      HTTPConfig      `koanf:"http"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Audit     AuditConfig     `koanf:"audit"`
	Auth      AuthConfig      `koanf:"auth"`
	Swagger   SwaggerConfig   `koanf:"swagger"`
	Maps      MapsConfig      `koanf:"maps"`
	Solver    SolverConfig    `koanf:"solver"`
	Export    ExportConfig    `koanf:"export"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
	// Testing включает детерминированные заглушки внешних данных
	// и снимает требование API-ключа провайдера
	Testing bool `koanf:"testing"`
}

// HTTPConfig - настройки HTTP сервера
type HTTPConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORS            CORSConfig    `koanf:"cors"`
}

// CORSConfig - настройки CORS
type CORSConfig struct {
	Enabled          bool     `koanf:"enabled"`
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	ExposedHeaders   []string `koanf:"exposed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // путь к файлу логов
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // количество бэкапов
	MaxAge     int    `koanf:"max_age"`     // дней
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig - настройки OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// DatabaseConfig - настройки базы данных
type DatabaseConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Driver          string        `koanf:"driver"` // postgres
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN возвращает строку подключения
func (d DatabaseConfig) DSN() string {
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode,
		)
	default:
		return ""
	}
}

// CacheConfig - настройки кэширования
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // для in-memory
}

// Address возвращает адрес кэша
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Requests        int           `koanf:"requests"`
	Window          time.Duration `koanf:"window"`
	Strategy        string        `koanf:"strategy"`
	Backend         string        `koanf:"backend"`
	BurstSize       int           `koanf:"burst_size"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	RedisAddr       string        `koanf:"redis_addr"`
}

// AuditConfig конфигурация аудит лога
type AuditConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Backend     string        `koanf:"backend"`
	FilePath    string        `koanf:"file_path"`
	BufferSize  int           `koanf:"buffer_size"`
	FlushPeriod time.Duration `koanf:"flush_period"`
	ExcludePath []string      `koanf:"exclude_paths"`
}

// AuthConfig конфигурация аутентификации API
type AuthConfig struct {
	Enabled            bool          `koanf:"enabled"`
	JWTSecret          string        `koanf:"jwt_secret"`
	AccessTokenExpiry  time.Duration `koanf:"access_token_expiry"`
	RefreshTokenExpiry time.Duration `koanf:"refresh_token_expiry"`
	Issuer             string        `koanf:"issuer"`
	// APIKeyHashes - argon2id-хеши допустимых ключей для X-API-Key
	APIKeyHashes []string `koanf:"api_key_hashes"`
}

// SwaggerConfig конфигурация Swagger UI
type SwaggerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Title   string `koanf:"title"`
}

// MapsConfig - настройки провайдера матрицы расстояний
type MapsConfig struct {
	APIKey          string        `koanf:"api_key"`
	APIURL          string        `koanf:"api_url"`
	UseAPIByDefault bool          `koanf:"use_api_by_default"`
	Timeout         time.Duration `koanf:"timeout"`
	// Параметры повторов при ошибках провайдера
	MaxRetries        int `koanf:"max_retries"`
	BackoffFactor     int `koanf:"backoff_factor"`
	RetryDelaySeconds int `koanf:"retry_delay_seconds"`
	// Сколько дней живёт закэшированная матрица
	CacheExpiryDays int `koanf:"cache_expiry_days"`
	// Размер батча origins x destinations в одном запросе
	BatchSize int `koanf:"batch_size"`
}

// RetryDelay возвращает базовую задержку между повторами
func (m MapsConfig) RetryDelay() time.Duration {
	return time.Duration(m.RetryDelaySeconds) * time.Second
}

// CacheTTL возвращает TTL матриц в кэше
func (m MapsConfig) CacheTTL() time.Duration {
	return time.Duration(m.CacheExpiryDays) * 24 * time.Hour
}

// SolverConfig - настройки решателя маршрутов
type SolverConfig struct {
	// Масштабирование float-величин в целочисленную модель
	DistanceScalingFactor int `koanf:"distance_scaling_factor"`
	TimeScalingFactor     int `koanf:"time_scaling_factor"`
	CapacityScalingFactor int `koanf:"capacity_scaling_factor"`

	// Пределы маршрута
	MaxRouteDistanceKm  float64 `koanf:"max_route_distance_km"`
	MaxRouteDurationMin float64 `koanf:"max_route_duration_min"`

	// Параметры поиска
	TimeLimit            time.Duration `koanf:"time_limit"`
	LoadBalanceCoeff     int64         `koanf:"load_balance_coeff"`
	DropPenaltyBase      int64         `koanf:"drop_penalty_base"`
	TimeWindowSlackMin   float64       `koanf:"time_window_slack_min"`
	DefaultSpeedKmh      float64       `koanf:"default_speed_kmh"`
	MaxConcurrentSolves  int           `koanf:"max_concurrent_solves"`
	ResultCacheTTLSecond int           `koanf:"result_cache_ttl_seconds"`
}

// ResultCacheTTL возвращает TTL кэша результатов оптимизации
func (s SolverConfig) ResultCacheTTL() time.Duration {
	return time.Duration(s.ResultCacheTTLSecond) * time.Second
}

// ExportConfig - настройки экспорта маршрутных листов
type ExportConfig struct {
	CompanyName string    `koanf:"company_name"`
	PDF         PDFConfig `koanf:"pdf"`
}

// PDFConfig конфигурация PDF генератора
type PDFConfig struct {
	PageSize    string  `koanf:"page_size"`   // A4, Letter
	Orientation string  `koanf:"orientation"` // portrait, landscape
	MarginTop   float64 `koanf:"margin_top"`  // mm
	MarginLeft  float64 `koanf:"margin_left"` // mm
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	// Ключ провайдера обязателен, если API включён по умолчанию.
	// В тестовом режиме допускается работа без ключа.
	if c.Maps.UseAPIByDefault && c.Maps.APIKey == "" && !c.App.Testing {
		errs = append(errs, "maps.api_key is required when maps.use_api_by_default is set")
	}

	if c.Maps.MaxRetries < 0 {
		errs = append(errs, "maps.max_retries must be non-negative")
	}

	if c.Solver.DistanceScalingFactor <= 0 {
		errs = append(errs, "solver.distance_scaling_factor must be positive")
	}
	if c.Solver.TimeScalingFactor <= 0 {
		errs = append(errs, "solver.time_scaling_factor must be positive")
	}
	if c.Solver.CapacityScalingFactor <= 0 {
		errs = append(errs, "solver.capacity_scaling_factor must be positive")
	}

	if c.Solver.TimeLimit <= 0 {
		errs = append(errs, "solver.time_limit must be positive")
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" && len(c.Auth.APIKeyHashes) == 0 {
		errs = append(errs, "auth.jwt_secret or auth.api_key_hashes required when auth is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment проверяет режим разработки
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction проверяет продакшн режим
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
