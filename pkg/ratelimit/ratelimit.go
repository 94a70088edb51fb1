// Package ratelimit ограничивает частоту запросов к API. Поддерживает
// стратегии sliding_window и token_bucket с хранением счётчиков в памяти
// или в Redis (для нескольких инстансов за балансировщиком).
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrLimiterClosed     = errors.New("limiter is closed")
)

// Limiter проверяет, уложился ли клиент в лимит
type Limiter interface {
	// Allow регистрирует запрос и сообщает, разрешён ли он
	Allow(ctx context.Context, key string) (bool, error)

	// GetInfo возвращает текущее состояние лимита без регистрации запроса
	GetInfo(ctx context.Context, key string) (*LimitInfo, error)

	// Reset сбрасывает счётчики ключа
	Reset(ctx context.Context, key string) error

	// Close освобождает ресурсы лимитера
	Close() error
}

// LimitInfo состояние лимита для ключа
type LimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Config конфигурация лимитера
type Config struct {
	// Requests запросов на окно
	Requests int `koanf:"requests"`

	// Window временное окно
	Window time.Duration `koanf:"window"`

	// Strategy: sliding_window или token_bucket
	Strategy string `koanf:"strategy"`

	// Backend: memory или redis
	Backend string `koanf:"backend"`

	// BurstSize дополнительный запас для token_bucket
	BurstSize int `koanf:"burst_size"`

	// CleanupInterval период удаления неактивных ключей (memory)
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Requests:        100,
		Window:          time.Minute,
		Strategy:        StrategySlidingWindow,
		Backend:         "memory",
		BurstSize:       10,
		CleanupInterval: 5 * time.Minute,
	}
}

// Поддерживаемые стратегии
const (
	StrategySlidingWindow = "sliding_window"
	StrategyTokenBucket   = "token_bucket"
)

// New создаёт лимитер по конфигурации. Неизвестный бэкенд трактуется
// как memory.
func New(cfg *Config) (Limiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Backend {
	case "redis":
		return NewRedisLimiter(cfg)
	default:
		return NewMemoryLimiter(cfg), nil
	}
}
