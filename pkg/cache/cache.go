// Package cache provides the caching layer used by the optimizer: a small
// byte-oriented Cache interface with in-memory and Redis backends, plus
// typed wrappers for distance matrices and optimization results.
package cache

import (
	"context"
	"errors"
	"time"

	"routeopt/pkg/config"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var (
	// ErrKeyNotFound is returned when the requested key is absent or expired.
	ErrKeyNotFound = errors.New("key not found")
	// ErrCacheClosed is returned for operations on a closed cache.
	ErrCacheClosed = errors.New("cache is closed")
)

// Cache is the byte-level contract shared by both backends. It is
// deliberately narrow: the optimizer stores opaque serialized blobs under
// prefixed keys and invalidates whole prefixes at once.
type Cache interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A non-positive ttl falls back to the
	// cache default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes every key starting with prefix and reports
	// how many were removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
	// Stats reports hit/miss counters and key counts.
	Stats(ctx context.Context) (*Stats, error)
	// Close releases the backend resources.
	Close() error
}

// Stats describes the current cache state.
type Stats struct {
	TotalKeys   int64
	Hits        int64
	Misses      int64
	HitRate     float64
	MemoryBytes int64
	Backend     string
}

// Options configures a Cache created by New.
type Options struct {
	Backend    string
	DefaultTTL time.Duration

	// Memory backend
	MaxEntries      int
	CleanupInterval time.Duration

	// Redis backend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
}

// DefaultOptions returns options suitable for a single-process deployment.
func DefaultOptions() *Options {
	return &Options{
		Backend:         BackendMemory,
		DefaultTTL:      5 * time.Minute,
		MaxEntries:      100000,
		CleanupInterval: time.Minute,
		RedisAddr:       "localhost:6379",
		RedisPoolSize:   10,
	}
}

// FromConfig строит опции кэша из секции конфигурации
func FromConfig(cfg *config.CacheConfig) *Options {
	opts := DefaultOptions()
	opts.Backend = cfg.Driver
	opts.DefaultTTL = cfg.DefaultTTL
	if cfg.MaxEntries > 0 {
		opts.MaxEntries = cfg.MaxEntries
	}
	opts.RedisAddr = cfg.Address()
	opts.RedisPassword = cfg.Password
	opts.RedisDB = cfg.DB
	return opts
}

// New создаёт кэш выбранного бэкенда. Неизвестный бэкенд трактуется
// как memory, чтобы опечатка в конфиге не роняла сервис.
func New(opts *Options) (Cache, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	switch opts.Backend {
	case BackendRedis:
		return NewRedisCache(opts)
	default:
		return NewMemoryCache(opts), nil
	}
}

// MustNew создаёт кэш или паникует
func MustNew(opts *Options) Cache {
	c, err := New(opts)
	if err != nil {
		panic(err)
	}
	return c
}
