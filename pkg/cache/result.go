package cache

import (
	"context"
	"time"
)

// ResultCache кэш готовых решений оптимизации. Решение хранится как JSON,
// каким оно уходит клиенту; ключ - хеш нормализованного запроса.
type ResultCache struct {
	cache      Cache
	defaultTTL time.Duration
}

// NewResultCache создаёт кэш результатов
func NewResultCache(cache Cache, defaultTTL time.Duration) *ResultCache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &ResultCache{
		cache:      cache,
		defaultTTL: defaultTTL,
	}
}

// Get получает закэшированное решение по хешу запроса
func (rc *ResultCache) Get(ctx context.Context, hash string) ([]byte, bool, error) {
	data, err := rc.cache.Get(ctx, BuildResultKey(hash))
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set сохраняет решение в кэш
func (rc *ResultCache) Set(ctx context.Context, hash string, solution []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}
	return rc.cache.Set(ctx, BuildResultKey(hash), solution, ttl)
}

// InvalidateAll удаляет все закэшированные решения
func (rc *ResultCache) InvalidateAll(ctx context.Context) (int64, error) {
	return rc.cache.DeleteByPrefix(ctx, ResultKeyPrefix)
}
