package cache

import (
	"context"
	"encoding/json"
	"time"
)

// MatrixEntry - закэшированная пара матриц. Формат хранения повторяет
// контракт ответа провайдера: расстояния в километрах, время в минутах.
type MatrixEntry struct {
	DistanceMatrix [][]float64 `json:"distance_matrix"`
	TimeMatrix     [][]float64 `json:"time_matrix,omitempty"`
	LocationIDs    []string    `json:"location_ids"`
	CreatedAt      time.Time   `json:"created_at"`
}

// MatrixCache специализированный кэш матриц расстояний поверх Cache.
// Записи создаются при первом обращении к провайдеру и не мутируются.
type MatrixCache struct {
	cache      Cache
	defaultTTL time.Duration
}

// NewMatrixCache создаёт кэш матриц
func NewMatrixCache(cache Cache, defaultTTL time.Duration) *MatrixCache {
	if defaultTTL <= 0 {
		defaultTTL = 30 * 24 * time.Hour
	}
	return &MatrixCache{
		cache:      cache,
		defaultTTL: defaultTTL,
	}
}

// Get получает закэшированную матрицу по хешу набора локаций
func (mc *MatrixCache) Get(ctx context.Context, hash string) (*MatrixEntry, bool, error) {
	key := BuildMatrixKey(hash)

	data, err := mc.cache.Get(ctx, key)
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	var entry MatrixEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Повреждённый кэш - удаляем, ошибку удаления игнорируем намеренно
		_ = mc.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup
		return nil, false, nil
	}

	return &entry, true, nil
}

// Set сохраняет матрицу в кэш
func (mc *MatrixCache) Set(ctx context.Context, hash string, entry *MatrixEntry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = mc.defaultTTL
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return mc.cache.Set(ctx, BuildMatrixKey(hash), data, ttl)
}

// InvalidateAll удаляет все закэшированные матрицы
func (mc *MatrixCache) InvalidateAll(ctx context.Context) (int64, error) {
	return mc.cache.DeleteByPrefix(ctx, MatrixKeyPrefix)
}
