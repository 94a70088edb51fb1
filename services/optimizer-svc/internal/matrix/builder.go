package matrix

import (
	"context"
	"time"

	"routeopt/pkg/cache"
	"routeopt/pkg/config"
	"routeopt/pkg/domain"
	"routeopt/pkg/geo"
	"routeopt/pkg/logger"
	"routeopt/pkg/metrics"
	"routeopt/pkg/telemetry"
)

// BuildOptions управляет одним построением матрицы
type BuildOptions struct {
	// UseAPI переопределяет maps.use_api_by_default (nil = значение из конфига)
	UseAPI *bool
}

// Builder строит матрицы расстояний и времени для набора точек.
// Источник выбирается в порядке: кэш -> внешний провайдер -> Haversine.
// Fallback-матрицы в кэш не пишутся, чтобы после восстановления провайдера
// клиенты получали точные данные.
type Builder struct {
	cfg      config.MapsConfig
	provider Provider
	cache    *cache.MatrixCache
	testing  bool
}

// NewBuilder создаёт Builder. provider и matrixCache могут быть nil,
// тогда расчёт всегда выполняется по формуле Haversine.
func NewBuilder(cfg config.MapsConfig, provider Provider, matrixCache *cache.MatrixCache, testing bool) *Builder {
	return &Builder{
		cfg:      cfg,
		provider: provider,
		cache:    matrixCache,
		testing:  testing,
	}
}

// Build возвращает санитизированные матрицы для списка точек.
// Порядок строк и столбцов совпадает с порядком locations.
func (b *Builder) Build(ctx context.Context, locations []domain.Location, opts BuildOptions) (*domain.Matrices, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "Builder.Build")
	defer span.End()

	if b.useAPI(opts) {
		m, source, err := b.buildFromAPI(ctx, locations)
		if err == nil {
			metrics.Get().RecordMatrixBuild(source, time.Since(start))
			telemetry.SetAttributes(ctx, telemetry.MatrixAttributes(source, len(locations))...)
			return m, nil
		}
		// провайдер недоступен: переходим на Haversine, результат не кэшируем
		logger.Warn("провайдер матрицы недоступен, переход на Haversine",
			"error", err,
			"locations", len(locations),
		)
		metrics.Get().RecordProviderCall("fallback")
	}

	m := b.buildHaversine(locations)
	metrics.Get().RecordMatrixBuild("haversine", time.Since(start))
	telemetry.SetAttributes(ctx, telemetry.MatrixAttributes("haversine", len(locations))...)
	return m, nil
}

// useAPI определяет, нужно ли обращаться к внешнему провайдеру
func (b *Builder) useAPI(opts BuildOptions) bool {
	use := b.cfg.UseAPIByDefault
	if opts.UseAPI != nil {
		use = *opts.UseAPI
	}
	if b.testing || b.provider == nil || b.cfg.APIKey == "" {
		return false
	}
	return use
}

// buildFromAPI возвращает матрицы из кэша либо от провайдера.
// source помечает фактический источник данных для метрик.
func (b *Builder) buildFromAPI(ctx context.Context, locations []domain.Location) (m *domain.Matrices, source string, err error) {
	hash := locationsHash(locations)
	ids := locationIDs(locations)

	if b.cache != nil {
		entry, ok, cacheErr := b.cache.Get(ctx, hash)
		if cacheErr != nil {
			logger.Warn("ошибка чтения кэша матриц", "error", cacheErr, "hash", hash)
		}
		if ok {
			// хеш не зависит от порядка точек, поэтому запись может
			// хранить матрицы в другом порядке
			if m, remapOK := remapEntry(entry, ids); remapOK {
				metrics.Get().RecordCacheAccess("matrix", true)
				return m, "cache", nil
			}
			ok = false
		}
		metrics.Get().RecordCacheAccess("matrix", ok)
	}

	dist, dur, err := b.provider.FetchMatrices(ctx, locations)
	if err != nil {
		return nil, "", err
	}
	metrics.Get().RecordProviderCall("success")

	dist = Sanitize(dist)
	dur = sanitizeOptional(dur)

	if b.cache != nil {
		entry := &cache.MatrixEntry{
			DistanceMatrix: dist,
			TimeMatrix:     dur,
			LocationIDs:    ids,
		}
		if cacheErr := b.cache.Set(ctx, hash, entry, b.cfg.CacheTTL()); cacheErr != nil {
			logger.Warn("ошибка записи кэша матриц", "error", cacheErr, "hash", hash)
		}
	}

	return &domain.Matrices{Distance: dist, Time: dur, IDs: ids}, "api", nil
}

// buildHaversine строит матрицу расстояний по большим кругам.
// Матрица времени не строится: время выводится из скорости по умолчанию.
func (b *Builder) buildHaversine(locations []domain.Location) *domain.Matrices {
	n := len(locations)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			if i == j {
				continue
			}
			dist[i][j] = geo.Haversine(
				locations[i].Latitude, locations[i].Longitude,
				locations[j].Latitude, locations[j].Longitude,
			)
		}
	}
	return &domain.Matrices{
		Distance: Sanitize(dist),
		IDs:      locationIDs(locations),
	}
}

// locationsHash вычисляет канонический хеш набора точек.
// Хеш не зависит от порядка точек в запросе.
func locationsHash(locations []domain.Location) string {
	lines := make([]string, 0, len(locations))
	for _, loc := range locations {
		lines = append(lines, cache.CanonicalLocationLine(loc.ID, loc.Latitude, loc.Longitude))
	}
	return cache.MatrixHash(lines)
}

func locationIDs(locations []domain.Location) []string {
	ids := make([]string, len(locations))
	for i, loc := range locations {
		ids[i] = loc.ID
	}
	return ids
}

// remapEntry переупорядочивает матрицы записи под порядок ids запроса.
// Возвращает false, если запись не покрывает все запрошенные точки.
func remapEntry(entry *cache.MatrixEntry, ids []string) (*domain.Matrices, bool) {
	if len(entry.LocationIDs) != len(ids) || len(entry.DistanceMatrix) != len(ids) {
		return nil, false
	}

	pos := make(map[string]int, len(entry.LocationIDs))
	for i, id := range entry.LocationIDs {
		pos[id] = i
	}

	idx := make([]int, len(ids))
	for i, id := range ids {
		p, ok := pos[id]
		if !ok {
			return nil, false
		}
		idx[i] = p
	}

	n := len(ids)
	dist := make([][]float64, n)
	var dur [][]float64
	if len(entry.TimeMatrix) == n {
		dur = make([][]float64, n)
	}
	for i := 0; i < n; i++ {
		dist[i] = make([]float64, n)
		if dur != nil {
			dur[i] = make([]float64, n)
		}
		for j := 0; j < n; j++ {
			dist[i][j] = entry.DistanceMatrix[idx[i]][idx[j]]
			if dur != nil {
				dur[i][j] = entry.TimeMatrix[idx[i]][idx[j]]
			}
		}
	}

	return &domain.Matrices{
		Distance: ensureSanitized(dist),
		Time:     sanitizeOptional(dur),
		IDs:      ids,
	}, true
}

func sanitizeOptional(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return nil
	}
	return ensureSanitized(m)
}

// ensureSanitized не копирует матрицу, уже прошедшую санитизацию.
// Записи кэша санитизируются перед сохранением, для них это no-op.
func ensureSanitized(m [][]float64) [][]float64 {
	if IsSanitized(m) {
		return m
	}
	return Sanitize(m)
}
