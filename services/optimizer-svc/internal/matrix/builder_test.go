package matrix

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"routeopt/pkg/cache"
	"routeopt/pkg/config"
	"routeopt/pkg/domain"
	"routeopt/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}

// stubProvider отдаёт заранее заданные матрицы либо ошибку
type stubProvider struct {
	dist  [][]float64
	dur   [][]float64
	err   error
	calls int
}

func (s *stubProvider) FetchMatrices(_ context.Context, _ []domain.Location) ([][]float64, [][]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.dist, s.dur, nil
}

func testLocations() []domain.Location {
	return []domain.Location{
		{ID: "depot", Latitude: 55.7558, Longitude: 37.6173},
		{ID: "a", Latitude: 55.7600, Longitude: 37.6200},
		{ID: "b", Latitude: 55.7700, Longitude: 37.6000},
	}
}

func boolPtr(v bool) *bool { return &v }

func newTestMatrixCache() *cache.MatrixCache {
	mem := cache.NewMemoryCache(&cache.Options{
		MaxEntries:      100,
		CleanupInterval: time.Minute,
	})
	return cache.NewMatrixCache(mem, time.Hour)
}

func TestBuilder_HaversineByDefault(t *testing.T) {
	provider := &stubProvider{}
	b := NewBuilder(config.MapsConfig{UseAPIByDefault: false, APIKey: "key"}, provider, nil, false)

	m, err := b.Build(context.Background(), testLocations(), BuildOptions{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if provider.calls != 0 {
		t.Errorf("provider must not be called, got %d calls", provider.calls)
	}
	if len(m.Distance) != 3 {
		t.Fatalf("distance matrix size = %d, want 3", len(m.Distance))
	}
	if m.HasTime() {
		t.Error("haversine build must not produce a time matrix")
	}
	if m.Distance[0][1] <= 0 {
		t.Errorf("distance depot->a = %v, want > 0", m.Distance[0][1])
	}
	if !IsSanitized(m.Distance) {
		t.Error("result must be sanitized")
	}
}

func TestBuilder_UseAPIOverride(t *testing.T) {
	provider := &stubProvider{
		dist: [][]float64{{0, 1, 2}, {1, 0, 3}, {2, 3, 0}},
		dur:  [][]float64{{0, 5, 9}, {5, 0, 7}, {9, 7, 0}},
	}
	b := NewBuilder(config.MapsConfig{UseAPIByDefault: false, APIKey: "key"}, provider, nil, false)

	m, err := b.Build(context.Background(), testLocations(), BuildOptions{UseAPI: boolPtr(true)})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}
	if !m.HasTime() {
		t.Error("api build must carry a time matrix")
	}
	if m.Distance[1][2] != 3 {
		t.Errorf("distance[1][2] = %v, want 3", m.Distance[1][2])
	}
}

func TestBuilder_TestingSuppressesAPI(t *testing.T) {
	provider := &stubProvider{}
	b := NewBuilder(config.MapsConfig{UseAPIByDefault: true, APIKey: "key"}, provider, nil, true)

	if _, err := b.Build(context.Background(), testLocations(), BuildOptions{}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("testing mode must not reach the provider, got %d calls", provider.calls)
	}
}

func TestBuilder_MissingKeySuppressesAPI(t *testing.T) {
	provider := &stubProvider{}
	b := NewBuilder(config.MapsConfig{UseAPIByDefault: true, APIKey: ""}, provider, nil, false)

	if _, err := b.Build(context.Background(), testLocations(), BuildOptions{}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("missing api key must not reach the provider, got %d calls", provider.calls)
	}
}

func TestBuilder_FallbackOnProviderError(t *testing.T) {
	provider := &stubProvider{err: errors.New("quota exceeded")}
	mc := newTestMatrixCache()
	b := NewBuilder(config.MapsConfig{UseAPIByDefault: true, APIKey: "key"}, provider, mc, false)

	locs := testLocations()
	m, err := b.Build(context.Background(), locs, BuildOptions{})
	if err != nil {
		t.Fatalf("fallback build must not fail, got %v", err)
	}
	if m.HasTime() {
		t.Error("fallback build must not produce a time matrix")
	}

	// fallback-результат не должен попадать в кэш
	hash := locationsHash(locs)
	if _, ok, _ := mc.Get(context.Background(), hash); ok {
		t.Error("fallback result must not be cached")
	}
}

func TestBuilder_CachesAPIResult(t *testing.T) {
	provider := &stubProvider{
		dist: [][]float64{{0, 1, 2}, {1, 0, 3}, {2, 3, 0}},
		dur:  [][]float64{{0, 5, 9}, {5, 0, 7}, {9, 7, 0}},
	}
	mc := newTestMatrixCache()
	b := NewBuilder(config.MapsConfig{UseAPIByDefault: true, APIKey: "key"}, provider, mc, false)

	locs := testLocations()
	if _, err := b.Build(context.Background(), locs, BuildOptions{}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, err := b.Build(context.Background(), locs, BuildOptions{}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if provider.calls != 1 {
		t.Errorf("second build must hit the cache, provider calls = %d", provider.calls)
	}
}

func TestBuilder_CacheHitWithReorderedLocations(t *testing.T) {
	provider := &stubProvider{
		dist: [][]float64{{0, 1, 2}, {1, 0, 3}, {2, 3, 0}},
		dur:  [][]float64{{0, 5, 9}, {5, 0, 7}, {9, 7, 0}},
	}
	mc := newTestMatrixCache()
	b := NewBuilder(config.MapsConfig{UseAPIByDefault: true, APIKey: "key"}, provider, mc, false)

	locs := testLocations()
	if _, err := b.Build(context.Background(), locs, BuildOptions{}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// тот же набор точек в другом порядке должен дать тот же кэш-хит,
	// а матрица должна быть переиндексирована под новый порядок
	reordered := []domain.Location{locs[2], locs[0], locs[1]}
	m, err := b.Build(context.Background(), reordered, BuildOptions{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if provider.calls != 1 {
		t.Errorf("reordered request must hit the cache, provider calls = %d", provider.calls)
	}
	if m.IDs[0] != "b" || m.IDs[1] != "depot" {
		t.Fatalf("unexpected id order: %v", m.IDs)
	}
	// b->depot в исходной матрице: dist[2][0] = 2
	if m.Distance[0][1] != 2 {
		t.Errorf("remapped distance b->depot = %v, want 2", m.Distance[0][1])
	}
	// a->b в исходной матрице: dist[1][2] = 3
	if m.Distance[2][0] != 3 {
		t.Errorf("remapped distance a->b = %v, want 3", m.Distance[2][0])
	}
}

func TestLocationsHash_OrderIndependent(t *testing.T) {
	locs := testLocations()
	reordered := []domain.Location{locs[1], locs[2], locs[0]}

	if locationsHash(locs) != locationsHash(reordered) {
		t.Error("hash must not depend on location order")
	}
}
