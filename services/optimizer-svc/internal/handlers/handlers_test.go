package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"routeopt/pkg/config"
	"routeopt/pkg/domain"
	"routeopt/pkg/logger"
	"routeopt/services/optimizer-svc/internal/matrix"
	"routeopt/services/optimizer-svc/internal/repository"
	"routeopt/services/optimizer-svc/internal/service"
	"routeopt/services/optimizer-svc/internal/solver"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}

// stubBuilder отдаёт фиксированные матрицы без обращения к провайдеру
type stubBuilder struct {
	mats *domain.Matrices
	err  error
}

func (b *stubBuilder) Build(_ context.Context, _ []domain.Location, _ matrix.BuildOptions) (*domain.Matrices, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := &domain.Matrices{IDs: b.mats.IDs}
	out.Distance = matrix.Sanitize(b.mats.Distance)
	if b.mats.HasTime() {
		out.Time = matrix.Sanitize(b.mats.Time)
	}
	return out, nil
}

// fakeSolveRepo - in-memory реализация репозитория для тестов API.
// Мьютекс нужен: Recorder пишет из фоновой горутины.
type fakeSolveRepo struct {
	mu     sync.Mutex
	solves map[string]*repository.Solve
}

func newFakeSolveRepo() *fakeSolveRepo {
	return &fakeSolveRepo{solves: make(map[string]*repository.Solve)}
}

func (f *fakeSolveRepo) Create(_ context.Context, solve *repository.Solve) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if solve.ID == "" {
		solve.ID = "generated-id"
	}
	solve.CreatedAt = time.Now()
	f.solves[solve.ID] = solve
	return nil
}

func (f *fakeSolveRepo) GetByID(_ context.Context, id string) (*repository.Solve, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.solves[id]
	if !ok {
		return nil, repository.ErrSolveNotFound
	}
	return s, nil
}

func (f *fakeSolveRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.solves[id]; !ok {
		return repository.ErrSolveNotFound
	}
	delete(f.solves, id)
	return nil
}

func (f *fakeSolveRepo) List(_ context.Context, _ *repository.ListOptions) ([]*repository.SolveSummary, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*repository.SolveSummary, 0, len(f.solves))
	for _, s := range f.solves {
		out = append(out, &repository.SolveSummary{
			ID: s.ID, Name: s.Name, Kind: s.Kind, Status: s.Status,
			TotalDistance: s.TotalDistance, CreatedAt: s.CreatedAt,
		})
	}
	return out, int64(len(out)), nil
}

func (f *fakeSolveRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.solves)
}

func (f *fakeSolveRepo) first() *repository.Solve {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.solves {
		return s
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:    "optimizer-svc",
			Version: "test",
		},
		Solver: config.SolverConfig{
			TimeLimit:        200 * time.Millisecond,
			LoadBalanceCoeff: domain.LoadBalanceCoeff,
			DropPenaltyBase:  domain.DropPenaltyBase,
			DefaultSpeedKmh:  domain.DefaultSpeedKmh,
		},
		Export: config.ExportConfig{CompanyName: "Acme Delivery"},
	}
}

func newTestHandler(repo repository.SolveRepository) *Handler {
	cfg := testConfig()
	builder := &stubBuilder{mats: &domain.Matrices{
		IDs: []string{"depot", "a", "b"},
		Distance: [][]float64{
			{0, 10, 20},
			{10, 0, 15},
			{20, 15, 0},
		},
	}}
	opt := service.NewOptimizer(cfg.Solver, builder, solver.New(cfg.Solver), nil)
	return NewHandler(cfg, opt, service.NewRerouter(opt), repo)
}

func optimizeBody() []byte {
	req := domain.OptimizeRequest{
		Locations: []domain.Location{
			{ID: "depot", Latitude: 55.75, Longitude: 37.61, IsDepot: true},
			{ID: "a", Latitude: 55.76, Longitude: 37.62},
			{ID: "b", Latitude: 55.77, Longitude: 37.60},
		},
		Vehicles: []domain.Vehicle{
			{ID: "v1", Capacity: 10, CostPerKm: 1},
		},
		Deliveries: []domain.Delivery{
			{ID: "d1", LocationID: "a", Demand: 2},
			{ID: "d2", LocationID: "b", Demand: 3},
		},
	}
	data, _ := json.Marshal(req)
	return data
}

func doRequest(h *Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, r)
	return w
}

func TestOptimize_OK(t *testing.T) {
	h := newTestHandler(nil)

	w := doRequest(h, http.MethodPost, "/api/v1/optimize", optimizeBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var sol domain.Solution
	if err := json.Unmarshal(w.Body.Bytes(), &sol); err != nil {
		t.Fatalf("decode solution: %v", err)
	}
	if sol.Status != domain.StatusSuccess {
		t.Errorf("solution status = %s, want success", sol.Status)
	}
	if len(sol.Routes) == 0 {
		t.Error("solution must carry routes")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("response must carry X-Request-ID")
	}
}

func TestOptimize_InvalidJSON(t *testing.T) {
	h := newTestHandler(nil)

	w := doRequest(h, http.MethodPost, "/api/v1/optimize", []byte("{not json"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestOptimize_ValidationError(t *testing.T) {
	h := newTestHandler(nil)

	var req domain.OptimizeRequest
	if err := json.Unmarshal(optimizeBody(), &req); err != nil {
		t.Fatal(err)
	}
	req.Locations[1].Latitude = 200
	body, _ := json.Marshal(req)

	w := doRequest(h, http.MethodPost, "/api/v1/optimize", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", w.Code, w.Body.String())
	}

	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code == "" {
		t.Error("validation error must carry machine-readable code")
	}
}

func TestOptimize_NoSolutionReturns400(t *testing.T) {
	h := newTestHandler(nil)

	var req domain.OptimizeRequest
	if err := json.Unmarshal(optimizeBody(), &req); err != nil {
		t.Fatal(err)
	}
	// спрос обеих доставок больше вместимости: решатель вернёт no_solution
	req.Deliveries[0].Demand = 50
	req.Deliveries[1].Demand = 50
	body, _ := json.Marshal(req)

	w := doRequest(h, http.MethodPost, "/api/v1/optimize", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", w.Code, w.Body.String())
	}

	var sol domain.Solution
	if err := json.Unmarshal(w.Body.Bytes(), &sol); err != nil {
		t.Fatalf("decode solution: %v", err)
	}
	if sol.Status != domain.StatusNoSolution {
		t.Errorf("solution status = %s, want no_solution", sol.Status)
	}
	if len(sol.UnassignedDeliveryIDs) != 2 {
		t.Errorf("unassigned = %v, want both deliveries", sol.UnassignedDeliveryIDs)
	}
}

func TestOptimize_SolverErrorReturns400(t *testing.T) {
	cfg := testConfig()
	builder := &stubBuilder{err: errors.New("matrix provider unavailable")}
	opt := service.NewOptimizer(cfg.Solver, builder, solver.New(cfg.Solver), nil)
	h := NewHandler(cfg, opt, service.NewRerouter(opt), nil)

	w := doRequest(h, http.MethodPost, "/api/v1/optimize", optimizeBody())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", w.Code, w.Body.String())
	}

	var sol domain.Solution
	if err := json.Unmarshal(w.Body.Bytes(), &sol); err != nil {
		t.Fatalf("decode solution: %v", err)
	}
	if sol.Status != domain.StatusError {
		t.Errorf("solution status = %s, want error", sol.Status)
	}
	if sol.Statistics.Error == "" {
		t.Error("error solution must carry diagnostics in statistics")
	}
}

func TestOptimize_RecordsHistory(t *testing.T) {
	repo := newFakeSolveRepo()
	h := newTestHandler(repo)

	w := doRequest(h, http.MethodPost, "/api/v1/optimize", optimizeBody())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	// Recorder пишет асинхронно
	deadline := time.Now().Add(2 * time.Second)
	for repo.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if repo.count() != 1 {
		t.Fatalf("stored solves = %d, want 1", repo.count())
	}
	if s := repo.first(); s.Kind != repository.KindOptimize {
		t.Errorf("kind = %s, want optimize", s.Kind)
	}
}

func TestReroute_UnknownType(t *testing.T) {
	h := newTestHandler(nil)

	body := []byte(`{"reroute_type":"earthquake"}`)
	w := doRequest(h, http.MethodPost, "/api/v1/reroute", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", w.Code, w.Body.String())
	}
}

func TestSolves_DisabledWithoutRepository(t *testing.T) {
	h := newTestHandler(nil)

	for _, target := range []string{
		"/api/v1/solves",
		"/api/v1/solves/some-id",
		"/api/v1/solves/some-id/manifest",
	} {
		w := doRequest(h, http.MethodGet, target, nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", target, w.Code)
		}
	}
}

func seedSolve(t *testing.T, repo *fakeSolveRepo) *repository.Solve {
	t.Helper()

	sol := &domain.Solution{
		Status:             domain.StatusSuccess,
		Routes:             [][]string{{"depot", "a", "b", "depot"}},
		AssignedVehicleIDs: []string{"v1"},
		TotalDistance:      45,
		TotalCost:          45,
	}
	respData, err := sol.ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	solve := &repository.Solve{
		ID:            "solve-1",
		Name:          "morning run",
		Kind:          repository.KindOptimize,
		Status:        string(domain.StatusSuccess),
		TotalDistance: 45,
		RequestData:   optimizeBody(),
		ResponseData:  respData,
	}
	if err := repo.Create(context.Background(), solve); err != nil {
		t.Fatal(err)
	}
	return solve
}

func TestSolves_GetListDelete(t *testing.T) {
	repo := newFakeSolveRepo()
	seedSolve(t, repo)
	h := newTestHandler(repo)

	w := doRequest(h, http.MethodGet, "/api/v1/solves", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list listSolvesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || len(list.Solves) != 1 {
		t.Fatalf("list = %+v, want one solve", list)
	}

	w = doRequest(h, http.MethodGet, "/api/v1/solves/solve-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var detail solveDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatal(err)
	}
	if detail.ID != "solve-1" || len(detail.Solution) == 0 {
		t.Errorf("detail = %+v, want payloads", detail.solveSummary)
	}

	w = doRequest(h, http.MethodDelete, "/api/v1/solves/solve-1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doRequest(h, http.MethodGet, "/api/v1/solves/solve-1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", w.Code)
	}
}

func TestSolves_BadQueryParams(t *testing.T) {
	repo := newFakeSolveRepo()
	h := newTestHandler(repo)

	for _, target := range []string{
		"/api/v1/solves?limit=abc",
		"/api/v1/solves?offset=-1",
		"/api/v1/solves?kind=unknown",
		"/api/v1/solves?min_distance=xyz",
		"/api/v1/solves?start_time=not-a-date",
		"/api/v1/solves?sort=by-magic",
	} {
		w := doRequest(h, http.MethodGet, target, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", target, w.Code)
		}
	}
}

func TestManifest_CSV(t *testing.T) {
	repo := newFakeSolveRepo()
	seedSolve(t, repo)
	h := newTestHandler(repo)

	w := doRequest(h, http.MethodGet, "/api/v1/solves/solve-1/manifest?format=csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "manifest-solve-1.csv") {
		t.Errorf("content disposition = %s", cd)
	}
	if !strings.Contains(w.Body.String(), "v1") {
		t.Error("manifest must mention the vehicle")
	}
}

func TestManifest_UnknownFormat(t *testing.T) {
	repo := newFakeSolveRepo()
	seedSolve(t, repo)
	h := newTestHandler(repo)

	w := doRequest(h, http.MethodGet, "/api/v1/solves/solve-1/manifest?format=docx", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestManifest_NotFound(t *testing.T) {
	repo := newFakeSolveRepo()
	h := newTestHandler(repo)

	w := doRequest(h, http.MethodGet, "/api/v1/solves/ghost/manifest", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(nil)

	w := doRequest(h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), statusHealthy) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestReady_FailingDependency(t *testing.T) {
	h := newTestHandler(nil)
	h.AddReadyCheck("database", func(context.Context) error {
		return context.DeadlineExceeded
	})

	w := doRequest(h, http.MethodGet, "/ready", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}

	var resp readyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Ready {
		t.Error("ready must be false")
	}
	if resp.Dependencies["database"] == "ok" {
		t.Error("database dependency must report the failure")
	}
}

func TestReady_AllHealthy(t *testing.T) {
	h := newTestHandler(nil)
	h.AddReadyCheck("cache", func(context.Context) error { return nil })

	w := doRequest(h, http.MethodGet, "/ready", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestInfo(t *testing.T) {
	h := newTestHandler(nil)

	w := doRequest(h, http.MethodGet, "/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "optimizer-svc") {
		t.Errorf("body = %s", w.Body.String())
	}
}
