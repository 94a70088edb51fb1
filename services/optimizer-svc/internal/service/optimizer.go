// Package service собирает конвейер оптимизации: валидация, кэш
// результатов, матрицы, решатель, аннотация маршрутов и статистика.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"routeopt/pkg/apperror"
	"routeopt/pkg/cache"
	"routeopt/pkg/config"
	"routeopt/pkg/domain"
	"routeopt/pkg/logger"
	"routeopt/pkg/metrics"
	"routeopt/pkg/telemetry"
	"routeopt/services/optimizer-svc/internal/matrix"
	"routeopt/services/optimizer-svc/internal/route"
	"routeopt/services/optimizer-svc/internal/solver"
)

// RouteSolver решает задачу маршрутизации над готовыми матрицами
type RouteSolver interface {
	Solve(ctx context.Context, input *solver.Input) (*domain.Solution, error)
	SolveWithTimeWindows(ctx context.Context, input *solver.Input) (*domain.Solution, error)
}

// MatrixBuilder строит матрицы расстояний и времени
type MatrixBuilder interface {
	Build(ctx context.Context, locations []domain.Location, opts matrix.BuildOptions) (*domain.Matrices, error)
}

// Optimizer оркестрирует полный конвейер оптимизации маршрутов
type Optimizer struct {
	cfg        config.SolverConfig
	builder    MatrixBuilder
	solver     RouteSolver
	annotator  *route.Annotator
	results    *cache.ResultCache
	conditions *ConditionsProvider
	metrics    *metrics.Metrics
}

// NewOptimizer создаёт сервис. results может быть nil, тогда кэш
// результатов отключён.
func NewOptimizer(cfg config.SolverConfig, builder MatrixBuilder, rs RouteSolver, results *cache.ResultCache) *Optimizer {
	return &Optimizer{
		cfg:       cfg,
		builder:   builder,
		solver:    rs,
		annotator: route.NewAnnotator(cfg.DefaultSpeedKmh),
		results:   results,
		metrics:   metrics.Get(),
	}
}

// UseConditions подключает поставщика дорожных условий. Если задан,
// запросы с consider_traffic без явных данных о пробках получают
// смоделированные условия.
func (o *Optimizer) UseConditions(p *ConditionsProvider) {
	o.conditions = p
}

// Optimize выполняет полный конвейер для запроса оптимизации.
// Ошибки валидации возвращаются типизированной ошибкой; сбой любой
// другой стадии превращается в решение со статусом error.
func (o *Optimizer) Optimize(ctx context.Context, req *domain.OptimizeRequest) (*domain.Solution, error) {
	return o.optimize(ctx, req, nil)
}

func (o *Optimizer) optimize(ctx context.Context, req *domain.OptimizeRequest, blocked []domain.IndexPair) (*domain.Solution, error) {
	start := time.Now()
	mode := "cvrp"
	if req.ConsiderTimeWindows {
		mode = "vrptw"
	}

	ctx, span := telemetry.StartSpan(ctx, "Optimizer.Optimize",
		trace.WithAttributes(
			telemetry.ProblemAttributes(mode, len(req.Locations), len(req.Vehicles), len(req.Deliveries))...,
		),
	)
	defer span.End()

	if verrs := domain.ValidateOptimizeRequest(req); verrs.HasErrors() {
		o.metrics.RecordOptimize(mode, "invalid", time.Since(start), 0, 0)
		return nil, verrs.ToError()
	}

	// Кэш результатов: идентичный нормализованный запрос отдаёт
	// готовое решение
	hash := requestHash(req)
	if o.results != nil && len(blocked) == 0 {
		if sol, ok := o.cachedResult(ctx, hash); ok {
			o.metrics.RecordOptimize(mode, "cache_hit", time.Since(start), len(sol.Routes), len(sol.UnassignedDeliveryIDs))
			telemetry.AddEvent(ctx, "result_cache_hit")
			return sol, nil
		}
	}

	sol, err := o.runPipeline(ctx, req, blocked, mode, start)
	if err != nil {
		if apperror.Is(err, apperror.CodeInvalidInput) {
			return nil, err
		}
		telemetry.SetError(ctx, err)
		o.metrics.RecordOptimize(mode, "error", time.Since(start), 0, len(req.Deliveries))
		logger.Error("конвейер оптимизации прерван", "error", err, "mode", mode)
		return errorSolution(err, req.Deliveries), nil
	}

	status := string(sol.Status)
	o.metrics.RecordOptimize(mode, status, time.Since(start), len(sol.Routes), len(sol.UnassignedDeliveryIDs))
	telemetry.SetAttributes(ctx,
		telemetry.SolutionAttributes(status, len(sol.Routes), len(sol.UnassignedDeliveryIDs), sol.TotalDistance, sol.TotalCost)...,
	)

	if o.results != nil && len(blocked) == 0 && sol.Status == domain.StatusSuccess {
		o.storeResult(ctx, hash, sol)
	}

	return sol, nil
}

// runPipeline выполняет стадии после валидации и кэша
func (o *Optimizer) runPipeline(ctx context.Context, req *domain.OptimizeRequest, blocked []domain.IndexPair, mode string, start time.Time) (*domain.Solution, error) {
	mats, err := o.builder.Build(ctx, req.Locations, matrix.BuildOptions{UseAPI: req.UseAPI})
	if err != nil {
		return nil, err
	}

	if len(blocked) > 0 {
		mats.Distance = matrix.BlockSegments(mats.Distance, blocked)
		if mats.HasTime() {
			mats.Time = matrix.BlockSegments(mats.Time, blocked)
		}
	}

	traffic := req.TrafficData
	if req.ConsiderTraffic && (traffic == nil || traffic.IsEmpty()) && o.conditions != nil {
		traffic = o.conditions.TrafficConditions(mats.IDs)
		telemetry.AddEvent(ctx, "traffic_synthesized")
	}
	if req.ConsiderTraffic && traffic != nil && !traffic.IsEmpty() {
		factors, err := traffic.Normalize(mats.IDs)
		if err != nil {
			return nil, err
		}
		// CVRP чувствителен к расстояниям, VRPTW - ко времени
		if req.ConsiderTimeWindows && mats.HasTime() {
			mats.Time = matrix.ApplyTraffic(mats.Time, factors)
		} else {
			mats.Distance = matrix.ApplyTraffic(mats.Distance, factors)
		}
	}

	depot, _, err := route.ResolveDepot(req.Locations)
	if err != nil {
		return nil, err
	}
	depotIdx := mats.Index(depot.ID)
	if depotIdx < 0 {
		return nil, apperror.New(apperror.CodeInvalidMatrix, "depot missing from the matrix: "+depot.ID)
	}

	input := &solver.Input{
		Locations:  req.Locations,
		Vehicles:   req.Vehicles,
		Deliveries: req.Deliveries,
		Matrices:   mats,
		DepotIndex: depotIdx,
	}
	if req.TimeLimitSeconds > 0 {
		input.WithTimeLimit(time.Duration(req.TimeLimitSeconds * float64(time.Second)))
	}

	var sol *domain.Solution
	if req.ConsiderTimeWindows {
		sol, err = o.solver.SolveWithTimeWindows(ctx, input)
	} else {
		sol, err = o.solver.Solve(ctx, input)
	}
	if err != nil {
		return nil, err
	}

	g := matrix.ToGraph(mats.Distance, mats.IDs)
	if err := o.annotator.Annotate(ctx, sol, g, mats, req.Vehicles, req.Deliveries); err != nil {
		return nil, err
	}

	route.AggregateStats(sol, req.Vehicles, req.Deliveries, time.Since(start))
	o.metrics.ProblemLocations.WithLabelValues(mode).Observe(float64(len(req.Locations)))
	return sol, nil
}

func (o *Optimizer) cachedResult(ctx context.Context, hash string) (*domain.Solution, bool) {
	data, found, err := o.results.Get(ctx, hash)
	o.metrics.RecordCacheAccess("result", found)
	if err != nil {
		logger.Warn("ошибка чтения кэша результатов", "error", err, "hash", hash)
		return nil, false
	}
	if !found {
		return nil, false
	}

	sol, err := domain.SolutionFromJSON(data)
	if err != nil {
		logger.Warn("повреждённая запись кэша результатов", "error", err, "hash", hash)
		return nil, false
	}
	sol.Statistics.CacheHit = true
	return sol, true
}

func (o *Optimizer) storeResult(ctx context.Context, hash string, sol *domain.Solution) {
	data, err := sol.ToJSON()
	if err != nil {
		return
	}
	if err := o.results.Set(ctx, hash, data, o.cfg.ResultCacheTTL()); err != nil {
		logger.Warn("ошибка записи кэша результатов", "error", err, "hash", hash)
	}
}

// errorSolution превращает сбой стадии в решение со статусом error
func errorSolution(err error, deliveries []domain.Delivery) *domain.Solution {
	unassigned := make([]string, 0, len(deliveries))
	for i := range deliveries {
		unassigned = append(unassigned, deliveries[i].ID)
	}
	sort.Strings(unassigned)
	return domain.NewErrorSolution(err.Error(), unassigned)
}

// normalizedRequest - каноническая форма запроса для хеширования.
// Порядок сущностей не влияет на ключ, координаты огрубляются до 5 знаков.
type normalizedRequest struct {
	Locations  []string `json:"locations"`
	Vehicles   []string `json:"vehicles"`
	Deliveries []string `json:"deliveries"`

	ConsiderTraffic     bool                `json:"consider_traffic"`
	ConsiderTimeWindows bool                `json:"consider_time_windows"`
	Traffic             *domain.TrafficData `json:"traffic,omitempty"`
	UseAPI              *bool               `json:"use_api,omitempty"`
}

func requestHash(req *domain.OptimizeRequest) string {
	n := normalizedRequest{
		ConsiderTraffic:     req.ConsiderTraffic,
		ConsiderTimeWindows: req.ConsiderTimeWindows,
		Traffic:             req.TrafficData,
		UseAPI:              req.UseAPI,
	}

	for i := range req.Locations {
		l := &req.Locations[i]
		// Все влияющие на решение поля локации входят в строку: смена
		// времени обслуживания или признака депо меняет ключ
		line := fmt.Sprintf("%s:%v:%.2f",
			cache.CanonicalLocationLine(l.ID, l.Latitude, l.Longitude), l.IsDepot, l.ServiceTime)
		if l.HasTimeWindow() {
			line += fmt.Sprintf(":%.2f-%.2f", *l.TimeWindowStart, *l.TimeWindowEnd)
		}
		n.Locations = append(n.Locations, line)
	}
	for i := range req.Vehicles {
		v := &req.Vehicles[i]
		n.Vehicles = append(n.Vehicles, fmt.Sprintf("%s:%d:%s:%s:%.2f:%.2f:%.2f:%d:%v:%v",
			v.ID, v.Capacity, v.StartLocationID, v.EndLocationID,
			v.CostPerKm, v.FixedCost, v.MaxDistance, v.MaxStops,
			v.IsAvailable(), v.Skills))
	}
	for i := range req.Deliveries {
		d := &req.Deliveries[i]
		n.Deliveries = append(n.Deliveries, fmt.Sprintf("%s:%s:%d:%d:%v:%v",
			d.ID, d.LocationID, d.Demand, d.EffectivePriority(), d.IsPickup, d.RequiredSkills))
	}

	sort.Strings(n.Locations)
	sort.Strings(n.Vehicles)
	sort.Strings(n.Deliveries)

	data, err := json.Marshal(n)
	if err != nil {
		return cache.RequestHash([]byte(fmt.Sprintf("%+v", req)))
	}
	return cache.RequestHash(data)
}
