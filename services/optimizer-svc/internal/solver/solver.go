// Package solver implements the vehicle routing engine: an integer-scaled
// routing model searched with savings construction and guided local search.
// It covers capacitated routing (CVRP) and routing with time windows
// (VRPTW) over a shared model.
package solver

import (
	"context"
	"sort"
	"time"

	"routeopt/pkg/apperror"
	"routeopt/pkg/config"
	"routeopt/pkg/domain"
	"routeopt/pkg/logger"
	"routeopt/pkg/metrics"
)

// defaultTimeLimit bounds the search when neither the request nor the
// configuration sets one.
const defaultTimeLimit = 5 * time.Second

// Options tunes one solve.
type Options struct {
	// TimeLimit bounds the search; 0 uses the configured default.
	TimeLimit time.Duration

	// LoadBalanceCoeff weighs the longest-against-shortest route span.
	LoadBalanceCoeff int64
	// DropPenaltyBase is the per-priority-unit cost of dropping a delivery.
	DropPenaltyBase int64
	// DefaultSpeedKmh derives travel time when no time matrix is present.
	DefaultSpeedKmh float64
}

// Input is one routing problem instance.
type Input struct {
	Locations  []domain.Location
	Vehicles   []domain.Vehicle
	Deliveries []domain.Delivery
	Matrices   *domain.Matrices

	// DepotIndex is the matrix index of the depot.
	DepotIndex int

	opts Options
}

// Solver решает задачи маршрутизации с параметрами из конфигурации
type Solver struct {
	cfg config.SolverConfig
}

// New создаёт решатель
func New(cfg config.SolverConfig) *Solver {
	return &Solver{cfg: cfg}
}

// Solve решает CVRP: вместимость, пределы пробега и остановок, навыки.
func (s *Solver) Solve(ctx context.Context, input *Input) (*domain.Solution, error) {
	return s.solve(ctx, input, false)
}

// SolveWithTimeWindows решает VRPTW: к ограничениям CVRP добавляются
// временные окна с ожиданием и предел длительности маршрута.
func (s *Solver) SolveWithTimeWindows(ctx context.Context, input *Input) (*domain.Solution, error) {
	return s.solve(ctx, input, true)
}

func (s *Solver) solve(ctx context.Context, input *Input, timeWindows bool) (*domain.Solution, error) {
	start := time.Now()
	input.opts = s.resolveOptions(input)

	m, err := buildModel(input, timeWindows)
	if err != nil {
		return nil, err
	}

	if len(m.vehicles) == 0 {
		return nil, apperror.New(apperror.CodeNoVehicles, "no available vehicles")
	}

	// Без доставок каждая машина остаётся на депо
	if len(m.nodes) == 0 {
		return s.emptySolution(m, input), nil
	}

	deadline := start.Add(input.opts.TimeLimit)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	initial, err := construct(ctx, m)
	if err != nil {
		// Первое решение не получено в срок
		return s.noSolution(m, input), nil
	}

	mode := "cvrp"
	if timeWindows {
		mode = "vrptw"
	}

	best, iterations := improve(ctx, m, initial, deadline)
	metrics.Get().SolverIterations.WithLabelValues(mode).Observe(float64(iterations))

	if allDropped(best) {
		return s.noSolution(m, input), nil
	}

	sol := s.assemble(m, input, best, timeWindows)
	logger.Debug("решение построено",
		"status", sol.Status,
		"routes", len(sol.Routes),
		"unassigned", len(sol.UnassignedDeliveryIDs),
		"iterations", iterations,
		"elapsed", time.Since(start),
	)
	return sol, nil
}

func (s *Solver) resolveOptions(input *Input) Options {
	opts := Options{
		TimeLimit:        input.opts.TimeLimit,
		LoadBalanceCoeff: s.cfg.LoadBalanceCoeff,
		DropPenaltyBase:  s.cfg.DropPenaltyBase,
		DefaultSpeedKmh:  s.cfg.DefaultSpeedKmh,
	}
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = s.cfg.TimeLimit
	}
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = defaultTimeLimit
	}
	if opts.LoadBalanceCoeff <= 0 {
		opts.LoadBalanceCoeff = domain.LoadBalanceCoeff
	}
	if opts.DropPenaltyBase <= 0 {
		opts.DropPenaltyBase = domain.DropPenaltyBase
	}
	if opts.DefaultSpeedKmh <= 0 {
		opts.DefaultSpeedKmh = domain.DefaultSpeedKmh
	}
	return opts
}

// WithTimeLimit задаёт лимит поиска для одного запроса
func (i *Input) WithTimeLimit(d time.Duration) *Input {
	i.opts.TimeLimit = d
	return i
}

// emptySolution is the degenerate success: every vehicle stays parked.
func (s *Solver) emptySolution(m *model, input *Input) *domain.Solution {
	depotID := input.Matrices.IDs[m.depotIdx]
	sol := &domain.Solution{
		Status:                domain.StatusSuccess,
		Routes:                make([][]string, 0, len(m.vehicles)),
		AssignedVehicleIDs:    make([]string, 0, len(m.vehicles)),
		UnassignedDeliveryIDs: []string{},
	}
	for i := range m.vehicles {
		sol.Routes = append(sol.Routes, []string{depotID})
		sol.AssignedVehicleIDs = append(sol.AssignedVehicleIDs, m.vehicles[i].id)
	}
	return sol
}

// noSolution marks every delivery unassigned.
func (s *Solver) noSolution(m *model, input *Input) *domain.Solution {
	unassigned := make([]string, 0, len(input.Deliveries))
	for i := range input.Deliveries {
		unassigned = append(unassigned, input.Deliveries[i].ID)
	}
	sort.Strings(unassigned)
	return &domain.Solution{
		Status:                domain.StatusNoSolution,
		Routes:                [][]string{},
		AssignedVehicleIDs:    []string{},
		UnassignedDeliveryIDs: unassigned,
	}
}

func allDropped(a *assignment) bool {
	for _, dropped := range a.unassigned {
		if !dropped {
			return false
		}
	}
	return true
}

// assemble walks the vehicle chains into location-ID stop lists with depot
// endpoints. Consecutive stops at one location collapse into a single stop.
// For VRPTW the per-stop arrival minutes are recorded on pre-built
// DetailedRoutes; path annotation fills in the rest downstream.
func (s *Solver) assemble(m *model, input *Input, a *assignment, timeWindows bool) *domain.Solution {
	ids := input.Matrices.IDs
	sol := &domain.Solution{
		Status:                domain.StatusSuccess,
		Routes:                [][]string{},
		AssignedVehicleIDs:    []string{},
		UnassignedDeliveryIDs: []string{},
	}

	var totalScaled int64
	for vi, route := range a.routes {
		if len(route) == 0 {
			continue
		}
		v := &m.vehicles[vi]
		totalScaled += a.evals[vi].distScaled

		stops := []string{ids[v.startIdx]}
		var arrivals []*float64
		arrivals = append(arrivals, nil)

		for si, ni := range route {
			locID := ids[m.nodes[ni].locIdx]
			var arrival *float64
			if timeWindows && si < len(a.evals[vi].arrivalsScaled) {
				mins := unscaleTime(a.evals[vi].arrivalsScaled[si])
				arrival = &mins
			}
			if stops[len(stops)-1] == locID {
				// Несколько доставок на одной точке - одна остановка
				continue
			}
			stops = append(stops, locID)
			arrivals = append(arrivals, arrival)
		}

		if stops[len(stops)-1] != ids[v.endIdx] {
			stops = append(stops, ids[v.endIdx])
			arrivals = append(arrivals, nil)
		}

		sol.Routes = append(sol.Routes, stops)
		sol.AssignedVehicleIDs = append(sol.AssignedVehicleIDs, v.id)

		if timeWindows {
			dr := domain.DetailedRoute{VehicleID: v.id}
			for i, stop := range stops {
				dr.Stops = append(dr.Stops, domain.Stop{
					LocationID:              stop,
					EstimatedArrivalMinutes: arrivals[i],
				})
			}
			sol.DetailedRoutes = append(sol.DetailedRoutes, dr)
		}
	}

	for ni, dropped := range a.unassigned {
		if dropped {
			sol.UnassignedDeliveryIDs = append(sol.UnassignedDeliveryIDs, m.nodes[ni].deliveryID)
		}
	}
	sort.Strings(sol.UnassignedDeliveryIDs)

	sol.TotalDistance = unscaleDistance(totalScaled)
	return sol
}
