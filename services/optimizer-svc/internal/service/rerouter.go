package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"routeopt/pkg/apperror"
	"routeopt/pkg/domain"
	"routeopt/pkg/logger"
	"routeopt/pkg/metrics"
	"routeopt/pkg/telemetry"
)

// Rerouter перестраивает действующие маршруты по событиям: пробки,
// задержка обслуживания, перекрытие сегментов. Выполненные доставки
// исключаются, машины продолжают с текущих позиций.
type Rerouter struct {
	optimizer *Optimizer
	metrics   *metrics.Metrics
}

// NewRerouter создаёт сервис перестроения поверх оптимизатора
func NewRerouter(optimizer *Optimizer) *Rerouter {
	return &Rerouter{
		optimizer: optimizer,
		metrics:   metrics.Get(),
	}
}

// Reroute выбирает стратегию по типу события
func (r *Rerouter) Reroute(ctx context.Context, req *domain.RerouteRequest) (*domain.Solution, error) {
	ctx, span := telemetry.StartSpan(ctx, "Rerouter.Reroute",
		trace.WithAttributes(attribute.String("reroute_type", req.RerouteType)),
	)
	defer span.End()

	if verrs := domain.ValidateRerouteRequest(req); verrs.HasErrors() {
		r.metrics.RecordReroute(req.RerouteType, "invalid")
		return nil, verrs.ToError()
	}

	var (
		sol *domain.Solution
		err error
	)
	switch req.RerouteType {
	case domain.RerouteTraffic:
		sol, err = r.RerouteForTraffic(ctx, req)
	case domain.RerouteDelay:
		sol, err = r.RerouteForDelay(ctx, req)
	case domain.RerouteRoadblock:
		sol, err = r.RerouteForRoadblock(ctx, req)
	default:
		err = apperror.New(apperror.CodeInvalidInput, "unknown reroute type: "+req.RerouteType)
	}

	status := "error"
	if err == nil {
		status = string(sol.Status)
	}
	r.metrics.RecordReroute(req.RerouteType, status)
	return sol, err
}

// RerouteForTraffic перестраивает оставшиеся доставки с учётом пробок
func (r *Rerouter) RerouteForTraffic(ctx context.Context, req *domain.RerouteRequest) (*domain.Solution, error) {
	oreq := r.baseRequest(req)
	oreq.ConsiderTraffic = true
	oreq.TrafficData = req.TrafficData

	sol, err := r.optimizer.optimize(ctx, oreq, nil)
	if err != nil {
		return nil, err
	}

	info := r.reroutingInfo(req, sol, domain.RerouteTraffic)
	if req.TrafficData != nil {
		info.TrafficPairCount = len(req.TrafficData.LocationPairs) + len(req.TrafficData.Segments)
	}
	sol.Statistics.ReroutingInfo = info
	return sol, nil
}

// RerouteForDelay добавляет задержку к обслуживанию затронутых локаций
// и перестраивает с принудительными временными окнами
func (r *Rerouter) RerouteForDelay(ctx context.Context, req *domain.RerouteRequest) (*domain.Solution, error) {
	oreq := r.baseRequest(req)
	oreq.ConsiderTimeWindows = true

	delayed := make(map[string]bool, len(req.DelayedLocationIDs))
	for _, id := range req.DelayedLocationIDs {
		delayed[id] = true
	}
	locations := make([]domain.Location, len(oreq.Locations))
	copy(locations, oreq.Locations)
	for i := range locations {
		if delayed[locations[i].ID] {
			locations[i].ServiceTime += req.DelayMinutes
		}
	}
	oreq.Locations = locations

	sol, err := r.optimizer.optimize(ctx, oreq, nil)
	if err != nil {
		return nil, err
	}

	info := r.reroutingInfo(req, sol, domain.RerouteDelay)
	info.DelayMinutes = req.DelayMinutes
	info.DelayedLocationIDs = req.DelayedLocationIDs
	sol.Statistics.ReroutingInfo = info
	return sol, nil
}

// RerouteForRoadblock помечает перекрытые сегменты непроходимыми и
// перестраивает маршруты
func (r *Rerouter) RerouteForRoadblock(ctx context.Context, req *domain.RerouteRequest) (*domain.Solution, error) {
	oreq := r.baseRequest(req)
	oreq.ConsiderTraffic = true
	oreq.TrafficData = req.TrafficData

	sol, err := r.optimizer.optimize(ctx, oreq, req.BlockedSegments)
	if err != nil {
		return nil, err
	}

	info := r.reroutingInfo(req, sol, domain.RerouteRoadblock)
	info.BlockedSegments = req.BlockedSegments
	sol.Statistics.ReroutingInfo = info
	return sol, nil
}

// baseRequest собирает запрос оптимизации из оставшихся доставок и
// продвинутых позиций машин
func (r *Rerouter) baseRequest(req *domain.RerouteRequest) *domain.OptimizeRequest {
	remaining := remainingDeliveries(req)
	vehicles := advanceVehicles(req)

	logger.Info("перестроение маршрутов",
		"type", req.RerouteType,
		"completed", len(req.CompletedDeliveryIDs),
		"remaining", len(remaining),
	)

	return &domain.OptimizeRequest{
		Locations:           req.Locations,
		Vehicles:            vehicles,
		Deliveries:          remaining,
		ConsiderTimeWindows: req.ConsiderTimeWindows,
		UseAPI:              req.UseAPI,
		TimeLimitSeconds:    req.TimeLimitSeconds,
	}
}

// remainingDeliveries исключает выполненные доставки
func remainingDeliveries(req *domain.RerouteRequest) []domain.Delivery {
	completed := make(map[string]bool, len(req.CompletedDeliveryIDs))
	for _, id := range req.CompletedDeliveryIDs {
		completed[id] = true
	}

	remaining := make([]domain.Delivery, 0, len(req.OriginalDeliveries))
	for _, d := range req.OriginalDeliveries {
		if !completed[d.ID] {
			remaining = append(remaining, d)
		}
	}
	return remaining
}

// advanceVehicles продвигает стартовые позиции машин до остановки после
// последней выполненной доставки; полностью отработавший маршрут
// оставляет машину на его финальной остановке
func advanceVehicles(req *domain.RerouteRequest) []domain.Vehicle {
	completedLocs := make(map[string]bool, len(req.CompletedDeliveryIDs))
	completed := make(map[string]bool, len(req.CompletedDeliveryIDs))
	for _, id := range req.CompletedDeliveryIDs {
		completed[id] = true
	}
	for _, d := range req.OriginalDeliveries {
		if completed[d.ID] {
			completedLocs[d.LocationID] = true
		}
	}

	vehicles := make([]domain.Vehicle, len(req.Vehicles))
	copy(vehicles, req.Vehicles)
	if req.CurrentSolution == nil || len(completedLocs) == 0 {
		return vehicles
	}

	for i := range vehicles {
		routeStops, ok := req.CurrentSolution.RouteFor(vehicles[i].ID)
		if !ok {
			continue
		}

		lastDone := -1
		for si, stop := range routeStops {
			if completedLocs[stop] {
				lastDone = si
			}
		}
		if lastDone < 0 {
			continue
		}

		next := lastDone + 1
		if next >= len(routeStops) {
			next = len(routeStops) - 1
		}
		vehicles[i].StartLocationID = routeStops[next]
	}

	return vehicles
}

func (r *Rerouter) reroutingInfo(req *domain.RerouteRequest, sol *domain.Solution, reason string) *domain.ReroutingInfo {
	info := &domain.ReroutingInfo{
		Reason:              reason,
		NewTotalDistance:    sol.TotalDistance,
		CompletedDeliveries: len(req.CompletedDeliveryIDs),
		ReroutedDeliveries:  len(req.OriginalDeliveries) - len(req.CompletedDeliveryIDs),
	}
	if req.CurrentSolution != nil {
		info.OriginalTotalDistance = req.CurrentSolution.TotalDistance
	}
	if info.ReroutedDeliveries < 0 {
		info.ReroutedDeliveries = 0
	}
	return info
}
