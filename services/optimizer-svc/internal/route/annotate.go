package route

import (
	"context"

	"routeopt/pkg/domain"
	"routeopt/pkg/geo"
	"routeopt/pkg/logger"
	"routeopt/services/optimizer-svc/internal/pathfind"
)

// Annotator разворачивает маршруты решателя в детальные сегменты.
// Каждая пара соседних остановок прогоняется через поиск кратчайшего
// пути, так что сегмент может проходить через промежуточные точки.
type Annotator struct {
	speedKmh float64
}

// NewAnnotator создаёт аннотатор. speedKmh используется для оценки
// времени, когда матрица времени недоступна.
func NewAnnotator(speedKmh float64) *Annotator {
	if speedKmh <= 0 {
		speedKmh = domain.DefaultSpeedKmh
	}
	return &Annotator{speedKmh: speedKmh}
}

// Annotate наполняет sol.DetailedRoutes сегментами и накопленными
// величинами. Недостижимая пара остановок даёт сегмент-заглушку с
// сентинел-дистанцией и не останавливает обработку: решение с такой
// парой остаётся пригодным для диагностики.
func (a *Annotator) Annotate(
	ctx context.Context,
	sol *domain.Solution,
	g pathfind.Graph,
	mats *domain.Matrices,
	vehicles []domain.Vehicle,
	deliveries []domain.Delivery,
) error {
	vehicleByID := make(map[string]*domain.Vehicle, len(vehicles))
	for i := range vehicles {
		vehicleByID[vehicles[i].ID] = &vehicles[i]
	}

	// Предзаполненные решателем маршруты (оценки прибытия VRPTW)
	prefilled := make(map[string]*domain.DetailedRoute, len(sol.DetailedRoutes))
	for i := range sol.DetailedRoutes {
		prefilled[sol.DetailedRoutes[i].VehicleID] = &sol.DetailedRoutes[i]
	}

	detailed := make([]domain.DetailedRoute, 0, len(sol.Routes))
	for ri, stops := range sol.Routes {
		if ri >= len(sol.AssignedVehicleIDs) {
			break
		}
		vehicleID := sol.AssignedVehicleIDs[ri]

		dr, err := a.annotateRoute(ctx, vehicleID, stops, g, mats, prefilled[vehicleID])
		if err != nil {
			return err
		}

		if v := vehicleByID[vehicleID]; v != nil && v.Capacity > 0 {
			dr.CapacityUtilization = float64(routeDemand(stops, deliveries)) / float64(v.Capacity)
		}

		detailed = append(detailed, *dr)
	}

	sol.DetailedRoutes = detailed
	return nil
}

func (a *Annotator) annotateRoute(
	ctx context.Context,
	vehicleID string,
	stops []string,
	g pathfind.Graph,
	mats *domain.Matrices,
	prefilled *domain.DetailedRoute,
) (*domain.DetailedRoute, error) {
	dr := &domain.DetailedRoute{VehicleID: vehicleID}

	var cumDist, cumTime float64
	for i, stop := range stops {
		s := domain.Stop{LocationID: stop}
		if prefilled != nil && i < len(prefilled.Stops) && prefilled.Stops[i].LocationID == stop {
			s.EstimatedArrivalMinutes = prefilled.Stops[i].EstimatedArrivalMinutes
		}

		if i > 0 {
			seg, err := a.segment(ctx, stops[i-1], stop, g, mats)
			if err != nil {
				return nil, err
			}
			cumDist += seg.Distance
			cumTime += seg.Time
			dr.Segments = append(dr.Segments, *seg)
		}

		s.CumulativeDistance = cumDist
		s.CumulativeTime = cumTime
		dr.Stops = append(dr.Stops, s)
	}

	dr.TotalDistance = cumDist
	dr.TotalTime = cumTime
	return dr, nil
}

// segment строит один сегмент между соседними остановками
func (a *Annotator) segment(ctx context.Context, from, to string, g pathfind.Graph, mats *domain.Matrices) (*domain.RouteSegment, error) {
	path, dist, err := pathfind.ShortestPath(ctx, g, from, to)
	if err != nil {
		return nil, err
	}

	if path == nil {
		// Пара недостижима по графу: сегмент-заглушка
		logger.Warn("пара остановок недостижима, сегмент помечен сентинелом",
			"from", from,
			"to", to,
		)
		return &domain.RouteSegment{
			From:     from,
			To:       to,
			Path:     []string{from, to},
			Distance: domain.MaxSafeDistance,
			Time:     a.directTime(from, to, mats, domain.MaxSafeDistance),
		}, nil
	}

	return &domain.RouteSegment{
		From:     from,
		To:       to,
		Path:     path,
		Distance: dist,
		Time:     a.pathTime(path, mats, dist),
	}, nil
}

// pathTime суммирует время по рёбрам пути; без матрицы времени оценка
// выводится из дистанции и скорости
func (a *Annotator) pathTime(path []string, mats *domain.Matrices, dist float64) float64 {
	if mats == nil || !mats.HasTime() {
		return geo.TravelMinutes(dist, a.speedKmh)
	}

	var total float64
	for i := 1; i < len(path); i++ {
		fi, ti := mats.Index(path[i-1]), mats.Index(path[i])
		if fi < 0 || ti < 0 {
			return geo.TravelMinutes(dist, a.speedKmh)
		}
		total += mats.Time[fi][ti]
	}
	return total
}

// directTime оценивает время пары напрямую по матрице либо по скорости
func (a *Annotator) directTime(from, to string, mats *domain.Matrices, dist float64) float64 {
	if mats != nil && mats.HasTime() {
		fi, ti := mats.Index(from), mats.Index(to)
		if fi >= 0 && ti >= 0 {
			return mats.Time[fi][ti]
		}
	}
	return geo.TravelMinutes(dist, a.speedKmh)
}

// routeDemand суммирует спрос доставок, локации которых входят в маршрут
func routeDemand(stops []string, deliveries []domain.Delivery) int64 {
	visited := make(map[string]bool, len(stops))
	for _, s := range stops {
		visited[s] = true
	}

	var total int64
	for i := range deliveries {
		if visited[deliveries[i].LocationID] {
			total += deliveries[i].Demand
		}
	}
	return total
}
