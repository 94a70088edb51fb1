package route

import (
	"time"

	"routeopt/pkg/domain"
)

// AggregateStats пересчитывает статистику решения по развёрнутым
// маршрутам. Функция идемпотентна: все величины выводятся заново из
// сегментов, повторный вызов ничего не накапливает. Поля, которые
// заполняются выше по конвейеру (cache_hit, rerouting_info, error),
// не трогаются.
func AggregateStats(sol *domain.Solution, vehicles []domain.Vehicle, deliveries []domain.Delivery, elapsed time.Duration) {
	vehicleByID := make(map[string]*domain.Vehicle, len(vehicles))
	for i := range vehicles {
		vehicleByID[vehicles[i].ID] = &vehicles[i]
	}

	stats := &sol.Statistics
	stats.VehicleCosts = make(map[string]domain.VehicleCost, len(sol.DetailedRoutes))

	var totalCost, totalDistance float64
	totalStops := 0

	for ri := range sol.DetailedRoutes {
		dr := &sol.DetailedRoutes[ri]

		var routeDist float64
		for si := range dr.Segments {
			routeDist += dr.Segments[si].Distance
		}

		cost := 0.0
		if v := vehicleByID[dr.VehicleID]; v != nil {
			cost = v.FixedCost + routeDist*v.CostPerKm
		}

		stops := uniqueNonDepotStops(dr)
		stats.VehicleCosts[dr.VehicleID] = domain.VehicleCost{
			Distance: routeDist,
			Cost:     cost,
			Stops:    stops,
		}

		totalCost += cost
		totalDistance += routeDist
		totalStops += stops
	}

	stats.TotalCost = totalCost
	stats.TotalDistance = totalDistance
	stats.TotalStops = totalStops
	stats.VehiclesUsed = len(sol.Routes)
	stats.VehiclesUnused = countAvailable(vehicles) - len(sol.Routes)
	if stats.VehiclesUnused < 0 {
		stats.VehiclesUnused = 0
	}
	stats.DeliveriesUnassigned = len(sol.UnassignedDeliveryIDs)
	stats.DeliveriesAssigned = len(deliveries) - stats.DeliveriesUnassigned
	if stats.DeliveriesAssigned < 0 {
		stats.DeliveriesAssigned = 0
	}
	if totalStops > 0 {
		stats.AvgDistancePerStop = totalDistance / float64(totalStops)
	} else {
		stats.AvgDistancePerStop = 0
	}
	stats.ComputationTimeMs = float64(elapsed.Microseconds()) / 1000

	sol.TotalCost = totalCost
	if totalDistance > 0 || len(sol.DetailedRoutes) > 0 {
		sol.TotalDistance = totalDistance
	}
}

// uniqueNonDepotStops считает уникальные остановки маршрута без
// начального и конечного депо
func uniqueNonDepotStops(dr *domain.DetailedRoute) int {
	if len(dr.Stops) == 0 {
		return 0
	}

	endpoints := map[string]bool{
		dr.Stops[0].LocationID:               true,
		dr.Stops[len(dr.Stops)-1].LocationID: true,
	}

	seen := make(map[string]bool)
	for i := 1; i < len(dr.Stops)-1; i++ {
		id := dr.Stops[i].LocationID
		if endpoints[id] {
			continue
		}
		seen[id] = true
	}
	return len(seen)
}

func countAvailable(vehicles []domain.Vehicle) int {
	n := 0
	for i := range vehicles {
		if vehicles[i].IsAvailable() {
			n++
		}
	}
	return n
}
