package domain

import "encoding/json"

// SolutionStatus статус решения
type SolutionStatus string

const (
	StatusSuccess    SolutionStatus = "success"
	StatusNoSolution SolutionStatus = "no_solution"
	StatusError      SolutionStatus = "error"
)

// RouteSegment участок маршрута между двумя соседними остановками,
// развёрнутый в путь по графу кратчайших путей
type RouteSegment struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Path     []string `json:"path"`
	Distance float64  `json:"distance"`
	Time     float64  `json:"time"`
}

// Stop остановка маршрута с накопленными величинами
type Stop struct {
	LocationID         string  `json:"location_id"`
	CumulativeDistance float64 `json:"cumulative_distance"`
	CumulativeTime     float64 `json:"cumulative_time"`

	// EstimatedArrivalMinutes заполняется при решении с временными окнами
	EstimatedArrivalMinutes *float64 `json:"estimated_arrival_minutes,omitempty"`
}

// DetailedRoute развёрнутый маршрут одной машины
type DetailedRoute struct {
	VehicleID           string         `json:"vehicle_id"`
	Stops               []Stop         `json:"stops"`
	Segments            []RouteSegment `json:"segments"`
	TotalDistance       float64        `json:"total_distance"`
	TotalTime           float64        `json:"total_time"`
	CapacityUtilization float64        `json:"capacity_utilization"`
}

// VehicleCost стоимость маршрута одной машины
type VehicleCost struct {
	Distance float64 `json:"distance"`
	Cost     float64 `json:"cost"`
	Stops    int     `json:"stops"`
}

// ReroutingInfo сведения о перестроении, записываются в статистику решения
type ReroutingInfo struct {
	Reason                string  `json:"reason"`
	OriginalTotalDistance float64 `json:"original_total_distance"`
	NewTotalDistance      float64 `json:"new_total_distance"`
	CompletedDeliveries   int     `json:"completed_delivery_count"`
	ReroutedDeliveries    int     `json:"rerouted_delivery_count"`

	// Payload события
	TrafficPairCount   int         `json:"traffic_factors,omitempty"`
	DelayMinutes       float64     `json:"delay_minutes,omitempty"`
	DelayedLocationIDs []string    `json:"delayed_location_ids,omitempty"`
	BlockedSegments    []IndexPair `json:"blocked_segments,omitempty"`
}

// Statistics сводная статистика решения
type Statistics struct {
	TotalCost            float64                `json:"total_cost"`
	TotalDistance        float64                `json:"total_distance"`
	TotalStops           int                    `json:"total_stops"`
	VehiclesUsed         int                    `json:"vehicles_used"`
	VehiclesUnused       int                    `json:"vehicles_unused"`
	DeliveriesAssigned   int                    `json:"deliveries_assigned"`
	DeliveriesUnassigned int                    `json:"deliveries_unassigned"`
	AvgDistancePerStop   float64                `json:"avg_distance_per_stop"`
	ComputationTimeMs    float64                `json:"computation_time_ms"`
	CacheHit             bool                   `json:"cache_hit,omitempty"`
	VehicleCosts         map[string]VehicleCost `json:"vehicle_costs,omitempty"`
	ReroutingInfo        *ReroutingInfo         `json:"rerouting_info,omitempty"`
	Error                string                 `json:"error,omitempty"`
}

// Solution результат решения задачи маршрутизации
type Solution struct {
	Status                SolutionStatus  `json:"status"`
	Routes                [][]string      `json:"routes"`
	TotalDistance         float64         `json:"total_distance"`
	TotalCost             float64         `json:"total_cost"`
	AssignedVehicleIDs    []string        `json:"assigned_vehicle_ids"`
	UnassignedDeliveryIDs []string        `json:"unassigned_delivery_ids"`
	DetailedRoutes        []DetailedRoute `json:"detailed_routes,omitempty"`
	Statistics            Statistics      `json:"statistics"`
}

// NewErrorSolution создаёт решение со статусом error и диагностикой
func NewErrorSolution(message string, unassigned []string) *Solution {
	return &Solution{
		Status:                StatusError,
		Routes:                [][]string{},
		AssignedVehicleIDs:    []string{},
		UnassignedDeliveryIDs: unassigned,
		Statistics:            Statistics{Error: message},
	}
}

// ToJSON сериализует решение
func (s *Solution) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// SolutionFromJSON восстанавливает решение из JSON
func SolutionFromJSON(data []byte) (*Solution, error) {
	var s Solution
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// RouteFor возвращает маршрут машины по её ID
func (s *Solution) RouteFor(vehicleID string) ([]string, bool) {
	for i, id := range s.AssignedVehicleIDs {
		if id == vehicleID && i < len(s.Routes) {
			return s.Routes[i], true
		}
	}
	return nil, false
}

// IsAssigned проверяет, попала ли доставка в какой-либо маршрут.
// Остановки маршрута - ID локаций, поэтому сравнение идёт по локации доставки.
func (s *Solution) IsAssigned(d *Delivery) bool {
	for _, id := range s.UnassignedDeliveryIDs {
		if id == d.ID {
			return false
		}
	}
	for _, route := range s.Routes {
		for _, stop := range route {
			if stop == d.LocationID {
				return true
			}
		}
	}
	return false
}
