// Package domain содержит модель данных движка оптимизации маршрутов:
// локации, транспорт, доставки, матрицы расстояний и решения.
package domain

// Location географическая точка запроса
type Location struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	IsDepot   bool    `json:"is_depot"`

	// Временное окно в минутах от условной эпохи; nil - окно не задано
	TimeWindowStart *float64 `json:"time_window_start,omitempty"`
	TimeWindowEnd   *float64 `json:"time_window_end,omitempty"`

	// ServiceTime - время обслуживания на точке в минутах
	ServiceTime float64 `json:"service_time,omitempty"`
}

// HasTimeWindow проверяет, задано ли временное окно
func (l *Location) HasTimeWindow() bool {
	return l.TimeWindowStart != nil && l.TimeWindowEnd != nil
}

// Vehicle транспортная единица
type Vehicle struct {
	ID              string  `json:"id"`
	Capacity        int64   `json:"capacity"`
	StartLocationID string  `json:"start_location_id,omitempty"`
	EndLocationID   string  `json:"end_location_id,omitempty"`
	CostPerKm       float64 `json:"cost_per_distance_unit,omitempty"`
	FixedCost       float64 `json:"fixed_cost,omitempty"`

	// MaxDistance - предел пробега в км; 0 означает отсутствие предела
	MaxDistance float64 `json:"max_distance,omitempty"`
	// MaxStops - предел числа остановок; 0 означает отсутствие предела
	MaxStops int `json:"max_stops,omitempty"`

	// Available - доступность; nil трактуется как true
	Available *bool    `json:"available,omitempty"`
	Skills    []string `json:"skills,omitempty"`
}

// IsAvailable возвращает доступность машины (по умолчанию доступна)
func (v *Vehicle) IsAvailable() bool {
	return v.Available == nil || *v.Available
}

// HasSkills проверяет, покрывает ли машина требуемые навыки
func (v *Vehicle) HasSkills(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]bool, len(v.Skills))
	for _, s := range v.Skills {
		have[s] = true
	}
	for _, r := range required {
		if !have[r] {
			return false
		}
	}
	return true
}

// Delivery единица работы, привязанная к локации
type Delivery struct {
	ID         string `json:"id"`
	LocationID string `json:"location_id"`
	Demand     int64  `json:"demand"`
	// Priority - целое, больше = важнее; 0 трактуется как PriorityNormal
	Priority       int      `json:"priority,omitempty"`
	RequiredSkills []string `json:"required_skills,omitempty"`
	IsPickup       bool     `json:"is_pickup,omitempty"`
}

// EffectivePriority возвращает приоритет с подстановкой значения по умолчанию
func (d *Delivery) EffectivePriority() int {
	if d.Priority <= 0 {
		return PriorityNormal
	}
	return d.Priority
}

// Matrices пара матриц (расстояния в км, время в минутах) с порядком ID.
// Обе матрицы индексируются одинаково; Time может отсутствовать.
type Matrices struct {
	Distance [][]float64 `json:"distance_matrix"`
	Time     [][]float64 `json:"time_matrix,omitempty"`
	IDs      []string    `json:"location_ids"`
}

// HasTime проверяет наличие матрицы времени
func (m *Matrices) HasTime() bool {
	return len(m.Time) > 0
}

// Index возвращает индекс локации в матрице или -1
func (m *Matrices) Index(id string) int {
	for i, v := range m.IDs {
		if v == id {
			return i
		}
	}
	return -1
}

// OptimizeRequest запрос на построение маршрутов
type OptimizeRequest struct {
	Locations  []Location `json:"locations"`
	Vehicles   []Vehicle  `json:"vehicles"`
	Deliveries []Delivery `json:"deliveries"`

	ConsiderTraffic     bool         `json:"consider_traffic,omitempty"`
	ConsiderTimeWindows bool         `json:"consider_time_windows,omitempty"`
	TrafficData         *TrafficData `json:"traffic_data,omitempty"`

	// UseAPI - nil означает значение из конфигурации
	UseAPI           *bool   `json:"use_api,omitempty"`
	TimeLimitSeconds float64 `json:"time_limit_seconds,omitempty"`
}

// Типы событий перестроения маршрутов
const (
	RerouteTraffic   = "traffic"
	RerouteDelay     = "delay"
	RerouteRoadblock = "roadblock"
)

// RerouteRequest запрос на перестроение маршрутов по событию
type RerouteRequest struct {
	RerouteType          string     `json:"reroute_type"`
	CurrentSolution      *Solution  `json:"current_solution"`
	Locations            []Location `json:"locations"`
	Vehicles             []Vehicle  `json:"vehicles"`
	OriginalDeliveries   []Delivery `json:"original_deliveries"`
	CompletedDeliveryIDs []string   `json:"completed_delivery_ids,omitempty"`

	// Payload события: трафик
	TrafficData *TrafficData `json:"traffic_data,omitempty"`
	// Payload события: задержка обслуживания
	DelayedLocationIDs []string `json:"delayed_location_ids,omitempty"`
	DelayMinutes       float64  `json:"delay_minutes,omitempty"`
	// Payload события: перекрытие сегментов (пары индексов матрицы)
	BlockedSegments []IndexPair `json:"blocked_segments,omitempty"`

	ConsiderTimeWindows bool    `json:"consider_time_windows,omitempty"`
	UseAPI              *bool   `json:"use_api,omitempty"`
	TimeLimitSeconds    float64 `json:"time_limit_seconds,omitempty"`
}
