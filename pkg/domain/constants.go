package domain

import "math"

// Математические константы
const (
	Epsilon  = 1e-9
	Infinity = math.MaxFloat64
)

// MaxSafeDistance - большой конечный сентинел вместо бесконечности.
// Используется при санитизации матриц и как вес "заблокированного" ребра.
const MaxSafeDistance = 1e7

// Масштабирование вещественных величин в целочисленную модель решателя
const (
	DistanceScalingFactor = 100 // точность 10 м
	TimeScalingFactor     = 100 // точность 0.6 с
	CapacityScalingFactor = 1
)

// Пределы маршрута
const (
	MaxRouteDistanceKm  = 10000.0
	MaxRouteDurationMin = 1440.0
)

// Параметры трафика и поиска
const (
	TrafficFactorMin = 1.0
	TrafficFactorMax = 5.0

	DropPenaltyBase  int64 = 1000000
	LoadBalanceCoeff int64 = 100
	DefaultSpeedKmh        = 50.0
)

// Приоритеты доставок
const (
	PriorityLow    = 1
	PriorityNormal = 2
	PriorityHigh   = 3
	PriorityUrgent = 4
)

// FloatEquals сравнивает два float64 с учётом Epsilon
func FloatEquals(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// IsFinite проверяет, что значение не NaN и не бесконечность
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// IsZero проверяет, равно ли значение нулю
func IsZero(v float64) bool {
	return math.Abs(v) < Epsilon
}

// Max возвращает максимум двух float64
func Max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Clamp ограничивает значение диапазоном [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
