package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Задача
	AttrProblemLocations  = "problem.locations"
	AttrProblemVehicles   = "problem.vehicles"
	AttrProblemDeliveries = "problem.deliveries"
	AttrProblemMode       = "problem.mode"

	// Решение
	AttrSolutionStatus     = "solution.status"
	AttrSolutionRoutes     = "solution.routes"
	AttrSolutionUnassigned = "solution.unassigned"
	AttrSolutionDistance   = "solution.total_distance"
	AttrSolutionCost       = "solution.total_cost"

	// Матрица
	AttrMatrixSize   = "matrix.size"
	AttrMatrixSource = "matrix.source"
)

// ProblemAttributes возвращает атрибуты задачи оптимизации
func ProblemAttributes(mode string, locations, vehicles, deliveries int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrProblemMode, mode),
		attribute.Int(AttrProblemLocations, locations),
		attribute.Int(AttrProblemVehicles, vehicles),
		attribute.Int(AttrProblemDeliveries, deliveries),
	}
}

// SolutionAttributes возвращает атрибуты найденного решения
func SolutionAttributes(status string, routes, unassigned int, distance, cost float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSolutionStatus, status),
		attribute.Int(AttrSolutionRoutes, routes),
		attribute.Int(AttrSolutionUnassigned, unassigned),
		attribute.Float64(AttrSolutionDistance, distance),
		attribute.Float64(AttrSolutionCost, cost),
	}
}

// MatrixAttributes возвращает атрибуты построения матрицы
func MatrixAttributes(source string, size int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMatrixSource, source),
		attribute.Int(AttrMatrixSize, size),
	}
}
