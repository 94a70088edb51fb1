// Package repository хранит историю расчётов маршрутов в PostgreSQL.
package repository

import (
	"context"
	"errors"
	"time"
)

// Стандартные ошибки
var ErrSolveNotFound = errors.New("solve not found")

// Виды расчётов
const (
	KindOptimize = "optimize"
	KindReroute  = "reroute"
)

// Solve запись о выполненном расчёте
type Solve struct {
	ID                   string
	Name                 string
	Kind                 string // optimize | reroute
	Status               string // success | no_solution | error
	TotalDistance        float64
	TotalCost            float64
	VehiclesUsed         int
	DeliveriesAssigned   int
	DeliveriesUnassigned int
	ComputationTimeMs    float64
	RequestData          []byte // JSON
	ResponseData         []byte // JSON
	Tags                 []string
	CreatedAt            time.Time
}

// SolveSummary краткая информация о расчёте для списков
type SolveSummary struct {
	ID                   string
	Name                 string
	Kind                 string
	Status               string
	TotalDistance        float64
	TotalCost            float64
	VehiclesUsed         int
	DeliveriesAssigned   int
	DeliveriesUnassigned int
	ComputationTimeMs    float64
	Tags                 []string
	CreatedAt            time.Time
}

// ListFilter фильтры для списка
type ListFilter struct {
	Kind        string
	Status      string
	Tags        []string
	MinDistance *float64
	MaxDistance *float64
	StartTime   *time.Time
	EndTime     *time.Time
}

// SortOrder порядок сортировки
type SortOrder string

const (
	SortByCreatedDesc  SortOrder = "created_desc"
	SortByCreatedAsc   SortOrder = "created_asc"
	SortByDistanceDesc SortOrder = "distance_desc"
	SortByCostDesc     SortOrder = "cost_desc"
)

// ListOptions опции для списка
type ListOptions struct {
	Limit  int
	Offset int
	Filter *ListFilter
	Sort   SortOrder
}

// SolveRepository интерфейс репозитория расчётов
type SolveRepository interface {
	Create(ctx context.Context, solve *Solve) error
	GetByID(ctx context.Context, id string) (*Solve, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts *ListOptions) ([]*SolveSummary, int64, error)
}
