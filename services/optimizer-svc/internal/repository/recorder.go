package repository

import (
	"context"
	"encoding/json"
	"time"

	"routeopt/pkg/domain"
	"routeopt/pkg/logger"
)

// recordTimeout ограничивает фоновую запись истории
const recordTimeout = 5 * time.Second

// Recorder пишет историю расчётов в фоне: отказ хранилища логируется,
// но никогда не валит сам расчёт
type Recorder struct {
	repo SolveRepository
}

// NewRecorder создаёт рекордер; repo == nil отключает запись
func NewRecorder(repo SolveRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Enabled сообщает, включена ли запись истории
func (r *Recorder) Enabled() bool {
	return r != nil && r.repo != nil
}

// RecordOptimize сохраняет результат оптимизации
func (r *Recorder) RecordOptimize(name string, req *domain.OptimizeRequest, sol *domain.Solution, tags []string) {
	if !r.Enabled() {
		return
	}
	solve := r.buildSolve(name, KindOptimize, req, sol, tags)
	go r.store(solve)
}

// RecordReroute сохраняет результат перестроения
func (r *Recorder) RecordReroute(name string, req *domain.RerouteRequest, sol *domain.Solution, tags []string) {
	if !r.Enabled() {
		return
	}
	reqData, err := json.Marshal(req)
	if err != nil {
		logger.Warn("не удалось сериализовать запрос перестроения", "error", err)
	}
	solve := r.buildSolve(name, KindReroute, nil, sol, tags)
	solve.RequestData = reqData
	go r.store(solve)
}

func (r *Recorder) buildSolve(name, kind string, req *domain.OptimizeRequest, sol *domain.Solution, tags []string) *Solve {
	solve := &Solve{
		Name:   name,
		Kind:   kind,
		Status: string(sol.Status),
		Tags:   tags,
	}

	if req != nil {
		if data, err := json.Marshal(req); err == nil {
			solve.RequestData = data
		} else {
			logger.Warn("не удалось сериализовать запрос оптимизации", "error", err)
		}
	}
	if data, err := sol.ToJSON(); err == nil {
		solve.ResponseData = data
	} else {
		logger.Warn("не удалось сериализовать решение", "error", err)
	}

	solve.TotalDistance = sol.TotalDistance
	solve.TotalCost = sol.TotalCost
	solve.DeliveriesUnassigned = len(sol.UnassignedDeliveryIDs)
	solve.VehiclesUsed = sol.Statistics.VehiclesUsed
	solve.DeliveriesAssigned = sol.Statistics.DeliveriesAssigned
	solve.ComputationTimeMs = sol.Statistics.ComputationTimeMs

	return solve
}

func (r *Recorder) store(solve *Solve) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, solve); err != nil {
		logger.Warn("не удалось сохранить историю расчёта",
			"kind", solve.Kind,
			"status", solve.Status,
			"error", err,
		)
		return
	}
	logger.Debug("расчёт сохранён в историю", "id", solve.ID, "kind", solve.Kind)
}
