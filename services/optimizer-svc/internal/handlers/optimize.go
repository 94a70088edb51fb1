package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"routeopt/pkg/domain"
	"routeopt/pkg/logger"
)

// Optimize решает задачу маршрутизации по JSON-запросу.
// Ошибки валидации возвращаются как 400 со списком полей; исход
// no_solution/error - тоже 400, но с решением в теле (диагностика в
// statistics). Метрики операции пишет сервисный слой.
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req domain.OptimizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sol, err := h.optimizer.Optimize(r.Context(), &req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if h.recorder.Enabled() {
		h.recorder.RecordOptimize(requestName(r), &req, sol, nil)
	}

	logger.WithContext(r.Context()).Info("optimize completed",
		"status", sol.Status,
		"routes", len(sol.Routes),
		"unassigned", len(sol.UnassignedDeliveryIDs),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, solutionStatusCode(sol), sol)
}

// Reroute перестраивает маршруты после события traffic/delay/roadblock
func (h *Handler) Reroute(w http.ResponseWriter, r *http.Request) {
	var req domain.RerouteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sol, err := h.rerouter.Reroute(r.Context(), &req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if h.recorder.Enabled() {
		h.recorder.RecordReroute(requestName(r), &req, sol, nil)
	}

	writeJSON(w, solutionStatusCode(sol), sol)
}

// solutionStatusCode выбирает HTTP-статус по исходу решателя:
// успех - 200, no_solution и error - 400 c решением в теле
func solutionStatusCode(sol *domain.Solution) int {
	if sol.Status == domain.StatusSuccess {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

// decodeBody разбирает JSON-тело, отклоняя неизвестные поля
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// requestName - имя сохраняемого решения из заголовка X-Solve-Name
func requestName(r *http.Request) string {
	return r.Header.Get("X-Solve-Name")
}
