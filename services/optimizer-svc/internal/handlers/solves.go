package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"routeopt/pkg/domain"
	"routeopt/pkg/logger"
	"routeopt/services/optimizer-svc/internal/manifest"
	"routeopt/services/optimizer-svc/internal/repository"
)

// solveSummary - запись списка решений в формате API
type solveSummary struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name,omitempty"`
	Kind                 string    `json:"kind"`
	Status               string    `json:"status"`
	TotalDistance        float64   `json:"total_distance"`
	TotalCost            float64   `json:"total_cost"`
	VehiclesUsed         int       `json:"vehicles_used"`
	DeliveriesAssigned   int       `json:"deliveries_assigned"`
	DeliveriesUnassigned int       `json:"deliveries_unassigned"`
	ComputationTimeMs    float64   `json:"computation_time_ms"`
	Tags                 []string  `json:"tags,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// solveDetail - полная запись с payload запроса и решения
type solveDetail struct {
	solveSummary
	Request  json.RawMessage `json:"request"`
	Solution json.RawMessage `json:"solution"`
}

func toSolveSummary(s *repository.SolveSummary) solveSummary {
	return solveSummary{
		ID:                   s.ID,
		Name:                 s.Name,
		Kind:                 s.Kind,
		Status:               s.Status,
		TotalDistance:        s.TotalDistance,
		TotalCost:            s.TotalCost,
		VehiclesUsed:         s.VehiclesUsed,
		DeliveriesAssigned:   s.DeliveriesAssigned,
		DeliveriesUnassigned: s.DeliveriesUnassigned,
		ComputationTimeMs:    s.ComputationTimeMs,
		Tags:                 s.Tags,
		CreatedAt:            s.CreatedAt,
	}
}

func toSolveDetail(s *repository.Solve) solveDetail {
	return solveDetail{
		solveSummary: solveSummary{
			ID:                   s.ID,
			Name:                 s.Name,
			Kind:                 s.Kind,
			Status:               s.Status,
			TotalDistance:        s.TotalDistance,
			TotalCost:            s.TotalCost,
			VehiclesUsed:         s.VehiclesUsed,
			DeliveriesAssigned:   s.DeliveriesAssigned,
			DeliveriesUnassigned: s.DeliveriesUnassigned,
			ComputationTimeMs:    s.ComputationTimeMs,
			Tags:                 s.Tags,
			CreatedAt:            s.CreatedAt,
		},
		Request:  json.RawMessage(s.RequestData),
		Solution: json.RawMessage(s.ResponseData),
	}
}

// listSolvesResponse - страница истории решений
type listSolvesResponse struct {
	Solves []solveSummary `json:"solves"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListSolves возвращает страницу сохранённых решений с фильтрами
func (h *Handler) ListSolves(w http.ResponseWriter, r *http.Request) {
	if h.solves == nil {
		writeError(w, http.StatusServiceUnavailable, "solve history is disabled")
		return
	}

	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, total, err := h.solves.List(r.Context(), opts)
	if err != nil {
		logger.WithContext(r.Context()).Error("list solves failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := listSolvesResponse{
		Solves: make([]solveSummary, 0, len(summaries)),
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	for _, s := range summaries {
		resp.Solves = append(resp.Solves, toSolveSummary(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSolve возвращает одно решение с полными payload запроса и ответа
func (h *Handler) GetSolve(w http.ResponseWriter, r *http.Request) {
	if h.solves == nil {
		writeError(w, http.StatusServiceUnavailable, "solve history is disabled")
		return
	}

	id := mux.Vars(r)["id"]
	solve, err := h.solves.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSolveNotFound) {
			writeError(w, http.StatusNotFound, "solve not found")
			return
		}
		logger.WithContext(r.Context()).Error("get solve failed", "solve_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toSolveDetail(solve))
}

// DeleteSolve удаляет решение из истории
func (h *Handler) DeleteSolve(w http.ResponseWriter, r *http.Request) {
	if h.solves == nil {
		writeError(w, http.StatusServiceUnavailable, "solve history is disabled")
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.solves.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrSolveNotFound) {
			writeError(w, http.StatusNotFound, "solve not found")
			return
		}
		logger.WithContext(r.Context()).Error("delete solve failed", "solve_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExportManifest выгружает решение как маршрутный лист (xlsx/pdf/csv)
func (h *Handler) ExportManifest(w http.ResponseWriter, r *http.Request) {
	if h.solves == nil {
		writeError(w, http.StatusServiceUnavailable, "solve history is disabled")
		return
	}

	id := mux.Vars(r)["id"]
	solve, err := h.solves.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSolveNotFound) {
			writeError(w, http.StatusNotFound, "solve not found")
			return
		}
		logger.WithContext(r.Context()).Error("get solve failed", "solve_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sol, err := domain.SolutionFromJSON(solve.ResponseData)
	if err != nil {
		logger.WithContext(r.Context()).Error("stored solution is corrupt", "solve_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "stored solution is corrupt")
		return
	}

	gen, err := manifest.ForFormat(r.URL.Query().Get("format"), h.config.Export)
	if err != nil {
		writeAppError(w, err)
		return
	}

	data := &manifest.ManifestData{
		SolveID:     solve.ID,
		Name:        solve.Name,
		Solution:    sol,
		GeneratedAt: time.Now(),
	}

	content, err := gen.Generate(r.Context(), data)
	if err != nil {
		logger.WithContext(r.Context()).Error("manifest generation failed",
			"solve_id", id, "format", gen.Format(), "error", err)
		writeError(w, http.StatusInternalServerError, "manifest generation failed")
		return
	}

	filename := fmt.Sprintf("manifest-%s.%s", solve.ID, gen.Format())
	w.Header().Set("Content-Type", gen.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		logger.Warn("manifest write failed", "error", err)
	}
}

// parseListOptions разбирает query-параметры списка решений
func parseListOptions(r *http.Request) (*repository.ListOptions, error) {
	q := r.URL.Query()
	opts := &repository.ListOptions{Filter: &repository.ListFilter{}}

	var err error
	if opts.Limit, err = parseIntParam(q.Get("limit"), "limit"); err != nil {
		return nil, err
	}
	if opts.Offset, err = parseIntParam(q.Get("offset"), "offset"); err != nil {
		return nil, err
	}

	if kind := q.Get("kind"); kind != "" {
		if kind != repository.KindOptimize && kind != repository.KindReroute {
			return nil, fmt.Errorf("kind must be %q or %q", repository.KindOptimize, repository.KindReroute)
		}
		opts.Filter.Kind = kind
	}
	opts.Filter.Status = q.Get("status")
	if tags := q.Get("tags"); tags != "" {
		opts.Filter.Tags = strings.Split(tags, ",")
	}

	if opts.Filter.MinDistance, err = parseFloatParam(q.Get("min_distance"), "min_distance"); err != nil {
		return nil, err
	}
	if opts.Filter.MaxDistance, err = parseFloatParam(q.Get("max_distance"), "max_distance"); err != nil {
		return nil, err
	}
	if opts.Filter.StartTime, err = parseTimeParam(q.Get("start_time"), "start_time"); err != nil {
		return nil, err
	}
	if opts.Filter.EndTime, err = parseTimeParam(q.Get("end_time"), "end_time"); err != nil {
		return nil, err
	}

	switch sort := q.Get("sort"); sort {
	case "", "created_desc":
		opts.Sort = repository.SortByCreatedDesc
	case "created_asc":
		opts.Sort = repository.SortByCreatedAsc
	case "distance_desc":
		opts.Sort = repository.SortByDistanceDesc
	case "cost_desc":
		opts.Sort = repository.SortByCostDesc
	default:
		return nil, fmt.Errorf("unknown sort order %q", sort)
	}

	return opts, nil
}

func parseIntParam(s, name string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

func parseFloatParam(s, name string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &v, nil
}

func parseTimeParam(s, name string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC3339 timestamp", name)
	}
	return &t, nil
}
