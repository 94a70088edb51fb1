// Package handlers содержит HTTP API сервиса оптимизации маршрутов.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"routeopt/gen/openapi"
	"routeopt/pkg/apperror"
	"routeopt/pkg/config"
	"routeopt/pkg/logger"
	"routeopt/pkg/swagger"
	"routeopt/pkg/telemetry"
	"routeopt/services/optimizer-svc/internal/repository"
	"routeopt/services/optimizer-svc/internal/service"
)

// ReadyCheck проверяет готовность одной зависимости (БД, кэш и т.п.)
type ReadyCheck func(ctx context.Context) error

// Handler объединяет все HTTP-обработчики сервиса
type Handler struct {
	config    *config.Config
	optimizer *service.Optimizer
	rerouter  *service.Rerouter
	recorder  *repository.Recorder
	solves    repository.SolveRepository
	startedAt time.Time

	readyChecks map[string]ReadyCheck
}

// NewHandler создаёт handler. solves может быть nil, если история отключена.
func NewHandler(
	cfg *config.Config,
	optimizer *service.Optimizer,
	rerouter *service.Rerouter,
	solves repository.SolveRepository,
) *Handler {
	return &Handler{
		config:      cfg,
		optimizer:   optimizer,
		rerouter:    rerouter,
		recorder:    repository.NewRecorder(solves),
		solves:      solves,
		startedAt:   time.Now(),
		readyChecks: make(map[string]ReadyCheck),
	}
}

// AddReadyCheck регистрирует проверку зависимости для /ready
func (h *Handler) AddReadyCheck(name string, check ReadyCheck) {
	h.readyChecks[name] = check
}

// Router собирает маршруты и цепочку middleware
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/optimize", h.Optimize).Methods(http.MethodPost)
	api.HandleFunc("/reroute", h.Reroute).Methods(http.MethodPost)
	api.HandleFunc("/solves", h.ListSolves).Methods(http.MethodGet)
	api.HandleFunc("/solves/{id}", h.GetSolve).Methods(http.MethodGet)
	api.HandleFunc("/solves/{id}", h.DeleteSolve).Methods(http.MethodDelete)
	api.HandleFunc("/solves/{id}/manifest", h.ExportManifest).Methods(http.MethodGet)

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", h.Ready).Methods(http.MethodGet)
	r.HandleFunc("/info", h.Info).Methods(http.MethodGet)

	if h.config.Swagger.Enabled {
		swCfg := swagger.DefaultConfig()
		if h.config.Swagger.Title != "" {
			swCfg.Title = h.config.Swagger.Title
		}
		r.PathPrefix(swCfg.BasePath).Handler(swagger.NewHandler(swCfg, openapi.MustGetSpec()))
	}

	// Порядок важен: recover снаружи, auth после логирования,
	// чтобы отказы аутентификации тоже попадали в access-лог
	r.Use(
		Recover,
		RequestID,
		Logging,
		MetricsMiddleware,
		telemetry.HTTPMiddleware,
		CORS(h.config.HTTP.CORS),
	)
	api.Use(
		Auth(h.config.Auth),
		RateLimit(h.config.RateLimit),
		Audit(h.config.App.Name),
	)

	return r
}

// writeJSON сериализует ответ; ошибку кодирования уже не вернуть клиенту
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}

// errorResponse - единый формат ошибок API
type errorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeAppError маппит apperror на HTTP-статус и раскрывает поле/детали
func writeAppError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		resp.Code = string(appErr.Code)
		resp.Field = appErr.Field
		resp.Details = appErr.Details
	}

	writeJSON(w, apperror.HTTPStatus(err), resp)
}
