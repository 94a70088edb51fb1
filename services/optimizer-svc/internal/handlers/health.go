package handlers

import (
	"net/http"
	"time"
)

const statusHealthy = "healthy"

// Health - liveness-проба, всегда отвечает 200 пока процесс жив
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  statusHealthy,
		"service": h.config.App.Name,
		"version": h.config.App.Version,
	})
}

// readyResponse - ответ readiness-пробы
type readyResponse struct {
	Ready        bool              `json:"ready"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Ready - readiness-проба: опрашивает зарегистрированные зависимости
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := readyResponse{Ready: true}
	if len(h.readyChecks) > 0 {
		resp.Dependencies = make(map[string]string, len(h.readyChecks))
	}

	for name, check := range h.readyChecks {
		if err := check(r.Context()); err != nil {
			resp.Ready = false
			resp.Dependencies[name] = err.Error()
			continue
		}
		resp.Dependencies[name] = "ok"
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Info возвращает метаданные сервиса
func (h *Handler) Info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":           h.config.App.Name,
		"version":        h.config.App.Version,
		"environment":    h.config.App.Environment,
		"started_at":     h.startedAt.Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"features": []string{
			"optimization", "rerouting", "history", "manifests",
		},
		"rate_limit": map[string]any{
			"enabled":  h.config.RateLimit.Enabled,
			"requests": h.config.RateLimit.Requests,
			"window":   h.config.RateLimit.Window.String(),
		},
	})
}
