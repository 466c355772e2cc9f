package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// StatsSource источник статистики signaling-сервера
type StatsSource interface {
	Stats() (topics, connections int)
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	stats   StatsSource
	version string
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(stats StatsSource, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		stats:   stats,
		version: version,
	}
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	Topics      int    `json:"topics"`
	Connections int    `json:"connections"`
}

// Health обрабатывает GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
	}
	if h.stats != nil {
		resp.Topics, resp.Connections = h.stats.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
