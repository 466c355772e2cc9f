package signal

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iudanet/mathroom/internal/server/middleware"
	"github.com/iudanet/mathroom/pkg/api"
)

// RouterConfig зависимости HTTP-роутера signaling-сервера.
type RouterConfig struct {
	Hub     *Hub
	Health  http.HandlerFunc
	Metrics http.Handler
	Limiter *middleware.RateLimiter
	Logger  *slog.Logger
}

// NewRouter собирает роутер: /ws (с rate limit), /health, /metrics.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RecoveryMiddleware(cfg.Logger, func(*http.Request) {
		cfg.Hub.metrics.Panics.Inc()
	}))
	r.Use(middleware.LoggingWithSkip(cfg.Logger, []string{"/health", "/metrics"}))

	ws := http.Handler(http.HandlerFunc(cfg.Hub.ServeWS))
	if cfg.Limiter != nil {
		ws = middleware.RateLimitMiddleware(cfg.Limiter, cfg.Logger)(ws)
	}
	r.Methods(http.MethodGet).Path(api.SignalPath).Handler(ws)

	if cfg.Health != nil {
		r.Methods(http.MethodGet).Path("/health").HandlerFunc(cfg.Health)
	}
	if cfg.Metrics != nil {
		r.Methods(http.MethodGet).Path("/metrics").Handler(cfg.Metrics)
	}

	return r
}
