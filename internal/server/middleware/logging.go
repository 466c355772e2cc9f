package middleware

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/felixge/httpsnoop"

	"github.com/iudanet/mathroom/internal/room"
)

// LoggingMiddleware создает middleware для логирования HTTP запросов
// Логирует метод, путь, статус, время выполнения, размер ответа.
// httpsnoop сохраняет http.Hijacker, поэтому middleware не ломает upgrade до websocket.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			// Определяем уровень логирования на основе статуса
			logLevel := slog.LevelInfo
			if m.Code >= 500 {
				logLevel = slog.LevelError
			} else if m.Code >= 400 {
				logLevel = slog.LevelWarn
			}

			logger.Log(r.Context(), logLevel, "HTTP request",
				"method", r.Method,
				"url", sanitizeURL(r.URL),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"status", m.Code,
				"duration_ms", m.Duration.Milliseconds(),
				"bytes_written", m.Written,
			)
		})
	}
}

// sanitizeURL скрывает идентификатор комнаты в query:
// знание join-id дает доступ к комнате.
func sanitizeURL(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}

	query := u.Query()
	if query.Has(room.QueryParam) {
		query.Set(room.QueryParam, "***")
	}
	return u.Path + "?" + query.Encode()
}

// LoggingWithSkip создает middleware с возможностью пропуска определенных путей
// Полезно для /health и /metrics, которые опрашиваются часто.
func LoggingWithSkip(logger *slog.Logger, skipPaths []string) func(http.Handler) http.Handler {
	skipMap := make(map[string]bool)
	for _, path := range skipPaths {
		skipMap[path] = true
	}

	return func(next http.Handler) http.Handler {
		logged := LoggingMiddleware(logger)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipMap[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			logged.ServeHTTP(w, r)
		})
	}
}
