package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/websocket"

	"github.com/iudanet/mathroom/pkg/api"
)

// PanicHook вызывается после перехвата паники (например, счетчик метрик).
type PanicHook func(r *http.Request)

// RecoveryMiddleware создает middleware для восстановления после паники.
// Для обычных запросов возвращает 500 Internal Server Error. Для websocket
// upgrade ответ не пишется: соединение уже может быть перехвачено хендлером.
func RecoveryMiddleware(logger *slog.Logger, hooks ...PanicHook) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}

				upgrade := websocket.IsWebSocketUpgrade(r)
				logger.Error("Panic recovered",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"upgrade", upgrade,
					"stack", string(debug.Stack()),
				)
				for _, hook := range hooks {
					hook(r)
				}

				if upgrade {
					return
				}
				// Не раскрываем детали клиенту
				writeError(w, http.StatusInternalServerError, "Internal Server Error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: message})
}
