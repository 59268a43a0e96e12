package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"tradebot/pkg/logger"
)

// Recovery - middleware для восстановления после паники в handlers
//
// Перехватывает panic в HTTP handlers, логирует stack trace и
// возвращает клиенту 500 вместо падения всего процесса. Торговый
// движок работает в том же процессе, что и HTTP API: паника в
// handler не должна останавливать торговлю.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic in http handler",
					zap.Any("panic", err),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
