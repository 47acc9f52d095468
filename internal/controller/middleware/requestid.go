package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"docplain/internal/logger"
)

// RequestID attaches a correlation ID to every request context and echoes it
// in the response. Incoming X-Request-ID headers are honored.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), reqID)))
	})
}
