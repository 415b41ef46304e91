package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"brain2-canvas/pkg/api"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Timeout bounds the request context. Handlers and stores stop work when it
// expires; if nothing was written by then the client gets a 504.
func Timeout(timeout time.Duration, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) && ww.Status() == 0 {
				logger.Warn("request timed out",
					zap.String("requestID", GetRequestIDFromRequest(r)),
					zap.String("path", r.URL.Path),
					zap.Duration("timeout", timeout),
				)
				api.Error(w, http.StatusGatewayTimeout, "Request timeout")
			}
		})
	}
}
