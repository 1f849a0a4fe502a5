// Package middleware holds small, composable HTTP wrappers.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/intake/internal/logger"
	"github.com/yanizio/intake/internal/ua"
)

// RequestLogger attaches a request-scoped logger to the context and logs
// one line per request once the handler returns.  The logger carries the
// chi request id and the parsed User-Agent so pipeline logs can be tied
// back to a device.
func RequestLogger(base *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := ua.Parse(r.UserAgent())

			log := base.With(
				"req", chimw.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"device", info.Device,
				"browser", info.Browser,
				"bot", info.IsBot,
			)
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), log)))

			log.Infow("request",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"dur", time.Since(start),
			)
		})
	}
}
