package gateway

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"catalog-gateway/internal/common/logger"
	"catalog-gateway/internal/common/metrics"
	"catalog-gateway/internal/common/observability"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
)

// jsonRecoverer turns a handler panic into a JSON 500.
func jsonRecoverer(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					log.Error("panic recovered", map[string]interface{}{
						"panic":     fmt.Sprintf("%v", rvr),
						"path":      r.URL.Path,
						"requestId": chiMiddleware.GetReqID(r.Context()),
					})
					writeJSON(w, http.StatusInternalServerError, map[string]string{"message": msgInternal})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// metricsMiddleware records request count and latency by chi route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// traceMiddleware opens a span per query request carrying the request id.
func traceMiddleware(obs *observability.Observability) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := obs.StartSpan(r.Context(), r.Method+" "+r.URL.Path,
				attribute.String("http.method", r.Method),
				attribute.String("request.id", chiMiddleware.GetReqID(r.Context())),
			)
			defer span.End()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
