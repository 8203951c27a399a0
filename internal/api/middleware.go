// internal/api/middleware.go
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"webhook-ingest/internal/metrics"
)

type contextKey string

const extrasKey contextKey = "request_extras"

// RequestExtras carries per-request fields a handler wants included in the
// request log record. Each request gets its own instance; handlers run on
// a single goroutine so no locking is needed.
type RequestExtras struct {
	Result    string
	MessageID string
	Dup       bool
	HasDup    bool
}

// Extras returns the log extras attached to the request context.
func Extras(ctx context.Context) *RequestExtras {
	if e, ok := ctx.Value(extrasKey).(*RequestExtras); ok {
		return e
	}
	return &RequestExtras{}
}

// RequestLogger emits one structured log record per request and records
// HTTP metrics: request id, method, path, status, latency, plus whatever
// extras the handler attached.
func RequestLogger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.NewString()
			extras := &RequestExtras{}
			ctx := context.WithValue(r.Context(), extrasKey, extras)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				latency := time.Since(start)

				metrics.HTTPRequests.WithLabelValues(r.URL.Path, strconv.Itoa(status)).Inc()
				metrics.Latency.Observe(float64(latency) / float64(time.Millisecond))

				evt := logger.Info().
					Str("request_id", requestID).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Dur("latency", latency)
				if extras.Result != "" {
					evt = evt.Str("result", extras.Result)
				}
				if extras.MessageID != "" {
					evt = evt.Str("message_id", extras.MessageID)
				}
				if extras.HasDup {
					evt = evt.Bool("dup", extras.Dup)
				}
				evt.Msg("request processed")
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}
