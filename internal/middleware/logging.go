package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// requestInfo is filled in by Auth and Idempotency further down the chain and
// read back when the request completes.
type requestInfo struct {
	userID         uuid.UUID
	idempotencyKey string
}

type requestInfoKey struct{}

func noteUser(ctx context.Context, id uuid.UUID) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.userID = id
	}
}

func noteIdempotencyKey(ctx context.Context, key string) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.idempotencyKey = key
	}
}

// Logging writes one line per request carrying the caller and, for money
// movements, the idempotency key. Server errors and concurrency back-offs
// log at error and warn level.
func Logging(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			info := &requestInfo{}
			logger := base.With("request_id", TraceIDFromContext(r.Context()))

			ctx := logging.WithLogger(r.Context(), logger)
			ctx = context.WithValue(ctx, requestInfoKey{}, info)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if info.userID != uuid.Nil {
				attrs = append(attrs, "user_id", info.userID)
			}
			if info.idempotencyKey != "" {
				attrs = append(attrs, "idempotency_key", info.idempotencyKey)
			}

			switch {
			case rec.status == http.StatusServiceUnavailable && rec.Header().Get("Retry-After") != "":
				logger.Warn("request deferred", attrs...)
			case rec.status >= http.StatusInternalServerError:
				logger.Error("request failed", attrs...)
			default:
				logger.Info("request completed", attrs...)
			}
		})
	}
}
