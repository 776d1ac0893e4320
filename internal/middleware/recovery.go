package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/josh-kwaku/wallet-ledger/internal/handler"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

// Recovery turns a handler panic into the standard error envelope. Any unit
// of work open at the time has already rolled back on the way up, so a
// money movement carrying an Idempotency-Key can be retried with the same key.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(v)
			}

			log := logging.FromContext(r.Context()).With(
				"method", r.Method,
				"path", r.URL.Path,
			)
			if key := r.Header.Get(handler.IdempotencyKeyHeader); key != "" {
				log = log.With("idempotency_key", key)
			}
			log.Error("panic recovered", "error", v, "stack", string(debug.Stack()))

			if rec.wroteHeader {
				return
			}
			handler.RespondAppError(rec, handler.ErrInternalError, nil)
		}()
		next.ServeHTTP(rec, r)
	})
}
