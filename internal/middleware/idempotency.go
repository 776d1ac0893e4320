package middleware

import (
	"net/http"
	"unicode"

	"github.com/josh-kwaku/wallet-ledger/internal/handler"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

const maxIdempotencyKeyLen = 255

// Idempotency rejects malformed Idempotency-Key headers on unsafe methods.
// Replay itself happens in the ledger, keyed on completed transactions.
func Idempotency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(handler.IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !printableASCII(key, maxIdempotencyKeyLen) {
			handler.RespondAppError(w, handler.ErrInvalidIdempotencyKey, nil)
			return
		}

		noteIdempotencyKey(r.Context(), key)
		ctx := logging.With(r.Context(), "idempotency_key", key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func printableASCII(s string, maxLen int) bool {
	if len(s) > maxLen {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
