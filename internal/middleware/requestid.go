// Package middleware holds the HTTP guards shared by the chat endpoints:
// request correlation, rate limiting and idempotent replay.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/logger"
)

const (
	headerRequestID = "X-Request-ID"
	headerSessionID = "X-Session-ID"
	maxIDLen        = 128
)

// RequestID puts a request id into the context and the response header.
// A client-supplied X-Request-ID is kept only if it is a safe token;
// otherwise a UUID is generated. A safe X-Session-ID is added to the
// context for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !safeID(id) {
			id = uuid.NewString()
			r.Header.Set(headerRequestID, id)
		}
		ctx := logger.WithRequestID(r.Context(), id)
		if sid := r.Header.Get(headerSessionID); safeID(sid) {
			ctx = logger.WithSessionID(ctx, sid)
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// safeID accepts 1 to maxIDLen characters from [A-Za-z0-9._:-], which keeps
// ids inert in log lines and headers.
func safeID(s string) bool {
	if s == "" || len(s) > maxIDLen {
		return false
	}
	for i := range len(s) {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}
