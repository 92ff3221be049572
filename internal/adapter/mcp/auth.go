package mcp

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// RequireAPIKey guards next with a shared secret sent as a bearer token or
// in X-API-Key. keys is a comma-separated list so a new key can be rolled
// out before the old one is removed. An empty list disables the check.
func RequireAPIKey(keys string, next http.Handler) http.Handler {
	var accepted [][]byte
	for k := range strings.SplitSeq(keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			accepted = append(accepted, []byte(k))
		}
	}
	if len(accepted) == 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := credential(r)
		if presented == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="mcp"`)
			http.Error(w, "missing credentials", http.StatusUnauthorized)
			return
		}
		match := 0
		for _, k := range accepted {
			match |= subtle.ConstantTimeCompare([]byte(presented), k)
		}
		if match != 1 {
			slog.WarnContext(r.Context(), "mcp request rejected", "remote", r.RemoteAddr)
			http.Error(w, "invalid credentials", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func credential(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
