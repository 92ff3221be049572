package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
)

// Error codes returned alongside the message so clients can branch without
// parsing text.
const (
	codeBadRequest = "bad_request"
	codeTooLarge   = "body_too_large"
	codeNotFound   = "not_found"
	codeConflict   = "conflict"
	codeInternal   = "internal"
)

// apiError is the body of every non-2xx JSON response.
type apiError struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// readJSON decodes a body of at most limit bytes into a T. On failure the
// response has been written and ok is false.
func readJSON[T any](w http.ResponseWriter, r *http.Request, limit int64) (v T, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	err := json.NewDecoder(r.Body).Decode(&v)
	if err == nil {
		return v, true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge, "request body too large")
	} else {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
	}
	return v, false
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("write json response", "error", err)
	}
}

// writeError writes an apiError. The request id is read back from the
// response header set by the request id middleware.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{
		Error:     message,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

// writeDomainError maps domain sentinels to status codes. notFoundMsg names
// the missing resource.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, notFoundMsg)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, "request conflicts with the current state")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, codeBadRequest, strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": "))
	default:
		writeInternalError(w, r, err)
	}
}

// writeInternalError logs err and hides it from the client.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
}
