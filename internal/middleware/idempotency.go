package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/cache"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxKeyLen            = 200
	maxReplayBody        = 1 << 20
	replayPrefix         = "idem:"
)

// replay is what gets cached per key. Fingerprint binds the key to the
// request that produced it.
type replay struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// Idempotency returns middleware that replays the stored response of a
// POST carrying a previously seen Idempotency-Key, so a retried chat turn
// cannot book twice. Only 2xx responses are stored. Reusing a key with a
// different body yields 422; a key still being processed yields 409.
func Idempotency(c cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	var inflight sync.Map

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(headerIdempotencyKey)
			if r.Method != http.MethodPost || key == "" || len(key) > maxKeyLen {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			fp, err := fingerprint(r)
			if err != nil {
				rejectJSON(w, http.StatusBadRequest, "bad_request", "unreadable request body")
				return
			}

			cacheKey := replayPrefix + key
			prev, found, err := cache.GetJSON[replay](ctx, c, cacheKey)
			if err != nil {
				slog.WarnContext(ctx, "idempotency entry unreadable", "key", key, "error", err)
			}
			if found {
				if prev.Fingerprint != fp {
					rejectJSON(w, http.StatusUnprocessableEntity, "idempotency_mismatch",
						"idempotency key was used with a different request")
					return
				}
				if prev.ContentType != "" {
					w.Header().Set("Content-Type", prev.ContentType)
				}
				w.Header().Set(headerReplayed, "true")
				w.WriteHeader(prev.Status)
				_, _ = w.Write(prev.Body)
				return
			}

			if _, busy := inflight.LoadOrStore(cacheKey, struct{}{}); busy {
				rejectJSON(w, http.StatusConflict, "idempotency_in_flight",
					"a request with this idempotency key is still in progress")
				return
			}
			defer inflight.Delete(cacheKey)

			tee := &teeWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(tee, r)

			if tee.status/100 != 2 || tee.overflow {
				return
			}
			entry := replay{
				Fingerprint: fp,
				Status:      tee.status,
				ContentType: w.Header().Get("Content-Type"),
				Body:        tee.buf.Bytes(),
			}
			if err := cache.SetJSON(ctx, c, cacheKey, entry, ttl); err != nil {
				slog.WarnContext(ctx, "idempotency entry not stored", "key", key, "error", err)
			}
		})
	}
}

// fingerprint hashes method, path and the first maxReplayBody bytes of the
// body. The body is restored for the next handler.
func fingerprint(r *http.Request) (string, error) {
	h := sha256.New()
	io.WriteString(h, r.Method+" "+r.URL.Path+"\n")
	if r.Body != nil && r.Body != http.NoBody {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxReplayBody))
		if err != nil {
			return "", err
		}
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
		h.Write(body)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func rejectJSON(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `{"error":"`+msg+`","code":"`+code+`"}`)
}

// teeWriter copies the response body up to maxReplayBody.
type teeWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	overflow bool
}

func (t *teeWriter) WriteHeader(code int) {
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *teeWriter) Write(b []byte) (int, error) {
	if !t.overflow {
		if t.buf.Len()+len(b) > maxReplayBody {
			t.overflow = true
			t.buf.Reset()
		} else {
			t.buf.Write(b)
		}
	}
	return t.ResponseWriter.Write(b)
}
