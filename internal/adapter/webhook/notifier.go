// Package webhook implements a notifier.Notifier that POSTs events as JSON
// to a configured URL, signed with HMAC-SHA256 when a secret is set.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/adapter/otel"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/logger"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/notifier"
)

const (
	providerName = "webhook"

	HeaderSignature = "X-Assistant-Signature"
	HeaderTimestamp = "X-Assistant-Timestamp"
	HeaderEvent     = "X-Assistant-Event"
)

// Notifier delivers events to an HTTP endpoint.
type Notifier struct {
	url        string
	secret     []byte
	httpClient *http.Client
	now        func() time.Time
}

// NewNotifier creates a webhook notifier. An empty secret disables signing.
func NewNotifier(url, secret string) *Notifier {
	return &Notifier{
		url:    url,
		secret: []byte(secret),
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otel.HTTPTransport(nil),
		},
		now: time.Now,
	}
}

func (n *Notifier) Name() string { return providerName }

// Sign returns the hex HMAC-SHA256 of "<timestamp>.<body>".
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign in constant time.
func Verify(secret []byte, timestamp string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, timestamp, body)), []byte(signature))
}

func (n *Notifier) Send(ctx context.Context, ev notifier.Event) error {
	if n.url == "" {
		return notifier.ErrNotConfigured
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("webhook marshal: %w", err)
	}

	h := http.Header{}
	h.Set(HeaderEvent, ev.Type)
	if id := logger.RequestID(ctx); id != "" {
		h.Set("X-Request-ID", id)
	}
	if len(n.secret) > 0 {
		ts := strconv.FormatInt(n.now().Unix(), 10)
		h.Set(HeaderTimestamp, ts)
		h.Set(HeaderSignature, Sign(n.secret, ts, body))
	}
	return notifier.Post(ctx, n.httpClient, providerName, n.url, body, h)
}
