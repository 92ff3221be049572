package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// StatusError is returned by Post when the sink answers with a non-2xx status.
type StatusError struct {
	Sink   string
	Status int
	Body   string
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Sink, e.Status, e.Body)
}

// Post sends body as application/json to url. At most 1 KiB of an error
// response is kept.
func Post(ctx context.Context, client *http.Client, sink, url string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s request: %w", sink, err)
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req) //nolint:gosec // sink URLs come from operator config
	if err != nil {
		return fmt.Errorf("%s send: %w", sink, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Sink: sink, Status: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
