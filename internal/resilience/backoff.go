package resilience

import (
	"context"
	"time"
)

// maxBackoff caps exponential delays.
const maxBackoff = 30 * time.Second

// Backoff returns the delay before retry number attempt (1-based): initial,
// then doubling each attempt. A non-positive initial disables waiting.
func Backoff(initial time.Duration, attempt int) time.Duration {
	if initial <= 0 || attempt < 1 {
		return 0
	}
	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
