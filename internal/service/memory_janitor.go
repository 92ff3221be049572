package service

import (
	"context"
	"log/slog"
	"time"
)

// RunMemoryJanitor purges expired memories every interval until ctx is done.
func RunMemoryJanitor(ctx context.Context, m *MemoryManager, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Purge(ctx)
			if err != nil {
				slog.Warn("memory purge failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired memories purged", "count", n)
			}
		}
	}
}
