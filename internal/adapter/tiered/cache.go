// Package tiered implements a two-level (L1 + L2) cache adapter.
package tiered

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/cache"
)

// Cache combines an in-process L1 with an optional remote L2.
// L2 failures are logged and treated as misses.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	l1Expire time.Duration
}

// New creates a tiered cache. l2 may be nil. l1Expire caps how long
// entries backfilled from L2 live in L1.
func New(l1, l2 cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire}
}

// Get checks L1, then L2. On L2 hit, backfills L1.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found || c.l2 == nil {
		return val, found, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "l2 cache get failed", "key", key, "error", err)
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}
	if err := c.l1.Set(ctx, key, val, c.l1Expire); err != nil {
		slog.WarnContext(ctx, "l1 backfill failed", "key", key, "error", err)
	}
	return val, true, nil
}

// Set writes to both levels. It fails only when no level took the value.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l1TTL := ttl
	if c.l1Expire > 0 && (l1TTL <= 0 || l1TTL > c.l1Expire) {
		l1TTL = c.l1Expire
	}
	l1Err := c.l1.Set(ctx, key, value, l1TTL)
	if c.l2 == nil {
		return l1Err
	}
	if l1Err != nil {
		slog.WarnContext(ctx, "l1 cache set failed", "key", key, "error", l1Err)
	}
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		if l1Err != nil {
			return fmt.Errorf("cache set %s: %w", key, errors.Join(l1Err, err))
		}
		slog.WarnContext(ctx, "l2 cache set failed", "key", key, "error", err)
	}
	return nil
}

// Delete removes from both levels.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	if c.l2 != nil {
		if err := c.l2.Delete(ctx, key); err != nil {
			slog.WarnContext(ctx, "l2 cache delete failed", "key", key, "error", err)
		}
	}
	return nil
}
