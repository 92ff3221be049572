// Package ristretto is the in-process L1 tier of the assistant cache. It
// holds session states and catalog snapshots in front of Redis or NATS KV.
package ristretto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// entryOverhead approximates ristretto's per-item bookkeeping in bytes.
const entryOverhead = 64

// ErrTooLarge is returned by Set for values that could never be admitted.
var ErrTooLarge = errors.New("ristretto: value exceeds cache capacity")

// Cache is a cost-bounded byte cache keyed by string.
type Cache struct {
	c       *ristretto.Cache[string, []byte]
	maxCost int64
}

// Stats summarizes cache effectiveness since creation.
type Stats struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
	Evicted  uint64  `json:"evicted"`
}

// New creates a cache holding about maxMB megabytes of keys and values.
func New(maxMB int64) (*Cache, error) {
	maxCost := max(maxMB, 1) << 20
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		// Ten counters per expected item; items average about a kilobyte.
		NumCounters: maxCost / 1024 * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	return &Cache{c: c, maxCost: maxCost}, nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := c.c.Get(key)
	return val, found, nil
}

// Set stores value until ttl passes and waits until the write is visible,
// so a session saved at the end of a turn is read back by the next one.
// The admission policy may still drop the entry under pressure.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cost := int64(len(key)+len(value)) + entryOverhead
	if cost > c.maxCost {
		return fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, key, cost)
	}
	c.c.SetWithTTL(key, value, cost, ttl)
	c.c.Wait()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Stats returns hit and eviction counters.
func (c *Cache) Stats() Stats {
	m := c.c.Metrics
	return Stats{
		Hits:     m.Hits(),
		Misses:   m.Misses(),
		HitRatio: m.Ratio(),
		Evicted:  m.KeysEvicted(),
	}
}

// Close stops ristretto's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
