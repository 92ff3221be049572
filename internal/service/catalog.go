package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/cache"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/database"
)

const catalogSnapshotKey = "catalog:snapshot"

// CatalogService serves catalog snapshots through the cache. Concurrent
// misses share one store load.
type CatalogService struct {
	store database.CatalogStore
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time
}

// NewCatalogService creates a catalog service. c may be nil to disable caching.
func NewCatalogService(store database.CatalogStore, c cache.Cache, ttl time.Duration) *CatalogService {
	return &CatalogService{store: store, cache: c, ttl: ttl, now: time.Now}
}

// Snapshot returns the active businesses and their available items.
func (s *CatalogService) Snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	if s.cache != nil {
		snap, found, err := cache.GetJSON[catalog.Snapshot](ctx, s.cache, catalogSnapshotKey)
		if err != nil {
			slog.WarnContext(ctx, "catalog cache read failed", "error", err)
		}
		if found {
			return &snap, nil
		}
	}

	v, err, _ := s.group.Do(catalogSnapshotKey, func() (any, error) {
		return s.load(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(*catalog.Snapshot), nil
}

// Invalidate drops the cached snapshot.
func (s *CatalogService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, catalogSnapshotKey)
}

func (s *CatalogService) load(ctx context.Context) (*catalog.Snapshot, error) {
	businesses, err := s.store.ListActiveBusinesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	items, err := s.store.ListAvailableItems(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	snap := &catalog.Snapshot{Businesses: businesses, Items: items, TakenAt: s.now()}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, catalogSnapshotKey, snap, s.ttl); err != nil {
			slog.WarnContext(ctx, "catalog cache write failed", "error", err)
		}
	}
	slog.DebugContext(ctx, "catalog snapshot loaded", "businesses", len(businesses), "items", len(items))
	return snap, nil
}
