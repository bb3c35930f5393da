package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/labtrail/backend/internal/domain/entities"
	"github.com/labtrail/backend/internal/domain/providers"
	"github.com/labtrail/backend/internal/domain/repositories"
	"github.com/labtrail/backend/internal/infrastructure/observability"
	"github.com/labtrail/backend/pkg/utils"
)

// CachedAliasAdapter wraps AliasAdapter with caching. Alias lookups sit on
// the hot path of every ingested line, so hits here save one query per line.
type CachedAliasAdapter struct {
	adapter    repositories.AliasRepository
	cache      providers.CacheProvider
	metrics    *observability.Metrics
	ttlSeconds int
}

// NewCachedAliasAdapter creates a new cached alias adapter
func NewCachedAliasAdapter(adapter repositories.AliasRepository, cache providers.CacheProvider, metrics *observability.Metrics, ttlSeconds int) repositories.AliasRepository {
	if ttlSeconds <= 0 {
		ttlSeconds = 600
	}
	return &CachedAliasAdapter{
		adapter:    adapter,
		cache:      cache,
		metrics:    metrics,
		ttlSeconds: ttlSeconds,
	}
}

func aliasCacheKey(alias string) string {
	return fmt.Sprintf("alias:%s", utils.NormalizeName(alias))
}

// GetByAlias retrieves an alias entry with caching
func (a *CachedAliasAdapter) GetByAlias(ctx context.Context, alias string) (*entities.AliasEntry, error) {
	cacheKey := aliasCacheKey(alias)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var entry entities.AliasEntry
		if err := json.Unmarshal(cached, &entry); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, cacheKey)
			return &entry, nil
		}
		log.Printf("Failed to unmarshal cached alias %s: %v", alias, err)
	}
	observability.RecordCacheMiss(ctx, a.metrics, cacheKey)

	entry, err := a.adapter.GetByAlias(ctx, alias)
	if err != nil {
		return nil, err
	}

	// Update cache asynchronously to avoid blocking the response
	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(entry); err == nil {
			if err := a.cache.Set(bgCtx, cacheKey, data, a.ttlSeconds); err != nil {
				log.Printf("Failed to cache alias %s: %v", alias, err)
			}
		}
	}()

	return entry, nil
}

// Create creates an alias entry and invalidates its cache slot
func (a *CachedAliasAdapter) Create(ctx context.Context, entry *entities.AliasEntry) error {
	if err := a.adapter.Create(ctx, entry); err != nil {
		return err
	}

	go func() {
		bgCtx := context.Background()
		if err := a.cache.Delete(bgCtx, aliasCacheKey(entry.Alias)); err != nil {
			log.Printf("Failed to invalidate alias cache %s: %v", entry.Alias, err)
		}
	}()

	return nil
}

// List retrieves the full alias dictionary, bypassing the cache
func (a *CachedAliasAdapter) List(ctx context.Context) ([]*entities.AliasEntry, error) {
	return a.adapter.List(ctx)
}

// DeleteByCanonicalID removes all aliases pointing at a canonical item.
// Individual alias slots are left to expire by TTL since the alias strings
// are no longer known here.
func (a *CachedAliasAdapter) DeleteByCanonicalID(ctx context.Context, canonicalID string) error {
	return a.adapter.DeleteByCanonicalID(ctx, canonicalID)
}
