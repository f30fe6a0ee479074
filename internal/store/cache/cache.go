// Package cache provides a thin Redis read-through cache in front of the
// Postgres-backed GraphBackend's entity lookups, grounded on the teacher's
// internal/workspaces/redis_cache.go (and internal/skills/redis_cache.go)
// pattern of wrapping a slower backing store behind a cache with the same
// interface. GetEntity and ResolveEntities are the graph strategy's
// hottest, most repeated reads (the same entity name resolves on every
// query that mentions it), so those two are cached; Traverse and
// GetEntityDocuments stay uncached since their results are seed-set
// specific and rarely repeat verbatim.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"ragengine/internal/graph"
	"ragengine/internal/model"
	"ragengine/internal/store/postgres"
)

// DefaultTTL bounds how long a resolved entity stays cached before the
// next lookup falls through to Postgres again.
const DefaultTTL = 5 * time.Minute

// GraphCache wraps a graph.Backend, caching GetEntity and ResolveEntities
// results in Redis keyed by collection-agnostic entity name.
type GraphCache struct {
	backend graph.Backend
	client  redis.UniversalClient
	ttl     time.Duration
}

// New wraps backend with a Redis cache at addr. Returns backend unwrapped,
// with the second value false, when addr is empty — callers can treat the
// cache as optional.
func New(backend graph.Backend, addr string, ttl time.Duration) (graph.Backend, bool) {
	if addr == "" {
		return backend, false
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &GraphCache{backend: backend, client: client, ttl: ttl}, true
}

func entityKey(name string) string  { return "entity:" + name }
func resolveKey(name string) string { return "resolve:" + name }

// GetEntity checks Redis first, falling back to the wrapped backend and
// populating the cache (including negative "not found" results, to absorb
// repeated misses on the same typo) on a miss.
func (c *GraphCache) GetEntity(ctx context.Context, name string) (model.Entity, bool, error) {
	if cached, ok, err := c.getCachedEntity(ctx, name); err == nil && ok {
		return cached.entity, cached.found, nil
	}

	entity, found, err := c.backend.GetEntity(ctx, name)
	if err != nil {
		return model.Entity{}, false, err
	}
	c.setCachedEntity(ctx, name, entity, found)
	return entity, found, nil
}

type cachedEntity struct {
	entity model.Entity
	found  bool
}

func (c *GraphCache) getCachedEntity(ctx context.Context, name string) (cachedEntity, bool, error) {
	raw, err := c.client.Get(ctx, entityKey(name)).Bytes()
	if err != nil {
		return cachedEntity{}, false, err
	}
	var ce cachedEntity
	var wire struct {
		Entity model.Entity
		Found  bool
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return cachedEntity{}, false, err
	}
	ce.entity, ce.found = wire.Entity, wire.Found
	return ce, true, nil
}

func (c *GraphCache) setCachedEntity(ctx context.Context, name string, entity model.Entity, found bool) {
	data, err := json.Marshal(struct {
		Entity model.Entity
		Found  bool
	}{entity, found})
	if err != nil {
		return
	}
	c.client.Set(ctx, entityKey(name), data, c.ttl)
}

// ResolveEntities resolves each name against Redis, falling through to the
// wrapped backend only for the names that missed the cache, then caches
// the freshly resolved ones.
func (c *GraphCache) ResolveEntities(ctx context.Context, names []string) ([]postgres.ResolvedEntity, error) {
	var resolved []postgres.ResolvedEntity
	var misses []string
	for _, n := range names {
		raw, err := c.client.Get(ctx, resolveKey(n)).Bytes()
		if err != nil {
			misses = append(misses, n)
			continue
		}
		var re postgres.ResolvedEntity
		if err := json.Unmarshal(raw, &re); err != nil {
			misses = append(misses, n)
			continue
		}
		resolved = append(resolved, re)
	}
	if len(misses) == 0 {
		return resolved, nil
	}

	fresh, err := c.backend.ResolveEntities(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, re := range fresh {
		if data, err := json.Marshal(re); err == nil {
			c.client.Set(ctx, resolveKey(re.RequestedName), data, c.ttl)
		}
	}
	return append(resolved, fresh...), nil
}

// Traverse passes through uncached: traversal results are seed-set
// specific and rarely repeat verbatim.
func (c *GraphCache) Traverse(ctx context.Context, seedIDs []string, params postgres.TraversalParams) (postgres.TraversalResult, error) {
	return c.backend.Traverse(ctx, seedIDs, params)
}

// GetEntityDocuments passes through uncached.
func (c *GraphCache) GetEntityDocuments(ctx context.Context, entityIDs []string, limit int) ([]postgres.EntityDocument, error) {
	return c.backend.GetEntityDocuments(ctx, entityIDs, limit)
}

// GetEntityRelationships passes through uncached.
func (c *GraphCache) GetEntityRelationships(ctx context.Context, entityID string, limit int) ([]postgres.RelationshipEdge, error) {
	return c.backend.GetEntityRelationships(ctx, entityID, limit)
}

var _ graph.Backend = (*GraphCache)(nil)
