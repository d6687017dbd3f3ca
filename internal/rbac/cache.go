// Package rbac implements the authorization engine: a process-wide cache of
// effective permissions, the gate that answers allow/deny, and the HTTP
// middleware that consults it before any handler logic runs.
package rbac

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// PermissionSource loads effective permission names from source-of-truth
// storage. Implemented by Store; tests substitute fakes.
type PermissionSource interface {
	UserPermissionNames(ctx context.Context, userID int64) ([]string, error)
}

// Metrics receives cache and gate counters. Nil-safe at every call site.
type Metrics interface {
	AuthzDecision(allowed bool)
	CacheRebuild()
	CacheFlush()
}

// Cache is the process-wide derived index user ID -> permission-name set.
// Entries are rebuilt lazily on first lookup after a flush; there is no TTL
// and no background refresh. A generation counter ties each rebuild to the
// flush epoch it started under, so a rebuild that straddles an invalidation
// is discarded instead of resurrecting pre-mutation state.
type Cache struct {
	source  PermissionSource
	logger  *slog.Logger
	metrics Metrics

	mu      sync.RWMutex
	gen     uint64
	entries map[int64]map[string]struct{}

	group singleflight.Group
}

// NewCache constructs an empty cache over the given source.
func NewCache(source PermissionSource, logger *slog.Logger) *Cache {
	return &Cache{
		source:  source,
		logger:  logger,
		entries: make(map[int64]map[string]struct{}),
	}
}

// SetMetrics attaches decision/rebuild counters.
func (c *Cache) SetMetrics(m Metrics) {
	c.metrics = m
}

// Permissions returns the cached permission set for the user, rebuilding it
// from the source when absent. Concurrent lookups for the same user within
// one generation share a single rebuild.
func (c *Cache) Permissions(ctx context.Context, userID int64) (map[string]struct{}, error) {
	c.mu.RLock()
	set, ok := c.entries[userID]
	gen := c.gen
	c.mu.RUnlock()
	if ok {
		return set, nil
	}

	key := strconv.FormatUint(gen, 10) + ":" + strconv.FormatInt(userID, 10)
	v, err, _ := c.group.Do(key, func() (any, error) {
		names, err := c.source.UserPermissionNames(ctx, userID)
		if err != nil {
			return nil, err
		}
		built := make(map[string]struct{}, len(names))
		for _, name := range names {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			built[name] = struct{}{}
		}
		c.mu.Lock()
		if c.gen == gen {
			c.entries[userID] = built
		}
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.CacheRebuild()
		}
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]struct{}), nil
}

// Flush drops every entry and advances the generation. Callers invoke it only
// after a storage transaction has committed.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.gen++
	c.entries = make(map[int64]map[string]struct{})
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.CacheFlush()
	}
}

// Populated reports whether an entry exists for the user. Test hook.
func (c *Cache) Populated(userID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[userID]
	return ok
}
