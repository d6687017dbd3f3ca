package rbac

import (
	"context"
	"strings"
)

// Gate answers whether a principal holds a named permission. Checks go
// through the cache, so the answer always reflects the last committed
// mutation: mutation commit happens-before cache flush happens-before the
// next check.
type Gate struct {
	cache   *Cache
	metrics Metrics
}

// NewGate constructs a Gate over the cache.
func NewGate(cache *Cache) *Gate {
	return &Gate{cache: cache}
}

// SetMetrics attaches decision counters.
func (g *Gate) SetMetrics(m Metrics) {
	g.metrics = m
}

// Check reports whether the user holds the permission. A missing cache entry
// triggers a rebuild from storage before the membership test.
func (g *Gate) Check(ctx context.Context, userID int64, permission string) (bool, error) {
	perms, err := g.cache.Permissions(ctx, userID)
	if err != nil {
		return false, err
	}
	_, ok := perms[strings.ToLower(strings.TrimSpace(permission))]
	if g.metrics != nil {
		g.metrics.AuthzDecision(ok)
	}
	return ok, nil
}
