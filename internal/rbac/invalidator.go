package rbac

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InvalidationChannel is the Redis pub/sub channel used to fan out cache
// flushes to sibling processes sharing the same permission store.
const InvalidationChannel = "rbac.invalidate"

// Invalidator flushes the local cache and notifies other processes. The
// local flush always happens first and never depends on Redis being up: the
// publish is best-effort notification, not consensus.
type Invalidator struct {
	cache   *Cache
	client  *redis.Client
	channel string
	id      string
	logger  *slog.Logger
}

// NewInvalidator constructs an Invalidator. A nil client disables fan-out,
// which keeps single-process deployments and tests free of Redis.
func NewInvalidator(cache *Cache, client *redis.Client, logger *slog.Logger) *Invalidator {
	return &Invalidator{
		cache:   cache,
		client:  client,
		channel: InvalidationChannel,
		id:      uuid.NewString(),
		logger:  logger,
	}
}

// Invalidate flushes the local cache, then publishes the flush to siblings.
func (i *Invalidator) Invalidate(ctx context.Context) {
	i.cache.Flush()
	if i.client == nil {
		return
	}
	if err := i.client.Publish(ctx, i.channel, i.id).Err(); err != nil && i.logger != nil {
		i.logger.Warn("publish cache invalidation", slog.Any("error", err))
	}
}

// Listen subscribes to the invalidation channel and flushes the local cache
// whenever another process publishes. Returns immediately; the subscription
// runs until ctx is cancelled.
func (i *Invalidator) Listen(ctx context.Context) {
	if i.client == nil {
		return
	}
	pubsub := i.client.Subscribe(ctx, i.channel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == i.id {
					continue
				}
				i.cache.Flush()
			}
		}
	}()
}
