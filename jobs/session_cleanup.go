package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunSessionCleanup walks the session keyspace and re-applies an expiry to
// any key left without one. Sessions normally expire through Redis TTLs; a
// key with no TTL would otherwise live forever.
func RunSessionCleanup(ctx context.Context, client *redis.Client, ttl time.Duration, logger *slog.Logger) error {
	var cursor uint64
	var repaired int
	for {
		keys, next, err := client.Scan(ctx, cursor, "session:*", 100).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			remaining, err := client.TTL(ctx, key).Result()
			if err != nil {
				return err
			}
			if remaining == -1 {
				if err := client.Expire(ctx, key, ttl).Err(); err != nil {
					return err
				}
				repaired++
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if logger != nil {
		logger.Info("session cleanup executed", slog.Int("repaired", repaired))
	}
	return nil
}
