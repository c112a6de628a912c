package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"marketregime/internal/adapters/config"
	redisadapter "marketregime/internal/adapters/redis"
)

// NewRedisClient creates a redis client for integration tests and flushes
// the selected database before and after the test.
func NewRedisClient(t *testing.T, cfg config.RedisConfig) *redis.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := redisadapter.NewClient(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}

	rdb := client.Client()
	if err := rdb.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("failed to flush redis before test: %v", err)
	}

	t.Cleanup(func() {
		_ = rdb.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	return rdb
}
