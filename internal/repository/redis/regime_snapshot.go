package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketregime/internal/domain/regime"
	"marketregime/pkg/errors"
)

// Compile-time check
var _ regime.Cache = (*SnapshotRepository)(nil)

// SnapshotRepository implements regime.Cache using Redis
type SnapshotRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotRepository creates a snapshot cache; ttl 0 keeps keys forever
func NewSnapshotRepository(client *redis.Client, ttl time.Duration) *SnapshotRepository {
	return &SnapshotRepository{
		client: client,
		ttl:    ttl,
	}
}

// SetLatest replaces the latest snapshot of an instrument
func (r *SnapshotRepository) SetLatest(ctx context.Context, snapshot *regime.Snapshot) error {
	key := SnapshotKey(snapshot.Symbol, snapshot.Timeframe)

	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal regime snapshot: %s", key)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to save regime snapshot to redis: %s", key)
	}

	return nil
}

// GetLatest returns the cached snapshot or errors.ErrNotFound
func (r *SnapshotRepository) GetLatest(ctx context.Context, symbol, timeframe string) (*regime.Snapshot, error) {
	key := SnapshotKey(symbol, timeframe)

	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "regime snapshot not found: %s", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get regime snapshot from redis: %s", key)
	}

	var snapshot regime.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal regime snapshot: %s", key)
	}

	return &snapshot, nil
}

// SnapshotKey is the cache key of an instrument
func SnapshotKey(symbol, timeframe string) string {
	return fmt.Sprintf("regime:latest:%s:%s", symbol, timeframe)
}
