package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"salesflow/logger"
	"salesflow/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the latest snapshot under a single key with a TTL so that
// several service replicas can share one view. Writes are mirrored to memory
// and reads fall back to it while Redis is unavailable.
type RedisStore struct {
	rdb *redis.Client
	mem Store
	key string
	ttl time.Duration
	log *logger.Log
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(ctx context.Context, addr, password string, db int, key string, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{
		rdb: rdb,
		mem: NewMemoryStore(),
		key: key,
		ttl: ttl,
		log: logger.GetLogger(),
	}, nil
}

// Save writes the memory mirror first, then Redis. Failures of either are
// joined into the returned error; a Redis failure alone leaves the snapshot
// readable from memory.
func (r *RedisStore) Save(ctx context.Context, snap models.Snapshot) error {
	var errs []error
	if err := r.mem.Save(ctx, snap); err != nil {
		r.log.WithComponent("cache").WithError(err).Warn("memory mirror save failed")
		errs = append(errs, fmt.Errorf("memory mirror: %w", err))
	}

	b, err := json.Marshal(snap)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("encode snapshot: %w", err))...)
	}
	if err := r.rdb.Set(ctx, r.key, b, r.ttl).Err(); err != nil {
		errs = append(errs, fmt.Errorf("redis set %s: %w", r.key, err))
	}
	return errors.Join(errs...)
}

func (r *RedisStore) Latest(ctx context.Context) (models.Snapshot, bool, error) {
	b, err := r.rdb.Get(ctx, r.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.WithComponent("cache").WithError(err).Warn("redis get failed, serving memory snapshot")
		}
		return r.mem.Latest(ctx)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		r.log.WithComponent("cache").WithError(err).Warn("stored snapshot undecodable, serving memory snapshot")
		return r.mem.Latest(ctx)
	}
	return snap, true, nil
}

func (r *RedisStore) Health(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
