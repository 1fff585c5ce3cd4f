package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"
	"fmt"
	"time" // Time durations

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Structured logging
)

// Cache keys. Every key that depends on a write is invalidated by that write.
const latestRoundsKey = "rounds:latest:%d"

// LatestRoundsKey caches the recent rounds list for one limit
func LatestRoundsKey(limit int) string {
	return fmt.Sprintf(latestRoundsKey, limit)
}

// LatestRoundsPattern matches every cached recent rounds list
func LatestRoundsPattern() string {
	return "rounds:latest:*"
}

// UserBetsKey caches one user's bet history
func UserBetsKey(userID uint) string {
	return fmt.Sprintf("bets:user:%d", userID)
}

// UserTransactionsKey caches one user's ledger
func UserTransactionsKey(userID uint) string {
	return fmt.Sprintf("transactions:user:%d", userID)
}

// Generation counters outlive the entries they guard by a wide margin
const versionTTL = 24 * time.Hour

// VersionKey names the generation counter guarding a cache entry
func VersionKey(key string) string {
	return "cachever:" + key
}

// LatestRoundsVersionKey guards every cached recent rounds list
func LatestRoundsVersionKey() string {
	return VersionKey("rounds:latest")
}

// GetCache retrieves a value from Redis and unmarshals it into dest.
// A nil client is a permanent miss.
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if errors.Is(err, redis.Nil) {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes keys from Redis
func DeleteCache(ctx context.Context, rdb *redis.Client, keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}

// DeleteCachePattern deletes every key matching pattern
func DeleteCachePattern(ctx context.Context, rdb *redis.Client, pattern string) error {
	if rdb == nil {
		return nil
	}
	var keys []string
	iter := rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return DeleteCache(ctx, rdb, keys...)
}

// CacheVersion reads a generation counter. A missing counter is generation 0.
func CacheVersion(ctx context.Context, rdb *redis.Client, versionKey string) (int64, error) {
	if rdb == nil {
		return 0, nil
	}
	v, err := rdb.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetCacheIfVersion stores value only while versionKey still holds version and reports whether it did
func SetCacheIfVersion(ctx context.Context, rdb *redis.Client, versionKey string, version int64, key string, value any, ttl time.Duration) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	stored := false
	err = rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil // Invalidated while the value was loading
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, ttl)
			return nil
		})
		stored = err == nil
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

// BumpCacheVersion moves generation counters so that reads already in flight cannot repopulate stale entries
func BumpCacheVersion(ctx context.Context, rdb *redis.Client, versionKeys ...string) error {
	if rdb == nil || len(versionKeys) == 0 {
		return nil
	}
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range versionKeys {
			pipe.Incr(ctx, k)
			pipe.Expire(ctx, k, versionTTL)
		}
		return nil
	})
	return err
}

// ReadThrough serves key from the cache, or calls load and caches the result unless versionKey
// moved while load ran. Redis failures degrade to calling load.
func ReadThrough[T any](ctx context.Context, rdb *redis.Client, key, versionKey string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if hit, err := GetCache(ctx, rdb, key, &cached); err == nil && hit {
		return cached, nil
	} else if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("cache read failed")
	}
	version, verErr := CacheVersion(ctx, rdb, versionKey)
	if verErr != nil {
		logrus.WithError(verErr).WithField("key", versionKey).Warn("cache version read failed")
	}
	v, err := load(ctx)
	if err != nil || verErr != nil {
		return v, err
	}
	if _, err := SetCacheIfVersion(ctx, rdb, versionKey, version, key, v, ttl); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("cache write failed")
	}
	return v, nil
}
