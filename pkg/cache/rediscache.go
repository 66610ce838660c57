package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store for the mutable state/trace/character namespaces,
// grounded on the teacher's RedisStorage (internal/storage/redis.go): Redis
// holds per-game mutable content while raw, load-only content still comes
// from an underlying filesystem store for namespaces RedisStore does not
// own.
type RedisStore struct {
	client *redis.Client
	raw    Store // delegate for LoadRaw/ExistsRaw of static namespaces
}

var _ TTLStore = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. raw serves LoadRaw/ExistsRaw for
// sections/rules content; it may be nil if this store is only ever used for
// the state/trace/character namespaces.
func NewRedisStore(client *redis.Client, raw Store) *RedisStore {
	return &RedisStore{client: client, raw: raw}
}

func redisKey(ns Namespace, key string) string {
	return fmt.Sprintf("%s:%s", ns, key)
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: redis ping: %w", err)
	}
	return nil
}

func (r *RedisStore) GetCached(ctx context.Context, ns Namespace, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, redisKey(ns, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: redis get %s/%s: %w", ns, key, err)
	}
	return val, true, nil
}

func (r *RedisStore) SaveCached(ctx context.Context, ns Namespace, key string, value []byte) error {
	return r.SaveCachedTTL(ctx, ns, key, value, 0)
}

func (r *RedisStore) SaveCachedTTL(ctx context.Context, ns Namespace, key string, value []byte, ttlSeconds int) error {
	var ttl time.Duration
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	if err := r.client.Set(ctx, redisKey(ns, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %s/%s: %w", ns, key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, ns Namespace, key string) error {
	if err := r.client.Del(ctx, redisKey(ns, key)).Err(); err != nil {
		return fmt.Errorf("cache: redis del %s/%s: %w", ns, key, err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, ns Namespace) error {
	iter := r.client.Scan(ctx, 0, string(ns)+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache: redis scan %s: %w", ns, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: redis clear %s: %w", ns, err)
	}
	return nil
}

func (r *RedisStore) LoadRaw(ctx context.Context, ns Namespace, key string) (string, bool, error) {
	if r.raw == nil {
		return "", false, fmt.Errorf("cache: no raw content store configured for namespace %s", ns)
	}
	return r.raw.LoadRaw(ctx, ns, key)
}

func (r *RedisStore) ExistsRaw(ctx context.Context, ns Namespace, key string) (bool, error) {
	if r.raw == nil {
		return false, fmt.Errorf("cache: no raw content store configured for namespace %s", ns)
	}
	return r.raw.ExistsRaw(ctx, ns, key)
}

// turnLockTTL bounds how long a session's turn lock may be held before it
// is considered abandoned (grounded on the teacher's 30-second game lock in
// internal/worker/worker.go).
const turnLockTTL = 30 * time.Second

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// AcquireTurnLock attempts to acquire the per-session turn serialization
// lock described in spec §5 ("turns are strictly serialized per
// session_id"). owner should uniquely identify the caller (e.g. a worker or
// request id) so ReleaseTurnLock never frees a lock it doesn't hold.
// Grounded on the teacher's acquireGameLock (SETNX with a TTL).
func (r *RedisStore) AcquireTurnLock(ctx context.Context, sessionID, owner string) (bool, error) {
	key := turnLockKey(sessionID)
	ok, err := r.client.SetNX(ctx, key, owner, turnLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("cache: acquire turn lock %s: %w", sessionID, err)
	}
	return ok, nil
}

// ReleaseTurnLock releases a turn lock previously acquired by owner,
// grounded on the teacher's releaseGameLock Lua compare-and-delete script
// (so a lock is never released by anyone but the owner that set it).
func (r *RedisStore) ReleaseTurnLock(ctx context.Context, sessionID, owner string) error {
	key := turnLockKey(sessionID)
	if err := releaseScript.Run(ctx, r.client, []string{key}, owner).Err(); err != nil {
		return fmt.Errorf("cache: release turn lock %s: %w", sessionID, err)
	}
	return nil
}

func turnLockKey(sessionID string) string {
	return "turn-lock:" + sessionID
}
