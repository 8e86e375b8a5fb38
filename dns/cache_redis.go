package dns

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fwnet/netcore"
)

// RedisCache is an optional CacheBackend that stores entries in Redis so
// multiple processes (or multiple dns.Service instances that cannot
// share an in-process DnsWorld) observe the same cache, grounded on
// routedns's cache-redis.go backend. Keys are "netcore:dns:<host>";
// each key holds a Redis list of JSON-encoded entries, one per address,
// and the key's Redis TTL is set to the TimeoutSeconds of the most
// recent Upsert, so expiry is enforced by Redis itself; Tick is a no-op
// here since Redis already expires keys, but is still called by the
// aging timer for symmetry with MemoryCache.
type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ CacheBackend = &RedisCache{}

// NewRedisCache wraps an existing redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "netcore:dns:"}
}

type redisEntry struct {
	Host           string `json:"host"`
	Addr           string `json:"addr"`
	TimeoutSeconds uint32 `json:"timeout_seconds"`
}

func (r *RedisCache) key(host string) string {
	return r.prefix + strings.ToLower(host)
}

func (r *RedisCache) Lookup(name string) []CacheEntry {
	ctx := context.Background()
	vals, err := r.client.LRange(ctx, r.key(name), 0, -1).Result()
	if err != nil {
		return nil
	}
	var out []CacheEntry
	for _, v := range vals {
		var re redisEntry
		if err := json.Unmarshal([]byte(v), &re); err != nil {
			continue
		}
		ttl, err := r.client.TTL(ctx, r.key(name)).Result()
		if err != nil || ttl <= 0 {
			continue
		}
		out = append(out, CacheEntry{
			Host:           re.Host,
			Addr:           net.ParseIP(re.Addr),
			TimeoutSeconds: uint32(ttl.Seconds()),
		})
	}
	return out
}

// rawEntries returns every list element for key along with its decoded
// form, preserving Redis list index so callers can LSet/LRem precisely.
func (r *RedisCache) rawEntries(ctx context.Context, key string) ([]string, []redisEntry) {
	raw, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, nil
	}
	decoded := make([]redisEntry, len(raw))
	for i, v := range raw {
		_ = json.Unmarshal([]byte(v), &decoded[i])
	}
	return raw, decoded
}

func (r *RedisCache) Upsert(e CacheEntry, override bool) *netcore.CoreError {
	if e.TimeoutSeconds == 0 {
		return netcore.NewError(netcore.KindInvalidParameter, "cache entry timeout must be non-zero")
	}
	ctx := context.Background()
	key := r.key(e.Host)
	_, decoded := r.rawEntries(ctx, key)

	re := redisEntry{Host: e.Host, Addr: e.Addr.String(), TimeoutSeconds: e.TimeoutSeconds}
	b, err := json.Marshal(re)
	if err != nil {
		return netcore.WrapError(netcore.KindDeviceError, err, "encode cache entry")
	}

	matchIdx := -1
	for i, ex := range decoded {
		if strings.EqualFold(ex.Addr, e.Addr.String()) {
			matchIdx = i
			break
		}
	}
	if matchIdx >= 0 && !override {
		return netcore.NewError(netcore.KindAccessDenied, "cache entry already exists")
	}

	pipe := r.client.TxPipeline()
	if matchIdx >= 0 {
		// Replace the existing list element in place rather than
		// appending a duplicate.
		pipe.LSet(ctx, key, int64(matchIdx), b)
	} else {
		pipe.RPush(ctx, key, b)
	}
	pipe.Expire(ctx, key, time.Duration(e.TimeoutSeconds)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return netcore.WrapError(netcore.KindDeviceError, err, "store cache entry")
	}
	return nil
}

func (r *RedisCache) Delete(host string, addr net.IP) *netcore.CoreError {
	ctx := context.Background()
	key := r.key(host)
	raw, decoded := r.rawEntries(ctx, key)

	matchIdx := -1
	for i, ex := range decoded {
		if addr == nil || strings.EqualFold(ex.Addr, addr.String()) {
			matchIdx = i
			break
		}
	}
	if matchIdx < 0 {
		return netcore.NewError(netcore.KindNotFound, "no matching cache entry")
	}

	ttl, _ := r.client.TTL(ctx, key).Result()
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	for i, v := range raw {
		if i == matchIdx {
			continue
		}
		pipe.RPush(ctx, key, v)
	}
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return netcore.WrapError(netcore.KindDeviceError, err, "delete cache entry")
	}
	return nil
}

// Tick is a no-op: Redis key TTLs already enforce expiry.
func (r *RedisCache) Tick() {}

func (r *RedisCache) Snapshot() []CacheEntry {
	ctx := context.Background()
	keys, err := r.client.Keys(ctx, r.prefix+"*").Result()
	if err != nil {
		return nil
	}
	var out []CacheEntry
	for _, k := range keys {
		host := strings.TrimPrefix(k, r.prefix)
		out = append(out, r.Lookup(host)...)
	}
	return out
}
