package dns

import (
	"net"
	"strings"

	"github.com/fwnet/netcore"
)

// CacheEntry is one shared host-to-address cache record, spec §3.1.
// TimeoutSeconds is decremented once per second by the aging timer and
// the entry is removed on reaching zero (spec §3.2 invariant).
type CacheEntry struct {
	Host           string
	Addr           net.IP
	TimeoutSeconds uint32
}

// CacheBackend is the storage abstraction behind the shared cache,
// grounded on routedns's CacheBackend interface (cache-memory.go,
// cache-redis.go) so a process can choose an in-memory store (the
// default, matching spec semantics exactly) or a shared backend such as
// Redis when multiple engine instances must observe the same cache
// (spec §5 "Shared resources").
type CacheBackend interface {
	// Lookup returns all non-expired entries whose Host matches name.
	Lookup(name string) []CacheEntry

	// Upsert adds or replaces the entry for (host, addr). If override is
	// false and a matching entry already exists, it returns AccessDenied.
	Upsert(e CacheEntry, override bool) *netcore.CoreError

	// Delete removes the entry matching (host, addr), if any. Returns
	// NotFound if there was none.
	Delete(host string, addr net.IP) *netcore.CoreError

	// Tick decrements every entry's TimeoutSeconds by one and removes
	// any that reach zero (spec §4.1 "Retransmission and cache aging"
	// step 2, spec §8.1 invariant 3).
	Tick()

	// Snapshot returns a caller-owned copy of every entry currently in
	// the cache (spec §9 Open Question: GetModeData ownership).
	Snapshot() []CacheEntry
}

// MemoryCache is the default in-memory CacheBackend. Mutation is guarded
// by a CriticalSection rather than a bare mutex, naming this as the
// shared-cache scoped-acquisition spec §5 calls out explicitly.
type MemoryCache struct {
	mu      netcore.CriticalSection
	entries []CacheEntry
}

var _ CacheBackend = &MemoryCache{}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func matches(e CacheEntry, host string, addr net.IP) bool {
	if !strings.EqualFold(e.Host, host) {
		return false
	}
	if addr == nil {
		return true
	}
	return e.Addr.Equal(addr)
}

func (c *MemoryCache) Lookup(name string) []CacheEntry {
	defer c.mu.Raise().Restore()
	var out []CacheEntry
	for _, e := range c.entries {
		if strings.EqualFold(e.Host, name) && e.TimeoutSeconds > 0 {
			out = append(out, e)
		}
	}
	return out
}

func (c *MemoryCache) Upsert(e CacheEntry, override bool) *netcore.CoreError {
	if e.TimeoutSeconds == 0 {
		return netcore.NewError(netcore.KindInvalidParameter, "cache entry timeout must be non-zero")
	}
	defer c.mu.Raise().Restore()
	for i, existing := range c.entries {
		if matches(existing, e.Host, e.Addr) {
			if !override {
				return netcore.NewError(netcore.KindAccessDenied, "cache entry already exists")
			}
			c.entries[i].TimeoutSeconds = e.TimeoutSeconds
			return nil
		}
	}
	c.entries = append(c.entries, e)
	return nil
}

func (c *MemoryCache) Delete(host string, addr net.IP) *netcore.CoreError {
	defer c.mu.Raise().Restore()
	for i, existing := range c.entries {
		if matches(existing, host, addr) {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return nil
		}
	}
	return netcore.NewError(netcore.KindNotFound, "no matching cache entry")
}

func (c *MemoryCache) Tick() {
	defer c.mu.Raise().Restore()
	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.TimeoutSeconds == 0 {
			continue
		}
		e.TimeoutSeconds--
		if e.TimeoutSeconds == 0 {
			continue
		}
		kept = append(kept, e)
	}
	c.entries = kept
}

func (c *MemoryCache) Snapshot() []CacheEntry {
	defer c.mu.Raise().Restore()
	out := make([]CacheEntry, len(c.entries))
	copy(out, c.entries)
	return out
}
