package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fwnet/netcore"
	"github.com/fwnet/netcore/dns"
)

// buildCacheBackend turns the boot config's cache-backend selection into
// a concrete dns.CacheBackend, mirroring the way the teacher's
// cmd/routedns/config.go resolves a named backend string into a
// concrete type before handing it to the library.
func buildCacheBackend(cfg *netcore.BootConfig) (dns.CacheBackend, error) {
	switch cfg.DNS.CacheBackend {
	case "", "memory":
		return dns.NewMemoryCache(), nil
	case "redis":
		if cfg.DNS.RedisAddress == "" {
			return nil, fmt.Errorf("dns.redis-address is required when dns.cache-backend is \"redis\"")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.DNS.RedisAddress})
		return dns.NewRedisCache(client), nil
	default:
		return nil, fmt.Errorf("unknown dns.cache-backend %q", cfg.DNS.CacheBackend)
	}
}

// dnsConfigFrom maps the boot config onto a dns.Config record.
func dnsConfigFrom(cfg *netcore.BootConfig) dns.Config {
	return dns.Config{
		StationIP:      cfg.StationIP,
		SubnetMask:     cfg.SubnetMask,
		UseDefaultAddr: cfg.UseDefaultAddr,
		DNSServers:     cfg.DNS.Servers,
		EnableDNSCache: cfg.DNS.EnableCache,
		RetryCount:     cfg.DNS.RetryCount,
		RetryInterval:  cfg.DNS.RetryInterval.Duration(),
		Protocol:       "udp",
	}
}
