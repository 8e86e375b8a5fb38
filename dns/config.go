// Package dns implements the DNS query engine: query builder, response
// parser, per-instance pending-token map, the shared TTL-aged
// host-to-address cache, and the retransmission/cache-aging timer (spec
// §3.1, §4.1).
package dns

import (
	"time"

	"github.com/fwnet/netcore"
)

// Default transport-level constants, spec §6.2.
const (
	DefaultServerPort    = 53
	MaxMessageSize       = 512 // bytes, UDP
	DefaultRetryInterval = 2 * time.Second
	MinRetryInterval     = 2 * time.Second
	DefaultRetryCount    = 3
)

// Config is one DnsInstance's configuration record, spec §3.1.
type Config struct {
	StationIP        string
	SubnetMask       string
	UseDefaultAddr   bool
	LocalPort        uint16
	DNSServers       []string
	EnableDNSCache   bool
	RetryCount       int
	RetryInterval    time.Duration
	Protocol         string // only "udp" is supported
}

func (c Config) retryIntervalOrDefault() time.Duration {
	if c.RetryInterval < MinRetryInterval {
		return MinRetryInterval
	}
	return c.RetryInterval
}

func (c Config) retryCountOrDefault() int {
	if c.RetryCount <= 0 {
		return DefaultRetryCount
	}
	return c.RetryCount
}

func (c Config) validate(family netcore.AddressFamily) *netcore.CoreError {
	if c.Protocol != "" && c.Protocol != "udp" {
		return netcore.NewError(netcore.KindUnsupported, "only udp transport is supported")
	}
	if !c.UseDefaultAddr {
		if c.StationIP == "" {
			return netcore.NewError(netcore.KindInvalidParameter, "station IP required unless using default address")
		}
	}
	// An empty DNSServers is allowed: Configure falls back to the
	// Service's ServerSource collaborator, failing with KindNoMapping
	// only if none is configured.
	return nil
}
