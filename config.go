package netcore

import (
	"time"

	"github.com/BurntSushi/toml"
)

// BootConfig is the TOML-driven configuration for the demo driver
// (cmd/netcored): the DNS server list and retry knobs, the HTTP timeout, and
// which address family and TLS policy to bring the stack up with. It is
// not part of the per-instance Config types in dns/ and httpcore/ —
// those are built from this one once loaded, the way the teacher's own
// cmd/routedns/config.go separates its TOML shape from the library
// types it feeds.
type BootConfig struct {
	Title string

	Family string `toml:"family"` // "v4" or "v6"

	StationIP      string `toml:"station-ip"`
	SubnetMask     string `toml:"subnet-mask"`
	UseDefaultAddr bool   `toml:"use-default-address"`

	DNS  DNSBootConfig  `toml:"dns"`
	HTTP HTTPBootConfig `toml:"http"`
	TLS  TLSBootConfig  `toml:"tls"`
}

// DNSBootConfig configures the dns.Instance the driver brings up.
type DNSBootConfig struct {
	Servers       []string `toml:"servers"`
	EnableCache   bool     `toml:"enable-cache"`
	RetryCount    int      `toml:"retry-count"`
	RetryInterval Duration `toml:"retry-interval"`
	CacheBackend  string   `toml:"cache-backend"` // "memory" or "redis"
	RedisAddress  string   `toml:"redis-address"`
}

// HTTPBootConfig configures the httpcore.Instance the driver brings up.
type HTTPBootConfig struct {
	Timeout Duration `toml:"timeout"`
}

// TLSBootConfig selects whether the driver wires an HTTPS-capable
// httpcore.Service. Since the TLS cryptographic engine itself is an
// external collaborator (spec §1), this only carries the enable flag and
// the handshake timeout; it names no Engine factory, cipher suites or
// certificate material.
type TLSBootConfig struct {
	Enabled          bool     `toml:"enabled"`
	HandshakeTimeout Duration `toml:"handshake-timeout"`
}

// Duration is a time.Duration that unmarshals from a TOML string like
// "5s" or "500ms", since BurntSushi/toml has no native duration type.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// LoadBootConfig reads and parses a TOML boot config file.
func LoadBootConfig(path string) (*BootConfig, error) {
	var cfg BootConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AddressFamily maps the config's "v4"/"v6" string to an AddressFamily,
// defaulting to FamilyV4 for an empty or unrecognized value.
func (c *BootConfig) AddressFamily() AddressFamily {
	if c.Family == "v6" {
		return FamilyV6
	}
	return FamilyV4
}
