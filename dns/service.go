package dns

import (
	"time"

	"github.com/fwnet/netcore"
	"github.com/fwnet/netcore/transport"
)

// ServerSource is the collaborator interface spec §4.1 "Configure"
// refers to when an instance is configured with an empty DNS server
// list: "choose a session DNS server (the first entry if provided,
// else one obtained from the collaborator interface in §6)". Grounded
// on original_source/NetworkPkg/DnsDxe/DnsProtocol.c's
// GetDns4ServerFromDhcp4, which supplies the same fallback from the
// DHCP collaborator when DnsServerList is empty. How the default
// server is learned (DHCP, a static site default, a prior session) is
// a collaborator concern; this core only consumes the result.
type ServerSource interface {
	// DefaultServer returns a DNS server address to use when an
	// instance is configured without one, or a CoreError (typically
	// KindNoMapping) if none is available.
	DefaultServer(family netcore.AddressFamily) (string, *netcore.CoreError)
}

// Service is the process-wide facet per address family (spec §3.1
// "DnsService"): it owns the shared cache, the set of all DNS servers
// ever used by its instances, and the retransmission and cache-aging
// timer. Instances register themselves with their owning Service on
// Configure and are driven by the single timer below (spec §3.1's
// listing of one retransmission/cache-aging timer on the Service,
// matching original_source/NetworkPkg/DnsDxe/DnsImpl.c's
// DnsOnTimerRetransmit, which iterates every instance from one
// Service-level timer).
type Service struct {
	family       netcore.AddressFamily
	cache        CacheBackend
	serverSource ServerSource

	mu        netcore.CriticalSection
	servers   map[string]struct{}
	instances []*Instance

	aging *time.Ticker
	stop  chan struct{}
}

// NewService creates a Service for one address family, rooted in world.
// If world already has a cache slot for this family (e.g. because a
// sibling Service for the same family was created earlier), it is
// reused, implementing spec §5's "shared across all instances of the
// same address family". There is no fallback DNS server collaborator;
// an instance configured with an empty server list fails with
// KindNoMapping. Use NewServiceWithServerSource to supply one.
func NewService(world *netcore.DnsWorld, family netcore.AddressFamily, backend CacheBackend) *Service {
	return NewServiceWithServerSource(world, family, backend, nil)
}

// NewServiceWithServerSource is NewService plus a ServerSource
// collaborator consulted when an instance is configured with no DNS
// servers of its own (spec §4.1 "Configure").
func NewServiceWithServerSource(world *netcore.DnsWorld, family netcore.AddressFamily, backend CacheBackend, source ServerSource) *Service {
	if backend == nil {
		backend = NewMemoryCache()
	}
	cache := world.Slot(family, func() interface{} { return backend }).(CacheBackend)
	s := &Service{
		family:       family,
		cache:        cache,
		serverSource: source,
		servers:      make(map[string]struct{}),
		stop:         make(chan struct{}),
	}
	s.aging = time.NewTicker(time.Second)
	go s.ageLoop()
	return s
}

func (s *Service) ageLoop() {
	for {
		select {
		case <-s.aging.C:
			s.cache.Tick()
			for _, inst := range s.registeredInstances() {
				inst.onTick()
			}
		case <-s.stop:
			s.aging.Stop()
			return
		}
	}
}

// registerInstance adds inst to the set driven by the per-second
// retransmission tick. Called once the instance reaches Configured.
func (s *Service) registerInstance(inst *Instance) {
	defer s.mu.Raise().Restore()
	s.instances = append(s.instances, inst)
}

// unregisterInstance removes inst from the retransmission tick set.
// Called on teardown (Configure(nil)).
func (s *Service) unregisterInstance(inst *Instance) {
	defer s.mu.Raise().Restore()
	for i, existing := range s.instances {
		if existing == inst {
			s.instances = append(s.instances[:i], s.instances[i+1:]...)
			return
		}
	}
}

func (s *Service) registeredInstances() []*Instance {
	defer s.mu.Raise().Restore()
	out := make([]*Instance, len(s.instances))
	copy(out, s.instances)
	return out
}

// defaultServer consults the ServerSource collaborator, if any, for a
// fallback session DNS server (spec §4.1 "Configure").
func (s *Service) defaultServer() (string, *netcore.CoreError) {
	if s.serverSource == nil {
		return "", netcore.NewError(netcore.KindNoMapping, "no DNS server available and none configured")
	}
	return s.serverSource.DefaultServer(s.family)
}

// Close stops the cache-aging timer. The caller must do this before
// releasing the Service (spec §5 "A UDP or TCP endpoint is owned
// exclusively...teardown must release it before the instance is freed"
// — the analogous rule applies to the Service's own timer).
func (s *Service) Close() {
	close(s.stop)
}

// rememberServer records addr in the set of all DNS servers ever used by
// this service's instances (spec §3.1).
func (s *Service) rememberServer(addr string) {
	defer s.mu.Raise().Restore()
	s.servers[addr] = struct{}{}
}

// ServerList returns a caller-owned snapshot of every server address
// ever used (spec §9 Open Question: GetModeData ownership).
func (s *Service) ServerList() []string {
	defer s.mu.Raise().Restore()
	out := make([]string, 0, len(s.servers))
	for addr := range s.servers {
		out = append(out, addr)
	}
	return out
}

// NewInstance creates a resolver session bound to this service.
func (s *Service) NewInstance(id string, udp transport.PacketConn) *Instance {
	return &Instance{
		id:      id,
		svc:     s,
		family:  s.family,
		udp:     udp,
		tx:      &pendingMap{},
		metrics: netcore.NewInstanceMetrics("dns", id),
	}
}
