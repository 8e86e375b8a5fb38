package httpcore

import (
	"time"

	"github.com/fwnet/netcore"
	"github.com/fwnet/netcore/tlspump"
	"github.com/fwnet/netcore/transport"
)

// Service spawns HttpInstances sharing one resolver. Unlike the DNS
// service, HTTP has no cross-instance shared state to own — the cache
// and server list the DNS side shares across instances of the same
// address family have no HTTP equivalent — so Service is just an
// instance factory that gives every instance a metrics id under one
// subsystem.
type Service struct {
	resolver Resolver

	tlsEngineFactory func(serverName string) tlspump.Engine
	tlsTimeout       time.Duration
}

// NewService returns a Service whose instances resolve hostnames
// through resolver (typically a *dns.Instance already configured for
// the address family this HTTP traffic should use). Instances from this
// Service reject https:// requests with Unsupported, since the
// cryptographic TLS engine is an external collaborator (spec §1) this
// constructor has not been given one; use NewServiceWithTLS to wire one.
func NewService(resolver Resolver) *Service {
	return &Service{resolver: resolver}
}

// NewServiceWithTLS is like NewService, but instances wrap their TCP
// connection in the tlspump pump (spec §4.3) whenever a request targets
// https://, driving a fresh engineFactory(host)-supplied Engine through
// the handshake before any HTTP bytes are exchanged. handshakeTimeout
// bounds that handshake; zero waits forever.
func NewServiceWithTLS(resolver Resolver, engineFactory func(serverName string) tlspump.Engine, handshakeTimeout time.Duration) *Service {
	return &Service{resolver: resolver, tlsEngineFactory: engineFactory, tlsTimeout: handshakeTimeout}
}

// NewInstance returns a fresh, unconfigured HTTP instance.
func (s *Service) NewInstance(id string) *Instance {
	inst := &Instance{
		id:       id,
		svc:      s,
		hb:       transport.DefaultHeaderBuilder{},
		resolver: s.resolver,
		newConn:  func() transport.StreamConn { return transport.NewNetStreamConn() },
		metrics:  netcore.NewInstanceMetrics("http", id),
	}
	if s.tlsEngineFactory != nil {
		inst.tlsDial = func(inner transport.StreamConn, host string) transport.StreamConn {
			return tlspump.NewConn(inner, s.tlsEngineFactory(host), s.tlsTimeout)
		}
	}
	return inst
}
