package dns

import (
	"net"
	"sync"
	"time"

	mdns "github.com/miekg/dns"

	"github.com/fwnet/netcore"
)

// ResponseKind distinguishes the two token response variants spec §3.1
// and §9 ("Tagged union for token response") require: a HostNameToIp
// result versus a GeneralLookup result. Modeled as a sum type rather than
// nullable siblings on one struct.
type ResponseKind int

const (
	ResponseNone ResponseKind = iota
	ResponseHostToAddress
	ResponseGeneralLookup
)

// Response is the tagged-union response slot on a Token.
type Response struct {
	Kind ResponseKind
	IPs  []net.IP  // valid when Kind == ResponseHostToAddress
	RRs  []mdns.RR // valid when Kind == ResponseGeneralLookup
}

// Token is the caller's asynchronous DNS lookup handle (spec §3.1).
// The caller owns the event; the engine holds a borrow on it until the
// token completes or is cancelled (spec §3.3).
type Token struct {
	// Event is signaled exactly once, on completion or cancellation.
	Event chan struct{}

	Status Kind

	Hostname string
	QueryIP  net.IP // optional, reserved for future reverse-style extensions
	General  bool
	Qtype    uint16
	Qclass   uint16

	Response Response

	retryCount int
	packetTTL  time.Duration
	packet     *mdns.Msg
	id         uint16

	signalOnce sync.Once
}

// Kind is an alias so callers of this package need not import netcore
// directly for the common case of reading Token.Status.
type Kind = netcore.Kind

// NewToken returns an unconfigured token ready to be passed to
// HostNameToIp or GeneralLookup.
func NewToken(hostname string) *Token {
	return &Token{
		Event:    make(chan struct{}),
		Hostname: hostname,
	}
}

// signal completes the token with the given status; safe to call more
// than once, only the first call has effect (spec §7 "signaled exactly
// once").
func (t *Token) signal(status Kind) {
	t.signalOnce.Do(func() {
		t.Status = status
		close(t.Event)
	})
}

// Done reports whether the token has already been signaled.
func (t *Token) Done() bool {
	select {
	case <-t.Event:
		return true
	default:
		return false
	}
}
