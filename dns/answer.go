package dns

import (
	"net"

	mdns "github.com/miekg/dns"

	"github.com/fwnet/netcore"
)

// validateResponse applies spec §4.1 "Wire format and matching" response
// validation, in order, and returns the CoreError to complete the token
// with if validation fails short of answer processing, or nil if the
// caller should proceed to processAnswers.
func validateResponse(resp *mdns.Msg) *netcore.CoreError {
	if resp.Rcode == mdns.RcodeNameError {
		return netcore.NewError(netcore.KindNotFound, "name does not exist")
	}
	if resp.Rcode != mdns.RcodeSuccess {
		return netcore.NewError(netcore.KindDeviceError, "response indicates server error")
	}
	if len(resp.Answer) == 0 || !resp.Response {
		return netcore.NewError(netcore.KindDeviceError, "malformed or empty response")
	}
	return nil
}

// processAnswers walks resp.Answer per spec §4.1 "Answer processing":
// A/AAAA records (restricted to the token's address family) are
// collected, CNAME TTLs are remembered for the cache-lifetime rule, and
// any other record type is rejected as unsupported. Returns the
// collected addresses, the cache TTL to use (per the CNAME-chain-TTL
// rule, spec §3.2/Glossary), and an error if any answer is malformed or
// of an unexpected type.
func processAnswers(resp *mdns.Msg, family netcore.AddressFamily) ([]net.IP, uint32, *netcore.CoreError) {
	var (
		ips      []net.IP
		cnameTTL uint32
		haveCTTL bool
		rrTTL    uint32
		haveRTTL bool
	)

	for _, rr := range resp.Answer {
		switch v := rr.(type) {
		case *mdns.A:
			if family != netcore.FamilyV4 {
				return nil, 0, netcore.NewError(netcore.KindUnsupported, "A record in a v6 lookup")
			}
			ips = append(ips, v.A)
			rrTTL, haveRTTL = v.Hdr.Ttl, true
		case *mdns.AAAA:
			if family != netcore.FamilyV6 {
				return nil, 0, netcore.NewError(netcore.KindUnsupported, "AAAA record in a v4 lookup")
			}
			ips = append(ips, v.AAAA)
			rrTTL, haveRTTL = v.Hdr.Ttl, true
		case *mdns.CNAME:
			cnameTTL, haveCTTL = v.Hdr.Ttl, true
			continue
		default:
			return nil, 0, netcore.NewError(netcore.KindUnsupported, "unsupported answer record type")
		}
	}

	ttl := cacheTTL(haveCTTL, cnameTTL, haveRTTL, rrTTL)
	return ips, ttl, nil
}

// cacheTTL implements the CNAME-chain-TTL rule from spec §4.1 "Answer
// processing": timeout = min(CNameTtl, answer.ttl) when both are
// non-zero, else max(CNameTtl, answer.ttl).
func cacheTTL(haveCNAME bool, cnameTTL uint32, haveRR bool, rrTTL uint32) uint32 {
	if !haveRR {
		return cnameTTL
	}
	if !haveCNAME {
		return rrTTL
	}
	if cnameTTL != 0 && rrTTL != 0 {
		if cnameTTL < rrTTL {
			return cnameTTL
		}
		return rrTTL
	}
	if cnameTTL > rrTTL {
		return cnameTTL
	}
	return rrTTL
}

// matchResponse finds the pending token in m whose stored packet's
// transaction id, qtype, and qclass all match resp's question (spec §3.2
// invariant: "no other matching criterion may be used").
func matchResponse(m *pendingMap, resp *mdns.Msg) *Token {
	if len(resp.Question) != 1 {
		return nil
	}
	q := resp.Question[0]
	return m.find(func(t *Token) bool {
		return t.packet != nil &&
			t.packet.Id == resp.Id &&
			t.packet.Question[0].Qtype == q.Qtype &&
			t.packet.Question[0].Qclass == q.Qclass
	})
}
