package dns

import (
	"math/rand"

	mdns "github.com/miekg/dns"
)

// buildQuery constructs a single-question query packet (spec §4.1 "Wire
// format and matching"): one question, RD=1, OPCODE=StandardQuery, and a
// fresh pseudorandom 16-bit transaction id that is the sole key later
// used to match the response (spec §3.2 invariant).
func buildQuery(qname string, qtype, qclass uint16) *mdns.Msg {
	m := new(mdns.Msg)
	m.Id = uint16(rand.Intn(1 << 16))
	m.RecursionDesired = true
	m.Opcode = mdns.OpcodeQuery
	m.Question = []mdns.Question{{
		Name:   fqdn(qname),
		Qtype:  qtype,
		Qclass: qclass,
	}}
	return m
}
