package dns

import (
	"net"

	mdns "github.com/miekg/dns"

	"github.com/fwnet/netcore"
	"github.com/fwnet/netcore/transport"
)

// State is a dns.Instance's lifecycle state, spec §3.1.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateDestroying
)

// Instance is a configured resolver session, spec §3.1 "DnsInstance".
type Instance struct {
	id     string
	svc    *Service
	family netcore.AddressFamily

	state  State
	cfg    Config
	server string

	udp transport.PacketConn
	tx  *pendingMap

	metrics *netcore.InstanceMetrics
}

// Configure implements spec §4.1 "Configure". Passing a nil cfg tears
// the instance down; passing a non-nil cfg (re-)configures it.
func (inst *Instance) Configure(cfg *Config) *netcore.CoreError {
	if cfg == nil {
		return inst.reset()
	}
	if inst.state == StateConfigured {
		return netcore.NewError(netcore.KindAlreadyStarted, "instance already configured")
	}
	if err := cfg.validate(inst.family); err != nil {
		return err
	}

	server := ""
	if len(cfg.DNSServers) > 0 {
		server = cfg.DNSServers[0]
	} else {
		fallback, cerr := inst.svc.defaultServer()
		if cerr != nil {
			return cerr
		}
		server = fallback
	}

	inst.cfg = *cfg
	inst.server = server
	inst.svc.rememberServer(server)
	inst.svc.registerInstance(inst)
	inst.state = StateConfigured
	return nil
}

// reset implements the null-Configure branch: cancel all pending tokens,
// release UDP state, clear configuration, return to Unconfigured.
func (inst *Instance) reset() *netcore.CoreError {
	inst.state = StateDestroying
	inst.Cancel(nil)
	inst.svc.unregisterInstance(inst)
	if inst.udp != nil {
		inst.udp.Close()
	}
	inst.cfg = Config{}
	inst.server = ""
	inst.state = StateUnconfigured
	return nil
}

// HostNameToIp implements spec §4.1 "HostNameToIp".
func (inst *Instance) HostNameToIp(hostname string, tok *Token) *netcore.CoreError {
	if inst.state != StateConfigured {
		return netcore.NewError(netcore.KindNotStarted, "instance not configured")
	}
	if tok == nil || hostname == "" {
		return netcore.NewError(netcore.KindInvalidParameter, "hostname and token are required")
	}
	inst.metrics.Requests.Add(1)
	tok.Hostname = hostname
	tok.Qclass = mdns.ClassINET
	tok.Qtype = mdns.TypeA
	if inst.family == netcore.FamilyV6 {
		tok.Qtype = mdns.TypeAAAA
	}

	if inst.cfg.EnableDNSCache {
		if entries := inst.svc.cache.Lookup(hostname); len(entries) > 0 {
			ips := make([]net.IP, 0, len(entries))
			for _, e := range entries {
				ips = append(ips, e.Addr)
			}
			tok.Response = Response{Kind: ResponseHostToAddress, IPs: ips}
			inst.metrics.RecordOutcome(netcore.KindOk)
			tok.signal(netcore.KindOk)
			return nil
		}
	}
	return inst.dispatch(tok)
}

// GeneralLookup implements spec §4.1 "GeneralLookup": like HostNameToIp
// but returns raw resource records and never consults the cache.
func (inst *Instance) GeneralLookup(qname string, qtype, qclass uint16, tok *Token) *netcore.CoreError {
	if inst.state != StateConfigured {
		return netcore.NewError(netcore.KindNotStarted, "instance not configured")
	}
	if tok == nil || qname == "" {
		return netcore.NewError(netcore.KindInvalidParameter, "qname and token are required")
	}
	inst.metrics.Requests.Add(1)
	tok.Hostname = qname
	tok.Qtype = qtype
	tok.Qclass = qclass
	tok.General = true
	return inst.dispatch(tok)
}

func (inst *Instance) dispatch(tok *Token) *netcore.CoreError {
	tok.packet = buildQuery(tok.Hostname, tok.Qtype, tok.Qclass)
	tok.packetTTL = inst.cfg.retryIntervalOrDefault()
	tok.retryCount = 0
	inst.tx.push(tok)
	if err := inst.transmitPacket(tok); err != nil {
		inst.tx.remove(tok)
		return err
	}
	return nil
}

func (inst *Instance) transmitPacket(tok *Token) *netcore.CoreError {
	wire, err := tok.packet.Pack()
	if err != nil {
		return netcore.WrapError(netcore.KindDeviceError, err, "encode query")
	}
	sendErr := inst.udp.Send(transport.Packet{Payload: wire, Peer: inst.sessionServerAddr()}, func(error) {})
	if sendErr != nil {
		return netcore.WrapError(netcore.KindDeviceError, sendErr, "transmit query")
	}
	recvErr := inst.udp.Recv(func(p transport.Packet, err error) {
		if err != nil {
			return
		}
		inst.onPacket(p.Payload)
	})
	if recvErr != nil {
		return netcore.WrapError(netcore.KindDeviceError, recvErr, "arm receive")
	}
	return nil
}

func (inst *Instance) sessionServerAddr() string {
	addr := inst.server
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "53")
	}
	return addr
}

// onPacket implements spec §4.1 response validation and dispatch; called
// from the UDP transport's completion callback.
func (inst *Instance) onPacket(wire []byte) {
	if len(wire) <= 12 {
		return // shorter than a DNS header: drop
	}
	resp := new(mdns.Msg)
	if err := resp.Unpack(wire); err != nil {
		return
	}
	if len(resp.Question) > 1 {
		return // more than one question: unsupported, drop (no token identified yet)
	}
	tok := matchResponse(inst.tx, resp)
	if tok == nil {
		return // no matching pending token: drop
	}

	if cerr := validateResponse(resp); cerr != nil {
		inst.complete(tok, cerr.Kind, Response{})
		return
	}

	if tok.General {
		inst.complete(tok, netcore.KindOk, Response{Kind: ResponseGeneralLookup, RRs: resp.Answer})
		return
	}

	ips, ttl, cerr := processAnswers(resp, inst.family)
	if cerr != nil {
		inst.complete(tok, cerr.Kind, Response{})
		return
	}

	if inst.cfg.EnableDNSCache && ttl > 0 {
		for _, ip := range ips {
			_ = inst.svc.cache.Upsert(CacheEntry{Host: tok.Hostname, Addr: ip, TimeoutSeconds: ttl}, true)
		}
	}
	inst.complete(tok, netcore.KindOk, Response{Kind: ResponseHostToAddress, IPs: ips})
}

func (inst *Instance) complete(tok *Token, status netcore.Kind, resp Response) {
	inst.tx.remove(tok)
	tok.Response = resp
	inst.metrics.RecordOutcome(status)
	tok.signal(status)
	if inst.tx.len() == 0 {
		inst.udp.CancelRecv()
	}
}

// UpdateDnsCache implements spec §4.1 "UpdateDnsCache".
func (inst *Instance) UpdateDnsCache(deleteFlag, override bool, entry CacheEntry) *netcore.CoreError {
	if deleteFlag {
		return inst.svc.cache.Delete(entry.Host, entry.Addr)
	}
	return inst.svc.cache.Upsert(entry, override)
}

// Cancel implements spec §4.1 "Cancel". A nil token cancels all pending
// tokens; otherwise only the matching one is cancelled.
func (inst *Instance) Cancel(tok *Token) *netcore.CoreError {
	if tok == nil {
		for _, t := range inst.tx.all() {
			inst.tx.remove(t)
			inst.metrics.RecordOutcome(netcore.KindAborted)
			t.signal(netcore.KindAborted)
		}
		if inst.udp != nil {
			inst.udp.CancelRecv()
		}
		return nil
	}
	if !inst.tx.remove(tok) {
		if tok.Done() {
			return netcore.NewError(netcore.KindNotFound, "token already completed")
		}
		return netcore.NewError(netcore.KindNotFound, "token not pending on this instance")
	}
	inst.metrics.RecordOutcome(netcore.KindAborted)
	tok.signal(netcore.KindAborted)
	if inst.tx.len() == 0 && inst.udp != nil {
		inst.udp.CancelRecv()
	}
	return nil
}

// Poll drives the underlying UDP transport once, spec §4.1 "Poll".
func (inst *Instance) Poll() {
	if inst.udp != nil {
		inst.udp.Poll()
	}
}

// ModeData is the snapshot spec §4.1 "GetModeData" returns: caller-owned
// copies of configuration, server list, and cache list. The engine never
// retains or frees these after the call returns (spec §9 Open Question).
type ModeData struct {
	Config     Config
	ServerList []string
	CacheList  []CacheEntry
}

// GetModeData implements spec §4.1 "GetModeData".
func (inst *Instance) GetModeData() ModeData {
	return ModeData{
		Config:     inst.cfg,
		ServerList: inst.svc.ServerList(),
		CacheList:  inst.svc.cache.Snapshot(),
	}
}
