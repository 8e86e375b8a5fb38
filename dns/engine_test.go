package dns

import (
	"net"
	"sync"
	"testing"
	"time"

	mdns "github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/fwnet/netcore"
	"github.com/fwnet/netcore/transport"
)

// fakePacketConn is an in-memory transport.PacketConn whose Send calls
// are intercepted by a test-supplied responder, so tests can script
// server behavior without a real socket.
type fakePacketConn struct {
	mu        sync.Mutex
	recvCb    func(transport.Packet, error)
	responder func(query []byte) (respond bool, resp []byte)
}

func newFakePacketConn(responder func([]byte) (bool, []byte)) *fakePacketConn {
	return &fakePacketConn{responder: responder}
}

func (f *fakePacketConn) Send(p transport.Packet, doneCb func(error)) error {
	go func() {
		doneCb(nil)
		ok, resp := f.responder(p.Payload)
		if !ok {
			return
		}
		f.mu.Lock()
		cb := f.recvCb
		f.mu.Unlock()
		if cb != nil {
			cb(transport.Packet{Payload: resp}, nil)
		}
	}()
	return nil
}

func (f *fakePacketConn) Recv(doneCb func(transport.Packet, error)) error {
	f.mu.Lock()
	f.recvCb = doneCb
	f.mu.Unlock()
	return nil
}

func (f *fakePacketConn) CancelRecv() {
	f.mu.Lock()
	f.recvCb = nil
	f.mu.Unlock()
}

func (f *fakePacketConn) Poll()       {}
func (f *fakePacketConn) Close() error { return nil }

func newTestInstance(t *testing.T, responder func([]byte) (bool, []byte)) (*Instance, *Service) {
	t.Helper()
	world := netcore.NewDnsWorld()
	svc := NewService(world, netcore.FamilyV4, NewMemoryCache())
	conn := newFakePacketConn(responder)
	inst := svc.NewInstance("test", conn)
	err := inst.Configure(&Config{
		DNSServers:     []string{"8.8.8.8"},
		EnableDNSCache: true,
		RetryCount:     2,
		RetryInterval:  2 * time.Second,
	})
	require.Nil(t, err)
	return inst, svc
}

func buildAResponse(query []byte, ip net.IP, ttl uint32) []byte {
	q := new(mdns.Msg)
	_ = q.Unpack(query)
	resp := new(mdns.Msg)
	resp.SetReply(q)
	resp.Answer = append(resp.Answer, &mdns.A{
		Hdr: mdns.RR_Header{Name: q.Question[0].Name, Rrtype: mdns.TypeA, Class: mdns.ClassINET, Ttl: ttl},
		A:   ip,
	})
	wire, _ := resp.Pack()
	return wire
}

func waitToken(t *testing.T, tok *Token) {
	t.Helper()
	select {
	case <-tok.Event:
	case <-time.After(2 * time.Second):
		t.Fatal("token did not complete in time")
	}
}

// Scenario 1 (spec §8.4): simple lookup.
func TestHostNameToIp_SimpleLookup(t *testing.T) {
	inst, svc := newTestInstance(t, func(query []byte) (bool, []byte) {
		return true, buildAResponse(query, net.ParseIP("93.184.216.34"), 3600)
	})
	defer svc.Close()

	tok := NewToken("")
	err := inst.HostNameToIp("example.com", tok)
	require.Nil(t, err)
	waitToken(t, tok)

	require.Equal(t, netcore.KindOk, tok.Status)
	require.Len(t, tok.Response.IPs, 1)
	require.True(t, tok.Response.IPs[0].Equal(net.ParseIP("93.184.216.34")))

	entries := svc.cache.Lookup("example.com")
	require.Len(t, entries, 1)
	require.EqualValues(t, 3600, entries[0].TimeoutSeconds)
}

// Scenario 2 (spec §8.4): retransmission after dropped responses.
func TestHostNameToIp_Retransmission(t *testing.T) {
	var attempts int32
	var mu sync.Mutex
	inst, svc := newTestInstance(t, func(query []byte) (bool, []byte) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			return false, nil // drop first two
		}
		return true, buildAResponse(query, net.ParseIP("1.2.3.4"), 60)
	})
	defer svc.Close()

	tok := NewToken("")
	err := inst.HostNameToIp("retry.example.", tok)
	require.Nil(t, err)

	select {
	case <-tok.Event:
	case <-time.After(8 * time.Second):
		t.Fatal("token did not complete after retransmissions")
	}
	require.Equal(t, netcore.KindOk, tok.Status)
	mu.Lock()
	require.GreaterOrEqual(t, attempts, int32(3))
	mu.Unlock()
}

// Scenario 6 (spec §8.4): cancel all.
func TestCancelAll(t *testing.T) {
	inst, svc := newTestInstance(t, func([]byte) (bool, []byte) { return false, nil })
	defer svc.Close()

	toks := make([]*Token, 3)
	for i := range toks {
		toks[i] = NewToken("")
		require.Nil(t, inst.HostNameToIp("pending.example.", toks[i]))
	}
	require.Equal(t, 3, inst.tx.len())

	require.Nil(t, inst.Cancel(nil))
	for _, tok := range toks {
		waitToken(t, tok)
		require.Equal(t, netcore.KindAborted, tok.Status)
	}
	require.Equal(t, 0, inst.tx.len())
}

// NXDOMAIN maps to NotFound.
func TestNameError(t *testing.T) {
	inst, svc := newTestInstance(t, func(query []byte) (bool, []byte) {
		q := new(mdns.Msg)
		_ = q.Unpack(query)
		resp := new(mdns.Msg)
		resp.SetRcode(q, mdns.RcodeNameError)
		wire, _ := resp.Pack()
		return true, wire
	})
	defer svc.Close()

	tok := NewToken("")
	require.Nil(t, inst.HostNameToIp("nxdomain.example.", tok))
	waitToken(t, tok)
	require.Equal(t, netcore.KindNotFound, tok.Status)
}

// Cache add/delete round trip (spec §8.2).
func TestCacheAddDelete(t *testing.T) {
	c := NewMemoryCache()
	e := CacheEntry{Host: "host.example.", Addr: net.ParseIP("10.0.0.1"), TimeoutSeconds: 30}
	require.Nil(t, c.Upsert(e, false))
	cerr := c.Upsert(e, false)
	require.NotNil(t, cerr)
	require.Equal(t, netcore.KindAccessDenied, cerr.Kind)
	require.Nil(t, c.Upsert(e, true))
	require.Nil(t, c.Delete(e.Host, e.Addr))
	require.Empty(t, c.Lookup(e.Host))
}

// Aging timer invariant (spec §8.1 item 3): no entry has timeout 0 after a tick.
func TestCacheAging(t *testing.T) {
	c := NewMemoryCache()
	require.Nil(t, c.Upsert(CacheEntry{Host: "a.", Addr: net.ParseIP("1.1.1.1"), TimeoutSeconds: 1}, false))
	c.Tick()
	for _, e := range c.Snapshot() {
		require.NotZero(t, e.TimeoutSeconds)
	}
	require.Empty(t, c.Lookup("a."))
}
