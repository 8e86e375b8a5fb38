package dns

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fwnet/netcore"
)

type staticServerSource struct {
	addr string
	err  *netcore.CoreError
}

func (s staticServerSource) DefaultServer(netcore.AddressFamily) (string, *netcore.CoreError) {
	if s.err != nil {
		return "", s.err
	}
	return s.addr, nil
}

// Configure with no DNSServers and no ServerSource fails KindNoMapping
// (spec §4.1 "Configure").
func TestConfigure_NoServersNoSource(t *testing.T) {
	world := netcore.NewDnsWorld()
	svc := NewService(world, netcore.FamilyV4, NewMemoryCache())
	defer svc.Close()

	inst := svc.NewInstance("test", newFakePacketConn(func([]byte) (bool, []byte) { return false, nil }))
	err := inst.Configure(&Config{UseDefaultAddr: true})
	require.NotNil(t, err)
	require.Equal(t, netcore.KindNoMapping, err.Kind)
}

// Configure with no DNSServers falls back to the ServerSource
// collaborator (spec §4.1 "Configure": "the first entry if provided,
// else one obtained from the collaborator interface").
func TestConfigure_FallsBackToServerSource(t *testing.T) {
	world := netcore.NewDnsWorld()
	svc := NewServiceWithServerSource(world, netcore.FamilyV4, NewMemoryCache(), staticServerSource{addr: "9.9.9.9"})
	defer svc.Close()

	inst := svc.NewInstance("test", newFakePacketConn(func([]byte) (bool, []byte) { return false, nil }))
	err := inst.Configure(&Config{UseDefaultAddr: true})
	require.Nil(t, err)
	require.Contains(t, svc.ServerList(), "9.9.9.9")
}

func TestConfigure_ServerSourceError(t *testing.T) {
	world := netcore.NewDnsWorld()
	srcErr := netcore.NewError(netcore.KindNoMapping, "no lease yet")
	svc := NewServiceWithServerSource(world, netcore.FamilyV4, NewMemoryCache(), staticServerSource{err: srcErr})
	defer svc.Close()

	inst := svc.NewInstance("test", newFakePacketConn(func([]byte) (bool, []byte) { return false, nil }))
	err := inst.Configure(&Config{UseDefaultAddr: true})
	require.NotNil(t, err)
	require.Equal(t, netcore.KindNoMapping, err.Kind)
}

// Instance teardown deregisters it from the Service's retransmission
// tick set, and a tick after teardown (and Close afterward) does not
// panic iterating stale instances.
func TestInstanceTeardown_Deregisters(t *testing.T) {
	world := netcore.NewDnsWorld()
	svc := NewService(world, netcore.FamilyV4, NewMemoryCache())
	defer svc.Close()

	inst := svc.NewInstance("test", newFakePacketConn(func(query []byte) (bool, []byte) {
		return true, buildAResponse(query, net.ParseIP("1.2.3.4"), 30)
	}))
	require.Nil(t, inst.Configure(&Config{DNSServers: []string{"8.8.8.8"}}))
	require.Nil(t, inst.Configure(nil))
	require.Empty(t, svc.registeredInstances())

	time.Sleep(1100 * time.Millisecond)
}
