// Package transport defines the contracts this core consumes from its
// collaborators: the UDP and TCP transports, and the HTTP header
// build/parse utility (spec §6.1). The firmware transports themselves —
// and the driver-binding glue that creates them — are out of this core's
// scope; besides the shapes the core calls through, this package holds
// hosted default implementations (NetStreamConn, NetPacketConn,
// DefaultHeaderBuilder).
package transport

import (
	"net"
	"sync"
	"time"
)

// Packet is one datagram exchanged over a PacketConn, paired with the
// peer address it was sent to or received from.
type Packet struct {
	Payload []byte
	Peer    string
}

// PacketConn is the UDP I/O contract the DNS query engine drives (spec
// §6.1 "UDP I/O"). A concrete implementation wraps whatever UDP socket
// facility the hosting environment offers (a real net.PacketConn when
// hosted, a firmware UDP protocol binding when not).
type PacketConn interface {
	// Send transmits a packet; doneCb fires once the transport has
	// finished transmitting it (success or failure).
	Send(p Packet, doneCb func(error)) error

	// Recv arms one receive; doneCb fires with the received packet once
	// one arrives, or with an error.
	Recv(doneCb func(Packet, error)) error

	// CancelRecv cancels the outstanding Recv, if any.
	CancelRecv()

	// Poll drives any pending completions. Must be safe to call
	// repeatedly from a busy-poll loop.
	Poll()

	// Close releases the underlying socket. The owning instance must
	// call this before it is freed (spec §5 "Shared resources").
	Close() error
}

// StreamConnState mirrors the subset of TCP GetModeData this core reads.
type StreamConnState struct {
	IsConnDone   bool
	IsConnected  bool
	IsClosed     bool
	RemoteClosed bool
}

// StreamConfig carries the TCP configuration knobs spec §6.2 names.
type StreamConfig struct {
	StationAddress string
	StationMask    string
	UseDefaultAddr bool

	RemoteHost string
	RemotePort uint16

	TypeOfService byte
	TimeToLive    byte
	SendBufSize   int
	RecvBufSize   int
	MaxSynBackLog int

	ConnectTimeout  time.Duration
	DataRetries     int
	FinTimeout      time.Duration
	KeepAliveProbes int
	KeepAliveTime   time.Duration
	KeepAliveIntvl  time.Duration
}

// DefaultStreamConfig returns the spec §6.2 transport configuration
// defaults, with the caller expected to overlay RemoteHost/RemotePort
// and any station-address override.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		TypeOfService:   8,
		TimeToLive:      255,
		SendBufSize:     65535,
		RecvBufSize:     65535,
		MaxSynBackLog:   5,
		ConnectTimeout:  60 * time.Second,
		DataRetries:     12,
		FinTimeout:      2 * time.Second,
		KeepAliveProbes: 6,
		KeepAliveTime:   7200 * time.Second,
		KeepAliveIntvl:  30 * time.Second,
	}
}

// StreamConn is the TCP contract the HTTP layer and TLS pump drive (spec
// §6.1 "TCP"). Transmit and Receive report completion through a per-call
// callback rather than a token value; the hosted default implementation
// (see transport/tcp.go) treats each call as a single in-flight
// operation, consistent with spec's "at most one outstanding HTTP
// request per instance" invariant.
type StreamConn interface {
	Configure(cfg StreamConfig) error
	Connect() error
	Transmit(buf []byte, doneCb func(error)) error
	Receive(buf []byte, doneCb func(n int, err error)) error
	Close() error
	Cancel() error
	Poll()
	GetModeData() StreamConnState
}

// RecvScratchSize is the per-turn receive scratch size (spec §6.2
// "Receive scratch per turn"). httpcore's receive loop reads through its
// own recvChunkSize constant of the same value; nothing refers to this
// constant.
const RecvScratchSize = 2048

// InternalRecvFIFOSize is the size spec §6.2 assigns to the internal
// receive FIFO backing a StreamConn implementation.
const InternalRecvFIFOSize = 1024

// NetPacketConn is the hosted default PacketConn implementation, backed
// by net.DialUDP the way the teacher's DoT/DoQ UDP dialers are (see
// NetStreamConn's doc comment for why a hosted default exists at all:
// the reference driver needs something concrete to run against in
// place of a firmware UDP binding).
type NetPacketConn struct {
	conn *net.UDPConn
	peer string

	mu      sync.Mutex
	pending []completion
}

var _ PacketConn = (*NetPacketConn)(nil)

// NewNetPacketConn dials a UDP "connection" to addr (host:port); UDP has
// no handshake, so this only fixes the default peer for Send/Recv.
func NewNetPacketConn(addr string) (*NetPacketConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &NetPacketConn{conn: conn, peer: addr}, nil
}

func (c *NetPacketConn) Send(p Packet, doneCb func(error)) error {
	go func() {
		_, err := c.conn.Write(p.Payload)
		c.mu.Lock()
		c.pending = append(c.pending, func() { doneCb(err) })
		c.mu.Unlock()
	}()
	return nil
}

func (c *NetPacketConn) Recv(doneCb func(Packet, error)) error {
	go func() {
		buf := make([]byte, MaxMessageSizeHint)
		n, err := c.conn.Read(buf)
		pkt := Packet{Payload: buf[:n], Peer: c.peer}
		c.mu.Lock()
		c.pending = append(c.pending, func() { doneCb(pkt, err) })
		c.mu.Unlock()
	}()
	return nil
}

// CancelRecv does nothing: a Recv already armed stays blocked in its
// read until a datagram arrives or Close is called, and then still
// delivers through its callback.
func (c *NetPacketConn) CancelRecv() {}

func (c *NetPacketConn) Poll() {
	c.mu.Lock()
	due := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range due {
		fn()
	}
}

func (c *NetPacketConn) Close() error {
	return c.conn.Close()
}

// MaxMessageSizeHint is the read buffer size NetPacketConn allocates per
// Recv; large enough for any EDNS0-less DNS/UDP response this core's DNS
// engine issues (spec §6.2 caps queries at 512 bytes).
const MaxMessageSizeHint = 4096
