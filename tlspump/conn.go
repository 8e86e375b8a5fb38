package tlspump

import (
	"sync"
	"time"

	"github.com/fwnet/netcore"
	"github.com/fwnet/netcore/transport"
)

// Conn adapts a plaintext transport.StreamConn plus an Engine into a
// transport.StreamConn the HTTP layer can drive exactly like a raw TCP
// connection: Connect also runs the handshake, Transmit/Receive carry
// plaintext application data, and the TLS framing/record handling of
// spec §4.3 stays entirely inside this package. This is the "message
// pump" spec §2's diagram shows sitting between the HTTP client and the
// TCP transport.
type Conn struct {
	inner            transport.StreamConn
	engine           Engine
	handshakeTimeout time.Duration

	mu            sync.Mutex
	handshakeDone bool
	handshakeErr  error
	pending       []byte // plaintext left over from a fragment bigger than the caller's buffer
}

var _ transport.StreamConn = (*Conn)(nil)

// NewConn wraps inner with engine. handshakeTimeout bounds the
// handshake driven during Connect; zero waits forever.
func NewConn(inner transport.StreamConn, engine Engine, handshakeTimeout time.Duration) *Conn {
	return &Conn{inner: inner, engine: engine, handshakeTimeout: handshakeTimeout}
}

func (c *Conn) Configure(cfg transport.StreamConfig) error {
	return c.inner.Configure(cfg)
}

// Connect dials the underlying transport, then — once it reports
// connected — drives the TLS handshake to completion on its own
// goroutine. GetModeData does not report IsConnDone until both steps
// have finished, so callers that busy-poll Connect exactly as they
// would for plain TCP (spec §4.2 step 5) need no TLS-specific code.
func (c *Conn) Connect() error {
	if c.engine == nil {
		return netcore.NewError(netcore.KindUnsupported, "no TLS engine configured")
	}
	if err := c.inner.Connect(); err != nil {
		return err
	}
	go func() {
		waitInnerConnDone(c.inner, c.handshakeTimeout)
		var err error
		if st := c.inner.GetModeData(); st.IsConnected {
			if cerr := ConnectSession(c.inner, c.engine, c.handshakeTimeout); cerr != nil {
				err = cerr
			}
		} else {
			err = errTCPNeverConnected
		}
		c.mu.Lock()
		c.handshakeDone = true
		c.handshakeErr = err
		c.mu.Unlock()
	}()
	return nil
}

func (c *Conn) Transmit(buf []byte, doneCb func(error)) error {
	go func() {
		if err := TlsTransmit(c.inner, c.engine, buf); err != nil {
			doneCb(err)
			return
		}
		doneCb(nil)
	}()
	return nil
}

func (c *Conn) Receive(buf []byte, doneCb func(int, error)) error {
	c.mu.Lock()
	leftover := c.pending
	c.pending = nil
	c.mu.Unlock()
	if len(leftover) > 0 {
		n := copy(buf, leftover)
		if n < len(leftover) {
			c.mu.Lock()
			c.pending = leftover[n:]
			c.mu.Unlock()
		}
		doneCb(n, nil)
		return nil
	}

	go func() {
		plain, err := TlsReceive(c.inner, c.engine, 0)
		if err != nil {
			doneCb(0, err)
			return
		}
		n := copy(buf, plain)
		if n < len(plain) {
			c.mu.Lock()
			c.pending = plain[n:]
			c.mu.Unlock()
		}
		doneCb(n, nil)
	}()
	return nil
}

func (c *Conn) Close() error {
	CloseSession(c.inner, c.engine)
	return c.inner.Close()
}

func (c *Conn) Cancel() error {
	return c.inner.Cancel()
}

func (c *Conn) Poll() {
	c.inner.Poll()
}

// GetModeData folds the TCP transport's state with the handshake's: the
// connection is not IsConnDone until the handshake has finished (success
// or failure), and not IsConnected unless it finished successfully.
func (c *Conn) GetModeData() transport.StreamConnState {
	inner := c.inner.GetModeData()
	if !inner.IsConnDone {
		return transport.StreamConnState{}
	}
	c.mu.Lock()
	done, err := c.handshakeDone, c.handshakeErr
	c.mu.Unlock()
	if !done {
		return transport.StreamConnState{}
	}
	return transport.StreamConnState{
		IsConnDone:   true,
		IsConnected:  err == nil && inner.IsConnected,
		IsClosed:     inner.IsClosed,
		RemoteClosed: inner.RemoteClosed,
	}
}

func waitInnerConnDone(inner transport.StreamConn, timeout time.Duration) {
	deadline := deadlineFrom(timeout)
	for {
		inner.Poll()
		if inner.GetModeData().IsConnDone {
			return
		}
		if deadlineExpired(deadline) {
			return
		}
		time.Sleep(transport.PollInterval)
	}
}

var errTCPNeverConnected = &tcpNeverConnectedError{}

type tcpNeverConnectedError struct{}

func (*tcpNeverConnectedError) Error() string { return "tlspump: underlying TCP connection failed" }
