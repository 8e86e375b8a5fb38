package httpcore

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fwnet/netcore"
	"github.com/fwnet/netcore/transport"
)

// fakeStreamConn is an in-memory transport.StreamConn whose incoming
// bytes are supplied as a fixed sequence of chunks, one per Receive
// call, so tests can script header/body framing and connection reuse
// without a real socket.
type fakeStreamConn struct {
	mu        sync.Mutex
	connected bool
	txLog     [][]byte
	chunks    [][]byte
	idx       int
}

func newFakeStreamConn(chunks ...[]byte) *fakeStreamConn {
	return &fakeStreamConn{chunks: chunks}
}

func (f *fakeStreamConn) Configure(transport.StreamConfig) error { return nil }

func (f *fakeStreamConn) Connect() error {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeStreamConn) Transmit(buf []byte, doneCb func(error)) error {
	f.mu.Lock()
	f.txLog = append(f.txLog, append([]byte{}, buf...))
	f.mu.Unlock()
	doneCb(nil)
	return nil
}

func (f *fakeStreamConn) Receive(buf []byte, doneCb func(int, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.chunks) {
		doneCb(0, io.EOF)
		return nil
	}
	chunk := f.chunks[f.idx]
	f.idx++
	n := copy(buf, chunk)
	doneCb(n, nil)
	return nil
}

func (f *fakeStreamConn) Close() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeStreamConn) Cancel() error { return f.Close() }

func (f *fakeStreamConn) Poll() {}

func (f *fakeStreamConn) GetModeData() transport.StreamConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return transport.StreamConnState{IsConnDone: true, IsConnected: f.connected}
}

func waitHTTPToken(t *testing.T, tok *Token) {
	t.Helper()
	select {
	case <-tok.Event:
	case <-time.After(2 * time.Second):
		t.Fatal("token did not complete in time")
	}
}

// Scenario 3: simple GET, Content-Length: 5 body "hello".
func TestRequestResponse_SimpleGet(t *testing.T) {
	conn := newFakeStreamConn([]byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))
	svc := NewService(nil)
	inst := svc.NewInstance("test")
	inst.newConn = func() transport.StreamConn { return conn }
	require.Nil(t, inst.Configure(&Config{Timeout: 2 * time.Second}))

	tok := NewToken(MethodGet, "http://127.0.0.1/path")
	require.Nil(t, inst.Request(tok))
	waitHTTPToken(t, tok)
	require.Equal(t, netcore.KindOk, tok.Status)

	tok.Message.Body = make([]byte, 16)
	require.Nil(t, inst.Response(tok))
	waitHTTPToken(t, tok)
	require.Equal(t, netcore.KindOk, tok.Status)
	require.Equal(t, 5, tok.Message.BodyLength)
	require.Equal(t, "hello", string(tok.Message.Body[:tok.Message.BodyLength]))
	require.NotNil(t, tok.Message.Response)
	require.Equal(t, 200, tok.Message.Response.StatusCode)
	require.Equal(t, StatusOK, tok.Message.Response.Status)

	require.Len(t, conn.txLog, 1)
	require.Contains(t, string(conn.txLog[0]), "GET /path HTTP/1.1\r\n")
}

// Scenario 4: persistent connection, two sequential GETs on the same
// host/port reuse the connection — only one Connect call.
func TestRequestResponse_PersistentConnection(t *testing.T) {
	conn := newFakeStreamConn(
		[]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi"),
		[]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nyo"),
	)
	var connectCount int
	svc := NewService(nil)
	inst := svc.NewInstance("test")
	inst.newConn = func() transport.StreamConn {
		connectCount++
		return conn
	}
	require.Nil(t, inst.Configure(&Config{Timeout: 2 * time.Second}))

	for _, want := range []string{"hi", "yo"} {
		tok := NewToken(MethodGet, "http://127.0.0.1/path")
		require.Nil(t, inst.Request(tok))
		waitHTTPToken(t, tok)
		require.Equal(t, netcore.KindOk, tok.Status)

		tok.Message.Body = make([]byte, 8)
		require.Nil(t, inst.Response(tok))
		waitHTTPToken(t, tok)
		require.Equal(t, netcore.KindOk, tok.Status)
		require.Equal(t, want, string(tok.Message.Body[:tok.Message.BodyLength]))
	}

	require.Equal(t, 1, connectCount)
}

// Header block split across three TCP segments.
func TestResponse_HeaderSplitAcrossSegments(t *testing.T) {
	conn := newFakeStreamConn(
		[]byte("HTTP/1.1 200 OK\r\n"),
		[]byte("Content-Length: 2\r\n"),
		[]byte("\r\nhi"),
	)
	svc := NewService(nil)
	inst := svc.NewInstance("test")
	inst.newConn = func() transport.StreamConn { return conn }
	require.Nil(t, inst.Configure(&Config{Timeout: 2 * time.Second}))

	tok := NewToken(MethodGet, "http://127.0.0.1/path")
	require.Nil(t, inst.Request(tok))
	waitHTTPToken(t, tok)

	tok.Message.Body = make([]byte, 4)
	require.Nil(t, inst.Response(tok))
	waitHTTPToken(t, tok)
	require.Equal(t, netcore.KindOk, tok.Status)
	require.Equal(t, 2, tok.Message.BodyLength)
	require.Equal(t, "hi", string(tok.Message.Body[:2]))
}

// One TCP read contains the full first response followed by the start
// of a second response (pipelined); the second response must be
// recoverable from spillover with no further Receive on the wire.
func TestResponse_SpilloverCarriesNextMessage(t *testing.T) {
	first := "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi"
	second := "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nyo"
	conn := newFakeStreamConn([]byte(first + second))
	svc := NewService(nil)
	inst := svc.NewInstance("test")
	inst.newConn = func() transport.StreamConn { return conn }
	require.Nil(t, inst.Configure(&Config{Timeout: 2 * time.Second}))

	tok := NewToken(MethodGet, "http://127.0.0.1/path")
	require.Nil(t, inst.Request(tok))
	waitHTTPToken(t, tok)

	tok.Message.Body = make([]byte, 4)
	require.Nil(t, inst.Response(tok))
	waitHTTPToken(t, tok)
	require.Equal(t, "hi", string(tok.Message.Body[:tok.Message.BodyLength]))

	tok2 := NewToken(MethodGet, "http://127.0.0.1/path")
	require.Nil(t, inst.Request(tok2))
	waitHTTPToken(t, tok2)

	tok2.Message.Body = make([]byte, 4)
	require.Nil(t, inst.Response(tok2))
	waitHTTPToken(t, tok2)
	require.Equal(t, "yo", string(tok2.Message.Body[:tok2.Message.BodyLength]))

	// The second response came entirely from spillover: no additional
	// wire chunk was consumed beyond the first combined read.
	require.Equal(t, 1, conn.idx)
}

// Cancel-all empties both queues and signals every pending token Aborted.
func TestCancelAll(t *testing.T) {
	conn := newFakeStreamConn()
	svc := NewService(nil)
	inst := svc.NewInstance("test")
	inst.newConn = func() transport.StreamConn { return conn }
	require.Nil(t, inst.Configure(&Config{Timeout: 2 * time.Second}))

	inst.mu.Lock()
	inst.conn = conn
	inst.state = StateTcpConnected
	inst.remoteHost = "127.0.0.1"
	inst.remotePort = 80
	tok := NewToken(MethodGet, "http://127.0.0.1/path")
	tok.beginOp()
	inst.txQueue = append(inst.txQueue, tok)
	inst.mu.Unlock()

	require.Nil(t, inst.Cancel(nil))
	waitHTTPToken(t, tok)
	require.Equal(t, netcore.KindAborted, tok.Status)
}
