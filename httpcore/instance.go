package httpcore

import (
	"net"
	"sync"
	"time"

	"github.com/fwnet/netcore"
	"github.com/fwnet/netcore/dns"
	"github.com/fwnet/netcore/transport"
)

// State is an Instance's lifecycle state.
type State int

const (
	StateUnconfigured State = iota
	StateHttpConfigured
	StateTcpConfigured
	StateTcpConnected
	StateTcpClosed
)

// Resolver is the name-to-address lookup an Instance falls back to when
// a request's host is not a literal address. dns.Instance satisfies it.
type Resolver interface {
	HostNameToIp(hostname string, tok *dns.Token) *netcore.CoreError
	Poll()
}

// Instance is a configured HTTP client session: version/timeout/local
// address configuration, current remote host/port/resolved address, a
// TCP connection, persistent-connection spillover bytes, and TX/RX
// token queues. Only one request is in flight on the underlying
// connection at a time; further Request calls enqueue.
type Instance struct {
	id  string
	svc *Service

	hb       transport.HeaderBuilder
	resolver Resolver
	newConn  func() transport.StreamConn
	tlsDial  func(inner transport.StreamConn, host string) transport.StreamConn

	mu    sync.Mutex
	state State
	cfg   Config

	remoteHost string
	remotePort uint16
	useTLS     bool

	conn      transport.StreamConn
	spillover []byte

	txQueue  []*Token
	txActive bool
	rxQueue  []*Token
	rxActive bool

	metrics *netcore.InstanceMetrics
}

// Configure (re)configures the instance, or (with a nil cfg) tears it
// down: cancel all pending tokens, close the connection, release
// spillover, and return to Unconfigured.
func (inst *Instance) Configure(cfg *Config) *netcore.CoreError {
	if cfg == nil {
		return inst.reset()
	}
	if inst.state != StateUnconfigured {
		return netcore.NewError(netcore.KindAlreadyStarted, "instance already configured")
	}
	inst.cfg = *cfg
	inst.state = StateHttpConfigured
	return nil
}

func (inst *Instance) reset() *netcore.CoreError {
	inst.Cancel(nil)
	inst.mu.Lock()
	conn := inst.conn
	inst.conn = nil
	inst.spillover = nil
	inst.remoteHost = ""
	inst.remotePort = 0
	inst.cfg = Config{}
	inst.state = StateUnconfigured
	inst.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	return nil
}

// Request validates and enqueues an outbound request. The host is
// resolved (literal address parsed directly, otherwise handed to the
// resolver) and a TCP connection established or reused before the
// request bytes are queued for transmission. Returns once the request
// is queued; tok.Event signals when transmission completes.
func (inst *Instance) Request(tok *Token) *netcore.CoreError {
	if inst.state == StateUnconfigured {
		return netcore.NewError(netcore.KindNotStarted, "instance not configured")
	}
	if tok == nil || tok.Message.URL == "" {
		return netcore.NewError(netcore.KindInvalidParameter, "token and URL are required")
	}
	if tok.Message.Method != MethodGet && tok.Message.Method != MethodHead {
		return netcore.NewError(netcore.KindInvalidParameter, "unsupported method")
	}

	inst.mu.Lock()
	for _, q := range inst.txQueue {
		if q == tok {
			inst.mu.Unlock()
			return netcore.NewError(netcore.KindAccessDenied, "token already pending")
		}
	}
	inst.mu.Unlock()

	pu, perr := parseRequestURL(tok.Message.URL)
	if perr != nil {
		return perr
	}

	if err := inst.ensureConnected(pu); err != nil {
		return err
	}

	reqBytes, berr := buildRequest(inst.hb, tok.Message.Method, pu.Path, tok.Message.Headers, tok.Message.Body)
	if berr != nil {
		return berr
	}

	tok.beginOp()
	tok.txBuf = reqBytes
	inst.metrics.Requests.Add(1)

	inst.mu.Lock()
	inst.txQueue = append(inst.txQueue, tok)
	inst.mu.Unlock()
	inst.pumpTx()
	return nil
}

// ensureConnected reuses the current connection if it is already open
// to pu's host/port, otherwise closes it (if any), resolves the new
// host, and dials.
func (inst *Instance) ensureConnected(pu parsedURL) *netcore.CoreError {
	inst.mu.Lock()
	reuse := inst.conn != nil && inst.state == StateTcpConnected &&
		inst.remoteHost == pu.Host && inst.remotePort == pu.Port
	old := inst.conn
	inst.mu.Unlock()
	if reuse {
		return nil
	}
	if old != nil {
		inst.Cancel(nil)
		old.Close()
	}

	addr, rerr := inst.resolveHost(pu.Host)
	if rerr != nil {
		return rerr
	}

	cfg := transport.DefaultStreamConfig()
	cfg.UseDefaultAddr = inst.cfg.UseDefaultAddr
	cfg.StationAddress = inst.cfg.StationAddress
	cfg.StationMask = inst.cfg.StationMask
	cfg.RemoteHost = addr.String()
	cfg.RemotePort = pu.Port
	if inst.cfg.Timeout > 0 {
		cfg.ConnectTimeout = inst.cfg.Timeout
	}

	var conn transport.StreamConn = inst.newConn()
	if pu.UseTLS {
		if inst.tlsDial == nil {
			return netcore.NewError(netcore.KindUnsupported, "HTTPS requested but no TLS engine is configured")
		}
		conn = inst.tlsDial(conn, pu.Host)
	}
	if err := conn.Configure(cfg); err != nil {
		return netcore.WrapError(netcore.KindDeviceError, err, "configure TCP connection")
	}
	inst.mu.Lock()
	inst.state = StateTcpConfigured
	inst.mu.Unlock()

	if err := conn.Connect(); err != nil {
		return netcore.WrapError(netcore.KindDeviceError, err, "connect")
	}
	if !waitConnDone(conn, cfg.ConnectTimeout) {
		return netcore.NewError(netcore.KindTimeout, "connect timed out")
	}
	st := conn.GetModeData()
	if !st.IsConnected {
		return netcore.NewError(netcore.KindDeviceError, "connect failed")
	}

	inst.mu.Lock()
	inst.conn = conn
	inst.remoteHost = pu.Host
	inst.remotePort = pu.Port
	inst.useTLS = pu.UseTLS
	inst.spillover = nil
	inst.state = StateTcpConnected
	inst.mu.Unlock()
	return nil
}

// waitConnDone busy-polls conn until its connect attempt finishes or
// timeout elapses (zero timeout waits forever).
func waitConnDone(conn transport.StreamConn, timeout time.Duration) bool {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	for {
		conn.Poll()
		if conn.GetModeData().IsConnDone {
			return true
		}
		select {
		case <-deadline:
			return false
		default:
		}
		time.Sleep(transport.PollInterval)
	}
}

// resolveHost parses host as a literal address first; failing that, it
// calls the resolver and busy-polls it to completion.
func (inst *Instance) resolveHost(host string) (net.IP, *netcore.CoreError) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	if inst.resolver == nil {
		return nil, netcore.NewError(netcore.KindNoMapping, "no resolver configured")
	}
	dtok := dns.NewToken(host)
	if err := inst.resolver.HostNameToIp(host, dtok); err != nil {
		return nil, err
	}
	if !waitDNSDone(inst.resolver, dtok, inst.cfg.Timeout) {
		return nil, netcore.NewError(netcore.KindTimeout, "DNS resolution timed out")
	}
	if dtok.Status != netcore.KindOk {
		return nil, netcore.NewError(netcore.KindNoMapping, "DNS resolution failed")
	}
	if len(dtok.Response.IPs) == 0 {
		return nil, netcore.NewError(netcore.KindNoMapping, "no address records returned")
	}
	return dtok.Response.IPs[0], nil
}

func waitDNSDone(r Resolver, tok *dns.Token, timeout time.Duration) bool {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	for {
		select {
		case <-tok.Event:
			return true
		case <-deadline:
			return false
		default:
		}
		r.Poll()
		time.Sleep(transport.PollInterval)
	}
}

// pumpTx transmits the head of the TX queue, if nothing else is already
// in flight. The transmit callback advances to the next queued token
// once this one completes.
func (inst *Instance) pumpTx() {
	inst.mu.Lock()
	if inst.txActive || len(inst.txQueue) == 0 {
		inst.mu.Unlock()
		return
	}
	inst.txActive = true
	tok := inst.txQueue[0]
	conn := inst.conn
	inst.mu.Unlock()

	err := conn.Transmit(tok.txBuf, func(txErr error) {
		inst.mu.Lock()
		if len(inst.txQueue) > 0 && inst.txQueue[0] == tok {
			inst.txQueue = inst.txQueue[1:]
		}
		inst.txActive = false
		inst.mu.Unlock()

		if txErr != nil {
			inst.metrics.RecordOutcome(netcore.KindDeviceError)
			tok.signal(netcore.KindDeviceError)
		} else {
			inst.metrics.RecordOutcome(netcore.KindOk)
			tok.signal(netcore.KindOk)
		}
		inst.pumpTx()
	})
	if err != nil {
		inst.mu.Lock()
		if len(inst.txQueue) > 0 && inst.txQueue[0] == tok {
			inst.txQueue = inst.txQueue[1:]
		}
		inst.txActive = false
		inst.mu.Unlock()
		inst.metrics.RecordOutcome(netcore.KindDeviceError)
		tok.signal(netcore.KindDeviceError)
		inst.pumpTx()
	}
}

// Response enqueues tok to receive the next response on this
// connection, in the order Response was called (spec's "responses
// delivered to RX tokens in the exact order the tokens were enqueued").
func (inst *Instance) Response(tok *Token) *netcore.CoreError {
	inst.mu.Lock()
	state := inst.state
	conn := inst.conn
	for _, q := range inst.rxQueue {
		if q == tok {
			inst.mu.Unlock()
			return netcore.NewError(netcore.KindAccessDenied, "token already pending")
		}
	}
	inst.mu.Unlock()

	if state != StateTcpConnected && state != StateTcpClosed {
		return netcore.NewError(netcore.KindNotStarted, "instance not connected")
	}
	if tok == nil || conn == nil {
		return netcore.NewError(netcore.KindInvalidParameter, "token is required")
	}

	tok.beginOp()
	inst.mu.Lock()
	inst.rxQueue = append(inst.rxQueue, tok)
	inst.mu.Unlock()
	inst.pumpRx()
	return nil
}

// pumpRx drains one response at the head of the RX queue on its own
// goroutine (receiveResponse blocks on the wire), advancing to the next
// queued token once it completes.
func (inst *Instance) pumpRx() {
	inst.mu.Lock()
	if inst.rxActive || len(inst.rxQueue) == 0 {
		inst.mu.Unlock()
		return
	}
	inst.rxActive = true
	tok := inst.rxQueue[0]
	conn := inst.conn
	inst.mu.Unlock()

	go func() {
		cerr := receiveResponse(conn, inst.hb, &inst.spillover, tok)

		inst.mu.Lock()
		if len(inst.rxQueue) > 0 && inst.rxQueue[0] == tok {
			inst.rxQueue = inst.rxQueue[1:]
		}
		inst.rxActive = false
		inst.mu.Unlock()

		if cerr != nil {
			inst.metrics.RecordOutcome(cerr.Kind)
			tok.signal(cerr.Kind)
		} else {
			inst.metrics.RecordOutcome(netcore.KindOk)
			tok.signal(netcore.KindOk)
		}
		inst.pumpRx()
	}()
}

// Cancel removes tok (or, if tok is nil, every pending token) from the
// TX/RX queues and signals it Aborted. If the queues become empty, the
// underlying connection's own pending operation is cancelled too.
func (inst *Instance) Cancel(tok *Token) *netcore.CoreError {
	inst.mu.Lock()
	conn := inst.conn

	if tok == nil {
		pending := append(append([]*Token{}, inst.txQueue...), inst.rxQueue...)
		inst.txQueue = nil
		inst.rxQueue = nil
		inst.txActive = false
		inst.rxActive = false
		inst.mu.Unlock()
		for _, t := range pending {
			inst.metrics.RecordOutcome(netcore.KindAborted)
			t.signal(netcore.KindAborted)
		}
		if conn != nil {
			conn.Cancel()
		}
		return nil
	}

	found := removeToken(&inst.txQueue, tok) || removeToken(&inst.rxQueue, tok)
	empty := len(inst.txQueue) == 0 && len(inst.rxQueue) == 0
	inst.mu.Unlock()

	if !found {
		if tok.Done() {
			return netcore.NewError(netcore.KindNotFound, "token already completed")
		}
		return netcore.NewError(netcore.KindNotFound, "token not pending on this instance")
	}
	inst.metrics.RecordOutcome(netcore.KindAborted)
	tok.signal(netcore.KindAborted)
	if empty && conn != nil {
		conn.Cancel()
	}
	return nil
}

func removeToken(queue *[]*Token, tok *Token) bool {
	for i, t := range *queue {
		if t == tok {
			*queue = append((*queue)[:i], (*queue)[i+1:]...)
			return true
		}
	}
	return false
}

// Poll drives the underlying TCP connection once.
func (inst *Instance) Poll() {
	inst.mu.Lock()
	conn := inst.conn
	inst.mu.Unlock()
	if conn != nil {
		conn.Poll()
	}
}

// ModeData is the snapshot GetModeData returns.
type ModeData struct {
	Config     Config
	RemoteHost string
	RemotePort uint16
	State      State
}

// GetModeData returns a snapshot of the instance's current configuration
// and connection target.
func (inst *Instance) GetModeData() ModeData {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return ModeData{
		Config:     inst.cfg,
		RemoteHost: inst.remoteHost,
		RemotePort: inst.remotePort,
		State:      inst.state,
	}
}
