package tlspump

import (
	"time"

	"github.com/fwnet/netcore"
	"github.com/fwnet/netcore/transport"
)

// ConnectSession drives engine from NotStarted to DataTransferring over
// conn, spec §4.3 "Connection establishment" ("TlsConnectSession" in
// §5/§8.4). conn must already be TCP-connected. timeout bounds the whole
// handshake; zero means wait forever.
func ConnectSession(conn transport.StreamConn, engine Engine, timeout time.Duration) *netcore.CoreError {
	deadline := deadlineFrom(timeout)

	if err := engine.SetSessionData(DataSessionState, SessionNotStarted); err != nil {
		return netcore.WrapError(netcore.KindDeviceError, err, "reset TLS session state")
	}

	out, err := engine.BuildResponsePacket(nil)
	if err != nil {
		return netcore.WrapError(netcore.KindProtocolError, err, "build ClientHello")
	}
	if len(out) > 0 {
		if err := transmitSync(conn, out); err != nil {
			return netcore.WrapError(netcore.KindDeviceError, err, "transmit ClientHello")
		}
	}

	for {
		state, serr := sessionState(engine)
		if serr != nil {
			return serr
		}
		if state == SessionDataTransferring {
			return nil
		}
		if state == SessionError {
			return netcore.NewError(netcore.KindAborted, "TLS handshake failed")
		}
		if deadlineExpired(deadline) {
			return netcore.NewError(netcore.KindTimeout, "TLS handshake timed out")
		}

		rec, rerr := readRecord(conn, remaining(deadline))
		if rerr != nil {
			return rerr
		}

		out, err := engine.BuildResponsePacket(rec.encode())
		if err != nil {
			return netcore.WrapError(netcore.KindProtocolError, err, "TLS handshake")
		}
		if len(out) > 0 {
			if err := transmitSync(conn, out); err != nil {
				return netcore.WrapError(netcore.KindDeviceError, err, "transmit handshake record")
			}
		}
	}
}

// TlsTransmit encrypts plaintext through engine and sends the resulting
// ciphertext fragment(s) as a single TCP transmission, spec §4.3
// "Application I/O / Transmit plaintext".
func TlsTransmit(conn transport.StreamConn, engine Engine, plaintext []byte) *netcore.CoreError {
	cipher, err := engine.ProcessPacket(plaintext, ProcessEncrypt)
	if err != nil {
		return netcore.WrapError(netcore.KindProtocolError, err, "TLS encrypt")
	}
	if err := transmitSync(conn, cipher); err != nil {
		return netcore.WrapError(netcore.KindDeviceError, err, "TLS transmit")
	}
	return nil
}

// TlsReceive receives and surfaces one application-data fragment, spec
// §4.3 "Receive one application fragment". Alert records are consumed
// internally: a non-fatal alert is looped past (the caller never sees
// it), a fatal one or a decrypt failure propagates Aborted. Any other
// content type arriving outside a handshake is ProtocolError.
func TlsReceive(conn transport.StreamConn, engine Engine, timeout time.Duration) ([]byte, *netcore.CoreError) {
	deadline := deadlineFrom(timeout)
	for {
		if deadlineExpired(deadline) {
			return nil, netcore.NewError(netcore.KindTimeout, "TLS receive timed out")
		}
		rec, rerr := readRecord(conn, remaining(deadline))
		if rerr != nil {
			return nil, rerr
		}

		switch rec.ContentType {
		case ContentApplicationData:
			plain, perr := engine.ProcessPacket(rec.encode(), ProcessDecrypt)
			if perr != nil {
				if out, aerr := engine.BuildResponsePacket(nil); aerr == nil && len(out) > 0 {
					transmitSync(conn, out)
				}
				return nil, netcore.WrapError(netcore.KindAborted, perr, "TLS decrypt")
			}
			if len(plain) >= recordHeaderLen {
				plain = plain[recordHeaderLen:]
			}
			return plain, nil

		case ContentAlert:
			out, aerr := engine.BuildResponsePacket(rec.encode())
			if aerr != nil {
				return nil, netcore.WrapError(netcore.KindProtocolError, aerr, "TLS alert")
			}
			if len(out) > 0 {
				if terr := transmitSync(conn, out); terr != nil {
					return nil, netcore.WrapError(netcore.KindDeviceError, terr, "transmit alert response")
				}
			}
			state, serr := sessionState(engine)
			if serr != nil {
				return nil, serr
			}
			if state == SessionError {
				return nil, netcore.NewError(netcore.KindAborted, "TLS session aborted by alert")
			}
			// Non-fatal alert: loop and receive the next record instead
			// of surfacing an empty fragment, since this function's
			// caller only wants application bytes.
			continue

		default:
			return nil, netcore.NewError(netcore.KindProtocolError, "unexpected TLS record outside handshake")
		}
	}
}

// CloseSession asks engine to build a close_notify, transmits it, and
// does not wait for a peer acknowledgment, spec §4.3 "Close".
func CloseSession(conn transport.StreamConn, engine Engine) *netcore.CoreError {
	if err := engine.SetSessionData(DataSessionState, SessionClosing); err != nil {
		return netcore.WrapError(netcore.KindDeviceError, err, "set TLS session closing")
	}
	out, err := engine.BuildResponsePacket(nil)
	if err != nil {
		return netcore.WrapError(netcore.KindProtocolError, err, "build close notification")
	}
	if len(out) > 0 {
		if err := transmitSync(conn, out); err != nil {
			return netcore.WrapError(netcore.KindDeviceError, err, "transmit close notification")
		}
	}
	return nil
}

func sessionState(engine Engine) (SessionState, *netcore.CoreError) {
	v, err := engine.GetSessionData(DataSessionState)
	if err != nil {
		return 0, netcore.WrapError(netcore.KindDeviceError, err, "read TLS session state")
	}
	s, ok := v.(SessionState)
	if !ok {
		return 0, netcore.NewError(netcore.KindDeviceError, "TLS engine returned malformed session state")
	}
	return s, nil
}

// readRecord performs the strict two-step reception spec §4.3 "Record
// framing" requires: 5 header bytes, then exactly `length` more if
// length is non-zero, so the header/body boundary is always preserved
// as two distinct buffer segments before they're rejoined into a Record.
func readRecord(conn transport.StreamConn, timeout time.Duration) (*Record, *netcore.CoreError) {
	hdr, rerr := recvExactly(conn, recordHeaderLen, timeout)
	if rerr != nil {
		return nil, rerr
	}
	ct, major, minor, length, derr := decodeHeader(hdr)
	if derr != nil {
		return nil, derr
	}
	var payload []byte
	if length > 0 {
		payload, rerr = recvExactly(conn, int(length), timeout)
		if rerr != nil {
			return nil, rerr
		}
	}
	return &Record{ContentType: ct, Major: major, Minor: minor, Payload: payload}, nil
}

// recvExactly busy-polls conn until n bytes have been received, spec
// §5's "suspension is implemented as a busy poll of the transport's Poll
// method, optionally guarded by a timeout event".
func recvExactly(conn transport.StreamConn, n int, timeout time.Duration) ([]byte, *netcore.CoreError) {
	buf := make([]byte, n)
	got := 0
	deadline := deadlineFrom(timeout)
	for got < n {
		type result struct {
			n   int
			err error
		}
		done := make(chan result, 1)
		if err := conn.Receive(buf[got:], func(rn int, rerr error) { done <- result{rn, rerr} }); err != nil {
			return nil, netcore.WrapError(netcore.KindDeviceError, err, "TLS record receive")
		}
		res, ok := waitOne(conn, done, deadline)
		if !ok {
			return nil, netcore.NewError(netcore.KindTimeout, "TLS record receive timed out")
		}
		if res.err != nil {
			return nil, netcore.WrapError(netcore.KindDeviceError, res.err, "TLS record receive")
		}
		if res.n == 0 {
			return nil, netcore.NewError(netcore.KindDeviceError, "connection closed during TLS record receive")
		}
		got += res.n
	}
	return buf, nil
}

// transmitSync blocks (via busy poll) until a single Transmit call
// completes.
func transmitSync(conn transport.StreamConn, buf []byte) error {
	done := make(chan error, 1)
	if err := conn.Transmit(buf, func(e error) { done <- e }); err != nil {
		return err
	}
	res, ok := waitOne(conn, done, deadlineFrom(0))
	if !ok {
		return netcore.NewError(netcore.KindTimeout, "TLS transmit timed out")
	}
	return res
}

// waitOne busy-polls conn, delivering ch's single value once available
// or reporting timeout via the bool return.
func waitOne[T any](conn transport.StreamConn, ch <-chan T, deadline time.Time) (T, bool) {
	for {
		conn.Poll()
		select {
		case v := <-ch:
			return v, true
		default:
		}
		if deadlineExpired(deadline) {
			var zero T
			return zero, false
		}
		time.Sleep(transport.PollInterval)
	}
}

func deadlineFrom(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

func deadlineExpired(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}

func remaining(deadline time.Time) time.Duration {
	if deadline.IsZero() {
		return 0
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	return d
}
