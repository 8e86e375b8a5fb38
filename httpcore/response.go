package httpcore

import (
	"strconv"
	"strings"

	"github.com/fwnet/netcore"
	"github.com/fwnet/netcore/transport"
)

// recvChunkSize is how much is read from the wire per Receive call while
// hunting for a status line/header block or draining a body.
const recvChunkSize = 2048

// blockingReceive issues one StreamConn.Receive and busy-polls the
// connection until it completes, turning the callback-based transport
// into the synchronous call receiveResponse wants to drive from its own
// goroutine.
func blockingReceive(conn transport.StreamConn, size int) ([]byte, error) {
	buf := make([]byte, size)
	done := make(chan struct{})
	var n int
	var rerr error
	if err := conn.Receive(buf, func(got int, err error) {
		n, rerr = got, err
		close(done)
	}); err != nil {
		return nil, err
	}
	transport.PollUntil(conn, done, 0)
	if rerr != nil {
		return nil, rerr
	}
	return buf[:n], nil
}

// parseStatusAndHeaders splits the header block (everything before the
// blank line) into the status line and the remaining header lines, and
// parses both.
func parseStatusAndHeaders(hb transport.HeaderBuilder, head []byte) (*ResponseInfo, *netcore.CoreError) {
	idx := indexOf(head, []byte("\r\n"))
	if idx < 0 {
		return nil, netcore.NewError(netcore.KindProtocolError, "missing status line")
	}
	statusLine := string(head[:idx])
	rest := head[idx+2:]

	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return nil, netcore.NewError(netcore.KindProtocolError, "malformed status line")
	}
	version := parts[0]
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, netcore.NewError(netcore.KindProtocolError, "malformed status code")
	}
	reason := ""
	if len(parts) == 3 {
		reason = parts[2]
	}

	var headers []HeaderField
	if len(rest) > 0 {
		pairs, perr := hb.Parse(rest)
		if perr != nil {
			return nil, netcore.WrapError(netcore.KindProtocolError, perr, "parse response headers")
		}
		headers = make([]HeaderField, len(pairs))
		for i, p := range pairs {
			headers[i] = HeaderField{Name: p.Name, Value: p.Value}
		}
	}

	return &ResponseInfo{
		HTTPVersion: version,
		StatusCode:  code,
		Status:      statusFromCode(code),
		Reason:      reason,
		Headers:     headers,
	}, nil
}

// receiveResponse drives one Response() call to completion: locate the
// status line and header block if this is a fresh message (consuming
// any bytes already queued in *spillover from a previous read on this
// connection), parse them, create or resume the token's body parser,
// and deliver as much body as fits in tok.Message.Body. Bytes belonging
// to the next response, or to this one's body beyond what the caller's
// buffer can hold, are left in *spillover for the next call.
func receiveResponse(conn transport.StreamConn, hb transport.HeaderBuilder, spillover *[]byte, tok *Token) *netcore.CoreError {
	if tok.parser == nil {
		buf := *spillover
		*spillover = nil
		for {
			if idx := indexCRLFCRLF(buf); idx >= 0 {
				info, err := parseStatusAndHeaders(hb, buf[:idx])
				if err != nil {
					return err
				}
				tok.Message.Response = info
				tok.parser = newBodyParser(tok.Message.Method, info.StatusCode, info.Headers)
				buf = buf[idx+4:]
				break
			}
			chunk, rerr := blockingReceive(conn, recvChunkSize)
			if rerr != nil {
				return netcore.WrapError(netcore.KindDeviceError, rerr, "receive response headers")
			}
			if len(chunk) == 0 {
				return netcore.NewError(netcore.KindDeviceError, "connection closed before headers complete")
			}
			buf = append(buf, chunk...)
		}
		*spillover = buf
	}

	dst := tok.Message.Body
	n := 0
	deliver := func(data []byte) []byte {
		room := len(dst) - n
		if room <= 0 {
			return data
		}
		if len(data) > room {
			n += copy(dst[n:], data[:room])
			return data[room:]
		}
		n += copy(dst[n:], data)
		return nil
	}

	buf := *spillover
	*spillover = nil
	if len(buf) > 0 {
		body, overflow := tok.parser.feed(buf)
		leftover := deliver(body)
		*spillover = append(leftover, overflow...)
	}

	for n < len(dst) && !tok.parser.MessageComplete() {
		chunk, rerr := blockingReceive(conn, recvChunkSize)
		if rerr != nil || len(chunk) == 0 {
			tok.parser.closeNotify()
			break
		}
		body, overflow := tok.parser.feed(chunk)
		leftover := deliver(body)
		*spillover = append(*spillover, leftover...)
		*spillover = append(*spillover, overflow...)
	}

	tok.Message.BodyLength = n
	if tok.parser.MessageComplete() {
		tok.parser = nil
	}
	return nil
}
