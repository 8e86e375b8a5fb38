package httpcore

import (
	"strconv"
	"strings"
)

// framing is the body-delimiting rule the parser selected, spec §4.2
// step 5: "Content-Length or chunked or connection-close".
type framing int

const (
	framingNone framing = iota // no body expected (e.g. HEAD, 204, 304)
	framingContentLength
	framingChunked
	framingConnectionClose
)

// bodyParser is the message-body parser spec §4.2 step 5 hands control
// to once status line and headers are parsed. It is the authority on
// whether a body follows, how it is delimited, and when it is complete,
// matching original_source/NetworkPkg/HttpDxe/HttpProto.c's body-parser
// callback state machine (no pack example implements HTTP/1.1 body
// framing directly; the DoH/DoT/DoQ clients in routedns all delegate
// this to net/http or a QUIC library).
type bodyParser struct {
	framing framing

	// Content-Length state.
	remaining int64

	// chunked state.
	inChunkData  bool
	chunkLeft    int64
	trailerBuf   []byte
	sawFinalZero bool

	complete bool
}

// newBodyParser selects framing per RFC 7230 §3.3.3 precedence (as
// HttpProto.c does): HEAD and certain status codes never have a body;
// Transfer-Encoding: chunked takes priority over Content-Length; absent
// either, presence of a body is delimited by connection close.
func newBodyParser(method Method, status int, headers []HeaderField) *bodyParser {
	p := &bodyParser{}

	if method == MethodHead || noBodyStatus(status) {
		p.framing = framingNone
		p.complete = true
		return p
	}

	if v, ok := headerValue(headers, "Transfer-Encoding"); ok && strings.Contains(strings.ToLower(v), "chunked") {
		p.framing = framingChunked
		return p
	}
	if v, ok := headerValue(headers, "Content-Length"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n < 0 {
			n = 0
		}
		p.framing = framingContentLength
		p.remaining = n
		if n == 0 {
			p.complete = true
		}
		return p
	}

	p.framing = framingConnectionClose
	return p
}

func noBodyStatus(code int) bool {
	return code == 204 || code == 304 || (code >= 100 && code < 200)
}

func headerValue(headers []HeaderField, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// feed advances the parser with newly received bytes, returning the
// prefix that belongs to the current message's body and any leftover
// bytes that are the start of the next message on the same connection
// (only possible once Content-Length/chunked framing completes mid-buffer,
// spec §4.2 step 5 "if the parser signals MessageComplete ... the
// overflow is copied into a fresh cache_body").
func (p *bodyParser) feed(data []byte) (body []byte, overflow []byte) {
	switch p.framing {
	case framingNone:
		return nil, data
	case framingContentLength:
		if int64(len(data)) <= p.remaining {
			p.remaining -= int64(len(data))
			if p.remaining == 0 {
				p.complete = true
			}
			return data, nil
		}
		p.complete = true
		return data[:p.remaining], data[p.remaining:]
	case framingChunked:
		return p.feedChunked(data)
	case framingConnectionClose:
		// Complete only on connection close, signaled separately by
		// the caller; all bytes belong to the body, no overflow ever.
		return data, nil
	}
	return nil, data
}

// feedChunked implements RFC 7230 §4.1 chunked transfer decoding well
// enough to find the body bytes and detect the terminating 0-length
// chunk; it does not surface trailers to the caller.
func (p *bodyParser) feedChunked(data []byte) (body, overflow []byte) {
	if len(p.trailerBuf) > 0 {
		data = append(p.trailerBuf, data...)
		p.trailerBuf = nil
	}
	for len(data) > 0 {
		if p.inChunkData {
			n := p.chunkLeft
			if int64(len(data)) < n {
				p.chunkLeft -= int64(len(data))
				body = append(body, data...)
				return body, nil
			}
			body = append(body, data[:n]...)
			data = data[n:]
			p.chunkLeft = 0
			p.inChunkData = false
			// Consume the trailing CRLF after chunk data.
			data = trimLeadingCRLF(data)
			continue
		}
		if p.sawFinalZero {
			// Scanning trailers / final CRLF. With no trailers the
			// terminator is a single CRLF right here; with trailers
			// present it is the blank line after the last one.
			if len(data) >= 2 && data[0] == '\r' && data[1] == '\n' {
				p.complete = true
				return body, data[2:]
			}
			if idx := indexCRLFCRLF(data); idx >= 0 {
				p.complete = true
				return body, data[idx+4:]
			}
			p.trailerBuf = data
			return body, nil
		}
		idx := indexOf(data, []byte("\r\n"))
		if idx < 0 {
			// Chunk-size line not fully received yet; wait for more.
			p.trailerBuf = data
			return body, nil
		}
		sizeLine := strings.TrimSpace(string(data[:idx]))
		if semi := strings.IndexByte(sizeLine, ';'); semi >= 0 {
			sizeLine = sizeLine[:semi]
		}
		size, err := strconv.ParseInt(sizeLine, 16, 64)
		if err != nil {
			p.complete = true
			return body, nil
		}
		data = data[idx+2:]
		if size == 0 {
			p.sawFinalZero = true
			continue
		}
		p.chunkLeft = size
		p.inChunkData = true
	}
	return body, nil
}

func trimLeadingCRLF(b []byte) []byte {
	if len(b) >= 2 && b[0] == '\r' && b[1] == '\n' {
		return b[2:]
	}
	return b
}

func indexOf(haystack, needle []byte) int {
	return strings.Index(string(haystack), string(needle))
}

func indexCRLFCRLF(b []byte) int {
	return indexOf(b, []byte("\r\n\r\n"))
}

// MessageComplete reports whether the parser considers the body fully
// delivered.
func (p *bodyParser) MessageComplete() bool { return p.complete }

// closeNotify is called when the underlying connection closes while
// framing is framingConnectionClose, which is this framing's completion
// signal.
func (p *bodyParser) closeNotify() {
	if p.framing == framingConnectionClose {
		p.complete = true
	}
}
