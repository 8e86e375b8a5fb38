// Package httpcore implements the HTTP request/response state machine:
// request builder, status-line/header/body parser, and per-instance
// TX/RX token maps with persistent-connection spillover (spec §3.1,
// §4.2).
package httpcore

import (
	"sync"

	"github.com/fwnet/netcore"
)

// Message is the caller-supplied request (on the way out) or response
// (on the way in) payload carried by a Token, spec §3.1 "HttpToken".
type Message struct {
	Method  Method
	URL     string
	Headers []HeaderField

	// Body is the opaque outbound body on a request (copied verbatim,
	// spec §4.2 step 6), or the destination buffer for an inbound
	// response body. BodyLength is updated to the number of bytes
	// actually copied into Body on each Response() delivery.
	Body       []byte
	BodyLength int

	// Response is populated on a response message only.
	Response *ResponseInfo
}

// HeaderField is one "Name: Value" header pair.
type HeaderField struct {
	Name  string
	Value string
}

// ResponseInfo carries the parsed status line and header block of a
// response (spec §4.2 "Response path" steps 3-4).
type ResponseInfo struct {
	HTTPVersion string
	StatusCode  int
	Status      Status
	Reason      string
	Headers     []HeaderField
}

// Token is the caller's asynchronous HTTP request/response handle, spec
// §3.1 "HttpToken wrap": it associates the caller's token with its
// transport-level TX/RX state, its method (needed to select body-framing
// rules), and transmit-done/receive-done flags.
type Token struct {
	Event chan struct{}

	Status netcore.Kind

	Message Message

	txDone bool
	rxDone bool

	// txBuf is the request buffer handed to TCP transmit (spec §4.2
	// step 7); pumpTx transmits from it.
	txBuf []byte

	// parser is this token's in-progress body parser state once its
	// response headers have been received (spec §4.2 step 5).
	parser *bodyParser

	signalOnce sync.Once
}

// NewToken returns a token configured to perform method on url.
func NewToken(method Method, url string) *Token {
	return &Token{
		Event:   make(chan struct{}),
		Message: Message{Method: method, URL: url},
	}
}

func (t *Token) signal(status netcore.Kind) {
	t.signalOnce.Do(func() {
		t.Status = status
		close(t.Event)
	})
}

// beginOp starts a fresh completion cycle on the token: a request and a
// response are each their own asynchronous operation on the same
// caller-owned token, so Request and Response each get their own event
// rather than racing to close one shared channel.
func (t *Token) beginOp() {
	t.Event = make(chan struct{})
	t.signalOnce = sync.Once{}
}

// Done reports whether the token has already been signaled.
func (t *Token) Done() bool {
	select {
	case <-t.Event:
		return true
	default:
		return false
	}
}
