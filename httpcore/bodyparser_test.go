package httpcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBodyParser_ContentLength(t *testing.T) {
	p := newBodyParser(MethodGet, 200, []HeaderField{{Name: "Content-Length", Value: "5"}})
	body, overflow := p.feed([]byte("helloNEXT"))
	require.True(t, p.MessageComplete())
	require.Equal(t, "hello", string(body))
	require.Equal(t, "NEXT", string(overflow))
}

func TestBodyParser_Chunked(t *testing.T) {
	p := newBodyParser(MethodGet, 200, []HeaderField{{Name: "Transfer-Encoding", Value: "chunked"}})
	body, overflow := p.feed([]byte("5\r\nhello\r\n0\r\n\r\n"))
	require.True(t, p.MessageComplete())
	require.Equal(t, "hello", string(body))
	require.Empty(t, overflow)
}

// A chunk-size line split across two reads must not drop bytes (the
// trailerBuf must be carried from one feed call to the next).
func TestBodyParser_ChunkedSizeLineSplitAcrossReads(t *testing.T) {
	p := newBodyParser(MethodGet, 200, []HeaderField{{Name: "Transfer-Encoding", Value: "chunked"}})

	body, overflow := p.feed([]byte("1"))
	require.Empty(t, body)
	require.Empty(t, overflow)
	require.False(t, p.MessageComplete())

	body, overflow = p.feed([]byte("a\r\n"))
	require.Empty(t, body)
	require.Empty(t, overflow)

	payload := make([]byte, 26)
	for i := range payload {
		payload[i] = 'x'
	}
	body, overflow = p.feed(append(append([]byte{}, payload...), []byte("\r\n0\r\n\r\n")...))
	require.True(t, p.MessageComplete())
	require.Equal(t, string(payload), string(body))
	require.Empty(t, overflow)
}

func TestBodyParser_ChunkedTrailerSplitAcrossReads(t *testing.T) {
	p := newBodyParser(MethodGet, 200, []HeaderField{{Name: "Transfer-Encoding", Value: "chunked"}})

	body, _ := p.feed([]byte("4\r\nabcd\r\n0\r\n"))
	require.Equal(t, "abcd", string(body))
	require.False(t, p.MessageComplete())

	body, overflow := p.feed([]byte("\r\nNEXT"))
	require.Empty(t, body)
	require.True(t, p.MessageComplete())
	require.Equal(t, "NEXT", string(overflow))
}
