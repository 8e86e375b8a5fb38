package tlspump

import (
	"encoding/binary"

	"github.com/fwnet/netcore"
)

// ContentType is the TLS record layer's content_type field.
type ContentType byte

const (
	ContentChangeCipherSpec ContentType = 20
	ContentAlert            ContentType = 21
	ContentHandshake        ContentType = 22
	ContentApplicationData  ContentType = 23
)

func (c ContentType) valid() bool {
	switch c {
	case ContentChangeCipherSpec, ContentAlert, ContentHandshake, ContentApplicationData:
		return true
	}
	return false
}

// Minor TLS protocol versions a record's version.minor may carry
// (version.major is always 3 for the SSL/TLS record layer).
const (
	MinorTLS10 = 1
	MinorTLS11 = 2
	MinorTLS12 = 3
)

func validMinor(m byte) bool {
	return m == MinorTLS10 || m == MinorTLS11 || m == MinorTLS12
}

// recordHeaderLen is the fixed 5-byte TLS record header size.
const recordHeaderLen = 5

// Record is one TLS PDU: a 5-byte header plus its payload.
type Record struct {
	ContentType ContentType
	Major       byte
	Minor       byte
	Payload     []byte
}

// encode renders the record as its wire bytes, header followed by
// payload, preserving the header/body boundary the framing section
// requires.
func (r Record) encode() []byte {
	out := make([]byte, recordHeaderLen+len(r.Payload))
	out[0] = byte(r.ContentType)
	out[1] = r.Major
	out[2] = r.Minor
	binary.BigEndian.PutUint16(out[3:5], uint16(len(r.Payload)))
	copy(out[recordHeaderLen:], r.Payload)
	return out
}

// decodeHeader validates and parses a 5-byte TLS record header,
// returning the content type, version, and payload length to receive
// next. Any deviation from the allowed content type or version raises
// ProtocolError.
func decodeHeader(hdr []byte) (ContentType, byte, byte, uint16, *netcore.CoreError) {
	if len(hdr) != recordHeaderLen {
		return 0, 0, 0, 0, netcore.NewError(netcore.KindProtocolError, "short TLS record header")
	}
	ct := ContentType(hdr[0])
	if !ct.valid() {
		return 0, 0, 0, 0, netcore.NewError(netcore.KindProtocolError, "invalid TLS content type")
	}
	major, minor := hdr[1], hdr[2]
	if major != 3 || !validMinor(minor) {
		return 0, 0, 0, 0, netcore.NewError(netcore.KindProtocolError, "unsupported TLS record version")
	}
	length := binary.BigEndian.Uint16(hdr[3:5])
	return ct, major, minor, length, nil
}
