package transport

import (
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// HeaderPair is one "Name: Value" header line.
type HeaderPair struct {
	Name  string
	Value string
}

// HeaderBuilder is the generic HTTP header builder/parser utility spec §1
// lists as an external collaborator: "key/value list to/from raw header
// block". The HTTP state machine consumes only Build and Parse; this
// package provides the one concrete implementation the rest of this core
// is built and tested against.
type HeaderBuilder interface {
	Build(deleteList []string, appendList []HeaderPair) ([]byte, error)
	Parse(raw []byte) ([]HeaderPair, error)
}

// DefaultHeaderBuilder implements HeaderBuilder using the same header
// token validation net/http itself vendors (golang.org/x/net/http/httpguts),
// so malformed names/values are rejected the way a hosted HTTP stack
// would reject them.
type DefaultHeaderBuilder struct{}

var _ HeaderBuilder = DefaultHeaderBuilder{}

// Build renders appendList as CRLF-terminated "Name: Value" lines,
// skipping any name present in deleteList.
func (DefaultHeaderBuilder) Build(deleteList []string, appendList []HeaderPair) ([]byte, error) {
	deleted := make(map[string]bool, len(deleteList))
	for _, n := range deleteList {
		deleted[strings.ToLower(n)] = true
	}
	var b strings.Builder
	for _, h := range appendList {
		if deleted[strings.ToLower(h.Name)] {
			continue
		}
		if !httpguts.ValidHeaderFieldName(h.Name) {
			return nil, fmt.Errorf("invalid header name %q", h.Name)
		}
		if !httpguts.ValidHeaderFieldValue(h.Value) {
			return nil, fmt.Errorf("invalid header value for %q", h.Name)
		}
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	return []byte(b.String()), nil
}

// Parse splits a raw header block (no leading status line, no trailing
// blank line) into name/value pairs, one per CRLF- or LF-terminated line.
func (DefaultHeaderBuilder) Parse(raw []byte) ([]HeaderPair, error) {
	var pairs []HeaderPair
	for _, line := range strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n") {
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, fmt.Errorf("invalid header name %q", name)
		}
		pairs = append(pairs, HeaderPair{Name: name, Value: value})
	}
	return pairs, nil
}
