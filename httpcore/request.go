package httpcore

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/fwnet/netcore"
	"github.com/fwnet/netcore/transport"
)

// parsedURL is the host/port/path split spec §4.2 "Request path" step 3
// needs.
type parsedURL struct {
	Host   string
	Port   uint16
	Path   string
	UseTLS bool
}

// parseRequestURL parses a request URL into host, optional port (default
// 80 for HTTP, 443 for HTTPS), and absolute path, spec §4.2 step 3/6.
func parseRequestURL(raw string) (parsedURL, *netcore.CoreError) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return parsedURL{}, netcore.NewError(netcore.KindInvalidParameter, "malformed URL")
	}

	useTLS := u.Scheme == "https"
	port := uint16(DefaultPort)
	if useTLS {
		port = DefaultTLSPort
	}
	host := u.Hostname()
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return parsedURL{}, netcore.NewError(netcore.KindInvalidParameter, "invalid port in URL")
		}
		port = uint16(n)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return parsedURL{Host: host, Port: port, Path: path, UseTLS: useTLS}, nil
}

// buildRequest renders the request line, header block, and body, spec
// §4.2 "Request path" step 6: "METHOD SP absolute-path SP HTTP/1.1 CRLF"
// followed by the header block produced by the header utility, followed
// by the body bytes copied verbatim.
func buildRequest(hb transport.HeaderBuilder, method Method, path string, headers []HeaderField, body []byte) ([]byte, *netcore.CoreError) {
	requestLine := fmt.Sprintf("%s %s HTTP/1.1\r\n", method, path)

	pairs := make([]transport.HeaderPair, len(headers))
	for i, h := range headers {
		pairs[i] = transport.HeaderPair{Name: h.Name, Value: h.Value}
	}
	headerBlock, err := hb.Build(nil, pairs)
	if err != nil {
		return nil, netcore.WrapError(netcore.KindDeviceError, err, "build request headers")
	}

	var b strings.Builder
	b.WriteString(requestLine)
	b.Write(headerBlock)
	b.WriteString("\r\n")
	out := []byte(b.String())
	if len(body) > 0 {
		out = append(out, body...)
	}
	return out, nil
}
