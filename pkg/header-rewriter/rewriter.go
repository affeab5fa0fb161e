package rewriter

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	requestline "github.com/always-cache/caching-proxy/pkg/request-line"
)

// DefaultUserAgent replaces whatever User-Agent the client sent.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:10.0.3) Gecko/20120305 Firefox/10.0.3"

var (
	ErrIncompleteHeaders = errors.New("header block not terminated")
	ErrMalformedHeader   = errors.New("malformed header line")
)

// Header is a single client header line.
type Header struct {
	Name  string
	Value string
	// Raw is the line as received, terminator included.
	Raw string
}

// replaced by fixed values in every upstream request
var dropped = map[string]bool{
	"connection":       true,
	"proxy-connection": true,
	"user-agent":       true,
}

// ReadHeaders drains header lines from r up to and including the blank line.
func ReadHeaders(r *bufio.Reader) ([]Header, error) {
	headers := make([]Header, 0)
	for {
		line, err := requestline.ReadLine(r)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return headers, fmt.Errorf("%w: %v", ErrIncompleteHeaders, err)
		}
		if err != nil {
			return headers, err
		}
		if line == "\r\n" || line == "\n" {
			return headers, nil
		}
		name, value, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(name) == "" {
			return headers, fmt.Errorf("%w: %q", ErrMalformedHeader, strings.TrimRight(line, "\r\n"))
		}
		headers = append(headers, Header{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
			Raw:   line,
		})
	}
}

// Build assembles the request sent to the origin: request line, Host,
// the fixed Connection, Proxy-Connection and User-Agent headers, then the
// remaining client headers in arrival order and the terminating blank line.
//
// A client Host header is forwarded verbatim. Otherwise one is synthesized
// from host, with the port appended only when it is not 80.
func Build(method, path, host string, port int, headers []Header, userAgent string) []byte {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	var hostLine string
	passthrough := make([]string, 0, len(headers))
	for _, h := range headers {
		name := strings.ToLower(h.Name)
		switch {
		case name == "host":
			if hostLine == "" {
				hostLine = withCRLF(h.Raw)
			}
		case dropped[name]:
		default:
			passthrough = append(passthrough, withCRLF(h.Raw))
		}
	}
	if hostLine == "" {
		hostLine = "Host: " + host
		if port != 80 {
			hostLine += ":" + strconv.Itoa(port)
		}
		hostLine += "\r\n"
	}

	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "%s %s HTTP/1.0\r\n", method, path)
	buf.WriteString(hostLine)
	buf.WriteString("Connection: close\r\n")
	buf.WriteString("Proxy-Connection: close\r\n")
	buf.WriteString("User-Agent: " + userAgent + "\r\n")
	for _, line := range passthrough {
		buf.WriteString(line)
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// Rewrite reads the client headers from r and builds the upstream request.
func Rewrite(method, path, host string, port int, r *bufio.Reader, userAgent string) ([]byte, error) {
	headers, err := ReadHeaders(r)
	if err != nil {
		return nil, err
	}
	return Build(method, path, host, port, headers, userAgent), nil
}

// bare LF lines are forwarded with CRLF
func withCRLF(line string) string {
	return strings.TrimRight(line, "\r\n") + "\r\n"
}
