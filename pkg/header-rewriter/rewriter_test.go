package rewriter

import (
	"bufio"
	"strings"
	"testing"

	requestline "github.com/always-cache/caching-proxy/pkg/request-line"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestRewriteReplacesUserAgent(t *testing.T) {
	out, err := Rewrite("GET", "/", "a.com", 80,
		reader("Host: a.com\r\nUser-Agent: x\r\nX-Foo: bar\r\n\r\n"), "")
	require.NoError(t, err)
	req := string(out)

	assert.Contains(t, req, "Host: a.com\r\n")
	assert.Contains(t, req, "User-Agent: "+DefaultUserAgent+"\r\n")
	assert.Contains(t, req, "X-Foo: bar\r\n")
	assert.NotContains(t, req, "User-Agent: x\r\n")
}

func TestRewriteLayout(t *testing.T) {
	out, err := Rewrite("GET", "/index.html", "a.com", 80,
		reader("Accept: */*\r\nConnection: keep-alive\r\nhost: a.com\r\nproxy-connection: keep-alive\r\nX-Foo: bar\r\n\r\n"),
		"test-agent")
	require.NoError(t, err)

	expected := "GET /index.html HTTP/1.0\r\n" +
		"host: a.com\r\n" +
		"Connection: close\r\n" +
		"Proxy-Connection: close\r\n" +
		"User-Agent: test-agent\r\n" +
		"Accept: */*\r\n" +
		"X-Foo: bar\r\n" +
		"\r\n"
	assert.Equal(t, expected, string(out))
}

func TestRewriteSynthesizesHost(t *testing.T) {
	out, err := Rewrite("GET", "/", "a.com", 80, reader("\r\n"), "ua")
	require.NoError(t, err)
	assert.Equal(t, "GET / HTTP/1.0\r\nHost: a.com\r\nConnection: close\r\nProxy-Connection: close\r\nUser-Agent: ua\r\n\r\n", string(out))

	out, err = Rewrite("GET", "/", "a.com", 8080, reader("\r\n"), "ua")
	require.NoError(t, err)
	assert.Contains(t, string(out), "Host: a.com:8080\r\n")
}

func TestRewriteKeepsMethod(t *testing.T) {
	out, err := Rewrite("HEAD", "/x", "a.com", 80, reader("\r\n"), "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "HEAD /x HTTP/1.0\r\n"))
}

func TestRewriteNormalizesBareLF(t *testing.T) {
	out, err := Rewrite("GET", "/", "a.com", 80, reader("X-Foo: bar\n\n"), "")
	require.NoError(t, err)
	assert.Contains(t, string(out), "X-Foo: bar\r\n")
}

func TestReadHeadersIncomplete(t *testing.T) {
	_, err := ReadHeaders(reader("Host: a.com\r\nX-Foo: bar\r\n"))
	assert.ErrorIs(t, err, ErrIncompleteHeaders)

	_, err = ReadHeaders(reader("Host: a.c"))
	assert.ErrorIs(t, err, ErrIncompleteHeaders)
}

func TestReadHeadersMalformed(t *testing.T) {
	_, err := ReadHeaders(reader("not a header\r\n\r\n"))
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestReadHeadersTooLong(t *testing.T) {
	r := bufio.NewReaderSize(strings.NewReader("X-Long: "+strings.Repeat("a", 100)+"\r\n\r\n"), 32)
	_, err := ReadHeaders(r)
	assert.ErrorIs(t, err, requestline.ErrLineTooLong)
}

func TestReadHeadersDrainsBlankLine(t *testing.T) {
	r := reader("A: 1\r\n\r\nbody")
	headers, err := ReadHeaders(r)
	require.NoError(t, err)
	require.Len(t, headers, 1)
	assert.Equal(t, Header{Name: "A", Value: "1", Raw: "A: 1\r\n"}, headers[0])

	rest, _ := r.ReadString(0)
	assert.Equal(t, "body", rest)
}
