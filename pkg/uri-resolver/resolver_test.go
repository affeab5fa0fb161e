package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		uri  string
		want Target
	}{
		{"http://example.com/a/b", Target{"example.com", 80, "/a/b"}},
		{"http://example.com:8080", Target{"example.com", 8080, "/"}},
		{"example.com/x:9/y", Target{"example.com", 80, "/x:9/y"}},
		{"http://example.com", Target{"example.com", 80, "/"}},
		{"http://example.com/", Target{"example.com", 80, "/"}},
		{"http://localhost:15213/home.html", Target{"localhost", 15213, "/home.html"}},
		{"http://example.com/q?a=b:c", Target{"example.com", 80, "/q?a=b:c"}},
		{"http://example.com:81/p:1", Target{"example.com", 81, "/p:1"}},
		{"//example.com/x", Target{"example.com", 80, "/x"}},
		{"example.com", Target{"example.com", 80, "/"}},
		{"example.com/a//b", Target{"example.com", 80, "/a//b"}},
		{"http://example.com/a//b", Target{"example.com", 80, "/a//b"}},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := Resolve(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveInvalid(t *testing.T) {
	for _, uri := range []string{
		"",
		"http://",
		"http:///path",
		"http://:80/",
		"http://example.com:abc/",
		"http://example.com:/",
		"http://example.com:70000/",
	} {
		_, err := Resolve(uri)
		assert.ErrorIs(t, err, ErrInvalidTarget, "uri %q", uri)
	}
}

func TestTargetAddr(t *testing.T) {
	assert.Equal(t, "example.com:8080", Target{Host: "example.com", Port: 8080}.Addr())
}
