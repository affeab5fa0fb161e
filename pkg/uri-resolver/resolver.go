package resolver

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

const DefaultPort = 80

var ErrInvalidTarget = errors.New("invalid request target")

// Target is the origin a request is forwarded to.
type Target struct {
	Host string
	Port int
	Path string
}

// Addr returns the dialable host:port of the target.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Resolve splits an absolute-form URI into host, port and path.
//
// A leading scheme and "//" are dropped, so the scheme is optional. The "//"
// only counts when it is the first '/' in the URI; a "//" inside the path of a
// scheme-less target is left alone. The host ends at the first ':' or '/'. A ':' only separates the
// port when it comes before the first '/'; a later ':' belongs to the path.
// The port defaults to 80 and the path to "/".
func Resolve(uri string) (Target, error) {
	rest := uri
	if i := strings.Index(uri, "//"); i >= 0 && i == strings.IndexByte(uri, '/') {
		rest = uri[i+2:]
	}

	target := Target{Port: DefaultPort, Path: "/"}

	authority := rest
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		authority = rest[:slash]
		target.Path = rest[slash:]
	}

	host, port, hasPort := strings.Cut(authority, ":")
	if host == "" {
		return Target{}, fmt.Errorf("%w: no host in %q", ErrInvalidTarget, uri)
	}
	target.Host = host

	if hasPort {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return Target{}, fmt.Errorf("%w: bad port %q in %q", ErrInvalidTarget, port, uri)
		}
		target.Port = p
	}
	return target, nil
}
