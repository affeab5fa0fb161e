package cachingproxy

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/always-cache/caching-proxy/cache"
	rewriter "github.com/always-cache/caching-proxy/pkg/header-rewriter"
	requestline "github.com/always-cache/caching-proxy/pkg/request-line"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrProxyClosed = errors.New("proxy closed")

type Config struct {
	// Storage for cache entries.
	// An in-memory cache with the default limits is used if nil.
	Cache cache.CacheProvider
	// Longest request line or header line accepted from clients.
	// Origin response lines longer than this are relayed in pieces.
	MaxLine int
	// User-Agent sent to origins. Defaults to rewriter.DefaultUserAgent.
	UserAgent string
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
	// Timeout for connecting to origins. Zero means no timeout.
	DialTimeout time.Duration
	// Upper bound on concurrently handled connections.
	// Zero means unbounded: every accepted connection gets its own goroutine
	// right away.
	MaxConnections int
}

// Proxy is a forwarding HTTP/1.0 proxy with a shared response cache.
type Proxy struct {
	cache         cache.CacheProvider
	maxLine       int
	maxObjectSize int
	userAgent     string
	log           zerolog.Logger
	dialer        net.Dialer
	sem           chan struct{}
	stats         *stats

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	closed    bool
}

// CreateProxy initializes the proxy instance.
func CreateProxy(config Config) *Proxy {
	// use global logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = log.Logger
	} else {
		logger = *config.Logger
	}
	logger = logger.With().Str("component", "proxy").Logger()

	c := config.Cache
	if c == nil {
		c = cache.NewMemCache(cache.DefaultLimits())
	}

	p := &Proxy{
		cache:         c,
		maxLine:       config.MaxLine,
		maxObjectSize: c.Limits().MaxObjectSize,
		userAgent:     config.UserAgent,
		log:           logger,
		dialer:        net.Dialer{Timeout: config.DialTimeout},
		stats:         &stats{},
		listeners:     make(map[net.Listener]struct{}),
	}
	if p.maxLine <= 0 {
		p.maxLine = requestline.DefaultMaxLine
	}
	if p.userAgent == "" {
		p.userAgent = rewriter.DefaultUserAgent
	}
	if config.MaxConnections > 0 {
		p.sem = make(chan struct{}, config.MaxConnections)
	}
	return p
}

// ListenAndServe listens on the TCP address addr and serves connections.
func (p *Proxy) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return p.Serve(ln)
}

// Serve accepts connections on ln and hands each to its own worker.
// It does not wait for workers to finish. Serve always returns a non-nil
// error; after Close it is ErrProxyClosed.
func (p *Proxy) Serve(ln net.Listener) error {
	if !p.trackListener(ln) {
		ln.Close()
		return ErrProxyClosed
	}
	defer p.untrackListener(ln)

	p.log.Info().Str("addr", ln.Addr().String()).Msg("Accepting connections")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if p.isClosed() {
				return ErrProxyClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			// retry transient accept errors (e.g. too many open files)
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if backoff > time.Second {
				backoff = time.Second
			}
			p.log.Error().Err(err).Msgf("Accept failed, retrying in %v", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if p.sem != nil {
			p.sem <- struct{}{}
		}
		go func() {
			if p.sem != nil {
				defer func() { <-p.sem }()
			}
			p.handleConn(conn)
		}()
	}
}

// Close stops all listeners. Connections already accepted are served to
// completion.
func (p *Proxy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var err error
	for ln := range p.listeners {
		if cerr := ln.Close(); cerr != nil && err == nil {
			err = cerr
		}
		delete(p.listeners, ln)
	}
	return err
}

// Cache returns the cache provider shared by all workers.
func (p *Proxy) Cache() cache.CacheProvider {
	return p.cache
}

func (p *Proxy) trackListener(ln net.Listener) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.listeners[ln] = struct{}{}
	return true
}

func (p *Proxy) untrackListener(ln net.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.listeners, ln)
}

func (p *Proxy) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
