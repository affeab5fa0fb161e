package cachingproxy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	rewriter "github.com/always-cache/caching-proxy/pkg/header-rewriter"
	requestline "github.com/always-cache/caching-proxy/pkg/request-line"
	tee "github.com/always-cache/caching-proxy/pkg/response-writer-tee"
	resolver "github.com/always-cache/caching-proxy/pkg/uri-resolver"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// handleConn runs one proxy cycle for a client connection:
// read the request, serve it from the cache if possible, otherwise forward it
// to the origin and relay the response while saving a copy for the cache.
// All failures end here; nothing is retried.
func (p *Proxy) handleConn(conn net.Conn) {
	defer conn.Close()

	logger := p.log.With().
		Str("conn", uuid.NewString()).
		Str("client", conn.RemoteAddr().String()).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Connection worker panicked")
		}
	}()

	reader := bufio.NewReaderSize(conn, p.maxLine)
	req, headers, err := readRequest(reader)
	if err != nil {
		p.rejectRequest(conn, logger, err)
		return
	}
	logger = logger.With().Str("method", req.Method).Str("uri", req.URI).Logger()
	logger.Trace().Int("headers", len(headers)).Msg("Read request")

	cs := CacheStatus{}
	if payload, ok := p.lookup(req.URI, &cs, logger); ok {
		n, err := conn.Write(payload)
		if err != nil {
			logger.Warn().Err(err).Msg("Could not write cached response to client")
		}
		p.logRequest(logger, cs, int64(n))
		return
	}

	rw, err := p.forward(conn, req, headers, logger)
	if err != nil {
		return
	}

	if rw.Overflowed() {
		p.stats.tooLarge.Add(1)
		cs.Detail("too-large")
	} else if resp := rw.Response(); len(resp) > 0 {
		if stored, err := p.cache.Insert(req.URI, resp); err != nil {
			logger.Error().Err(err).Msg("Could not write to cache")
		} else if stored {
			p.stats.stored.Add(1)
			cs.Stored()
		}
	}
	p.logRequest(logger, cs, rw.Written())
	logger.Trace().Msgf("Proxy cycle took %v", time.Since(rw.CreatedAt))
}

func readRequest(r *bufio.Reader) (requestline.Request, []rewriter.Header, error) {
	req, err := requestline.ReadRequest(r)
	if err != nil {
		return req, nil, err
	}
	headers, err := rewriter.ReadHeaders(r)
	return req, headers, err
}

// rejectRequest answers requests that could not be read.
func (p *Proxy) rejectRequest(conn net.Conn, logger zerolog.Logger, err error) {
	if errors.Is(err, io.EOF) {
		logger.Trace().Msg("Client closed connection before sending a request")
		return
	}
	if isMalformed(err) {
		p.stats.malformed.Add(1)
		logger.Warn().Err(err).Msg("Malformed request")
		writeClientError(conn, http.StatusBadRequest, err.Error(), "Proxy could not parse the request")
		return
	}
	logger.Debug().Err(err).Msg("Could not read request")
}

func isMalformed(err error) bool {
	return errors.Is(err, requestline.ErrMalformedRequest) ||
		errors.Is(err, requestline.ErrLineTooLong) ||
		errors.Is(err, rewriter.ErrIncompleteHeaders) ||
		errors.Is(err, rewriter.ErrMalformedHeader) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// lookup consults the cache with the request target exactly as received.
func (p *Proxy) lookup(uri string, cs *CacheStatus, logger zerolog.Logger) ([]byte, bool) {
	payload, ok, err := p.cache.Find(uri)
	if err != nil {
		logger.Error().Err(err).Msg("Could not read from cache")
		cs.Forward(CacheStatusFwdBypass)
		p.stats.misses.Add(1)
		return nil, false
	}
	if !ok {
		cs.Forward(CacheStatusFwdUriMiss)
		p.stats.misses.Add(1)
		return nil, false
	}
	cs.Hit()
	p.stats.hits.Add(1)
	return payload, true
}

// forward sends the rewritten request to the origin and relays the response
// to the client. The returned tee holds the copy destined for the cache.
// Errors have already been logged and, where possible, reported to the
// client; the caller must not cache anything in that case.
func (p *Proxy) forward(conn net.Conn, req requestline.Request, headers []rewriter.Header, logger zerolog.Logger) (*tee.Tee, error) {
	target, err := resolver.Resolve(req.URI)
	if err != nil {
		p.stats.malformed.Add(1)
		logger.Warn().Err(err).Msg("Could not resolve request target")
		writeClientError(conn, http.StatusBadRequest, req.URI, "Proxy could not resolve the target")
		return nil, err
	}

	upstream, err := p.dialer.Dial("tcp", target.Addr())
	if err != nil {
		p.stats.upstreamErrors.Add(1)
		logger.Error().Err(err).Str("origin", target.Addr()).Msg("Could not connect to origin")
		writeClientError(conn, http.StatusBadGateway, target.Addr(), "Proxy could not reach the origin")
		return nil, err
	}
	defer upstream.Close()

	upstreamReq := rewriter.Build(req.Method, target.Path, target.Host, target.Port, headers, p.userAgent)
	logger.Trace().Str("origin", target.Addr()).Bytes("request", upstreamReq).Msg("Forwarding request")
	if _, err := upstream.Write(upstreamReq); err != nil {
		p.stats.upstreamErrors.Add(1)
		logger.Error().Err(err).Str("origin", target.Addr()).Msg("Could not send request to origin")
		writeClientError(conn, http.StatusBadGateway, target.Addr(), "Proxy could not send the request")
		return nil, err
	}

	rw := tee.NewTee(conn, p.maxObjectSize)
	if err := relay(rw, upstream, p.maxLine); errors.Is(err, errClientWrite) {
		p.stats.clientErrors.Add(1)
		logger.Debug().Err(err).Int64("relayed", rw.Written()).Msg("Client went away during relay")
		return nil, err
	} else if err != nil {
		p.stats.upstreamErrors.Add(1)
		logger.Error().Err(err).Int64("relayed", rw.Written()).Msg("Relay aborted")
		return nil, err
	}
	return rw, nil
}

var errClientWrite = errors.New("writing to client")

// relay copies the origin response to dst line by line so the client sees
// every line as soon as it arrives. Lines longer than maxLine are passed on
// in maxLine pieces.
func relay(dst io.Writer, src io.Reader, maxLine int) error {
	r := bufio.NewReaderSize(src, maxLine)
	for {
		chunk, err := r.ReadSlice('\n')
		if len(chunk) > 0 {
			if _, werr := dst.Write(chunk); werr != nil {
				return fmt.Errorf("%w: %w", errClientWrite, werr)
			}
		}
		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
		case errors.Is(err, io.EOF):
			return nil
		default:
			return fmt.Errorf("reading from origin: %w", err)
		}
	}
}

func (p *Proxy) logRequest(logger zerolog.Logger, cs CacheStatus, written int64) {
	hit := 0
	if cs.IsHit() {
		hit = 1
	}
	logger.Debug().
		Str("status", string(cs.status)).
		Str("fwd", string(cs.fwdReason)).
		Bool("stored", cs.stored).
		Str("cacheStatus", cs.String()).
		Int64("bytes", written).
		Int("hit", hit).
		Msg("Sent response to client")
}
