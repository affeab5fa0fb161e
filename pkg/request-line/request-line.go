package requestline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxLine is the longest request or header line accepted, CRLF included.
const DefaultMaxLine = 8192

var (
	ErrMalformedRequest = errors.New("malformed request line")
	ErrLineTooLong      = errors.New("line too long")
)

// Request is the parsed first line of a client request.
type Request struct {
	Method  string
	URI     string
	Version string
}

func (r Request) String() string {
	return r.Method + " " + r.URI + " " + r.Version
}

// Parse splits a request line into method, target and version.
// The line may still carry its CRLF terminator.
func Parse(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Request{}, fmt.Errorf("%w: %q", ErrMalformedRequest, strings.TrimRight(line, "\r\n"))
	}
	return Request{
		Method:  fields[0],
		URI:     fields[1],
		Version: fields[2],
	}, nil
}

// ReadLine reads one LF-terminated line from r, terminator included.
// The line must fit in r's buffer; create the reader with
// bufio.NewReaderSize(conn, maxLine) to bound it.
// A stream that ends mid-line returns io.ErrUnexpectedEOF, a stream that ends
// before any byte returns io.EOF.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadSlice('\n')
	switch {
	case err == nil:
		return string(line), nil
	case errors.Is(err, bufio.ErrBufferFull):
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrLineTooLong, r.Size())
	case errors.Is(err, io.EOF) && len(line) > 0:
		return "", fmt.Errorf("reading line: %w", io.ErrUnexpectedEOF)
	default:
		return "", err
	}
}

// ReadRequest reads and parses the request line.
func ReadRequest(r *bufio.Reader) (Request, error) {
	line, err := ReadLine(r)
	if err != nil {
		return Request{}, err
	}
	return Parse(line)
}
