package cachingproxy

import (
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
)

// writeClientError sends a small HTML error page to the client.
// Errors are ignored: the connection is closed right after anyway.
func writeClientError(w io.Writer, status int, cause, msg string) {
	body := &strings.Builder{}
	body.WriteString("<html><title>Proxy Error</title>")
	body.WriteString("<body bgcolor=\"ffffff\">\r\n")
	fmt.Fprintf(body, "%d %s\r\n", status, http.StatusText(status))
	fmt.Fprintf(body, "<p>%s: %s\r\n", html.EscapeString(msg), html.EscapeString(cause))
	body.WriteString("<hr><em>caching-proxy</em>\r\n</body></html>\r\n")

	fmt.Fprintf(w, "HTTP/1.0 %d %s\r\n", status, http.StatusText(status))
	fmt.Fprintf(w, "Content-Type: text/html\r\n")
	fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", body.Len())
	io.WriteString(w, body.String())
}
