// Package event translates between HTTP requests and the two versioned
// invocation-event shapes, and parses function responses back into HTTP.
// All translation is pure given its inputs, so it is safe under unlimited
// concurrency.
package event

import (
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Request is the explicit request value object threaded through translation.
// It carries everything the translators need, so no implicit request context
// is consulted anywhere below the HTTP layer.
type Request struct {
	Method         string
	Path           string
	RawQueryString string
	Query          url.Values
	Headers        http.Header
	Cookies        []string
	Body           []byte
	SourceIP       string
	Host           string
	Protocol       string
	UserAgent      string
	RequestID      string
	Time           time.Time
}

// FromHTTP captures an inbound request into a Request value. The body is
// read fully; the caller owns closing semantics through the http server.
func FromHTTP(r *http.Request) (*Request, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	var cookies []string
	for _, c := range r.Cookies() {
		cookies = append(cookies, c.String())
	}

	// RemoteAddr is host:port from the http server; a bare address can still
	// appear from synthetic requests.
	sourceIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(sourceIP); err == nil {
		sourceIP = host
	}

	return &Request{
		Method:         strings.ToUpper(r.Method),
		Path:           r.URL.Path,
		RawQueryString: r.URL.RawQuery,
		Query:          r.URL.Query(),
		Headers:        r.Header,
		Cookies:        cookies,
		Body:           body,
		SourceIP:       sourceIP,
		Host:           r.Host,
		Protocol:       r.Proto,
		UserAgent:      r.UserAgent(),
		RequestID:      uuid.NewString(),
		Time:           time.Now(),
	}, nil
}

// ContentType returns the request's content type, without parameters.
func (r *Request) ContentType() string {
	ct := r.Headers.Get("Content-Type")
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = ct[:idx]
	}
	return strings.TrimSpace(ct)
}

// Accept returns the raw Accept header value.
func (r *Request) Accept() string {
	return r.Headers.Get("Accept")
}
