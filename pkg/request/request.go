// Package request implements the Request component: method + parsed URL +
// ordered header map + optional body, plus the wire serializer and
// convenience constructors. Grounded on the teacher's client.Options /
// request assembly (go-rawhttp's pkg/client/client.go) generalized from
// "caller pre-serializes the request" into owning construction and
// serialization itself. Headers live in [[package headers]] instead of a
// plain map[string][]string: names keep the casing they were set with
// (no textproto.CanonicalMIMEHeaderKey canonicalization, unlike the
// teacher's readHeaders) and are looked up case-insensitively.
package request

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/oneopane/webhttp/pkg/errors"
	"github.com/oneopane/webhttp/pkg/headers"
	"github.com/oneopane/webhttp/pkg/jsoncodec"
	"github.com/oneopane/webhttp/pkg/urlkit"
)

// Methods is the fixed set of methods a Request may use.
var Methods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "OPTIONS": true, "TRACE": true, "CONNECT": true,
}

var validate = validator.New()

type validationShape struct {
	Method string `validate:"required,oneof=GET HEAD POST PUT PATCH DELETE OPTIONS TRACE CONNECT"`
	URL    string `validate:"required"`
}

// Request is {method, URL, headers, body?, timeout?, follow_redirects?}.
type Request struct {
	Method          string
	URL             *urlkit.URL
	Headers         *headers.Map
	Body            []byte
	ownsBody        bool
	Timeout         time.Duration
	FollowRedirects bool

	// TraceID correlates this request across pool acquire/release and
	// redirect hops in logging output.
	TraceID string
}

// New parses rawURL, constructs the header map, and synthesizes the Host
// header (omitting the port when (scheme, port) is a well-known default).
func New(method, rawURL string) (*Request, error) {
	method = strings.ToUpper(method)
	if method == "" {
		return nil, errors.NewMethodRequiredError()
	}
	if rawURL == "" {
		return nil, errors.NewURLRequiredError()
	}
	if !Methods[method] {
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported method %q", method))
	}

	if err := validate.Struct(validationShape{Method: method, URL: rawURL}); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	u, err := urlkit.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	r := &Request{
		Method:          method,
		URL:             u,
		Headers:         headers.New(),
		FollowRedirects: true,
		TraceID:         uuid.NewString(),
	}
	r.Headers.Set("Host", hostHeaderValue(u))
	return r, nil
}

// hostHeaderValue renders the Host header: just the host when (scheme,
// port) resolves to the scheme's well-known default, otherwise host:port.
func hostHeaderValue(u *urlkit.URL) string {
	port, err := urlkit.Port(u, urlkit.DefaultForKnownSchemes)
	if err != nil {
		return u.Host
	}
	isDefault := (strings.EqualFold(u.Scheme, "http") && port == 80) ||
		(strings.EqualFold(u.Scheme, "https") && port == 443)
	if isDefault {
		return u.Host
	}
	host := u.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// SetHeader sets key to value, replacing any previous value under the same
// case-insensitive key.
func (r *Request) SetHeader(key, value string) {
	r.Headers.Set(key, value)
}

// SetBody stores a borrowed slice; the caller must keep it alive until
// Serialize returns.
func (r *Request) SetBody(data []byte) {
	r.Body = data
	r.ownsBody = false
}

// SetJSON encodes value via the JSON collaborator, taking ownership of the
// resulting buffer, and sets Content-Type: application/json.
func (r *Request) SetJSON(value interface{}) error {
	data, err := jsoncodec.Encode(value)
	if err != nil {
		return err
	}
	r.Body = data
	r.ownsBody = true
	r.Headers.Set("Content-Type", "application/json")
	return nil
}

// Serialize emits:
//
//	METHOD <request-target> HTTP/1.1 CRLF
//	(Header: Value CRLF)*
//	[Content-Length: n CRLF   if body present and not already set]
//	CRLF
//	[body bytes]
//
// using the origin request-target form and iterating headers in insertion
// order. A caller-supplied Content-Length is honored verbatim even if it
// mismatches the body length.
func (r *Request) Serialize() ([]byte, error) {
	var target strings.Builder
	if err := urlkit.WriteRequestTarget(r.URL, &target, urlkit.Origin); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(target.String())
	b.WriteString(" HTTP/1.1\r\n")

	hasContentLength := r.Headers.Has("Content-Length")
	r.Headers.Range(func(k, v string) bool {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
		return true
	})

	if len(r.Body) > 0 && !hasContentLength {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(r.Body)))
		b.WriteString("\r\n")
	}

	b.WriteString("\r\n")

	out := make([]byte, 0, b.Len()+len(r.Body))
	out = append(out, b.String()...)
	out = append(out, r.Body...)
	return out, nil
}

// --- convenience constructors ---

func Get(rawURL string) (*Request, error)    { return New("GET", rawURL) }
func Head(rawURL string) (*Request, error)   { return New("HEAD", rawURL) }
func Post(rawURL string) (*Request, error)   { return New("POST", rawURL) }
func Put(rawURL string) (*Request, error)    { return New("PUT", rawURL) }
func Patch(rawURL string) (*Request, error)  { return New("PATCH", rawURL) }
func Delete(rawURL string) (*Request, error) { return New("DELETE", rawURL) }

// Builder provides fluent chaining over the same primitives as New/SetHeader/
// SetBody/SetJSON; it exists purely for ergonomics.
type Builder struct {
	req *Request
	err error
}

// NewBuilder starts a fluent Request construction.
func NewBuilder(method, rawURL string) *Builder {
	req, err := New(method, rawURL)
	return &Builder{req: req, err: err}
}

// Header sets a header and returns the builder for chaining.
func (b *Builder) Header(key, value string) *Builder {
	if b.err == nil {
		b.req.SetHeader(key, value)
	}
	return b
}

// Body sets a borrowed body and returns the builder for chaining.
func (b *Builder) Body(data []byte) *Builder {
	if b.err == nil {
		b.req.SetBody(data)
	}
	return b
}

// JSON sets a JSON-encoded, owned body and returns the builder for chaining.
func (b *Builder) JSON(value interface{}) *Builder {
	if b.err == nil {
		b.err = b.req.SetJSON(value)
	}
	return b
}

// Timeout sets the per-request timeout and returns the builder for chaining.
func (b *Builder) Timeout(d time.Duration) *Builder {
	if b.err == nil {
		b.req.Timeout = d
	}
	return b
}

// FollowRedirects toggles redirect following and returns the builder for
// chaining.
func (b *Builder) FollowRedirects(follow bool) *Builder {
	if b.err == nil {
		b.req.FollowRedirects = follow
	}
	return b
}

// Build returns the constructed Request, or the first error encountered
// during chaining.
func (b *Builder) Build() (*Request, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.req, nil
}
