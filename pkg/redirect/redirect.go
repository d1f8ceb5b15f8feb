// Package redirect implements the Redirect Controller component: Location
// resolution, method/body rewriting per status code, and cross-origin
// credential stripping. No teacher equivalent exists (the teacher never
// follows redirects); grounded directly on the redirect-following rules
// this client follows, dispatched by [[package httpclient]].
package redirect

import (
	"strings"

	"github.com/oneopane/webhttp/pkg/errors"
	"github.com/oneopane/webhttp/pkg/request"
	"github.com/oneopane/webhttp/pkg/response"
	"github.com/oneopane/webhttp/pkg/urlkit"
)

// sensitiveHeaders are stripped from the rewritten request whenever the
// redirect target is cross-origin relative to the request that produced it.
var sensitiveHeaders = []string{"Authorization", "Cookie"}

// Controller bounds and rewrites redirect hops.
type Controller struct {
	MaxRedirects int
}

// New creates a Controller bounded to maxRedirects hops.
func New(maxRedirects int) *Controller {
	return &Controller{MaxRedirects: maxRedirects}
}

// NextRequest builds the request for the next redirect hop given the
// request that produced resp. hop is the number of redirects already
// followed (0 for the first). It returns TooManyRedirectsError once hop
// reaches MaxRedirects, and MissingLocationHeaderError if resp carries no
// Location header.
func (c *Controller) NextRequest(req *request.Request, resp *response.Response, hop int) (*request.Request, error) {
	if hop >= c.MaxRedirects {
		return nil, errors.NewTooManyRedirectsError(c.MaxRedirects)
	}

	location, ok := resp.GetLocation()
	if !ok || location == "" {
		return nil, errors.NewMissingLocationHeaderError()
	}

	newURL, err := urlkit.ResolveReference(req.URL, location)
	if err != nil {
		return nil, err
	}

	method, body := rewriteMethodAndBody(resp.StatusCode, req.Method, req.Body)

	next, err := request.New(method, newURL.String())
	if err != nil {
		return nil, err
	}
	if len(body) > 0 {
		next.SetBody(body)
	}
	next.FollowRedirects = req.FollowRedirects
	next.Timeout = req.Timeout

	stripSensitive := isCrossOrigin(req.URL, newURL)
	req.Headers.Range(func(key, value string) bool {
		if strings.EqualFold(key, "Host") {
			return true // regenerated by request.New from the new URL
		}
		if stripSensitive && isSensitiveHeader(key) {
			return true
		}
		next.SetHeader(key, value)
		return true
	})

	return next, nil
}

// rewriteMethodAndBody applies the status-code-specific method/body
// rewriting rules: 303 always downgrades to GET and drops the body; a
// 301/302 response to a POST also downgrades to GET and drops the body
// (historical browser behavior codified into the HTTP spec); 307/308 and
// any other 3xx preserve both method and body.
func rewriteMethodAndBody(status int, method string, body []byte) (string, []byte) {
	switch {
	case status == 303:
		return "GET", nil
	case (status == 301 || status == 302) && method == "POST":
		return "GET", nil
	default:
		return method, body
	}
}

func isSensitiveHeader(key string) bool {
	for _, h := range sensitiveHeaders {
		if strings.EqualFold(key, h) {
			return true
		}
	}
	return false
}

// isCrossOrigin reports whether b has a different origin than a: scheme
// differs case-insensitively, host differs byte-for-byte, or the raw port
// differs (a missing port compares as 0, not as the scheme's default —
// http://h/ and http://h:80/ are cross-origin for this check even though
// they dial the same socket).
func isCrossOrigin(a, b *urlkit.URL) bool {
	if !strings.EqualFold(a.Scheme, b.Scheme) {
		return true
	}
	if a.Host != b.Host {
		return true
	}
	return rawPort(a) != rawPort(b)
}

func rawPort(u *urlkit.URL) int {
	if !u.HasPort {
		return 0
	}
	return u.Port
}
