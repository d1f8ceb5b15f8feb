// Package urlkit implements the URL semantics the HTTP/1.1 client needs:
// a parsed, immutable (scheme, authority, path+query) triple and pure
// functions over it for port resolution, host decoding, and request-target
// rendering in the four wire forms. This has no teacher equivalent — the
// library this client is modeled on takes host/port/scheme as separate
// option fields rather than parsing a URL — so it is built directly from
// the client's own URL semantics, using golang.org/x/net/idna for host
// decoding the same way the rest of this module leans on golang.org/x/net.
package urlkit

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"

	"github.com/oneopane/webhttp/pkg/errors"
)

// PortPolicy controls how a missing port is resolved.
type PortPolicy int

const (
	// ExactOnly fails whenever the URL has no explicit port.
	ExactOnly PortPolicy = iota
	// DefaultForKnownSchemes resolves http/ws to 80 and https/wss to 443,
	// failing only for unknown schemes.
	DefaultForKnownSchemes
	// ErrorOnUnknown is like DefaultForKnownSchemes but never silently
	// accepts an unrecognized scheme at all, even with an explicit port.
	ErrorOnUnknown
)

// TargetForm selects one of the four HTTP/1.1 request-target renderings.
type TargetForm int

const (
	// Origin renders "path?query", the default used by ordinary requests.
	Origin TargetForm = iota
	// Absolute renders "scheme://authority path?query", used for
	// forward-proxy-style requests.
	Absolute
	// AuthorityForm renders "host[:port]", used by CONNECT.
	AuthorityForm
	// Asterisk renders the literal "*", used by OPTIONS.
	Asterisk
)

// URL is a parsed, immutable (scheme, authority, path+query) triple.
// Scheme comparison is case-insensitive; Host is decoded (percent-decoding
// resolved; an IPv6 literal is stored without its brackets, which
// Authority adds back); Port is optional.
type URL struct {
	Scheme    string
	Host      string
	Port      int
	HasPort   bool
	PathQuery string // empty means "/"
}

// Parse parses raw into a URL. Only absolute URIs are accepted here;
// relative URIs (as seen in Location headers during redirects) are
// resolved against a base via ResolveReference.
func Parse(raw string) (*URL, error) {
	if raw == "" {
		return nil, errors.NewURLRequiredError()
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.NewMalformedURLError(raw, err)
	}
	if u.Scheme == "" {
		return nil, errors.NewMalformedURLError(raw, fmt.Errorf("missing scheme"))
	}
	if u.Host == "" {
		return nil, errors.NewNoHostInURLError(raw)
	}

	return fromStdlib(u, raw)
}

// ResolveReference resolves ref (typically a Location header value, which
// may be relative) against base, returning the resulting absolute URL.
func ResolveReference(base *URL, ref string) (*URL, error) {
	if ref == "" {
		return nil, errors.NewMissingLocationHeaderError()
	}

	baseStd, err := base.toStdlib()
	if err != nil {
		return nil, err
	}
	refStd, err := url.Parse(ref)
	if err != nil {
		return nil, errors.NewMalformedURLError(ref, err)
	}

	resolved := baseStd.ResolveReference(refStd)
	if resolved.Host == "" {
		return nil, errors.NewNoHostInURLError(ref)
	}
	return fromStdlib(resolved, ref)
}

func fromStdlib(u *url.URL, raw string) (*URL, error) {
	host := u.Hostname()
	decodedHost, err := decodeHost(host)
	if err != nil {
		return nil, errors.NewMalformedURLError(raw, err)
	}

	result := &URL{
		Scheme:    strings.ToLower(u.Scheme),
		Host:      decodedHost,
		PathQuery: pathQueryOf(u),
	}

	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return nil, errors.NewMalformedURLError(raw, fmt.Errorf("invalid port %q", portStr))
		}
		result.Port = port
		result.HasPort = true
	}

	return result, nil
}

func pathQueryOf(u *url.URL) string {
	path := u.EscapedPath()
	if u.RawQuery != "" {
		return path + "?" + u.RawQuery
	}
	return path
}

func (u *URL) toStdlib() (*url.URL, error) {
	authority := u.Host
	if strings.Contains(authority, ":") && !strings.HasPrefix(authority, "[") {
		authority = "[" + authority + "]"
	}
	if u.HasPort {
		authority = fmt.Sprintf("%s:%d", authority, u.Port)
	}
	raw := fmt.Sprintf("%s://%s%s", u.Scheme, authority, u.PathQuery)
	std, err := url.Parse(raw)
	if err != nil {
		return nil, errors.NewMalformedURLError(raw, err)
	}
	return std, nil
}

// decodeHost percent-decodes a host and normalizes it via IDNA. IPv6
// literals arrive without brackets (net/url.Hostname strips them), are
// detected by the presence of a colon, and are returned unbracketed
// without going through IDNA.
func decodeHost(host string) (string, error) {
	decoded, err := url.PathUnescape(host)
	if err != nil {
		return "", err
	}
	if strings.Contains(decoded, ":") {
		// IPv6 literal: never passed to IDNA.
		return decoded, nil
	}
	ascii, err := idna.Lookup.ToASCII(decoded)
	if err != nil {
		// Not every host is a valid IDNA label (e.g. "localhost", plain
		// IPv4 literals); fall back to the decoded form verbatim.
		return decoded, nil
	}
	return ascii, nil
}

// IsSecure reports whether the scheme requires TLS: https or wss,
// case-insensitively.
func IsSecure(u *URL) bool {
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		return true
	default:
		return false
	}
}

func defaultPort(scheme string) (int, bool) {
	switch strings.ToLower(scheme) {
	case "http", "ws":
		return 80, true
	case "https", "wss":
		return 443, true
	default:
		return 0, false
	}
}

// Port resolves u's port according to policy.
func Port(u *URL, policy PortPolicy) (int, error) {
	if u.HasPort {
		if policy == ErrorOnUnknown {
			if _, known := defaultPort(u.Scheme); !known {
				return 0, errors.NewUnknownSchemeError(u.Scheme)
			}
		}
		return u.Port, nil
	}

	switch policy {
	case ExactOnly:
		return 0, errors.NewPortMissingError(u.Scheme + "://" + u.Host + u.PathQuery)
	case DefaultForKnownSchemes, ErrorOnUnknown:
		port, known := defaultPort(u.Scheme)
		if !known {
			return 0, errors.NewUnknownSchemeError(u.Scheme)
		}
		return port, nil
	default:
		return 0, errors.NewUnknownSchemeError(u.Scheme)
	}
}

// Host copies the decoded host into buf, returning the number of bytes
// written. If buf is too small, the host is truncated to buf's capacity
// and the full required length is returned so the caller can grow and
// retry — mirroring a no-allocation copy-into-buffer contract.
func Host(u *URL, buf []byte) int {
	copy(buf, u.Host)
	return len(u.Host)
}

// HostLen returns the number of bytes Host would need to copy the full
// decoded host.
func HostLen(u *URL) int {
	return len(u.Host)
}

// Authority renders "host[:port]", appending ":port" only when a port is
// explicitly set (no synthesized defaults on the wire). IPv6 literals are
// re-bracketed.
func (u *URL) Authority() string {
	host := u.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if u.HasPort {
		return fmt.Sprintf("%s:%d", host, u.Port)
	}
	return host
}

// WriteRequestTarget writes the chosen request-target form to w.
func WriteRequestTarget(u *URL, w *strings.Builder, form TargetForm) error {
	switch form {
	case Origin:
		if u.PathQuery == "" {
			w.WriteString("/")
		} else {
			w.WriteString(u.PathQuery)
		}
	case Absolute:
		w.WriteString(u.Scheme)
		w.WriteString("://")
		w.WriteString(u.Authority())
		if u.PathQuery == "" {
			w.WriteString("/")
		} else {
			w.WriteString(u.PathQuery)
		}
	case AuthorityForm:
		w.WriteString(u.Authority())
	case Asterisk:
		w.WriteString("*")
	default:
		return fmt.Errorf("urlkit: unknown target form %d", form)
	}
	return nil
}

// String renders the URL in absolute form, for diagnostics and as the base
// for redirect resolution.
func (u *URL) String() string {
	var b strings.Builder
	_ = WriteRequestTarget(u, &b, Absolute)
	return b.String()
}
