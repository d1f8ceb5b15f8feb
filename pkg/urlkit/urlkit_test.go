package urlkit

import (
	"strings"
	"testing"
)

func TestParseBasic(t *testing.T) {
	u, err := Parse("http://example.com/api/users?page=1")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("expected scheme http, got %s", u.Scheme)
	}
	if u.Host != "example.com" {
		t.Fatalf("expected host example.com, got %s", u.Host)
	}
	if u.HasPort {
		t.Fatalf("expected no explicit port")
	}
	if u.PathQuery != "/api/users?page=1" {
		t.Fatalf("expected path+query, got %s", u.PathQuery)
	}
}

func TestParseNoHost(t *testing.T) {
	if _, err := Parse("http:///path"); err == nil {
		t.Fatalf("expected error for missing host")
	}
}

func TestPortPolicy(t *testing.T) {
	u, _ := Parse("https://example.com/")
	port, err := Port(u, DefaultForKnownSchemes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 443 {
		t.Fatalf("expected default port 443, got %d", port)
	}

	if _, err := Port(u, ExactOnly); err == nil {
		t.Fatalf("expected PortMissing error under ExactOnly")
	}
}

func TestIsSecure(t *testing.T) {
	httpURL, _ := Parse("http://example.com/")
	httpsURL, _ := Parse("https://example.com/")
	if IsSecure(httpURL) {
		t.Fatalf("http should not be secure")
	}
	if !IsSecure(httpsURL) {
		t.Fatalf("https should be secure")
	}
}

func TestWriteRequestTargetOrigin(t *testing.T) {
	u, _ := Parse("http://example.com/api/users?page=1")
	var b strings.Builder
	if err := WriteRequestTarget(u, &b, Origin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.String() != "/api/users?page=1" {
		t.Fatalf("unexpected origin form: %s", b.String())
	}
}

func TestWriteRequestTargetOriginEmptyPath(t *testing.T) {
	u, _ := Parse("http://example.com")
	var b strings.Builder
	if err := WriteRequestTarget(u, &b, Origin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.String() != "/" {
		t.Fatalf("expected '/' for empty path, got %q", b.String())
	}
}

func TestWriteRequestTargetAbsolute(t *testing.T) {
	u, _ := Parse("http://example.com:8080/x")
	var b strings.Builder
	if err := WriteRequestTarget(u, &b, Absolute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.String() != "http://example.com:8080/x" {
		t.Fatalf("unexpected absolute form: %s", b.String())
	}
}

func TestWriteRequestTargetAuthority(t *testing.T) {
	u, _ := Parse("http://example.com:443/")
	var b strings.Builder
	if err := WriteRequestTarget(u, &b, AuthorityForm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.String() != "example.com:443" {
		t.Fatalf("unexpected authority form: %s", b.String())
	}
}

func TestWriteRequestTargetAsterisk(t *testing.T) {
	u, _ := Parse("http://example.com/")
	var b strings.Builder
	if err := WriteRequestTarget(u, &b, Asterisk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.String() != "*" {
		t.Fatalf("unexpected asterisk form: %s", b.String())
	}
}

func TestResolveReferenceAbsolute(t *testing.T) {
	base, _ := Parse("http://a.example/x")
	resolved, err := ResolveReference(base, "http://b.example/y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Host != "b.example" || resolved.PathQuery != "/y" {
		t.Fatalf("unexpected resolved URL: %+v", resolved)
	}
}

func TestResolveReferenceRelative(t *testing.T) {
	base, _ := Parse("http://a.example/dir/x")
	resolved, err := ResolveReference(base, "/y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Host != "a.example" || resolved.PathQuery != "/y" {
		t.Fatalf("unexpected resolved URL: %+v", resolved)
	}
}

func TestIPv6Host(t *testing.T) {
	u, err := Parse("http://[::1]:8080/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Host != "::1" {
		t.Fatalf("expected decoded IPv6 literal ::1, got %s", u.Host)
	}
	if u.Authority() != "[::1]:8080" {
		t.Fatalf("expected bracketed authority, got %s", u.Authority())
	}
}
