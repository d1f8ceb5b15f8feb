package pool

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/oneopane/webhttp/pkg/errors"
	"github.com/oneopane/webhttp/pkg/httpconn"
	"github.com/oneopane/webhttp/pkg/timing"
)

func startAcceptServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				buf := make([]byte, 1024)
				for {
					n, err := c.Read(buf)
					if err != nil {
						return
					}
					c.Write(buf[:n])
				}
			}(conn)
		}
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

func dialConn(t *testing.T, host string, port int) *httpconn.Connection {
	t.Helper()
	conn := httpconn.New(host, port, false)
	timer := timing.NewTimer()
	if err := conn.Connect(context.Background(), httpconn.Options{ConnTimeout: 2 * time.Second}, timer); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	return conn
}

func splitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr failed: %v", err)
	}
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}
	return host, port
}

func TestAcquireReservesSlotWhenEmpty(t *testing.T) {
	p := New(DefaultConfig())
	key := Key("example.com", 80, false)

	conn, isNew, err := p.Acquire(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn != nil || !isNew {
		t.Fatalf("expected reserved slot for new connection, got conn=%v isNew=%v", conn, isNew)
	}

	stats := p.GetStats()
	if stats.PerHost[key].Active != 1 {
		t.Fatalf("expected active count 1, got %d", stats.PerHost[key].Active)
	}
}

func TestReleaseThenAcquireReuses(t *testing.T) {
	addr, stop := startAcceptServer(t)
	defer stop()
	host, port := splitAddr(t, addr)

	p := New(DefaultConfig())
	key := Key(host, port, false)

	if _, isNew, err := p.Acquire(key); err != nil || !isNew {
		t.Fatalf("expected new slot reservation, err=%v isNew=%v", err, isNew)
	}
	conn := dialConn(t, host, port)
	defer conn.Close()

	p.Release(key, conn, true)

	stats := p.GetStats()
	if stats.PerHost[key].Idle != 1 || stats.PerHost[key].Active != 0 {
		t.Fatalf("expected 1 idle 0 active after release, got %+v", stats.PerHost[key])
	}

	reused, isNew, err := p.Acquire(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isNew || reused != conn {
		t.Fatalf("expected the same connection to be reused")
	}
}

func TestAcquireExhaustedReturnsErrorWithoutBlocking(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConnsPerHost = 1
	p := New(cfg)
	key := Key("example.com", 443, true)

	if _, isNew, err := p.Acquire(key); err != nil || !isNew {
		t.Fatalf("expected first acquire to reserve a slot")
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := p.Acquire(key)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected ConnectionPoolExhausted error")
		}
		if errors.GetErrorType(err) != errors.ErrorTypeConnectionPoolExhausted {
			t.Fatalf("expected ConnectionPoolExhausted error type, got: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Acquire blocked instead of returning immediately on exhaustion")
	}
}

func TestReleaseNonReusableClosesConnection(t *testing.T) {
	addr, stop := startAcceptServer(t)
	defer stop()
	host, port := splitAddr(t, addr)

	p := New(DefaultConfig())
	key := Key(host, port, false)
	p.Acquire(key)
	conn := dialConn(t, host, port)

	p.Release(key, conn, false)

	stats := p.GetStats()
	if stats.PerHost[key].Idle != 0 {
		t.Fatalf("expected non-reusable connection to not be pooled, got idle=%d", stats.PerHost[key].Idle)
	}
}

func TestReleaseExceedingKeepaliveClosesConnection(t *testing.T) {
	addr, stop := startAcceptServer(t)
	defer stop()
	host, port := splitAddr(t, addr)

	cfg := DefaultConfig()
	cfg.MaxKeepaliveRequests = 1
	p := New(cfg)
	key := Key(host, port, false)
	p.Acquire(key)
	conn := dialConn(t, host, port)

	p.Release(key, conn, true)

	stats := p.GetStats()
	if stats.PerHost[key].Idle != 0 {
		t.Fatalf("expected keepalive-exhausted connection to not be pooled, got idle=%d", stats.PerHost[key].Idle)
	}
}

func TestDestroyDecrementsActive(t *testing.T) {
	addr, stop := startAcceptServer(t)
	defer stop()
	host, port := splitAddr(t, addr)

	p := New(DefaultConfig())
	key := Key(host, port, false)
	p.Acquire(key)
	conn := dialConn(t, host, port)

	p.Destroy(key, conn)

	stats := p.GetStats()
	if stats.PerHost[key].Active != 0 {
		t.Fatalf("expected active count 0 after destroy, got %d", stats.PerHost[key].Active)
	}
}

func TestCloseClosesIdleConnectionsOnly(t *testing.T) {
	addr, stop := startAcceptServer(t)
	defer stop()
	host, port := splitAddr(t, addr)

	p := New(DefaultConfig())
	key := Key(host, port, false)

	p.Acquire(key)
	idleConn := dialConn(t, host, port)

	p.Acquire(key)
	activeConn := dialConn(t, host, port)
	defer activeConn.Close()

	p.Release(key, idleConn, true)

	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error closing pool: %v", err)
	}

	if idleConn.IsAlive() {
		t.Fatalf("expected idle connection to be closed")
	}
	if !activeConn.IsAlive() {
		t.Fatalf("expected active connection to be left alone")
	}

	stats := p.GetStats()
	if stats.PerHost[key].Idle != 0 {
		t.Fatalf("expected idle count 0 after close, got %d", stats.PerHost[key].Idle)
	}
	if stats.PerHost[key].Active != 1 {
		t.Fatalf("expected active count unchanged at 1 after close, got %d", stats.PerHost[key].Active)
	}
}

func TestCleanupIdleEvictsStale(t *testing.T) {
	addr, stop := startAcceptServer(t)
	defer stop()
	host, port := splitAddr(t, addr)

	cfg := DefaultConfig()
	cfg.MaxIdleTime = time.Millisecond
	p := New(cfg)
	key := Key(host, port, false)
	p.Acquire(key)
	conn := dialConn(t, host, port)
	p.Release(key, conn, true)

	time.Sleep(5 * time.Millisecond)
	p.CleanupIdle()

	stats := p.GetStats()
	if stats.PerHost[key].Idle != 0 {
		t.Fatalf("expected stale idle connection to be evicted, got idle=%d", stats.PerHost[key].Idle)
	}
}
