package httpconn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/oneopane/webhttp/pkg/timing"
)

func startEchoServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		buf := make([]byte, 4096)
		n, err := conn.Read(buf)
		if err != nil {
			conn.Close()
			return
		}
		conn.Write(buf[:n])
		conn.Close()
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

func TestConnectAndEcho(t *testing.T) {
	addr, stop := startEchoServer(t)
	defer stop()

	host, portStr, _ := net.SplitHostPort(addr)
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}

	conn := New(host, port, false)
	if conn.State() != Disconnected {
		t.Fatalf("expected initial state disconnected")
	}

	timer := timing.NewTimer()
	if err := conn.Connect(context.Background(), Options{ConnTimeout: 2 * time.Second}, timer); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer conn.Close()

	if conn.State() != Connected {
		t.Fatalf("expected state connected, got %s", conn.State())
	}
	if !conn.IsLive() {
		t.Fatalf("expected live connection")
	}

	if err := conn.SendAll([]byte("hello"), time.Second); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	buf := make([]byte, 16)
	n, err := conn.RecvSome(buf, time.Second)
	if err != nil {
		t.Fatalf("recv failed: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("expected echo of 'hello', got %q", string(buf[:n]))
	}
}

func TestConnectAlreadyConnected(t *testing.T) {
	addr, stop := startEchoServer(t)
	defer stop()
	host, portStr, _ := net.SplitHostPort(addr)
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}

	conn := New(host, port, false)
	timer := timing.NewTimer()
	if err := conn.Connect(context.Background(), Options{ConnTimeout: 2 * time.Second}, timer); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer conn.Close()

	if err := conn.Connect(context.Background(), Options{}, timer); err == nil {
		t.Fatalf("expected AlreadyConnected error on second Connect")
	}
}

func TestRecvOnUnconnected(t *testing.T) {
	conn := New("127.0.0.1", 9999, false)
	buf := make([]byte, 16)
	_, err := conn.RecvSome(buf, time.Second)
	if err == nil {
		t.Fatalf("expected NotConnected error")
	}
}

func TestCloseIdempotent(t *testing.T) {
	addr, stop := startEchoServer(t)
	defer stop()
	host, portStr, _ := net.SplitHostPort(addr)
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}

	conn := New(host, port, false)
	timer := timing.NewTimer()
	_ = conn.Connect(context.Background(), Options{ConnTimeout: 2 * time.Second}, timer)

	if err := conn.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got: %v", err)
	}
}
