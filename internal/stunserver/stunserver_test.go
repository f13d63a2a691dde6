package stunserver

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/pion/stun/v3"

	"github.com/magesignaling/relay/internal/metrics"
)

func startServer(t *testing.T) (*Server, string, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New("127.0.0.1:0", logger, m)

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Serve(conn) }()
	t.Cleanup(func() { _ = srv.Close() })

	return srv, conn.LocalAddr().String(), m
}

func TestBindingRequestGetsXORMappedAddress(t *testing.T) {
	_, addr, m := startServer(t)

	conn, err := net.Dial("udp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	client, err := stun.NewClient(conn)
	if err != nil {
		t.Fatalf("stun client: %v", err)
	}
	defer client.Close()

	local := conn.LocalAddr().(*net.UDPAddr)

	req := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	done := make(chan error, 1)
	var mapped stun.XORMappedAddress
	if err := client.Do(req, func(res stun.Event) {
		if res.Error != nil {
			done <- res.Error
			return
		}
		done <- mapped.GetFrom(res.Message)
	}); err != nil {
		t.Fatalf("do: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("binding exchange: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for binding response")
	}

	if !mapped.IP.Equal(local.IP) {
		t.Fatalf("mapped ip=%v, want %v", mapped.IP, local.IP)
	}
	if mapped.Port != local.Port {
		t.Fatalf("mapped port=%d, want %d", mapped.Port, local.Port)
	}
	if got := m.Get(metrics.EventSTUNBindingHandled); got != 1 {
		t.Fatalf("binding counter=%d, want 1", got)
	}
}

func TestNonSTUNPacketsAreIgnored(t *testing.T) {
	_, addr, m := startServer(t)

	conn, err := net.Dial("udp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("definitely not stun")); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 64)
	if n, err := conn.Read(buf); err == nil {
		t.Fatalf("expected no response, got %d bytes", n)
	}
	if got := m.Get(metrics.EventSTUNBindingHandled); got != 0 {
		t.Fatalf("binding counter=%d, want 0", got)
	}
}

func TestCloseUnblocksServe(t *testing.T) {
	srv, _, _ := startServer(t)
	if err := srv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Serve exits via net.ErrClosed; a second close reports the same.
	if err := srv.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		t.Fatalf("second close: %v", err)
	}
}
