// internal/network/network_test.go
package network

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"pos-print-bridge/internal/config"
	"pos-print-bridge/internal/event"
	"pos-print-bridge/internal/model"
	"pos-print-bridge/internal/preferences"
)

type memoryStore struct {
	mu    sync.Mutex
	prefs preferences.Preferences
}

func (s *memoryStore) Read(ctx context.Context) preferences.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := preferences.Preferences{}
	for k, v := range s.prefs {
		out[k] = v
	}
	return out
}

func (s *memoryStore) Write(ctx context.Context, partial preferences.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs == nil {
		s.prefs = preferences.Preferences{}
	}
	for k, v := range partial {
		s.prefs[k] = v
	}
	return nil
}

// printerServer accepts one connection and hands it to the test
func printerServer(t *testing.T) (int, <-chan net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	return ln.Addr().(*net.TCPAddr).Port, accepted
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func testOptions(port int) Options {
	return Options{
		Port:           port,
		ConnectTimeout: time.Second,
		ReadTimeout:    50 * time.Millisecond,
		WriteTimeout:   time.Second,
	}
}

func TestConnectWriteAndPersist(t *testing.T) {
	port, accepted := printerServer(t)
	store := &memoryStore{}
	m := NewManager(testOptions(port), store, nil, nil)
	ctx := context.Background()

	if err := m.Connect(ctx, "127.0.0.1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer m.Disconnect()

	if !m.IsConnected() || m.State().Status != model.ConnectionStatusConnected {
		t.Fatalf("not connected: %+v", m.State())
	}
	if store.Read(ctx).IP() != "127.0.0.1" {
		t.Fatalf("ip not persisted: %v", store.Read(ctx))
	}

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not accept")
	}
	defer server.Close()

	payload := []byte{0x1B, 0x40, 'H', 'i', 0x1D, 0x56, 0x00}
	if err := m.Write(ctx, payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	buf := make([]byte, len(payload))
	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(server, buf); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if string(buf) != string(payload) {
		t.Fatalf("server received %q", buf)
	}
}

func TestRemoteCloseMarksDisconnected(t *testing.T) {
	bus := event.NewEventBus(nil)
	go bus.Start()
	defer bus.Stop()
	alerts := bus.Subscribe(event.TypeAlert)

	port, accepted := printerServer(t)
	m := NewManager(testOptions(port), nil, bus, nil)

	if err := m.Connect(context.Background(), "127.0.0.1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case server := <-accepted:
		server.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("server did not accept")
	}

	waitFor(t, func() bool { return !m.IsConnected() })

	select {
	case ev := <-alerts:
		if ev.Data["title"] != "Network printer disconnected" {
			t.Errorf("unexpected alert %v", ev.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no alert published")
	}

	if err := m.Write(context.Background(), []byte("x")); !errors.Is(err, model.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after drop, got %v", err)
	}
}

func TestConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	m := NewManager(testOptions(port), nil, nil, nil)
	err = m.Connect(context.Background(), "127.0.0.1")

	var connErr *model.ConnectError
	if !errors.As(err, &connErr) || connErr.Transport != model.TransportNetwork {
		t.Fatalf("expected network ConnectError, got %v", err)
	}
	if m.IsConnected() {
		t.Fatal("manager should stay disconnected")
	}
	if m.AutoReconnect(context.Background(), "127.0.0.1") {
		t.Fatal("auto reconnect to a closed port should fail")
	}
	if err := m.Connect(context.Background(), "  "); err == nil {
		t.Fatal("empty host should be rejected")
	}
}

func TestDisconnectStopsWatcher(t *testing.T) {
	port, accepted := printerServer(t)
	m := NewManager(testOptions(port), nil, nil, nil)

	if err := m.Connect(context.Background(), "127.0.0.1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	server := <-accepted
	defer server.Close()

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if m.IsConnected() || m.State().Status != model.ConnectionStatusDisconnected {
		t.Fatalf("still connected: %+v", m.State())
	}
	if m.Host() != "127.0.0.1" {
		t.Errorf("last host forgotten: %q", m.Host())
	}
}

func TestHostsInSubnet(t *testing.T) {
	tests := []struct {
		cidr    string
		want    int
		first   string
		wantErr bool
	}{
		{"192.168.1.0/24", 254, "192.168.1.1", false},
		{"10.0.0.8/30", 2, "10.0.0.9", false},
		{"10.0.0.7/32", 1, "10.0.0.7", false},
		{"10.0.0.0/16", 0, "", true},
		{"fe80::/64", 0, "", true},
		{"nonsense", 0, "", true},
	}

	for _, tt := range tests {
		hosts, err := HostsInSubnet(tt.cidr)
		if (err != nil) != tt.wantErr {
			t.Errorf("HostsInSubnet(%q) error = %v", tt.cidr, err)
			continue
		}
		if tt.wantErr {
			continue
		}
		if len(hosts) != tt.want || hosts[0] != tt.first {
			t.Errorf("HostsInSubnet(%q) = %d hosts starting %v", tt.cidr, len(hosts), hosts[:1])
		}
	}
}

func TestScannerFindsListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	scanner := NewScanner(&config.NetworkConfig{
		Port:        port,
		ScanSubnet:  "127.0.0.0/30",
		ScanTimeout: 200 * time.Millisecond,
		ScanWorkers: 4,
	}, zap.NewNop())

	found, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(found) != 1 || found[0].Host != "127.0.0.1" || found[0].Port != port {
		t.Fatalf("unexpected scan result %+v", found)
	}
}
