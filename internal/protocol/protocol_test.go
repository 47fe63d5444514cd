// internal/protocol/protocol_test.go
package protocol

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"pos-print-bridge/internal/model"
)

func TestCreateProtocolValidation(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name    string
		ct      model.ConnectionType
		config  map[string]interface{}
		wantErr bool
	}{
		{"tcp ok", model.ConnectionTypeTCP, map[string]interface{}{"host": "10.0.0.5"}, false},
		{"tcp missing host", model.ConnectionTypeTCP, map[string]interface{}{}, true},
		{"tcp bad port", model.ConnectionTypeTCP, map[string]interface{}{"host": "h", "port": 70000}, true},
		{"rfcomm ok", model.ConnectionTypeRFCOMM, map[string]interface{}{"address": "DD:0D:30:02:63:42"}, false},
		{"rfcomm bad mac", model.ConnectionTypeRFCOMM, map[string]interface{}{"address": "printer"}, true},
		{"rfcomm bad channel", model.ConnectionTypeRFCOMM, map[string]interface{}{"address": "DD:0D:30:02:63:42", "channel": 0}, true},
		{"tty ok", model.ConnectionTypeRFCOMMTTY, map[string]interface{}{"port": "/dev/rfcomm0"}, false},
		{"tty not a device", model.ConnectionTypeRFCOMMTTY, map[string]interface{}{"port": "COM3"}, true},
		{"unknown", model.ConnectionType("USB"), map[string]interface{}{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := CreateProtocol(tt.ct, tt.config, logger)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.GetProtocolType() != tt.ct {
				t.Errorf("protocol type = %s, want %s", p.GetProtocolType(), tt.ct)
			}
		})
	}
}

func TestTCPConnectionWriteAndRemoteClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		buf := make([]byte, 64)
		n, _ := io.ReadAtLeast(conn, buf, 3)
		received <- buf[:n]
		conn.Close()
	}()

	addr := ln.Addr().(*net.TCPAddr)
	conn := NewTCPConnection(&TCPConfig{
		Host:        "127.0.0.1",
		Port:        addr.Port,
		Timeout:     time.Second,
		ReadTimeout: 50 * time.Millisecond,
	}, zap.NewNop())

	ctx := context.Background()
	if err := conn.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close()

	if err := conn.Write(ctx, []byte{0x1B, 0x40, 'A'}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	select {
	case got := <-received:
		if string(got) != "\x1b@A" {
			t.Errorf("server received %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive data")
	}

	if stats := conn.Stats(); stats.BytesWritten != 3 || !stats.IsConnected {
		t.Errorf("unexpected stats %+v", stats)
	}

	// the peer closed; reads eventually fail with something other than a timeout
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := conn.Read(ctx, 16)
		if err != nil && !IsTimeout(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected a read error after remote close")
		}
	}
}

func TestTCPConnectionClosedWrite(t *testing.T) {
	conn := NewTCPConnection(&TCPConfig{Host: "127.0.0.1", Port: 9}, zap.NewNop())
	if err := conn.Write(context.Background(), []byte("x")); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
	if conn.IsOpen() {
		t.Error("new connection must not be open")
	}
}

func TestConnectOrAbandonKeepsOwnershipUntilConnectReturns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	entered := make(chan struct{})
	release := make(chan struct{})
	interrupted := make(chan struct{})
	abandoned := make(chan struct{})

	result := make(chan error, 1)
	go func() {
		result <- connectOrAbandon(ctx,
			func() error {
				close(entered)
				<-release
				return nil
			},
			func() { close(interrupted) },
			func() { close(abandoned) },
		)
	}()

	<-entered
	cancel()
	if err := <-result; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	<-interrupted

	select {
	case <-abandoned:
		t.Fatal("descriptor released while connect was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-abandoned:
	case <-time.After(time.Second):
		t.Fatal("abandoned connect never released the descriptor")
	}
}

func TestConnectOrAbandonReturnsConnectResult(t *testing.T) {
	refused := errors.New("connection refused")
	err := connectOrAbandon(context.Background(),
		func() error { return refused },
		func() { t.Error("interrupt called without cancellation") },
		func() { t.Error("abandon called without cancellation") },
	)
	if !errors.Is(err, refused) {
		t.Fatalf("expected connect error, got %v", err)
	}
}
