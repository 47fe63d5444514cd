// internal/bluetooth/manager_test.go
package bluetooth

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pos-print-bridge/internal/codec"
	"pos-print-bridge/internal/event"
	"pos-print-bridge/internal/model"
	"pos-print-bridge/internal/preferences"
)

type fakeConn struct {
	mu       sync.Mutex
	writes   [][]byte
	failWith error
	closed   bool
}

func (c *fakeConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Join(c.writes, nil)
}

// encodedConn fails raw writes but accepts base64 payloads
type encodedConn struct {
	fakeConn
	decoded []byte
}

func (c *encodedConn) WriteEncoded(ctx context.Context, data []byte, encoding string) error {
	if encoding != EncodingBase64 {
		return errors.New("unexpected encoding")
	}
	decoded, err := codec.DecodeBase64(string(data))
	if err != nil {
		return err
	}
	c.decoded = decoded
	return nil
}

type fakePlatform struct {
	mu             sync.Mutex
	denyScan       bool
	bonded         []model.BluetoothDevice
	discovered     []model.BluetoothDevice
	connectErrs    []error
	connects       []bool
	discoverCalls  int
	cancelCalls    int
	disconnected   []string
	nextConnection Connection
}

func (p *fakePlatform) EnsureEnabled(ctx context.Context) error { return nil }

func (p *fakePlatform) RequestScanPermissions(ctx context.Context) (bool, error) {
	return !p.denyScan, nil
}

func (p *fakePlatform) BondedDevices(ctx context.Context) ([]model.BluetoothDevice, error) {
	return p.bonded, nil
}

func (p *fakePlatform) StartDiscovery(ctx context.Context, onFound func(model.BluetoothDevice)) ([]model.BluetoothDevice, error) {
	p.mu.Lock()
	p.discoverCalls++
	p.mu.Unlock()
	for _, d := range p.discovered {
		onFound(d)
	}
	return p.discovered, nil
}

func (p *fakePlatform) CancelDiscovery(ctx context.Context) error {
	p.mu.Lock()
	p.cancelCalls++
	p.mu.Unlock()
	return nil
}

func (p *fakePlatform) Connect(ctx context.Context, address string, secure bool) (Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.connects = append(p.connects, secure)
	if len(p.connectErrs) > 0 {
		err := p.connectErrs[0]
		p.connectErrs = p.connectErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if p.nextConnection != nil {
		return p.nextConnection, nil
	}
	return &fakeConn{}, nil
}

func (p *fakePlatform) DisconnectFromDevice(ctx context.Context, address string) error {
	p.mu.Lock()
	p.disconnected = append(p.disconnected, address)
	p.mu.Unlock()
	return nil
}

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

var refused = errors.New("connection refused")

func printers() []model.BluetoothDevice {
	return []model.BluetoothDevice{
		{ID: "AA:AA:AA:AA:AA:02", Address: "AA:AA:AA:AA:AA:02", Name: "Zebra", Bonded: true},
		{ID: "AA:AA:AA:AA:AA:01", Address: "AA:AA:AA:AA:AA:01", Name: "MTP-II", Bonded: true},
	}
}

func newTestManager(platform Platform, store preferences.Store, bus *event.EventBus) *Manager {
	return NewManager(platform, store, bus, Options{ChunkSize: 256}, nil)
}

func TestDiscoverMergesAndSelects(t *testing.T) {
	platform := &fakePlatform{
		bonded: printers(),
		discovered: []model.BluetoothDevice{
			{ID: "AA:AA:AA:AA:AA:01", Address: "AA:AA:AA:AA:AA:01", Name: "MTP-II"},
			{Address: "AA:AA:AA:AA:AA:03", Name: "alpha"},
		},
	}
	m := newTestManager(platform, nil, nil)

	devices, err := m.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(devices) != 3 {
		t.Fatalf("expected 3 unique devices, got %d: %+v", len(devices), devices)
	}
	wantOrder := []string{"alpha", "MTP-II", "Zebra"}
	for i, name := range wantOrder {
		if devices[i].Name != name {
			t.Errorf("device %d = %q, want %q", i, devices[i].Name, name)
		}
	}

	state := m.State()
	if state.SelectedID != "AA:AA:AA:AA:AA:03" {
		t.Errorf("first device not auto-selected: %q", state.SelectedID)
	}
	if state.Status != model.ConnectionStatusDisconnected {
		t.Errorf("status after discovery = %s", state.Status)
	}
	if platform.cancelCalls < 2 {
		t.Errorf("discovery should be cancelled before and after, got %d calls", platform.cancelCalls)
	}
}

func TestDiscoverPublishesDevices(t *testing.T) {
	bus := event.NewEventBus(nil)
	go bus.Start()
	defer bus.Stop()
	found := bus.Subscribe(event.TypeDeviceDiscovered)

	m := newTestManager(&fakePlatform{bonded: printers()[:1]}, nil, bus)
	if _, err := m.Discover(context.Background()); err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	select {
	case ev := <-found:
		if ev.Data["name"] != "Zebra" {
			t.Errorf("unexpected event data %v", ev.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no DEVICE_DISCOVERED event")
	}
}

func TestDiscoverPermissionDenied(t *testing.T) {
	platform := &fakePlatform{denyScan: true, discovered: printers()}
	m := newTestManager(platform, nil, nil)

	devices, err := m.Discover(context.Background())

	var permErr *model.PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
	if platform.discoverCalls != 0 || len(devices) != 0 {
		t.Fatalf("discovery should be skipped, calls=%d devices=%d", platform.discoverCalls, len(devices))
	}
}

func TestConnectFallsBackToSecure(t *testing.T) {
	platform := &fakePlatform{bonded: printers(), connectErrs: []error{refused}}
	store := &memoryStore{}
	m := newTestManager(platform, store, nil)
	ctx := context.Background()

	if _, err := m.Discover(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(ctx, "AA:AA:AA:AA:AA:02"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if len(platform.connects) != 2 || platform.connects[0] || !platform.connects[1] {
		t.Fatalf("expected insecure then secure attempt, got %v", platform.connects)
	}
	if !m.IsConnected() || m.State().Status != model.ConnectionStatusConnected {
		t.Fatalf("manager not connected: %+v", m.State())
	}

	prefs := store.Read(ctx)
	if prefs.BTAddress() != "AA:AA:AA:AA:AA:02" || prefs.BTName() != "Zebra" {
		t.Fatalf("printer not persisted: %v", prefs)
	}
}

func TestConnectFailures(t *testing.T) {
	ctx := context.Background()

	m := newTestManager(&fakePlatform{}, nil, nil)
	if err := m.Connect(ctx, "missing"); !errors.Is(err, model.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}

	platform := &fakePlatform{bonded: printers(), connectErrs: []error{refused, refused}}
	m = newTestManager(platform, nil, nil)
	if _, err := m.Discover(ctx); err != nil {
		t.Fatal(err)
	}

	err := m.Connect(ctx, "")
	var connErr *model.ConnectError
	if !errors.As(err, &connErr) || !errors.Is(err, refused) {
		t.Fatalf("expected ConnectError wrapping cause, got %v", err)
	}
	if m.IsConnected() || m.State().Status != model.ConnectionStatusDisconnected {
		t.Fatalf("manager should be disconnected: %+v", m.State())
	}
}

func TestConnectPublishesConnectionChange(t *testing.T) {
	bus := event.NewEventBus(nil)
	go bus.Start()
	defer bus.Stop()
	changes := bus.Subscribe(event.TypeConnectionChanged)

	m := newTestManager(&fakePlatform{bonded: printers()}, nil, bus)
	ctx := context.Background()
	if _, err := m.Discover(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(ctx, "AA:AA:AA:AA:AA:01"); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-changes:
		if ev.Data["connected"] != true || ev.Data["transport"] != "bluetooth" {
			t.Errorf("unexpected event data %v", ev.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no CONNECTION_CHANGED event")
	}
}

func TestWriteChunked(t *testing.T) {
	conn := &fakeConn{}
	m := newTestManager(&fakePlatform{bonded: printers(), nextConnection: conn}, nil, nil)
	ctx := context.Background()
	if _, err := m.Discover(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(ctx, "AA:AA:AA:AA:AA:01"); err != nil {
		t.Fatal(err)
	}

	data := bytes.Repeat([]byte{0x1B, 0x40, 'x'}, 200)
	if err := m.Write(ctx, data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if len(conn.writes) != 3 || len(conn.writes[0]) != 256 || len(conn.writes[2]) != 88 {
		t.Fatalf("unexpected chunking: %d writes", len(conn.writes))
	}
	if !bytes.Equal(conn.written(), data) {
		t.Fatal("written bytes differ from input")
	}
}

func TestWriteFallsBackToBase64(t *testing.T) {
	conn := &encodedConn{fakeConn: fakeConn{failWith: errors.New("broken pipe")}}
	m := newTestManager(&fakePlatform{bonded: printers(), nextConnection: conn}, nil, nil)
	ctx := context.Background()
	if _, err := m.Discover(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(ctx, "AA:AA:AA:AA:AA:01"); err != nil {
		t.Fatal(err)
	}

	data := []byte{0x1B, 0x40, 0x00, 0xFF, 'o', 'k'}
	if err := m.Write(ctx, data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !bytes.Equal(conn.decoded, data) {
		t.Fatalf("base64 tier delivered %v, want %v", conn.decoded, data)
	}
}

func TestWriteErrors(t *testing.T) {
	ctx := context.Background()

	m := newTestManager(&fakePlatform{}, nil, nil)
	if err := m.Write(ctx, []byte("x")); !errors.Is(err, model.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	cause := errors.New("socket closed")
	conn := &fakeConn{failWith: cause}
	m = newTestManager(&fakePlatform{bonded: printers(), nextConnection: conn}, nil, nil)
	if _, err := m.Discover(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(ctx, "AA:AA:AA:AA:AA:01"); err != nil {
		t.Fatal(err)
	}

	err := m.Write(ctx, []byte("x"))
	var writeErr *model.WriteError
	if !errors.As(err, &writeErr) || !errors.Is(err, cause) {
		t.Fatalf("expected WriteError wrapping cause, got %v", err)
	}
}

func TestDisconnectAlwaysDisconnected(t *testing.T) {
	conn := &fakeConn{}
	platform := &fakePlatform{bonded: printers(), nextConnection: conn}
	m := newTestManager(platform, nil, nil)
	ctx := context.Background()
	if _, err := m.Discover(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(ctx, "AA:AA:AA:AA:AA:01"); err != nil {
		t.Fatal(err)
	}

	if err := m.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if m.IsConnected() || !conn.closed {
		t.Fatal("connection not released")
	}
	if len(platform.disconnected) != 1 || platform.disconnected[0] != "AA:AA:AA:AA:AA:01" {
		t.Fatalf("platform link not dropped: %v", platform.disconnected)
	}
	if m.ActiveAddress() != "" {
		t.Fatalf("active address kept after disconnect: %q", m.ActiveAddress())
	}
	if m.Reconnect(ctx, "") {
		t.Fatal("reconnect after an explicit disconnect should not pick the released printer")
	}
	if len(platform.connects) != 1 {
		t.Fatalf("expected no new dial, got %d", len(platform.connects))
	}

	// disconnecting twice is harmless
	if err := m.Disconnect(ctx); err != nil {
		t.Fatalf("second Disconnect failed: %v", err)
	}
}

func TestAutoReconnect(t *testing.T) {
	// attempts 1 and 2 fail on both security levels, attempt 3 succeeds
	platform := &fakePlatform{connectErrs: []error{refused, refused, refused, refused}}
	m := newTestManager(platform, nil, nil)
	ctx := context.Background()

	if !m.AutoReconnect(ctx, "AA:AA:AA:AA:AA:01", 5) {
		t.Fatal("expected reconnect to succeed")
	}
	if len(platform.connects) != 5 {
		t.Fatalf("expected 5 dial attempts, got %d", len(platform.connects))
	}
	if m.ActiveAddress() != "AA:AA:AA:AA:AA:01" {
		t.Fatalf("active address = %q", m.ActiveAddress())
	}

	platform = &fakePlatform{connectErrs: []error{refused, refused}}
	m = newTestManager(platform, nil, nil)
	if m.AutoReconnect(ctx, "AA:AA:AA:AA:AA:01", 1) {
		t.Fatal("single attempt should fail")
	}
	if m.AutoReconnect(ctx, "", 5) {
		t.Fatal("empty address should not reconnect")
	}
}

func TestReconnectUsesActiveAddress(t *testing.T) {
	platform := &fakePlatform{bonded: printers()}
	m := newTestManager(platform, nil, nil)
	ctx := context.Background()

	if m.Reconnect(ctx, "") {
		t.Fatal("reconnect without a known printer should fail")
	}

	if _, err := m.Discover(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect(ctx, "AA:AA:AA:AA:AA:02"); err != nil {
		t.Fatal(err)
	}
	if !m.Reconnect(ctx, "") {
		t.Fatal("reconnect to active printer failed")
	}
	if m.State().ActiveAddress != "AA:AA:AA:AA:AA:02" {
		t.Fatalf("active address changed: %+v", m.State())
	}
}
