// internal/bluetooth/manager.go
package bluetooth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pos-print-bridge/internal/codec"
	"pos-print-bridge/internal/config"
	"pos-print-bridge/internal/event"
	"pos-print-bridge/internal/fallback"
	"pos-print-bridge/internal/model"
	"pos-print-bridge/internal/preferences"
	"pos-print-bridge/internal/utils"
)

// Options tunes connection timing and write chunking
type Options struct {
	ChunkSize             int
	ConnectSettle         time.Duration
	ReconnectSettleBefore time.Duration
	ReconnectSettleAfter  time.Duration
	RetryInterval         time.Duration
}

// DefaultOptions returns the timings used by printers in the field
func DefaultOptions() Options {
	return Options{
		ChunkSize:             codec.DefaultChunkSize,
		ConnectSettle:         300 * time.Millisecond,
		ReconnectSettleBefore: 150 * time.Millisecond,
		ReconnectSettleAfter:  200 * time.Millisecond,
		RetryInterval:         500 * time.Millisecond,
	}
}

// OptionsFromConfig builds Options from configuration
func OptionsFromConfig(cfg *config.BluetoothConfig, chunkSize int) Options {
	return Options{
		ChunkSize:             chunkSize,
		ConnectSettle:         cfg.ConnectSettle,
		ReconnectSettleBefore: cfg.ReconnectSettleBefore,
		ReconnectSettleAfter:  cfg.ReconnectSettleAfter,
		RetryInterval:         cfg.RetryInterval,
	}
}

type writeRequest struct {
	address string
	conn    Connection
	data    []byte
}

// Manager owns the Bluetooth printer connection
type Manager struct {
	platform Platform
	prefs    preferences.Store
	bus      *event.EventBus
	opts     Options
	logger   *utils.TransportLogger
	writes   *fallback.Chain[writeRequest, struct{}]
	dials    *fallback.Chain[string, Connection]

	// connectMu serializes connect and disconnect
	connectMu sync.Mutex

	mu            sync.Mutex
	status        model.ConnectionStatus
	devices       []model.BluetoothDevice
	selectedID    string
	conn          Connection
	activeAddress string
	activeName    string

	connected atomic.Bool
}

// NewManager creates a Bluetooth manager. prefs and bus may be nil.
func NewManager(platform Platform, prefs preferences.Store, bus *event.EventBus, opts Options, logger *zap.Logger) *Manager {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = codec.DefaultChunkSize
	}

	m := &Manager{
		platform: platform,
		prefs:    prefs,
		bus:      bus,
		opts:     opts,
		logger:   utils.NewTransportLogger(logger, string(model.TransportBluetooth)),
		status:   model.ConnectionStatusDisconnected,
	}

	m.writes = fallback.NewChain(
		fallback.Strategy[writeRequest, struct{}]{Name: "device-write", Try: m.writeByAddress},
		fallback.Strategy[writeRequest, struct{}]{Name: "chunked", Try: m.writeChunked},
		fallback.Strategy[writeRequest, struct{}]{Name: "base64", Try: m.writeBase64},
	)
	m.dials = fallback.NewChain(
		fallback.Strategy[string, Connection]{Name: "insecure", Try: func(ctx context.Context, address string) (Connection, error) {
			return m.platform.Connect(ctx, address, false)
		}},
		fallback.Strategy[string, Connection]{Name: "secure", Try: func(ctx context.Context, address string) (Connection, error) {
			return m.platform.Connect(ctx, address, true)
		}},
	)

	return m
}

// Discover scans for printers and merges bonded and discovered devices
func (m *Manager) Discover(ctx context.Context) ([]model.BluetoothDevice, error) {
	if err := m.platform.EnsureEnabled(ctx); err != nil {
		return m.Devices(), fmt.Errorf("failed to enable bluetooth: %w", err)
	}

	granted, err := m.platform.RequestScanPermissions(ctx)
	if err != nil || !granted {
		permErr := &model.PermissionError{Permission: "bluetooth_scan", Err: err}
		m.logger.Warn("Bluetooth discovery skipped", zap.Error(permErr))
		return m.Devices(), permErr
	}

	if err := m.platform.CancelDiscovery(ctx); err != nil {
		m.logger.Debug("Cancel discovery failed", zap.Error(err))
	}

	m.setStatus(model.ConnectionStatusDiscovering)
	defer func() {
		if err := m.platform.CancelDiscovery(context.Background()); err != nil {
			m.logger.Debug("Cancel discovery failed", zap.Error(err))
		}
		m.restoreStatus()
	}()

	bonded, err := m.platform.BondedDevices(ctx)
	if err != nil {
		m.logger.Warn("Failed to list bonded devices", zap.Error(err))
	}
	m.merge(bonded)

	found, scanErr := m.platform.StartDiscovery(ctx, func(device model.BluetoothDevice) {
		m.merge([]model.BluetoothDevice{device})
	})
	m.merge(found)
	m.autoSelect()

	devices := m.Devices()
	m.logger.Info("Bluetooth discovery finished",
		zap.Int("bonded", len(bonded)),
		zap.Int("devices", len(devices)),
	)

	if scanErr != nil && !errors.Is(scanErr, context.Canceled) {
		return devices, fmt.Errorf("bluetooth discovery failed: %w", scanErr)
	}
	return devices, nil
}

// Devices returns the merged device list sorted by name
func (m *Manager) Devices() []model.BluetoothDevice {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]model.BluetoothDevice, len(m.devices))
	copy(devices, m.devices)
	return devices
}

// Select marks a known device as the connect target
func (m *Manager) Select(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookupLocked(id); !ok {
		return fmt.Errorf("%w: %s", model.ErrDeviceNotFound, id)
	}
	m.selectedID = id
	return nil
}

// Connect opens an RFCOMM link to a known device, insecure first then secure.
// An empty id connects the selected device.
func (m *Manager) Connect(ctx context.Context, id string) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if err := m.platform.CancelDiscovery(ctx); err != nil {
		m.logger.Debug("Cancel discovery failed", zap.Error(err))
	}

	m.mu.Lock()
	if id == "" {
		id = m.selectedID
	}
	device, ok := m.lookupLocked(id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrDeviceNotFound, id)
	}

	address := device.ResolveAddress()
	m.setStatus(model.ConnectionStatusConnecting)

	conn, err := m.dial(ctx, address)
	if err != nil {
		m.setStatus(model.ConnectionStatusDisconnected)
		m.setConnected(false, address)
		connErr := &model.ConnectError{Transport: model.TransportBluetooth, Target: address, Err: err}
		m.logger.LogConnection("connect", address, connErr)
		return connErr
	}

	m.attach(conn, address, device.Name)
	m.logger.LogConnection("connect", address, nil)

	if m.prefs != nil {
		if err := m.prefs.Write(ctx, preferences.Preferences{
			preferences.KeyBTAddress: address,
			preferences.KeyBTName:    device.Name,
		}); err != nil {
			m.logger.Warn("Failed to persist bluetooth printer", zap.Error(err))
		}
	}

	return utils.Sleep(ctx, m.opts.ConnectSettle)
}

// Disconnect releases the link. The manager always ends up disconnected.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	conn, address := m.conn, m.activeAddress
	m.conn = nil
	m.activeAddress = ""
	m.activeName = ""
	m.status = model.ConnectionStatusDisconnected
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Disconnect(); err != nil {
			m.logger.Debug("Failed to close bluetooth connection", zap.Error(err))
		}
	}
	if address != "" {
		if err := m.platform.DisconnectFromDevice(ctx, address); err != nil {
			m.logger.Debug("Failed to drop bluetooth link", zap.String("address", address), zap.Error(err))
		}
	}

	m.setConnected(false, address)
	m.logger.LogConnection("disconnect", address, nil)
	return nil
}

// IsConnected reports whether a printer link is open
func (m *Manager) IsConnected() bool {
	return m.connected.Load()
}

// ActiveAddress returns the address of the connected printer, empty after Disconnect
func (m *Manager) ActiveAddress() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeAddress
}

// State returns a snapshot for status reporting
func (m *Manager) State() model.BluetoothState {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]model.BluetoothDevice, len(m.devices))
	copy(devices, m.devices)

	return model.BluetoothState{
		Status:        m.status,
		Connected:     m.connected.Load(),
		Devices:       devices,
		SelectedID:    m.selectedID,
		ActiveAddress: m.activeAddress,
	}
}

// CancelDiscovery stops a running scan
func (m *Manager) CancelDiscovery(ctx context.Context) error {
	err := m.platform.CancelDiscovery(ctx)
	m.restoreStatus()
	return err
}

// Write sends data through the first write method the platform supports
func (m *Manager) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	req := writeRequest{address: m.activeAddress, conn: m.conn, data: data}
	m.mu.Unlock()

	if !m.IsConnected() || req.conn == nil {
		return model.ErrNotConnected
	}

	start := time.Now()
	result, err := m.writes.Run(ctx, req)
	if err != nil {
		if errors.Is(err, fallback.ErrExhausted) && allSkipped(result.Attempts) {
			m.logger.LogWrite("none", len(data), time.Since(start), model.ErrNoWriteMethod)
			return model.ErrNoWriteMethod
		}
		writeErr := &model.WriteError{Transport: model.TransportBluetooth, Err: err}
		m.logger.LogWrite("exhausted", len(data), time.Since(start), writeErr)
		return writeErr
	}

	m.logger.LogWrite(result.Winner, len(data), time.Since(start), nil)
	return nil
}

// Reconnect quickly re-opens the link to address, or to the last active printer
func (m *Manager) Reconnect(ctx context.Context, address string) bool {
	if address == "" {
		address = m.ActiveAddress()
	}
	if address == "" {
		return false
	}

	if err := m.platform.CancelDiscovery(ctx); err != nil {
		m.logger.Debug("Cancel discovery failed", zap.Error(err))
	}
	if err := utils.Sleep(ctx, m.opts.ReconnectSettleBefore); err != nil {
		return false
	}

	if !m.connectAddress(ctx, address) {
		return false
	}
	return utils.Sleep(ctx, m.opts.ReconnectSettleAfter) == nil
}

// AutoReconnect tries to restore the link to a saved printer up to attempts times
func (m *Manager) AutoReconnect(ctx context.Context, address string, attempts int) bool {
	if address == "" {
		return false
	}

	for i := 0; i < attempts; i++ {
		if m.IsConnected() {
			return true
		}
		if i > 0 {
			if err := utils.Sleep(ctx, m.opts.RetryInterval); err != nil {
				return false
			}
		}
		if m.connectAddress(ctx, address) {
			m.logger.Info("Bluetooth printer restored",
				zap.String("address", address),
				zap.Int("attempt", i+1),
			)
			return true
		}
	}

	m.logger.Warn("Bluetooth auto-reconnect gave up",
		zap.String("address", address),
		zap.Int("attempts", attempts),
	)
	return false
}

// Close cancels discovery and drops the link
func (m *Manager) Close(ctx context.Context) error {
	if err := m.platform.CancelDiscovery(ctx); err != nil {
		m.logger.Debug("Cancel discovery failed", zap.Error(err))
	}
	return m.Disconnect(ctx)
}

func (m *Manager) connectAddress(ctx context.Context, address string) bool {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	conn, err := m.dial(ctx, address)
	if err != nil {
		m.logger.LogConnection("reconnect", address, err)
		return false
	}

	m.mu.Lock()
	name := m.activeName
	if device, ok := m.lookupLocked(address); ok && device.Name != "" {
		name = device.Name
	}
	m.mu.Unlock()

	m.attach(conn, address, name)
	m.logger.LogConnection("reconnect", address, nil)
	return true
}

func (m *Manager) dial(ctx context.Context, address string) (Connection, error) {
	result, err := m.dials.Run(ctx, address)
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}

// attach swaps in a new connection, closing any previous one
func (m *Manager) attach(conn Connection, address, name string) {
	m.mu.Lock()
	previous := m.conn
	m.conn = conn
	m.activeAddress = address
	m.activeName = name
	m.status = model.ConnectionStatusConnected
	m.mu.Unlock()

	if previous != nil && previous != conn {
		if err := previous.Disconnect(); err != nil {
			m.logger.Debug("Failed to close previous connection", zap.Error(err))
		}
	}
	m.setConnected(true, address)
}

func (m *Manager) writeByAddress(ctx context.Context, req writeRequest) (struct{}, error) {
	writer, ok := m.platform.(AddressWriter)
	if !ok || req.address == "" {
		return struct{}{}, fallback.ErrSkip
	}
	return struct{}{}, writer.WriteToDevice(ctx, req.address, req.data, EncodingBinary)
}

func (m *Manager) writeChunked(ctx context.Context, req writeRequest) (struct{}, error) {
	if req.conn == nil {
		return struct{}{}, fallback.ErrSkip
	}
	return struct{}{}, codec.WriteChunked(ctx, req.data, m.opts.ChunkSize, req.conn.Write)
}

func (m *Manager) writeBase64(ctx context.Context, req writeRequest) (struct{}, error) {
	encoded := []byte(codec.EncodeBase64(req.data))

	if writer, ok := m.platform.(AddressWriter); ok && req.address != "" {
		return struct{}{}, writer.WriteToDevice(ctx, req.address, encoded, EncodingBase64)
	}
	if writer, ok := req.conn.(EncodedWriter); ok {
		return struct{}{}, writer.WriteEncoded(ctx, encoded, EncodingBase64)
	}
	return struct{}{}, fallback.ErrSkip
}

// merge adds or refreshes devices, keeping the list sorted by name
func (m *Manager) merge(devices []model.BluetoothDevice) {
	if len(devices) == 0 {
		return
	}

	var added []model.BluetoothDevice

	m.mu.Lock()
	for _, device := range devices {
		key := device.Key()
		if key == "" {
			continue
		}

		existing := -1
		for i := range m.devices {
			if m.devices[i].Key() == key {
				existing = i
				break
			}
		}

		if existing < 0 {
			m.devices = append(m.devices, device)
			added = append(added, device)
			continue
		}

		current := &m.devices[existing]
		if current.Name == "" {
			current.Name = device.Name
		}
		if current.Address == "" {
			current.Address = device.Address
		}
		current.Bonded = current.Bonded || device.Bonded
	}

	sort.SliceStable(m.devices, func(i, j int) bool {
		a, b := strings.ToLower(m.devices[i].Name), strings.ToLower(m.devices[j].Name)
		if a != b {
			return a < b
		}
		return m.devices[i].Key() < m.devices[j].Key()
	})
	m.mu.Unlock()

	for _, device := range added {
		m.publish(event.TypeDeviceDiscovered, map[string]interface{}{
			"id":      device.ID,
			"address": device.Address,
			"name":    device.Name,
			"bonded":  device.Bonded,
		})
	}
}

func (m *Manager) autoSelect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.selectedID == "" && len(m.devices) > 0 {
		m.selectedID = m.devices[0].Key()
	}
}

func (m *Manager) lookupLocked(id string) (model.BluetoothDevice, bool) {
	if id == "" {
		return model.BluetoothDevice{}, false
	}
	for _, device := range m.devices {
		if device.Key() == id || device.Address == id {
			return device, true
		}
	}
	return model.BluetoothDevice{}, false
}

func (m *Manager) setStatus(status model.ConnectionStatus) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

// restoreStatus leaves the discovering state
func (m *Manager) restoreStatus() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != model.ConnectionStatusDiscovering {
		return
	}
	if m.connected.Load() {
		m.status = model.ConnectionStatusConnected
	} else {
		m.status = model.ConnectionStatusDisconnected
	}
}

// setConnected is the single place the connected flag changes
func (m *Manager) setConnected(connected bool, address string) {
	if m.connected.Swap(connected) == connected {
		return
	}
	m.publish(event.TypeConnectionChanged, map[string]interface{}{
		"transport": string(model.TransportBluetooth),
		"connected": connected,
		"address":   address,
	})
}

func (m *Manager) publish(eventType string, data map[string]interface{}) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(event.NewEvent(eventType, "bluetooth", data))
}

func allSkipped(attempts []fallback.Attempt) bool {
	for _, a := range attempts {
		if !a.Skipped {
			return false
		}
	}
	return true
}
