//go:build linux

// internal/bluetooth/bluez_linux.go
package bluetooth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/muka/go-bluetooth/api"
	"github.com/muka/go-bluetooth/bluez/profile/adapter"
	"github.com/muka/go-bluetooth/bluez/profile/device"
	"go.uber.org/zap"

	"pos-print-bridge/internal/codec"
	"pos-print-bridge/internal/config"
	"pos-print-bridge/internal/model"
	"pos-print-bridge/internal/protocol"
)

// BlueZPlatform drives the host adapter over D-Bus and opens RFCOMM links
type BlueZPlatform struct {
	config *config.BluetoothConfig
	logger *zap.Logger

	mu         sync.Mutex
	conns      map[string]*protocolConnection
	stopSearch func()
}

// NewBlueZPlatform creates the Linux Bluetooth platform
func NewBlueZPlatform(cfg *config.BluetoothConfig, logger *zap.Logger) Platform {
	if !cfg.Enabled {
		return UnavailablePlatform{}
	}
	return &BlueZPlatform{
		config: cfg,
		logger: logger.With(zap.String("component", "bluez")),
		conns:  make(map[string]*protocolConnection),
	}
}

// EnsureEnabled powers the default adapter on
func (p *BlueZPlatform) EnsureEnabled(ctx context.Context) error {
	a, err := adapter.GetDefaultAdapter()
	if err != nil {
		return fmt.Errorf("no bluetooth adapter: %w", err)
	}

	powered, err := a.GetPowered()
	if err != nil {
		return fmt.Errorf("failed to read adapter state: %w", err)
	}
	if powered {
		return nil
	}

	p.logger.Info("Powering bluetooth adapter on")
	return a.SetPowered(true)
}

// RequestScanPermissions checks that the D-Bus policy lets us drive the adapter
func (p *BlueZPlatform) RequestScanPermissions(ctx context.Context) (bool, error) {
	a, err := adapter.GetDefaultAdapter()
	if err != nil {
		return false, err
	}
	if _, err := a.GetDiscovering(); err != nil {
		if strings.Contains(err.Error(), "AccessDenied") {
			return false, err
		}
		return false, fmt.Errorf("failed to query adapter: %w", err)
	}
	return true, nil
}

// BondedDevices lists paired devices known to the adapter plus bound RFCOMM ttys
func (p *BlueZPlatform) BondedDevices(ctx context.Context) ([]model.BluetoothDevice, error) {
	bonded, err := BoundPorts()
	if err != nil {
		p.logger.Debug("Failed to list RFCOMM ttys", zap.Error(err))
	}

	a, err := adapter.GetDefaultAdapter()
	if err != nil {
		return bonded, err
	}

	devices, err := a.GetDevices()
	if err != nil {
		return bonded, fmt.Errorf("failed to list devices: %w", err)
	}

	for _, dev := range devices {
		if dev.Properties == nil || !dev.Properties.Paired {
			continue
		}
		bonded = append(bonded, toModel(dev))
	}
	return bonded, nil
}

// StartDiscovery scans until the configured scan timeout or ctx ends
func (p *BlueZPlatform) StartDiscovery(ctx context.Context, onFound func(model.BluetoothDevice)) ([]model.BluetoothDevice, error) {
	a, err := adapter.GetDefaultAdapter()
	if err != nil {
		return nil, err
	}

	discovery, cancel, err := api.Discover(a, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start discovery: %w", err)
	}
	p.mu.Lock()
	p.stopSearch = cancel
	p.mu.Unlock()
	defer p.CancelDiscovery(context.Background())

	timeout := p.config.ScanTimeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var found []model.BluetoothDevice
	for {
		select {
		case <-ctx.Done():
			return found, ctx.Err()
		case <-timer.C:
			return found, nil
		case ev, ok := <-discovery:
			if !ok {
				return found, nil
			}
			if ev.Type == adapter.DeviceRemoved {
				continue
			}

			dev, err := device.NewDevice1(ev.Path)
			if err != nil || dev == nil || dev.Properties == nil {
				continue
			}

			d := toModel(dev)
			found = append(found, d)
			if onFound != nil {
				onFound(d)
			}
		}
	}
}

// CancelDiscovery stops a running scan
func (p *BlueZPlatform) CancelDiscovery(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.stopSearch
	p.stopSearch = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Connect opens an RFCOMM socket, or the bound tty when address is a device path
func (p *BlueZPlatform) Connect(ctx context.Context, address string, secure bool) (Connection, error) {
	var (
		proto protocol.DeviceProtocol
		err   error
	)

	if protocol.IsTTYAddress(address) {
		proto, err = protocol.CreateProtocol(model.ConnectionTypeRFCOMMTTY, map[string]interface{}{
			"port":      address,
			"baud_rate": p.config.TTYBaudRate,
		}, p.logger)
	} else {
		proto, err = protocol.CreateProtocol(model.ConnectionTypeRFCOMM, map[string]interface{}{
			"address": address,
			"channel": p.config.Channel,
			"secure":  secure,
			"timeout": p.config.ConnectTimeout,
		}, p.logger)
	}
	if err != nil {
		return nil, err
	}

	if err := proto.Open(ctx); err != nil {
		return nil, err
	}

	conn := &protocolConnection{proto: proto, address: address, platform: p}

	p.mu.Lock()
	previous := p.conns[address]
	p.conns[address] = conn
	p.mu.Unlock()

	if previous != nil {
		_ = previous.proto.Close()
	}
	return conn, nil
}

// WriteToDevice writes to the open link for address
func (p *BlueZPlatform) WriteToDevice(ctx context.Context, address string, data []byte, encoding string) error {
	p.mu.Lock()
	conn := p.conns[address]
	p.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("%w: %s", model.ErrNotConnected, address)
	}
	return conn.WriteEncoded(ctx, data, encoding)
}

// DisconnectFromDevice closes our link and asks BlueZ to drop the ACL link
func (p *BlueZPlatform) DisconnectFromDevice(ctx context.Context, address string) error {
	p.mu.Lock()
	conn := p.conns[address]
	delete(p.conns, address)
	p.mu.Unlock()

	if conn != nil {
		_ = conn.proto.Close()
	}
	if protocol.IsTTYAddress(address) {
		return nil
	}

	a, err := adapter.GetDefaultAdapter()
	if err != nil {
		return err
	}
	devices, err := a.GetDevices()
	if err != nil {
		return err
	}
	for _, dev := range devices {
		if dev.Properties != nil && strings.EqualFold(dev.Properties.Address, address) {
			return dev.Disconnect()
		}
	}
	return nil
}

func (p *BlueZPlatform) release(address string, conn *protocolConnection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conns[address] == conn {
		delete(p.conns, address)
	}
}

// protocolConnection adapts a DeviceProtocol to Connection
type protocolConnection struct {
	proto    protocol.DeviceProtocol
	address  string
	platform *BlueZPlatform
}

func (c *protocolConnection) Write(ctx context.Context, data []byte) error {
	return c.proto.Write(ctx, data)
}

func (c *protocolConnection) WriteEncoded(ctx context.Context, data []byte, encoding string) error {
	if encoding == EncodingBase64 {
		decoded, err := codec.DecodeBase64(string(data))
		if err != nil {
			return fmt.Errorf("invalid base64 payload: %w", err)
		}
		data = decoded
	}
	return c.proto.Write(ctx, data)
}

func (c *protocolConnection) Disconnect() error {
	c.platform.release(c.address, c)
	return c.proto.Close()
}

func toModel(dev *device.Device1) model.BluetoothDevice {
	name := dev.Properties.Name
	if name == "" {
		name = dev.Properties.Alias
	}
	return model.BluetoothDevice{
		ID:      dev.Properties.Address,
		Address: dev.Properties.Address,
		Name:    name,
		Bonded:  dev.Properties.Paired,
	}
}
