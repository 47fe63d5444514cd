//go:build linux

// internal/protocol/rfcomm_linux.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"pos-print-bridge/internal/model"
)

// Bluetooth socket option values from <bluetooth/bluetooth.h>
const (
	solBluetooth      = 0x112
	btSecurity        = 4
	btSecurityLow     = 1
	btSecurityMedium  = 2
	defaultRFCOMMChan = 1
)

// RFCOMMConnection implements DeviceProtocol over a raw RFCOMM socket
type RFCOMMConnection struct {
	config  *RFCOMMConfig
	file    *os.File
	logger  *zap.Logger
	mutex   sync.RWMutex
	isOpen  bool
	statsMu sync.Mutex
	stats   ProtocolStats
}

// NewRFCOMMConnection creates a new RFCOMM socket connection
func NewRFCOMMConnection(config *RFCOMMConfig, logger *zap.Logger) DeviceProtocol {
	if config.Channel <= 0 {
		config.Channel = defaultRFCOMMChan
	}
	return &RFCOMMConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "rfcomm"),
			zap.String("address", config.Address),
			zap.Int("channel", config.Channel),
			zap.Bool("secure", config.Secure),
		),
	}
}

// Open connects the socket. Insecure links request BT_SECURITY low, secure
// links request medium which makes the kernel authenticate and encrypt.
func (rc *RFCOMMConnection) Open(ctx context.Context) error {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if rc.isOpen {
		return nil
	}

	hw, err := net.ParseMAC(rc.config.Address)
	if err != nil {
		return fmt.Errorf("invalid MAC address %s: %w", rc.config.Address, err)
	}
	if len(hw) != 6 {
		return fmt.Errorf("MAC address must be 6 bytes, got %d", len(hw))
	}

	// SockaddrRFCOMM wants the address little-endian
	var addr [6]byte
	for i := 0; i < 6; i++ {
		addr[i] = hw[5-i]
	}

	rc.logger.Info("Opening RFCOMM socket")

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM, unix.BTPROTO_RFCOMM)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}

	level := byte(btSecurityLow)
	if rc.config.Secure {
		level = btSecurityMedium
	}
	if err := unix.SetsockoptString(fd, solBluetooth, btSecurity, string([]byte{level, 0})); err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to set security level: %w", err)
	}

	if rc.config.Timeout > 0 {
		tv := unix.NsecToTimeval(rc.config.Timeout.Nanoseconds())
		_ = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv)
	}

	err = connectOrAbandon(ctx,
		func() error {
			return unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: addr, Channel: uint8(rc.config.Channel)})
		},
		func() { _ = unix.Shutdown(fd, unix.SHUT_RDWR) },
		func() { unix.Close(fd) },
	)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if err != nil {
		unix.Close(fd)
		rc.logger.Error("Failed to open RFCOMM socket", zap.Error(err))
		return fmt.Errorf("failed to connect: %w", err)
	}

	rc.file = os.NewFile(uintptr(fd), "rfcomm:"+rc.config.Address)
	rc.isOpen = true

	rc.statsMu.Lock()
	rc.stats.IsConnected = true
	rc.stats.LastActivity = time.Now()
	rc.statsMu.Unlock()

	rc.logger.Info("RFCOMM socket connected", zap.Int("fd", fd))
	return nil
}

// Close syncs and closes the socket
func (rc *RFCOMMConnection) Close() error {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if !rc.isOpen || rc.file == nil {
		return nil
	}

	_ = rc.file.Sync()
	err := rc.file.Close()
	rc.file = nil
	rc.isOpen = false

	rc.statsMu.Lock()
	rc.stats.IsConnected = false
	rc.statsMu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to close RFCOMM socket: %w", err)
	}
	rc.logger.Info("RFCOMM socket closed")
	return nil
}

// IsOpen returns whether the connection is open
func (rc *RFCOMMConnection) IsOpen() bool {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()
	return rc.isOpen && rc.file != nil
}

// Write writes data to the socket
func (rc *RFCOMMConnection) Write(ctx context.Context, data []byte) error {
	rc.mutex.RLock()
	file := rc.file
	rc.mutex.RUnlock()

	if file == nil {
		return fmt.Errorf("RFCOMM write: %w", ErrNotOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	startTime := time.Now()
	n, err := file.Write(data)
	if err != nil {
		rc.statsMu.Lock()
		rc.stats.ErrorCount++
		rc.statsMu.Unlock()
		rc.logger.Error("RFCOMM write failed", zap.Error(err))
		return fmt.Errorf("failed to write to RFCOMM socket: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	rc.statsMu.Lock()
	rc.stats.recordWrite(n, time.Since(startTime))
	rc.statsMu.Unlock()
	return nil
}

// Read reads up to maxBytes from the socket
func (rc *RFCOMMConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	rc.mutex.RLock()
	file := rc.file
	rc.mutex.RUnlock()

	if file == nil {
		return nil, fmt.Errorf("RFCOMM read: %w", ErrNotOpen)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buffer := make([]byte, maxBytes)
	n, err := file.Read(buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to read from RFCOMM socket: %w", err)
	}

	rc.statsMu.Lock()
	rc.stats.BytesRead += int64(n)
	rc.stats.OperationCount++
	rc.stats.LastActivity = time.Now()
	rc.statsMu.Unlock()

	return buffer[:n], nil
}

// GetProtocolType returns the protocol type
func (rc *RFCOMMConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeRFCOMM
}

// Stats returns a snapshot of the connection statistics
func (rc *RFCOMMConnection) Stats() ProtocolStats {
	rc.statsMu.Lock()
	defer rc.statsMu.Unlock()
	return rc.stats
}
