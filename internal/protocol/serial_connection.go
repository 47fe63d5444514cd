// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"pos-print-bridge/internal/model"
)

// SerialConnection implements DeviceProtocol for an RFCOMM tty bound with
// `rfcomm bind`. The baud rate is ignored by the radio link but required by the driver.
type SerialConnection struct {
	config  *SerialConfig
	port    serial.Port
	logger  *zap.Logger
	mutex   sync.RWMutex
	isOpen  bool
	statsMu sync.Mutex
	stats   ProtocolStats
}

// IsTTYAddress reports whether address names a tty device rather than a MAC
func IsTTYAddress(address string) bool {
	return strings.HasPrefix(address, "/dev/")
}

// NewSerialConnection creates a new RFCOMM tty connection
func NewSerialConnection(config *SerialConfig, logger *zap.Logger) DeviceProtocol {
	return &SerialConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "rfcomm_tty"),
			zap.String("port", config.Port),
		),
	}
}

// Open opens the tty
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}

	sc.logger.Info("Opening RFCOMM tty", zap.Int("baud_rate", sc.config.BaudRate))

	mode := &serial.Mode{
		BaudRate: sc.config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(sc.config.Port, mode)
	if err != nil {
		sc.logger.Error("Failed to open RFCOMM tty", zap.Error(err))
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := port.SetReadTimeout(sc.config.Timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	sc.port = port
	sc.isOpen = true

	sc.statsMu.Lock()
	sc.stats.IsConnected = true
	sc.stats.LastActivity = time.Now()
	sc.statsMu.Unlock()

	sc.logger.Info("RFCOMM tty opened successfully")
	return nil
}

// Close drains pending output and closes the tty
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	_ = sc.port.Drain()
	err := sc.port.Close()
	sc.port = nil
	sc.isOpen = false

	sc.statsMu.Lock()
	sc.stats.IsConnected = false
	sc.statsMu.Unlock()

	if err != nil {
		sc.logger.Error("Failed to close RFCOMM tty", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.logger.Info("RFCOMM tty closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.isOpen && sc.port != nil
}

// Write writes data to the tty
func (sc *SerialConnection) Write(ctx context.Context, data []byte) error {
	sc.mutex.RLock()
	port := sc.port
	sc.mutex.RUnlock()

	if port == nil {
		return fmt.Errorf("serial write: %w", ErrNotOpen)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	startTime := time.Now()
	n, err := port.Write(data)
	if err != nil {
		sc.statsMu.Lock()
		sc.stats.ErrorCount++
		sc.statsMu.Unlock()
		sc.logger.Error("Serial write failed", zap.Error(err))
		return fmt.Errorf("failed to write to serial port: %w", err)
	}

	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	sc.statsMu.Lock()
	sc.stats.recordWrite(n, time.Since(startTime))
	sc.statsMu.Unlock()

	sc.logger.Debug("Serial write completed", zap.Int("bytes", len(data)))
	return nil
}

// Read reads up to maxBytes, returning an empty slice when the read timeout expires
func (sc *SerialConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	sc.mutex.RLock()
	port := sc.port
	sc.mutex.RUnlock()

	if port == nil {
		return nil, fmt.Errorf("serial read: %w", ErrNotOpen)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buffer := make([]byte, maxBytes)
	n, err := port.Read(buffer)
	if err != nil {
		sc.statsMu.Lock()
		sc.stats.ErrorCount++
		sc.statsMu.Unlock()
		return nil, fmt.Errorf("failed to read from serial port: %w", err)
	}

	sc.statsMu.Lock()
	sc.stats.BytesRead += int64(n)
	sc.stats.OperationCount++
	sc.stats.LastActivity = time.Now()
	sc.statsMu.Unlock()

	return buffer[:n], nil
}

// GetProtocolType returns the protocol type
func (sc *SerialConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeRFCOMMTTY
}

// Stats returns a snapshot of the connection statistics
func (sc *SerialConnection) Stats() ProtocolStats {
	sc.statsMu.Lock()
	defer sc.statsMu.Unlock()
	return sc.stats
}
