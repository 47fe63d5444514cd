// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"pos-print-bridge/internal/model"
)

// TCPConnection implements DeviceProtocol for raw TCP printers
type TCPConnection struct {
	config  *TCPConfig
	conn    net.Conn
	logger  *zap.Logger
	mutex   sync.RWMutex
	isOpen  bool
	statsMu sync.Mutex
	stats   ProtocolStats
}

// NewTCPConnection creates a new TCP connection
func NewTCPConnection(config *TCPConfig, logger *zap.Logger) DeviceProtocol {
	return &TCPConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "tcp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
	}
}

// Open opens the TCP connection
func (tc *TCPConnection) Open(ctx context.Context) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.isOpen {
		return nil
	}

	tc.logger.Info("Opening TCP connection")

	dialer := &net.Dialer{
		Timeout:   tc.config.Timeout,
		KeepAlive: 30 * time.Second,
	}

	address := net.JoinHostPort(tc.config.Host, strconv.Itoa(tc.config.Port))
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		tc.logger.Error("Failed to open TCP connection", zap.Error(err))
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok && tc.config.KeepAlive {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(30 * time.Second)
	}

	tc.conn = conn
	tc.isOpen = true

	tc.statsMu.Lock()
	tc.stats.IsConnected = true
	tc.stats.LastActivity = time.Now()
	tc.statsMu.Unlock()

	tc.logger.Info("TCP connection opened successfully")
	return nil
}

// Close closes the TCP connection. Blocked reads return immediately.
func (tc *TCPConnection) Close() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return nil
	}

	err := tc.conn.Close()
	tc.conn = nil
	tc.isOpen = false

	tc.statsMu.Lock()
	tc.stats.IsConnected = false
	tc.statsMu.Unlock()

	if err != nil {
		tc.logger.Error("Failed to close TCP connection", zap.Error(err))
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}

	tc.logger.Info("TCP connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (tc *TCPConnection) IsOpen() bool {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	return tc.isOpen && tc.conn != nil
}

// Write writes data to the TCP connection unchunked
func (tc *TCPConnection) Write(ctx context.Context, data []byte) error {
	conn := tc.current()
	if conn == nil {
		return fmt.Errorf("TCP write: %w", ErrNotOpen)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if tc.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(tc.config.WriteTimeout))
	}

	startTime := time.Now()
	n, err := conn.Write(data)
	if err != nil {
		tc.statsMu.Lock()
		tc.stats.ErrorCount++
		tc.statsMu.Unlock()
		tc.logger.Error("TCP write failed", zap.Error(err))
		return fmt.Errorf("failed to write to TCP connection: %w", err)
	}

	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	tc.statsMu.Lock()
	tc.stats.recordWrite(n, time.Since(startTime))
	tc.statsMu.Unlock()

	tc.logger.Debug("TCP write completed", zap.Int("bytes", len(data)))
	return nil
}

// Read reads up to maxBytes. A read deadline expiry is reported as a timeout
// error (see IsTimeout) and leaves the connection usable.
func (tc *TCPConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	conn := tc.current()
	if conn == nil {
		return nil, fmt.Errorf("TCP read: %w", ErrNotOpen)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if tc.config.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(tc.config.ReadTimeout))
	}

	buffer := make([]byte, maxBytes)
	n, err := conn.Read(buffer)
	if err != nil {
		if !IsTimeout(err) {
			tc.statsMu.Lock()
			tc.stats.ErrorCount++
			tc.statsMu.Unlock()
		}
		return nil, fmt.Errorf("failed to read from TCP connection: %w", err)
	}

	tc.statsMu.Lock()
	tc.stats.BytesRead += int64(n)
	tc.stats.OperationCount++
	tc.stats.LastActivity = time.Now()
	tc.statsMu.Unlock()

	return buffer[:n], nil
}

// GetProtocolType returns the protocol type
func (tc *TCPConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeTCP
}

// Stats returns a snapshot of the connection statistics
func (tc *TCPConnection) Stats() ProtocolStats {
	tc.statsMu.Lock()
	defer tc.statsMu.Unlock()
	return tc.stats
}

// current returns the live socket without holding the lock during I/O
func (tc *TCPConnection) current() net.Conn {
	tc.mutex.RLock()
	defer tc.mutex.RUnlock()
	if !tc.isOpen {
		return nil
	}
	return tc.conn
}
