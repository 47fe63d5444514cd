// internal/network/manager.go
package network

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pos-print-bridge/internal/config"
	"pos-print-bridge/internal/event"
	"pos-print-bridge/internal/model"
	"pos-print-bridge/internal/preferences"
	"pos-print-bridge/internal/protocol"
	"pos-print-bridge/internal/utils"
)

const watchReadSize = 256

// Options configures the raw TCP printer link
type Options struct {
	Port           int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// OptionsFromConfig builds Options from configuration
func OptionsFromConfig(cfg *config.NetworkConfig) Options {
	return Options{
		Port:           cfg.Port,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}
}

// Manager owns the network printer socket
type Manager struct {
	opts       Options
	prefs      preferences.Store
	bus        *event.EventBus
	logger     *utils.TransportLogger
	baseLogger *zap.Logger

	// connectMu serializes connect and disconnect
	connectMu sync.Mutex

	mu          sync.Mutex
	status      model.ConnectionStatus
	conn        protocol.DeviceProtocol
	host        string
	stopWatcher context.CancelFunc
	watcherDone chan struct{}

	connected atomic.Bool
}

// NewManager creates a network manager. prefs and bus may be nil.
func NewManager(opts Options, prefs preferences.Store, bus *event.EventBus, logger *zap.Logger) *Manager {
	if opts.Port == 0 {
		opts.Port = 9100
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		opts:       opts,
		prefs:      prefs,
		bus:        bus,
		logger:     utils.NewTransportLogger(logger, string(model.TransportNetwork)),
		baseLogger: logger,
		status:     model.ConnectionStatusDisconnected,
	}
}

// Connect opens a socket to host on the configured port and remembers the host
func (m *Manager) Connect(ctx context.Context, host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return fmt.Errorf("network host is required")
	}

	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.teardown()
	m.setStatus(model.ConnectionStatusConnecting)

	conn, err := protocol.CreateProtocol(model.ConnectionTypeTCP, map[string]interface{}{
		"host":          host,
		"port":          m.opts.Port,
		"timeout":       m.opts.ConnectTimeout,
		"read_timeout":  m.opts.ReadTimeout,
		"write_timeout": m.opts.WriteTimeout,
	}, m.baseLogger)
	if err == nil {
		err = conn.Open(ctx)
	}
	if err != nil {
		m.setStatus(model.ConnectionStatusDisconnected)
		connErr := &model.ConnectError{Transport: model.TransportNetwork, Target: host, Err: err}
		m.logger.LogConnection("connect", host, connErr)
		return connErr
	}

	watchCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.conn = conn
	m.host = host
	m.status = model.ConnectionStatusConnected
	m.stopWatcher = stop
	m.watcherDone = done
	m.mu.Unlock()

	go m.watch(watchCtx, conn, done)

	m.setConnected(true, host)
	m.logger.LogConnection("connect", host, nil)

	if m.prefs != nil {
		if err := m.prefs.Write(ctx, preferences.Preferences{preferences.KeyIP: host}); err != nil {
			m.logger.Warn("Failed to persist network printer", zap.Error(err))
		}
	}
	return nil
}

// Disconnect destroys the socket
func (m *Manager) Disconnect() error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	host := m.Host()
	m.teardown()
	m.logger.LogConnection("disconnect", host, nil)
	return nil
}

// Close is Disconnect for shutdown paths
func (m *Manager) Close(ctx context.Context) error {
	return m.Disconnect()
}

// IsConnected reports whether the socket is open
func (m *Manager) IsConnected() bool {
	return m.connected.Load()
}

// Host returns the current or last connected host
func (m *Manager) Host() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.host
}

// State returns a snapshot for status reporting
func (m *Manager) State() model.NetworkState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return model.NetworkState{
		Status:    m.status,
		Connected: m.connected.Load(),
		Host:      m.host,
		Port:      m.opts.Port,
	}
}

// Write sends data to the printer in one piece
func (m *Manager) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil || !m.IsConnected() {
		return model.ErrNotConnected
	}

	start := time.Now()
	if err := conn.Write(ctx, data); err != nil {
		if errors.Is(err, protocol.ErrNotOpen) {
			err = fmt.Errorf("%w: %w", model.ErrNotConnected, err)
		}
		writeErr := &model.WriteError{Transport: model.TransportNetwork, Err: err}
		m.logger.LogWrite("raw", len(data), time.Since(start), writeErr)
		return writeErr
	}

	m.logger.LogWrite("raw", len(data), time.Since(start), nil)
	return nil
}

// AutoReconnect makes a single connection attempt to a saved host
func (m *Manager) AutoReconnect(ctx context.Context, host string) bool {
	if m.IsConnected() {
		return true
	}
	if strings.TrimSpace(host) == "" {
		return false
	}
	if err := m.Connect(ctx, host); err != nil {
		m.logger.Warn("Network auto-reconnect failed", zap.String("host", host), zap.Error(err))
		return false
	}
	return true
}

// watch reads the socket until it fails, then marks the link down
func (m *Manager) watch(ctx context.Context, conn protocol.DeviceProtocol, done chan struct{}) {
	defer close(done)

	for {
		data, err := conn.Read(ctx, watchReadSize)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			if len(data) > 0 {
				m.logger.Debug("Printer sent data", zap.Int("bytes", len(data)))
			}
			continue
		}
		if protocol.IsTimeout(err) {
			continue
		}

		m.drop(conn, err)
		return
	}
}

// drop handles a socket that failed underneath us
func (m *Manager) drop(conn protocol.DeviceProtocol, cause error) {
	m.mu.Lock()
	current := m.conn == conn
	host := m.host
	if current {
		m.conn = nil
		m.stopWatcher = nil
		m.watcherDone = nil
		m.status = model.ConnectionStatusDisconnected
	}
	m.mu.Unlock()

	_ = conn.Close()
	if !current {
		return
	}

	m.setConnected(false, host)
	m.logger.LogConnection("socket", host, cause)
	m.publish(event.TypeAlert, map[string]interface{}{
		"title":   "Network printer disconnected",
		"message": cause.Error(),
	})
}

// teardown stops the watcher and closes the socket. Caller holds connectMu.
func (m *Manager) teardown() {
	m.mu.Lock()
	conn, host := m.conn, m.host
	stop, done := m.stopWatcher, m.watcherDone
	m.conn = nil
	m.stopWatcher = nil
	m.watcherDone = nil
	m.status = model.ConnectionStatusDisconnected
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Debug("Failed to close socket", zap.Error(err))
		}
	}
	if done != nil {
		<-done
	}
	if conn != nil {
		m.setConnected(false, host)
	}
}

func (m *Manager) setStatus(status model.ConnectionStatus) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

// setConnected is the single place the connected flag changes
func (m *Manager) setConnected(connected bool, host string) {
	if m.connected.Swap(connected) == connected {
		return
	}
	m.publish(event.TypeConnectionChanged, map[string]interface{}{
		"transport": string(model.TransportNetwork),
		"connected": connected,
		"host":      host,
	})
}

func (m *Manager) publish(eventType string, data map[string]interface{}) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(event.NewEvent(eventType, "network", data))
}
