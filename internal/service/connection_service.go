// internal/service/connection_service.go
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"pos-print-bridge/internal/model"
	"pos-print-bridge/internal/preferences"
	"pos-print-bridge/internal/utils"
)

// mirrorer is implemented by stores that keep a public copy
type mirrorer interface {
	MirrorOnBoot(ctx context.Context)
}

// ConnectionService restores and releases printer links across the app lifecycle
type ConnectionService struct {
	bt          BluetoothTransport
	net         NetworkTransport
	prefs       preferences.Store
	bootRetries int
	logger      *utils.ServiceLogger
}

// NewConnectionService creates the lifecycle service
func NewConnectionService(bt BluetoothTransport, net NetworkTransport, prefs preferences.Store, bootRetries int, logger *zap.Logger) *ConnectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bootRetries < 1 {
		bootRetries = 1
	}
	return &ConnectionService{
		bt:          bt,
		net:         net,
		prefs:       prefs,
		bootRetries: bootRetries,
		logger:      utils.NewServiceLogger(logger, "connection-service"),
	}
}

// Boot discovers printers and reconnects the saved ones
func (s *ConnectionService) Boot(ctx context.Context) model.PrinterStatus {
	if m, ok := s.prefs.(mirrorer); ok {
		m.MirrorOnBoot(ctx)
	}

	if _, err := s.bt.Discover(ctx); err != nil {
		var permErr *model.PermissionError
		if errors.As(err, &permErr) || errors.Is(err, model.ErrUnsupportedPlatform) {
			s.logger.Warn("Bluetooth discovery unavailable at boot", zap.Error(err))
		} else {
			utils.LogError(s.logger.Logger, "Bluetooth discovery failed at boot", err)
		}
	}

	prefs := s.prefs.Read(ctx)

	if ip := prefs.IP(); ip != "" {
		s.net.AutoReconnect(ctx, ip)
	}
	if address := prefs.BTAddress(); address != "" {
		s.bt.AutoReconnect(ctx, address, s.bootRetries)
	}

	status := s.Status()
	s.logger.Info("Printer links restored", zap.String("status", status.Summary))
	return status
}

// Resume makes one attempt per transport that is not connected
func (s *ConnectionService) Resume(ctx context.Context) model.PrinterStatus {
	prefs := s.prefs.Read(ctx)

	if !s.bt.IsConnected() {
		if address := prefs.BTAddress(); address != "" {
			s.bt.AutoReconnect(ctx, address, 1)
		}
	}
	if !s.net.IsConnected() {
		if ip := prefs.IP(); ip != "" {
			s.net.AutoReconnect(ctx, ip)
		}
	}

	return s.Status()
}

// Shutdown releases both links. Errors are logged, never returned.
func (s *ConnectionService) Shutdown(ctx context.Context) {
	if err := s.bt.Close(ctx); err != nil {
		s.logger.Debug("Bluetooth shutdown failed", zap.Error(err))
	}
	if err := s.net.Close(ctx); err != nil {
		s.logger.Debug("Network shutdown failed", zap.Error(err))
	}
	s.logger.Info("Printer links released")
}

// Status reports both transports for the UI
func (s *ConnectionService) Status() model.PrinterStatus {
	bt := s.bt.State()
	network := s.net.State()

	return model.PrinterStatus{
		Summary:   model.ConnectionSummary(bt.Connected, network.Connected),
		Bluetooth: bt,
		Network:   network,
		CheckedAt: time.Now(),
	}
}
