//go:build !linux

// internal/bluetooth/bluez_other.go
package bluetooth

import (
	"go.uber.org/zap"

	"pos-print-bridge/internal/config"
)

// NewBlueZPlatform returns a platform that reports Bluetooth as unsupported
func NewBlueZPlatform(cfg *config.BluetoothConfig, logger *zap.Logger) Platform {
	logger.Warn("Bluetooth printing is only supported on Linux")
	return UnavailablePlatform{}
}
