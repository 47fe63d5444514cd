//go:build !linux

// internal/protocol/rfcomm_other.go
package protocol

import (
	"go.uber.org/zap"

	"pos-print-bridge/internal/model"
)

// NewRFCOMMConnection is unavailable outside Linux; Open always fails
func NewRFCOMMConnection(config *RFCOMMConfig, logger *zap.Logger) DeviceProtocol {
	return &unsupportedConnection{connectionType: model.ConnectionTypeRFCOMM}
}
