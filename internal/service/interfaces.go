// internal/service/interfaces.go
package service

import (
	"context"

	"pos-print-bridge/internal/model"
)

// BluetoothTransport is the Bluetooth side of the printer link
type BluetoothTransport interface {
	Discover(ctx context.Context) ([]model.BluetoothDevice, error)
	CancelDiscovery(ctx context.Context) error
	IsConnected() bool
	ActiveAddress() string
	Write(ctx context.Context, data []byte) error
	Reconnect(ctx context.Context, address string) bool
	AutoReconnect(ctx context.Context, address string, attempts int) bool
	State() model.BluetoothState
	Close(ctx context.Context) error
}

// NetworkTransport is the raw TCP side of the printer link
type NetworkTransport interface {
	IsConnected() bool
	Write(ctx context.Context, data []byte) error
	AutoReconnect(ctx context.Context, host string) bool
	State() model.NetworkState
	Close(ctx context.Context) error
}

// Notifier surfaces user-facing messages
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}
