// internal/bluetooth/platform.go
package bluetooth

import (
	"context"

	"pos-print-bridge/internal/model"
)

// Write encodings understood by platform writers
const (
	EncodingBinary = "binary"
	EncodingBase64 = "base64"
)

// Platform is the host Bluetooth stack
type Platform interface {
	EnsureEnabled(ctx context.Context) error
	RequestScanPermissions(ctx context.Context) (bool, error)
	BondedDevices(ctx context.Context) ([]model.BluetoothDevice, error)
	// StartDiscovery runs an active scan until it completes or ctx ends.
	// onFound is called for every device as it is reported.
	StartDiscovery(ctx context.Context, onFound func(model.BluetoothDevice)) ([]model.BluetoothDevice, error)
	CancelDiscovery(ctx context.Context) error
	Connect(ctx context.Context, address string, secure bool) (Connection, error)
	DisconnectFromDevice(ctx context.Context, address string) error
}

// Connection is an open RFCOMM link
type Connection interface {
	Write(ctx context.Context, data []byte) error
	Disconnect() error
}

// AddressWriter is implemented by platforms that can write to a device by address
type AddressWriter interface {
	WriteToDevice(ctx context.Context, address string, data []byte, encoding string) error
}

// EncodedWriter is implemented by connections that accept encoded payloads
type EncodedWriter interface {
	WriteEncoded(ctx context.Context, data []byte, encoding string) error
}

// UnavailablePlatform is used when Bluetooth is disabled or unsupported
type UnavailablePlatform struct{}

func (UnavailablePlatform) EnsureEnabled(ctx context.Context) error { return model.ErrUnsupportedPlatform }

func (UnavailablePlatform) RequestScanPermissions(ctx context.Context) (bool, error) {
	return false, model.ErrUnsupportedPlatform
}

func (UnavailablePlatform) BondedDevices(ctx context.Context) ([]model.BluetoothDevice, error) {
	return nil, model.ErrUnsupportedPlatform
}

func (UnavailablePlatform) StartDiscovery(ctx context.Context, onFound func(model.BluetoothDevice)) ([]model.BluetoothDevice, error) {
	return nil, model.ErrUnsupportedPlatform
}

func (UnavailablePlatform) CancelDiscovery(ctx context.Context) error { return nil }

func (UnavailablePlatform) Connect(ctx context.Context, address string, secure bool) (Connection, error) {
	return nil, model.ErrUnsupportedPlatform
}

func (UnavailablePlatform) DisconnectFromDevice(ctx context.Context, address string) error {
	return nil
}
