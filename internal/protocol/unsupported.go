// internal/protocol/unsupported.go
package protocol

import (
	"context"

	"pos-print-bridge/internal/model"
)

// unsupportedConnection stands in for a transport the platform lacks
type unsupportedConnection struct {
	connectionType model.ConnectionType
}

func (u *unsupportedConnection) Open(ctx context.Context) error { return model.ErrUnsupportedPlatform }
func (u *unsupportedConnection) Close() error                   { return nil }
func (u *unsupportedConnection) IsOpen() bool                   { return false }

func (u *unsupportedConnection) Write(ctx context.Context, data []byte) error {
	return model.ErrUnsupportedPlatform
}

func (u *unsupportedConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	return nil, model.ErrUnsupportedPlatform
}

func (u *unsupportedConnection) GetProtocolType() model.ConnectionType { return u.connectionType }
func (u *unsupportedConnection) Stats() ProtocolStats                  { return ProtocolStats{} }
