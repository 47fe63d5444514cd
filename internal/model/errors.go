// internal/model/errors.go
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrNotConnected        = errors.New("printer not connected")
	ErrPrinterBusy         = errors.New("printer busy: a print job is already queued")
	ErrDeviceNotFound      = errors.New("device not available right now")
	ErrNoWriteMethod       = errors.New("no supported write method")
	ErrUnsupportedPlatform = errors.New("operation not supported on this platform")
)

// ParseError reports a receipt payload that is not valid JSON
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "invalid receipt JSON"
	}
	return fmt.Sprintf("invalid receipt JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ImageError reports a logo that could not be sourced, decoded or rasterized
type ImageError struct {
	Stage string
	Err   error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("logo %s failed: %v", e.Stage, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// ConnectError reports an unreachable device or host
type ConnectError struct {
	Transport TransportType
	Target    string
	Err       error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s connect to %s failed: %v", e.Transport, e.Target, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// WriteError reports that every write tier of a transport failed
type WriteError struct {
	Transport TransportType
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s write failed: %v", e.Transport, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// PermissionError reports a platform permission that was denied
type PermissionError struct {
	Permission string
	Err        error
}

func (e *PermissionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("permission denied: %s", e.Permission)
	}
	return fmt.Sprintf("permission denied: %s: %v", e.Permission, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// IsNotConnected reports whether err belongs to the "not connected" class.
// Platform bindings only surface this as message text, so the text is checked too.
func IsNotConnected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConnected) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not connected")
}
