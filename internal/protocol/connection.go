// internal/protocol/connection.go
package protocol

import (
	"context"
	"time"
)

// TCPConfig represents raw TCP printer connection configuration
type TCPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	KeepAlive    bool          `json:"keep_alive"`
	Timeout      time.Duration `json:"timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// RFCOMMConfig represents a Bluetooth serial port profile socket configuration
type RFCOMMConfig struct {
	Address string        `json:"address"`
	Channel int           `json:"channel"`
	Secure  bool          `json:"secure"`
	Timeout time.Duration `json:"timeout"`
}

// SerialConfig represents a bound RFCOMM tty (/dev/rfcommN) configuration
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	Timeout  time.Duration `json:"timeout"`
}

// connectOrAbandon runs a blocking connect in the background. When ctx ends
// first, interrupt is called and abandon runs once connect has returned, so
// the descriptor stays owned by the goroutine until then.
func connectOrAbandon(ctx context.Context, connect func() error, interrupt, abandon func()) error {
	done := make(chan error)
	abandoned := make(chan struct{})
	go func() {
		err := connect()
		select {
		case done <- err:
		case <-abandoned:
			abandon()
		}
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		interrupt()
		close(abandoned)
		return ctx.Err()
	}
}
