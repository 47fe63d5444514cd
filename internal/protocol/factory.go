// internal/protocol/factory.go
package protocol

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"pos-print-bridge/internal/model"
)

// CreateProtocol creates a protocol based on connection type and configuration
func CreateProtocol(connectionType model.ConnectionType, config map[string]interface{}, logger *zap.Logger) (DeviceProtocol, error) {
	if err := ValidateConfig(connectionType, config); err != nil {
		return nil, err
	}

	switch connectionType {
	case model.ConnectionTypeTCP:
		return createTCPProtocol(config, logger), nil
	case model.ConnectionTypeRFCOMM:
		return createRFCOMMProtocol(config, logger), nil
	case model.ConnectionTypeRFCOMMTTY:
		return createSerialProtocol(config, logger), nil
	default:
		return nil, fmt.Errorf("unsupported protocol type: %s", connectionType)
	}
}

// createTCPProtocol creates a raw TCP protocol
func createTCPProtocol(config map[string]interface{}, logger *zap.Logger) DeviceProtocol {
	tcpConfig := &TCPConfig{
		Host:         config["host"].(string),
		Port:         9100, // Default raw printing port
		KeepAlive:    true,
		Timeout:      10 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: 30 * time.Second,
	}

	if port, ok := intValue(config["port"]); ok {
		tcpConfig.Port = port
	}
	if keepAlive, ok := config["keep_alive"].(bool); ok {
		tcpConfig.KeepAlive = keepAlive
	}
	if dur, ok := durationValue(config["timeout"]); ok {
		tcpConfig.Timeout = dur
	}
	if dur, ok := durationValue(config["read_timeout"]); ok {
		tcpConfig.ReadTimeout = dur
	}
	if dur, ok := durationValue(config["write_timeout"]); ok {
		tcpConfig.WriteTimeout = dur
	}

	logger.Debug("Creating TCP protocol",
		zap.String("host", tcpConfig.Host),
		zap.Int("port", tcpConfig.Port),
	)

	return NewTCPConnection(tcpConfig, logger)
}

// createRFCOMMProtocol creates an RFCOMM socket protocol
func createRFCOMMProtocol(config map[string]interface{}, logger *zap.Logger) DeviceProtocol {
	rfcommConfig := &RFCOMMConfig{
		Address: config["address"].(string),
		Channel: 1,
		Timeout: 10 * time.Second,
	}

	if channel, ok := intValue(config["channel"]); ok {
		rfcommConfig.Channel = channel
	}
	if secure, ok := config["secure"].(bool); ok {
		rfcommConfig.Secure = secure
	}
	if dur, ok := durationValue(config["timeout"]); ok {
		rfcommConfig.Timeout = dur
	}

	logger.Debug("Creating RFCOMM protocol",
		zap.String("address", rfcommConfig.Address),
		zap.Int("channel", rfcommConfig.Channel),
		zap.Bool("secure", rfcommConfig.Secure),
	)

	return NewRFCOMMConnection(rfcommConfig, logger)
}

// createSerialProtocol creates an RFCOMM tty protocol
func createSerialProtocol(config map[string]interface{}, logger *zap.Logger) DeviceProtocol {
	serialConfig := &SerialConfig{
		Port:     config["port"].(string),
		BaudRate: 115200,
		Timeout:  time.Second,
	}

	if baudRate, ok := intValue(config["baud_rate"]); ok {
		serialConfig.BaudRate = baudRate
	}
	if dur, ok := durationValue(config["timeout"]); ok {
		serialConfig.Timeout = dur
	}

	logger.Debug("Creating RFCOMM tty protocol",
		zap.String("port", serialConfig.Port),
		zap.Int("baud_rate", serialConfig.BaudRate),
	)

	return NewSerialConnection(serialConfig, logger)
}

// ValidateConfig validates configuration for a specific protocol type
func ValidateConfig(connectionType model.ConnectionType, config map[string]interface{}) error {
	switch connectionType {
	case model.ConnectionTypeTCP:
		return validateTCPConfig(config)
	case model.ConnectionTypeRFCOMM:
		return validateRFCOMMConfig(config)
	case model.ConnectionTypeRFCOMMTTY:
		return validateSerialConfig(config)
	default:
		return fmt.Errorf("unsupported connection type: %s", connectionType)
	}
}

// validateTCPConfig validates TCP configuration
func validateTCPConfig(config map[string]interface{}) error {
	if host, ok := config["host"].(string); !ok || host == "" {
		return fmt.Errorf("TCP host is required")
	}

	if raw, ok := config["port"]; ok {
		port, ok := intValue(raw)
		if !ok {
			return fmt.Errorf("invalid port type")
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d", port)
		}
	}

	return nil
}

// validateRFCOMMConfig validates RFCOMM socket configuration
func validateRFCOMMConfig(config map[string]interface{}) error {
	address, ok := config["address"].(string)
	if !ok || address == "" {
		return fmt.Errorf("bluetooth address is required")
	}
	if _, err := net.ParseMAC(address); err != nil {
		return fmt.Errorf("invalid bluetooth address %q: %w", address, err)
	}

	if raw, ok := config["channel"]; ok {
		channel, ok := intValue(raw)
		if !ok || channel < 1 || channel > 30 {
			return fmt.Errorf("invalid RFCOMM channel: %v", raw)
		}
	}

	return nil
}

// validateSerialConfig validates RFCOMM tty configuration
func validateSerialConfig(config map[string]interface{}) error {
	if port, ok := config["port"].(string); !ok || !IsTTYAddress(port) {
		return fmt.Errorf("serial port is required")
	}
	return nil
}

func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

func durationValue(v interface{}) (time.Duration, bool) {
	switch d := v.(type) {
	case time.Duration:
		return d, d > 0
	case string:
		dur, err := time.ParseDuration(d)
		return dur, err == nil
	}
	return 0, false
}
