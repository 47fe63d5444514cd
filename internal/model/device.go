// internal/model/device.go
package model

import "time"

// TransportType identifies the printer transport
type TransportType string

const (
	TransportNone      TransportType = "none"
	TransportBluetooth TransportType = "bluetooth"
	TransportNetwork   TransportType = "network"
)

// ConnectionType represents how a protocol reaches the printer
type ConnectionType string

const (
	ConnectionTypeTCP       ConnectionType = "TCP"
	ConnectionTypeRFCOMM    ConnectionType = "RFCOMM"
	ConnectionTypeRFCOMMTTY ConnectionType = "RFCOMM_TTY"
)

// ConnectionStatus represents the state machine position of a transport
type ConnectionStatus string

const (
	ConnectionStatusDisconnected ConnectionStatus = "DISCONNECTED"
	ConnectionStatusDiscovering  ConnectionStatus = "DISCOVERING"
	ConnectionStatusConnecting   ConnectionStatus = "CONNECTING"
	ConnectionStatusConnected    ConnectionStatus = "CONNECTED"
)

// BluetoothDevice is a bonded or discovered classic Bluetooth device
type BluetoothDevice struct {
	ID      string `json:"id,omitempty"`
	Address string `json:"address,omitempty"`
	Name    string `json:"name,omitempty"`
	Bonded  bool   `json:"bonded"`
}

// Key returns the identity used for de-duplication (id, falling back to address)
func (d BluetoothDevice) Key() string {
	if d.ID != "" {
		return d.ID
	}
	return d.Address
}

// ResolveAddress returns the address to dial (address, falling back to id)
func (d BluetoothDevice) ResolveAddress() string {
	if d.Address != "" {
		return d.Address
	}
	return d.ID
}

// BluetoothState is a snapshot of the Bluetooth transport
type BluetoothState struct {
	Status        ConnectionStatus  `json:"status"`
	Connected     bool              `json:"connected"`
	Devices       []BluetoothDevice `json:"devices"`
	SelectedID    string            `json:"selected_id,omitempty"`
	ActiveAddress string            `json:"active_address,omitempty"`
}

// NetworkState is a snapshot of the TCP transport
type NetworkState struct {
	Status    ConnectionStatus `json:"status"`
	Connected bool             `json:"connected"`
	Host      string           `json:"host,omitempty"`
	Port      int              `json:"port"`
}

// PrinterStatus combines both transports for the UI
type PrinterStatus struct {
	Summary   string         `json:"summary"`
	Bluetooth BluetoothState `json:"bluetooth"`
	Network   NetworkState   `json:"network"`
	CheckedAt time.Time      `json:"checked_at"`
}

// ConnectionSummary renders the human readable status line
func ConnectionSummary(bluetooth, network bool) string {
	switch {
	case bluetooth && network:
		return "Bluetooth + Network connected"
	case bluetooth:
		return "Bluetooth connected"
	case network:
		return "Network connected"
	default:
		return "Disconnected"
	}
}

// NetworkPrinter is a host answering on the raw printing port
type NetworkPrinter struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}
