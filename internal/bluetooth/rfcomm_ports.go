// internal/bluetooth/rfcomm_ports.go
package bluetooth

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.bug.st/serial"

	"pos-print-bridge/internal/model"
)

const rfcommPortPrefix = "/dev/rfcomm"

// portLister is serial.GetPortsList, replaceable in tests
var portLister = serial.GetPortsList

// BoundPorts lists RFCOMM ttys bound with `rfcomm bind` as bonded devices.
// Their address is the tty path, which Connect opens through the serial driver.
func BoundPorts() ([]model.BluetoothDevice, error) {
	ports, err := portLister()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return rfcommDevices(ports), nil
}

func rfcommDevices(ports []string) []model.BluetoothDevice {
	var devices []model.BluetoothDevice
	for _, port := range ports {
		if !strings.HasPrefix(port, rfcommPortPrefix) {
			continue
		}
		devices = append(devices, model.BluetoothDevice{
			ID:      port,
			Address: port,
			Name:    "RFCOMM " + strings.TrimPrefix(filepath.Base(port), "rfcomm"),
			Bonded:  true,
		})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}
