// internal/bluetooth/rfcomm_ports_test.go
package bluetooth

import (
	"errors"
	"testing"
)

func TestBoundPorts(t *testing.T) {
	defer func(orig func() ([]string, error)) { portLister = orig }(portLister)

	portLister = func() ([]string, error) {
		return []string{"/dev/ttyS0", "/dev/rfcomm1", "/dev/ttyUSB0", "/dev/rfcomm0"}, nil
	}

	devices, err := BoundPorts()
	if err != nil {
		t.Fatalf("BoundPorts failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 rfcomm ports, got %+v", devices)
	}
	if devices[0].Address != "/dev/rfcomm0" || devices[0].Name != "RFCOMM 0" || !devices[0].Bonded {
		t.Errorf("unexpected first device %+v", devices[0])
	}

	portLister = func() ([]string, error) { return nil, errors.New("no sysfs") }
	if _, err := BoundPorts(); err == nil {
		t.Fatal("lister error should surface")
	}
}
