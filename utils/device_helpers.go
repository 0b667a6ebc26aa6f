package utils

import (
	"fmt"

	"github.com/notargets/gocca"
)

// deviceBackends lists OCCA device properties in preference order. Parallel
// backends come first so accelerated paths are exercised whenever the host
// supports them; Serial always initializes and closes the chain.
var deviceBackends = []string{
	`{"mode": "OpenMP"}`,
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "Serial"}`,
}

// CreateTestDevice creates a Device for testing, preferring parallel backends
func CreateTestDevice() *gocca.OCCADevice {
	device, err := FirstAvailableDevice()
	if err != nil {
		// Serial should always be buildable
		panic(err)
	}
	fmt.Printf("Created %s Device\n", device.Mode())
	return device
}

// FirstAvailableDevice walks the backend preference order and returns the
// first device that initializes.
func FirstAvailableDevice() (*gocca.OCCADevice, error) {
	for _, props := range deviceBackends {
		device, err := gocca.NewDevice(props)
		if err == nil {
			return device, nil
		}
	}
	return nil, fmt.Errorf("no OCCA backend available")
}
