package iodev

import (
	"github.com/nanvix/microvm/bootabi"
	"github.com/nanvix/microvm/device"
)

// ACPIShutDownDevice watches the power-control port. A write of the
// shutdown magic powers the VM off; any other value is ignored,
// reserved for future ACPI-style power controls.
type ACPIShutDownDevice struct{}

func NewACPIShutDownDevice() *ACPIShutDownDevice {
	return &ACPIShutDownDevice{}
}

func (a *ACPIShutDownDevice) Read(port uint64, data []byte) error {
	for i := range data {
		data[i] = 0
	}

	return nil
}

func (a *ACPIShutDownDevice) Write(port uint64, data []byte) error {
	var v uint32

	for i := len(data) - 1; i >= 0; i-- {
		v = v<<8 | uint32(data[i])
	}

	if v == bootabi.ShutdownMagic {
		return device.ErrShutdown
	}

	return nil
}

func (a *ACPIShutDownDevice) IOPort() uint64 {
	return bootabi.ShutdownPort
}

func (a *ACPIShutDownDevice) Size() uint64 {
	return 1
}
