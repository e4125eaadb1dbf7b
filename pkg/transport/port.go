package transport

import (
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Port is the subset of a serial port the transport uses.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Opener opens a serial port by name.
type Opener func(name string, mode *serial.Mode) (Port, error)

// Lister enumerates the serial ports of the host.
type Lister func() ([]*enumerator.PortDetails, error)

// OpenSerial opens a real serial port.
func OpenSerial(name string, mode *serial.Mode) (Port, error) {
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListSerial enumerates the host's serial ports with USB details.
func ListSerial() ([]*enumerator.PortDetails, error) {
	return enumerator.GetDetailedPortsList()
}

// PortInfo describes one serial port found during discovery.
type PortInfo struct {
	Name         string
	Description  string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// portInfo converts enumerator details.
func portInfo(d *enumerator.PortDetails) PortInfo {
	return PortInfo{
		Name:         d.Name,
		Description:  d.Product,
		IsUSB:        d.IsUSB,
		VID:          d.VID,
		PID:          d.PID,
		SerialNumber: d.SerialNumber,
	}
}

// matches reports whether the port is a transceiver candidate. A match
// string of "USB" also accepts ports the enumerator flags as USB, since
// not every platform puts the bus name into the product string.
func (p PortInfo) matches(match string) bool {
	if match == "" {
		return true
	}
	if strings.Contains(p.Description, match) {
		return true
	}
	return match == DefaultMatch && p.IsUSB
}

// serialMode builds the port settings. The baud rate of a CDC device is
// nominal; 8N1 is what the transceiver expects.
func serialMode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Compile-time check that real ports satisfy Port.
var _ Port = serial.Port(nil)
