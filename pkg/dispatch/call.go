package dispatch

import (
	"time"
)

// TimeoutClass selects how long a request waits for its reply.
type TimeoutClass uint8

const (
	// ClassDefault is the CAN watchdog interval, used by most commands.
	ClassDefault TimeoutClass = iota
	// ClassQuick is for reads answered straight from device memory.
	ClassQuick
	// ClassSetPosition covers position writes that touch flash.
	ClassSetPosition
	// ClassSave covers calibration saves.
	ClassSave
	// ClassBootloader covers bootloader status reads and factory parameters.
	ClassBootloader
	// ClassFirmwareHeader covers the firmware header, which erases flash.
	ClassFirmwareHeader
	// ClassFirmwareChunk covers one firmware data frame.
	ClassFirmwareChunk
	// ClassStatus covers status polls during firmware verification.
	ClassStatus
)

// String returns the class name.
func (c TimeoutClass) String() string {
	switch c {
	case ClassDefault:
		return "DEFAULT"
	case ClassQuick:
		return "QUICK"
	case ClassSetPosition:
		return "SET_POSITION"
	case ClassSave:
		return "SAVE"
	case ClassBootloader:
		return "BOOTLOADER"
	case ClassFirmwareHeader:
		return "FIRMWARE_HEADER"
	case ClassFirmwareChunk:
		return "FIRMWARE_CHUNK"
	case ClassStatus:
		return "STATUS"
	default:
		return "UNKNOWN"
	}
}

// Timeouts holds the deadline for every TimeoutClass.
type Timeouts struct {
	Default        time.Duration `yaml:"default"`
	Quick          time.Duration `yaml:"quick"`
	SetPosition    time.Duration `yaml:"set_position"`
	Save           time.Duration `yaml:"save"`
	Bootloader     time.Duration `yaml:"bootloader"`
	FirmwareHeader time.Duration `yaml:"firmware_header"`
	FirmwareChunk  time.Duration `yaml:"firmware_chunk"`
	Status         time.Duration `yaml:"status"`
}

// DefaultTimeouts returns the timeouts used by the positioner firmware.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Default:        500 * time.Millisecond,
		Quick:          200 * time.Millisecond,
		SetPosition:    1200 * time.Millisecond,
		Save:           1 * time.Second,
		Bootloader:     2 * time.Second,
		FirmwareHeader: 10 * time.Second,
		FirmwareChunk:  45 * time.Second,
		Status:         10 * time.Second,
	}
}

// UniformTimeouts returns timeouts that use d for every class.
func UniformTimeouts(d time.Duration) Timeouts {
	return Timeouts{
		Default:        d,
		Quick:          d,
		SetPosition:    d,
		Save:           d,
		Bootloader:     d,
		FirmwareHeader: d,
		FirmwareChunk:  d,
		Status:         d,
	}
}

// For returns the timeout for class c. Zero fields fall back to
// DefaultTimeouts.
func (t Timeouts) For(c TimeoutClass) time.Duration {
	if d := t.lookup(c); d > 0 {
		return d
	}
	if d := DefaultTimeouts().lookup(c); d > 0 {
		return d
	}
	return DefaultTimeouts().Default
}

func (t Timeouts) lookup(c TimeoutClass) time.Duration {
	switch c {
	case ClassDefault:
		return t.Default
	case ClassQuick:
		return t.Quick
	case ClassSetPosition:
		return t.SetPosition
	case ClassSave:
		return t.Save
	case ClassBootloader:
		return t.Bootloader
	case ClassFirmwareHeader:
		return t.FirmwareHeader
	case ClassFirmwareChunk:
		return t.FirmwareChunk
	case ClassStatus:
		return t.Status
	}
	return 0
}

// Call describes one request.
type Call struct {
	// Address is the target positioner, 0 for broadcast.
	Address uint16

	// Command is the command identifier.
	Command uint8

	// Payload is 0, 4 or 8 bytes unless Raw is set.
	Payload []byte

	// Raw allows any payload length from 0 to 8 (firmware data frames).
	Raw bool

	// Class selects the reply deadline.
	Class TimeoutClass

	// Timeout overrides Class when non-zero.
	Timeout time.Duration
}

// IsBroadcast reports whether the call targets every positioner.
func (c Call) IsBroadcast() bool {
	return c.Address == 0
}
