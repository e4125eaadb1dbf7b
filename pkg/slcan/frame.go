package slcan

import (
	"fmt"

	"github.com/notnil/canbus"
)

// Header layout.
const (
	AddressShift = 18
	CommandShift = 10
	UIDShift     = 4

	// AddressBits is the width of the target address field.
	AddressBits = 11

	// MaxAddress is the largest addressable positioner.
	MaxAddress = 1<<AddressBits - 1

	// MaxUID is the largest correlation tag.
	MaxUID = 15

	// MaxCode is the largest response code a device can report.
	MaxCode = 15

	// BroadcastAddress addresses every positioner on the bus.
	BroadcastAddress = 0

	// MaxPayload is the data capacity of a classical CAN frame.
	MaxPayload = 8
)

// Frame is one positioner protocol message.
type Frame struct {
	// Address is the target (outbound) or source (inbound) positioner.
	Address uint16

	// Command is the command identifier.
	Command uint8

	// UID correlates a reply with its request.
	UID uint8

	// Code is the response code. Zero on outbound frames.
	Code uint8

	// Payload holds 0 to 8 bytes in wire order.
	Payload []byte
}

// Header returns the 29-bit identifier for the frame.
func (f Frame) Header() uint32 {
	return uint32(f.Address)<<AddressShift |
		uint32(f.Command)<<CommandShift |
		uint32(f.UID&0x0F)<<UIDShift |
		uint32(f.Code&0x0F)
}

// IsBroadcast reports whether the frame targets every positioner.
func (f Frame) IsBroadcast() bool {
	return f.Address == BroadcastAddress
}

// String returns a compact description for logs.
func (f Frame) String() string {
	return fmt.Sprintf("addr=%d cmd=%d uid=%d code=%d len=%d", f.Address, f.Command, f.UID, f.Code, len(f.Payload))
}

// validate checks the field widths.
func (f Frame) validate() error {
	if f.Address > MaxAddress {
		return fmt.Errorf("%w: address %d exceeds %d bits", ErrEncode, f.Address, AddressBits)
	}
	if f.UID > MaxUID {
		return fmt.Errorf("%w: uid %d exceeds 4 bits", ErrEncode, f.UID)
	}
	if f.Code > MaxCode {
		return fmt.Errorf("%w: response code %d exceeds 4 bits", ErrEncode, f.Code)
	}
	return nil
}

// CAN converts the frame into an extended classical CAN frame.
func (f Frame) CAN() (canbus.Frame, error) {
	if err := f.validate(); err != nil {
		return canbus.Frame{}, err
	}
	if len(f.Payload) > MaxPayload {
		return canbus.Frame{}, fmt.Errorf("%w: payload of %d bytes", ErrEncode, len(f.Payload))
	}
	cf := canbus.Frame{
		ID:       f.Header(),
		Extended: true,
		Len:      uint8(len(f.Payload)),
	}
	copy(cf.Data[:], f.Payload)
	return cf, cf.Validate()
}

// FromCAN converts an extended CAN frame back into a positioner frame.
func FromCAN(cf canbus.Frame) (Frame, error) {
	if err := cf.Validate(); err != nil {
		return Frame{}, err
	}
	if !cf.Extended {
		return Frame{}, fmt.Errorf("%w: standard identifier 0x%03X", ErrNotExtended, cf.ID)
	}
	f := splitHeader(cf.ID)
	if cf.Len > 0 {
		f.Payload = make([]byte, cf.Len)
		copy(f.Payload, cf.Data[:cf.Len])
	}
	return f, nil
}

// splitHeader extracts the addressing fields from a 29-bit identifier.
func splitHeader(h uint32) Frame {
	return Frame{
		Address: uint16(h>>AddressShift) & MaxAddress,
		Command: uint8(h >> CommandShift),
		UID:     uint8(h>>UIDShift) & 0x0F,
		Code:    uint8(h) & 0x0F,
	}
}
