package log

import (
	"time"
)

// Event is one protocol trace record.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies one opened transceiver session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Transceiver is the serial number of the USB-CAN adapter.
	Transceiver string `cbor:"6,keyasint,omitempty"`

	// Port is the serial device path.
	Port string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Line        *LineEvent        `cbor:"10,keyasint,omitempty"`
	Frame       *FrameEvent       `cbor:"11,keyasint,omitempty"`
	Request     *RequestEvent     `cbor:"12,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates data received from the bus.
	DirectionIn Direction = 0
	// DirectionOut indicates data sent to the bus.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of the driver captured the event.
type Layer uint8

const (
	// LayerTransport is the serial line layer (raw ASCII).
	LayerTransport Layer = 0
	// LayerFrame is the decoded frame layer.
	LayerFrame Layer = 1
	// LayerDispatch is the request/response layer.
	LayerDispatch Layer = 2
	// LayerDevice is the positioner command and firmware layer.
	LayerDevice Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerFrame:
		return "FRAME"
	case LayerDispatch:
		return "DISPATCH"
	case LayerDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol frame or request.
	CategoryMessage Category = 0
	// CategoryControl indicates a transceiver configuration command.
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LineEvent captures raw bytes exchanged with the transceiver.
type LineEvent struct {
	// Size is the number of bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw text (may be truncated for large reads).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// FrameEvent captures one decoded frame.
type FrameEvent struct {
	Address uint16 `cbor:"1,keyasint"`
	Command uint8  `cbor:"2,keyasint"`
	UID     uint8  `cbor:"3,keyasint"`
	Code    uint8  `cbor:"4,keyasint,omitempty"`
	Payload []byte `cbor:"5,keyasint,omitempty"`

	// Malformed holds the reason when the token could not be decoded;
	// Payload then carries the raw token.
	Malformed string `cbor:"6,keyasint,omitempty"`
}

// RequestEvent captures a step of the request lifecycle.
type RequestEvent struct {
	// Address is the target positioner (0 for broadcast).
	Address uint16 `cbor:"1,keyasint"`

	// Command is the command identifier.
	Command uint8 `cbor:"2,keyasint"`

	// UID is the correlation tag assigned to the request.
	UID uint8 `cbor:"3,keyasint"`

	// Phase is the lifecycle step.
	Phase Phase `cbor:"4,keyasint"`

	// Code is the response code, or a negative local code.
	Code int8 `cbor:"5,keyasint,omitempty"`

	// Replies is the number of frames matched.
	Replies int `cbor:"6,keyasint,omitempty"`

	// Elapsed is the time between send and resolution (stored as nanoseconds).
	Elapsed time.Duration `cbor:"7,keyasint,omitempty"`
}

// Phase is a request lifecycle step.
type Phase uint8

const (
	// PhaseSent indicates the request frame was written.
	PhaseSent Phase = 0
	// PhaseMatched indicates at least one reply was claimed.
	PhaseMatched Phase = 1
	// PhaseTimedOut indicates the deadline passed without a reply.
	PhaseTimedOut Phase = 2
	// PhaseSendFailed indicates the write failed.
	PhaseSendFailed Phase = 3
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseSent:
		return "SENT"
	case PhaseMatched:
		return "MATCHED"
	case PhaseTimedOut:
		return "TIMED_OUT"
	case PhaseSendFailed:
		return "SEND_FAILED"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures transceiver, dispatcher and upgrade state changes.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`

	// Address is the positioner concerned, if any.
	Address uint16 `cbor:"5,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityTransceiver indicates a transceiver open/close.
	StateEntityTransceiver StateEntity = 0
	// StateEntityDispatcher indicates a dispatcher failure or reset.
	StateEntityDispatcher StateEntity = 1
	// StateEntityUpgrade indicates a firmware upgrade step.
	StateEntityUpgrade StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityTransceiver:
		return "TRANSCEIVER"
	case StateEntityDispatcher:
		return "DISPATCHER"
	case StateEntityUpgrade:
		return "UPGRADE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the response code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
