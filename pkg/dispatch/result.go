package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/fiberpos/tendo-go/pkg/slcan"
)

// CollisionCommand is the command identifier of the unsolicited frame a
// positioner emits when it detects a collision.
const CollisionCommand uint8 = 18

// Outcome classifies how a request resolved.
type Outcome uint8

const (
	// OutcomeAccepted means the device answered with code 0.
	OutcomeAccepted Outcome = iota
	// OutcomeDeviceRejected means the device answered with a non-zero code.
	OutcomeDeviceRejected
	// OutcomeNoResponse means no matching frame arrived before the deadline.
	OutcomeNoResponse
	// OutcomeSendFailed means the request could not be written.
	OutcomeSendFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "ACCEPTED"
	case OutcomeDeviceRejected:
		return "DEVICE_REJECTED"
	case OutcomeNoResponse:
		return "NO_RESPONSE"
	case OutcomeSendFailed:
		return "SEND_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Code is a response code. 0 to 15 are reported by the device, negative
// values are synthesised by the host.
type Code int8

// Response codes. The numbers are shared with the device firmware.
const (
	CodeSendFailed              Code = -2
	CodeNoResponse              Code = -1
	CodeAccepted                Code = 0
	CodeValueOutOfRange         Code = 1
	CodeInvalidTrajectory       Code = 2
	CodeAlreadyInMotion         Code = 3
	CodeDatumNotInitialized     Code = 4
	CodeIncorrectAmountOfData   Code = 5
	CodeCalibrationModeActive   Code = 6
	CodeMotorNotCalibrated      Code = 7
	CodeCollisionDetectedAlpha  Code = 8
	CodeCollisionDetectedBeta   Code = 9
	CodeInvalidBroadcastCommand Code = 10
	CodeInvalidBootloaderCmd    Code = 11
	CodeInvalidCommand          Code = 12
	CodeUnknownCommand          Code = 13
	CodeDatumNotCalibrated      Code = 14
	CodeHallSensorDisabled      Code = 15
)

var codeNames = map[Code]string{
	CodeSendFailed:              "SEND_FAILED",
	CodeNoResponse:              "NO_RESPONSE",
	CodeAccepted:                "COMMAND_ACCEPTED",
	CodeValueOutOfRange:         "VALUE_OUT_OF_RANGE",
	CodeInvalidTrajectory:       "INVALID_TRAJECTORY",
	CodeAlreadyInMotion:         "ALREADY_IN_MOTION",
	CodeDatumNotInitialized:     "DATUM_NOT_INITIALIZED",
	CodeIncorrectAmountOfData:   "INCORRECT_AMOUNT_OF_DATA",
	CodeCalibrationModeActive:   "CALIBRATION_MODE_ACTIVE",
	CodeMotorNotCalibrated:      "MOTOR_NOT_CALIBRATED",
	CodeCollisionDetectedAlpha:  "COLLISION_DETECTED_ALPHA",
	CodeCollisionDetectedBeta:   "COLLISION_DETECTED_BETA",
	CodeInvalidBroadcastCommand: "INVALID_BROADCAST_COMMAND",
	CodeInvalidBootloaderCmd:    "INVALID_BOOTLOADER_COMMAND",
	CodeInvalidCommand:          "INVALID_COMMAND",
	CodeUnknownCommand:          "UNKNOWN_COMMAND",
	CodeDatumNotCalibrated:      "DATUM_NOT_CALIBRATED",
	CodeHallSensorDisabled:      "HALL_SENSOR_DISABLED",
}

var codeReasons = map[Code]string{
	CodeSendFailed:              "request could not be written to the transceiver",
	CodeNoResponse:              "no reply before the deadline",
	CodeAccepted:                "command accepted",
	CodeValueOutOfRange:         "value out of range",
	CodeInvalidTrajectory:       "invalid trajectory",
	CodeAlreadyInMotion:         "positioner already in motion",
	CodeDatumNotInitialized:     "datum not initialized",
	CodeIncorrectAmountOfData:   "incorrect amount of data",
	CodeCalibrationModeActive:   "calibration mode active",
	CodeMotorNotCalibrated:      "motor not calibrated",
	CodeCollisionDetectedAlpha:  "collision detected on alpha arm",
	CodeCollisionDetectedBeta:   "collision detected on beta arm",
	CodeInvalidBroadcastCommand: "command cannot be broadcast",
	CodeInvalidBootloaderCmd:    "command not valid in bootloader",
	CodeInvalidCommand:          "command not valid in this state",
	CodeUnknownCommand:          "unknown command",
	CodeDatumNotCalibrated:      "datum not calibrated",
	CodeHallSensorDisabled:      "hall sensors disabled",
}

// String returns the code name.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Reason returns a human readable description of the code.
func (c Code) Reason() string {
	if r, ok := codeReasons[c]; ok {
		return r
	}
	return fmt.Sprintf("unknown response code %d", int8(c))
}

// Reply is one frame answering a request.
type Reply struct {
	Address uint16
	Command uint8
	Code    Code
	Frame   slcan.Frame
}

// Accepted reports whether the device accepted the command.
func (r Reply) Accepted() bool {
	return r.Code == CodeAccepted
}

// IsCollision reports whether the frame is a collision notice.
func (r Reply) IsCollision() bool {
	return r.Command == CollisionCommand
}

func replyFrom(f slcan.Frame) Reply {
	return Reply{Address: f.Address, Command: f.Command, Code: Code(f.Code), Frame: f}
}

// Result is the resolution of one request.
type Result struct {
	Address uint16
	UID     uint8
	Command uint8
	Outcome Outcome
	Code    Code

	// Replies holds every matched frame: one for a targeted request, one
	// per answering device for a broadcast.
	Replies []Reply

	// Cause is the write error for OutcomeSendFailed.
	Cause error

	// Elapsed is the time from send to resolution.
	Elapsed time.Duration
}

// OK reports whether the request was accepted.
func (r Result) OK() bool {
	return r.Outcome == OutcomeAccepted
}

// Reply returns the first matched reply.
func (r Result) Reply() (Reply, bool) {
	if len(r.Replies) == 0 {
		return Reply{}, false
	}
	return r.Replies[0], true
}

// Frame returns the payload frame of the first reply, or a zero frame.
func (r Result) Frame() slcan.Frame {
	rep, _ := r.Reply()
	return rep.Frame
}

// Err returns nil for an accepted request and a *Error otherwise.
func (r Result) Err() error {
	if r.Outcome == OutcomeAccepted {
		return nil
	}
	return &Error{
		Address: r.Address,
		UID:     r.UID,
		Command: r.Command,
		Outcome: r.Outcome,
		Code:    r.Code,
		Cause:   r.Cause,
	}
}

// resolve builds the result for the matched frames.
func resolve(call Call, uid uint8, frames []slcan.Frame, elapsed time.Duration) Result {
	res := Result{
		Address: call.Address,
		UID:     uid,
		Command: call.Command,
		Elapsed: elapsed,
	}
	if len(frames) == 0 {
		res.Outcome = OutcomeNoResponse
		res.Code = CodeNoResponse
		return res
	}
	res.Outcome = OutcomeAccepted
	res.Code = CodeAccepted
	for _, f := range frames {
		rep := replyFrom(f)
		res.Replies = append(res.Replies, rep)
		if !rep.Accepted() && res.Outcome == OutcomeAccepted {
			res.Outcome = OutcomeDeviceRejected
			res.Code = rep.Code
		}
	}
	return res
}

func sendFailed(call Call, uid uint8, cause error) Result {
	return Result{
		Address: call.Address,
		UID:     uid,
		Command: call.Command,
		Outcome: OutcomeSendFailed,
		Code:    CodeSendFailed,
		Cause:   cause,
	}
}

// Dispatcher errors.
var (
	// ErrUIDExhausted is returned by Send when all 16 UIDs are in flight.
	ErrUIDExhausted = errors.New("dispatch: all UIDs in flight")

	// ErrTransportClosed is returned after the link failed or was closed.
	ErrTransportClosed = errors.New("dispatch: transport closed")

	// ErrInvalidCall is returned for a call the codec cannot encode.
	ErrInvalidCall = errors.New("dispatch: invalid call")

	// ErrResolved is returned when Receive is called twice on one Pending.
	ErrResolved = errors.New("dispatch: request already resolved")

	// ErrNoResponse is matched by errors for OutcomeNoResponse.
	ErrNoResponse = errors.New("no response")

	// ErrSendFailed is matched by errors for OutcomeSendFailed.
	ErrSendFailed = errors.New("send failed")

	// ErrDeviceRejected is matched by errors for OutcomeDeviceRejected.
	ErrDeviceRejected = errors.New("device rejected command")
)

// Error is the error form of an unsuccessful Result.
type Error struct {
	Address uint16
	UID     uint8
	Command uint8
	Outcome Outcome
	Code    Code
	Cause   error
}

// Error implements error.
func (e *Error) Error() string {
	msg := fmt.Sprintf("positioner %d: command %d (uid %d): %s", e.Address, e.Command, e.UID, e.Code.Reason())
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the outcome sentinel and the write error.
func (e *Error) Unwrap() []error {
	var sentinel error
	switch e.Outcome {
	case OutcomeNoResponse:
		sentinel = ErrNoResponse
	case OutcomeSendFailed:
		sentinel = ErrSendFailed
	default:
		sentinel = ErrDeviceRejected
	}
	if e.Cause != nil {
		return []error{sentinel, e.Cause}
	}
	return []error{sentinel}
}
