package positioner

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/fiberpos/tendo-go/pkg/dispatch"
	"github.com/fiberpos/tendo-go/pkg/slcan"
	"github.com/fiberpos/tendo-go/pkg/status"
)

// ErrBadReply is returned when an accepted reply carries a payload that
// does not match its command.
var ErrBadReply = errors.New("positioner: malformed reply payload")

// Response is the outcome of one command at one device.
type Response struct {
	Address uint16
	Command Command
	UID     uint8

	// Code is the device response code, or CodeNoResponse/CodeSendFailed
	// when the device never answered.
	Code dispatch.Code

	// Collision is set when the device answered with FATAL_ERROR_COLLISION.
	Collision bool
}

// OK reports whether the device accepted the command.
func (r Response) OK() bool {
	return r.Code == dispatch.CodeAccepted && !r.Collision
}

// Err returns nil for an accepted command and a *dispatch.Error otherwise.
func (r Response) Err() error {
	if r.OK() {
		return nil
	}
	outcome := dispatch.OutcomeDeviceRejected
	switch r.Code {
	case dispatch.CodeNoResponse:
		outcome = dispatch.OutcomeNoResponse
	case dispatch.CodeSendFailed:
		outcome = dispatch.OutcomeSendFailed
	}
	return &dispatch.Error{
		Address: r.Address,
		UID:     r.UID,
		Command: uint8(r.Command),
		Outcome: outcome,
		Code:    r.Code,
	}
}

// String renders the response for logs.
func (r Response) String() string {
	if r.Collision {
		return fmt.Sprintf("%d %s: collision", r.Address, r.Command)
	}
	return fmt.Sprintf("%d %s: %s", r.Address, r.Command, r.Code)
}

// FirmwareResponse carries a version word.
type FirmwareResponse struct {
	Response
	Raw     uint32
	Version string
}

// StatusResponse carries a status register value.
type StatusResponse struct {
	Response
	Value    uint64
	Register *status.Register
}

// Has reports whether every bit of mask is set.
func (r StatusResponse) Has(mask uint64) bool {
	return r.Value&mask == mask
}

// Flags describes the register value bit by bit.
func (r StatusResponse) Flags() []status.Flag {
	if r.Register == nil {
		return nil
	}
	return r.Register.Describe(r.Value)
}

// MoveResponse carries the move time of each axis.
type MoveResponse struct {
	Response
	Alpha time.Duration
	Beta  time.Duration
}

// Duration returns the time until both axes have arrived.
func (r MoveResponse) Duration() time.Duration {
	return max(r.Alpha, r.Beta)
}

// AxisResponse carries an alpha/beta angle pair in degrees.
type AxisResponse struct {
	Response
	Position
}

// PairResponse carries raw alpha/beta values.
type PairResponse struct {
	Response
	Alpha int32
	Beta  int32
}

// ValueResponse carries a single value.
type ValueResponse struct {
	Response
	Value int64
}

// HallCalibResponse carries the four hall sensor calibration words of an
// axis.
type HallCalibResponse struct {
	Response
	Values [4]uint16
}

func badReply(r Response, err error) error {
	return fmt.Errorf("%w: %d %s: %w", ErrBadReply, r.Address, r.Command, err)
}

func decodeBase(r Response, _ slcan.Frame) (Response, error) {
	return r, nil
}

func decodeFirmware(r Response, f slcan.Frame) (FirmwareResponse, error) {
	out := FirmwareResponse{Response: r}
	if !r.OK() {
		return out, nil
	}
	v, err := f.Uint32()
	if err != nil {
		return out, badReply(r, err)
	}
	out.Raw = v
	out.Version = FormatFirmware(v)
	return out, nil
}

func decodeRuntimeStatus(r Response, f slcan.Frame) (StatusResponse, error) {
	out := StatusResponse{Response: r, Register: status.Runtime}
	if !r.OK() {
		return out, nil
	}
	v, err := f.Uint64()
	if err != nil {
		return out, badReply(r, err)
	}
	out.Value = v
	return out, nil
}

func decodeBootloaderStatus(r Response, f slcan.Frame) (StatusResponse, error) {
	out := StatusResponse{Response: r, Register: status.Bootloader}
	if !r.OK() {
		return out, nil
	}
	v, err := f.Uint32()
	if err != nil {
		return out, badReply(r, err)
	}
	out.Value = uint64(v)
	return out, nil
}

func decodeMove(r Response, f slcan.Frame) (MoveResponse, error) {
	out := MoveResponse{Response: r}
	if !r.OK() {
		return out, nil
	}
	a, b, err := f.Uint32Pair()
	if err != nil {
		return out, badReply(r, err)
	}
	out.Alpha, out.Beta = TicksToDuration(a), TicksToDuration(b)
	return out, nil
}

func decodeAxis(r Response, f slcan.Frame) (AxisResponse, error) {
	out := AxisResponse{Response: r}
	if !r.OK() {
		return out, nil
	}
	a, b, err := f.Int32Pair()
	if err != nil {
		return out, badReply(r, err)
	}
	out.Alpha, out.Beta = StepsToDegrees(int64(a)), StepsToDegrees(int64(b))
	return out, nil
}

func decodePair(r Response, f slcan.Frame) (PairResponse, error) {
	out := PairResponse{Response: r}
	if !r.OK() {
		return out, nil
	}
	a, b, err := f.Int32Pair()
	if err != nil {
		return out, badReply(r, err)
	}
	out.Alpha, out.Beta = a, b
	return out, nil
}

func decodeInt32(r Response, f slcan.Frame) (ValueResponse, error) {
	out := ValueResponse{Response: r}
	if !r.OK() {
		return out, nil
	}
	v, err := f.Int32()
	if err != nil {
		return out, badReply(r, err)
	}
	out.Value = int64(v)
	return out, nil
}

func decodeUint32(r Response, f slcan.Frame) (ValueResponse, error) {
	out := ValueResponse{Response: r}
	if !r.OK() {
		return out, nil
	}
	v, err := f.Uint32()
	if err != nil {
		return out, badReply(r, err)
	}
	out.Value = int64(v)
	return out, nil
}

func decodeHallCalib(r Response, f slcan.Frame) (HallCalibResponse, error) {
	out := HallCalibResponse{Response: r}
	if !r.OK() {
		return out, nil
	}
	if len(f.Payload) < 8 {
		return out, badReply(r, fmt.Errorf("%w: have %d bytes, need 8", slcan.ErrShortPayload, len(f.Payload)))
	}
	for i := range out.Values {
		out.Values[i] = binary.LittleEndian.Uint16(f.Payload[2*i:])
	}
	return out, nil
}
