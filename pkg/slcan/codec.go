package slcan

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// Wire markers.
const (
	// FrameEnd terminates every line on the wire.
	FrameEnd = '\r'

	// ExtendedFrame prefixes a 29-bit data frame.
	ExtendedFrame = 'T'

	// headerDigits is the number of hex digits of the identifier.
	headerDigits = 8

	// MinFrameLen is the shortest decodable token: prefix, header, length.
	MinFrameLen = 1 + headerDigits + 1
)

// Codec errors.
var (
	// ErrEncode indicates a frame that cannot be represented on the wire.
	ErrEncode = errors.New("slcan: invalid frame")

	// ErrMalformedFrame is matched by every MalformedFrame.
	ErrMalformedFrame = errors.New("slcan: malformed frame")

	// ErrNotExtended indicates a CAN frame with an 11-bit identifier.
	ErrNotExtended = errors.New("slcan: not an extended frame")
)

// MalformedFrame describes a token that could not be decoded.
type MalformedFrame struct {
	Token  string
	Reason string
}

// Error implements error.
func (m *MalformedFrame) Error() string {
	return fmt.Sprintf("slcan: malformed frame %q: %s", m.Token, m.Reason)
}

// Unwrap lets errors.Is match ErrMalformedFrame.
func (m *MalformedFrame) Unwrap() error {
	return ErrMalformedFrame
}

// Encode renders a frame with a 0, 4 or 8 byte payload as a wire line.
func Encode(f Frame) ([]byte, error) {
	switch len(f.Payload) {
	case 0, 4, 8:
	default:
		return nil, fmt.Errorf("%w: payload length %d not in {0,4,8}", ErrEncode, len(f.Payload))
	}
	return encode(f)
}

// EncodeRaw renders a frame whose payload may hold any length from 0 to 8
// bytes. Firmware streaming uses it for the final, shorter chunk.
func EncodeRaw(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, fmt.Errorf("%w: payload length %d exceeds %d", ErrEncode, len(f.Payload), MaxPayload)
	}
	return encode(f)
}

func encode(f Frame) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	line := make([]byte, 0, MinFrameLen+2*len(f.Payload)+1)
	line = append(line, ExtendedFrame)
	line = append(line, fmt.Sprintf("%08X", f.Header())...)
	line = append(line, byte('0'+len(f.Payload)))
	line = append(line, bytes.ToUpper([]byte(hex.EncodeToString(f.Payload)))...)
	line = append(line, FrameEnd)
	return line, nil
}

// Decode splits buf on frame-end markers and decodes every token.
// Transceiver acknowledgments are discarded. Tokens that cannot be decoded
// are reported in malformed and never affect the other tokens.
func Decode(buf []byte) (frames []Frame, malformed []*MalformedFrame) {
	for _, tok := range bytes.Split(buf, []byte{FrameEnd}) {
		f, bad, ok := decodeToken(tok)
		switch {
		case !ok:
		case bad != nil:
			malformed = append(malformed, bad)
		default:
			frames = append(frames, f)
		}
	}
	return frames, malformed
}

// decodeToken decodes one line without its terminator. ok is false for
// tokens that carry no frame (empty lines, acknowledgments).
func decodeToken(tok []byte) (f Frame, bad *MalformedFrame, ok bool) {
	tok = bytes.TrimLeft(tok, "\n")
	if len(tok) == 0 || isAck(tok) {
		return Frame{}, nil, false
	}

	fail := func(reason string) (Frame, *MalformedFrame, bool) {
		return Frame{}, &MalformedFrame{Token: string(tok), Reason: reason}, true
	}

	if len(tok) < MinFrameLen {
		return fail(fmt.Sprintf("length %d below minimum %d", len(tok), MinFrameLen))
	}
	if tok[0] != ExtendedFrame {
		return fail(fmt.Sprintf("unsupported frame type %q", tok[0]))
	}

	header, err := strconv.ParseUint(string(tok[1:1+headerDigits]), 16, 32)
	if err != nil {
		return fail("header is not hexadecimal")
	}
	f = splitHeader(uint32(header))

	n := int(tok[1+headerDigits] - '0')
	if n > MaxPayload {
		return fail(fmt.Sprintf("invalid length digit %q", tok[1+headerDigits]))
	}
	data := tok[MinFrameLen:]
	if len(data) < 2*n {
		return fail(fmt.Sprintf("payload has %d hex digits, want %d", len(data), 2*n))
	}
	if n > 0 {
		f.Payload = make([]byte, n)
		if _, err := hex.Decode(f.Payload, data[:2*n]); err != nil {
			return fail("payload is not hexadecimal")
		}
	}
	return f, nil, true
}

// isAck reports whether tok is a transceiver acknowledgment or error bell.
func isAck(tok []byte) bool {
	if len(tok) != 1 {
		return false
	}
	switch tok[0] {
	case 'z', 'Z', '\a':
		return true
	}
	return false
}

// Decoder decodes a byte stream that may split lines across reads.
// It is not safe for concurrent use.
type Decoder struct {
	tail []byte
}

// Feed appends data to the pending bytes and decodes every complete line.
// An unterminated trailing token is kept until the next call.
func (d *Decoder) Feed(data []byte) (frames []Frame, malformed []*MalformedFrame) {
	buf := append(d.tail, data...)
	end := bytes.LastIndexByte(buf, FrameEnd)
	if end < 0 {
		d.tail = buf
		return nil, nil
	}
	d.tail = append([]byte(nil), buf[end+1:]...)
	return Decode(buf[:end])
}

// Pending returns the number of buffered bytes without a terminator.
func (d *Decoder) Pending() int {
	return len(d.tail)
}

// Reset discards buffered bytes.
func (d *Decoder) Reset() {
	d.tail = nil
}
