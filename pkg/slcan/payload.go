package slcan

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortPayload indicates a payload smaller than the requested value.
var ErrShortPayload = errors.New("slcan: payload too short")

// PackUint32 encodes one 32-bit value. Negative values are reduced modulo
// 2^32 so signed positions travel in two's complement.
func PackUint32(v int64) []byte {
	p := make([]byte, 4)
	binary.BigEndian.PutUint32(p, uint32(Swap32(uint64(uint32(v)))))
	return p
}

// PackPair encodes two 32-bit values into an 8-byte payload.
func PackPair(a, b int64) []byte {
	return append(PackUint32(a), PackUint32(b)...)
}

// PackUint64 encodes one 64-bit value.
func PackUint64(v uint64) []byte {
	p := make([]byte, 8)
	binary.BigEndian.PutUint64(p, Swap64(v))
	return p
}

// word reads the i-th 32-bit value of the payload.
func (f Frame) word(i int) (uint32, error) {
	end := 4 * (i + 1)
	if len(f.Payload) < end {
		return 0, fmt.Errorf("%w: have %d bytes, need %d", ErrShortPayload, len(f.Payload), end)
	}
	return uint32(Swap32(uint64(binary.BigEndian.Uint32(f.Payload[end-4 : end])))), nil
}

// Uint32 decodes the first 32-bit value.
func (f Frame) Uint32() (uint32, error) {
	return f.word(0)
}

// Int32 decodes the first 32-bit value as signed.
func (f Frame) Int32() (int32, error) {
	v, err := f.word(0)
	return int32(v), err
}

// Uint32Pair decodes two 32-bit values.
func (f Frame) Uint32Pair() (uint32, uint32, error) {
	a, err := f.word(0)
	if err != nil {
		return 0, 0, err
	}
	b, err := f.word(1)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// Int32Pair decodes two signed 32-bit values.
func (f Frame) Int32Pair() (int32, int32, error) {
	a, b, err := f.Uint32Pair()
	return int32(a), int32(b), err
}

// Uint64 decodes an 8-byte payload as one 64-bit value.
func (f Frame) Uint64() (uint64, error) {
	if len(f.Payload) < 8 {
		return 0, fmt.Errorf("%w: have %d bytes, need 8", ErrShortPayload, len(f.Payload))
	}
	return Swap64(binary.BigEndian.Uint64(f.Payload[:8])), nil
}

// Int64 decodes an 8-byte payload as one signed 64-bit value.
func (f Frame) Int64() (int64, error) {
	v, err := f.Uint64()
	return int64(v), err
}
