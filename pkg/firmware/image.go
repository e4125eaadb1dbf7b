package firmware

import (
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"os"
)

// FrameSize is the number of image bytes carried by one frame.
const FrameSize = 8

// Image errors.
var (
	ErrEmptyImage    = errors.New("firmware: image is empty")
	ErrImageTooLarge = errors.New("firmware: image exceeds 4 GiB")
)

// Image is a firmware binary ready for upload.
type Image struct {
	data []byte
	crc  uint32
}

// NewImage wraps a firmware binary. The data is copied.
func NewImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if uint64(len(data)) > math.MaxUint32 {
		return nil, ErrImageTooLarge
	}
	buf := append([]byte(nil), data...)
	return &Image{data: buf, crc: crc32.ChecksumIEEE(buf)}, nil
}

// LoadImage reads a firmware binary from disk.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("firmware: load image: %w", err)
	}
	img, err := NewImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}
	return img, nil
}

// Len returns the image size in bytes.
func (i *Image) Len() int { return len(i.data) }

// CRC32 returns the IEEE CRC32 of the image.
func (i *Image) CRC32() uint32 { return i.crc }

// Bytes returns the image content. The slice must not be modified.
func (i *Image) Bytes() []byte { return i.data }

// FrameCount returns the number of frames needed to send the image.
func (i *Image) FrameCount() int {
	return (len(i.data) + FrameSize - 1) / FrameSize
}

// Frames splits the image into frames of FrameSize bytes. The last frame
// holds the remainder.
func (i *Image) Frames() [][]byte {
	out := make([][]byte, 0, i.FrameCount())
	for off := 0; off < len(i.data); off += FrameSize {
		out = append(out, i.data[off:min(off+FrameSize, len(i.data))])
	}
	return out
}
