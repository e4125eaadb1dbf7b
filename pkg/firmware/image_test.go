package firmware

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestImageFrames(t *testing.T) {
	tests := []struct {
		size     int
		frames   int
		lastSize int
	}{
		{1, 1, 1},
		{7, 1, 7},
		{8, 1, 8},
		{9, 2, 1},
		{16, 2, 8},
		{17, 3, 1},
		{4093, 512, 5},
	}
	for _, tt := range tests {
		data := make([]byte, tt.size)
		for i := range data {
			data[i] = byte(i)
		}
		img, err := NewImage(data)
		if err != nil {
			t.Fatalf("NewImage(%d bytes): %v", tt.size, err)
		}
		frames := img.Frames()
		if len(frames) != tt.frames || img.FrameCount() != tt.frames {
			t.Errorf("size %d: %d frames (count %d), want %d", tt.size, len(frames), img.FrameCount(), tt.frames)
			continue
		}
		if got := len(frames[len(frames)-1]); got != tt.lastSize {
			t.Errorf("size %d: last frame %d bytes, want %d", tt.size, got, tt.lastSize)
		}
		if joined := bytes.Join(frames, nil); !bytes.Equal(joined, data) {
			t.Errorf("size %d: frames do not reassemble the image", tt.size)
		}
	}
}

func TestImageCRC(t *testing.T) {
	img, err := NewImage([]byte("123456789"))
	if err != nil {
		t.Fatal(err)
	}
	if img.CRC32() != 0xCBF43926 {
		t.Errorf("CRC32() = %08x, want cbf43926", img.CRC32())
	}
	if img.Len() != 9 {
		t.Errorf("Len() = %d", img.Len())
	}
}

func TestNewImageEmpty(t *testing.T) {
	if _, err := NewImage(nil); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("NewImage(nil) error = %v, want ErrEmptyImage", err)
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fw.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if img.FrameCount() != 2 {
		t.Errorf("FrameCount() = %d, want 2", img.FrameCount())
	}

	if _, err := LoadImage(filepath.Join(dir, "missing.bin")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadImage(missing) error = %v", err)
	}

	empty := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadImage(empty); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("LoadImage(empty) error = %v", err)
	}
}
