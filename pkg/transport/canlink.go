package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/notnil/canbus"

	"github.com/fiberpos/tendo-go/pkg/dispatch"
	"github.com/fiberpos/tendo-go/pkg/slcan"
)

// ErrNotOneFrame indicates a line that does not hold exactly one frame.
var ErrNotOneFrame = errors.New("transport: line must hold exactly one frame")

// CANLink adapts a frame-level canbus.Bus to the line-oriented
// dispatch.Link. Outbound lines are decoded into CAN frames; received
// frames are re-encoded as lines and buffered until ReadAvailable.
type CANLink struct {
	bus    canbus.Bus
	logger *slog.Logger

	mu      sync.Mutex
	pending []byte
	err     error
	closed  bool

	done chan struct{}
}

// NewCANLink starts receiving from bus. The link owns bus and closes it.
func NewCANLink(bus canbus.Bus, logger *slog.Logger) *CANLink {
	if logger == nil {
		logger = slog.Default()
	}
	l := &CANLink{
		bus:    bus,
		logger: logger,
		done:   make(chan struct{}),
	}
	go l.receiveLoop()
	return l
}

// WriteLine sends the frame encoded in line.
func (l *CANLink) WriteLine(line []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return canbus.ErrClosed
	}

	frames, malformed := slcan.Decode(line)
	if len(malformed) > 0 {
		return malformed[0]
	}
	if len(frames) != 1 {
		return fmt.Errorf("%w: got %d", ErrNotOneFrame, len(frames))
	}
	cf, err := frames[0].CAN()
	if err != nil {
		return err
	}
	return l.bus.Send(cf)
}

// ReadAvailable returns the lines received since the previous call. Once
// the receiver stopped on an error, that error is returned after the
// buffered lines have been drained.
func (l *CANLink) ReadAvailable() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.pending
	l.pending = nil
	if len(out) == 0 && l.err != nil {
		return nil, l.err
	}
	return out, nil
}

// Close closes the bus and waits for the receiver to stop.
func (l *CANLink) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	err := l.bus.Close()
	<-l.done
	return err
}

func (l *CANLink) receiveLoop() {
	defer close(l.done)
	for {
		cf, err := l.bus.Receive()
		if err != nil {
			l.mu.Lock()
			if !l.closed {
				l.err = err
			}
			l.mu.Unlock()
			return
		}

		f, err := slcan.FromCAN(cf)
		if err != nil {
			l.logger.Debug("ignoring foreign CAN frame", "id", cf.ID, "error", err)
			continue
		}
		line, err := slcan.EncodeRaw(f)
		if err != nil {
			l.logger.Debug("ignoring unencodable CAN frame", "id", cf.ID, "error", err)
			continue
		}

		l.mu.Lock()
		l.pending = append(l.pending, line...)
		l.mu.Unlock()
	}
}

// Compile-time interface satisfaction check.
var _ dispatch.Link = (*CANLink)(nil)
