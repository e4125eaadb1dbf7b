package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fiberpos/tendo-go/pkg/dispatch"
	"github.com/fiberpos/tendo-go/pkg/log"
)

// Transceiver defaults.
const (
	// DefaultMatch selects ports whose description mentions USB.
	DefaultMatch = "USB"

	// DefaultBitrate is the Lawicel command for 1 Mbit/s.
	DefaultBitrate = "S8"

	// DefaultBaudRate is the nominal serial rate of the CDC port.
	DefaultBaudRate = 115200

	// DefaultCommandDelay spaces the configuration commands.
	DefaultCommandDelay = 500 * time.Millisecond

	// DefaultReadTimeout bounds one read of ReadAvailable.
	DefaultReadTimeout = 2 * time.Millisecond

	// SerialReplyLen is the length of the N reply: 'N', four characters, CR.
	SerialReplyLen = 6

	// MaxLogLineSize is the maximum number of bytes copied into a trace event.
	MaxLogLineSize = 512

	readChunk = 256
)

// Transport errors.
var (
	// ErrClosed indicates the transport was closed.
	ErrClosed = errors.New("transport: closed")

	// ErrNoTransceiver indicates discovery found no usable transceiver.
	ErrNoTransceiver = errors.New("transport: no transceiver found")

	// ErrBadSerialReply indicates the N reply had the wrong shape.
	ErrBadSerialReply = errors.New("transport: malformed serial number reply")

	// ErrSerialMismatch indicates the transceiver is not the one asked for.
	ErrSerialMismatch = errors.New("transport: serial number mismatch")
)

// Config configures transceiver discovery and the serial link.
type Config struct {
	// PortName opens this port directly and skips enumeration.
	PortName string `yaml:"port,omitempty"`

	// Match selects candidate ports by description (default: "USB").
	Match string `yaml:"match,omitempty"`

	// SerialNumber selects one transceiver. Empty accepts the first found.
	SerialNumber string `yaml:"serial,omitempty"`

	// Bitrate is the Lawicel bitrate command (default: "S8", 1 Mbit/s).
	Bitrate string `yaml:"bitrate,omitempty"`

	// BaudRate is the serial rate (default: 115200).
	BaudRate int `yaml:"baud,omitempty"`

	// CommandDelay is the pause after each configuration command and the
	// wait for the serial number reply (default: 500 ms).
	CommandDelay time.Duration `yaml:"command_delay,omitempty"`

	// ReadTimeout bounds one read in ReadAvailable (default: 2 ms).
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`

	// Trace receives raw line events. If nil, tracing is disabled.
	Trace log.Logger `yaml:"-"`

	// Logger is the operational logger (default: slog.Default()).
	Logger *slog.Logger `yaml:"-"`

	// Opener opens ports (default: OpenSerial).
	Opener Opener `yaml:"-"`

	// Lister enumerates ports (default: ListSerial).
	Lister Lister `yaml:"-"`
}

// DefaultConfig returns the settings for a CANUSB-style transceiver at 1 Mbit/s.
func DefaultConfig() Config {
	return Config{
		Match:        DefaultMatch,
		Bitrate:      DefaultBitrate,
		BaudRate:     DefaultBaudRate,
		CommandDelay: DefaultCommandDelay,
		ReadTimeout:  DefaultReadTimeout,
	}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Match == "" {
		c.Match = def.Match
	}
	if c.Bitrate == "" {
		c.Bitrate = def.Bitrate
	}
	if c.BaudRate <= 0 {
		c.BaudRate = def.BaudRate
	}
	if c.CommandDelay <= 0 {
		c.CommandDelay = def.CommandDelay
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Opener == nil {
		c.Opener = OpenSerial
	}
	if c.Lister == nil {
		c.Lister = ListSerial
	}
	c.Trace = log.OrNoop(c.Trace)
	return c
}

// Transport is one opened transceiver.
// It is safe for concurrent use.
type Transport struct {
	mu     sync.Mutex
	port   Port
	name   string
	serial string
	closed bool

	sessionID string
	config    Config
	buf       []byte
}

// New wraps an already opened port. Most callers use Open instead.
func New(port Port, name string, cfg Config) *Transport {
	cfg = cfg.withDefaults()
	return &Transport{
		port:      port,
		name:      name,
		sessionID: uuid.New().String(),
		config:    cfg,
		buf:       make([]byte, readChunk),
	}
}

// SessionID identifies this opened transceiver in traces.
func (t *Transport) SessionID() string { return t.sessionID }

// PortName returns the serial device path.
func (t *Transport) PortName() string { return t.name }

// SerialNumber returns the serial number reported by the transceiver,
// or "" before QuerySerialNumber succeeded.
func (t *Transport) SerialNumber() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.serial
}

// String returns a description for logs.
func (t *Transport) String() string {
	return fmt.Sprintf("%s (serial %s)", t.name, t.SerialNumber())
}

// WriteLine writes one complete wire line.
func (t *Transport) WriteLine(line []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeLocked(line, log.CategoryMessage)
}

// ReadAvailable returns every byte buffered by the port. Each read waits at
// most ReadTimeout; reading stops at the first empty read.
func (t *Transport) ReadAvailable() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}

	var out []byte
	for {
		n, err := t.port.Read(t.buf)
		if n > 0 {
			out = append(out, t.buf[:n]...)
		}
		if err != nil {
			return out, fmt.Errorf("read %s: %w", t.name, err)
		}
		if n < len(t.buf) {
			break
		}
	}
	if len(out) > 0 {
		t.traceLine(log.DirectionIn, log.CategoryMessage, out)
	}
	return out, nil
}

// QuerySerialNumber sends N and waits up to CommandDelay for the six
// character reply. The serial number is the four characters after N.
func (t *Transport) QuerySerialNumber(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.resetInputLocked(); err != nil {
		return "", err
	}
	if err := t.writeLocked([]byte("N\r"), log.CategoryControl); err != nil {
		return "", err
	}

	var reply []byte
	deadline := time.Now().Add(t.config.CommandDelay)
	for len(reply) < SerialReplyLen && time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := t.port.Read(t.buf)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", t.name, err)
		}
		reply = append(reply, t.buf[:n]...)
	}
	t.traceLine(log.DirectionIn, log.CategoryControl, reply)

	if len(reply) != SerialReplyLen || reply[0] != 'N' || reply[SerialReplyLen-1] != '\r' {
		return "", fmt.Errorf("%w: %q from %s", ErrBadSerialReply, reply, t.name)
	}
	t.serial = string(reply[1:5])
	return t.serial, nil
}

// Configure closes the CAN channel, sets the bitrate, reopens the channel
// and drops whatever the transceiver echoed.
func (t *Transport) Configure(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, cmd := range []string{"C", t.config.Bitrate, "O"} {
		if err := t.writeLocked([]byte(cmd+"\r"), log.CategoryControl); err != nil {
			return err
		}
		if err := sleep(ctx, t.config.CommandDelay); err != nil {
			return err
		}
	}
	if err := t.resetInputLocked(); err != nil {
		return err
	}
	t.traceState("CONFIGURED", "OPEN", "channel opened with "+t.config.Bitrate)
	return nil
}

// Close flushes both port buffers and closes the port.
// Closing twice is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	_ = t.port.ResetInputBuffer()
	_ = t.port.ResetOutputBuffer()
	err := t.port.Close()
	t.traceState("OPEN", "CLOSED", "")
	t.config.Logger.Debug("transceiver closed", "port", t.name, "serial", t.serial)
	return err
}

func (t *Transport) writeLocked(line []byte, cat log.Category) error {
	if t.closed {
		return ErrClosed
	}
	if _, err := t.port.Write(line); err != nil {
		return fmt.Errorf("write %s: %w", t.name, err)
	}
	t.traceLine(log.DirectionOut, cat, line)
	return nil
}

func (t *Transport) resetInputLocked() error {
	if t.closed {
		return ErrClosed
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input %s: %w", t.name, err)
	}
	return nil
}

func (t *Transport) emit(e log.Event) {
	e.Timestamp = time.Now()
	e.SessionID = t.sessionID
	e.Port = t.name
	e.Transceiver = t.serial
	e.Layer = log.LayerTransport
	t.config.Trace.Log(e)
}

// traceLine records raw bytes, truncated to MaxLogLineSize.
func (t *Transport) traceLine(dir log.Direction, cat log.Category, data []byte) {
	ev := &log.LineEvent{Size: len(data)}
	if len(data) > MaxLogLineSize {
		data = data[:MaxLogLineSize]
		ev.Truncated = true
	}
	ev.Data = append([]byte(nil), data...)
	t.emit(log.Event{Direction: dir, Category: cat, Line: ev})
}

func (t *Transport) traceState(from, to, reason string) {
	t.emit(log.Event{
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityTransceiver,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Compile-time interface satisfaction check.
var _ dispatch.Link = (*Transport)(nil)
