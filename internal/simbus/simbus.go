// Package simbus provides a scripted in-memory transceiver for tests.
//
// A Link decodes every line written to it, hands the request frame to the
// responder registered for its command, and queues the encoded replies for
// ReadAvailable after an optional delay.
package simbus

import (
	"errors"
	"sync"
	"time"

	"github.com/fiberpos/tendo-go/pkg/slcan"
)

// ErrClosed is returned by a closed Link.
var ErrClosed = errors.New("simbus: link closed")

// Responder produces the replies to one request frame.
type Responder func(req slcan.Frame) []slcan.Frame

type queued struct {
	readyAt time.Time
	data    []byte
}

// Link is a fake transceiver link. It is safe for concurrent use.
type Link struct {
	mu       sync.Mutex
	handlers map[uint8]Responder
	fallback Responder
	queue    []queued
	sent     []slcan.Frame
	lines    [][]byte
	delay    time.Duration
	writeErr error
	readErr  error
	closed   bool
}

// New creates a Link with no responders: every request goes unanswered.
func New() *Link {
	return &Link{handlers: make(map[uint8]Responder)}
}

// Handle registers the responder for a command.
func (l *Link) Handle(command uint8, r Responder) *Link {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[command] = r
	return l
}

// HandleDefault registers the responder for commands without a handler.
func (l *Link) HandleDefault(r Responder) *Link {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fallback = r
	return l
}

// SetDelay delays every reply queued after the call.
func (l *Link) SetDelay(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delay = d
}

// FailWrites makes every following WriteLine return err (nil to stop).
func (l *Link) FailWrites(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr = err
}

// FailReads makes every following ReadAvailable return err (nil to stop).
func (l *Link) FailReads(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErr = err
}

// Inject queues unsolicited frames, readable immediately.
func (l *Link) Inject(frames ...slcan.Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enqueue(time.Now(), frames)
}

// InjectRaw queues raw bytes, readable immediately.
func (l *Link) InjectRaw(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = append(l.queue, queued{readyAt: time.Now(), data: append([]byte(nil), data...)})
}

// WriteLine implements dispatch.Link.
func (l *Link) WriteLine(line []byte) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.writeErr != nil {
		err := l.writeErr
		l.mu.Unlock()
		return err
	}
	l.lines = append(l.lines, append([]byte(nil), line...))

	frames, _ := slcan.Decode(line)
	var replies []slcan.Frame
	var responders []Responder
	for _, f := range frames {
		l.sent = append(l.sent, f)
		r := l.handlers[f.Command]
		if r == nil {
			r = l.fallback
		}
		if r != nil {
			responders = append(responders, r)
		}
	}
	delay := l.delay
	l.mu.Unlock()

	// Responders run unlocked so they may call back into the Link.
	for i, r := range responders {
		replies = append(replies, r(frames[i])...)
	}

	l.mu.Lock()
	l.enqueue(time.Now().Add(delay), replies)
	l.mu.Unlock()
	return nil
}

// ReadAvailable implements dispatch.Link.
func (l *Link) ReadAvailable() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	if l.readErr != nil {
		return nil, l.readErr
	}

	now := time.Now()
	var out []byte
	rest := l.queue[:0]
	for _, q := range l.queue {
		if q.readyAt.After(now) {
			rest = append(rest, q)
			continue
		}
		out = append(out, q.data...)
	}
	l.queue = rest
	return out, nil
}

// Close implements dispatch.Link.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Closed reports whether Close was called.
func (l *Link) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Sent returns every request frame written so far.
func (l *Link) Sent() []slcan.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]slcan.Frame(nil), l.sent...)
}

// SentCommand returns the request frames written for one command.
func (l *Link) SentCommand(command uint8) []slcan.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []slcan.Frame
	for _, f := range l.sent {
		if f.Command == command {
			out = append(out, f)
		}
	}
	return out
}

// Lines returns the raw lines written so far.
func (l *Link) Lines() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.lines...)
}

func (l *Link) enqueue(at time.Time, frames []slcan.Frame) {
	for _, f := range frames {
		line, err := slcan.EncodeRaw(f)
		if err != nil {
			continue
		}
		l.queue = append(l.queue, queued{readyAt: at, data: line})
	}
}
