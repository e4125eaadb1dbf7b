package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiberpos/tendo-go/pkg/log"
	"github.com/fiberpos/tendo-go/pkg/msgbus"
	"github.com/fiberpos/tendo-go/pkg/slcan"
)

// DefaultPollInterval is the sleep between two polls of the link.
const DefaultPollInterval = 5 * time.Millisecond

// uidSlots is the size of the UID space.
const uidSlots = slcan.MaxUID + 1

// Link is the byte-level connection to a transceiver.
type Link interface {
	// WriteLine writes one complete wire line.
	WriteLine(line []byte) error

	// ReadAvailable returns whatever bytes are buffered without waiting
	// longer than the link's read timeout. An empty result is not an error.
	ReadAvailable() ([]byte, error)

	// Close releases the link.
	Close() error
}

// Config configures a Dispatcher.
type Config struct {
	// PollInterval is the sleep between polls (default: 5 ms).
	PollInterval time.Duration

	// Timeouts gives the deadline of each TimeoutClass.
	Timeouts Timeouts

	// Bus is the inbox for decoded frames. If nil a new bus is created.
	Bus *msgbus.Bus

	// Trace receives protocol trace events. If nil, tracing is disabled.
	Trace log.Logger

	// SessionID tags trace events.
	SessionID string

	// Logger is the operational logger (default: slog.Default()).
	Logger *slog.Logger
}

// DefaultConfig returns a Config with the firmware's timing.
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		Timeouts:     DefaultTimeouts(),
	}
}

// Phase is the lifecycle step of a request.
type Phase uint32

const (
	PhaseIdle Phase = iota
	PhaseSent
	PhaseMatched
	PhaseTimedOut
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseSent:
		return "SENT"
	case PhaseMatched:
		return "MATCHED"
	case PhaseTimedOut:
		return "TIMED_OUT"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Pending is a request that has been sent and not yet received.
type Pending struct {
	call     Call
	uid      uint8
	sent     time.Time
	deadline time.Time

	phase    atomic.Uint32
	resolved atomic.Bool

	// failed is set when the write failed; the UID is already released.
	failed *Result
}

// UID returns the correlation tag assigned to the request.
func (p *Pending) UID() uint8 { return p.uid }

// Call returns the request.
func (p *Pending) Call() Call { return p.call }

// Deadline returns the instant after which the request times out.
func (p *Pending) Deadline() time.Time { return p.deadline }

// Phase returns the current lifecycle step.
func (p *Pending) Phase() Phase { return Phase(p.phase.Load()) }

func (p *Pending) setPhase(ph Phase) { p.phase.Store(uint32(ph)) }

// expired reports whether the deadline of a sent request has passed.
func (p *Pending) expired(now time.Time) bool {
	return !p.deadline.IsZero() && now.After(p.deadline)
}

// Dispatcher is the request/response engine for one transceiver.
// It is safe for concurrent use; up to 16 requests may be in flight.
type Dispatcher struct {
	mu       sync.Mutex
	link     Link
	bus      *msgbus.Bus
	dec      slcan.Decoder
	lastUID  uint8
	inflight [uidSlots]*Pending
	closed   bool
	failure  error

	pollInterval time.Duration
	timeouts     Timeouts
	trace        log.Logger
	sessionID    string
	logger       *slog.Logger
}

// New creates a Dispatcher over link. Zero config fields take defaults.
func New(link Link, cfg Config) *Dispatcher {
	d := &Dispatcher{
		link:         link,
		bus:          cfg.Bus,
		pollInterval: cfg.PollInterval,
		timeouts:     cfg.Timeouts,
		trace:        log.OrNoop(cfg.Trace),
		sessionID:    cfg.SessionID,
		logger:       cfg.Logger,
	}
	if d.bus == nil {
		d.bus = msgbus.New()
	}
	if d.pollInterval <= 0 {
		d.pollInterval = DefaultPollInterval
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Bus returns the dispatcher's message bus.
func (d *Dispatcher) Bus() *msgbus.Bus {
	return d.bus
}

// Timeouts returns the configured timeouts.
func (d *Dispatcher) Timeouts() Timeouts {
	return d.timeouts
}

// InFlight returns the number of unresolved requests whose deadline has
// not passed.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	n := 0
	for _, p := range d.inflight {
		if p != nil && !p.expired(now) {
			n++
		}
	}
	return n
}

// Do sends call and waits for its resolution.
// The error is non-nil only for misuse or loss of the transceiver.
func (d *Dispatcher) Do(ctx context.Context, call Call) (Result, error) {
	p, err := d.Send(ctx, call)
	if err != nil {
		return Result{Address: call.Address, Command: call.Command, Outcome: OutcomeSendFailed, Code: CodeSendFailed, Cause: err}, err
	}
	return d.Receive(ctx, p)
}

// Send allocates a UID, encodes the call and writes it to the link.
// It never waits for a reply. A failed write is not an error: the
// returned Pending resolves immediately to OutcomeSendFailed.
func (d *Dispatcher) Send(ctx context.Context, call Call) (*Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, d.closedErr()
	}

	p := &Pending{call: call}
	uid, ok := d.allocateUID(p)
	if !ok {
		return nil, ErrUIDExhausted
	}
	p.uid = uid

	frame := slcan.Frame{Address: call.Address, Command: call.Command, UID: uid, Payload: call.Payload}
	var line []byte
	var err error
	if call.Raw {
		line, err = slcan.EncodeRaw(frame)
	} else {
		line, err = slcan.Encode(frame)
	}
	if err != nil {
		d.inflight[uid] = nil
		return nil, fmt.Errorf("%w: %w", ErrInvalidCall, err)
	}

	// Replies that arrived late for an earlier holder of this UID, whether
	// it was received or reclaimed after expiring, must not be matched to
	// the new request.
	if err := d.pollLocked(); err != nil {
		d.inflight[uid] = nil
		return nil, err
	}
	if n := d.bus.Discard(uid); n > 0 {
		d.logger.Debug("discarded stale frames", "uid", uid, "count", n)
	}

	p.sent = time.Now()
	p.deadline = p.sent.Add(d.timeoutFor(call))

	if err := d.link.WriteLine(line); err != nil {
		d.inflight[uid] = nil
		res := sendFailed(call, uid, err)
		p.failed = &res
		p.setPhase(PhaseFailed)
		d.logger.Warn("request write failed", "address", call.Address, "command", call.Command, "uid", uid, "error", err)
		d.traceRequest(p, log.PhaseSendFailed, res)
		return p, nil
	}

	p.setPhase(PhaseSent)
	d.traceRequest(p, log.PhaseSent, Result{})
	return p, nil
}

// Receive waits for the replies to p.
//
// Targeted requests resolve on the first matching frame; broadcast
// requests collect every reply until the deadline. Cancelling ctx ends the
// wait early with whatever was collected. The error is non-nil only when
// the link failed or p was already received.
func (d *Dispatcher) Receive(ctx context.Context, p *Pending) (Result, error) {
	if !p.resolved.CompareAndSwap(false, true) {
		return Result{Address: p.call.Address, UID: p.uid, Command: p.call.Command,
			Outcome: OutcomeNoResponse, Code: CodeNoResponse, Cause: ErrResolved}, ErrResolved
	}
	if p.failed != nil {
		return *p.failed, nil
	}
	defer d.release(p)

	var (
		frames  []slcan.Frame
		stopErr error
	)
	broadcast := p.call.IsBroadcast()

poll:
	for {
		got, err := d.claim(p)
		if err != nil {
			stopErr = err
			break
		}
		frames = append(frames, got...)
		if !broadcast && len(frames) > 0 {
			break
		}

		remaining := time.Until(p.deadline)
		if remaining <= 0 {
			break
		}
		timer := time.NewTimer(min(d.pollInterval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			break poll
		case <-timer.C:
		}
	}

	res := resolve(p.call, p.uid, frames, time.Since(p.sent))
	switch {
	case stopErr != nil && len(frames) == 0:
		res.Cause = stopErr
	case ctx.Err() != nil && len(frames) == 0:
		res.Cause = ctx.Err()
	}

	if len(frames) > 0 {
		p.setPhase(PhaseMatched)
		d.traceRequest(p, log.PhaseMatched, res)
	} else {
		p.setPhase(PhaseTimedOut)
		d.traceRequest(p, log.PhaseTimedOut, res)
	}
	if res.Outcome == OutcomeDeviceRejected {
		d.logger.Debug("command rejected", "address", p.call.Address, "command", p.call.Command, "uid", p.uid, "code", res.Code.String())
	}
	return res, stopErr
}

// Close closes the link. Later calls return ErrTransportClosed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.traceState("OPEN", "CLOSED", "closed by caller")
	return d.link.Close()
}

// Reset replaces the link after a failure or Close, and drops every
// buffered frame. Requests still in flight keep their UIDs until they
// resolve or expire.
func (d *Dispatcher) Reset(link Link) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		_ = d.link.Close()
	}
	d.link = link
	d.closed = false
	d.failure = nil
	d.dec.Reset()
	d.bus.Flush()
	d.traceState("CLOSED", "OPEN", "reset")
}

// Err returns the link failure that closed the dispatcher, if any.
func (d *Dispatcher) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		return nil
	}
	return d.closedErr()
}

// claim runs one poll iteration for p under the lock.
func (d *Dispatcher) claim(p *Pending) ([]slcan.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, d.closedErr()
	}
	if err := d.pollLocked(); err != nil {
		return nil, err
	}
	if d.inflight[p.uid] != p {
		// The UID was reclaimed and now belongs to a newer request.
		return nil, nil
	}
	return d.bus.Claim(p.call.Address, p.uid), nil
}

// pollLocked reads everything the link has buffered, decodes it and
// publishes the frames. A read error closes the dispatcher.
func (d *Dispatcher) pollLocked() error {
	data, err := d.link.ReadAvailable()
	if err != nil {
		d.failLocked(err)
		return d.closedErr()
	}
	if len(data) == 0 {
		return nil
	}

	frames, malformed := d.dec.Feed(data)
	for _, m := range malformed {
		d.logger.Debug("malformed frame", "token", m.Token, "reason", m.Reason)
		d.emit(log.Event{
			Direction: log.DirectionIn,
			Layer:     log.LayerFrame,
			Category:  log.CategoryError,
			Frame:     &log.FrameEvent{Payload: []byte(m.Token), Malformed: m.Reason},
		})
	}
	for _, f := range frames {
		d.emit(log.Event{
			Direction: log.DirectionIn,
			Layer:     log.LayerFrame,
			Category:  log.CategoryMessage,
			Frame: &log.FrameEvent{
				Address: f.Address,
				Command: f.Command,
				UID:     f.UID,
				Code:    f.Code,
				Payload: f.Payload,
			},
		})
	}
	d.bus.Publish(frames...)
	return nil
}

func (d *Dispatcher) failLocked(err error) {
	if d.closed {
		return
	}
	d.closed = true
	d.failure = err
	_ = d.link.Close()
	d.logger.Error("transceiver read failed, closing link", "error", err)
	d.traceState("OPEN", "FAILED", err.Error())
}

func (d *Dispatcher) closedErr() error {
	if d.failure != nil {
		return fmt.Errorf("%w: %w", ErrTransportClosed, d.failure)
	}
	return ErrTransportClosed
}

// allocateUID assigns p the next UID that is free or held by a request
// whose deadline has passed.
func (d *Dispatcher) allocateUID(p *Pending) (uint8, bool) {
	now := time.Now()
	for i := 0; i < uidSlots; i++ {
		d.lastUID = (d.lastUID + 1) % uidSlots
		holder := d.inflight[d.lastUID]
		if holder == nil || holder.expired(now) {
			if holder != nil {
				d.logger.Debug("reclaimed expired uid", "uid", d.lastUID, "address", holder.call.Address, "command", holder.call.Command)
			}
			d.inflight[d.lastUID] = p
			return d.lastUID, true
		}
	}
	return 0, false
}

// release frees the UID of p unless it was reclaimed meanwhile.
func (d *Dispatcher) release(p *Pending) {
	d.mu.Lock()
	if d.inflight[p.uid] == p {
		d.inflight[p.uid] = nil
	}
	d.mu.Unlock()
}

func (d *Dispatcher) timeoutFor(call Call) time.Duration {
	if call.Timeout > 0 {
		return call.Timeout
	}
	return d.timeouts.For(call.Class)
}

func (d *Dispatcher) emit(e log.Event) {
	e.Timestamp = time.Now()
	e.SessionID = d.sessionID
	d.trace.Log(e)
}

func (d *Dispatcher) traceRequest(p *Pending, phase log.Phase, res Result) {
	ev := &log.RequestEvent{
		Address: p.call.Address,
		Command: p.call.Command,
		UID:     p.uid,
		Phase:   phase,
	}
	dir := log.DirectionOut
	if phase != log.PhaseSent {
		dir = log.DirectionIn
		ev.Code = int8(res.Code)
		ev.Replies = len(res.Replies)
		ev.Elapsed = res.Elapsed
	}
	d.emit(log.Event{Direction: dir, Layer: log.LayerDispatch, Category: log.CategoryMessage, Request: ev})
}

func (d *Dispatcher) traceState(from, to, reason string) {
	d.emit(log.Event{
		Layer:    log.LayerDispatch,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityDispatcher,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}
