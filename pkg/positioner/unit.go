package positioner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fiberpos/tendo-go/pkg/dispatch"
	"github.com/fiberpos/tendo-go/pkg/slcan"
)

// DefaultRebootSettle is the pause between a reboot request and the first
// bootloader query.
const DefaultRebootSettle = 100 * time.Millisecond

// AlteredHook is called when a device accepted a command that changed its
// configuration. It is also called with CmdSaveCalibrationData once the
// changes have been saved.
type AlteredHook func(address uint16, cmd Command)

// InvalidHook is called when a device did not answer a command, or the
// command could not be sent.
type InvalidHook func(address uint16, r Response)

// UnitConfig configures a Unit.
type UnitConfig struct {
	// AlteredHook is optional.
	AlteredHook AlteredHook

	// InvalidHook is optional.
	InvalidHook InvalidHook

	// RebootSettle is the pause after a reboot before the bootloader is
	// queried. Zero selects DefaultRebootSettle.
	RebootSettle time.Duration

	// Logger receives debug output. Nil disables it.
	Logger *slog.Logger
}

// Unit sends commands to one positioner, or to every positioner when its
// address is 0. It is safe for concurrent use.
type Unit struct {
	address     uint16
	dispatchers []*dispatch.Dispatcher
	config      UnitConfig

	mu       sync.RWMutex
	firmware string
	target   Position
	hasPos   bool
	status   uint64
	altered  bool
}

// NewUnit creates a unit. A targeted unit uses the first dispatcher; a
// broadcast unit (address 0) sends every command on all of them.
func NewUnit(address uint16, cfg UnitConfig, dispatchers ...*dispatch.Dispatcher) *Unit {
	if cfg.RebootSettle == 0 {
		cfg.RebootSettle = DefaultRebootSettle
	}
	return &Unit{
		address:     address,
		dispatchers: dispatchers,
		config:      cfg,
	}
}

// Address returns the positioner address.
func (u *Unit) Address() uint16 { return u.address }

// IsBroadcast reports whether the unit addresses every positioner.
func (u *Unit) IsBroadcast() bool { return u.address == slcan.BroadcastAddress }

// Dispatchers returns the dispatchers the unit sends on.
func (u *Unit) Dispatchers() []*dispatch.Dispatcher {
	return append([]*dispatch.Dispatcher(nil), u.dispatchers...)
}

// Firmware returns the last firmware version read from the device.
func (u *Unit) Firmware() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.firmware
}

// Target returns the last accepted absolute goto target. The second value
// is false until one was accepted.
func (u *Unit) Target() (Position, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.target, u.hasPos
}

// LastStatus returns the last runtime status value read from the device.
func (u *Unit) LastStatus() uint64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.status
}

// Altered reports whether the device holds configuration changes that were
// not yet saved.
func (u *Unit) Altered() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.altered
}

// SetAltered overrides the altered marker, for callers restoring it from
// a store.
func (u *Unit) SetAltered(v bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.altered = v
}

func (u *Unit) String() string {
	if u.IsBroadcast() {
		return "positioner(all)"
	}
	return fmt.Sprintf("positioner(%d)", u.address)
}

func (u *Unit) debugLog(msg string, args ...any) {
	if u.config.Logger != nil {
		u.config.Logger.Debug(msg, args...)
	}
}

func (u *Unit) targets() []*dispatch.Dispatcher {
	if u.IsBroadcast() || len(u.dispatchers) == 0 {
		return u.dispatchers
	}
	return u.dispatchers[:1]
}

// send issues cmd on every target dispatcher. Results are returned for
// the dispatchers that could take the call even when others failed.
func (u *Unit) send(ctx context.Context, cmd Command, payload []byte, class dispatch.TimeoutClass) ([]dispatch.Result, error) {
	if err := cmd.check(u.IsBroadcast(), payload); err != nil {
		return nil, err
	}
	targets := u.targets()
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDispatcher, u)
	}

	call := dispatch.Call{
		Address: u.address,
		Command: uint8(cmd),
		Payload: payload,
		Raw:     cmd.RequestShape() == ShapeRaw,
		Class:   class,
	}
	results := make([]dispatch.Result, 0, len(targets))
	var errs []error
	for _, d := range targets {
		res, err := d.Do(ctx, call)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", u, cmd, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

type reply struct {
	resp  Response
	frame slcan.Frame
}

// replies flattens results into one entry per answering device, or one
// entry carrying the host code when nobody answered.
func (u *Unit) replies(cmd Command, results []dispatch.Result) []reply {
	var out []reply
	for _, res := range results {
		if len(res.Replies) == 0 {
			out = append(out, reply{resp: Response{
				Address: u.address,
				Command: cmd,
				UID:     res.UID,
				Code:    res.Code,
			}})
			continue
		}
		for _, rep := range res.Replies {
			out = append(out, reply{
				resp: Response{
					Address:   rep.Address,
					Command:   cmd,
					UID:       res.UID,
					Code:      rep.Code,
					Collision: rep.IsCollision(),
				},
				frame: rep.Frame,
			})
		}
	}
	return out
}

// observe applies the side effects shared by every command: altered
// marking, invalid reporting and logging.
func (u *Unit) observe(r Response) {
	switch {
	case r.OK():
		switch {
		case r.Command == CmdSaveCalibrationData:
			u.markSaved(r.Address)
		case r.Command.Alters():
			u.markAltered(r.Address, r.Command)
		}
	case r.Code == dispatch.CodeNoResponse || r.Code == dispatch.CodeSendFailed:
		u.debugLog("positioner did not answer", "address", r.Address, "command", r.Command.String(), "code", r.Code.String())
		if u.config.InvalidHook != nil {
			u.config.InvalidHook(r.Address, r)
		}
	default:
		u.debugLog("positioner rejected command", "address", r.Address, "command", r.Command.String(),
			"code", r.Code.String(), "collision", r.Collision)
	}
}

func (u *Unit) markAltered(addr uint16, cmd Command) {
	if addr == u.address {
		u.SetAltered(true)
	}
	if u.config.AlteredHook != nil {
		u.config.AlteredHook(addr, cmd)
	}
}

func (u *Unit) markSaved(addr uint16) {
	if addr == u.address {
		u.SetAltered(false)
	}
	if u.config.AlteredHook != nil {
		u.config.AlteredHook(addr, CmdSaveCalibrationData)
	}
}

// exec sends cmd and decodes every reply with decode.
func exec[T any](ctx context.Context, u *Unit, cmd Command, payload []byte, decode func(Response, slcan.Frame) (T, error)) ([]T, error) {
	return execClass(ctx, u, cmd, payload, cmd.Class(), decode)
}

func execClass[T any](ctx context.Context, u *Unit, cmd Command, payload []byte, class dispatch.TimeoutClass, decode func(Response, slcan.Frame) (T, error)) ([]T, error) {
	results, err := u.send(ctx, cmd, payload, class)
	errs := []error{err}
	out := make([]T, 0, len(results))
	for _, r := range u.replies(cmd, results) {
		u.observe(r.resp)
		v, derr := decode(r.resp, r.frame)
		if derr != nil {
			errs = append(errs, derr)
		}
		out = append(out, v)
	}
	return out, errors.Join(errs...)
}

// single returns the only response of a targeted command.
func single[T any](out []T, err error) (T, error) {
	if len(out) == 0 {
		var zero T
		return zero, err
	}
	return out[0], err
}
