package positioner

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/fiberpos/tendo-go/pkg/dispatch"
	"github.com/fiberpos/tendo-go/pkg/slcan"
)

// Fleet errors.
var (
	// ErrBroadcastAddress is returned when address 0 is added as a unit.
	ErrBroadcastAddress = errors.New("positioner: address 0 is reserved for broadcast")

	// ErrUnknownDispatcher is returned for a dispatcher the fleet does not own.
	ErrUnknownDispatcher = errors.New("positioner: dispatcher not in fleet")
)

// FleetConfig configures a Fleet.
type FleetConfig struct {
	// Unit is applied to every unit of the fleet. The fleet tracks the
	// altered marker itself before AlteredHook is called.
	Unit UnitConfig

	// Logger receives fleet changes. Nil disables logging.
	Logger *slog.Logger
}

// Fleet owns the dispatchers of every transceiver and the units reachable
// through them. It is safe for concurrent use.
type Fleet struct {
	config FleetConfig

	mu          sync.RWMutex
	dispatchers []*dispatch.Dispatcher
	units       map[uint16]*Unit
	all         *Unit
}

// NewFleet creates a fleet over the given dispatchers. No units are known
// until Discover or Add is called.
func NewFleet(cfg FleetConfig, dispatchers ...*dispatch.Dispatcher) *Fleet {
	if cfg.Unit.Logger == nil {
		cfg.Unit.Logger = cfg.Logger
	}
	f := &Fleet{
		config: cfg,
		units:  make(map[uint16]*Unit),
	}
	f.dispatchers = append(f.dispatchers, dispatchers...)
	f.all = NewUnit(slcan.BroadcastAddress, f.unitConfig(), f.dispatchers...)
	return f
}

func (f *Fleet) debugLog(msg string, args ...any) {
	if f.config.Logger != nil {
		f.config.Logger.Debug(msg, args...)
	}
}

func (f *Fleet) unitConfig() UnitConfig {
	cfg := f.config.Unit
	user := cfg.AlteredHook
	cfg.AlteredHook = func(addr uint16, cmd Command) {
		if u, ok := f.Unit(addr); ok {
			u.SetAltered(cmd != CmdSaveCalibrationData)
		}
		if user != nil {
			user(addr, cmd)
		}
	}
	return cfg
}

// AddDispatcher adds a transceiver to the fleet.
func (f *Fleet) AddDispatcher(d *dispatch.Dispatcher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatchers = append(f.dispatchers, d)
	f.all = NewUnit(slcan.BroadcastAddress, f.unitConfig(), f.dispatchers...)
}

// Dispatchers returns the dispatchers of the fleet.
func (f *Fleet) Dispatchers() []*dispatch.Dispatcher {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.dispatchers)
}

// CloseDispatcher closes one transceiver and drops the units behind it.
func (f *Fleet) CloseDispatcher(d *dispatch.Dispatcher) error {
	f.mu.Lock()
	i := slices.Index(f.dispatchers, d)
	if i < 0 {
		f.mu.Unlock()
		return ErrUnknownDispatcher
	}
	f.dispatchers = slices.Delete(f.dispatchers, i, i+1)
	for addr, u := range f.units {
		if len(u.dispatchers) > 0 && u.dispatchers[0] == d {
			delete(f.units, addr)
		}
	}
	f.all = NewUnit(slcan.BroadcastAddress, f.unitConfig(), f.dispatchers...)
	f.mu.Unlock()

	return d.Close()
}

// All returns the broadcast unit spanning every dispatcher.
func (f *Fleet) All() *Unit {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.all
}

// Unit returns the unit for an address.
func (f *Fleet) Unit(addr uint16) (*Unit, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	u, ok := f.units[addr]
	return u, ok
}

// Units returns every unit ordered by address.
func (f *Fleet) Units() []*Unit {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Unit, 0, len(f.units))
	for _, u := range f.units {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b *Unit) int { return int(a.address) - int(b.address) })
	return out
}

// Addresses returns the address of every unit in ascending order.
func (f *Fleet) Addresses() []uint16 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return sortedKeys(f.units)
}

// Len returns the number of units.
func (f *Fleet) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.units)
}

// Add registers a unit reachable through d, or through the first
// dispatcher when d is nil. An existing unit is returned unchanged.
func (f *Fleet) Add(addr uint16, d *dispatch.Dispatcher) (*Unit, error) {
	if addr == slcan.BroadcastAddress {
		return nil, ErrBroadcastAddress
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.units[addr]; ok {
		return u, nil
	}
	if d == nil {
		if len(f.dispatchers) == 0 {
			return nil, ErrNoDispatcher
		}
		d = f.dispatchers[0]
	}
	u := NewUnit(addr, f.unitConfig(), d)
	f.units[addr] = u
	f.debugLog("positioner added", "address", addr)
	return u, nil
}

// Remove drops units and returns the addresses that were known.
func (f *Fleet) Remove(addrs ...uint16) []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed []uint16
	for _, a := range addrs {
		if _, ok := f.units[a]; ok {
			delete(f.units, a)
			removed = append(removed, a)
		}
	}
	if len(removed) > 0 {
		f.debugLog("positioners removed", "addresses", removed)
	}
	return removed
}

// Altered returns the addresses of units with unsaved changes.
func (f *Fleet) Altered() []uint16 {
	var out []uint16
	for _, u := range f.Units() {
		if u.Altered() {
			out = append(out, u.address)
		}
	}
	return out
}

// SaveAltered saves every unit with unsaved changes.
func (f *Fleet) SaveAltered(ctx context.Context) ([]Response, error) {
	var out []Response
	var errs []error
	for _, addr := range f.Altered() {
		u, ok := f.Unit(addr)
		if !ok {
			continue
		}
		rs, err := u.Save(ctx)
		out = append(out, rs...)
		errs = append(errs, err)
	}
	return out, errors.Join(errs...)
}

type sighting struct {
	dispatcher *dispatch.Dispatcher
	version    string
}

// scan broadcasts GET_FIRMWARE on every dispatcher and records who
// answered.
func (f *Fleet) scan(ctx context.Context) (map[uint16]sighting, error) {
	seen := make(map[uint16]sighting)
	var errs []error
	for _, d := range f.Dispatchers() {
		probe := NewUnit(slcan.BroadcastAddress, UnitConfig{Logger: f.config.Unit.Logger}, d)
		out, err := probe.GetFirmware(ctx)
		errs = append(errs, err)
		for _, r := range out {
			if !r.OK() || r.Address == slcan.BroadcastAddress {
				continue
			}
			if _, dup := seen[r.Address]; dup {
				f.debugLog("positioner answered on several transceivers", "address", r.Address)
				continue
			}
			seen[r.Address] = sighting{dispatcher: d, version: r.Version}
		}
	}
	return seen, errors.Join(errs...)
}

// Discover broadcasts a firmware query on every dispatcher, adds every
// answering positioner and returns their addresses. Units already known
// keep their dispatcher.
func (f *Fleet) Discover(ctx context.Context) ([]uint16, error) {
	seen, err := f.scan(ctx)
	for addr, s := range seen {
		u, aerr := f.Add(addr, s.dispatcher)
		if aerr != nil {
			continue
		}
		u.mu.Lock()
		u.firmware = s.version
		u.mu.Unlock()
	}
	return sortedKeys(seen), err
}

// Available returns the addresses of every answering positioner without
// changing the fleet.
func (f *Fleet) Available(ctx context.Context) ([]uint16, error) {
	seen, err := f.scan(ctx)
	return sortedKeys(seen), err
}

// Prune removes units that no longer answer and returns their addresses.
func (f *Fleet) Prune(ctx context.Context) ([]uint16, error) {
	seen, err := f.scan(ctx)
	if err != nil {
		return nil, err
	}
	var gone []uint16
	for _, addr := range f.Addresses() {
		if _, ok := seen[addr]; !ok {
			gone = append(gone, addr)
		}
	}
	return f.Remove(gone...), nil
}

// Unlisted returns answering positioners that are not part of the fleet.
func (f *Fleet) Unlisted(ctx context.Context) ([]uint16, error) {
	seen, err := f.scan(ctx)
	var out []uint16
	for _, addr := range sortedKeys(seen) {
		if _, ok := f.Unit(addr); !ok {
			out = append(out, addr)
		}
	}
	return out, err
}

// Close closes every dispatcher and forgets all units.
func (f *Fleet) Close() error {
	f.mu.Lock()
	ds := f.dispatchers
	f.dispatchers = nil
	f.units = make(map[uint16]*Unit)
	f.all = NewUnit(slcan.BroadcastAddress, f.unitConfig())
	f.mu.Unlock()

	var errs []error
	for _, d := range ds {
		errs = append(errs, d.Close())
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[uint16]V) []uint16 {
	out := make([]uint16, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
