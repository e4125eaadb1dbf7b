package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fiberpos/tendo-go/pkg/positioner"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// FleetState is the host-side state of a fleet that must survive a restart
// of the driver.
type FleetState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Transceivers lists the serial numbers of the transceivers in use.
	Transceivers []string `json:"transceivers,omitempty"`

	// Units holds one record per known positioner, sorted by address.
	Units []UnitState `json:"units,omitempty"`
}

// UnitState is the mirrored state of one positioner.
type UnitState struct {
	Address uint16 `json:"address"`

	// Firmware is the last reported firmware version.
	Firmware string `json:"firmware,omitempty"`

	// Target is the last accepted absolute target in degrees.
	Target *positioner.Position `json:"target,omitempty"`

	// Status is the last status register read.
	Status uint64 `json:"status,omitempty"`

	// Altered marks settings changed since the last save to flash.
	Altered bool `json:"altered,omitempty"`
}

// Altered returns the addresses with unsaved settings.
func (s *FleetState) Altered() []uint16 {
	var out []uint16
	for _, u := range s.Units {
		if u.Altered {
			out = append(out, u.Address)
		}
	}
	return out
}

// Snapshot captures the mirrored state of every unit of f.
func Snapshot(f *positioner.Fleet, transceivers ...string) *FleetState {
	state := &FleetState{Transceivers: transceivers}
	for _, u := range f.Units() {
		us := UnitState{
			Address:  u.Address(),
			Firmware: u.Firmware(),
			Status:   u.LastStatus(),
			Altered:  u.Altered(),
		}
		if pos, ok := u.Target(); ok {
			us.Target = &pos
		}
		state.Units = append(state.Units, us)
	}
	sort.Slice(state.Units, func(i, j int) bool { return state.Units[i].Address < state.Units[j].Address })
	return state
}

// Restore re-applies the altered markers of state to the units of f so a
// later SaveAltered still writes them to flash. It returns the addresses
// in state that f does not know.
func Restore(f *positioner.Fleet, state *FleetState) []uint16 {
	if state == nil {
		return nil
	}
	var missing []uint16
	for _, us := range state.Units {
		u, ok := f.Unit(us.Address)
		if !ok {
			missing = append(missing, us.Address)
			continue
		}
		if us.Altered {
			u.SetAltered(true)
		}
	}
	return missing
}

// FleetStateStore manages persistence of fleet state to a JSON file.
type FleetStateStore struct {
	mu   sync.Mutex
	path string
}

// NewFleetStateStore creates a new fleet state store.
func NewFleetStateStore(path string) *FleetStateStore {
	return &FleetStateStore{path: path}
}

// Path returns the state file path.
func (s *FleetStateStore) Path() string {
	return s.path
}

// Save persists the fleet state to disk. The file is written to a
// temporary name first and renamed into place.
func (s *FleetStateStore) Save(state *FleetState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the fleet state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *FleetStateStore) Load() (*FleetState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &FleetState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("state file %s has version %d, newest supported is %d", s.path, state.Version, StateVersion)
	}

	return state, nil
}

// Clear removes the state file.
func (s *FleetStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
