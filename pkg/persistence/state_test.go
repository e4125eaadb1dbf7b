package persistence

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/fiberpos/tendo-go/internal/simbus"
	"github.com/fiberpos/tendo-go/pkg/dispatch"
	"github.com/fiberpos/tendo-go/pkg/positioner"
	"github.com/fiberpos/tendo-go/pkg/slcan"
)

// discoveredFleet returns a fleet that found the positioners at addrs.
func discoveredFleet(t *testing.T, addrs ...uint16) *positioner.Fleet {
	t.Helper()
	link := simbus.New().Handle(uint8(positioner.CmdGetFirmware), simbus.Devices(func(a uint16) []byte {
		return slcan.PackUint32(0x010200 | int64(a))
	}, addrs...))
	d := dispatch.New(link, dispatch.Config{
		PollInterval: time.Millisecond,
		Timeouts:     dispatch.UniformTimeouts(20 * time.Millisecond),
	})
	f := positioner.NewFleet(positioner.FleetConfig{}, d)
	t.Cleanup(func() { f.Close() })
	if _, err := f.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	return f
}

func TestFleetStateStore(t *testing.T) {
	t.Run("SaveAndLoadEmpty", func(t *testing.T) {
		store := NewFleetStateStore(filepath.Join(t.TempDir(), "state.json"))

		if err := store.Save(&FleetState{}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Version != StateVersion {
			t.Errorf("Version = %d, want %d", got.Version, StateVersion)
		}
		if got.SavedAt.IsZero() {
			t.Error("SavedAt not set")
		}
	})

	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewFleetStateStore(filepath.Join(t.TempDir(), "nonexistent.json"))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("UnitsRoundTrip", func(t *testing.T) {
		store := NewFleetStateStore(filepath.Join(t.TempDir(), "nested", "state.json"))
		target := positioner.Position{Alpha: 90, Beta: -45.5}
		state := &FleetState{
			Transceivers: []string{"A123"},
			Units: []UnitState{
				{Address: 3, Firmware: "1.2.3", Target: &target, Status: 0x80, Altered: true},
				{Address: 9, Firmware: "1.2.9"},
			},
		}

		if err := store.Save(state); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if !reflect.DeepEqual(got.Units, state.Units) {
			t.Errorf("Units = %+v, want %+v", got.Units, state.Units)
		}
		if !reflect.DeepEqual(got.Transceivers, []string{"A123"}) {
			t.Errorf("Transceivers = %v", got.Transceivers)
		}
		if !reflect.DeepEqual(got.Altered(), []uint16{3}) {
			t.Errorf("Altered() = %v, want [3]", got.Altered())
		}
		if _, err := os.Stat(store.Path() + ".tmp"); !os.IsNotExist(err) {
			t.Errorf("temporary file left behind: %v", err)
		}
	})

	t.Run("RejectsNewerVersion", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.WriteFile(path, []byte(`{"version": 99}`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewFleetStateStore(path).Load(); err == nil {
			t.Error("Load() accepted a newer format version")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewFleetStateStore(filepath.Join(t.TempDir(), "state.json"))
		if err := store.Save(&FleetState{}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("second Clear() error = %v", err)
		}
		got, _ := store.Load()
		if got != nil {
			t.Error("state still present after Clear()")
		}
	})
}

func TestSnapshotAndRestore(t *testing.T) {
	f := discoveredFleet(t, 3, 5, 8)
	u, _ := f.Unit(5)
	u.SetAltered(true)

	state := Snapshot(f, "A123")
	if len(state.Units) != 3 {
		t.Fatalf("Units = %d, want 3", len(state.Units))
	}
	if state.Units[1].Address != 5 || !state.Units[1].Altered {
		t.Errorf("Units[1] = %+v, want address 5 altered", state.Units[1])
	}
	if state.Units[0].Firmware != "1.2.3" {
		t.Errorf("Units[0].Firmware = %q, want 1.2.3", state.Units[0].Firmware)
	}
	if state.Units[0].Target != nil {
		t.Errorf("Units[0].Target = %v, want nil before any move", state.Units[0].Target)
	}

	store := NewFleetStateStore(filepath.Join(t.TempDir(), "state.json"))
	if err := store.Save(state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	restarted := discoveredFleet(t, 3, 5)
	missing := Restore(restarted, loaded)
	if !reflect.DeepEqual(missing, []uint16{8}) {
		t.Errorf("Restore() missing = %v, want [8]", missing)
	}
	if got := restarted.Altered(); !reflect.DeepEqual(got, []uint16{5}) {
		t.Errorf("Altered() = %v, want [5]", got)
	}

	if Restore(restarted, nil) != nil {
		t.Error("Restore(nil) reported missing units")
	}
}
