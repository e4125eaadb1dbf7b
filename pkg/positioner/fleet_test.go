package positioner

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberpos/tendo-go/internal/simbus"
	"github.com/fiberpos/tendo-go/pkg/slcan"
)

func firmwareOf(addr uint16) []byte {
	return slcan.PackUint32(0x020000 | int64(addr))
}

func TestFleetDiscover(t *testing.T) {
	l1 := simbus.New().Handle(uint8(CmdGetFirmware), simbus.Devices(firmwareOf, 3, 5))
	l2 := simbus.New().Handle(uint8(CmdGetFirmware), simbus.Devices(firmwareOf, 40))
	d1, d2 := newTestDispatcher(t, l1), newTestDispatcher(t, l2)
	f := NewFleet(FleetConfig{}, d1, d2)

	found, err := f.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint16{3, 5, 40}, found)
	assert.Equal(t, []uint16{3, 5, 40}, f.Addresses())
	assert.Equal(t, 3, f.Len())

	u, ok := f.Unit(40)
	require.True(t, ok)
	assert.Equal(t, "2.0.40", u.Firmware())
	assert.Same(t, d2, u.Dispatchers()[0])

	units := f.Units()
	require.Len(t, units, 3)
	assert.Equal(t, uint16(3), units[0].Address())

	all := f.All()
	assert.True(t, all.IsBroadcast())
	assert.Len(t, all.Dispatchers(), 2)
}

func TestFleetAvailablePruneUnlisted(t *testing.T) {
	var mu sync.Mutex
	present := []uint16{3, 5}
	link := simbus.New().Handle(uint8(CmdGetFirmware), func(req slcan.Frame) []slcan.Frame {
		mu.Lock()
		addrs := append([]uint16(nil), present...)
		mu.Unlock()
		return simbus.Devices(firmwareOf, addrs...)(req)
	})
	f := NewFleet(FleetConfig{}, newTestDispatcher(t, link))
	ctx := context.Background()

	_, err := f.Discover(ctx)
	require.NoError(t, err)

	mu.Lock()
	present = []uint16{5, 8}
	mu.Unlock()

	avail, err := f.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint16{5, 8}, avail)
	assert.Equal(t, []uint16{3, 5}, f.Addresses(), "Available leaves the fleet alone")

	unlisted, err := f.Unlisted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint16{8}, unlisted)

	gone, err := f.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint16{3}, gone)
	assert.Equal(t, []uint16{5}, f.Addresses())
}

func TestFleetAddRemove(t *testing.T) {
	f := NewFleet(FleetConfig{}, newTestDispatcher(t, simbus.New()))

	_, err := f.Add(0, nil)
	assert.ErrorIs(t, err, ErrBroadcastAddress)

	u1, err := f.Add(17, nil)
	require.NoError(t, err)
	u2, err := f.Add(17, nil)
	require.NoError(t, err)
	assert.Same(t, u1, u2)

	assert.Equal(t, []uint16{17}, f.Remove(17, 18))
	assert.Zero(t, f.Len())

	empty := NewFleet(FleetConfig{})
	_, err = empty.Add(3, nil)
	assert.ErrorIs(t, err, ErrNoDispatcher)
}

func TestFleetTracksAlteredUnits(t *testing.T) {
	var hooked []uint16
	link := simbus.New().
		Handle(uint8(CmdSetSpeed), simbus.Devices(func(uint16) []byte { return nil }, 3, 5)).
		Handle(uint8(CmdSaveCalibrationData), simbus.Accept(nil))
	f := NewFleet(FleetConfig{Unit: UnitConfig{AlteredHook: func(addr uint16, c Command) {
		if c != CmdSaveCalibrationData {
			hooked = append(hooked, addr)
		}
	}}}, newTestDispatcher(t, link))
	ctx := context.Background()

	for _, a := range []uint16{3, 5, 9} {
		_, err := f.Add(a, nil)
		require.NoError(t, err)
	}

	_, err := f.All().SetSpeed(ctx, 1500, 1500)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint16{3, 5}, hooked)
	assert.Equal(t, []uint16{3, 5}, f.Altered())

	out, err := f.SaveAltered(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Empty(t, f.Altered())

	var saved []uint16
	for _, fr := range link.SentCommand(uint8(CmdSaveCalibrationData)) {
		saved = append(saved, fr.Address)
	}
	assert.Equal(t, []uint16{3, 5}, saved)
}

func TestFleetCloseDispatcher(t *testing.T) {
	l1 := simbus.New().Handle(uint8(CmdGetFirmware), simbus.Devices(firmwareOf, 1))
	l2 := simbus.New().Handle(uint8(CmdGetFirmware), simbus.Devices(firmwareOf, 2))
	d1, d2 := newTestDispatcher(t, l1), newTestDispatcher(t, l2)
	f := NewFleet(FleetConfig{}, d1)
	f.AddDispatcher(d2)

	_, err := f.Discover(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uint16{1, 2}, f.Addresses())

	require.NoError(t, f.CloseDispatcher(d1))
	assert.True(t, l1.Closed())
	assert.Equal(t, []uint16{2}, f.Addresses())
	assert.Len(t, f.All().Dispatchers(), 1)

	assert.ErrorIs(t, f.CloseDispatcher(d1), ErrUnknownDispatcher)

	require.NoError(t, f.Close())
	assert.True(t, l2.Closed())
	assert.Zero(t, f.Len())
	assert.Empty(t, f.Dispatchers())
}
