package positioner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberpos/tendo-go/internal/simbus"
	"github.com/fiberpos/tendo-go/pkg/dispatch"
	"github.com/fiberpos/tendo-go/pkg/slcan"
	"github.com/fiberpos/tendo-go/pkg/status"
)

func newTestDispatcher(t *testing.T, link *simbus.Link) *dispatch.Dispatcher {
	t.Helper()
	cfg := dispatch.DefaultConfig()
	cfg.PollInterval = time.Millisecond
	cfg.Timeouts = dispatch.UniformTimeouts(30 * time.Millisecond)
	d := dispatch.New(link, cfg)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newTestUnit(t *testing.T, addr uint16, cfg UnitConfig) (*simbus.Link, *Unit) {
	t.Helper()
	link := simbus.New()
	if cfg.RebootSettle == 0 {
		cfg.RebootSettle = time.Millisecond
	}
	return link, NewUnit(addr, cfg, newTestDispatcher(t, link))
}

func cmd(c Command) uint8 { return uint8(c) }

func TestGetFirmwareFormatsVersion(t *testing.T) {
	link, u := newTestUnit(t, 7, UnitConfig{})
	link.Handle(cmd(CmdGetFirmware), simbus.Accept(slcan.PackUint32(0x010203)))

	out, err := u.GetFirmware(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.True(t, out[0].OK())
	assert.Equal(t, uint16(7), out[0].Address)
	assert.Equal(t, uint32(0x010203), out[0].Raw)
	assert.Equal(t, "1.2.3", out[0].Version)
	assert.Equal(t, "1.2.3", u.Firmware())

	sent := link.SentCommand(cmd(CmdGetFirmware))
	require.Len(t, sent, 1)
	assert.Equal(t, uint16(7), sent[0].Address)
	assert.Empty(t, sent[0].Payload)
}

func TestGotoRefusesAnglesBeyondStepRange(t *testing.T) {
	link, u := newTestUnit(t, 12, UnitConfig{})

	_, err := u.Goto(context.Background(), 720, 0)
	assert.ErrorIs(t, err, ErrAngleRange)
	_, err = u.GotoRelative(context.Background(), 0, -900)
	assert.ErrorIs(t, err, ErrAngleRange)
	_, err = u.SetOffsets(context.Background(), 1e6, 0)
	assert.ErrorIs(t, err, ErrAngleRange)

	assert.Empty(t, link.SentCommand(cmd(CmdGotoPositionAbsolute)))
	assert.Empty(t, link.SentCommand(cmd(CmdGotoPositionRelative)))
	_, ok := u.Target()
	assert.False(t, ok)
}

func TestGotoEncodesSteps(t *testing.T) {
	link, u := newTestUnit(t, 12, UnitConfig{})
	link.Handle(cmd(CmdGotoPositionAbsolute), simbus.Accept(slcan.PackPair(2000, 4000)))

	r, err := u.Goto(context.Background(), 90, 45)
	require.NoError(t, err)
	assert.True(t, r.OK())
	assert.Equal(t, time.Second, r.Alpha)
	assert.Equal(t, 2*time.Second, r.Beta)
	assert.Equal(t, 2*time.Second, r.Duration())

	sent := link.SentCommand(cmd(CmdGotoPositionAbsolute))
	require.Len(t, sent, 1)
	a, b, err := sent[0].Int32Pair()
	require.NoError(t, err)
	assert.Equal(t, int32(268435456), a)
	assert.Equal(t, int32(134217728), b)

	target, ok := u.Target()
	require.True(t, ok)
	assert.Equal(t, Position{Alpha: 90, Beta: 45}, target)
}

func TestGotoRejectedKeepsTarget(t *testing.T) {
	link, u := newTestUnit(t, 12, UnitConfig{})
	link.Handle(cmd(CmdGotoPositionAbsolute), simbus.Sequence(
		simbus.Accept(slcan.PackPair(10, 10)),
		simbus.Reject(uint8(dispatch.CodeAlreadyInMotion)),
	))

	_, err := u.Goto(context.Background(), 10, 20)
	require.NoError(t, err)

	r, err := u.Goto(context.Background(), 90, 45)
	require.NoError(t, err)
	assert.False(t, r.OK())
	assert.Equal(t, dispatch.CodeAlreadyInMotion, r.Code)
	assert.Zero(t, r.Alpha)
	assert.ErrorIs(t, r.Err(), dispatch.ErrDeviceRejected)

	target, ok := u.Target()
	require.True(t, ok)
	assert.Equal(t, Position{Alpha: 10, Beta: 20}, target)
}

func TestGotoRelativeMovesTarget(t *testing.T) {
	link, u := newTestUnit(t, 3, UnitConfig{})
	link.HandleDefault(simbus.Accept(slcan.PackPair(0, 0)))

	_, ok := u.Target()
	assert.False(t, ok)

	_, err := u.GotoRelative(context.Background(), 5, 5)
	require.NoError(t, err)
	_, ok = u.Target()
	assert.False(t, ok, "relative move without a known target")

	_, err = u.Goto(context.Background(), 30, 60)
	require.NoError(t, err)
	_, err = u.GotoRelative(context.Background(), -10, 15)
	require.NoError(t, err)

	target, _ := u.Target()
	assert.Equal(t, Position{Alpha: 20, Beta: 75}, target)

	sent := link.SentCommand(cmd(CmdGotoPositionRelative))
	require.Len(t, sent, 2)
	a, _, err := sent[1].Int32Pair()
	require.NoError(t, err)
	assert.Equal(t, int32(DegreesToSteps(-10)), a)
}

func TestBroadcastRefusesTargetedCommands(t *testing.T) {
	link, u := newTestUnit(t, 0, UnitConfig{})

	_, err := u.Goto(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrNotBroadcastable)

	_, err = u.SendTrajectory(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNotBroadcastable)

	_, err = u.WriteFactoryParameter(context.Background(), ParamFibreType, 1)
	require.NoError(t, err, "reboot is broadcastable and goes unanswered")

	assert.Empty(t, link.SentCommand(cmd(CmdGotoPositionAbsolute)))
	assert.Empty(t, link.SentCommand(cmd(CmdSendTrajectoryNew)))
	assert.Empty(t, link.SentCommand(cmd(CmdSetFactorySetting)))
}

func TestUnitWithoutDispatcher(t *testing.T) {
	u := NewUnit(4, UnitConfig{})
	_, err := u.GetStatus(context.Background())
	assert.ErrorIs(t, err, ErrNoDispatcher)
}

func TestNoResponseCallsInvalidHook(t *testing.T) {
	var got []Response
	_, u := newTestUnit(t, 9, UnitConfig{InvalidHook: func(addr uint16, r Response) {
		got = append(got, r)
	}})

	out, err := u.GetStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, dispatch.CodeNoResponse, out[0].Code)
	assert.ErrorIs(t, out[0].Err(), dispatch.ErrNoResponse)

	require.Len(t, got, 1)
	assert.Equal(t, uint16(9), got[0].Address)
	assert.Equal(t, CmdGetStatus, got[0].Command)
}

func TestSendFailure(t *testing.T) {
	link, u := newTestUnit(t, 9, UnitConfig{})
	link.FailWrites(errors.New("usb unplugged"))

	out, err := u.Stop(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, dispatch.CodeSendFailed, out[0].Code)
	assert.ErrorIs(t, out[0].Err(), dispatch.ErrSendFailed)
}

func TestAlteredMarker(t *testing.T) {
	type call struct {
		addr uint16
		cmd  Command
	}
	var calls []call
	link, u := newTestUnit(t, 5, UnitConfig{AlteredHook: func(addr uint16, c Command) {
		calls = append(calls, call{addr, c})
	}})
	link.Handle(cmd(CmdSetSpeed), simbus.Accept(nil))
	link.Handle(cmd(CmdSetCurrent), simbus.Reject(uint8(dispatch.CodeValueOutOfRange)))
	link.Handle(cmd(CmdGetActualPosition), simbus.Accept(slcan.PackPair(0, 0)))
	link.Handle(cmd(CmdSaveCalibrationData), simbus.Accept(nil))

	ctx := context.Background()
	_, err := u.SetCurrent(ctx, 50, 50)
	require.NoError(t, err)
	assert.False(t, u.Altered(), "rejected command must not mark")

	_, err = u.GetPosition(ctx)
	require.NoError(t, err)
	assert.False(t, u.Altered())

	_, err = u.SetSpeed(ctx, 1000, 1000)
	require.NoError(t, err)
	assert.True(t, u.Altered())

	_, err = u.Save(ctx)
	require.NoError(t, err)
	assert.False(t, u.Altered())

	assert.Equal(t, []call{{5, CmdSetSpeed}, {5, CmdSaveCalibrationData}}, calls)
}

func TestSettingPayloads(t *testing.T) {
	tests := []struct {
		name  string
		cmd   Command
		run   func(context.Context, *Unit) error
		alpha int32
		beta  int32
	}{
		{
			name: "current is clamped",
			cmd:  CmdSetCurrent,
			run: func(ctx context.Context, u *Unit) error {
				_, err := u.SetCurrent(ctx, 150, -40)
				return err
			},
			alpha: 100, beta: 40,
		},
		{
			name: "low power current is clamped",
			cmd:  CmdSetLowPowerCurrent,
			run: func(ctx context.Context, u *Unit) error {
				_, err := u.SetLowPowerCurrent(ctx, 30.4, 101)
				return err
			},
			alpha: 30, beta: 100,
		},
		{
			name: "speed drops the sign",
			cmd:  CmdSetSpeed,
			run: func(ctx context.Context, u *Unit) error {
				_, err := u.SetSpeed(ctx, -3000, 2500.5)
				return err
			},
			alpha: 3000, beta: 2500,
		},
		{
			name: "position in steps",
			cmd:  CmdSetActualPosition,
			run: func(ctx context.Context, u *Unit) error {
				_, err := u.SetPosition(ctx, -90, 180)
				return err
			},
			alpha: -268435456, beta: 536870912,
		},
		{
			name: "offsets in steps",
			cmd:  CmdSetOffsets,
			run: func(ctx context.Context, u *Unit) error {
				_, err := u.SetOffsets(ctx, 45, 0)
				return err
			},
			alpha: 134217728, beta: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, u := newTestUnit(t, 2, UnitConfig{})
			link.HandleDefault(simbus.Accept(nil))
			require.NoError(t, tt.run(context.Background(), u))

			sent := link.SentCommand(cmd(tt.cmd))
			require.Len(t, sent, 1)
			a, b, err := sent[0].Int32Pair()
			require.NoError(t, err)
			assert.Equal(t, tt.alpha, a)
			assert.Equal(t, tt.beta, b)
		})
	}
}

func TestModeCommands(t *testing.T) {
	link, u := newTestUnit(t, 2, UnitConfig{})
	link.HandleDefault(simbus.Accept(nil))
	ctx := context.Background()

	_, err := u.SetLoopMode(ctx, Beta, OpenLoopNoCollisionDetection)
	require.NoError(t, err)
	_, err = u.SetPrecise(ctx, Alpha, false)
	require.NoError(t, err)
	_, err = u.SetLED(ctx, true)
	require.NoError(t, err)
	_, err = u.SetHallAfterMove(ctx, false)
	require.NoError(t, err)
	_, err = u.CalibrateDatum(ctx, Beta)
	require.NoError(t, err)

	var got []Command
	for _, f := range link.Sent() {
		got = append(got, Command(f.Command))
	}
	assert.Equal(t, []Command{
		CmdSetBetaOpenLoopNoCollDet,
		CmdSwitchOffPreciseAlpha,
		CmdSwitchOnLED,
		CmdSwitchOffHallAfterMove,
		CmdCalibDatumBeta,
	}, got)

	_, err = u.SetLoopMode(ctx, Alpha, LoopMode(9))
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestReadbackDecoding(t *testing.T) {
	link, u := newTestUnit(t, 2, UnitConfig{})
	link.Handle(cmd(CmdGetActualPosition), simbus.Accept(slcan.PackPair(DegreesToSteps(-12.5), DegreesToSteps(200))))
	link.Handle(cmd(CmdGetMotorCalibError), simbus.Accept(slcan.PackPair(-7, 12)))
	link.Handle(cmd(CmdGetTemperature), simbus.Accept(slcan.PackUint32(-5)))
	link.Handle(cmd(CmdGetAlphaHallCalib), simbus.Accept([]byte{0x01, 0x00, 0x02, 0x00, 0x34, 0x12, 0xFF, 0xFF}))
	link.Handle(cmd(CmdGetStatus), simbus.Accept(slcan.PackUint64(status.SystemInitialized|status.DatumAlphaInitialized)))
	ctx := context.Background()

	pos, err := u.GetPosition(ctx)
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.InDelta(t, -12.5, pos[0].Alpha, 1e-6)
	assert.InDelta(t, 200, pos[0].Beta, 1e-6)

	calib, err := u.GetMotorCalibError(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(-7), calib[0].Alpha)
	assert.Equal(t, int32(12), calib[0].Beta)

	temp, err := u.GetTemperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), temp[0].Value)

	hall, err := u.GetHallCalibration(ctx, Alpha)
	require.NoError(t, err)
	assert.Equal(t, [4]uint16{1, 2, 0x1234, 0xFFFF}, hall[0].Values)

	st, err := u.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, st[0].Has(status.SystemInitialized))
	assert.False(t, st[0].Has(status.DatumBetaInitialized))
	assert.Equal(t, st[0].Value, u.LastStatus())
	assert.Len(t, st[0].Flags(), status.Runtime.Len())
}

func TestShortReplyPayload(t *testing.T) {
	link, u := newTestUnit(t, 2, UnitConfig{})
	link.Handle(cmd(CmdGetActualPosition), simbus.Accept(slcan.PackUint32(1)))

	out, err := u.GetPosition(context.Background())
	assert.ErrorIs(t, err, ErrBadReply)
	require.Len(t, out, 1)
	assert.True(t, out[0].OK())
}

func TestCollisionReply(t *testing.T) {
	link, u := newTestUnit(t, 6, UnitConfig{})
	link.Handle(cmd(CmdGotoPositionAbsolute), func(req slcan.Frame) []slcan.Frame {
		f := simbus.ReplyTo(req, 0, nil)
		f.Command = dispatch.CollisionCommand
		return []slcan.Frame{f}
	})

	r, err := u.Goto(context.Background(), 10, 10)
	require.NoError(t, err)
	assert.True(t, r.Collision)
	assert.False(t, r.OK())
	assert.Error(t, r.Err())
	_, ok := u.Target()
	assert.False(t, ok)
}

func TestSetStatusSplitsHalves(t *testing.T) {
	link, u := newTestUnit(t, 8, UnitConfig{})
	link.HandleDefault(simbus.Accept(nil))

	out, err := u.SetStatus(context.Background(), 1<<3|1<<35, 1<<4)
	require.NoError(t, err)
	require.Len(t, out, 2)

	low := link.SentCommand(cmd(CmdSetStatusLow))
	require.Len(t, low, 1)
	s, c, err := low[0].Uint32Pair()
	require.NoError(t, err)
	assert.Equal(t, uint32(8), s)
	assert.Equal(t, uint32(16), c)

	high := link.SentCommand(cmd(CmdSetStatusHigh))
	require.Len(t, high, 1)
	s, c, err = high[0].Uint32Pair()
	require.NoError(t, err)
	assert.Equal(t, uint32(8), s)
	assert.Equal(t, uint32(0), c)
}

func TestSetStatusStopsOnRejection(t *testing.T) {
	link, u := newTestUnit(t, 8, UnitConfig{})
	link.Handle(cmd(CmdSetStatusLow), simbus.Reject(uint8(dispatch.CodeInvalidCommand)))

	out, err := u.SetStatus(context.Background(), 1|1<<40, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, out[0].OK())
	assert.Empty(t, link.SentCommand(cmd(CmdSetStatusHigh)))
}

func TestBroadcastSpansDispatchers(t *testing.T) {
	fw := func(addr uint16) []byte { return slcan.PackUint32(int64(addr)) }
	l1 := simbus.New().Handle(cmd(CmdGetFirmware), simbus.Devices(fw, 4))
	l2 := simbus.New().Handle(cmd(CmdGetFirmware), simbus.Devices(fw, 9, 11))
	all := NewUnit(0, UnitConfig{}, newTestDispatcher(t, l1), newTestDispatcher(t, l2))

	out, err := all.GetFirmware(context.Background())
	require.NoError(t, err)

	versions := map[uint16]string{}
	for _, r := range out {
		versions[r.Address] = r.Version
	}
	assert.Equal(t, map[uint16]string{4: "0.0.4", 9: "0.0.9", 11: "0.0.11"}, versions)
	assert.Empty(t, all.Firmware())
}
