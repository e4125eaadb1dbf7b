package positioner

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/fiberpos/tendo-go/pkg/dispatch"
	"github.com/fiberpos/tendo-go/pkg/slcan"
)

// Param identifies a factory setting stored by the bootloader.
type Param uint8

// Factory settings. The numbers are shared with the bootloader.
const (
	ParamPositionerID Param = iota
	ParamPowerLEDControl
	ParamFibreType
	ParamAlphaReduction
	ParamBetaReduction
	ParamAlphaModel
	ParamBetaModel
	ParamAlphaControl
	ParamBetaControl
	ParamAlphaPolarity
	ParamBetaPolarity
	ParamAlphaMaxSpeed
	ParamBetaMaxSpeed
	ParamAlphaMaxCurrent
	ParamBetaMaxCurrent
	ParamAlphaEncoderResolution
	ParamBetaEncoderResolution
	ParamAlphaEncoderType
	ParamBetaEncoderType
	ParamAlphaCollisionDetection
	ParamBetaCollisionDetection
	ParamAlphaLowPosLimit
	ParamAlphaHighPosLimit
	ParamBetaLowPosLimit
	ParamBetaHighPosLimit
	ParamAlphaInterpolation
	ParamBetaInterpolation
	ParamAlphaMaxAcceleration
	ParamBetaMaxAcceleration
	ParamAlphaTorqueLimit
	ParamBetaTorqueLimit
	ParamPositionerRow
	ParamPositionerCol
	ParamReserve01
	ParamReserve02
	ParamReserve03
	ParamReserve04
	ParamReserve05
	ParamReserve06
	ParamReserve07
	ParamReserve08
)

var paramNames = [...]string{
	"POSITIONER_ID",
	"POWER_LED_CONTROL",
	"FIBRE_TYPE",
	"ALPHA_REDUCTION",
	"BETA_REDUCTION",
	"ALPHA_MODEL",
	"BETA_MODEL",
	"ALPHA_CONTROL",
	"BETA_CONTROL",
	"ALPHA_POLARITY",
	"BETA_POLARITY",
	"ALPHA_MAX_SPEED",
	"BETA_MAX_SPEED",
	"ALPHA_MAX_CURRENT",
	"BETA_MAX_CURRENT",
	"ALPHA_ENCODER_RESOLUTION",
	"BETA_ENCODER_RESOLUTION",
	"ALPHA_ENCODER_TYPE",
	"BETA_ENCODER_TYPE",
	"ALPHA_COLLISION_DETECTION",
	"BETA_COLLISION_DETECTION",
	"ALPHA_LOW_POS_LIMIT",
	"ALPHA_HIGH_POS_LIMIT",
	"BETA_LOW_POS_LIMIT",
	"BETA_HIGH_POS_LIMIT",
	"ALPHA_INTERPOLATION",
	"BETA_INTERPOLATION",
	"ALPHA_MAX_ACCELERATION",
	"BETA_MAX_ACCELERATION",
	"ALPHA_TORQUE_LIMIT",
	"BETA_TORQUE_LIMIT",
	"POSITIONER_ROW",
	"POSITIONER_COL",
	"RESERVE_01",
	"RESERVE_02",
	"RESERVE_03",
	"RESERVE_04",
	"RESERVE_05",
	"RESERVE_06",
	"RESERVE_07",
	"RESERVE_08",
}

// String returns the parameter name.
func (p Param) String() string {
	if int(p) < len(paramNames) {
		return paramNames[p]
	}
	return "UNKNOWN"
}

// ParseParam looks a parameter up by name.
func ParseParam(name string) (Param, error) {
	for i, n := range paramNames {
		if n == name {
			return Param(i), nil
		}
	}
	return 0, fmt.Errorf("positioner: unknown factory parameter %q", name)
}

// ReadFactoryParameter reboots the device into its bootloader and reads
// one factory setting. The read is skipped when the reboot was not
// accepted.
func (u *Unit) ReadFactoryParameter(ctx context.Context, p Param) (ValueResponse, error) {
	reboot, err := single(u.RequestReboot(ctx))
	if err != nil || !reboot.OK() {
		return ValueResponse{Response: reboot}, err
	}
	if err := sleep(ctx, u.config.RebootSettle); err != nil {
		return ValueResponse{Response: reboot}, err
	}
	return single(exec(ctx, u, CmdGetFactorySetting, slcan.PackUint32(int64(p)), decodeInt32))
}

// WriteFactoryParameter reboots the device, acquires root access and
// writes one factory setting. The value is rounded half to even. The
// returned response is the first step that was not accepted, or the write.
func (u *Unit) WriteFactoryParameter(ctx context.Context, p Param, value float64) (Response, error) {
	reboot, err := single(u.RequestReboot(ctx))
	if err != nil || !reboot.OK() {
		return reboot, err
	}
	if err := sleep(ctx, u.config.RebootSettle); err != nil {
		return reboot, err
	}
	root, err := single(execClass(ctx, u, CmdGetRootAccess, nil, dispatch.ClassBootloader, decodeBase))
	if err != nil || !root.OK() {
		return root, err
	}
	return u.pair(ctx, CmdSetFactorySetting, int64(p), int64(math.RoundToEven(value)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ReductionRatio reads the gearbox reduction ratio of one arm.
func (u *Unit) ReductionRatio(ctx context.Context, axis Axis) (ValueResponse, error) {
	return u.ReadFactoryParameter(ctx, reductionParam(axis))
}

// SetReductionRatio writes the gearbox reduction ratio of one arm.
func (u *Unit) SetReductionRatio(ctx context.Context, axis Axis, ratio float64) (Response, error) {
	return u.WriteFactoryParameter(ctx, reductionParam(axis), ratio)
}

func reductionParam(axis Axis) Param {
	if axis == Beta {
		return ParamBetaReduction
	}
	return ParamAlphaReduction
}
