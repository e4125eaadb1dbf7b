package positioner

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fiberpos/tendo-go/pkg/slcan"
)

// ErrAngleRange is returned for an angle whose step count does not fit the
// signed 32-bit payload field.
var ErrAngleRange = errors.New("positioner: angle out of range")

const (
	// MotorSteps is the number of motor steps per output revolution.
	MotorSteps = 1 << 30

	// TimeStep is the device clock tick used for move times and
	// trajectory point times.
	TimeStep = 500 * time.Microsecond

	// MaxCurrent is the largest current setting, in percent.
	MaxCurrent = 100
)

// DegreesToSteps converts an angle to motor steps, rounding half to even.
func DegreesToSteps(deg float64) int64 {
	return int64(math.RoundToEven(deg / 360 * MotorSteps))
}

// anglePair packs two angles as motor steps.
func anglePair(alpha, beta float64) ([]byte, error) {
	for _, deg := range [...]float64{alpha, beta} {
		if math.IsNaN(deg) {
			return nil, fmt.Errorf("%w: %v", ErrAngleRange, deg)
		}
		if s := math.RoundToEven(deg / 360 * MotorSteps); s < math.MinInt32 || s > math.MaxInt32 {
			return nil, fmt.Errorf("%w: %g°", ErrAngleRange, deg)
		}
	}
	return slcan.PackPair(DegreesToSteps(alpha), DegreesToSteps(beta)), nil
}

// StepsToDegrees converts motor steps to an angle.
func StepsToDegrees(steps int64) float64 {
	return float64(steps) / MotorSteps * 360
}

// DurationToTicks converts a duration to device clock ticks.
func DurationToTicks(d time.Duration) int64 {
	return int64(math.RoundToEven(d.Seconds() / TimeStep.Seconds()))
}

// TicksToDuration converts device clock ticks to a duration.
func TicksToDuration(ticks uint32) time.Duration {
	return time.Duration(ticks) * TimeStep
}

// FormatFirmware renders a firmware word as major.minor.patch from its
// bytes 2, 1 and 0.
func FormatFirmware(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>16&0xFF, v>>8&0xFF, v&0xFF)
}

// magnitude rounds v half to even and drops the sign.
func magnitude(v float64) int64 {
	r := int64(math.RoundToEven(v))
	if r < 0 {
		return -r
	}
	return r
}

// percent is magnitude capped at MaxCurrent.
func percent(v float64) int64 {
	return min(magnitude(v), MaxCurrent)
}

// Position is an alpha/beta pair in degrees.
type Position struct {
	Alpha float64
	Beta  float64
}

// Axis selects one arm of a positioner.
type Axis uint8

const (
	Alpha Axis = iota
	Beta
)

// String returns the axis name.
func (a Axis) String() string {
	switch a {
	case Alpha:
		return "ALPHA"
	case Beta:
		return "BETA"
	default:
		return "UNKNOWN"
	}
}

// LoopMode is the motor control mode of one axis.
type LoopMode uint8

const (
	ClosedLoop LoopMode = iota
	ClosedLoopNoCollisionDetection
	OpenLoop
	OpenLoopNoCollisionDetection
)

// String returns the loop mode name.
func (m LoopMode) String() string {
	switch m {
	case ClosedLoop:
		return "CLOSED_LOOP"
	case ClosedLoopNoCollisionDetection:
		return "CLOSED_LOOP_NO_COLLISION_DETECTION"
	case OpenLoop:
		return "OPEN_LOOP"
	case OpenLoopNoCollisionDetection:
		return "OPEN_LOOP_NO_COLLISION_DETECTION"
	default:
		return "UNKNOWN"
	}
}

// CoggingTable selects one of the cogging compensation tables.
type CoggingTable uint8

const (
	CoggingPositive CoggingTable = iota
	CoggingNegative
	CoggingAngle
)

// String returns the table name.
func (c CoggingTable) String() string {
	switch c {
	case CoggingPositive:
		return "POSITIVE"
	case CoggingNegative:
		return "NEGATIVE"
	case CoggingAngle:
		return "ANGLE"
	default:
		return "UNKNOWN"
	}
}
