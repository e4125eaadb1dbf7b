package positioner

import (
	"context"
	"fmt"
	"time"

	"github.com/fiberpos/tendo-go/pkg/slcan"
)

// Point is one trajectory waypoint of a single arm.
type Point struct {
	// Angle is the arm angle in degrees.
	Angle float64

	// Time is the offset from the trajectory start.
	Time time.Duration
}

// StageKind names a step of a trajectory upload.
type StageKind uint8

const (
	StageNew StageKind = iota
	StageAlpha
	StageBeta
	StageEnd
)

// String returns the stage kind name.
func (k StageKind) String() string {
	switch k {
	case StageNew:
		return "new"
	case StageAlpha:
		return "alpha"
	case StageBeta:
		return "beta"
	case StageEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Stage identifies the frame of a trajectory upload.
type Stage struct {
	Kind StageKind

	// Index is the point index for StageAlpha and StageBeta.
	Index int
}

// String renders the stage as new, alpha[i], beta[i] or end.
func (s Stage) String() string {
	if s.Kind == StageAlpha || s.Kind == StageBeta {
		return fmt.Sprintf("%s[%d]", s.Kind, s.Index)
	}
	return s.Kind.String()
}

// TrajectoryResult is the outcome of a trajectory upload. On failure Stage
// names the frame that was not accepted.
type TrajectoryResult struct {
	Response
	Stage Stage
}

// SendTrajectory uploads a trajectory: a header with the point counts,
// every alpha point, every beta point and the end marker. The upload stops
// at the first frame the device does not accept.
func (u *Unit) SendTrajectory(ctx context.Context, alpha, beta []Point) (TrajectoryResult, error) {
	step := func(stage Stage, cmd Command, payload []byte) (TrajectoryResult, bool, error) {
		r, err := single(exec(ctx, u, cmd, payload, decodeBase))
		res := TrajectoryResult{Response: r, Stage: stage}
		if err != nil {
			return res, false, fmt.Errorf("trajectory %s: %w", stage, err)
		}
		return res, r.OK(), nil
	}

	res, ok, err := step(Stage{Kind: StageNew}, CmdSendTrajectoryNew,
		slcan.PackPair(int64(len(alpha)), int64(len(beta))))
	if err != nil || !ok {
		return res, err
	}

	for i, p := range alpha {
		if res, ok, err = step(Stage{Kind: StageAlpha, Index: i}, CmdSendTrajectoryData, p.payload()); err != nil || !ok {
			return res, err
		}
	}
	for i, p := range beta {
		if res, ok, err = step(Stage{Kind: StageBeta, Index: i}, CmdSendTrajectoryData, p.payload()); err != nil || !ok {
			return res, err
		}
	}

	res, _, err = step(Stage{Kind: StageEnd}, CmdSendTrajectoryDataEnd, nil)
	return res, err
}

// payload encodes the point as unsigned steps and ticks.
func (p Point) payload() []byte {
	steps := DegreesToSteps(p.Angle)
	if steps < 0 {
		steps = -steps
	}
	ticks := DurationToTicks(p.Time)
	if ticks < 0 {
		ticks = -ticks
	}
	return slcan.PackPair(steps, ticks)
}
