package positioner

import (
	"context"

	"github.com/fiberpos/tendo-go/pkg/dispatch"
	"github.com/fiberpos/tendo-go/pkg/slcan"
	"github.com/fiberpos/tendo-go/pkg/status"
)

// GetID reads the device identifier.
func (u *Unit) GetID(ctx context.Context) ([]ValueResponse, error) {
	return exec(ctx, u, CmdGetID, nil, decodeUint32)
}

// GetFirmware reads the running firmware version.
func (u *Unit) GetFirmware(ctx context.Context) ([]FirmwareResponse, error) {
	out, err := exec(ctx, u, CmdGetFirmware, nil, decodeFirmware)
	for _, r := range out {
		if r.OK() && r.Address == u.address {
			u.mu.Lock()
			u.firmware = r.Version
			u.mu.Unlock()
		}
	}
	return out, err
}

// GetBootloaderVersion reads the bootloader version.
func (u *Unit) GetBootloaderVersion(ctx context.Context) ([]FirmwareResponse, error) {
	return exec(ctx, u, CmdGetBootloaderVer, nil, decodeFirmware)
}

// GetMainVersion reads the version of the main firmware slot.
func (u *Unit) GetMainVersion(ctx context.Context) ([]FirmwareResponse, error) {
	return exec(ctx, u, CmdGetMainVersion, nil, decodeFirmware)
}

// GetBackupVersion reads the version of the backup firmware slot.
func (u *Unit) GetBackupVersion(ctx context.Context) ([]FirmwareResponse, error) {
	return exec(ctx, u, CmdGetBackupVersion, nil, decodeFirmware)
}

// GetStatus reads the 64-bit runtime status register.
func (u *Unit) GetStatus(ctx context.Context) ([]StatusResponse, error) {
	out, err := exec(ctx, u, CmdGetStatus, nil, decodeRuntimeStatus)
	for _, r := range out {
		if r.OK() && r.Address == u.address {
			u.mu.Lock()
			u.status = r.Value
			u.mu.Unlock()
		}
	}
	return out, err
}

// SetStatus sets and clears runtime status bits. Each 32-bit half with a
// change is written with its own command; the first rejected half stops
// the update.
func (u *Unit) SetStatus(ctx context.Context, set, clear uint64) ([]Response, error) {
	var out []Response
	for _, h := range status.SplitMasks(set, clear) {
		cmd := CmdSetStatusLow
		if h.Half == status.High {
			cmd = CmdSetStatusHigh
		}
		r, err := single(exec(ctx, u, cmd, slcan.PackPair(int64(h.Set), int64(h.Clear)), decodeBase))
		if err != nil {
			return out, err
		}
		out = append(out, r)
		if !r.OK() {
			break
		}
	}
	return out, nil
}

// Goto moves both arms to an absolute position in degrees. The reply holds
// the move time of each arm. Angles whose step count does not fit a signed
// 32-bit field (720° and above, or below -720°) are refused with
// ErrAngleRange before anything is sent.
func (u *Unit) Goto(ctx context.Context, alpha, beta float64) (MoveResponse, error) {
	payload, err := anglePair(alpha, beta)
	if err != nil {
		return MoveResponse{}, err
	}
	r, err := single(exec(ctx, u, CmdGotoPositionAbsolute, payload, decodeMove))
	if err == nil && r.OK() {
		u.mu.Lock()
		u.target = Position{Alpha: alpha, Beta: beta}
		u.hasPos = true
		u.mu.Unlock()
	}
	return r, err
}

// GotoRelative moves both arms by an offset in degrees.
func (u *Unit) GotoRelative(ctx context.Context, alpha, beta float64) (MoveResponse, error) {
	payload, err := anglePair(alpha, beta)
	if err != nil {
		return MoveResponse{}, err
	}
	r, err := single(exec(ctx, u, CmdGotoPositionRelative, payload, decodeMove))
	if err == nil && r.OK() {
		u.mu.Lock()
		if u.hasPos {
			u.target.Alpha += alpha
			u.target.Beta += beta
		}
		u.mu.Unlock()
	}
	return r, err
}

// GotoDatums moves both arms to their datum.
func (u *Unit) GotoDatums(ctx context.Context) ([]Response, error) {
	return u.simple(ctx, CmdGotoDatums)
}

// GotoDatum moves one arm to its datum.
func (u *Unit) GotoDatum(ctx context.Context, axis Axis) ([]Response, error) {
	return u.simple(ctx, perAxis(axis, CmdGotoDatumAlpha, CmdGotoDatumBeta))
}

// CalibrateDatums calibrates the datum of both arms.
func (u *Unit) CalibrateDatums(ctx context.Context) ([]Response, error) {
	return u.simple(ctx, CmdCalibDatums)
}

// CalibrateDatum calibrates the datum of one arm.
func (u *Unit) CalibrateDatum(ctx context.Context, axis Axis) ([]Response, error) {
	return u.simple(ctx, perAxis(axis, CmdCalibDatumAlpha, CmdCalibDatumBeta))
}

// CalibrateMotors calibrates both motors.
func (u *Unit) CalibrateMotors(ctx context.Context) ([]Response, error) {
	return u.simple(ctx, CmdCalibMotors)
}

// CalibrateMotor calibrates one motor.
func (u *Unit) CalibrateMotor(ctx context.Context, axis Axis) ([]Response, error) {
	return u.simple(ctx, perAxis(axis, CmdCalibMotorAlpha, CmdCalibMotorBeta))
}

// CalibrateCogging records the cogging tables of both motors.
func (u *Unit) CalibrateCogging(ctx context.Context) ([]Response, error) {
	return u.simple(ctx, CmdCalibCogging)
}

// CalibrateCoggingAxis records the cogging table of one motor.
func (u *Unit) CalibrateCoggingAxis(ctx context.Context, axis Axis) ([]Response, error) {
	return u.simple(ctx, perAxis(axis, CmdCalibCoggingAlpha, CmdCalibCoggingBeta))
}

// GetDatumCalibError reads the datum calibration error of both arms.
func (u *Unit) GetDatumCalibError(ctx context.Context) ([]PairResponse, error) {
	return exec(ctx, u, CmdGetDatumCalibError, nil, decodePair)
}

// GetDatumCalibOffset reads the datum calibration offset of both arms.
func (u *Unit) GetDatumCalibOffset(ctx context.Context) ([]PairResponse, error) {
	return exec(ctx, u, CmdGetDatumCalibOffset, nil, decodePair)
}

// GetMotorCalibError reads the motor calibration error of both arms.
func (u *Unit) GetMotorCalibError(ctx context.Context) ([]PairResponse, error) {
	return exec(ctx, u, CmdGetMotorCalibError, nil, decodePair)
}

// GetPosition reads the current position in degrees.
func (u *Unit) GetPosition(ctx context.Context) ([]AxisResponse, error) {
	return exec(ctx, u, CmdGetActualPosition, nil, decodeAxis)
}

// SetPosition redefines the current position, in degrees.
func (u *Unit) SetPosition(ctx context.Context, alpha, beta float64) (Response, error) {
	return u.angles(ctx, CmdSetActualPosition, alpha, beta)
}

// GetOffsets reads the position offsets in degrees.
func (u *Unit) GetOffsets(ctx context.Context) ([]AxisResponse, error) {
	return exec(ctx, u, CmdGetOffsets, nil, decodeAxis)
}

// SetOffsets writes the position offsets, in degrees.
func (u *Unit) SetOffsets(ctx context.Context, alpha, beta float64) (Response, error) {
	return u.angles(ctx, CmdSetOffsets, alpha, beta)
}

// SetApproachDistance writes the approach distance of each arm, in degrees.
func (u *Unit) SetApproachDistance(ctx context.Context, alpha, beta float64) (Response, error) {
	return u.angles(ctx, CmdSetApproachDistance, alpha, beta)
}

// GetHallPosition reads the position reported by the hall sensors, in
// degrees.
func (u *Unit) GetHallPosition(ctx context.Context) ([]AxisResponse, error) {
	return exec(ctx, u, CmdGetHallOutputPos, nil, decodeAxis)
}

// SetSpeed writes the motor speed of each arm, in RPM.
func (u *Unit) SetSpeed(ctx context.Context, alpha, beta float64) ([]Response, error) {
	return exec(ctx, u, CmdSetSpeed, slcan.PackPair(magnitude(alpha), magnitude(beta)), decodeBase)
}

// SetApproachSpeed writes the final approach speed of each arm, in RPM.
func (u *Unit) SetApproachSpeed(ctx context.Context, alpha, beta float64) ([]Response, error) {
	return exec(ctx, u, CmdSetApproachSpeed, slcan.PackPair(magnitude(alpha), magnitude(beta)), decodeBase)
}

// SetCurrent writes the motor current of each arm, in percent. Values are
// capped at MaxCurrent.
func (u *Unit) SetCurrent(ctx context.Context, alpha, beta float64) ([]Response, error) {
	return exec(ctx, u, CmdSetCurrent, slcan.PackPair(percent(alpha), percent(beta)), decodeBase)
}

// SetLowPowerCurrent writes the holding current of each arm, in percent.
// Values are capped at MaxCurrent.
func (u *Unit) SetLowPowerCurrent(ctx context.Context, alpha, beta float64) ([]Response, error) {
	return exec(ctx, u, CmdSetLowPowerCurrent, slcan.PackPair(percent(alpha), percent(beta)), decodeBase)
}

// GetLowPowerCurrent reads the holding current of each arm.
func (u *Unit) GetLowPowerCurrent(ctx context.Context) ([]PairResponse, error) {
	return exec(ctx, u, CmdGetLowPowerCurrent, nil, decodePair)
}

// IncreaseCollisionMargin widens the collision detection margin of each
// arm.
func (u *Unit) IncreaseCollisionMargin(ctx context.Context, alpha, beta float64) ([]Response, error) {
	return exec(ctx, u, CmdSetIncreaseCollisionMargin, slcan.PackPair(magnitude(alpha), magnitude(beta)), decodeBase)
}

// SetHallAfterMove switches the hall sensors on or off after each move.
func (u *Unit) SetHallAfterMove(ctx context.Context, on bool) ([]Response, error) {
	return u.simple(ctx, onOff(on, CmdSwitchOnHallAfterMove, CmdSwitchOffHallAfterMove))
}

// SetLED switches the positioner LED.
func (u *Unit) SetLED(ctx context.Context, on bool) ([]Response, error) {
	return u.simple(ctx, onOff(on, CmdSwitchOnLED, CmdSwitchOffLED))
}

// SetPrecise switches precise positioning of one arm.
func (u *Unit) SetPrecise(ctx context.Context, axis Axis, on bool) ([]Response, error) {
	cmd := perAxis(axis,
		onOff(on, CmdSwitchOnPreciseAlpha, CmdSwitchOffPreciseAlpha),
		onOff(on, CmdSwitchOnPreciseBeta, CmdSwitchOffPreciseBeta))
	return u.simple(ctx, cmd)
}

var loopModeCommands = map[Axis]map[LoopMode]Command{
	Alpha: {
		ClosedLoop:                     CmdSetAlphaClosedLoop,
		ClosedLoopNoCollisionDetection: CmdSetAlphaClosedLoopNoCollDet,
		OpenLoop:                       CmdSetAlphaOpenLoop,
		OpenLoopNoCollisionDetection:   CmdSetAlphaOpenLoopNoCollDet,
	},
	Beta: {
		ClosedLoop:                     CmdSetBetaClosedLoop,
		ClosedLoopNoCollisionDetection: CmdSetBetaClosedLoopNoCollDet,
		OpenLoop:                       CmdSetBetaOpenLoop,
		OpenLoopNoCollisionDetection:   CmdSetBetaOpenLoopNoCollDet,
	},
}

// SetLoopMode selects the control mode of one arm.
func (u *Unit) SetLoopMode(ctx context.Context, axis Axis, mode LoopMode) ([]Response, error) {
	cmd, ok := loopModeCommands[axis][mode]
	if !ok {
		return nil, ErrUnknownCommand
	}
	return u.simple(ctx, cmd)
}

// GetTemperature reads the board temperature.
func (u *Unit) GetTemperature(ctx context.Context) ([]ValueResponse, error) {
	return exec(ctx, u, CmdGetTemperature, nil, decodeInt32)
}

// GetCurrent reads the motor current of both arms.
func (u *Unit) GetCurrent(ctx context.Context) ([]PairResponse, error) {
	return exec(ctx, u, CmdGetCurrent, nil, decodePair)
}

// GetCmdTorque reads the commanded torque of both arms.
func (u *Unit) GetCmdTorque(ctx context.Context) ([]PairResponse, error) {
	return exec(ctx, u, CmdGetCmdTorque, nil, decodePair)
}

// GetPositionCurrent reads the position and motor current of one arm.
func (u *Unit) GetPositionCurrent(ctx context.Context, axis Axis) ([]PairResponse, error) {
	return exec(ctx, u, perAxis(axis, CmdGetPositionCurrentAlpha, CmdGetPositionCurrentBeta), nil, decodePair)
}

// GetPositionTorque reads the position and commanded torque of one arm.
func (u *Unit) GetPositionTorque(ctx context.Context, axis Axis) ([]PairResponse, error) {
	return exec(ctx, u, perAxis(axis, CmdGetPositionTorqueAlpha, CmdGetPositionTorqueBeta), nil, decodePair)
}

// GetHallCalibration reads the hall sensor calibration of one arm.
func (u *Unit) GetHallCalibration(ctx context.Context, axis Axis) ([]HallCalibResponse, error) {
	return exec(ctx, u, perAxis(axis, CmdGetAlphaHallCalib, CmdGetBetaHallCalib), nil, decodeHallCalib)
}

// GetCoggingLength reads the number of entries in each cogging table.
func (u *Unit) GetCoggingLength(ctx context.Context) ([]ValueResponse, error) {
	return exec(ctx, u, CmdGetCoggingLength, nil, decodeUint32)
}

// GetCogging reads one entry of a cogging table.
func (u *Unit) GetCogging(ctx context.Context, table CoggingTable, index uint32) (ValueResponse, error) {
	var cmd Command
	switch table {
	case CoggingPositive:
		cmd = CmdGetCoggingPos
	case CoggingNegative:
		cmd = CmdGetCoggingNeg
	case CoggingAngle:
		cmd = CmdGetCoggingAngle
	default:
		return ValueResponse{}, ErrUnknownCommand
	}
	return single(exec(ctx, u, cmd, slcan.PackUint32(int64(index)), decodeInt32))
}

// Save stores the calibration and settings in device flash.
func (u *Unit) Save(ctx context.Context) ([]Response, error) {
	return u.simple(ctx, CmdSaveCalibrationData)
}

// Stop aborts the running move or trajectory.
func (u *Unit) Stop(ctx context.Context) ([]Response, error) {
	return u.simple(ctx, CmdSendTrajectoryAbort)
}

// StopAndClearCollision stops the positioner and clears its collision flag.
func (u *Unit) StopAndClearCollision(ctx context.Context) ([]Response, error) {
	return u.simple(ctx, CmdStopTrajectory)
}

// StartTrajectory starts the uploaded trajectory.
func (u *Unit) StartTrajectory(ctx context.Context) ([]Response, error) {
	return u.simple(ctx, CmdStartTrajectory)
}

// RequestReboot restarts the device into its bootloader.
func (u *Unit) RequestReboot(ctx context.Context) ([]Response, error) {
	return u.simple(ctx, CmdRequestReboot)
}

// RequestBoot leaves the bootloader and starts the main firmware.
func (u *Unit) RequestBoot(ctx context.Context) ([]Response, error) {
	return u.simple(ctx, CmdRequestBoot)
}

// ReadBootloaderStatus reads the bootloader status register of a device
// that is already in its bootloader.
func (u *Unit) ReadBootloaderStatus(ctx context.Context) ([]StatusResponse, error) {
	return execClass(ctx, u, CmdGetStatus, nil, dispatch.ClassStatus, decodeBootloaderStatus)
}

// BootloaderStatus reboots the device and reads its bootloader status
// register.
func (u *Unit) BootloaderStatus(ctx context.Context) ([]StatusResponse, error) {
	if _, err := u.RequestReboot(ctx); err != nil {
		return nil, err
	}
	return execClass(ctx, u, CmdGetStatus, nil, dispatch.ClassBootloader, decodeBootloaderStatus)
}

// SendFirmwareHeader announces a firmware image of length bytes with the
// given CRC32.
func (u *Unit) SendFirmwareHeader(ctx context.Context, length, crc uint32) (Response, error) {
	return u.pair(ctx, CmdSendNewFirmware, int64(length), int64(crc))
}

// SendFirmwareChunk sends up to 8 bytes of firmware image.
func (u *Unit) SendFirmwareChunk(ctx context.Context, chunk []byte) (Response, error) {
	return single(exec(ctx, u, CmdFirmwareData, chunk, decodeBase))
}

// AbortFirmware cancels a firmware upload in progress.
func (u *Unit) AbortFirmware(ctx context.Context) (Response, error) {
	return single(exec(ctx, u, CmdFirmwareAbort, nil, decodeBase))
}

func (u *Unit) simple(ctx context.Context, cmd Command) ([]Response, error) {
	return exec(ctx, u, cmd, nil, decodeBase)
}

func (u *Unit) pair(ctx context.Context, cmd Command, a, b int64) (Response, error) {
	return single(exec(ctx, u, cmd, slcan.PackPair(a, b), decodeBase))
}

func (u *Unit) angles(ctx context.Context, cmd Command, alpha, beta float64) (Response, error) {
	payload, err := anglePair(alpha, beta)
	if err != nil {
		return Response{}, err
	}
	return single(exec(ctx, u, cmd, payload, decodeBase))
}

func perAxis(axis Axis, alpha, beta Command) Command {
	if axis == Beta {
		return beta
	}
	return alpha
}

func onOff(on bool, onCmd, offCmd Command) Command {
	if on {
		return onCmd
	}
	return offCmd
}
