package positioner

import (
	"errors"
	"fmt"

	"github.com/fiberpos/tendo-go/pkg/dispatch"
)

// Command is a positioner command identifier. The numbers are shared with
// the device firmware and never change.
type Command uint8

// Runtime commands.
const (
	CmdGetID                       Command = 1
	CmdGetFirmware                 Command = 2
	CmdGetStatus                   Command = 3
	CmdSetStatusLow                Command = 4
	CmdSetStatusHigh               Command = 5
	CmdSendTrajectoryNew           Command = 10
	CmdSendTrajectoryData          Command = 11
	CmdSendTrajectoryDataEnd       Command = 12
	CmdSendTrajectoryAbort         Command = 13
	CmdStartTrajectory             Command = 14
	CmdStopTrajectory              Command = 15
	CmdFatalErrorCollision         Command = 18
	CmdGetDatumCalibOffset         Command = 19
	CmdGotoDatums                  Command = 20
	CmdGotoDatumAlpha              Command = 21
	CmdGotoDatumBeta               Command = 22
	CmdCalibDatums                 Command = 23
	CmdCalibDatumAlpha             Command = 24
	CmdCalibDatumBeta              Command = 25
	CmdCalibMotors                 Command = 26
	CmdCalibMotorAlpha             Command = 27
	CmdCalibMotorBeta              Command = 28
	CmdGetDatumCalibError          Command = 29
	CmdGotoPositionAbsolute        Command = 30
	CmdGotoPositionRelative        Command = 31
	CmdGetActualPosition           Command = 32
	CmdSetActualPosition           Command = 33
	CmdGetOffsets                  Command = 34
	CmdSetOffsets                  Command = 35
	CmdSetApproachDistance         Command = 39
	CmdSetSpeed                    Command = 40
	CmdSetCurrent                  Command = 41
	CmdGetHallOutputPos            Command = 44
	CmdGetMotorCalibError          Command = 45
	CmdCalibCogging                Command = 47
	CmdCalibCoggingAlpha           Command = 48
	CmdCalibCoggingBeta            Command = 49
	CmdSaveCalibrationData         Command = 53
	CmdGetPositionCurrentAlpha     Command = 54
	CmdGetPositionCurrentBeta      Command = 55
	CmdGetCurrent                  Command = 56
	CmdGetPositionTorqueAlpha      Command = 57
	CmdGetPositionTorqueBeta       Command = 58
	CmdGetCmdTorque                Command = 59
	CmdGetAlphaHallCalib           Command = 104
	CmdGetBetaHallCalib            Command = 105
	CmdGetCoggingLength            Command = 106
	CmdGetCoggingPos               Command = 107
	CmdGetCoggingNeg               Command = 108
	CmdGetCoggingAngle             Command = 110
	CmdSetIncreaseCollisionMargin  Command = 111
	CmdSetLowPowerCurrent          Command = 112
	CmdGetLowPowerCurrent          Command = 113
	CmdSetApproachSpeed            Command = 114
	CmdSwitchOnHallAfterMove       Command = 116
	CmdSwitchOffHallAfterMove      Command = 117
	CmdSetAlphaClosedLoop          Command = 118
	CmdSetAlphaClosedLoopNoCollDet Command = 119
	CmdSetAlphaOpenLoop            Command = 120
	CmdSetAlphaOpenLoopNoCollDet   Command = 121
	CmdSetBetaClosedLoop           Command = 122
	CmdSetBetaClosedLoopNoCollDet  Command = 123
	CmdSetBetaOpenLoop             Command = 124
	CmdSetBetaOpenLoopNoCollDet    Command = 125
	CmdSwitchOnLED                 Command = 126
	CmdSwitchOffLED                Command = 127
	CmdSwitchOnPreciseAlpha        Command = 128
	CmdSwitchOffPreciseAlpha       Command = 129
	CmdSwitchOnPreciseBeta         Command = 130
	CmdSwitchOffPreciseBeta        Command = 131
	CmdGetTemperature              Command = 132
	CmdRequestReboot               Command = 213
)

// Bootloader commands.
const (
	CmdSetFactorySetting Command = 60
	CmdGetFactorySetting Command = 61
	CmdSendNewFirmware   Command = 200
	CmdFirmwareData      Command = 201
	CmdFirmwareAbort     Command = 202
	CmdGetBootloaderVer  Command = 210
	CmdGetMainVersion    Command = 211
	CmdGetBackupVersion  Command = 212
	CmdRequestBoot       Command = 214
	CmdGetRootAccess     Command = 222
)

// Shape describes the payload layout of a request or a reply.
type Shape uint8

const (
	ShapeNone       Shape = iota // no payload
	ShapeUint32                  // one 32-bit word
	ShapeInt32                   // one signed 32-bit word
	ShapeUint32Pair              // two 32-bit words
	ShapeInt32Pair               // two signed 32-bit words
	ShapeUint64                  // one 64-bit word
	ShapeInt64                   // one signed 64-bit word
	ShapeRaw                     // 0 to 8 bytes, unswapped
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "NONE"
	case ShapeUint32:
		return "UINT32"
	case ShapeInt32:
		return "INT32"
	case ShapeUint32Pair:
		return "UINT32_PAIR"
	case ShapeInt32Pair:
		return "INT32_PAIR"
	case ShapeUint64:
		return "UINT64"
	case ShapeInt64:
		return "INT64"
	case ShapeRaw:
		return "RAW"
	default:
		return "UNKNOWN"
	}
}

// fits reports whether a payload of n bytes matches the shape.
func (s Shape) fits(n int) bool {
	switch s {
	case ShapeNone:
		return n == 0
	case ShapeUint32, ShapeInt32:
		return n == 4
	case ShapeUint32Pair, ShapeInt32Pair, ShapeUint64, ShapeInt64:
		return n == 8
	case ShapeRaw:
		return n <= 8
	}
	return false
}

type commandSpec struct {
	name     string
	request  Shape
	response Shape
	class    dispatch.TimeoutClass

	// broadcast commands may be sent to address 0.
	broadcast bool

	// alters marks commands that change the stored configuration.
	alters bool

	// inbound commands are only ever sent by the device.
	inbound bool
}

var commandSpecs = map[Command]commandSpec{
	CmdGetID:                       {name: "GET_ID", response: ShapeUint32, broadcast: true, class: dispatch.ClassQuick},
	CmdGetFirmware:                 {name: "GET_FIRMWARE", response: ShapeUint32, broadcast: true},
	CmdGetStatus:                   {name: "GET_STATUS", response: ShapeUint64, broadcast: true},
	CmdSetStatusLow:                {name: "SET_STATUS_LOW", request: ShapeUint32Pair, alters: true},
	CmdSetStatusHigh:               {name: "SET_STATUS_HIGH", request: ShapeUint32Pair, alters: true},
	CmdSendTrajectoryNew:           {name: "SEND_TRAJECTORY_NEW", request: ShapeUint32Pair},
	CmdSendTrajectoryData:          {name: "SEND_TRAJECTORY_DATA", request: ShapeUint32Pair},
	CmdSendTrajectoryDataEnd:       {name: "SEND_TRAJECTORY_DATA_END"},
	CmdSendTrajectoryAbort:         {name: "SEND_TRAJECTORY_ABORT", broadcast: true},
	CmdStartTrajectory:             {name: "START_TRAJECTORY", broadcast: true},
	CmdStopTrajectory:              {name: "STOP_TRAJECTORY", broadcast: true},
	CmdFatalErrorCollision:         {name: "FATAL_ERROR_COLLISION", inbound: true},
	CmdGetDatumCalibOffset:         {name: "GET_DATUM_CALIB_OFFSET", response: ShapeInt32Pair, broadcast: true},
	CmdGotoDatums:                  {name: "GOTO_DATUMS", broadcast: true},
	CmdGotoDatumAlpha:              {name: "GOTO_DATUM_ALPHA", broadcast: true},
	CmdGotoDatumBeta:               {name: "GOTO_DATUM_BETA", broadcast: true},
	CmdCalibDatums:                 {name: "CALIB_DATUMS", broadcast: true, alters: true},
	CmdCalibDatumAlpha:             {name: "CALIB_DATUM_ALPHA", broadcast: true, alters: true},
	CmdCalibDatumBeta:              {name: "CALIB_DATUM_BETA", broadcast: true, alters: true},
	CmdCalibMotors:                 {name: "CALIB_MOTORS", broadcast: true, alters: true},
	CmdCalibMotorAlpha:             {name: "CALIB_MOTOR_ALPHA", broadcast: true, alters: true},
	CmdCalibMotorBeta:              {name: "CALIB_MOTOR_BETA", broadcast: true, alters: true},
	CmdGetDatumCalibError:          {name: "GET_DATUM_CALIB_ERROR", response: ShapeInt32Pair, broadcast: true},
	CmdGotoPositionAbsolute:        {name: "GOTO_POSITION_ABSOLUTE", request: ShapeInt32Pair, response: ShapeUint32Pair},
	CmdGotoPositionRelative:        {name: "GOTO_POSITION_RELATIVE", request: ShapeInt32Pair, response: ShapeUint32Pair},
	CmdGetActualPosition:           {name: "GET_ACTUAL_POSITION", response: ShapeInt32Pair, broadcast: true, class: dispatch.ClassQuick},
	CmdSetActualPosition:           {name: "SET_ACTUAL_POSITION", request: ShapeInt32Pair, class: dispatch.ClassSetPosition, alters: true},
	CmdGetOffsets:                  {name: "GET_OFFSETS", response: ShapeInt32Pair, broadcast: true, class: dispatch.ClassQuick},
	CmdSetOffsets:                  {name: "SET_OFFSETS", request: ShapeInt32Pair, alters: true},
	CmdSetApproachDistance:         {name: "SET_APPROACH_DISTANCE", request: ShapeInt32Pair, alters: true},
	CmdSetSpeed:                    {name: "SET_SPEED", request: ShapeUint32Pair, broadcast: true, alters: true},
	CmdSetCurrent:                  {name: "SET_CURRENT", request: ShapeUint32Pair, broadcast: true, alters: true},
	CmdGetHallOutputPos:            {name: "GET_HALL_OUTPUT_POS", response: ShapeInt32Pair, broadcast: true},
	CmdGetMotorCalibError:          {name: "GET_MOTOR_CALIB_ERROR", response: ShapeInt32Pair, broadcast: true},
	CmdCalibCogging:                {name: "CALIB_COGGING", broadcast: true, alters: true},
	CmdCalibCoggingAlpha:           {name: "CALIB_COGGING_ALPHA", broadcast: true, alters: true},
	CmdCalibCoggingBeta:            {name: "CALIB_COGGING_BETA", broadcast: true, alters: true},
	CmdSaveCalibrationData:         {name: "SAVE_CALIBRATION_DATA", class: dispatch.ClassSave, broadcast: true},
	CmdGetPositionCurrentAlpha:     {name: "GET_ACTUAL_POSITION_CURRENT_ALPHA", response: ShapeInt32Pair, broadcast: true},
	CmdGetPositionCurrentBeta:      {name: "GET_ACTUAL_POSITION_CURRENT_BETA", response: ShapeInt32Pair, broadcast: true},
	CmdGetCurrent:                  {name: "GET_CURRENT", response: ShapeInt32Pair, broadcast: true},
	CmdGetPositionTorqueAlpha:      {name: "GET_ACTUAL_POSITION_CMD_TORQUE_ALPHA", response: ShapeInt32Pair, broadcast: true},
	CmdGetPositionTorqueBeta:       {name: "GET_ACTUAL_POSITION_CMD_TORQUE_BETA", response: ShapeInt32Pair, broadcast: true},
	CmdGetCmdTorque:                {name: "GET_CMD_TORQUE", response: ShapeInt32Pair, broadcast: true},
	CmdSetFactorySetting:           {name: "SET_FACTORY_SETTING", request: ShapeInt32Pair, alters: true},
	CmdGetFactorySetting:           {name: "GET_FACTORY_SETTING", request: ShapeUint32, response: ShapeInt32},
	CmdGetAlphaHallCalib:           {name: "GET_ALPHA_HALL_CALIB", response: ShapeRaw, broadcast: true},
	CmdGetBetaHallCalib:            {name: "GET_BETA_HALL_CALIB", response: ShapeRaw, broadcast: true},
	CmdGetCoggingLength:            {name: "GET_COGGING_LENGTH", response: ShapeUint32, broadcast: true},
	CmdGetCoggingPos:               {name: "GET_COGGING_POS", request: ShapeUint32, response: ShapeInt32},
	CmdGetCoggingNeg:               {name: "GET_COGGING_NEG", request: ShapeUint32, response: ShapeInt32},
	CmdGetCoggingAngle:             {name: "GET_COGGING_ANGLE", request: ShapeUint32, response: ShapeInt32},
	CmdSetIncreaseCollisionMargin:  {name: "SET_INCREASE_COLLISION_MARGIN", request: ShapeUint32Pair, broadcast: true, alters: true},
	CmdSetLowPowerCurrent:          {name: "SET_LOW_POWER_CURRENT", request: ShapeUint32Pair, broadcast: true, alters: true},
	CmdGetLowPowerCurrent:          {name: "GET_LOW_POWER_CURRENT", response: ShapeInt32Pair, broadcast: true},
	CmdSetApproachSpeed:            {name: "SET_APPROACH_SPEED", request: ShapeUint32Pair, broadcast: true, alters: true},
	CmdSwitchOnHallAfterMove:       {name: "SWITCH_ON_HALL_AFTER_MOVE", broadcast: true, alters: true},
	CmdSwitchOffHallAfterMove:      {name: "SWITCH_OFF_HALL_AFTER_MOVE", broadcast: true, alters: true},
	CmdSetAlphaClosedLoop:          {name: "SET_ALPHA_CLOSED_LOOP", broadcast: true, alters: true},
	CmdSetAlphaClosedLoopNoCollDet: {name: "SET_ALPHA_CLOSED_LOOP_NO_COLL_DETECT", broadcast: true, alters: true},
	CmdSetAlphaOpenLoop:            {name: "SET_ALPHA_OPEN_LOOP", broadcast: true, alters: true},
	CmdSetAlphaOpenLoopNoCollDet:   {name: "SET_ALPHA_OPEN_LOOP_NO_COLL_DETECT", broadcast: true, alters: true},
	CmdSetBetaClosedLoop:           {name: "SET_BETA_CLOSED_LOOP", broadcast: true, alters: true},
	CmdSetBetaClosedLoopNoCollDet:  {name: "SET_BETA_CLOSED_LOOP_NO_COLL_DETECT", broadcast: true, alters: true},
	CmdSetBetaOpenLoop:             {name: "SET_BETA_OPEN_LOOP", broadcast: true, alters: true},
	CmdSetBetaOpenLoopNoCollDet:    {name: "SET_BETA_OPEN_LOOP_NO_COLL_DETECT", broadcast: true, alters: true},
	CmdSwitchOnLED:                 {name: "SWITCH_ON_LED", broadcast: true},
	CmdSwitchOffLED:                {name: "SWITCH_OFF_LED", broadcast: true},
	CmdSwitchOnPreciseAlpha:        {name: "SWITCH_ON_PRECISE_ALPHA", broadcast: true, alters: true},
	CmdSwitchOffPreciseAlpha:       {name: "SWITCH_OFF_PRECISE_ALPHA", broadcast: true, alters: true},
	CmdSwitchOnPreciseBeta:         {name: "SWITCH_ON_PRECISE_BETA", broadcast: true, alters: true},
	CmdSwitchOffPreciseBeta:        {name: "SWITCH_OFF_PRECISE_BETA", broadcast: true, alters: true},
	CmdGetTemperature:              {name: "GET_TEMPERATURE", response: ShapeInt32, broadcast: true, class: dispatch.ClassQuick},
	CmdSendNewFirmware:             {name: "SEND_NEW_FIRMWARE", request: ShapeUint32Pair, class: dispatch.ClassFirmwareHeader},
	CmdFirmwareData:                {name: "FIRMWARE_DATA", request: ShapeRaw, class: dispatch.ClassFirmwareChunk},
	CmdFirmwareAbort:               {name: "FIRMWARE_ABORT"},
	CmdGetBootloaderVer:            {name: "GET_BOOTLOADER_VERSION", response: ShapeUint32, broadcast: true},
	CmdGetMainVersion:              {name: "GET_MAIN_VERSION", response: ShapeUint32, broadcast: true},
	CmdGetBackupVersion:            {name: "GET_BACKUP_VERSION", response: ShapeUint32, broadcast: true},
	CmdRequestReboot:               {name: "REQUEST_REBOOT", broadcast: true},
	CmdRequestBoot:                 {name: "REQUEST_BOOT", broadcast: true},
	CmdGetRootAccess:               {name: "GET_ROOT_ACCESS"},
}

// Command set errors.
var (
	// ErrUnknownCommand is returned for an identifier outside the catalogue.
	ErrUnknownCommand = errors.New("positioner: unknown command")

	// ErrNotBroadcastable is returned when a single-device command is sent
	// to address 0.
	ErrNotBroadcastable = errors.New("positioner: command cannot be broadcast")

	// ErrInboundOnly is returned for commands only a device may send.
	ErrInboundOnly = errors.New("positioner: command is sent by devices only")

	// ErrPayloadShape is returned when a payload does not match its command.
	ErrPayloadShape = errors.New("positioner: payload does not match command")

	// ErrNoDispatcher is returned by a unit without a dispatcher.
	ErrNoDispatcher = errors.New("positioner: no dispatcher")
)

// String returns the command name.
func (c Command) String() string {
	if s, ok := commandSpecs[c]; ok {
		return s.name
	}
	return "UNKNOWN"
}

// Known reports whether c is in the catalogue.
func (c Command) Known() bool {
	_, ok := commandSpecs[c]
	return ok
}

// Broadcastable reports whether c may be sent to address 0.
func (c Command) Broadcastable() bool {
	return commandSpecs[c].broadcast
}

// Alters reports whether an accepted c changes the stored configuration.
func (c Command) Alters() bool {
	return commandSpecs[c].alters
}

// RequestShape returns the payload layout c is sent with.
func (c Command) RequestShape() Shape {
	return commandSpecs[c].request
}

// ResponseShape returns the payload layout of the reply to c.
func (c Command) ResponseShape() Shape {
	return commandSpecs[c].response
}

// Class returns the timeout class of c.
func (c Command) Class() dispatch.TimeoutClass {
	return commandSpecs[c].class
}

// check validates a request before it is sent.
func (c Command) check(broadcast bool, payload []byte) error {
	spec, ok := commandSpecs[c]
	switch {
	case !ok:
		return fmt.Errorf("%w: %d", ErrUnknownCommand, uint8(c))
	case spec.inbound:
		return fmt.Errorf("%w: %s", ErrInboundOnly, spec.name)
	case broadcast && !spec.broadcast:
		return fmt.Errorf("%w: %s", ErrNotBroadcastable, spec.name)
	case !spec.request.fits(len(payload)):
		return fmt.Errorf("%w: %s takes %s, got %d bytes", ErrPayloadShape, spec.name, spec.request, len(payload))
	}
	return nil
}
