package status

// Runtime register bits.
const (
	// System.
	SystemInitialized uint64 = 1 << 0
	ConfigChanged     uint64 = 1 << 1
	BSettingsChanged  uint64 = 1 << 2
	DataStreaming     uint64 = 1 << 3

	// Communication.
	ReceivingTrajectory     uint64 = 1 << 4
	TrajectoryAlphaReceived uint64 = 1 << 5
	TrajectoryBetaReceived  uint64 = 1 << 6
	LowPowerAfterMove       uint64 = 1 << 7

	// Positioning.
	DisplacementCompleted       uint64 = 1 << 8
	DisplacementCompletedAlpha  uint64 = 1 << 9
	DisplacementCompletedBeta   uint64 = 1 << 10
	CollisionAlpha              uint64 = 1 << 11
	CollisionBeta               uint64 = 1 << 12
	ClosedLoopAlpha             uint64 = 1 << 13
	ClosedLoopBeta              uint64 = 1 << 14
	PrecisePositioningAlpha     uint64 = 1 << 15
	PrecisePositioningBeta      uint64 = 1 << 16
	CollisionDetectAlphaDisable uint64 = 1 << 17
	CollisionDetectBetaDisable  uint64 = 1 << 18

	// Calibration.
	MotorCalibration       uint64 = 1 << 19
	MotorAlphaCalibrated   uint64 = 1 << 20
	MotorBetaCalibrated    uint64 = 1 << 21
	DatumCalibration       uint64 = 1 << 22
	DatumAlphaCalibrated   uint64 = 1 << 23
	DatumBetaCalibrated    uint64 = 1 << 24
	DatumInitialization    uint64 = 1 << 25
	DatumAlphaInitialized  uint64 = 1 << 26
	DatumBetaInitialized   uint64 = 1 << 27
	HallAlphaDisable       uint64 = 1 << 28
	HallBetaDisable        uint64 = 1 << 29
	CoggingCalibration     uint64 = 1 << 30
	CoggingAlphaCalibrated uint64 = 1 << 31
	CoggingBetaCalibrated  uint64 = 1 << 32

	// Position quality.
	EstimatedPosition uint64 = 1 << 33
	PositionRestored  uint64 = 1 << 34

	// Move configuration.
	SwitchOffAfterMove         uint64 = 1 << 35
	CalibrationSaved           uint64 = 1 << 36
	PreciseMoveInOpenLoopAlpha uint64 = 1 << 37
	PreciseMoveInOpenLoopBeta  uint64 = 1 << 38
	SwitchOffHallAfterMove     uint64 = 1 << 39
)

// Runtime is the 64-bit status register reported in normal operation.
var Runtime = newRegister("runtime", 64, []Bit{
	{"SYSTEM_INITIALIZED", SystemInitialized},
	{"CONFIG_CHANGED", ConfigChanged},
	{"BSETTINGS_CHANGED", BSettingsChanged},
	{"DATA_STREAMING", DataStreaming},
	{"RECEIVING_TRAJECTORY", ReceivingTrajectory},
	{"TRAJECTORY_ALPHA_RECEIVED", TrajectoryAlphaReceived},
	{"TRAJECTORY_BETA_RECEIVED", TrajectoryBetaReceived},
	{"LOW_POWER_AFTER_MOVE", LowPowerAfterMove},
	{"DISPLACEMENT_COMPLETED", DisplacementCompleted},
	{"DISPLACEMENT_COMPLETED_ALPHA", DisplacementCompletedAlpha},
	{"DISPLACEMENT_COMPLETED_BETA", DisplacementCompletedBeta},
	{"COLLISION_ALPHA", CollisionAlpha},
	{"COLLISION_BETA", CollisionBeta},
	{"CLOSED_LOOP_ALPHA", ClosedLoopAlpha},
	{"CLOSED_LOOP_BETA", ClosedLoopBeta},
	{"PRECISE_POSITIONING_ALPHA", PrecisePositioningAlpha},
	{"PRECISE_POSITIONING_BETA", PrecisePositioningBeta},
	{"COLLISION_DETECT_ALPHA_DISABLE", CollisionDetectAlphaDisable},
	{"COLLISION_DETECT_BETA_DISABLE", CollisionDetectBetaDisable},
	{"MOTOR_CALIBRATION", MotorCalibration},
	{"MOTOR_ALPHA_CALIBRATED", MotorAlphaCalibrated},
	{"MOTOR_BETA_CALIBRATED", MotorBetaCalibrated},
	{"DATUM_CALIBRATION", DatumCalibration},
	{"DATUM_ALPHA_CALIBRATED", DatumAlphaCalibrated},
	{"DATUM_BETA_CALIBRATED", DatumBetaCalibrated},
	{"DATUM_INITIALIZATION", DatumInitialization},
	{"DATUM_ALPHA_INITIALIZED", DatumAlphaInitialized},
	{"DATUM_BETA_INITIALIZED", DatumBetaInitialized},
	{"HALL_ALPHA_DISABLE", HallAlphaDisable},
	{"HALL_BETA_DISABLE", HallBetaDisable},
	{"COGGING_CALIBRATION", CoggingCalibration},
	{"COGGING_ALPHA_CALIBRATED", CoggingAlphaCalibrated},
	{"COGGING_BETA_CALIBRATED", CoggingBetaCalibrated},
	{"ESTIMATED_POSITION", EstimatedPosition},
	{"POSITION_RESTORED", PositionRestored},
	{"SWITCH_OFF_AFTER_MOVE", SwitchOffAfterMove},
	{"CALIBRATION_SAVED", CalibrationSaved},
	{"PRECISE_MOVE_IN_OPEN_LOOP_ALPHA", PreciseMoveInOpenLoopAlpha},
	{"PRECISE_MOVE_IN_OPEN_LOOP_BETA", PreciseMoveInOpenLoopBeta},
	{"SWITCH_OFF_HALL_AFTER_MOVE", SwitchOffHallAfterMove},
})
