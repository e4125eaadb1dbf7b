package status

// Bootloader register bits.
const (
	BootloaderInit       uint64 = 0x00000001
	BootloaderTimeout    uint64 = 0x00000002
	BootConfigChanged    uint64 = 0x00000100
	BootSettingsChanged  uint64 = 0x00000200
	ReceivingNewFirmware uint64 = 0x00010000
	NewFirmwareReceived  uint64 = 0x01000000
	NewFirmwareCheckOK   uint64 = 0x02000000
	NewFirmwareCheckBad  uint64 = 0x04000000
	LastFirmwareOK       uint64 = 0x08000000
)

// Bootloader is the 32-bit status register reported by the bootloader.
var Bootloader = newRegister("bootloader", 32, []Bit{
	{"BOOTLOADER_INIT", BootloaderInit},
	{"BOOTLOADER_TIMEOUT", BootloaderTimeout},
	{"CONFIG_CHANGED", BootConfigChanged},
	{"BSETTINGS_CHANGED", BootSettingsChanged},
	{"RECEIVING_NEW_FIRMWARE", ReceivingNewFirmware},
	{"NEW_FIRMWARE_RECEIVED", NewFirmwareReceived},
	{"NEW_FIRMWARE_CHECK_OK", NewFirmwareCheckOK},
	{"NEW_FIRMWARE_CHECK_BAD", NewFirmwareCheckBad},
	{"LAST_FIRMWARE_OK", LastFirmwareOK},
})

// FirmwareVerdict interprets the bootloader register after an upload.
type FirmwareVerdict uint8

const (
	// VerdictPending means the image has not been fully received yet.
	VerdictPending FirmwareVerdict = iota
	// VerdictOK means the image was received and its checksum matched.
	VerdictOK
	// VerdictBad means the checksum did not match.
	VerdictBad
	// VerdictUnchecked means the image was received but neither check
	// bit is set.
	VerdictUnchecked
)

// String returns the verdict name.
func (v FirmwareVerdict) String() string {
	switch v {
	case VerdictPending:
		return "PENDING"
	case VerdictOK:
		return "CHECK_OK"
	case VerdictBad:
		return "CHECK_BAD"
	case VerdictUnchecked:
		return "UNCHECKED"
	default:
		return "UNKNOWN"
	}
}

// Verdict classifies a bootloader register value.
func Verdict(v uint64) FirmwareVerdict {
	switch {
	case v&NewFirmwareReceived == 0:
		return VerdictPending
	case v&NewFirmwareCheckBad != 0:
		return VerdictBad
	case v&NewFirmwareCheckOK != 0:
		return VerdictOK
	default:
		return VerdictUnchecked
	}
}
