// Package firmware uploads a new firmware image to a positioner through
// its bootloader.
//
// An upgrade runs through these states:
//
//	Idle -> HeaderSent -> Streaming -> AwaitingVerification -> Success
//	                                                          \-> Failed
//
// The device is rebooted into its bootloader, the image length and CRC32
// are announced, the image is streamed in 8-byte frames and the bootloader
// status register is polled until the device reports the image received
// and checked.
package firmware
