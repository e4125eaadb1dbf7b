// Package slcan implements the ASCII frame format spoken by the USB-CAN
// transceiver that connects the host to the positioner bus.
//
// The transceiver uses the Lawicel (SLCAN) convention: every extended data
// frame is sent as a line
//
//	T<8 hex header><length digit><payload hex>\r
//
// and the positioner firmware packs its addressing into the 29-bit header:
//
//	bits 28..18  target address (0 = broadcast)
//	bits 17..10  command
//	bits  7..4   uid (request correlation tag)
//	bits  3..0   response code (set by the device on replies)
//
// # Encoding
//
//	line, err := slcan.Encode(slcan.Frame{Address: 7, Command: 2, UID: 1})
//
// # Decoding
//
// Decode splits a buffer on frame-end markers and reports corrupt tokens
// individually, so one bad frame never discards the rest of the buffer:
//
//	frames, malformed := slcan.Decode(buf)
//
// A Decoder keeps an unterminated trailing token between reads, which is
// what a serial link delivering bytes incrementally needs.
//
// # Byte Order
//
// Multi-byte payload integers travel least significant byte first. The
// Swap* functions convert between the wire order and the host value and are
// each their own inverse.
package slcan
