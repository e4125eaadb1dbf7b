// Package transport connects the driver to USB-CAN transceivers that speak
// the Lawicel (SLCAN) ASCII protocol over a virtual serial port.
//
// The transport layer handles:
//   - Serial port enumeration and description matching
//   - Transceiver identification with the N command
//   - Channel setup (close, set bitrate, open)
//   - Raw line writes and non-blocking reads for the dispatcher
//   - Reopening a lost transceiver with exponential backoff
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Positioner commands          │
//	├────────────────────────────────┤
//	│   Request dispatch (UID)       │
//	├────────────────────────────────┤
//	│   SLCAN ASCII frames (T...\r)  │
//	├────────────────────────────────┤
//	│   USB CDC serial port          │
//	├────────────────────────────────┤
//	│   CAN 2.0B, 1 Mbit/s           │
//	└────────────────────────────────┘
//
// # Opening
//
// Open scans the serial ports whose description contains the configured
// match string, asks each for its serial number and configures the first
// one that matches (or the first that answers when no serial number is
// wanted). Configuration commands are spaced by CommandDelay because the
// transceiver drops commands sent back to back.
//
//	tr, err := transport.Open(ctx, transport.Config{SerialNumber: "A123"})
//	if err != nil {
//	    return err
//	}
//	d := dispatch.New(tr, dispatch.Config{SessionID: tr.SessionID()})
//
// A Transport implements dispatch.Link. CANLink adapts any canbus.Bus (for
// example a SocketCAN interface) to the same interface.
package transport
