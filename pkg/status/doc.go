// Package status decodes the positioner status registers.
//
// Two registers exist: the 64-bit runtime register reported by GET_STATUS
// in normal operation and the 32-bit bootloader register reported while
// the positioner runs its bootloader. Both are described by an ordered,
// append-only table of named bits; the position of a bit in the table is
// its index for compact persistence (IndicesSet / FromIndices).
//
// The driver never writes a register directly. Changes are expressed as
// set/clear mask pairs (SplitMasks) so bits owned by the firmware are
// not overwritten.
package status
