// Package persistence keeps the host-side fleet state in a JSON file.
//
// Positioners only write settings to flash on an explicit save. The driver
// batches saves by marking units whose settings changed; the store keeps
// those markers (with the mirrored firmware, target and status) across a
// restart of the host so the pending save is not lost.
package persistence
