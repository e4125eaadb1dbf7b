// Package positioner provides the typed command set for fibre positioners
// and the fleet that owns them.
//
// A Unit addresses one positioner (or every positioner, for address 0)
// through one or more dispatchers. Each method builds the request payload,
// sends it with the timeout class of its command and decodes the reply
// into a typed response:
//
//	fleet := positioner.NewFleet(positioner.FleetConfig{}, dispatcher)
//	found, err := fleet.Discover(ctx)
//	unit, _ := fleet.Unit(found[0])
//	move, err := unit.Goto(ctx, 90, 45)
//
// Expected failures (device rejection, no response) are reported in the
// response Code. Errors are returned only for misuse, such as broadcasting
// a command that targets a single device, and for transceiver loss.
//
// Commands that change the device configuration call the AlteredHook when
// accepted, so callers can batch a later SAVE_CALIBRATION_DATA.
package positioner
