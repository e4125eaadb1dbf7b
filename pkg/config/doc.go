// Package config loads the driver configuration and connects a session.
//
// The configuration is YAML. Built-in defaults are embedded; a user file
// only needs the keys it changes:
//
//	transceivers:
//	  - serial: A123
//	  - serial: B456
//	trace:
//	  file: /var/log/positioners/session.plog
//	state:
//	  file: /var/lib/positioners/fleet.json
//
// Connect turns a Config into a Session: one transport and dispatcher per
// transceiver, a fleet over all of them, the protocol trace and the fleet
// state file.
package config
