// Package dispatch implements the request/response engine for one
// USB-CAN transceiver.
//
// A Dispatcher owns the transceiver link, its MessageBus and the 4-bit UID
// counter. Every request goes through the same three steps:
//
//	pending, err := d.Send(ctx, call)   // allocate UID, encode, write
//	result := d.Receive(ctx, pending)   // poll link + bus until match or deadline
//	result := d.Do(ctx, call)           // both of the above
//
// Expected outcomes (device rejection, no response, failed write) are
// reported in Result, never as errors, so a batch over many positioners can
// continue past one failed device. Errors are reserved for misuse and for
// losing the transceiver: a read failure closes the link and every later
// call returns ErrTransportClosed until Reset is called with a new link.
//
// # Timing
//
// Receive polls with a fixed interval (PollInterval, 5 ms by default)
// against a monotonic deadline chosen from the call's TimeoutClass. It never
// returns later than the deadline plus one poll interval. Targeted requests
// return on the first matching frame; broadcast requests collect replies
// until the deadline passes.
package dispatch
