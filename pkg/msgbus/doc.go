// Package msgbus holds decoded frames that arrived on one transceiver but
// have not yet been claimed by the request that caused them.
//
// Replies from different positioners arrive interleaved and in arbitrary
// chunks, so the dispatcher publishes everything it decodes and each
// pending request claims only the frames carrying its uid:
//
//	bus := msgbus.New()
//	bus.Publish(frames...)
//	replies := bus.Claim(0, uid)    // broadcast: every frame with uid
//	reply := bus.Claim(7, uid)      // targeted: at most one frame
//
// A frame leaves the bus only by being claimed, by Discard for a uid that
// is being reused, or by Flush when the connection is initialized.
package msgbus
