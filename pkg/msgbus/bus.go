package msgbus

import (
	"sync"

	"github.com/fiberpos/tendo-go/pkg/slcan"
)

// Entry is a frame plus its arrival sequence number.
type Entry struct {
	Seq   uint64
	Frame slcan.Frame
}

// Bus is the inbox of unclaimed frames for one transceiver.
// It is safe for concurrent use.
type Bus struct {
	mu      sync.Mutex
	entries []Entry
	nextSeq uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Publish appends frames in arrival order.
func (b *Bus) Publish(frames ...slcan.Frame) {
	if len(frames) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, f := range frames {
		b.nextSeq++
		b.entries = append(b.entries, Entry{Seq: b.nextSeq, Frame: f})
	}
}

// Claim removes and returns the frames answering a request.
//
// For the broadcast address every frame carrying uid is returned,
// whatever its source address. For any other address at most the first
// frame matching both address and uid is returned.
func (b *Bus) Claim(address uint16, uid uint8) []slcan.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	if address == slcan.BroadcastAddress {
		return b.removeWhere(func(f slcan.Frame) bool { return f.UID == uid }, -1)
	}
	return b.removeWhere(func(f slcan.Frame) bool {
		return f.Address == address && f.UID == uid
	}, 1)
}

// Discard removes every frame carrying uid and returns how many were
// dropped. The dispatcher calls it before handing out a uid again, so a
// late reply to an expired request cannot answer the new one.
func (b *Bus) Discard(uid uint8) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.removeWhere(func(f slcan.Frame) bool { return f.UID == uid }, -1))
}

// Flush drops every pending frame.
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

// Len returns the number of unclaimed frames.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// removeWhere removes up to limit matching entries (limit < 0 means all)
// and returns their frames. Callers hold b.mu.
func (b *Bus) removeWhere(match func(slcan.Frame) bool, limit int) []slcan.Frame {
	var claimed []slcan.Frame
	kept := b.entries[:0]
	for _, e := range b.entries {
		if (limit < 0 || len(claimed) < limit) && match(e.Frame) {
			claimed = append(claimed, e.Frame)
			continue
		}
		kept = append(kept, e)
	}
	// Clear the tail so removed payloads can be collected.
	for i := len(kept); i < len(b.entries); i++ {
		b.entries[i] = Entry{}
	}
	b.entries = kept
	return claimed
}
