package msgbus

import (
	"sync"
	"testing"

	"github.com/fiberpos/tendo-go/pkg/slcan"
)

func frame(addr uint16, uid uint8) slcan.Frame {
	return slcan.Frame{Address: addr, Command: 2, UID: uid}
}

func TestClaimBroadcastCollectsAllWithUID(t *testing.T) {
	bus := New()
	bus.Publish(frame(3, 5), frame(9, 5), frame(4, 6), frame(11, 5))

	got := bus.Claim(0, 5)
	if len(got) != 3 {
		t.Fatalf("Claim(0, 5) returned %d frames, want 3", len(got))
	}
	want := []uint16{3, 9, 11}
	for i, f := range got {
		if f.Address != want[i] {
			t.Errorf("frame %d address = %d, want %d", i, f.Address, want[i])
		}
	}

	if again := bus.Claim(0, 5); len(again) != 0 {
		t.Errorf("second claim returned %d frames", len(again))
	}
	if bus.Len() != 1 {
		t.Errorf("Len = %d, want 1 (uid 6 untouched)", bus.Len())
	}
}

func TestClaimTargetedReturnsAtMostOne(t *testing.T) {
	bus := New()
	bus.Publish(frame(8, 2), frame(7, 2), frame(7, 3), frame(7, 2))

	got := bus.Claim(7, 2)
	if len(got) != 1 {
		t.Fatalf("Claim(7, 2) returned %d frames, want 1", len(got))
	}
	if got[0].Address != 7 || got[0].UID != 2 {
		t.Errorf("claimed %v", got[0])
	}
	if bus.Len() != 3 {
		t.Errorf("Len = %d, want 3", bus.Len())
	}

	if none := bus.Claim(5, 2); len(none) != 0 {
		t.Errorf("Claim for absent address returned %v", none)
	}

	// The duplicate is still claimable, address 8 is never returned for 7.
	got = bus.Claim(7, 2)
	if len(got) != 1 || got[0].Address != 7 {
		t.Errorf("second claim = %v", got)
	}
	if got := bus.Claim(7, 2); len(got) != 0 {
		t.Errorf("third claim = %v", got)
	}
}

// snapshot returns a copy of the unclaimed entries in arrival order.
func snapshot(b *Bus) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Entry(nil), b.entries...)
}

func TestUnclaimedFramesPersist(t *testing.T) {
	bus := New()
	bus.Publish(frame(1, 1))
	bus.Publish(frame(2, 2))

	snap := snapshot(bus)
	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d", len(snap))
	}
	if snap[0].Seq >= snap[1].Seq {
		t.Errorf("sequence not increasing: %d, %d", snap[0].Seq, snap[1].Seq)
	}

	bus.Claim(2, 2)
	if bus.Len() != 1 {
		t.Errorf("Len = %d, want 1", bus.Len())
	}
}

func TestDiscardAndFlush(t *testing.T) {
	bus := New()
	bus.Publish(frame(1, 4), frame(2, 4), frame(3, 5))

	if n := bus.Discard(4); n != 2 {
		t.Errorf("Discard = %d, want 2", n)
	}
	if bus.Len() != 1 {
		t.Errorf("Len = %d, want 1", bus.Len())
	}

	bus.Flush()
	if bus.Len() != 0 {
		t.Errorf("Len after Flush = %d", bus.Len())
	}
}

func TestConcurrentPublishClaim(t *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	const perUID = 50

	for uid := uint8(0); uid < 16; uid++ {
		wg.Add(1)
		go func(uid uint8) {
			defer wg.Done()
			for i := 0; i < perUID; i++ {
				bus.Publish(frame(uint16(i+1), uid))
			}
		}(uid)
	}
	wg.Wait()

	total := 0
	for uid := uint8(0); uid < 16; uid++ {
		total += len(bus.Claim(0, uid))
	}
	if total != 16*perUID {
		t.Errorf("claimed %d frames, want %d", total, 16*perUID)
	}
}
