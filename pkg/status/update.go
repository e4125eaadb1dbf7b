package status

// Half selects one 32-bit half of the runtime register.
type Half uint8

const (
	// Low is bits 0 to 31, written with SET_STATUS_LOW.
	Low Half = iota
	// High is bits 32 to 63, written with SET_STATUS_HIGH.
	High
)

// String returns the half name.
func (h Half) String() string {
	switch h {
	case Low:
		return "LOW"
	case High:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// HalfUpdate is one set/clear pair for a 32-bit half of the register.
type HalfUpdate struct {
	Half  Half
	Set   uint32
	Clear uint32
}

// SplitMasks splits 64-bit set and clear masks into per-half updates.
// Halves with nothing to set or clear are omitted. A bit present in both
// masks is cleared.
func SplitMasks(set, clear uint64) []HalfUpdate {
	set &^= clear
	var out []HalfUpdate
	if s, c := uint32(set), uint32(clear); s != 0 || c != 0 {
		out = append(out, HalfUpdate{Half: Low, Set: s, Clear: c})
	}
	if s, c := uint32(set>>32), uint32(clear>>32); s != 0 || c != 0 {
		out = append(out, HalfUpdate{Half: High, Set: s, Clear: c})
	}
	return out
}
