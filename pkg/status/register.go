package status

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownBit is returned for a name that is not in the register table.
var ErrUnknownBit = errors.New("status: unknown bit")

// Bit is one named flag of a register.
type Bit struct {
	Name string
	Mask uint64
}

// Flag is a named bit together with its state in a register value.
type Flag struct {
	Name string
	Set  bool
}

// Register is an ordered table of named bits.
// Entries are only ever appended; indices are stable across releases.
type Register struct {
	name  string
	width int
	bits  []Bit
	index map[string]int
}

func newRegister(name string, width int, bits []Bit) *Register {
	r := &Register{name: name, width: width, bits: bits, index: make(map[string]int, len(bits))}
	for i, b := range bits {
		r.index[b.Name] = i
	}
	return r
}

// Name returns the register name.
func (r *Register) Name() string { return r.name }

// Width returns the register width in bits.
func (r *Register) Width() int { return r.width }

// Len returns the number of named bits.
func (r *Register) Len() int { return len(r.bits) }

// Names returns the bit names in table order.
func (r *Register) Names() []string {
	out := make([]string, len(r.bits))
	for i, b := range r.bits {
		out[i] = b.Name
	}
	return out
}

// Bits returns a copy of the table.
func (r *Register) Bits() []Bit {
	return append([]Bit(nil), r.bits...)
}

// Mask returns the mask of the named bit.
func (r *Register) Mask(name string) (uint64, error) {
	i, ok := r.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s register has no bit %q", ErrUnknownBit, r.name, name)
	}
	return r.bits[i].Mask, nil
}

// MaskOf returns the combined mask of several named bits.
func (r *Register) MaskOf(names ...string) (uint64, error) {
	var m uint64
	for _, n := range names {
		b, err := r.Mask(n)
		if err != nil {
			return 0, err
		}
		m |= b
	}
	return m, nil
}

// Known returns the union of every named bit.
func (r *Register) Known() uint64 {
	var m uint64
	for _, b := range r.bits {
		m |= b.Mask
	}
	return m
}

// Describe returns every named bit with its state in v, in table order.
func (r *Register) Describe(v uint64) []Flag {
	out := make([]Flag, len(r.bits))
	for i, b := range r.bits {
		out[i] = Flag{Name: b.Name, Set: v&b.Mask != 0}
	}
	return out
}

// SetNames returns the names of the bits set in v.
func (r *Register) SetNames(v uint64) []string {
	var out []string
	for _, b := range r.bits {
		if v&b.Mask != 0 {
			out = append(out, b.Name)
		}
	}
	return out
}

// IndicesSet returns the table positions of the bits set in v.
func (r *Register) IndicesSet(v uint64) []int {
	var out []int
	for i, b := range r.bits {
		if v&b.Mask != 0 {
			out = append(out, i)
		}
	}
	return out
}

// FromIndices rebuilds a register value from table positions.
// Out-of-range indices are ignored.
func (r *Register) FromIndices(indices []int) uint64 {
	var v uint64
	for _, i := range indices {
		if i >= 0 && i < len(r.bits) {
			v |= r.bits[i].Mask
		}
	}
	return v
}

// Format renders v as an aligned "NAME : true|false" table, one bit per line.
func (r *Register) Format(v uint64) string {
	width := 0
	for _, b := range r.bits {
		width = max(width, len(b.Name))
	}
	var sb strings.Builder
	for _, f := range r.Describe(v) {
		fmt.Fprintf(&sb, "%-*s : %t\n", width+2, f.Name, f.Set)
	}
	return sb.String()
}
