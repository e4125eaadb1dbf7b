package slcan

// Swap8 returns number unchanged; a single byte has no order.
func Swap8(number uint64) uint64 {
	return number & 0xFF
}

// Swap16 reverses the byte order of a 16-bit value.
func Swap16(number uint64) uint64 {
	return (number<<8)&0xFF00 |
		(number>>8)&0x00FF
}

// Swap24 reverses the byte order of a 24-bit value.
func Swap24(number uint64) uint64 {
	return (number<<16)&0xFF0000 |
		number&0x00FF00 |
		(number>>16)&0x0000FF
}

// Swap32 reverses the byte order of a 32-bit value.
func Swap32(number uint64) uint64 {
	return (number<<24)&0xFF000000 |
		(number<<8)&0x00FF0000 |
		(number>>8)&0x0000FF00 |
		(number>>24)&0x000000FF
}

// Swap40 reverses the byte order of a 40-bit value.
func Swap40(number uint64) uint64 {
	return (number<<32)&0xFF00000000 |
		(number<<16)&0x00FF000000 |
		number&0x0000FF0000 |
		(number>>16)&0x000000FF00 |
		(number>>32)&0x00000000FF
}

// Swap48 reverses the byte order of a 48-bit value.
func Swap48(number uint64) uint64 {
	return (number<<40)&0xFF0000000000 |
		(number<<24)&0x00FF00000000 |
		(number<<8)&0x0000FF000000 |
		(number>>8)&0x000000FF0000 |
		(number>>24)&0x00000000FF00 |
		(number>>40)&0x0000000000FF
}

// Swap56 reverses the byte order of a 56-bit value.
func Swap56(number uint64) uint64 {
	return (number<<48)&0xFF000000000000 |
		(number<<32)&0x00FF0000000000 |
		(number<<16)&0x0000FF00000000 |
		number&0x000000FF000000 |
		(number>>16)&0x00000000FF0000 |
		(number>>32)&0x0000000000FF00 |
		(number>>48)&0x000000000000FF
}

// Swap64 reverses the byte order of a 64-bit value.
func Swap64(number uint64) uint64 {
	return (number<<56)&0xFF00000000000000 |
		(number<<40)&0x00FF000000000000 |
		(number<<24)&0x0000FF0000000000 |
		(number<<8)&0x000000FF00000000 |
		(number>>8)&0x00000000FF000000 |
		(number>>24)&0x0000000000FF0000 |
		(number>>40)&0x000000000000FF00 |
		(number>>56)&0x00000000000000FF
}

// SwapWidth returns the swap function for a width in bytes (1 to 8).
func SwapWidth(bytes int) func(uint64) uint64 {
	switch bytes {
	case 1:
		return Swap8
	case 2:
		return Swap16
	case 3:
		return Swap24
	case 4:
		return Swap32
	case 5:
		return Swap40
	case 6:
		return Swap48
	case 7:
		return Swap56
	case 8:
		return Swap64
	default:
		return nil
	}
}
