// Package ktick implements the kernel's 48-bit tick arithmetic (spec §4.1):
// a fixed-point clock at 4 microseconds per tick, big-endian on the wire,
// with an epoch of 1980-01-01 00:00:00 UTC.
package ktick

// TicksPerSecond is 1s expressed in 4us ticks: 250,000 = 0x3D090.
const TicksPerSecond = 250000

// Clock is a 48-bit tick count: high holds the upper 32 bits, low the
// lower 16, matching the wire layout in spec §3.
type Clock struct {
	High uint32
	Low  uint16
}

// Add48 returns a+b, propagating carry from low to high. Total: wraps on
// overflow rather than erroring, matching the hardware's free-running
// counter semantics.
func Add48(a, b Clock) Clock {
	low := a.Low + b.Low
	high := a.High + b.High
	if low < a.Low {
		high++
	}
	return Clock{High: high, Low: low}
}

// Sub48 returns a-b, propagating borrow from low to high.
func Sub48(a, b Clock) Clock {
	low := a.Low - b.Low
	high := a.High - b.High
	if a.Low < b.Low {
		high--
	}
	return Clock{High: high, Low: low}
}

// Equal reports whether two clocks denote the same tick count.
func (c Clock) Equal(o Clock) bool { return c.High == o.High && c.Low == o.Low }

// Less reports whether c occurs strictly before o (unsigned 48-bit order).
func (c Clock) Less(o Clock) bool {
	if c.High != o.High {
		return c.High < o.High
	}
	return c.Low < o.Low
}

// LessEqual reports c <= o.
func (c Clock) LessEqual(o Clock) bool { return c.Equal(o) || c.Less(o) }

// asUint64 views the 48-bit clock as a plain integer for arithmetic that
// doesn't need to reproduce the original partial-product multiply (the
// 68010 lacked a 32x32 multiply; a modern host doesn't need the same
// split, only the same carry/sign semantics, which this preserves).
func (c Clock) asUint64() uint64 {
	return uint64(c.High)<<16 | uint64(c.Low)
}

func clockFromUint64(v uint64) Clock {
	return Clock{High: uint32(v >> 16), Low: uint16(v)}
}

// SecToClock converts signed seconds to ticks: sec * 250_000. Negative
// inputs are valid and sign-preserving, as required by spec §4.1/§8.
func SecToClock(sec int32) Clock {
	neg := sec < 0
	s := uint64(sec)
	if neg {
		s = uint64(-sec)
	}
	product := s * TicksPerSecond
	if neg {
		product = -product
	}
	return clockFromUint64(product)
}

// ClockToSec converts ticks to truncated signed seconds: ticks / 250_000.
// The low 16 bits alone (e.g. {0,0xFFFF}) truncate to 0, per spec §8.
func ClockToSec(c Clock) int32 {
	v := c.asUint64()
	// Treat the 48-bit value as signed for negative-clock support.
	signed := int64(v)
	if v&(1<<47) != 0 {
		signed = int64(v) - (1 << 48)
	}
	return int32(signed / TicksPerSecond)
}

// MulConst multiplies a 32-bit unsigned value by a constant such as
// TicksPerSecond, returning the low 48 bits of the product. Provided
// because the original divided this into 16-bit partial products for a
// processor with no 32x32 multiply; here it's a single widening multiply.
func MulConst(v uint32, k uint32) Clock {
	return clockFromUint64(uint64(v) * uint64(k))
}

// DivConst divides a 48-bit clock by a 16-bit constant, truncating
// toward zero, returning quotient and remainder as the original two-stage
// division did.
func DivConst(c Clock, k uint16) (quotient Clock, remainder uint16) {
	v := c.asUint64()
	q := v / uint64(k)
	r := v % uint64(k)
	return clockFromUint64(q), uint16(r)
}
