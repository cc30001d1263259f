/*
Package bitint provides power-of-two helpers for buffer and FFT window
sizing. Both the byte ring buffer and the spectrum analyzer rely on
power-of-two capacities so that positions can be derived with a bitmask
instead of a modulo.

All operations are O(1), allocation-free and safe to call from any
goroutine.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size.
// For inputs that already are a power of 2 the input is returned
// unchanged; zero and negative inputs yield 1.
//
// The size-1 before bits.Len is what keeps exact powers of two from
// being doubled: Len(8-1)=3 so 1<<3 = 8, while Len(8)=4 would give 16.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len64(uint64(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
// Powers of two have exactly one bit set, so n&(n-1) clears it.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
