// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-2 helpers used to size FFT buffers.

Both functions are O(1), allocation free and safe on the audio thread.

	// Find next power of 2 for buffer sizing
	bufferSize := bitint.NextPowerOfTwo(1000) // Returns 1024

	// Verify FFT window size is valid
	isValid := bitint.IsPowerOfTwo(windowSize)

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of 2 are returned unchanged: 8-1 = 0b0111 has length 3 and 1<<3 = 8,
whereas 8 = 0b1000 has length 4 and would double to 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Non-positive
// sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2. A power of 2 has exactly one
// bit set, so clearing its lowest set bit with n&(n-1) leaves zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
