package envelope

// PaddingFloor is the minimum padded size (bytes) for any encrypted
// envelope, so that even an empty response leaks no size signal (spec.md
// §3 invariant, §4.1 Padding, P3).
const PaddingFloor = 256

// Pad appends zero bytes so the total length is the next power of two
// that is at least PaddingFloor and at least len(data). Implements P3:
// encoded size is max(256, 2^ceil(log2(n))).
func Pad(data []byte) []byte {
	target := nextPowerOfTwo(len(data))
	if target < PaddingFloor {
		target = PaddingFloor
	}
	if target == len(data) {
		return data
	}
	padded := make([]byte, target)
	copy(padded, data)
	return padded
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
