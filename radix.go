package psort

// Serial MSD radix pass: one byte per recursion depth, most significant
// byte first.

const (
	numBuckets = 256
	// maxDepth is the terminal recursion depth; byte 0 of the key.
	maxDepth = 3
	// signBit remaps signed int32 order onto unsigned byte order when
	// XORed into the key before extracting the most significant byte.
	signBit = uint32(0x80000000)
)

// bucketOf returns the bucket index of k at the given depth. Depth d
// extracts byte 3-d (counting from the least significant byte); depth 0
// first flips the sign bit, so the most negative key lands in bucket
// 0x00 and the most positive in 0xFF. Lower bytes come from the raw
// key: within a top-byte bucket all keys share a sign.
func bucketOf(k int32, depth int) int {
	u := uint32(k)
	if depth == 0 {
		u ^= signBit
	}
	return int((u >> uint((maxDepth-depth)*8)) & 0xff)
}

// countBuckets accumulates the bucket histogram of a into hist.
func countBuckets(a []int32, depth int, hist *[numBuckets]int) {
	for _, v := range a {
		hist[bucketOf(v, depth)]++
	}
}

// radixSort sorts the elements of src using dst as auxiliary space.
// Both may be clobbered; the sorted output obeys the same residency
// rule as mergeSort (even depth -> dst, odd depth -> src).
func radixSort(src, dst []int32, depth int) {
	n := len(src)
	if n <= mergeThreshold() {
		mergeSort(src, dst, depth)
		return
	}

	var hist [numBuckets]int
	countBuckets(src, depth, &hist)

	var start [numBuckets]int
	sum := 0
	for b := 0; b < numBuckets; b++ {
		start[b] = sum
		sum += hist[b]
	}

	var processed [numBuckets]int
	for _, v := range src {
		b := bucketOf(v, depth)
		dst[start[b]+processed[b]] = v
		processed[b]++
	}

	if depth == maxDepth {
		// The final scatter fully sorted the data into dst; copy it back
		// so the odd-depth residency rule holds at the leaf.
		copy(src, dst)
		return
	}

	for b := 0; b < numBuckets; b++ {
		if hist[b] == 0 {
			continue
		}
		lo := start[b]
		hi := lo + hist[b]
		// The live data moved to dst; the child sees swapped roles and
		// restores residency at its own depth.
		radixSort(dst[lo:hi], src[lo:hi], depth+1)
	}
}
