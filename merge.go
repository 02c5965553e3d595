package psort

// Small-range fallback: insertion-sorted base runs, then ping-pong
// merge passes between the two buffers.

// insertionSort sorts a in place with shift-right insertion. Stable.
func insertionSort(a []int32) {
	for i := 1; i < len(a); i++ {
		v := a[i]
		j := i - 1
		for j >= 0 && a[j] > v {
			a[j+1] = a[j]
			j--
		}
		a[j+1] = v
	}
}

// mergeSort sorts the elements of src using dst as auxiliary space.
// src and dst must have equal length and not overlap; both may be
// clobbered. Where the sorted output lands depends on the radix
// recursion depth: at even depths it ends in dst, at odd depths in src.
// The radix recursion relies on exactly this rule to know which buffer
// holds live data after each level.
func mergeSort(src, dst []int32, depth int) {
	n := len(src)
	threshold := insertionThreshold()

	// Base runs of threshold elements each, last one shorter.
	for lo := 0; lo < n; lo += threshold {
		hi := lo + threshold
		if hi > n {
			hi = n
		}
		insertionSort(src[lo:hi])
	}

	runs := (n + threshold - 1) / threshold
	width := threshold
	s, d := src, dst
	for runs > 1 {
		mergePass(s, d, width)
		s, d = d, s
		width <<= 1
		runs = (runs + 1) / 2
	}

	// s now holds the sorted data; correct the parity if the pass count
	// left it in the wrong buffer.
	want := dst
	if depth&1 == 1 {
		want = src
	}
	if &s[0] != &want[0] {
		copy(want, s)
	}
}

// mergePass merges adjacent width-sized runs from src into dst. An odd
// leftover run (or partial run) is copied through unchanged.
func mergePass(src, dst []int32, width int) {
	n := len(src)
	for lo := 0; lo < n; lo += 2 * width {
		mid := lo + width
		if mid >= n {
			copy(dst[lo:n], src[lo:n])
			break
		}
		hi := lo + 2*width
		if hi > n {
			hi = n
		}
		mergeRuns(dst[lo:hi], src[lo:mid], src[mid:hi])
	}
}

// mergeRuns merges two sorted runs into dst, which must have length
// len(left)+len(right). The right run is taken only on strict
// inequality, so equal elements keep their left-run-first order.
func mergeRuns(dst, left, right []int32) {
	i, j, k := 0, 0, 0
	for i < len(left) && j < len(right) {
		if right[j] < left[i] {
			dst[k] = right[j]
			j++
		} else {
			dst[k] = left[i]
			i++
		}
		k++
	}
	k += copy(dst[k:], left[i:])
	copy(dst[k:], right[j:])
}
