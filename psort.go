// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package psort provides a parallel MSD radix sort for []int32.
//
// The sorter decomposes keys into four bytes, most significant first,
// ping-ponging elements between the caller's slice and one scratch
// buffer of equal length. The top-byte pass flips the sign bit so that
// unsigned bucket order agrees with signed key order. Large ranges are
// counted and scattered by concurrent workers writing disjoint regions;
// small ranges fall back to a mergesort over insertion-sorted runs, and
// tiny ranges to insertion sort. The result is bit-identical to a
// comparison sort of the same range.
//
// Example:
//   data := make([]int32, 50<<20)
//   ... fill data ...
//   psort.Sort(data)
//
// Sorting is not in place in the auxiliary-memory sense: every
// top-level call allocates one scratch buffer as long as the range.
package psort

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

const (
	// DefaultInsertionThreshold is the range length at or below which the
	// dispatcher uses plain insertion sort.
	DefaultInsertionThreshold = 13
	// DefaultMergeThreshold is the range length at or below which a radix
	// pass delegates to the merge driver.
	DefaultMergeThreshold = 4001
	// DefaultThreadWorkload is the minimum number of elements per worker;
	// it caps the worker count for small ranges.
	DefaultThreadWorkload = 65536

	minInsertionThreshold = 1
	minMergeThreshold     = 1
	minThreadWorkload     = 1
)

// The three tunables are process-wide and read atomically at each
// decision point. Callers that mutate them while sorts are in flight
// must serialize with their own mutex if they need deterministic
// dispatch decisions.
var (
	insertionThresholdVar int64 = DefaultInsertionThreshold
	mergeThresholdVar     int64 = DefaultMergeThreshold
	threadWorkloadVar     int64 = DefaultThreadWorkload
)

// SetInsertionThreshold sets the insertion-sort cutoff. Values below
// the positive minimum are silently clamped.
func SetInsertionThreshold(n int) {
	if n < minInsertionThreshold {
		n = minInsertionThreshold
	}
	atomic.StoreInt64(&insertionThresholdVar, int64(n))
}

// SetMergeThreshold sets the mergesort cutoff. Values below the
// positive minimum are silently clamped.
func SetMergeThreshold(n int) {
	if n < minMergeThreshold {
		n = minMergeThreshold
	}
	atomic.StoreInt64(&mergeThresholdVar, int64(n))
}

// SetThreadWorkload sets the minimum per-worker element count. Values
// below the positive minimum are silently clamped.
func SetThreadWorkload(n int) {
	if n < minThreadWorkload {
		n = minThreadWorkload
	}
	atomic.StoreInt64(&threadWorkloadVar, int64(n))
}

func insertionThreshold() int { return int(atomic.LoadInt64(&insertionThresholdVar)) }
func mergeThreshold() int     { return int(atomic.LoadInt64(&mergeThresholdVar)) }
func threadWorkload() int     { return int(atomic.LoadInt64(&threadWorkloadVar)) }

// InvalidRangeError is returned by SortRange when from > to.
type InvalidRangeError struct {
	From, To int
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("psort: invalid range: from (%d) > to (%d)", e.From, e.To)
}

// OutOfBoundsError is returned by SortRange when an endpoint falls
// outside the slice. Index is the offending endpoint, Len the slice
// length.
type OutOfBoundsError struct {
	Index, Len int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("psort: index %d out of bounds for length %d", e.Index, e.Len)
}

// Sort sorts a in ascending order.
func Sort(a []int32) {
	sortRange(a, 0, len(a))
}

// SortRange sorts a[from:to) in ascending order, leaving the elements
// outside the range untouched. It returns *InvalidRangeError if
// from > to, and *OutOfBoundsError if from < 0 or to > len(a); on error
// the slice is not modified.
func SortRange(a []int32, from, to int) error {
	if from > to {
		return &InvalidRangeError{From: from, To: to}
	}
	if from < 0 {
		return &OutOfBoundsError{Index: from, Len: len(a)}
	}
	if to > len(a) {
		return &OutOfBoundsError{Index: to, Len: len(a)}
	}
	sortRange(a, from, to)
	return nil
}

// sortRange dispatches a validated range to the cheapest applicable
// strategy.
func sortRange(a []int32, from, to int) {
	n := to - from
	if n < 2 {
		return
	}
	if n <= insertionThreshold() {
		insertionSort(a[from:to])
		return
	}
	src := a[from:to]
	buf := make([]int32, n)
	if n <= mergeThreshold() {
		mergeSort(src, buf, 0)
	} else {
		threads := runtime.NumCPU()
		if max := n / threadWorkload(); max < threads {
			threads = max
		}
		if threads < 1 {
			threads = 1
		}
		if threads == 1 {
			radixSort(src, buf, 0)
		} else {
			parallelRadixSort(src, buf, 0, threads)
		}
	}
	// Depth-0 passes leave their output in the buffer playing the target
	// role, which here is the scratch side.
	copy(src, buf)
}
