// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package psort

import (
	"math/rand"
	"sync"
)

// Parallel MSD radix pass. Counting and scattering run on one worker
// per contiguous source chunk; the per-bucket recursion runs on worker
// groups built by packBuckets. In every phase the calling goroutine
// acts as the last worker, so a pass with W workers spawns only W-1
// goroutines.

// parallelRadixSort sorts the elements of src using dst as auxiliary
// space, spreading the work over threads workers. The sorted output
// obeys the same residency rule as radixSort (even depth -> dst, odd
// depth -> src).
func parallelRadixSort(src, dst []int32, depth, threads int) {
	n := len(src)
	if threads < 2 {
		radixSort(src, dst, depth)
		return
	}
	if n <= mergeThreshold() {
		mergeSort(src, dst, depth)
		return
	}

	// Counting. Worker w counts chunk [w*chunk, (w+1)*chunk); the last
	// worker absorbs the remainder.
	chunk := n / threads
	localHist := make([][numBuckets]int, threads)
	var wg sync.WaitGroup
	for w := 0; w < threads-1; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			countBuckets(src[w*chunk:(w+1)*chunk], depth, &localHist[w])
		}(w)
	}
	countBuckets(src[(threads-1)*chunk:], depth, &localHist[threads-1])
	wg.Wait()

	// Reduce into the global histogram and the bucket layout.
	var hist, start [numBuckets]int
	for w := range localHist {
		for b, c := range localHist[w] {
			hist[b] += c
		}
	}
	sum, nonEmpty := 0, 0
	for b := 0; b < numBuckets; b++ {
		start[b] = sum
		sum += hist[b]
		if hist[b] != 0 {
			nonEmpty++
		}
	}

	// Scatter. Worker w starts writing each bucket exactly where worker
	// w-1 stops, so the workers cover every bucket region without
	// overlap and need no locks.
	processed := make([][numBuckets]int, threads)
	for w := 1; w < threads; w++ {
		for b := 0; b < numBuckets; b++ {
			processed[w][b] = processed[w-1][b] + localHist[w-1][b]
		}
	}
	for w := 0; w < threads-1; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			scatter(src[w*chunk:(w+1)*chunk], dst, depth, &start, &processed[w])
		}(w)
	}
	scatter(src[(threads-1)*chunk:], dst, depth, &start, &processed[threads-1])
	wg.Wait()

	if depth == maxDepth {
		// Fully sorted in dst; restore odd-depth residency.
		copy(src, dst)
		return
	}

	groups := packBuckets(&hist, n, nonEmpty, threads)

	// Recurse per group. Group budgets sum to threads; a group with a
	// budget above one keeps sorting in parallel, otherwise it runs the
	// serial pass for each of its buckets.
	g := len(groups)
	perGroup := threads / g
	extra := threads % g
	runGroup := func(gi int) {
		budget := perGroup
		if gi < extra {
			budget++
		}
		for _, b := range groups[gi] {
			lo := start[b]
			hi := lo + hist[b]
			if budget > 1 {
				parallelRadixSort(dst[lo:hi], src[lo:hi], depth+1, budget)
			} else {
				radixSort(dst[lo:hi], src[lo:hi], depth+1)
			}
		}
	}
	for gi := 0; gi < g-1; gi++ {
		wg.Add(1)
		go func(gi int) {
			defer wg.Done()
			runGroup(gi)
		}(gi)
	}
	runGroup(g - 1)
	wg.Wait()
}

// scatter distributes the keys of one source chunk into dst through the
// shared start map and the worker's private processed map.
func scatter(a, dst []int32, depth int, start, processed *[numBuckets]int) {
	for _, v := range a {
		b := bucketOf(v, depth)
		dst[start[b]+processed[b]] = v
		processed[b]++
	}
}

// packBuckets partitions the non-empty buckets into at most
// min(nonEmpty, threads) ordered groups of roughly equal element
// count. The keys are shuffled first: skewed inputs tend to put their
// large buckets next to each other, and a uniform permutation keeps
// them from all landing in one group.
func packBuckets(hist *[numBuckets]int, n, nonEmpty, threads int) [][]int {
	spawn := nonEmpty
	if threads < spawn {
		spawn = threads
	}
	keys := make([]int, 0, nonEmpty)
	for b := 0; b < numBuckets; b++ {
		if hist[b] != 0 {
			keys = append(keys, b)
		}
	}
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	quota := n / spawn
	groups := make([][]int, 0, spawn)
	var cur []int
	sum := 0
	for _, b := range keys {
		cur = append(cur, b)
		sum += hist[b]
		if sum >= quota && len(groups) < spawn-1 {
			groups = append(groups, cur)
			cur, sum = nil, 0
		}
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}
