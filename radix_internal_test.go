package psort

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func sortedCopy(a []int32) []int32 {
	cp := append([]int32(nil), a...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	return cp
}

func restoreTunables() {
	SetInsertionThreshold(DefaultInsertionThreshold)
	SetMergeThreshold(DefaultMergeThreshold)
	SetThreadWorkload(DefaultThreadWorkload)
}

func TestBucketOf(t *testing.T) {
	const k = int32(0x12345678)
	expect.EQ(t, bucketOf(k, 0), 0x92)
	expect.EQ(t, bucketOf(k, 1), 0x34)
	expect.EQ(t, bucketOf(k, 2), 0x56)
	expect.EQ(t, bucketOf(k, 3), 0x78)

	expect.EQ(t, bucketOf(math.MinInt32, 0), 0x00)
	expect.EQ(t, bucketOf(math.MaxInt32, 0), 0xff)
	expect.EQ(t, bucketOf(-1, 0), 0x7f)
	expect.EQ(t, bucketOf(0, 0), 0x80)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		k := int32(rng.Uint32())
		b := bucketOf(k, 0)
		if k < 0 && b >= 0x80 {
			t.Fatalf("negative key %#x in bucket %#x", k, b)
		}
		if k >= 0 && b < 0x80 {
			t.Fatalf("non-negative key %#x in bucket %#x", k, b)
		}
	}
}

func TestInsertionSort(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for _, n := range []int{0, 1, 2, 3, 13, 40} {
		// Sentinels on both sides; the sorter must stay inside its slice.
		a := make([]int32, n+2)
		a[0], a[n+1] = math.MaxInt32, math.MinInt32
		for i := 1; i <= n; i++ {
			a[i] = int32(rng.Uint32())
		}
		want := sortedCopy(a[1 : n+1])
		insertionSort(a[1 : n+1])
		assert.EQ(t, a[1:n+1], want)
		assert.EQ(t, a[0], int32(math.MaxInt32))
		assert.EQ(t, a[n+1], int32(math.MinInt32))
	}
}

func TestMergePassLeftover(t *testing.T) {
	src := []int32{3, 1, 2}
	dst := make([]int32, 3)
	mergePass(src, dst, 1)
	expect.EQ(t, dst, []int32{1, 3, 2})
}

// The merge driver must land its output in dst at even depths and in
// src at odd depths, whatever the pass count.
func TestMergeSortResidency(t *testing.T) {
	defer restoreTunables()
	rng := rand.New(rand.NewSource(3))
	for _, threshold := range []int{1, 2, 5, 13} {
		SetInsertionThreshold(threshold)
		for _, n := range []int{1, 2, 3, 13, 14, 26, 100, 4001} {
			for depth := 0; depth <= maxDepth; depth++ {
				src := make([]int32, n)
				for i := range src {
					src[i] = int32(rng.Uint32())
				}
				want := sortedCopy(src)
				dst := make([]int32, n)
				mergeSort(src, dst, depth)
				got := dst
				if depth&1 == 1 {
					got = src
				}
				assert.EQ(t, got, want, "threshold=%d n=%d depth=%d", threshold, n, depth)
			}
		}
	}
}

// Keys sharing all bytes above the given depth; radixSort at that depth
// must finish the job and leave the result per the residency rule.
func radixDepthInput(rng *rand.Rand, n, depth int) []int32 {
	prefixes := []uint32{0x00000000, 0x7f000000, 0x80000000, 0xab120000}
	mask := uint32(0xffffffff) >> uint(8*depth)
	prefix := prefixes[rng.Intn(len(prefixes))] &^ mask
	a := make([]int32, n)
	for i := range a {
		a[i] = int32(prefix | (rng.Uint32() & mask))
	}
	return a
}

func TestRadixSortResidency(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for depth := 0; depth <= maxDepth; depth++ {
		src := radixDepthInput(rng, 30000, depth)
		want := sortedCopy(src)
		dst := make([]int32, len(src))
		radixSort(src, dst, depth)
		got := dst
		if depth&1 == 1 {
			got = src
		}
		assert.EQ(t, got, want, "depth=%d", depth)
	}
}

func TestParallelRadixSortAgreement(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, threads := range []int{2, 3, 4, 8, 13} {
		for depth := 0; depth <= maxDepth; depth++ {
			src := radixDepthInput(rng, 200000, depth)
			want := sortedCopy(src)
			dst := make([]int32, len(src))
			parallelRadixSort(src, dst, depth, threads)
			got := dst
			if depth&1 == 1 {
				got = src
			}
			assert.EQ(t, got, want, "threads=%d depth=%d", threads, depth)
		}
	}
}

func TestParallelRadixSortOneBucket(t *testing.T) {
	// A single non-empty bucket forces spawn=1: the whole recursion runs
	// on the calling goroutine with an undivided thread budget.
	src := make([]int32, 50000)
	for i := range src {
		src[i] = 1234567
	}
	want := append([]int32(nil), src...)
	dst := make([]int32, len(src))
	parallelRadixSort(src, dst, 0, 8)
	assert.EQ(t, dst, want)
}

func TestParallelTinyChunks(t *testing.T) {
	// Chunks of at most eight elements per worker. For n below the worker
	// count every counting chunk but the last is empty and the inline
	// worker carries the whole range.
	defer restoreTunables()
	SetMergeThreshold(1)
	rng := rand.New(rand.NewSource(6))
	for _, n := range []int{2, 3, 5, 9, 64} {
		src := make([]int32, n)
		for i := range src {
			src[i] = int32(rng.Uint32())
		}
		want := sortedCopy(src)
		dst := make([]int32, n)
		parallelRadixSort(src, dst, 0, 8)
		assert.EQ(t, dst, want, "n=%d", n)
	}
}

func TestPackBuckets(t *testing.T) {
	var hist [numBuckets]int
	hist[3] = 100
	hist[7] = 50
	hist[200] = 1
	hist[255] = 849
	n := 1000
	for _, threads := range []int{2, 3, 8} {
		spawn := 4
		if threads < spawn {
			spawn = threads
		}
		groups := packBuckets(&hist, n, 4, threads)
		if len(groups) > spawn {
			t.Fatalf("threads=%d: %d groups, want at most %d", threads, len(groups), spawn)
		}
		seen := map[int]int{}
		for _, g := range groups {
			if len(g) == 0 {
				t.Fatalf("threads=%d: empty group", threads)
			}
			for _, b := range g {
				seen[b]++
			}
		}
		expect.EQ(t, seen, map[int]int{3: 1, 7: 1, 200: 1, 255: 1})
	}

	groups := packBuckets(&hist, n, 4, 1)
	expect.EQ(t, len(groups), 1)
	expect.EQ(t, len(groups[0]), 4)
}
