// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

// psort-bench drives github.com/grailbio/psort over generated integer
// datasets, verifies the results, and reports per-trial timings as TSV.
//
// Usage: psort-bench -n 50000000 -dist uniform -trials 5 -verify -out results.tsv.gz

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/psort"
	"github.com/klauspost/compress/gzip"
)

var (
	nFlag       = flag.Int("n", 10000000, "Number of elements per trial")
	trialsFlag  = flag.Int("trials", 5, "Number of sort trials")
	seedFlag    = flag.Int64("seed", 1, "Base seed for data generation")
	distFlag    = flag.String("dist", "uniform", "Data distribution: uniform, equal, topbyte, sorted, reversed")
	trimFlag    = flag.Int("trim", 0, "Sort [trim, n-trim) instead of the full slice")
	verifyFlag  = flag.Bool("verify", false, "Compare every trial against a reference comparison sort")
	outFlag     = flag.String("out", "", "TSV results path; a .gz suffix enables gzip compression")
	insertion   = flag.Int("insertion-threshold", psort.DefaultInsertionThreshold, "Insertion-sort cutoff")
	merge       = flag.Int("merge-threshold", psort.DefaultMergeThreshold, "Mergesort cutoff")
	workload    = flag.Int("thread-workload", psort.DefaultThreadWorkload, "Minimum elements per worker")
)

// generate fills a fresh slice of n elements in parallel, one
// deterministic rng per chunk.
func generate(n int, seed int64, dist string) []int32 {
	a := make([]int32, n)
	parallelism := runtime.NumCPU()
	err := traverse.Each(parallelism, func(job int) error {
		lo := (job * n) / parallelism
		hi := ((job + 1) * n) / parallelism
		rng := rand.New(rand.NewSource(seed + int64(job)))
		chunk := a[lo:hi]
		switch dist {
		case "uniform":
			for i := range chunk {
				chunk[i] = int32(rng.Uint32())
			}
		case "equal":
			for i := range chunk {
				chunk[i] = 42
			}
		case "topbyte":
			// Only the top byte varies; every radix bucket at depth 0 is
			// hit, lower depths degenerate.
			for i := range chunk {
				chunk[i] = int32(rng.Uint32() & 0xff000000)
			}
		case "sorted":
			for i := range chunk {
				chunk[i] = int32(lo + i)
			}
		case "reversed":
			for i := range chunk {
				chunk[i] = int32(n - lo - i)
			}
		default:
			return fmt.Errorf("unknown distribution %q", dist)
		}
		return nil
	})
	if err != nil {
		log.Panicf("generate: %v", err)
	}
	return a
}

// multisetChecksum is an order-independent fingerprint: the wrapping
// sum of per-element hashes. Equal before and after a sort whenever the
// call only permuted the elements; a changed multiset changes it unless
// the hash sums collide.
func multisetChecksum(a []int32) uint64 {
	var sum uint64
	var b [4]byte
	for _, v := range a {
		u := uint32(v)
		b[0] = byte(u)
		b[1] = byte(u >> 8)
		b[2] = byte(u >> 16)
		b[3] = byte(u >> 24)
		sum += xxhash.Sum64(b[:])
	}
	return sum
}

func checkSorted(a []int32) error {
	parallelism := runtime.NumCPU()
	return traverse.Each(parallelism, func(job int) error {
		lo := (job * len(a)) / parallelism
		hi := ((job + 1) * len(a)) / parallelism
		if lo > 0 {
			lo-- // cover the chunk boundary
		}
		for i := lo; i+1 < hi; i++ {
			if a[i] > a[i+1] {
				return fmt.Errorf("not sorted at %d: %d > %d", i, a[i], a[i+1])
			}
		}
		return nil
	})
}

type trialResult struct {
	trial   int
	n       int
	dist    string
	elapsed time.Duration
}

func runTrial(trial int) trialResult {
	n := *nFlag
	a := generate(n, *seedFlag+int64(trial)*7919, *distFlag)
	from, to := *trimFlag, n-*trimFlag
	if from > to {
		log.Fatalf("trim %d too large for n %d", *trimFlag, n)
	}

	var ref []int32
	if *verifyFlag {
		ref = append([]int32(nil), a...)
		sort.Slice(ref[from:to], func(i, j int) bool { return ref[from+i] < ref[from+j] })
	}
	sumBefore := multisetChecksum(a[from:to])

	start := time.Now()
	if err := psort.SortRange(a, from, to); err != nil {
		log.Fatalf("trial %d: %v", trial, err)
	}
	elapsed := time.Since(start)

	if err := checkSorted(a[from:to]); err != nil {
		log.Fatalf("trial %d: %v", trial, err)
	}
	if sumAfter := multisetChecksum(a[from:to]); sumAfter != sumBefore {
		log.Fatalf("trial %d: multiset checksum changed: %x -> %x", trial, sumBefore, sumAfter)
	}
	if *verifyFlag {
		var failed errors.Once
		parallelism := runtime.NumCPU()
		err := traverse.Each(parallelism, func(job int) error {
			lo := (job * n) / parallelism
			hi := ((job + 1) * n) / parallelism
			for i := lo; i < hi; i++ {
				if a[i] != ref[i] {
					failed.Set(fmt.Errorf("mismatch at %d: got %d, want %d", i, a[i], ref[i]))
					return nil
				}
			}
			return nil
		})
		if err == nil {
			err = failed.Err()
		}
		if err != nil {
			log.Fatalf("trial %d: verification failed: %v", trial, err)
		}
	}
	log.Printf("trial %d: n=%d dist=%s %v (%.1f M elements/s)",
		trial, n, *distFlag, elapsed, float64(to-from)/elapsed.Seconds()/1e6)
	return trialResult{trial: trial, n: n, dist: *distFlag, elapsed: elapsed}
}

func writeResults(path string, results []trialResult) {
	ctx := vcontext.Background()
	out, err := file.Create(ctx, path)
	if err != nil {
		log.Panicf("create %v: %v", path, err)
	}
	defer file.CloseAndReport(ctx, out, &err)

	var w io.Writer = out.Writer(ctx)
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(w)
		w = gz
	}
	tw := tsv.NewWriter(w)
	tw.WriteString("trial\tn\tdist\tseconds\tmelems_per_sec")
	if err := tw.EndLine(); err != nil {
		log.Panicf("write %v: %v", path, err)
	}
	for _, r := range results {
		tw.WriteString(strconv.Itoa(r.trial))
		tw.WriteString(strconv.Itoa(r.n))
		tw.WriteString(r.dist)
		tw.WriteString(strconv.FormatFloat(r.elapsed.Seconds(), 'f', 6, 64))
		tw.WriteString(strconv.FormatFloat(float64(r.n)/r.elapsed.Seconds()/1e6, 'f', 2, 64))
		if err := tw.EndLine(); err != nil {
			log.Panicf("write %v: %v", path, err)
		}
	}
	if err := tw.Flush(); err != nil {
		log.Panicf("flush %v: %v", path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			log.Panicf("close gzip %v: %v", path, err)
		}
	}
}

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if *nFlag <= 0 || *trialsFlag <= 0 {
		flag.Usage()
		os.Exit(1)
	}
	psort.SetInsertionThreshold(*insertion)
	psort.SetMergeThreshold(*merge)
	psort.SetThreadWorkload(*workload)

	results := make([]trialResult, 0, *trialsFlag)
	for trial := 0; trial < *trialsFlag; trial++ {
		results = append(results, runTrial(trial))
	}
	if *outFlag != "" {
		writeResults(*outFlag, results)
		log.Printf("wrote %d results to %s", len(results), *outFlag)
	}
}
