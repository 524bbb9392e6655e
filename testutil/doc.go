// Package testutil provides testing utilities for bcache.
//
// This package is intended for use in tests and benchmarks only.
// It provides a deterministic random source, block access workloads and
// self-describing block payloads.
//
// # Workloads
//
//	rng := testutil.NewRNG(seed)
//	ops := rng.Workload(testutil.WorkloadConfig{
//	    Ops:        10000,
//	    Devices:    []uint32{1, 2},
//	    Blocks:     512,
//	    WriteRatio: 0.2,
//	    Skew:       1.2, // Zipfian block popularity; 0 = uniform
//	})
//
// # Block Payloads
//
//	testutil.FillBlock(buf, dev, blockno, version)
//	dev, blockno, version, ok := testutil.ParseBlock(buf)
package testutil
