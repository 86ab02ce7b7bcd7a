// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// They cover the hot paths of an activation:
//   - shell-hook and environment listing parsing
//   - task graph flattening and resolution
//   - variable merging and persistence
//   - CUE configuration loading
//
// To generate a profile, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
