package cache

import "github.com/maemo32/memsim/internal/addr"

// Config carries the geometry and bandwidth parameters read from
// internal/config.Config that this cache level needs at construction.
type Config struct {
	Name string

	NumSets int
	NumWays int

	Layout addr.Layout

	MSHRSize         int
	PQSize           int
	RQSize           int
	WQSize           int
	ReturnedSize     int
	InflightWrites   int

	HitLatency        uint64
	FillLatency       uint64
	MaxTag            int
	MaxFill           int
	DeadlockThreshold uint64

	PeriodPS uint64

	// PrefetchAsLoad classifies PREFETCH requests as LOAD for counters and
	// prefetcher activation, matching the `prefetch_as_load` option.
	PrefetchAsLoad bool
	// WQChecksFullAddr makes WQ hit-testing use the full address rather
	// than the block address, matching `wq_checks_full_addr`.
	WQChecksFullAddr bool
	// VirtualPrefetch issues prefetches from the virtual address space,
	// requiring translation before they reach the tag-check stage.
	VirtualPrefetch bool
	// IsInstructionCache marks this level as fetching instructions rather
	// than data; only such a level may be given an instruction-only
	// prefetch policy (one that consumes BranchOperate's call/return
	// semantics).
	IsInstructionCache bool
}
