// Package config implements simulator configuration: a plain struct
// populated via a functional-option Builder, generalizing cache.h's
// constructor Builder pattern, loadable from JSON (no flags/config
// library appears anywhere in the retrieval pack, so this follows
// ProjectConfiguration.cc's hand-rolled-parser texture).
package config

import (
	"encoding/json"
	"io"

	"github.com/maemo32/memsim/internal/remap"
	"github.com/maemo32/memsim/internal/simerr"
)

// PrefetcherKind/ReplacerKind select stock policies by bitmask, matching
// the reference model's prefetcher/replacement selector bitmasks
// (multiple may be set).
type PrefetcherKind uint32

const (
	PrefetchNone PrefetcherKind = 1 << iota
	PrefetchNextLine
	PrefetchIPStride
	PrefetchSPP
	PrefetchVaAmpmLite
)

type ReplacerKind uint32

const (
	ReplaceLRU ReplacerKind = 1 << iota
	ReplaceSRRIP
	ReplaceDRRIP
	ReplaceSHIP
)

// Config is the full simulator configuration, covering the recognized
// options in §6 plus the remapping-engine parameters supplemented from
// multiple_granularity.cc's constructor (absent from the distilled
// spec's configuration option list but required to construct C9).
type Config struct {
	Sets             int    `json:"sets"`
	Ways             int    `json:"ways"`
	MSHRSize         int    `json:"mshr_size"`
	PQSize           int    `json:"pq_size"`
	RQSize           int    `json:"rq_size"`
	WQSize           int    `json:"wq_size"`
	HitLatency       uint64 `json:"hit_latency"`
	FillLatency      uint64 `json:"fill_latency"`
	TagBandwidth     int    `json:"tag_bandwidth"`
	FillBandwidth    int    `json:"fill_bandwidth"`
	OffsetBits       int    `json:"offset_bits"`
	PeriodPS         uint64 `json:"period_ps"`
	DeadlockThreshold uint64 `json:"deadlock_threshold"`

	PrefetchAsLoad   bool `json:"prefetch_as_load"`
	WQChecksFullAddr bool `json:"wq_checks_full_addr"`
	VirtualPrefetch  bool `json:"virtual_prefetch"`

	PrefetchActivateMask uint32 `json:"prefetch_activate_mask"`
	Prefetchers          PrefetcherKind `json:"prefetchers"`
	Replacers            ReplacerKind   `json:"replacers"`

	DecayMode                string `json:"decay_mode"` // "cycles" | "accesses"
	FastMemoryCapacityBytes  uint64 `json:"fast_memory_capacity_bytes"`
	SlowMemoryCapacityBytes  uint64 `json:"slow_memory_capacity_bytes"`
	HotnessThreshold         uint32 `json:"hotness_threshold"`
	IntervalForDecrement     uint64 `json:"interval_for_decrement"`
	RemappingRequestQueueLength int `json:"remapping_request_queue_length"`
	QueueBusyDegreeThreshold    int `json:"queue_busy_degree_threshold"`
	DataManagementOffsetBits    int `json:"data_management_offset_bits"`
	DataLineOffsetBits          int `json:"data_line_offset_bits"`
}

// Option mutates a Config under construction.
type Option func(*Config)

// Default returns a Config with the reference model's typical L1D-ish
// geometry and a modest remapping-engine configuration.
func Default() Config {
	return Config{
		Sets: 64, Ways: 8, MSHRSize: 16, PQSize: 16, RQSize: 32, WQSize: 32,
		HitLatency: 4, FillLatency: 1, TagBandwidth: 2, FillBandwidth: 2,
		OffsetBits: 6, PeriodPS: 1000, DeadlockThreshold: 10000,
		PrefetchActivateMask:        1 | 4, // LOAD | PREFETCH
		Prefetchers:                 PrefetchNone,
		Replacers:                   ReplaceLRU,
		DecayMode:                   "cycles",
		FastMemoryCapacityBytes:     1 << 20,
		SlowMemoryCapacityBytes:     1 << 24,
		HotnessThreshold:            4,
		IntervalForDecrement:        10000,
		RemappingRequestQueueLength: 16,
		QueueBusyDegreeThreshold:    8,
		DataManagementOffsetBits:    12,
		DataLineOffsetBits:          6,
	}
}

// NewBuilder starts from Default and applies opts in order.
func NewBuilder(opts ...Option) Config {
	c := Default()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithGeometry(sets, ways, offsetBits int) Option {
	return func(c *Config) { c.Sets = sets; c.Ways = ways; c.OffsetBits = offsetBits }
}

func WithLatency(hit, fill uint64) Option {
	return func(c *Config) { c.HitLatency = hit; c.FillLatency = fill }
}

func WithRemapping(fastBytes, slowBytes uint64, hotness uint32, interval uint64) Option {
	return func(c *Config) {
		c.FastMemoryCapacityBytes = fastBytes
		c.SlowMemoryCapacityBytes = slowBytes
		c.HotnessThreshold = hotness
		c.IntervalForDecrement = interval
	}
}

// LoadJSON reads a Config from r, starting from Default for any field
// left unset by the document (Go's zero-value JSON decoding preserves
// whatever Default already populated for fields absent from the input,
// since Unmarshal only overwrites fields present in the document).
func LoadJSON(r io.Reader) (*Config, error) {
	c := Default()
	dec := json.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return nil, simerr.Wrap(simerr.KindConfigInvalid, "config: invalid JSON", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects configurations that would violate §8's structural
// invariants before the simulator is constructed.
func (c *Config) Validate() error {
	if c.Sets <= 0 || c.Ways <= 0 {
		return simerr.New(simerr.KindConfigInvalid, "config: sets and ways must be positive")
	}
	if c.MSHRSize <= 0 {
		return simerr.New(simerr.KindConfigInvalid, "config: mshr_size must be positive")
	}
	if c.OffsetBits <= 0 || c.OffsetBits >= 64 {
		return simerr.New(simerr.KindConfigInvalid, "config: offset_bits out of range")
	}
	if c.DataManagementOffsetBits <= c.DataLineOffsetBits {
		return simerr.New(simerr.KindConfigInvalid, "config: data_management_offset_bits must exceed data_line_offset_bits")
	}
	if c.DecayMode != "cycles" && c.DecayMode != "accesses" {
		return simerr.New(simerr.KindConfigInvalid, "config: decay_mode must be \"cycles\" or \"accesses\"")
	}
	return nil
}

// RemapConfig derives the internal/remap.Config this configuration
// implies.
func (c *Config) RemapConfig() remap.Config {
	mode := remap.DecayByCycles
	if c.DecayMode == "accesses" {
		mode = remap.DecayByAccessCount
	}
	return remap.Config{
		DataManagementOffsetBits:    c.DataManagementOffsetBits,
		DataLineOffsetBits:          c.DataLineOffsetBits,
		FastMemoryCapacityBytes:     c.FastMemoryCapacityBytes,
		SlowMemoryCapacityBytes:     c.SlowMemoryCapacityBytes,
		HotnessThreshold:            c.HotnessThreshold,
		CounterMax:                  255,
		IntervalForDecrement:        c.IntervalForDecrement,
		DecayMode:                   mode,
		RemappingRequestQueueLength: c.RemappingRequestQueueLength,
		QueueBusyDegreeThreshold:    c.QueueBusyDegreeThreshold,
	}
}
