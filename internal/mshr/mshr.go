// Package mshr implements the miss-status holding register file (C5): a
// fixed-size table of outstanding misses keyed by (cpu, block address),
// with merge-on-arrival coalescing and FIFO-ordered completion dispatch.
package mshr

import (
	"github.com/maemo32/memsim/internal/cache"
	"github.com/maemo32/memsim/internal/simerr"
)

// Entry is one outstanding miss. It carries the same identity fields as a
// cache.TagLookup plus the cycle it was enqueued, used for deadlock
// detection by the owning cache.
type Entry struct {
	cache.TagLookup
	SkipFill   bool
	Ready      bool
	ReadyCycle uint64
	Data       []byte
}

func key(cpu int, blockAddr uint64) uint64 {
	return (uint64(uint32(cpu)) << 56) | (blockAddr &^ (0xff << 56))
}

// Result reports whether AllocateOrMerge created a new entry or merged
// into an existing one.
type Result int

const (
	Allocated Result = iota
	Merged
)

// File is the MSHR table. Size is fixed at construction via New.
type File struct {
	size    int
	entries map[uint64]*Entry
	order   []uint64 // insertion order of keys, for oldest-first deadlock scan
	blockOf func(addr uint64) uint64
}

// New constructs an MSHR file with the given fixed capacity. blockAddress
// converts a full address to the block address used for coalescing
// identity; the cache supplies its own address layout.
func New(size int, blockAddress func(addr uint64) uint64) *File {
	return &File{
		size:    size,
		entries: make(map[uint64]*Entry),
		blockOf: blockAddress,
	}
}

// Len reports the current occupancy.
func (f *File) Len() int { return len(f.entries) }

// Full reports whether the MSHR has no free entry.
func (f *File) Full() bool { return len(f.entries) >= f.size }

// Lookup returns the entry for (cpu, blockAddr) if one is outstanding.
func (f *File) Lookup(cpu int, blockAddr uint64) (*Entry, bool) {
	e, ok := f.entries[key(cpu, blockAddr)]
	return e, ok
}

// AllocateOrMerge installs lookup as a new MSHR entry, or merges it into an
// existing entry for the same (cpu, block address) per the demand-priority
// upgrade rule in §3/§4.2: ToReturn and InstrDependOnMe lists concatenate,
// and Type is upgraded when the incoming request has higher demand
// priority (LOAD > RFO > PREFETCH).
func (f *File) AllocateOrMerge(lookup cache.TagLookup) (Result, *Entry, error) {
	blockAddr := f.blockOf(lookup.Address)
	k := key(lookup.CPU, blockAddr)
	if existing, ok := f.entries[k]; ok {
		existing.ToReturn = append(existing.ToReturn, lookup.ToReturn...)
		existing.InstrDependOnMe = append(existing.InstrDependOnMe, lookup.InstrDependOnMe...)
		if lookup.Type.HigherPriorityThan(existing.Type) {
			existing.Type = lookup.Type
			existing.SkipFill = false
		}
		return Merged, existing, nil
	}
	if f.Full() {
		return Allocated, nil, simerr.New(simerr.KindMSHRFull, "mshr: no free entry and no mergeable match")
	}
	e := &Entry{TagLookup: lookup, SkipFill: lookup.SkipFill}
	f.entries[k] = e
	f.order = append(f.order, k)
	return Allocated, e, nil
}

// MarkReady records that a response has arrived downstream for (cpu,
// blockAddr), so the next fill-stage drain can install it. It does not
// remove the entry; Complete does that once the fill actually happens.
func (f *File) MarkReady(cpu int, blockAddr uint64, now uint64, data []byte) bool {
	e, ok := f.entries[key(cpu, blockAddr)]
	if !ok {
		return false
	}
	e.Ready = true
	e.ReadyCycle = now
	e.Data = data
	return true
}

// Complete removes the entry for (cpu, blockAddr) and returns its listener
// list, in registration order, so the cache can notify upstream listeners
// in the order they were registered.
func (f *File) Complete(cpu int, blockAddr uint64) ([]cache.Listener, bool) {
	k := key(cpu, blockAddr)
	e, ok := f.entries[k]
	if !ok {
		return nil, false
	}
	delete(f.entries, k)
	for i, ok2 := range f.order {
		if ok2 == k {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return e.ToReturn, true
}

// Invalidate drops an outstanding entry without notifying listeners,
// mirroring invalidate_entry's limited cancellation: it does not cancel
// the in-flight downstream miss, only this cache's bookkeeping of it.
func (f *File) Invalidate(cpu int, blockAddr uint64) bool {
	k := key(cpu, blockAddr)
	if _, ok := f.entries[k]; !ok {
		return false
	}
	delete(f.entries, k)
	for i, ok2 := range f.order {
		if ok2 == k {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return true
}

// Oldest returns the earliest-allocated outstanding entry, used by the
// cache's deadlock detector.
func (f *File) Oldest() (*Entry, bool) {
	if len(f.order) == 0 {
		return nil, false
	}
	return f.entries[f.order[0]], true
}

// Each calls fn for every outstanding entry, in allocation order. The
// cache's fill stage uses it to find entries that are ready.
func (f *File) Each(fn func(*Entry)) {
	for _, k := range f.order {
		fn(f.entries[k])
	}
}
