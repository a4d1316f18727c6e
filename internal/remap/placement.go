package remap

import "github.com/maemo32/memsim/internal/simerr"

// PlacementEntry is the per-fast-memory-frame ordered record of which
// far-memory sub-blocks currently occupy the frame, matching
// multiple_granularity.cc's placement table row.
type PlacementEntry struct {
	Cursor       int
	Tag          []uint64 // source block tag per group; 0 = native
	StartAddress []int    // sub-block (line) offset within the source block
	Granularity  []int    // size of the group, in lines
}

func newPlacementEntry(maxGroups int) PlacementEntry {
	return PlacementEntry{
		Tag:          make([]uint64, maxGroups),
		StartAddress: make([]int, maxGroups),
		Granularity:  make([]int, maxGroups),
	}
}

// usedLines returns the sum of granularity across valid groups.
func (e *PlacementEntry) usedLines() int {
	var total int
	for i := 0; i < e.Cursor; i++ {
		total += e.Granularity[i]
	}
	return total
}

// find returns the group index holding tag, or -1.
func (e *PlacementEntry) find(tag uint64) int {
	for i := 0; i < e.Cursor; i++ {
		if e.Tag[i] == tag {
			return i
		}
	}
	return -1
}

// lineOffsetBeforeGroup sums the granularity of every group before g,
// i.e. the frame-relative line offset at which group g starts.
func (e *PlacementEntry) lineOffsetBeforeGroup(g int) int {
	var total int
	for i := 0; i < g; i++ {
		total += e.Granularity[i]
	}
	return total
}

// checkInvariant validates §8's placement-table invariant: used lines
// never exceed linesPerBlock, groups below cursor are non-empty, groups
// at or past cursor are zeroed.
func (e *PlacementEntry) checkInvariant(linesPerBlock int) error {
	if e.usedLines() > linesPerBlock {
		return simerr.New(simerr.KindPlacementInvariantViolation, "placement entry exceeds frame capacity")
	}
	for i := 0; i < e.Cursor; i++ {
		if e.Granularity[i] <= 0 {
			return simerr.New(simerr.KindPlacementInvariantViolation, "placement entry has empty group below cursor")
		}
	}
	for i := e.Cursor; i < len(e.Granularity); i++ {
		if e.Granularity[i] != 0 || e.Tag[i] != 0 || e.StartAddress[i] != 0 {
			return simerr.New(simerr.KindPlacementInvariantViolation, "placement entry has stale group at/past cursor")
		}
	}
	return nil
}

// appendGroup installs a new group at the cursor position and advances it.
func (e *PlacementEntry) appendGroup(tag uint64, start, granularity int) {
	e.Tag[e.Cursor] = tag
	e.StartAddress[e.Cursor] = start
	e.Granularity[e.Cursor] = granularity
	e.Cursor++
}

// removeGroup clears group index g and compacts the remaining groups
// forward, matching the "shrink cursor and walk backward clearing
// contiguous groups" completion rule for a single removal.
func (e *PlacementEntry) removeGroup(g int) {
	if g < 0 || g >= e.Cursor {
		return
	}
	for i := g; i < e.Cursor-1; i++ {
		e.Tag[i] = e.Tag[i+1]
		e.StartAddress[i] = e.StartAddress[i+1]
		e.Granularity[i] = e.Granularity[i+1]
	}
	last := e.Cursor - 1
	e.Tag[last] = 0
	e.StartAddress[last] = 0
	e.Granularity[last] = 0
	e.Cursor--
}
