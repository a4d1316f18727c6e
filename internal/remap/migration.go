package remap

// OnAccess implements §4.5's full per-access flow: hot/cold tracking
// followed by the migration decision for a remapped (tag != 0) block, or
// the native-swap-back path for a displaced tag-0 block. It is the
// driving entry point, called synchronously by internal/sim's memory
// bridge on every memory access before the request is sent to the DRAM
// adaptor.
func (e *Engine) OnAccess(addr uint64) {
	e.MemoryActivityTracking(addr)

	block := e.dataBlockAddress(addr)
	tag := e.tagOf(addr)
	idx := e.placementIndex(addr)

	if tag != 0 {
		if e.IsHot(block) {
			e.tryMigrateIn(idx, tag, block)
		} else {
			e.tryColdEviction(idx, tag)
		}
		return
	}

	e.trySwapBackNative(idx, e.linePosition(addr))
}

// calculateMigrationGranularity computes the smallest power-of-two line
// count covering [start,end], clamped so it never spills past the end of
// the source block. If even the 64B floor (1 line) cannot fit, which
// happens only when start lies outside the block (start >= linesPerBlock),
// migration is refused for this call (§9 open question 2) by returning
// ok=false.
func (e *Engine) calculateMigrationGranularity(start, end int) (granularity int, ok bool) {
	size := end - start + 1
	g := nextPow2Covering(size)
	lpb := e.cfg.linesPerBlock()
	for g > 1 && start+g > lpb {
		g /= 2
	}
	if start+g > lpb {
		return 0, false
	}
	return g, true
}

func touchedRange(vec []bool) (start, end int, any bool) {
	start, end = -1, -1
	for i, v := range vec {
		if !v {
			continue
		}
		if start == -1 {
			start = i
		}
		end = i
		any = true
	}
	return
}

// tryMigrateIn implements the "block is hot" branch of the migration
// decision for tag != 0.
func (e *Engine) tryMigrateIn(idx, tag, block uint64) {
	entry := &e.placement[idx]
	linesPerBlock := e.cfg.linesPerBlock()
	freeSpace := linesPerBlock - entry.usedLines()
	if entry.Cursor == linesPerBlock || freeSpace == 0 {
		return // defer: frame full
	}

	vec := e.access[block]
	start, end, any := touchedRange(vec)
	if !any {
		return
	}
	granularity, ok := e.calculateMigrationGranularity(start, end)
	if !ok {
		return
	}

	if p := entry.find(tag); p >= 0 {
		if p != entry.Cursor-1 || entry.StartAddress[p] != start {
			// only the last group with an identical start is expandable;
			// anything else is already covered differently or stale.
			if entry.StartAddress[p] <= start && entry.StartAddress[p]+entry.Granularity[p] >= end+1 {
				return // already covers the region: hit, no-op
			}
			e.tryColdEviction(idx, tag)
			return
		}
		if entry.Granularity[p] < granularity && (granularity-entry.Granularity[p]) <= freeSpace {
			delta := granularity - entry.Granularity[p]
			newStart := end + 1 - delta
			e.enqueueMigrateIn(idx, tag, newStart, delta)
			return
		}
		if entry.StartAddress[p] <= start && entry.StartAddress[p]+entry.Granularity[p] >= end+1 {
			return // already covers the region
		}
		e.tryColdEviction(idx, tag)
		return
	}

	if granularity <= freeSpace {
		e.enqueueMigrateIn(idx, tag, start, granularity)
		return
	}
	e.tryColdEviction(idx, tag)
}

// enqueueMigrateIn submits a RemappingRequest that pulls granularity lines
// of tag's data, starting at line start, into frame idx, displacing
// native data of equal size out to slow memory.
func (e *Engine) enqueueMigrateIn(idx, tag uint64, start, granularity int) {
	entry := &e.placement[idx]
	fmOffset := entry.usedLines()
	req := RemappingRequest{
		AddressInFM:    e.fastHWAddr(idx, fmOffset),
		AddressInSM:    e.slowHWAddr(tag, idx, start),
		FMLocation:     0,   // native currently occupies the FM side
		SMLocation:     tag, // tag's data currently occupies the SM side
		Size:           uint64(granularity) * e.lineBytes(),
		placementIndex: idx,
		group:          -1,
		startLine:      start,
		granularityLn:  granularity,
	}
	e.enqueue(req)
}

// tryColdEviction implements §4.5's cold-data eviction: scan the frame's
// groups for any group with tag != 0 whose source block is no longer hot,
// and never the group matching excludeTag (the one currently being
// accessed), emitting at most one eviction request.
func (e *Engine) tryColdEviction(idx, excludeTag uint64) {
	entry := &e.placement[idx]
	for g := 0; g < entry.Cursor; g++ {
		t := entry.Tag[g]
		if t == 0 || t == excludeTag {
			continue
		}
		block := t*e.cfg.fastCapacityBlocks() + idx
		if e.IsHot(block) {
			continue
		}
		e.enqueueEviction(idx, g)
		return
	}
	e.evictionFailures++
}

// enqueueEviction submits a RemappingRequest returning group g's data to
// its far-memory home, restoring native data to the frame.
func (e *Engine) enqueueEviction(idx uint64, g int) {
	entry := &e.placement[idx]
	fmOffset := entry.lineOffsetBeforeGroup(g)
	req := RemappingRequest{
		AddressInFM:    e.fastHWAddr(idx, fmOffset),
		AddressInSM:    e.slowHWAddr(0, idx, entry.StartAddress[g]),
		FMLocation:     entry.Tag[g], // the evicted tag currently occupies FM
		SMLocation:     0,            // native's shadow home currently occupies SM
		Size:           uint64(entry.Granularity[g]) * e.lineBytes(),
		placementIndex: idx,
		group:          g,
		startLine:      entry.StartAddress[g],
		granularityLn:  entry.Granularity[g],
	}
	e.enqueue(req)
}

// trySwapBackNative implements the tag==0 displaced-native path: if some
// group currently occupies the requested line, emit a request that swaps
// the native data back in and the displacing group out.
func (e *Engine) trySwapBackNative(idx uint64, line int) {
	entry := &e.placement[idx]
	for g := 0; g < entry.Cursor; g++ {
		if entry.Tag[g] == 0 {
			continue
		}
		lo := entry.StartAddress[g]
		hi := lo + entry.Granularity[g] - 1
		if line >= lo && line <= hi {
			e.enqueueEviction(idx, g)
			return
		}
	}
	e.noInvalidGroup++
}

// enqueue submits req to the outbound queue, suppressing address-level
// duplicates and respecting the DRAM adaptor's busy-degree threshold.
// Overflow increments the congestion counter only.
func (e *Engine) enqueue(req RemappingRequest) {
	if e.mover != nil && e.mover.QueueBusyDegree() > e.cfg.QueueBusyDegreeThreshold {
		return
	}
	dup := false
	e.pending.Each(func(r RemappingRequest) {
		if r.AddressInFM == req.AddressInFM || r.AddressInSM == req.AddressInSM {
			dup = true
		}
	})
	if dup {
		return
	}
	if err := e.pending.Push(req); err != nil {
		e.congestion++
		return
	}
}

// Drain attempts to submit the head of the outbound queue to the mover;
// called once per cycle from the simulator root.
func (e *Engine) Drain() {
	for {
		req, ok := e.pending.Front()
		if !ok {
			return
		}
		if e.mover != nil && e.mover.QueueBusyDegree() > e.cfg.QueueBusyDegreeThreshold {
			return
		}
		sent, err := e.mover.SendRemap(req)
		if err != nil || !sent {
			return
		}
		e.pending.Pop()
	}
}

// FinishRemapping implements §4.5's completion handler: updates the
// placement table once the DRAM adaptor reports a remapping finished.
func (e *Engine) FinishRemapping(req RemappingRequest) error {
	entry := &e.placement[req.placementIndex]
	if req.FMLocation == 0 {
		entry.appendGroup(req.SMLocation, req.startLine, req.granularityLn)
		return entry.checkInvariant(e.cfg.linesPerBlock())
	}
	if req.SMLocation == 0 {
		g := req.group
		if g < 0 {
			g = entry.find(req.FMLocation)
		}
		if g < 0 {
			return nil
		}
		tag := entry.Tag[g]
		entry.removeGroup(g)
		for g > 0 && entry.Tag[g-1] == tag {
			entry.removeGroup(g - 1)
			g--
		}
		return entry.checkInvariant(e.cfg.linesPerBlock())
	}
	return nil
}
