package remap

// Translate implements §4.5's physical→hardware translation, the
// bare-address overload. internal/sim's memory bridge uses it to compute
// the hardware address each request is sent to and routed on.
func (e *Engine) Translate(phys uint64) uint64 {
	idx := e.placementIndex(phys)
	tag := e.tagOf(phys)
	line := e.linePosition(phys)
	entry := &e.placement[idx]

	if tag != 0 {
		if g := entry.find(tag); g >= 0 {
			lo := entry.StartAddress[g]
			hi := lo + entry.Granularity[g] - 1
			if line >= lo && line <= hi {
				offset := entry.lineOffsetBeforeGroup(g) + (line - lo)
				return e.fastHWAddr(idx, offset)
			}
		}
		return phys
	}

	for g := 0; g < entry.Cursor; g++ {
		if entry.Tag[g] == 0 {
			continue
		}
		lo := entry.StartAddress[g]
		hi := lo + entry.Granularity[g] - 1
		if line >= lo && line <= hi {
			return e.slowHWAddr(entry.Tag[g], idx, line)
		}
	}
	return phys
}

// TranslatePacket is the packet-carrying overload: it rewrites addr in
// place and also returns the rewritten value, matching the reference
// model's two translation entry points sharing one lookup. Nothing in the
// repository calls it.
func (e *Engine) TranslatePacket(addr *uint64) uint64 {
	hw := e.Translate(*addr)
	*addr = hw
	return hw
}

// TranslateBack is the inverse used by the translation-roundtrip
// invariant test: given a hardware address and the frame/tag it was
// produced for, recover the original physical address. It only holds
// when no migration is in flight for the frame, per §8.
func (e *Engine) TranslateBack(hw uint64, placementIdx, tag uint64) uint64 {
	entry := &e.placement[placementIdx]
	if tag != 0 {
		g := entry.find(tag)
		if g < 0 {
			return hw
		}
		base := e.fastHWAddr(placementIdx, entry.lineOffsetBeforeGroup(g))
		lineDelta := (hw - base) / e.lineBytes()
		blockAddr := tag*e.cfg.fastCapacityBlocks() + placementIdx
		line := entry.StartAddress[g] + int(lineDelta)
		return blockAddr<<uint(e.cfg.DataManagementOffsetBits) | uint64(line)<<uint(e.cfg.DataLineOffsetBits)
	}
	blockAddr := placementIdx
	lineDelta := (hw - e.slowHWAddr(0, placementIdx, 0)) / e.lineBytes()
	return blockAddr<<uint(e.cfg.DataManagementOffsetBits) | lineDelta<<uint(e.cfg.DataLineOffsetBits)
}
