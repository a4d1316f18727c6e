package prefetch

// NoOp implements Policy by doing nothing; used as the zero-configuration
// default when no prefetcher is selected.
type NoOp struct{}

func NewNoOp() *NoOp { return &NoOp{} }

func (NoOp) Initialize() {}
func (NoOp) CacheOperate(addr, ip uint64, hit bool, t ReqType, metaIn uint64, line Line) uint64 {
	return 0
}
func (NoOp) CacheFill(addr uint64, set, way int, prefetch bool, evicted uint64, metaIn uint64) uint64 {
	return 0
}
func (NoOp) CycleOperate()                                  {}
func (NoOp) BranchOperate(ip uint64, t int, target uint64)   {}
func (NoOp) FinalStats()                                     {}

// NextLine prefetches the line following every demand access (blockSize is
// the containing cache's line size in bytes).
type NextLine struct {
	blockSize uint64
}

func NewNextLine(blockSize uint64) *NextLine {
	return &NextLine{blockSize: blockSize}
}

func (NextLine) Initialize() {}

func (p *NextLine) CacheOperate(addr, ip uint64, hit bool, t ReqType, metaIn uint64, line Line) uint64 {
	next := (addr &^ (p.blockSize - 1)) + p.blockSize
	line(next, false, 0)
	return 0
}

func (NextLine) CacheFill(addr uint64, set, way int, prefetch bool, evicted uint64, metaIn uint64) uint64 {
	return 0
}
func (NextLine) CycleOperate()                                {}
func (NextLine) BranchOperate(ip uint64, t int, target uint64) {}
func (NextLine) FinalStats()                                   {}

// ipStrideEntry tracks the last address and last stable stride seen for
// one instruction pointer.
type ipStrideEntry struct {
	lastAddr uint64
	stride   int64
	valid    bool
}

// IPStride is a per-IP last-address/stride table: on a repeated, stable
// stride it issues a lookahead prefetch `stride` lines ahead.
type IPStride struct {
	blockSize uint64
	lookahead int
	table     map[uint64]*ipStrideEntry
}

func NewIPStride(blockSize uint64, lookahead int) *IPStride {
	if lookahead <= 0 {
		lookahead = 1
	}
	return &IPStride{blockSize: blockSize, lookahead: lookahead, table: make(map[uint64]*ipStrideEntry)}
}

func (IPStride) Initialize() {}

func (p *IPStride) CacheOperate(addr, ip uint64, hit bool, t ReqType, metaIn uint64, line Line) uint64 {
	e, ok := p.table[ip]
	if !ok {
		p.table[ip] = &ipStrideEntry{lastAddr: addr}
		return 0
	}
	stride := int64(addr) - int64(e.lastAddr)
	if e.valid && stride == e.stride && stride != 0 {
		for i := 1; i <= p.lookahead; i++ {
			target := uint64(int64(addr) + stride*int64(i))
			line(target&^(p.blockSize-1), false, 0)
		}
	} else if stride != 0 {
		e.stride = stride
		e.valid = true
	}
	e.lastAddr = addr
	return 0
}

func (IPStride) CacheFill(addr uint64, set, way int, prefetch bool, evicted uint64, metaIn uint64) uint64 {
	return 0
}
func (IPStride) CycleOperate()                                {}
func (IPStride) BranchOperate(ip uint64, t int, target uint64) {}
func (IPStride) FinalStats()                                   {}

// NextLineInstr is NextLine's instruction-cache variant: it prefetches
// exactly as NextLine does. Its BranchOperate only records the latest
// branch target, which no prefetch decision reads. Construction in internal/cache asserts this policy is never
// attached to a data cache.
type NextLineInstr struct {
	NextLine
	lastTarget uint64
}

func NewNextLineInstr(blockSize uint64) *NextLineInstr {
	return &NextLineInstr{NextLine: NextLine{blockSize: blockSize}}
}

func (p *NextLineInstr) BranchOperate(ip uint64, branchType int, target uint64) {
	p.lastTarget = target
}

func (*NextLineInstr) instructionOnlyPrefetcher() {}

// sppEntry is one signature-table candidate: the delta last observed
// under a signature and a saturating confidence counter.
type sppEntry struct {
	delta      int64
	confidence uint8
}

const (
	sppConfidenceMax = 7
	sppConfidenceHit = 3
	sppMaxChainDepth = 4
)

// sppSignature keys the candidate table directly by the observed delta,
// an order-1 simplification of the reference signature path prefetcher's
// multi-delta path signature: it still trains confidence per pattern and
// walks a chain of predicted deltas, but folds no access history beyond
// the immediately preceding one.
func sppSignature(delta int64) uint32 {
	return uint32(delta)
}

// SPP is a simplified signature path prefetcher: every inter-block delta
// indexes a table of (delta, confidence) candidates, trained by
// confirming whether the next access actually repeats the recorded
// delta. Once a candidate's confidence clears the threshold, each access
// walks the delta chain forward, issuing one prefetch per step, until
// confidence drops below threshold or the chain depth limit is reached.
type SPP struct {
	blockSize uint64
	hasLast   bool
	lastBlock uint64
	table     map[uint32]*sppEntry
}

func NewSPP(blockSize uint64) *SPP {
	return &SPP{blockSize: blockSize, table: make(map[uint32]*sppEntry)}
}

func (*SPP) Initialize() {}

func (p *SPP) CacheOperate(addr, ip uint64, hit bool, t ReqType, metaIn uint64, line Line) uint64 {
	block := addr / p.blockSize
	if !p.hasLast {
		p.lastBlock = block
		p.hasLast = true
		return 0
	}

	delta := int64(block) - int64(p.lastBlock)
	p.lastBlock = block
	if delta == 0 {
		return 0
	}

	sig := sppSignature(delta)
	e, ok := p.table[sig]
	switch {
	case !ok:
		p.table[sig] = &sppEntry{delta: delta, confidence: 1}
	case e.delta == delta:
		if e.confidence < sppConfidenceMax {
			e.confidence++
		}
	case e.confidence > 0:
		e.confidence--
	default:
		e.delta = delta
		e.confidence = 1
	}

	cur := block
	curSig := sig
	for depth := 0; depth < sppMaxChainDepth; depth++ {
		next, ok := p.table[curSig]
		if !ok || next.confidence < sppConfidenceHit {
			break
		}
		cur = uint64(int64(cur) + next.delta)
		line(cur*p.blockSize, false, 0)
		curSig = sppSignature(next.delta)
	}
	return 0
}

func (*SPP) CacheFill(addr uint64, set, way int, prefetch bool, evicted uint64, metaIn uint64) uint64 {
	return 0
}
func (*SPP) CycleOperate()                                 {}
func (*SPP) BranchOperate(ip uint64, t int, target uint64) {}
func (*SPP) FinalStats()                                   {}

// vaAmpmRegion tracks which lines within one region have been accessed,
// at line granularity.
type vaAmpmRegion struct {
	accessed []bool
}

// VaAmpmLite is a lightweight virtual-address access-map pattern
// matching prefetcher: each fixed-size region keeps a bitmap of
// recently accessed line offsets, and every access scans that bitmap
// around the current offset for a monotonic run (stride ±1 or ±2)
// before issuing a single lookahead prefetch along the matched
// direction. Unlike IPStride it needs no per-IP table, trading
// precision for working directly off the access-address bitmap.
type VaAmpmLite struct {
	blockSize      uint64
	linesPerRegion int
	regions        map[uint64]*vaAmpmRegion
}

func NewVaAmpmLite(blockSize uint64) *VaAmpmLite {
	return &VaAmpmLite{blockSize: blockSize, linesPerRegion: 64, regions: make(map[uint64]*vaAmpmRegion)}
}

func (*VaAmpmLite) Initialize() {}

func (p *VaAmpmLite) CacheOperate(addr, ip uint64, hit bool, t ReqType, metaIn uint64, line Line) uint64 {
	lineIdx := addr / p.blockSize
	regionID := lineIdx / uint64(p.linesPerRegion)
	offset := int(lineIdx % uint64(p.linesPerRegion))

	r, ok := p.regions[regionID]
	if !ok {
		r = &vaAmpmRegion{accessed: make([]bool, p.linesPerRegion)}
		p.regions[regionID] = r
	}
	r.accessed[offset] = true

	for _, delta := range [4]int{1, -1, 2, -2} {
		a, b := offset-2*delta, offset-delta
		if a < 0 || a >= p.linesPerRegion || b < 0 || b >= p.linesPerRegion {
			continue
		}
		next := offset + delta
		if next < 0 || next >= p.linesPerRegion {
			continue
		}
		if r.accessed[a] && r.accessed[b] {
			target := (regionID*uint64(p.linesPerRegion) + uint64(next)) * p.blockSize
			line(target, false, 0)
			break
		}
	}
	return 0
}

func (*VaAmpmLite) CacheFill(addr uint64, set, way int, prefetch bool, evicted uint64, metaIn uint64) uint64 {
	return 0
}
func (*VaAmpmLite) CycleOperate()                                 {}
func (*VaAmpmLite) BranchOperate(ip uint64, t int, target uint64) {}
func (*VaAmpmLite) FinalStats()                                   {}

// BTBInstr is an instruction-cache prefetcher that issues a prefetch for
// the predicted-taken branch target's containing block, using whatever
// target BranchOperate most recently reported for a taken branch.
// Construction in internal/cache asserts this policy is never attached
// to a data cache.
type BTBInstr struct {
	blockSize  uint64
	pending    uint64
	hasPending bool
}

func NewBTBInstr(blockSize uint64) *BTBInstr { return &BTBInstr{blockSize: blockSize} }

func (*BTBInstr) Initialize() {}

func (p *BTBInstr) CacheOperate(addr, ip uint64, hit bool, t ReqType, metaIn uint64, line Line) uint64 {
	if p.hasPending {
		line(p.pending, false, 0)
		p.hasPending = false
	}
	return 0
}

func (*BTBInstr) CacheFill(addr uint64, set, way int, prefetch bool, evicted uint64, metaIn uint64) uint64 {
	return 0
}
func (*BTBInstr) CycleOperate() {}

func (p *BTBInstr) BranchOperate(ip uint64, branchType int, target uint64) {
	if branchType == BranchTaken {
		p.pending = target &^ (p.blockSize - 1)
		p.hasPending = true
	}
}
func (*BTBInstr) FinalStats() {}

func (*BTBInstr) instructionOnlyPrefetcher() {}

// ReturnStackInstr is an instruction-cache prefetcher that maintains a
// shadow call/return address stack from BranchOperate's call/return
// hints and prefetches the block at the top of that stack on a return,
// standing in for a hardware return-address stack predictor.
// Construction in internal/cache asserts this policy is never attached
// to a data cache.
type ReturnStackInstr struct {
	blockSize  uint64
	stack      []uint64
	pending    uint64
	hasPending bool
}

func NewReturnStackInstr(blockSize uint64) *ReturnStackInstr {
	return &ReturnStackInstr{blockSize: blockSize}
}

func (*ReturnStackInstr) Initialize() {}

func (p *ReturnStackInstr) CacheOperate(addr, ip uint64, hit bool, t ReqType, metaIn uint64, line Line) uint64 {
	if p.hasPending {
		line(p.pending, false, 0)
		p.hasPending = false
	}
	return 0
}

func (*ReturnStackInstr) CacheFill(addr uint64, set, way int, prefetch bool, evicted uint64, metaIn uint64) uint64 {
	return 0
}
func (*ReturnStackInstr) CycleOperate() {}

func (p *ReturnStackInstr) BranchOperate(ip uint64, branchType int, target uint64) {
	switch branchType {
	case BranchCall:
		p.stack = append(p.stack, ip)
	case BranchReturn:
		if n := len(p.stack); n > 0 {
			ret := p.stack[n-1]
			p.stack = p.stack[:n-1]
			p.pending = ret &^ (p.blockSize - 1)
			p.hasPending = true
		}
	}
}
func (*ReturnStackInstr) FinalStats() {}

func (*ReturnStackInstr) instructionOnlyPrefetcher() {}
