// Package prefetch implements the prefetcher shim (C6): a registered list
// of prefetch policies invoked on operate/fill/cycle/branch events, with
// return-valued hooks (CacheOperate, CacheFill) XOR-combined across
// policies per the reference model's bitmask-selected composition,
// re-architected into the registered-Policy-object shape called for in
// §9's design note.
package prefetch

// Line is the callback a Policy uses to request a synthetic prefetch. It
// mirrors prefetch_line(addr, fill_this_level, metadata): the cache
// inserts a PREFETCH packet into its own PQ, subject to PQ capacity.
type Line func(addr uint64, fillThisLevel bool, metadata uint64) bool

// Policy is implemented by every stock and custom prefetch policy.
type Policy interface {
	Initialize()
	// CacheOperate is invoked on a tag-check result. line lets the policy
	// issue further prefetches. Returns metadata to XOR-combine into the
	// shim's result, later presented back at CacheFill for whichever
	// block the resulting prefetch fills.
	CacheOperate(addr, ip uint64, cacheHit bool, reqType ReqType, metadataIn uint64, line Line) uint64
	// CacheFill is invoked when a block is installed. Returns metadata to
	// XOR-combine into the block's stored PFMetadata.
	CacheFill(addr uint64, set, way int, prefetch bool, evictedAddr uint64, metadataIn uint64) uint64
	CycleOperate()
	BranchOperate(ip uint64, branchType int, branchTarget uint64)
	FinalStats()
}

// ReqType mirrors cache.ReqType; kept independent to avoid an import
// cycle, matching internal/replace's ReqType shape.
type ReqType int

const (
	LOADType ReqType = iota
	RFOType
	PrefetchReqType
	WriteReqType
	TranslationType
)

// ActivateMask is a bitmask of ReqTypes that trigger CacheOperate,
// configuring `prefetch_activate_mask`.
type ActivateMask uint32

func (m ActivateMask) Has(t ReqType) bool {
	return m&(1<<uint(t)) != 0
}

func DefaultActivateMask() ActivateMask {
	return 1<<uint(LOADType) | 1<<uint(PrefetchReqType)
}

// Branch classifications passed as BranchOperate's branchType, kept
// independent of internal/branch's own predictor state to avoid an
// import cycle.
const (
	BranchTaken = iota
	BranchCall
	BranchReturn
)

// instructionOnly is implemented by prefetch policies that rely on
// BranchOperate's call/return/taken-branch semantics and must only be
// attached to an instruction cache.
type instructionOnly interface {
	instructionOnlyPrefetcher()
}

// RequiresInstructionCache reports whether any registered policy may
// only be attached to an instruction cache; internal/cache asserts this
// against its own configuration at construction.
func (s *Shim) RequiresInstructionCache() bool {
	for _, p := range s.policies {
		if _, ok := p.(instructionOnly); ok {
			return true
		}
	}
	return false
}

// Shim composes zero or more Policy implementations behind the single
// contract the cache pipeline calls, invoking each in registration order
// and XOR-combining return values per the reference model's composition
// rule for bitmask-selected prefetchers.
type Shim struct {
	policies []Policy
	mask     ActivateMask
}

// NewShim registers policies in the given order and sets the activation
// mask that gates CacheOperate invocation.
func NewShim(mask ActivateMask, policies ...Policy) *Shim {
	return &Shim{policies: policies, mask: mask}
}

func (s *Shim) Initialize() {
	for _, p := range s.policies {
		p.Initialize()
	}
}

// CacheOperate invokes every registered policy's CacheOperate if reqType
// is in the activation mask, XOR-combining their returned metadata.
func (s *Shim) CacheOperate(addr, ip uint64, cacheHit bool, reqType ReqType, line Line) uint64 {
	if !s.mask.Has(reqType) {
		return 0
	}
	var meta uint64
	for _, p := range s.policies {
		meta ^= p.CacheOperate(addr, ip, cacheHit, reqType, meta, line)
	}
	return meta
}

func (s *Shim) CacheFill(addr uint64, set, way int, prefetch bool, evictedAddr uint64, metadataIn uint64) uint64 {
	meta := metadataIn
	for _, p := range s.policies {
		meta ^= p.CacheFill(addr, set, way, prefetch, evictedAddr, meta)
	}
	return meta
}

func (s *Shim) CycleOperate() {
	for _, p := range s.policies {
		p.CycleOperate()
	}
}

func (s *Shim) BranchOperate(ip uint64, branchType int, branchTarget uint64) {
	for _, p := range s.policies {
		p.BranchOperate(ip, branchType, branchTarget)
	}
}

func (s *Shim) FinalStats() {
	for _, p := range s.policies {
		p.FinalStats()
	}
}
