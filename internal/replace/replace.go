// Package replace implements the replacement shim (C7): a composable list
// of victim-selection/update policies. FindVictim uses "last registered
// policy wins"; Update invokes every registered policy, mirroring the
// reference model's module composition rule generalized from compile-time
// bitmask flags into a registered-object list.
package replace

// ReqType mirrors cache.ReqType without importing the cache package, to
// keep replacement policies free of a dependency cycle; internal/cache
// converts at the call boundary.
type ReqType int

// Policy is implemented by every stock and custom replacement policy.
type Policy interface {
	Initialize(numSets, numWays int)
	FindVictim(cpu int, instrID uint64, set int, setTags []uint64, setValid []bool, ip uint64, fullAddr uint64, reqType ReqType) int
	Update(cpu, set, way int, fullAddr, ip, victimAddr uint64, reqType ReqType, hit bool)
	FinalStats()
}

// Shim composes zero or more Policy implementations behind the single
// contract the cache pipeline calls.
type Shim struct {
	policies []Policy
}

// NewShim registers policies in the given order. Order matters: for
// FindVictim the last policy's decision is authoritative; every policy
// still observes every Update call.
func NewShim(policies ...Policy) *Shim {
	return &Shim{policies: policies}
}

func (s *Shim) Initialize(numSets, numWays int) {
	for _, p := range s.policies {
		p.Initialize(numSets, numWays)
	}
}

func (s *Shim) FindVictim(cpu int, instrID uint64, set int, setTags []uint64, setValid []bool, ip, fullAddr uint64, reqType ReqType) int {
	way := -1
	for _, p := range s.policies {
		way = p.FindVictim(cpu, instrID, set, setTags, setValid, ip, fullAddr, reqType)
	}
	return way
}

func (s *Shim) Update(cpu, set, way int, fullAddr, ip, victimAddr uint64, reqType ReqType, hit bool) {
	for _, p := range s.policies {
		p.Update(cpu, set, way, fullAddr, ip, victimAddr, reqType, hit)
	}
}

func (s *Shim) FinalStats() {
	for _, p := range s.policies {
		p.FinalStats()
	}
}
