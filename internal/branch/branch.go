// Package branch provides the simple branch-predictor/BTB collaborator
// the spec treats as out of scope beyond a basic table: a direct-mapped
// saturating-counter predictor plus a branch-target buffer, adapted from
// proto/tage/tage.go's base-table (Table 0) design collapsed to a single
// table, and from SupraX.go's BranchPredictor saturating-counter shape,
// unified behind one interface that the instruction-side prefetch
// variants consume via BranchOperate.
package branch

import "math/bits"

const (
	entries        = 1024
	indexMask      = entries - 1
	maxCounter     = 7
	neutralCounter = 4
	takenThreshold = 4
)

// Predictor is a direct-mapped saturating-counter branch predictor with a
// branch-target buffer, indexed by a hash of the instruction pointer.
type Predictor struct {
	counter [entries]uint8
	valid   [entries]bool
	btb     map[uint64]uint64
}

func New() *Predictor {
	p := &Predictor{btb: make(map[uint64]uint64)}
	for i := range p.counter {
		p.counter[i] = neutralCounter
	}
	return p
}

func index(ip uint64) uint64 {
	return (ip ^ (ip >> 13) ^ uint64(bits.RotateLeft64(ip, 7))) & indexMask
}

// Predict returns whether the branch at ip is predicted taken and, if a
// BTB entry exists, its predicted target.
func (p *Predictor) Predict(ip uint64) (taken bool, target uint64, known bool) {
	i := index(ip)
	taken = p.counter[i] >= takenThreshold
	target, known = p.btb[ip]
	return
}

// Update trains the predictor with the branch's actual outcome,
// saturating the per-IP counter and recording the BTB target when taken.
func (p *Predictor) Update(ip uint64, taken bool, target uint64) {
	i := index(ip)
	if taken {
		if p.counter[i] < maxCounter {
			p.counter[i]++
		}
		p.btb[ip] = target
	} else if p.counter[i] > 0 {
		p.counter[i]--
	}
}
