package replace

// DRRIP extends SRRIP with bimodal/dueling set selection: a handful of
// leader sets are permanently pinned to either the SRRIP or the BIP
// insertion policy, a saturating PSEL counter accumulates which leader
// policy is causing more misses, and every follower set reads its
// insertion policy off PSEL's sign each access. BIP (bimodal insertion
// policy) inserts at the distant re-reference interval (max RRPV) almost
// always, and only occasionally at SRRIP's long interval (2^k-2),
// spreading a thrashing working set across the cache instead of
// evicting it on the next access.
type DRRIP struct {
	rrpvBits int
	maxRRPV  uint8
	rrpv     [][]uint8

	srripLeader map[int]bool
	bipLeader   map[int]bool
	psel        int
	bipCounter  int
}

const (
	drripPSELMax      = 1023
	drripPSELMid      = drripPSELMax / 2
	drripLeaderSets   = 32
	drripBIPInsertOne = 32 // BIP inserts at the long interval on 1-in-N misses
)

func NewDRRIP(rrpvBits int) *DRRIP {
	if rrpvBits <= 0 {
		rrpvBits = 2
	}
	return &DRRIP{rrpvBits: rrpvBits, psel: drripPSELMid}
}

func (d *DRRIP) Initialize(numSets, numWays int) {
	d.maxRRPV = uint8((1 << uint(d.rrpvBits)) - 1)
	d.rrpv = make([][]uint8, numSets)
	for i := range d.rrpv {
		row := make([]uint8, numWays)
		for w := range row {
			row[w] = d.maxRRPV
		}
		d.rrpv[i] = row
	}

	d.srripLeader = make(map[int]bool)
	d.bipLeader = make(map[int]bool)
	if numSets == 0 {
		return
	}
	leaders := drripLeaderSets
	if 2*leaders+2 > numSets {
		leaders = (numSets - 2) / 2
	}
	stride := numSets / (2*leaders + 2)
	if stride == 0 {
		stride = 1
	}
	for i := 0; i < leaders; i++ {
		d.srripLeader[(2*i+1)*stride%numSets] = true
		d.bipLeader[(2*i+2)*stride%numSets] = true
	}
}

func (d *DRRIP) FindVictim(cpu int, instrID uint64, set int, setTags []uint64, setValid []bool, ip, fullAddr uint64, reqType ReqType) int {
	for w, valid := range setValid {
		if !valid {
			return w
		}
	}
	for {
		for w := range d.rrpv[set] {
			if d.rrpv[set][w] == d.maxRRPV {
				return w
			}
		}
		for w := range d.rrpv[set] {
			d.rrpv[set][w]++
		}
	}
}

// usesBIP reports which insertion policy governs set: leader sets are
// pinned, follower sets follow PSEL's sign.
func (d *DRRIP) usesBIP(set int) bool {
	if d.srripLeader[set] {
		return false
	}
	if d.bipLeader[set] {
		return true
	}
	return d.psel >= drripPSELMid
}

func (d *DRRIP) Update(cpu, set, way int, fullAddr, ip, victimAddr uint64, reqType ReqType, hit bool) {
	if hit {
		d.rrpv[set][way] = 0
		return
	}

	if d.srripLeader[set] && d.psel < drripPSELMax {
		d.psel++
	} else if d.bipLeader[set] && d.psel > 0 {
		d.psel--
	}

	if d.usesBIP(set) {
		d.bipCounter++
		if d.bipCounter%drripBIPInsertOne == 0 {
			d.rrpv[set][way] = d.maxRRPV - 1
		} else {
			d.rrpv[set][way] = d.maxRRPV
		}
		return
	}
	d.rrpv[set][way] = d.maxRRPV - 1
}

func (d *DRRIP) FinalStats() {}
