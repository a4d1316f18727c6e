package replace

// SRRIP implements static re-reference interval prediction: each way
// carries an RRPV counter of rrpvBits width. A hit resets RRPV to 0; an
// insertion sets RRPV to 2^k-2 (long re-reference interval, the SRRIP
// insertion policy). FindVictim scans for RRPV == max; if none are at
// max, every way is aged by 1 and the scan retries.
type SRRIP struct {
	rrpvBits int
	maxRRPV  uint8
	rrpv     [][]uint8
}

func NewSRRIP(rrpvBits int) *SRRIP {
	if rrpvBits <= 0 {
		rrpvBits = 2
	}
	return &SRRIP{rrpvBits: rrpvBits}
}

func (s *SRRIP) Initialize(numSets, numWays int) {
	s.maxRRPV = uint8((1 << uint(s.rrpvBits)) - 1)
	s.rrpv = make([][]uint8, numSets)
	for i := range s.rrpv {
		row := make([]uint8, numWays)
		for w := range row {
			row[w] = s.maxRRPV
		}
		s.rrpv[i] = row
	}
}

func (s *SRRIP) FindVictim(cpu int, instrID uint64, set int, setTags []uint64, setValid []bool, ip, fullAddr uint64, reqType ReqType) int {
	for w, valid := range setValid {
		if !valid {
			return w
		}
	}
	for {
		for w := range s.rrpv[set] {
			if s.rrpv[set][w] == s.maxRRPV {
				return w
			}
		}
		for w := range s.rrpv[set] {
			s.rrpv[set][w]++
		}
	}
}

func (s *SRRIP) Update(cpu, set, way int, fullAddr, ip, victimAddr uint64, reqType ReqType, hit bool) {
	if hit {
		s.rrpv[set][way] = 0
		return
	}
	s.rrpv[set][way] = s.maxRRPV - 1
}

func (s *SRRIP) FinalStats() {}
