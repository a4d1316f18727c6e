package replace

// LRU is the stock least-recently-used policy: a per-(set,way) timestamp,
// victim is the argmin. Modeled on akita/v4/mem/cache's LRU victim finder
// (argmin over per-block last-access timestamps), adapted here to the
// registered-policy Shim contract and to the "write hits don't update
// recency" tie-break from the reference cache model (writeback storms
// would otherwise pollute recency ordering).
type LRU struct {
	numWays int
	lastUse [][]uint64
	clock   uint64
}

func NewLRU() *LRU {
	return &LRU{}
}

func (l *LRU) Initialize(numSets, numWays int) {
	l.numWays = numWays
	l.lastUse = make([][]uint64, numSets)
	for i := range l.lastUse {
		l.lastUse[i] = make([]uint64, numWays)
	}
}

func (l *LRU) FindVictim(cpu int, instrID uint64, set int, setTags []uint64, setValid []bool, ip, fullAddr uint64, reqType ReqType) int {
	victim := 0
	var min uint64 = ^uint64(0)
	for w := 0; w < l.numWays; w++ {
		if !setValid[w] {
			return w
		}
		if l.lastUse[set][w] < min {
			min = l.lastUse[set][w]
			victim = w
		}
	}
	return victim
}

func (l *LRU) Update(cpu, set, way int, fullAddr, ip, victimAddr uint64, reqType ReqType, hit bool) {
	if hit && reqType == WriteType {
		return
	}
	l.clock++
	l.lastUse[set][way] = l.clock
}

func (l *LRU) FinalStats() {}

// WriteType mirrors cache.WRITE's ordinal (3); the ReqType orderings of
// this package and internal/cache are aligned by their declarations, and
// no test compares them.
const WriteType ReqType = 3
