package remap

// DecayMode selects what drives the periodic hotness-counter decay:
// wall-clock simulated cycles, or a count of memory accesses tracked by
// the engine itself. §9's first open question resolves this as
// configuration rather than guessing at the source's intent.
type DecayMode int

const (
	DecayByCycles DecayMode = iota
	DecayByAccessCount
)

// Config carries the remapping engine's geometry and thresholds, mostly
// supplemented from multiple_granularity.cc's constructor parameters
// (not present in the distilled spec's configuration option list).
type Config struct {
	DataManagementOffsetBits int // lg2(remapping block size), e.g. 12 for 4KiB
	DataLineOffsetBits       int // lg2(cache-line size), e.g. 6 for 64B

	FastMemoryCapacityBytes uint64
	SlowMemoryCapacityBytes uint64

	HotnessThreshold     uint32
	CounterMax           uint32
	IntervalForDecrement uint64
	DecayMode            DecayMode

	RemappingRequestQueueLength int
	QueueBusyDegreeThreshold    int
}

func (c Config) frameBytes() uint64   { return 1 << uint(c.DataManagementOffsetBits) }
func (c Config) lineBytes() uint64    { return 1 << uint(c.DataLineOffsetBits) }
func (c Config) linesPerBlock() int   { return int(c.frameBytes() / c.lineBytes()) }
func (c Config) fastCapacityBlocks() uint64 {
	fb := c.frameBytes()
	if fb == 0 {
		return 0
	}
	return c.FastMemoryCapacityBytes / fb
}
