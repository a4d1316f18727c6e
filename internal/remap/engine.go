// Package remap implements the variable-granularity remapping engine
// (C9): per-fast-memory-frame placement tables, hot/cold tracking of
// far-memory blocks, the migration/eviction decision, and physical to
// hardware address translation, adapted from multiple_granularity.cc's
// OS_TRANSPARENT_MANAGEMENT class.
package remap

import (
	"github.com/sirupsen/logrus"

	"github.com/maemo32/memsim/internal/queue"
	"github.com/maemo32/memsim/internal/simerr"
)

// granularitySteps lists the representable migration sizes, in lines,
// ascending: 64B, 128B, 256B, 512B, 1KiB, 2KiB, 4KiB assuming a 64B line.
// Derived from linesPerBlock, so the set always spans [1 line ..
// linesPerBlock]. Nothing in the engine calls it.
func granularitySteps(linesPerBlock int) []int {
	var steps []int
	for n := 1; n <= linesPerBlock; n *= 2 {
		steps = append(steps, n)
	}
	return steps
}

// Mover is the DRAM adaptor's half of the remapping contract: the engine
// submits RemappingRequests and learns how busy the adaptor's internal
// queue is, to throttle new submissions.
type Mover interface {
	SendRemap(req RemappingRequest) (bool, error)
	QueueBusyDegree() int
}

// Engine is the remapping engine. It owns the placement table, the
// hot/cold tracking tables, and the outbound remapping-request queue.
type Engine struct {
	cfg Config
	log *logrus.Entry

	placement []PlacementEntry

	access  map[uint64][]bool
	counter map[uint64]uint32
	hot     map[uint64]bool

	pending *queue.Ring[RemappingRequest]
	mover   Mover

	lastDecayCycle uint64
	accessesSeen   uint64

	congestion        uint64
	evictionFailures  uint64
	noInvalidGroup    uint64
}

// New constructs a remapping engine for the given geometry.
func New(cfg Config, mover Mover, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	nFrames := cfg.fastCapacityBlocks()
	e := &Engine{
		cfg:       cfg,
		log:       log.WithField("component", "remap"),
		placement: make([]PlacementEntry, nFrames),
		access:    make(map[uint64][]bool),
		counter:   make(map[uint64]uint32),
		hot:       make(map[uint64]bool),
		pending:   queue.New[RemappingRequest](cfg.RemappingRequestQueueLength),
		mover:     mover,
	}
	for i := range e.placement {
		e.placement[i] = newPlacementEntry(cfg.linesPerBlock())
	}
	return e
}

func (e *Engine) dataBlockAddress(a uint64) uint64 {
	return a >> uint(e.cfg.DataManagementOffsetBits)
}

func (e *Engine) placementIndex(a uint64) uint64 {
	blocks := e.cfg.fastCapacityBlocks()
	if blocks == 0 {
		return 0
	}
	return e.dataBlockAddress(a) % blocks
}

func (e *Engine) tagOf(a uint64) uint64 {
	blocks := e.cfg.fastCapacityBlocks()
	if blocks == 0 {
		return 0
	}
	return e.dataBlockAddress(a) / blocks
}

func (e *Engine) linePosition(a uint64) int {
	lpb := uint64(e.cfg.linesPerBlock())
	if lpb == 0 {
		return 0
	}
	return int((a >> uint(e.cfg.DataLineOffsetBits)) % lpb)
}

// CongestionCount reports the `remapping_request_queue_congestion`
// statistic.
func (e *Engine) CongestionCount() uint64 { return e.congestion }

// MemoryActivityTracking implements §4.5's hot/cold tracking: called on
// every memory access (read or write) through OnAccess, which
// internal/sim's memory bridge invokes synchronously before handing the
// request to the DRAM adaptor.
func (e *Engine) MemoryActivityTracking(addr uint64) {
	block := e.dataBlockAddress(addr)
	line := e.linePosition(addr)

	vec, ok := e.access[block]
	if !ok {
		vec = make([]bool, e.cfg.linesPerBlock())
		e.access[block] = vec
	}
	vec[line] = true

	c := e.counter[block] + 1
	if c > e.cfg.CounterMax {
		c = e.cfg.CounterMax
	}
	e.counter[block] = c
	if c >= e.cfg.HotnessThreshold {
		e.hot[block] = true
	}

	if e.cfg.DecayMode == DecayByAccessCount {
		e.accessesSeen++
		if e.accessesSeen >= e.cfg.IntervalForDecrement {
			e.decay()
			e.accessesSeen = 0
		}
	}
}

// PeriodPS/Operate let the engine be driven directly by clock.Scheduler.
func (e *Engine) PeriodPS() uint64 { return 1 }
func (e *Engine) Operate(now uint64) (uint64, error) {
	e.Tick(now)
	return 1, nil
}

// Tick drives cycle-based decay (a no-op under DecayByAccessCount) and
// drains the outbound remapping-request queue toward the DRAM adaptor.
func (e *Engine) Tick(now uint64) {
	if e.cfg.DecayMode == DecayByCycles && now-e.lastDecayCycle >= e.cfg.IntervalForDecrement {
		e.decay()
		e.lastDecayCycle = now
	}
	e.Drain()
}

// decay right-shifts every block's counter by one, clearing the hot flag
// and access vector for any block whose counter reaches zero. Each
// block's counter is independent, so this sweep is safe to parallelize;
// the exported API stays single-threaded to match the rest of the
// simulator.
func (e *Engine) decay() {
	for block, c := range e.counter {
		c >>= 1
		e.counter[block] = c
		if c == 0 {
			delete(e.counter, block)
			delete(e.hot, block)
			delete(e.access, block)
		}
	}
}

// IsHot reports whether a data block address is currently classified hot.
func (e *Engine) IsHot(block uint64) bool { return e.hot[block] }

func (e *Engine) lineBytes() uint64 { return e.cfg.lineBytes() }
func (e *Engine) frameBytes() uint64 { return e.cfg.frameBytes() }

// fastHWAddr composes a hardware address in fast memory from a frame
// index and a frame-relative line offset.
func (e *Engine) fastHWAddr(frame uint64, lineOffset int) uint64 {
	return frame*e.frameBytes() + uint64(lineOffset)*e.lineBytes()
}

// slowHWAddr composes a hardware address in slow memory for the home
// location of (tag, placementIndex, startLine). Tag 0 denotes a native
// fast-memory block temporarily displaced; its shadow home in slow memory
// is reserved past the tag-addressable region, one frame-worth per
// placement index, since the source format has no slow-memory home for
// data whose natural address is already in fast memory.
func (e *Engine) slowHWAddr(tag, placementIndex uint64, startLine int) uint64 {
	fastBase := e.cfg.FastMemoryCapacityBytes
	if tag == 0 {
		shadowBase := e.cfg.SlowMemoryCapacityBytes
		return fastBase + shadowBase + placementIndex*e.frameBytes() + uint64(startLine)*e.lineBytes()
	}
	dataBlockAddr := tag*e.cfg.fastCapacityBlocks() + placementIndex
	return fastBase + dataBlockAddr*e.frameBytes() + uint64(startLine)*e.lineBytes()
}

func nextPow2Covering(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
