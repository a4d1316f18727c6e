// Package dram implements the DRAM adaptor (C10): a Request/callback
// interface standing in for the out-of-scope device timing model, backed
// internally by a flat byte store addressed by hardware address (adapted
// from the teacher's flat `Memory` backing-store concept). The simulator
// depends only on the callback contract: a callback runs at or after the
// cycle the underlying model declares the request serviced.
package dram

import (
	"github.com/sirupsen/logrus"

	"github.com/maemo32/memsim/internal/remap"
	"github.com/maemo32/memsim/internal/simerr"
)

// ReqType is the DRAM request taxonomy.
type ReqType int

const (
	READ ReqType = iota
	WRITE
	REFRESH
	REMAP
)

// Request is a unit of work submitted to the adaptor.
type Request struct {
	Addr     uint64
	Type     ReqType
	Callback func(Response)
	Packet   interface{}
	CoreID   int
	MemoryID int
	Data     []byte
}

// Response is delivered to Request.Callback once service completes.
type Response struct {
	Addr   uint64
	Data   []byte
	Packet interface{}
}

// Config carries the adaptor's fixed per-type service latency (in
// cycles) and its backing-store size and queue capacities. No DRAM device
// timing is modeled beyond these fixed latencies, per the spec's
// non-goals.
type Config struct {
	BackingBytes uint64

	ReadLatency    uint64
	WriteLatency   uint64
	RefreshLatency uint64
	RemapLatency   uint64

	QueueSize      int
	RemapQueueSize int
}

type inflight struct {
	req        Request
	readyCycle uint64
}

type inflightRemap struct {
	req        remap.RemappingRequest
	readyCycle uint64
}

// Adaptor implements Send/Tick/callback and remap.Mover.
type Adaptor struct {
	cfg     Config
	backing []byte
	log     *logrus.Entry

	now uint64

	queue       []*inflight
	remapQueue  []*inflightRemap
	remapDone   func(remap.RemappingRequest)
}

// New constructs an Adaptor with a zeroed backing store of cfg.BackingBytes.
func New(cfg Config, log *logrus.Entry) *Adaptor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Adaptor{
		cfg:     cfg,
		backing: make([]byte, cfg.BackingBytes),
		log:     log.WithField("component", "dram"),
	}
}

// RegisterRemapCallback sets the function invoked when a REMAP request
// completes, wiring the adaptor back to the remapping engine.
func (a *Adaptor) RegisterRemapCallback(cb func(remap.RemappingRequest)) {
	a.remapDone = cb
}

// PeriodPS/Operate let the adaptor be driven directly by clock.Scheduler
// in tests that don't need a full memrouter+cache stack.
func (a *Adaptor) PeriodPS() uint64 { return 1 }
func (a *Adaptor) Operate(now uint64) (uint64, error) {
	a.Tick(now)
	return 1, nil
}

// Send submits req. Returns Busy (false, nil) if the adaptor's queue has
// no free slot.
func (a *Adaptor) Send(req Request) (bool, error) {
	if len(a.queue) >= a.cfg.QueueSize {
		return false, nil
	}
	latency := a.latencyFor(req.Type)
	a.queue = append(a.queue, &inflight{req: req, readyCycle: a.now + latency})
	return true, nil
}

// SendRemap implements remap.Mover: submits a remap/migration request,
// serviced after RemapLatency cycles. It copies bytes between the two
// hardware addresses in the backing store synchronously at completion.
func (a *Adaptor) SendRemap(req remap.RemappingRequest) (bool, error) {
	if len(a.remapQueue) >= a.cfg.RemapQueueSize {
		return false, nil
	}
	a.remapQueue = append(a.remapQueue, &inflightRemap{req: req, readyCycle: a.now + a.cfg.RemapLatency})
	return true, nil
}

// QueueBusyDegree implements remap.Mover: the remap-queue occupancy,
// consulted by the engine against QueueBusyDegreeThreshold.
func (a *Adaptor) QueueBusyDegree() int { return len(a.remapQueue) }

func (a *Adaptor) latencyFor(t ReqType) uint64 {
	switch t {
	case WRITE:
		return a.cfg.WriteLatency
	case REFRESH:
		return a.cfg.RefreshLatency
	case REMAP:
		return a.cfg.RemapLatency
	default:
		return a.cfg.ReadLatency
	}
}

// Tick advances the adaptor by one cycle, completing any request or
// remapping whose ready cycle has arrived.
func (a *Adaptor) Tick(now uint64) {
	a.now = now

	var remaining []*inflight
	for _, ir := range a.queue {
		if ir.readyCycle > now {
			remaining = append(remaining, ir)
			continue
		}
		a.service(ir.req)
	}
	a.queue = remaining

	var remainingRemap []*inflightRemap
	for _, ir := range a.remapQueue {
		if ir.readyCycle > now {
			remainingRemap = append(remainingRemap, ir)
			continue
		}
		a.serviceRemap(ir.req)
	}
	a.remapQueue = remainingRemap
}

func (a *Adaptor) service(req Request) {
	var data []byte
	switch req.Type {
	case WRITE:
		a.write(req.Addr, req.Data)
	case READ:
		data = a.read(req.Addr, len(req.Data))
		if len(data) == 0 {
			data = a.read(req.Addr, 64)
		}
	}
	if req.Callback != nil {
		req.Callback(Response{Addr: req.Addr, Data: data, Packet: req.Packet})
	}
}

func (a *Adaptor) serviceRemap(req remap.RemappingRequest) {
	const defaultGroup = 64
	size := int(req.Size)
	if size == 0 {
		size = defaultGroup
	}
	data := a.read(req.AddressInSM, size)
	a.write(req.AddressInFM, data)
	if a.remapDone != nil {
		a.remapDone(req)
	}
}

func (a *Adaptor) read(addr uint64, size int) []byte {
	if int(addr)+size > len(a.backing) || size <= 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, a.backing[addr:int(addr)+size])
	return out
}

func (a *Adaptor) write(addr uint64, data []byte) error {
	if int(addr)+len(data) > len(a.backing) {
		return simerr.New(simerr.KindConfigInvalid, "dram: write past backing store bound")
	}
	copy(a.backing[addr:], data)
	return nil
}
