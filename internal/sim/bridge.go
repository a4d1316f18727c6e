package sim

import (
	"github.com/maemo32/memsim/internal/cache"
	"github.com/maemo32/memsim/internal/dram"
	"github.com/maemo32/memsim/internal/memrouter"
	"github.com/maemo32/memsim/internal/remap"
	"github.com/maemo32/memsim/internal/stats"
)

// memoryBridge implements cache.LowerLevel for the last cache level,
// translating each miss's physical address through the remapping engine
// (C9) before dispatching it to the DRAM adaptor (C10), and classifying
// the hardware address through the memory router (C8) to drive the
// mandatory read/write-request-in-memory statistics.
type memoryBridge struct {
	upstream *cache.Cache
	adaptor  *dram.Adaptor
	router   *memrouter.Router
	engine   *remap.Engine
	sink     *stats.Sink
	lineSize int
}

func (b *memoryBridge) AddRQ(req cache.Request) (bool, error) { return b.issue(req) }
func (b *memoryBridge) AddWQ(req cache.Request) (bool, error) { return b.issue(req) }
func (b *memoryBridge) AddPQ(req cache.Request) (bool, error) { return b.issue(req) }

func (b *memoryBridge) issue(req cache.Request) (bool, error) {
	origAddr := req.Address
	b.engine.OnAccess(origAddr)
	hw := b.engine.Translate(origAddr)

	memID, _ := b.router.Route(hw)
	if req.Type == cache.WRITE {
		b.sink.Counters.WriteRequestInMemory[memIDIndex(memID)]++
	} else {
		b.sink.Counters.ReadRequestInMemory[memIDIndex(memID)]++
	}

	dreq := dram.Request{
		Addr: hw,
		Type: dramType(req.Type),
		Data: sizedData(req.Data, b.lineSize),
		Callback: func(resp dram.Response) {
			b.upstream.FinishPacket(cache.Response{
				Address:  origAddr,
				VAddress: req.VAddress,
				Data:     resp.Data,
				CPU:      req.CPU,
				Type:     req.Type,
			})
		},
	}
	return b.adaptor.Send(dreq)
}

func memIDIndex(id memrouter.MemoryID) int {
	if id == memrouter.Near {
		return 0
	}
	return 1
}

func dramType(t cache.ReqType) dram.ReqType {
	if t == cache.WRITE {
		return dram.WRITE
	}
	return dram.READ
}

func sizedData(data []byte, lineSize int) []byte {
	if len(data) > 0 {
		return data
	}
	return make([]byte, lineSize)
}
