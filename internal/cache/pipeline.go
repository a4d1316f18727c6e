package cache

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/maemo32/memsim/internal/mshr"
	"github.com/maemo32/memsim/internal/prefetch"
	"github.com/maemo32/memsim/internal/queue"
	"github.com/maemo32/memsim/internal/replace"
	"github.com/maemo32/memsim/internal/simerr"
)

// LowerLevel is the downstream collaborator a cache forwards misses,
// writebacks and translations to. Another Cache, or a test double,
// implements it.
type LowerLevel interface {
	AddRQ(Request) (bool, error)
	AddWQ(Request) (bool, error)
	AddPQ(Request) (bool, error)
}

// writeMiss tracks an in-flight WRITE that missed and is waiting on a
// downstream completion before it can fill, per §4.1 stage 3's
// inflight_writes path. These records are not MSHR entries; a later write
// miss to the same block joins an existing record's ToReturn list instead
// of issuing its own downstream write.
type writeMiss struct {
	lookup     TagLookup
	ready      bool
	readyCycle uint64
	data       []byte
}

// pendingResponse is a fill-stage response queued for upstream delivery at
// a future cycle (now + FillLatency).
type pendingResponse struct {
	eventCycle uint64
	resp       Response
}

// Cache implements the cache pipeline (C4): ingress admission, translation
// issue, tag check, fill, all driven once per Operate call by the shared
// clock.Scheduler.
type Cache struct {
	cfg Config
	log *logrus.Entry

	blocks [][]Block // [set][way]

	rq, wq, pq *queue.Ring[Request]

	inflightTagCheck []TagLookup
	translationStash []TagLookup
	inflightWrites   []*writeMiss
	pendingResp      []pendingResponse

	mshr     *mshr.File
	replace  *replace.Shim
	prefetch *prefetch.Shim

	lower          LowerLevel
	lowerTranslate LowerLevel
	listeners      map[Listener]Deliverer

	stats Stats
}

// New constructs a cache level. lower is the downstream collaborator for
// demand/prefetch/write misses; lowerTranslate may be the same value, or a
// dedicated TLB-shaped collaborator, for TRANSLATION requests.
func New(cfg Config, lower, lowerTranslate LowerLevel, rep *replace.Shim, pf *prefetch.Shim, log *logrus.Entry) *Cache {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", cfg.Name)

	if pf.RequiresInstructionCache() && !cfg.IsInstructionCache {
		log.Panicf("cache %q: instruction-only prefetch policy attached to a data cache", cfg.Name)
	}

	blocks := make([][]Block, cfg.NumSets)
	for s := range blocks {
		blocks[s] = make([]Block, cfg.NumWays)
	}

	c := &Cache{
		cfg:            cfg,
		log:            log,
		blocks:         blocks,
		rq:             queue.New[Request](cfg.RQSize),
		wq:             queue.New[Request](cfg.WQSize),
		pq:             queue.New[Request](cfg.PQSize),
		mshr:           mshr.New(cfg.MSHRSize, cfg.Layout.BlockAddress),
		replace:        rep,
		prefetch:       pf,
		lower:          lower,
		lowerTranslate: lowerTranslate,
		listeners:      make(map[Listener]Deliverer),
	}
	rep.Initialize(cfg.NumSets, cfg.NumWays)
	pf.Initialize()
	return c
}

// PeriodPS implements clock.Operable.
func (c *Cache) PeriodPS() uint64 { return c.cfg.PeriodPS }

// SetLowerTranslate wires the collaborator used for TRANSLATION requests;
// separated from New because it commonly needs to reference the cache
// itself (see internal/sim's identityTranslator).
func (c *Cache) SetLowerTranslate(l LowerLevel) { c.lowerTranslate = l }

// RegisterListener associates a Listener id used in ToReturn lists with
// the Deliverer that owns it (the simulator root wires these up once).
func (c *Cache) RegisterListener(id Listener, d Deliverer) {
	c.listeners[id] = d
}

// Stats returns the accumulated hit/miss/prefetch counters.
func (c *Cache) Stats() Stats { return c.stats }

func (c *Cache) deliver(to Listener, resp Response) {
	if d, ok := c.listeners[to]; ok {
		d.Deliver(to, resp)
	}
}

// AddRQ enqueues a read request from above.
func (c *Cache) AddRQ(r Request) (bool, error) { return push(c.rq, r) }

// AddWQ enqueues a write request from above.
func (c *Cache) AddWQ(r Request) (bool, error) { return push(c.wq, r) }

// AddPQ enqueues a prefetch request from above.
func (c *Cache) AddPQ(r Request) (bool, error) { return push(c.pq, r) }

func push(q *queue.Ring[Request], r Request) (bool, error) {
	if err := q.Push(r); err != nil {
		return false, simerr.Wrap(simerr.KindQueueFull, "cache: queue full", err)
	}
	return true, nil
}

// PrefetchLine is the Line callback handed to the prefetcher shim: it
// inserts a synthetic PREFETCH into this cache's own PQ, subject to PQ
// capacity.
func (c *Cache) PrefetchLine(addr uint64, fillThisLevel bool, metadata uint64) bool {
	req := Request{
		Address:          addr,
		Type:             PREFETCH,
		PrefetchFromThis: true,
		SkipFill:         !fillThisLevel,
		PFMetadata:       metadata,
		IsTranslated:     !c.cfg.VirtualPrefetch,
	}
	ok, _ := c.AddPQ(req)
	return ok
}

// InvalidateEntry drops the block holding addr, if present, together with
// the CPU-0 MSHR entry for that block address. When no block holds addr it
// changes nothing. It does not cancel an in-flight downstream request.
func (c *Cache) InvalidateEntry(a uint64) (uint64, bool) {
	set := c.cfg.Layout.SetIndex(a)
	tag := c.cfg.Layout.Tag(a)
	for w := range c.blocks[set] {
		b := &c.blocks[set][w]
		if b.Valid && c.cfg.Layout.Tag(b.Address) == tag {
			evicted := b.Address
			*b = Block{}
			c.mshr.Invalidate(0, c.cfg.Layout.BlockAddress(a))
			return evicted, true
		}
	}
	return 0, false
}

// Deliver implements Deliverer by forwarding resp to FinishPacket, so a
// LowerLevel can hold this cache as its upstream listener and report a
// completed miss through it.
func (c *Cache) Deliver(to Listener, resp Response) { c.FinishPacket(resp) }

// FinishPacket marks the MSHR entry (or write-miss record) for resp's
// block address ready to fill on the next Operate call.
func (c *Cache) FinishPacket(resp Response) {
	blockAddr := c.cfg.Layout.BlockAddress(resp.Address)
	if resp.Type == WRITE {
		for _, wm := range c.inflightWrites {
			if c.cfg.Layout.BlockAddress(wm.lookup.Address) == blockAddr {
				wm.ready = true
				wm.data = resp.Data
				return
			}
		}
	}
	c.mshr.MarkReady(resp.CPU, blockAddr, 0, resp.Data)
}

// Operate advances the pipeline by one cycle, performing, in order:
// ingress selection, translation issue, tag check, fill, and the
// prefetcher cycle hook. It returns a non-zero work-done metric if any
// stage did something.
func (c *Cache) Operate(now uint64) (uint64, error) {
	var work uint64

	work += c.stageIngress(now)
	work += c.stageTranslate(now)

	tagsDone, err := c.stageTagCheck(now)
	work += tagsDone
	if err != nil {
		return work, err
	}

	fillsDone, err := c.stageFill(now)
	work += fillsDone
	if err != nil {
		return work, err
	}

	c.prefetch.CycleOperate()

	if err := c.checkDeadlock(now); err != nil {
		return work, err
	}

	return work, nil
}

// stageIngress admits up to MAX_TAG requests from the upstream channels,
// priority WQ > RQ > PQ, ties broken by arrival order (FIFO pop order).
func (c *Cache) stageIngress(now uint64) uint64 {
	budget := c.cfg.MaxTag
	var admitted uint64
	admit := func(r Request) {
		c.inflightTagCheck = append(c.inflightTagCheck, TagLookup{
			Request:    r,
			EventCycle: now + c.cfg.HitLatency,
		})
		admitted++
		budget--
	}
	for budget > 0 {
		if r, ok := c.wq.Pop(); ok {
			admit(r)
			continue
		}
		break
	}
	for budget > 0 {
		if r, ok := c.rq.Pop(); ok {
			admit(r)
			continue
		}
		break
	}
	for budget > 0 {
		if r, ok := c.pq.Pop(); ok {
			admit(r)
			continue
		}
		break
	}
	return admitted
}

// stageTranslate issues TRANSLATION requests for lookups that need one and
// parks them in translation_stash. Completed translations re-enter the
// tag-check queue through FinishTranslation, including ones that a
// translator completes synchronously inside its AddRQ.
func (c *Cache) stageTranslate(now uint64) uint64 {
	var work uint64
	var remaining []TagLookup
	pending := c.inflightTagCheck
	c.inflightTagCheck = nil
	for _, tl := range pending {
		if tl.IsTranslated || tl.TranslateIssued {
			remaining = append(remaining, tl)
			continue
		}
		req := Request{Address: tl.VAddress, Type: TRANSLATION, CPU: tl.CPU}
		tl.TranslateIssued = true
		c.translationStash = append(c.translationStash, tl)
		if ok, _ := c.lowerTranslate.AddRQ(req); ok {
			work++
		} else {
			c.translationStash = c.translationStash[:len(c.translationStash)-1]
			tl.TranslateIssued = false
			remaining = append(remaining, tl)
		}
	}
	c.inflightTagCheck = append(remaining, c.inflightTagCheck...)
	return work
}

// FinishTranslation re-enters a translated lookup into the tag-check
// queue; called by lowerTranslate when a TRANSLATION response arrives.
func (c *Cache) FinishTranslation(vaddr uint64, paddr uint64, now uint64) {
	var remaining []TagLookup
	for _, tl := range c.translationStash {
		if tl.VAddress == vaddr && !tl.IsTranslated {
			tl.Address = paddr
			tl.IsTranslated = true
			tl.EventCycle = now
			c.inflightTagCheck = append(c.inflightTagCheck, tl)
			continue
		}
		remaining = append(remaining, tl)
	}
	c.translationStash = remaining
}

// stageTagCheck drains inflight_tag_check entries whose event_cycle has
// arrived, classifying each as a hit or a miss.
func (c *Cache) stageTagCheck(now uint64) (uint64, error) {
	var work uint64
	var remaining []TagLookup
	for _, tl := range c.inflightTagCheck {
		if tl.EventCycle > now {
			remaining = append(remaining, tl)
			continue
		}
		if stalled, err := c.classify(tl, now); err != nil {
			return work, err
		} else if stalled {
			remaining = append(remaining, tl)
		} else {
			work++
		}
	}
	c.inflightTagCheck = remaining
	return work, nil
}

func (c *Cache) effectiveType(t ReqType) ReqType {
	if c.cfg.PrefetchAsLoad && t == PREFETCH {
		return LOAD
	}
	return t
}

// classify performs the hit/miss test for one TagLookup and returns
// (stalled, err): stalled means the lookup remains in inflight_tag_check
// for a future cycle (MSHR full, inflight_writes full, or a downstream
// queue rejection).
func (c *Cache) classify(tl TagLookup, now uint64) (bool, error) {
	set := c.cfg.Layout.SetIndex(tl.Address)
	tag := c.cfg.Layout.Tag(tl.Address)
	etype := c.effectiveType(tl.Type)

	way := -1
	for w := range c.blocks[set] {
		b := &c.blocks[set][w]
		if b.Valid && c.cfg.Layout.Tag(b.Address) == tag {
			way = w
			break
		}
	}

	if way >= 0 {
		b := &c.blocks[set][way]
		wasUsefulPrefetch := b.Prefetch && tl.Type != PREFETCH
		if wasUsefulPrefetch {
			b.Prefetch = false
			c.stats.PFUseful++
		}
		c.stats.recordHit(etype)
		c.replace.Update(tl.CPU, int(set), way, tl.Address, tl.IP, 0, replace.ReqType(etype), true)
		c.prefetch.CacheOperate(tl.Address, tl.IP, true, prefetch.ReqType(etype), c.PrefetchLine)
		resp := Response{
			Address: tl.Address, VAddress: tl.VAddress, Data: b.Data,
			PFMetadata: b.PFMetadata, CPU: tl.CPU, Type: tl.Type,
			InstrDependOnMe: tl.InstrDependOnMe, ToReturn: tl.ToReturn,
		}
		for _, l := range tl.ToReturn {
			c.deliver(l, resp)
		}
		return false, nil
	}

	c.stats.recordMiss(etype)
	c.prefetch.CacheOperate(tl.Address, tl.IP, false, prefetch.ReqType(etype), c.PrefetchLine)

	blockAddr := c.cfg.Layout.BlockAddress(tl.Address)

	if tl.Type == WRITE {
		for _, wm := range c.inflightWrites {
			if c.cfg.Layout.BlockAddress(wm.lookup.Address) == blockAddr {
				wm.lookup.ToReturn = append(wm.lookup.ToReturn, tl.ToReturn...)
				return false, nil
			}
		}
		if len(c.inflightWrites) >= c.cfg.InflightWrites {
			return true, nil
		}
		ok, err := c.lower.AddWQ(Request{Address: tl.Address, VAddress: tl.VAddress, Type: WRITE, CPU: tl.CPU, Data: tl.Data})
		if err != nil {
			c.stats.Congestion++
			return true, nil
		}
		if !ok {
			return true, nil
		}
		c.inflightWrites = append(c.inflightWrites, &writeMiss{lookup: tl})
		return false, nil
	}

	tl.CycleEnqueued = now
	res, entry, err := c.mshr.AllocateOrMerge(tl)
	if err != nil {
		if se, ok := err.(*simerr.Error); ok && se.Kind() == simerr.KindMSHRFull {
			return true, nil
		}
		return false, err
	}
	if res == mshr.Merged {
		_ = entry
		return false, nil
	}

	var sendErr error
	var sent bool
	switch etype {
	case PREFETCH:
		sent, sendErr = c.lower.AddPQ(tl.Request)
	default:
		sent, sendErr = c.lower.AddRQ(tl.Request)
	}
	if sendErr != nil || !sent {
		c.mshr.Invalidate(tl.CPU, blockAddr)
		c.stats.Congestion++
		return true, nil
	}
	return false, nil
}

// stageFill drains MSHR entries and write-miss records whose downstream
// response has arrived, up to MAX_FILL installs per cycle. It also
// delivers any pending response whose event_cycle has arrived.
func (c *Cache) stageFill(now uint64) (uint64, error) {
	var work uint64

	var remainingPending []pendingResponse
	for _, p := range c.pendingResp {
		if p.eventCycle > now {
			remainingPending = append(remainingPending, p)
			continue
		}
		for _, l := range p.resp.ToReturn {
			c.deliver(l, p.resp)
		}
		work++
	}
	c.pendingResp = remainingPending

	budget := c.cfg.MaxFill

	var readyAddrs []uint64
	c.mshr.Each(func(e *mshr.Entry) {
		if e.Ready {
			readyAddrs = append(readyAddrs, c.cfg.Layout.BlockAddress(e.Address))
		}
	})
	for _, blockAddr := range readyAddrs {
		if budget <= 0 {
			break
		}
		entry, ok := c.mshr.Lookup(0, blockAddr)
		if !ok || !entry.Ready {
			continue
		}
		filled, err := c.installFill(entry.TagLookup, entry.Data, now)
		if err != nil {
			return work, err
		}
		if !filled {
			continue
		}
		listeners, _ := c.mshr.Complete(entry.CPU, blockAddr)
		_ = listeners
		budget--
		work++
	}

	var remainingWrites []*writeMiss
	for _, wm := range c.inflightWrites {
		if !wm.ready || budget <= 0 {
			remainingWrites = append(remainingWrites, wm)
			continue
		}
		filled, err := c.installFill(wm.lookup, wm.data, now)
		if err != nil {
			return work, err
		}
		if !filled {
			remainingWrites = append(remainingWrites, wm)
			continue
		}
		budget--
		work++
	}
	c.inflightWrites = remainingWrites

	return work, nil
}

// installFill performs one fill: victim selection, writeback if needed,
// block install, and prefetcher/replacement notification. Returns
// (false, nil) if the fill must stall this cycle (writeback queue full).
func (c *Cache) installFill(tl TagLookup, data []byte, now uint64) (bool, error) {
	set := c.cfg.Layout.SetIndex(tl.Address)
	tag := c.cfg.Layout.Tag(tl.Address)
	etype := c.effectiveType(tl.Type)

	setTags := make([]uint64, c.cfg.NumWays)
	setValid := make([]bool, c.cfg.NumWays)
	for w, b := range c.blocks[set] {
		setTags[w] = c.cfg.Layout.Tag(b.Address)
		setValid[w] = b.Valid
	}
	way := c.replace.FindVictim(tl.CPU, tl.InstrID, int(set), setTags, setValid, tl.IP, tl.Address, replace.ReqType(etype))
	if way < 0 || way >= c.cfg.NumWays {
		return false, fmt.Errorf("cache: replacement policy returned invalid way %d", way)
	}
	victim := &c.blocks[set][way]
	var evictedAddr uint64
	if victim.Valid && victim.Dirty {
		ok, err := c.lower.AddWQ(Request{Address: victim.Address, Type: WRITE, Data: victim.Data})
		if err != nil || !ok {
			return false, nil
		}
		c.stats.Writebacks++
		evictedAddr = victim.Address
	}

	prefetchFlag := tl.Type == PREFETCH
	pfMeta := c.prefetch.CacheFill(tl.Address, int(set), way, prefetchFlag, evictedAddr, tl.PFMetadata)

	*victim = Block{
		Valid:      true,
		Dirty:      tl.Type == WRITE,
		Prefetch:   prefetchFlag,
		Address:    c.cfg.Layout.Splice(tag, set),
		VAddress:   tl.VAddress,
		PFMetadata: pfMeta,
		Data:       data,
	}

	c.replace.Update(tl.CPU, int(set), way, tl.Address, tl.IP, evictedAddr, replace.ReqType(etype), false)

	if tl.SkipFill {
		return true, nil
	}
	resp := Response{
		Address: tl.Address, VAddress: tl.VAddress, Data: data,
		PFMetadata: pfMeta, CPU: tl.CPU, Type: tl.Type,
		InstrDependOnMe: tl.InstrDependOnMe, ToReturn: tl.ToReturn,
	}
	if c.cfg.FillLatency == 0 {
		for _, l := range tl.ToReturn {
			c.deliver(l, resp)
		}
	} else {
		c.pendingResp = append(c.pendingResp, pendingResponse{eventCycle: now + c.cfg.FillLatency, resp: resp})
	}
	return true, nil
}

// checkDeadlock implements §4.1's deadlock detector: if the oldest MSHR
// entry has sat longer than DEADLOCK_THRESHOLD, the cache reports the MSHR
// and queue contents and returns a fatal Deadlock error.
func (c *Cache) checkDeadlock(now uint64) error {
	oldest, ok := c.mshr.Oldest()
	if !ok {
		return nil
	}
	if oldest.CycleEnqueued+c.cfg.DeadlockThreshold >= now {
		return nil
	}
	c.log.WithFields(logrus.Fields{
		"cycle":     now,
		"mshr_size": c.mshr.Len(),
		"rq_len":    c.rq.Len(),
		"wq_len":    c.wq.Len(),
		"pq_len":    c.pq.Len(),
		"addr":      fmt.Sprintf("0x%x", oldest.Address),
	}).Error("deadlock: oldest MSHR entry exceeded threshold")
	return simerr.New(simerr.KindDeadlock, fmt.Sprintf("%s: deadlock at cycle %d", c.cfg.Name, now))
}
