package cache

// Stats holds the per-type hit/miss counters this level tracks, plus the
// "useful prefetch" counter from §4.1's tag-check stage.
type Stats struct {
	Hits     [5]uint64
	Misses   [5]uint64
	PFUseful uint64
	PFFilled uint64
	Writebacks uint64
	Congestion uint64 // incremented when a miss's downstream AddRQ/AddPQ fails or is rejected, or a write miss's AddWQ returns an error; writeback rejections are not counted
}

func (s *Stats) recordHit(t ReqType)  { s.Hits[t]++ }
func (s *Stats) recordMiss(t ReqType) { s.Misses[t]++ }
