package remap

// RemappingRequest describes one sub-block swap the remapping engine asks
// the DRAM adaptor to carry out. FMLocation/SMLocation record which tag's
// data occupies each side *before* the request executes (0 = native
// fast-memory data); the completion handler uses exactly these two fields
// to decide whether a group was migrated in or evicted back out, per
// §4.5's completion rule.
type RemappingRequest struct {
	AddressInFM uint64
	AddressInSM uint64
	FMLocation  uint64
	SMLocation  uint64
	Size        uint64

	placementIndex uint64
	group          int // target/occupied group index, -1 if appending
	startLine      int
	granularityLn  int
}

func requestKey(addrFM, addrSM uint64) (uint64, uint64) { return addrFM, addrSM }
