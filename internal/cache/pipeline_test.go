package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maemo32/memsim/internal/addr"
	"github.com/maemo32/memsim/internal/prefetch"
	"github.com/maemo32/memsim/internal/replace"
)

// fakeLower is a LowerLevel test double: it records every request handed
// down and lets the test complete them on demand via FinishPacket.
type fakeLower struct {
	rq, wq, pq []Request
	reject     bool
}

func (f *fakeLower) AddRQ(r Request) (bool, error) {
	if f.reject {
		return false, nil
	}
	f.rq = append(f.rq, r)
	return true, nil
}
func (f *fakeLower) AddWQ(r Request) (bool, error) {
	if f.reject {
		return false, nil
	}
	f.wq = append(f.wq, r)
	return true, nil
}
func (f *fakeLower) AddPQ(r Request) (bool, error) {
	if f.reject {
		return false, nil
	}
	f.pq = append(f.pq, r)
	return true, nil
}

func testConfig() Config {
	return Config{
		Name:              "L1",
		NumSets:           4,
		NumWays:           2,
		Layout:            addr.Layout{OffsetBits: 6, NumSets: 4},
		MSHRSize:          8,
		PQSize:            8,
		RQSize:            8,
		WQSize:            8,
		InflightWrites:    8,
		HitLatency:        0,
		FillLatency:       0,
		MaxTag:            4,
		MaxFill:           4,
		DeadlockThreshold: 1000,
		PeriodPS:          1,
	}
}

func newTestCache(lower LowerLevel) *Cache {
	rep := replace.NewShim(replace.NewLRU())
	pf := prefetch.NewShim(prefetch.DefaultActivateMask(), prefetch.NewNoOp())
	return New(testConfig(), lower, lower, rep, pf, nil)
}

type recorder struct {
	resps []Response
}

func (r *recorder) Deliver(to Listener, resp Response) { r.resps = append(r.resps, resp) }

// S1: a load that misses, fills from below, then hits on the next access.
func TestCacheMissThenHit(t *testing.T) {
	lower := &fakeLower{}
	c := newTestCache(lower)
	rec := &recorder{}
	c.RegisterListener(1, rec)

	ok, err := c.AddRQ(Request{Address: 0x1000, Type: LOAD, IsTranslated: true, ToReturn: []Listener{1}})
	require.NoError(t, err)
	require.True(t, ok)

	_, err = c.Operate(0)
	require.NoError(t, err)
	require.Len(t, lower.rq, 1, "miss should have issued a downstream read")

	c.FinishPacket(Response{Address: 0x1000, Data: make([]byte, 64), Type: LOAD})
	_, err = c.Operate(1)
	require.NoError(t, err)
	require.Len(t, rec.resps, 1, "fill should have delivered the original response")

	ok, err = c.AddRQ(Request{Address: 0x1000, Type: LOAD, IsTranslated: true, ToReturn: []Listener{1}})
	require.NoError(t, err)
	require.True(t, ok)
	_, err = c.Operate(2)
	require.NoError(t, err)
	require.Len(t, rec.resps, 2, "second access to the installed block should hit immediately")
	require.Len(t, lower.rq, 1, "hit must not issue a second downstream request")

	stats := c.Stats()
	require.Equal(t, uint64(1), stats.Hits[LOAD])
	require.Equal(t, uint64(1), stats.Misses[LOAD])
}

// S2: two misses to the same block address coalesce into a single
// downstream request, with both listeners notified on fill.
func TestCacheMSHRCoalescing(t *testing.T) {
	lower := &fakeLower{}
	c := newTestCache(lower)
	recA, recB := &recorder{}, &recorder{}
	c.RegisterListener(1, recA)
	c.RegisterListener(2, recB)

	_, _ = c.AddRQ(Request{Address: 0x2000, Type: LOAD, IsTranslated: true, ToReturn: []Listener{1}})
	_, _ = c.AddRQ(Request{Address: 0x2010, Type: LOAD, IsTranslated: true, ToReturn: []Listener{2}})
	_, err := c.Operate(0)
	require.NoError(t, err)

	require.Len(t, lower.rq, 1, "second miss to the same block must merge, not issue its own request")

	c.FinishPacket(Response{Address: 0x2000, Data: make([]byte, 64), Type: LOAD})
	_, err = c.Operate(1)
	require.NoError(t, err)

	require.Len(t, recA.resps, 1)
	require.Len(t, recB.resps, 1, "merged listener must still be notified on fill")
}

// S3: a prefetched block counts as a useful prefetch the first time a
// demand access hits it.
func TestCachePrefetchUseful(t *testing.T) {
	lower := &fakeLower{}
	c := newTestCache(lower)

	_, _ = c.AddPQ(Request{Address: 0x3000, Type: PREFETCH, PrefetchFromThis: true, IsTranslated: true})
	_, err := c.Operate(0)
	require.NoError(t, err)
	require.Len(t, lower.pq, 1)

	c.FinishPacket(Response{Address: 0x3000, Data: make([]byte, 64), Type: PREFETCH})
	_, err = c.Operate(1)
	require.NoError(t, err)

	_, _ = c.AddRQ(Request{Address: 0x3000, Type: LOAD, IsTranslated: true})
	_, err = c.Operate(2)
	require.NoError(t, err)

	require.Equal(t, uint64(1), c.Stats().PFUseful)
}

// S4: filling a dirty victim's way issues a writeback before the new
// block is installed.
func TestCacheWritebackOnFill(t *testing.T) {
	lower := &fakeLower{}
	c := newTestCache(lower)

	// Fill way 0 of set 0 with a dirty write.
	_, _ = c.AddWQ(Request{Address: 0x0, Type: WRITE, IsTranslated: true, Data: make([]byte, 64)})
	_, err := c.Operate(0)
	require.NoError(t, err)
	require.Len(t, lower.wq, 1)
	c.FinishPacket(Response{Address: 0x0, Type: WRITE})
	_, err = c.Operate(1)
	require.NoError(t, err)

	// Fill way 1 of the same set (distinct tag, same set index 0).
	_, _ = c.AddWQ(Request{Address: 0x100, Type: WRITE, IsTranslated: true, Data: make([]byte, 64)})
	_, err = c.Operate(2)
	require.NoError(t, err)
	c.FinishPacket(Response{Address: 0x100, Type: WRITE})
	_, err = c.Operate(3)
	require.NoError(t, err)

	// A third distinct tag mapping to set 0 must evict one of the two
	// dirty blocks and issue a writeback.
	_, _ = c.AddRQ(Request{Address: 0x200, Type: LOAD, IsTranslated: true})
	_, err = c.Operate(4)
	require.NoError(t, err)
	c.FinishPacket(Response{Address: 0x200, Data: make([]byte, 64), Type: LOAD})
	_, err = c.Operate(5)
	require.NoError(t, err)

	require.Equal(t, uint64(1), c.Stats().Writebacks)
}

// TestAkitaOracleAgreesWithLRU differentially checks the pipeline's plain
// LRU hit/miss classification against an independent akita-backed
// directory over the same access sequence.
func TestAkitaOracleAgreesWithLRU(t *testing.T) {
	lower := &fakeLower{}
	c := newTestCache(lower)
	oracle := newAkitaOracle(4, 2, 64)

	seq := []uint64{0x0, 0x40, 0x0, 0x80, 0x0, 0x40}
	for i, a := range seq {
		oracleHit := oracle.access(a)

		before := c.Stats().Hits[LOAD]
		_, _ = c.AddRQ(Request{Address: a, Type: LOAD, IsTranslated: true})
		now := uint64(i * 2)
		_, err := c.Operate(now)
		require.NoError(t, err)

		if !oracleHit {
			c.FinishPacket(Response{Address: a, Data: make([]byte, 64), Type: LOAD})
			_, err = c.Operate(now + 1)
			require.NoError(t, err)
		}
		after := c.Stats().Hits[LOAD]
		require.Equal(t, oracleHit, after > before, "access %d (0x%x) disagreed with akita oracle", i, a)
	}
}
