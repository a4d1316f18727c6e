package remap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testEngineConfig() Config {
	return Config{
		DataManagementOffsetBits: 8, // 256B frame
		DataLineOffsetBits:       6, // 64B line -> 4 lines/frame
		FastMemoryCapacityBytes:  512,
		SlowMemoryCapacityBytes:  4096,
		HotnessThreshold:         2,
		CounterMax:               8,
		IntervalForDecrement:     1 << 40,
		DecayMode:                DecayByCycles,
		RemappingRequestQueueLength: 8,
		QueueBusyDegreeThreshold:    100,
	}
}

func addrFor(cfg Config, tag, idx uint64, line int) uint64 {
	blockAddr := tag*cfg.fastCapacityBlocks() + idx
	return blockAddr<<uint(cfg.DataManagementOffsetBits) | uint64(line)<<uint(cfg.DataLineOffsetBits)
}

// fakeMover accepts every remapping request immediately, recording it.
type fakeMover struct {
	sent []RemappingRequest
	busy int
}

func (m *fakeMover) SendRemap(req RemappingRequest) (bool, error) {
	m.sent = append(m.sent, req)
	return true, nil
}
func (m *fakeMover) QueueBusyDegree() int { return m.busy }

// S5: a block accessed enough times to cross HotnessThreshold is enqueued
// for migration in, and once the mover completes it the engine's
// translation routes that address into fast memory.
func TestEngineHotMigration(t *testing.T) {
	cfg := testEngineConfig()
	mover := &fakeMover{}
	e := New(cfg, mover, nil)

	const tag, idx = uint64(5), uint64(0)
	addr := addrFor(cfg, tag, idx, 0)

	e.OnAccess(addr)
	e.OnAccess(addr)
	require.True(t, e.IsHot(e.dataBlockAddress(addr)))

	e.Drain()
	require.Len(t, mover.sent, 1, "a hot block must enqueue exactly one migrate-in request")
	req := mover.sent[0]
	require.Equal(t, tag, req.SMLocation, "the migrating tag's data currently occupies the SM side")
	require.Equal(t, uint64(0), req.FMLocation, "native data currently occupies the FM side")

	require.NoError(t, e.FinishRemapping(req))

	hw := e.Translate(addr)
	require.Less(t, hw, cfg.FastMemoryCapacityBytes, "after migration the block must translate into fast memory")
}

// S6: a cold occupant group is evicted to make way for a different tag's
// access to the same placement index, once the occupant is no longer hot.
func TestEngineColdEviction(t *testing.T) {
	cfg := testEngineConfig()
	mover := &fakeMover{}
	e := New(cfg, mover, nil)

	const idx = uint64(0)
	const staleTag = uint64(6)
	entry := &e.placement[idx]
	entry.appendGroup(staleTag, 0, 1)
	require.NoError(t, entry.checkInvariant(cfg.linesPerBlock()))

	coldAddr := addrFor(cfg, uint64(5), idx, 2)
	e.OnAccess(coldAddr) // one access: below HotnessThreshold(2), block stays cold

	e.Drain()
	require.Len(t, mover.sent, 1, "a non-excluded, non-hot occupant group must be evicted")
	req := mover.sent[0]
	require.Equal(t, staleTag, req.FMLocation)
	require.Equal(t, uint64(0), req.SMLocation)

	require.NoError(t, e.FinishRemapping(req))
	require.Equal(t, 0, e.placement[idx].Cursor, "eviction must remove the occupant's group")
}

// TranslateBack round-trips a migrated address back to its original
// physical address when no migration is in flight for the frame.
func TestEngineTranslateRoundTrip(t *testing.T) {
	cfg := testEngineConfig()
	mover := &fakeMover{}
	e := New(cfg, mover, nil)

	const tag, idx = uint64(3), uint64(1)
	addr := addrFor(cfg, tag, idx, 1)

	e.OnAccess(addr)
	e.OnAccess(addr)
	e.Drain()
	require.Len(t, mover.sent, 1)
	req := mover.sent[0]
	require.NoError(t, e.FinishRemapping(req))

	hw := e.Translate(addr)
	got := e.TranslateBack(hw, idx, tag)
	require.Equal(t, addr, got)
}

func TestEngineUntouchedAddressTranslatesIdentically(t *testing.T) {
	cfg := testEngineConfig()
	e := New(cfg, &fakeMover{}, nil)
	addr := addrFor(cfg, 9, 1, 3)
	require.Equal(t, addr, e.Translate(addr))
}
