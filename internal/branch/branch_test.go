package branch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNeutralCounterPredictsTaken(t *testing.T) {
	p := New()
	taken, _, known := p.Predict(0x1000)
	require.True(t, taken, "neutral counter (4) meets the taken threshold (4)")
	require.False(t, known, "no BTB entry yet")
}

func TestRepeatedNotTakenDrivesCounterToNotTaken(t *testing.T) {
	p := New()
	const ip = 0x2000
	for i := 0; i < neutralCounter; i++ {
		p.Update(ip, false, 0)
	}
	taken, _, _ := p.Predict(ip)
	require.False(t, taken)
}

func TestTakenBranchRecordsBTBTarget(t *testing.T) {
	p := New()
	const ip, target = 0x3000, 0x4000
	p.Update(ip, true, target)
	taken, got, known := p.Predict(ip)
	require.True(t, taken)
	require.True(t, known)
	require.Equal(t, uint64(target), got)
}

func TestCounterSaturatesAtMax(t *testing.T) {
	p := New()
	const ip = 0x5000
	for i := 0; i < maxCounter+10; i++ {
		p.Update(ip, true, 1)
	}
	require.Equal(t, uint8(maxCounter), p.counter[index(ip)])
}
