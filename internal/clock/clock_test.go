package clock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeOp struct {
	period   uint64
	ticks    []uint64
	work     uint64
	err      error
	failOnce bool
}

func (f *fakeOp) Operate(now uint64) (uint64, error) {
	f.ticks = append(f.ticks, now)
	if f.failOnce && len(f.ticks) == 1 {
		return 0, f.err
	}
	return f.work, nil
}
func (f *fakeOp) PeriodPS() uint64 { return f.period }

func TestStepOnlyTicksMembersAtTheMinimumBoundary(t *testing.T) {
	s := NewScheduler()
	fast := &fakeOp{period: 1, work: 1}
	slow := &fakeOp{period: 3, work: 1}
	s.Register(fast)
	s.Register(slow)

	for i := 0; i < 6; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}

	require.Len(t, fast.ticks, 6, "fast member ticks every step")
	require.Len(t, slow.ticks, 2, "slow member ticks once per 3 steps of the fast member")
}

func TestStepReturnsFirstErrorButRunsAllTickedMembers(t *testing.T) {
	s := NewScheduler()
	wantErr := errors.New("boom")
	a := &fakeOp{period: 1, failOnce: true, err: wantErr}
	b := &fakeOp{period: 1, work: 1}
	s.Register(a)
	s.Register(b)

	_, err := s.Step()
	require.ErrorIs(t, err, wantErr)
	require.Len(t, b.ticks, 1, "sibling member still ran this step despite a's error")
}

func TestRunStopsAfterSustainedQuiescence(t *testing.T) {
	s := NewScheduler()
	op := &fakeOp{period: 1, work: 0}
	s.Register(op)

	err := s.Run(3)
	require.NoError(t, err)
	require.Equal(t, 3, len(op.ticks))
}

func TestCycleCountsSteps(t *testing.T) {
	s := NewScheduler()
	s.Register(&fakeOp{period: 1})
	s.Step()
	s.Step()
	require.Equal(t, uint64(2), s.Cycle())
}
