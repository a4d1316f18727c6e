// Package clock implements the cooperative cycle scheduler: each component
// has a clock period in picoseconds, and the scheduler advances a global
// cycle counter, calling Operate exactly once on every component whose
// period boundary has arrived. This generalizes ChampSim's `operable`
// contract and the two-cycle staged scheduling idiom in the out-of-order
// scheduler reference model.
package clock

// Operable is any component the scheduler drives. Operate performs one
// cycle's worth of work and returns a non-zero value if any stage did
// something, which the scheduler uses for forward-progress detection.
type Operable interface {
	Operate(now uint64) (workDone uint64, err error)
	PeriodPS() uint64
}

// member tracks a component's next tick boundary in picoseconds.
type member struct {
	op       Operable
	nextTick uint64
}

// Scheduler drives a set of Operable components on a shared picosecond
// timeline. Each step runs the components whose next tick boundary has
// arrived and hands every one of them the scheduler's global step count as
// its cycle number.
type Scheduler struct {
	members []*member
	nowPS   uint64
	cycle   uint64
}

// NewScheduler constructs an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Register adds a component to the scheduler. Its first tick occurs at its
// own period.
func (s *Scheduler) Register(op Operable) {
	s.members = append(s.members, &member{op: op, nextTick: op.PeriodPS()})
}

// Cycle returns the scheduler's own monotonically increasing step count,
// incremented once per call to Step regardless of which components ticked.
func (s *Scheduler) Cycle() uint64 { return s.cycle }

// Step advances real time to the next component tick boundary, calls
// Operate on every component whose boundary has arrived, and returns the
// total work done across all of them. It returns the first error
// encountered, after still running the remaining ticked components for
// this step (so a Deadlock from one cache doesn't hide an equally fatal
// condition reported in the same step by another, but the first one wins
// for the caller's purposes).
func (s *Scheduler) Step() (uint64, error) {
	if len(s.members) == 0 {
		return 0, nil
	}
	next := s.members[0].nextTick
	for _, m := range s.members[1:] {
		if m.nextTick < next {
			next = m.nextTick
		}
	}
	s.nowPS = next
	s.cycle++

	var total uint64
	var firstErr error
	for _, m := range s.members {
		if m.nextTick != s.nowPS {
			continue
		}
		done, err := m.op.Operate(s.cycle)
		total += done
		if err != nil && firstErr == nil {
			firstErr = err
		}
		m.nextTick += m.op.PeriodPS()
	}
	return total, firstErr
}

// Run steps the scheduler until either workDone is zero for
// idleCyclesToStop consecutive steps (quiescence) or an error occurs.
func (s *Scheduler) Run(idleCyclesToStop int) error {
	idle := 0
	for {
		done, err := s.Step()
		if err != nil {
			return err
		}
		if done == 0 {
			idle++
			if idle >= idleCyclesToStop {
				return nil
			}
		} else {
			idle = 0
		}
	}
}
