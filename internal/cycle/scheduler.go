package cycle

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// slot is a single-shot deferred call with replace-on-reschedule semantics.
//
// A slot shares its owner's lock: schedule and stop must be called with the
// owner held, and the callback runs with the owner held. The function the
// callback returns, if any, runs after the owner is released; slow I/O goes
// there. Rescheduling bumps the generation, so a superseded callback that
// already fired finds a stale generation and returns without running.
type slot struct {
	owner sync.Locker
	clock clockwork.Clock
	timer clockwork.Timer
	gen   uint64
}

func newSlot(owner sync.Locker, clock clockwork.Clock) *slot {
	return &slot{owner: owner, clock: clock}
}

// schedule arranges for fn to run once after d, replacing any pending call.
func (s *slot) schedule(d time.Duration, fn func() (after func())) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen

	s.timer = s.clock.AfterFunc(d, func() {
		s.owner.Lock()
		if gen != s.gen {
			s.owner.Unlock()
			return
		}
		s.timer = nil
		after := fn()
		s.owner.Unlock()

		if after != nil {
			after()
		}
	})
}

// pending reports whether a call is scheduled and has not fired yet.
func (s *slot) pending() bool {
	return s.timer != nil
}

// stop releases any pending call.
func (s *slot) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}
