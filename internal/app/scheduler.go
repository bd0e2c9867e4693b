package app

import (
	"sync"
	"time"
)

// scheduler arms at most one pending phase timer per session. The session
// tags every arm with its current generation; a fired callback whose
// generation went stale is ignored by the session, so a timer that loses the
// race against a manual command degrades to a no-op instead of re-driving a
// transition that already happened. The server clock is authoritative;
// clients only count down cosmetically from the duration they were sent.
type scheduler struct {
	mu    sync.Mutex
	timer *time.Timer
}

// arm replaces any pending timer with one firing fn after d.
func (s *scheduler) arm(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, fn)
}

// cancel stops the pending timer, if any. Cancellation is best effort: a
// callback already in flight is defused by its stale generation instead.
func (s *scheduler) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
