package poller

import (
	"fmt"
	"sync/atomic"
)

// Stats counts poll outcomes across every chat.
type Stats struct {
	polls    atomic.Uint64
	failures atomic.Uint64
	stale    atomic.Uint64
}

func (s *Stats) Polls() uint64 {
	return s.polls.Load()
}

func (s *Stats) Failures() uint64 {
	return s.failures.Load()
}

// Stale is the number of results dropped because a newer one had landed.
func (s *Stats) Stale() uint64 {
	return s.stale.Load()
}

func (s *Stats) String() string {
	return fmt.Sprintf("polls %d · failed %d · stale %d", s.Polls(), s.Failures(), s.Stale())
}
