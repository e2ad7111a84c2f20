// Package mediatest provides a manually driven media.Scheduler.
package mediatest

import (
	"sync"
	"time"

	"github.com/MyhlovetsVladyslav/bookbot/internal/media"
)

// Scheduler records callbacks and runs them only when fired by the test.
type Scheduler struct {
	mu     sync.Mutex
	timers []*timer
}

type timer struct {
	s       *Scheduler
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) AfterFunc(d time.Duration, f func()) media.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &timer{s: s, d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Durations returns the delays of armed timers in scheduling order.
func (s *Scheduler) Durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.d)
		}
	}
	return out
}

// FireAll runs armed timers in scheduling order, including ones armed by the
// callbacks themselves, and returns how many ran.
func (s *Scheduler) FireAll() int {
	ran := 0
	for {
		s.mu.Lock()
		var next *timer
		for _, t := range s.timers {
			if !t.stopped && !t.fired {
				next = t
				break
			}
		}
		if next == nil {
			s.mu.Unlock()
			return ran
		}
		next.fired = true
		s.mu.Unlock()
		next.f()
		ran++
	}
}

// FireStale runs a callback even if its timer was stopped, which is what
// happens when Stop loses the race with an expiring time.AfterFunc.
func (s *Scheduler) FireStale() int {
	s.mu.Lock()
	var fs []func()
	for _, t := range s.timers {
		if t.stopped && !t.fired {
			t.fired = true
			fs = append(fs, t.f)
		}
	}
	s.mu.Unlock()
	for _, f := range fs {
		f()
	}
	return len(fs)
}
