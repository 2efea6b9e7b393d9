// Package timer implements the cooperative timer scheduler that drives every
// animation, reload and deferred callback of the lock screen.
//
// All methods except Post, ForceUpdate and Wake must be called from the
// goroutine that calls Tick.
package timer

import (
	"sort"
	"sync"
	"time"

	"github.com/rook-computer/lockscreen/internal/logging"
)

// Callback receives the timer that fired so it can cancel itself.
type Callback func(t *Timer)

type Timer struct {
	s         *Scheduler
	deadline  time.Time
	interval  time.Duration
	repeating bool
	force     bool
	seq       uint64
	index     int
	cancelled bool
	cb        Callback
}

// Cancel removes the timer from the schedule. Calling it more than once, or
// from inside the timer's own callback, is safe.
func (t *Timer) Cancel() {
	if t == nil || t.cancelled {
		return
	}
	t.cancelled = true
	heapRemove(&t.s.timers, t)
}

// Cancelled reports whether the timer will never fire again, either because
// it was cancelled or because it was a one-shot that already fired.
func (t *Timer) Cancelled() bool { return t == nil || t.cancelled }

func (t *Timer) Deadline() time.Time { return t.deadline }

type Option func(*Timer)

// WithForceUpdate marks the timer so that Scheduler.ForceUpdate fires it on
// the next tick regardless of its deadline.
func WithForceUpdate(force bool) Option {
	return func(t *Timer) { t.force = force }
}

type Scheduler struct {
	clock  Clock
	logger logging.Logger

	timers timerHeap
	seq    uint64

	mu     sync.Mutex
	posted []func()
	force  bool
	wake   chan struct{}
}

func New(clock Clock, logger logging.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{clock: clock, logger: logging.OrNoop(logger), wake: make(chan struct{}, 1)}
}

func (s *Scheduler) Clock() Clock { return s.clock }

// AddTimer schedules cb once after delay.
func (s *Scheduler) AddTimer(delay time.Duration, cb Callback, opts ...Option) *Timer {
	return s.schedule(delay, cb, false, opts)
}

// AddRepeating schedules cb every interval, anchored to the first deadline.
func (s *Scheduler) AddRepeating(interval time.Duration, cb Callback, opts ...Option) *Timer {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return s.schedule(interval, cb, true, opts)
}

func (s *Scheduler) schedule(d time.Duration, cb Callback, repeating bool, opts []Option) *Timer {
	if d < 0 {
		d = 0
	}
	s.seq++
	t := &Timer{
		s:         s,
		deadline:  s.clock.Now().Add(d),
		interval:  d,
		repeating: repeating,
		seq:       s.seq,
		index:     -1,
		cb:        cb,
	}
	for _, opt := range opts {
		opt(t)
	}
	heapPush(&s.timers, t)
	return t
}

// Post queues fn to run on the scheduler goroutine at the start of the next
// Tick. It is safe to call from any goroutine.
func (s *Scheduler) Post(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.posted = append(s.posted, fn)
	s.mu.Unlock()
	s.signal()
}

// ForceUpdate makes every timer created WithForceUpdate fire on the next tick.
func (s *Scheduler) ForceUpdate() {
	s.mu.Lock()
	s.force = true
	s.mu.Unlock()
	s.signal()
}

// Wake is signalled whenever Post or ForceUpdate queued work.
func (s *Scheduler) Wake() <-chan struct{} { return s.wake }

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// NextDeadline reports the earliest pending deadline.
func (s *Scheduler) NextDeadline() (time.Time, bool) {
	if len(s.timers) == 0 {
		return time.Time{}, false
	}
	return s.timers[0].deadline, true
}

func (s *Scheduler) Len() int { return len(s.timers) }

// Tick runs posted closures, then fires every timer due at now in deadline
// order. A repeating timer fires at most once per tick; its next deadline is
// advanced from the previous one by whole intervals.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	posted := s.posted
	s.posted = nil
	force := s.force
	s.force = false
	s.mu.Unlock()

	for _, fn := range posted {
		s.run("posted", func() { fn() })
	}

	var due []*Timer
	for len(s.timers) > 0 && !s.timers[0].deadline.After(now) {
		due = append(due, heapPop(&s.timers))
	}
	forced := map[*Timer]bool{}
	if force {
		var extra []*Timer
		for _, t := range s.timers {
			if t.force {
				extra = append(extra, t)
			}
		}
		for _, t := range extra {
			heapRemove(&s.timers, t)
			forced[t] = true
		}
		due = append(due, extra...)
		sort.SliceStable(due, func(i, j int) bool { return before(due[i], due[j]) })
	}

	for _, t := range due {
		if t.cancelled {
			continue
		}
		if t.repeating {
			if !forced[t] {
				missed := now.Sub(t.deadline) / t.interval
				t.deadline = t.deadline.Add((missed + 1) * t.interval)
			}
			heapPush(&s.timers, t)
		} else {
			t.cancelled = true
		}
		if t.cb != nil {
			s.run("timer", func() { t.cb(t) })
		}
	}
}

func (s *Scheduler) run(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("timer", "%s callback panicked: %v", kind, r)
		}
	}()
	fn()
}
