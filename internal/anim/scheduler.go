package anim

import "time"

// TickFunc receives the time since its timer started.
type TickFunc func(elapsed time.Duration)

// Timer is the handle of a repeating frame callback.
type Timer struct {
	s       *Scheduler
	fn      TickFunc
	start   time.Time
	stopped bool
}

// Stop cancels the timer. It is safe to call more than once and from
// inside the timer's own callback.
func (t *Timer) Stop() {
	if t.stopped {
		return
	}
	t.stopped = true
	t.s.remove(t)
}

func (t *Timer) Stopped() bool { return t.stopped }

// Scheduler is a frame-driven timer queue. It never spawns goroutines:
// the owner calls Advance once per display frame.
type Scheduler struct {
	now    time.Time
	timers []*Timer
}

func NewScheduler(start time.Time) *Scheduler {
	return &Scheduler{now: start}
}

// Now is the time of the last frame.
func (s *Scheduler) Now() time.Time { return s.now }

// Start registers fn to run on every frame until the returned timer is
// stopped. A timer started during a frame first runs on the next one.
func (s *Scheduler) Start(fn TickFunc) *Timer {
	t := &Timer{s: s, fn: fn, start: s.now}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock to now and runs every live timer once.
// Time never moves backwards.
func (s *Scheduler) Advance(now time.Time) {
	if now.Before(s.now) {
		now = s.now
	}
	s.now = now

	frame := make([]*Timer, len(s.timers))
	copy(frame, s.timers)
	for _, t := range frame {
		if t.stopped {
			continue
		}
		t.fn(now.Sub(t.start))
	}
}

// Step advances the clock by d.
func (s *Scheduler) Step(d time.Duration) {
	s.Advance(s.now.Add(d))
}

// StopAll cancels every live timer.
func (s *Scheduler) StopAll() {
	for _, t := range s.timers {
		t.stopped = true
	}
	s.timers = nil
}

// Active is the number of live timers.
func (s *Scheduler) Active() int { return len(s.timers) }

func (s *Scheduler) remove(t *Timer) {
	for i, c := range s.timers {
		if c == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return
		}
	}
}
