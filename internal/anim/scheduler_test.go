package anim

import (
	"math"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTimerReceivesElapsed(t *testing.T) {
	s := NewScheduler(epoch)
	var got []time.Duration
	s.Start(func(e time.Duration) { got = append(got, e) })

	s.Step(16 * time.Millisecond)
	s.Step(16 * time.Millisecond)

	if len(got) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(got))
	}
	if got[1] != 32*time.Millisecond {
		t.Errorf("expected 32ms elapsed, got %v", got[1])
	}
}

func TestStopIsSynchronous(t *testing.T) {
	s := NewScheduler(epoch)
	calls := 0
	tm := s.Start(func(time.Duration) { calls++ })

	s.Step(time.Millisecond)
	tm.Stop()
	tm.Stop()
	s.Step(time.Millisecond)

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if !tm.Stopped() || s.Active() != 0 {
		t.Errorf("expected stopped timer and empty queue, active=%d", s.Active())
	}
}

func TestStartDuringFrame(t *testing.T) {
	s := NewScheduler(epoch)
	inner := 0
	s.Start(func(time.Duration) {
		if s.Active() < 2 {
			s.Start(func(time.Duration) { inner++ })
		}
	})

	s.Step(time.Millisecond)
	if inner != 0 {
		t.Errorf("timer started during a frame ran in the same frame")
	}
	s.Step(time.Millisecond)
	if inner != 1 {
		t.Errorf("expected 1 inner call, got %d", inner)
	}
}

func TestStopAll(t *testing.T) {
	s := NewScheduler(epoch)
	a := s.Start(func(time.Duration) {})
	b := s.Start(func(time.Duration) {})
	s.StopAll()

	if s.Active() != 0 || !a.Stopped() || !b.Stopped() {
		t.Error("expected all timers stopped")
	}
}

func TestAdvanceNeverRewinds(t *testing.T) {
	s := NewScheduler(epoch)
	s.Advance(epoch.Add(time.Second))
	s.Advance(epoch)
	if !s.Now().Equal(epoch.Add(time.Second)) {
		t.Errorf("clock moved backwards to %v", s.Now())
	}
}

func TestTransition(t *testing.T) {
	s := NewScheduler(epoch)
	var last float64
	ended := 0
	s.Transition(2*time.Second, Linear, func(p float64) { last = p }, func() { ended++ })

	s.Step(time.Second)
	if math.Abs(last-0.5) > 1e-9 {
		t.Errorf("expected progress 0.5, got %f", last)
	}
	s.Step(1500 * time.Millisecond)
	if last != 1 || ended != 1 {
		t.Errorf("expected finished transition, progress %f ended %d", last, ended)
	}
	s.Step(time.Second)
	if ended != 1 || s.Active() != 0 {
		t.Errorf("transition should end once, ended %d active %d", ended, s.Active())
	}
}

func TestTransitionChaining(t *testing.T) {
	s := NewScheduler(epoch)
	laps := 0
	var lap func()
	lap = func() {
		s.Transition(time.Second, nil, nil, func() {
			laps++
			lap()
		})
	}
	lap()

	for i := 0; i < 5; i++ {
		s.Step(time.Second)
	}
	if laps < 2 {
		t.Errorf("expected repeated laps, got %d", laps)
	}
	if s.Active() != 1 {
		t.Errorf("expected exactly one live lap, got %d", s.Active())
	}
}

func TestCubicInOut(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0}, {0.5, 0.5}, {1, 1},
	}
	for _, tt := range tests {
		if got := CubicInOut(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("CubicInOut(%v): expected %v, got %v", tt.in, tt.want, got)
		}
	}
	if CubicInOut(0.25) >= 0.25 {
		t.Error("cubic in-out should start slow")
	}
}
