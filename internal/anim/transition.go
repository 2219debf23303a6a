package anim

import "time"

// Ease maps linear progress in [0,1] to eased progress.
type Ease func(t float64) float64

func Linear(t float64) float64 { return t }

// CubicInOut matches the default easing of browser-side transitions.
func CubicInOut(t float64) float64 {
	t *= 2
	if t <= 1 {
		return t * t * t / 2
	}
	t -= 2
	return (t*t*t + 2) / 2
}

// Transition runs step with eased progress on every frame for d, then
// calls end once. The timer is already stopped when end runs, so end may
// start the next transition.
func (s *Scheduler) Transition(d time.Duration, ease Ease, step func(p float64), end func()) *Timer {
	if ease == nil {
		ease = Linear
	}
	var t *Timer
	t = s.Start(func(elapsed time.Duration) {
		p := 1.0
		if d > 0 {
			p = float64(elapsed) / float64(d)
		}
		if p >= 1 {
			t.Stop()
			if step != nil {
				step(ease(1))
			}
			if end != nil {
				end()
			}
			return
		}
		if step != nil {
			step(ease(p))
		}
	})
	return t
}

// Lerp interpolates between a and b.
func Lerp(a, b, p float64) float64 {
	return a + (b-a)*p
}
