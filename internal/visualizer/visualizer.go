package visualizer

import (
	"math/rand"
	"time"

	"github.com/san-kum/qlab/internal/anim"
	"github.com/san-kum/qlab/internal/concept"
	"github.com/san-kum/qlab/internal/scene"
)

const (
	colorQubit    = "#38bdf8"
	colorParticle = "#3b82f6"
	colorSettled  = "#10b981"
	colorMuted    = "#94a3b8"
	colorPhoton   = "#fbbf24"
	colorAlarm    = "#ef4444"
	colorLink     = "#a855f7"
	colorNode     = "#1e293b"
	colorIdle     = "#475569"
)

// MeasureFunc observes every freshly committed measurement outcome.
type MeasureFunc func(topic concept.ID, digit string)

type Option func(*Visualizer)

// WithRand replaces the random source used for displayed digits and
// measurement outcomes.
func WithRand(r *rand.Rand) Option {
	return func(v *Visualizer) { v.rng = r }
}

// WithStart sets the scheduler's initial clock.
func WithStart(t time.Time) Option {
	return func(v *Visualizer) { v.sched = anim.NewScheduler(t) }
}

func OnMeasure(fn MeasureFunc) Option {
	return func(v *Visualizer) { v.onMeasure = fn }
}

// Visualizer draws the lab for a (topic, measured) pair. It is not safe
// for concurrent use; its owner drives it from a single goroutine.
type Visualizer struct {
	surface   *scene.Surface
	sched     *anim.Scheduler
	rng       *rand.Rand
	onMeasure MeasureFunc

	topic      concept.ID
	measured   bool
	drawn      bool
	outcome    string
	driver     *anim.Timer
	intercepts int
}

// New returns a visualizer showing the idle placeholder.
func New(opts ...Option) *Visualizer {
	v := &Visualizer{surface: scene.NewSurface()}
	for _, opt := range opts {
		opt(v)
	}
	if v.sched == nil {
		v.sched = anim.NewScheduler(time.Now())
	}
	if v.rng == nil {
		v.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	v.render()
	return v
}

func (v *Visualizer) Surface() *scene.Surface   { return v.surface }
func (v *Visualizer) Scheduler() *anim.Scheduler { return v.sched }
func (v *Visualizer) Topic() concept.ID          { return v.topic }
func (v *Visualizer) Measured() bool             { return v.measured }

// Outcome is the committed measurement digit, if any.
func (v *Visualizer) Outcome() (string, bool) {
	return v.outcome, v.outcome != ""
}

// Intercepts counts eavesdropping alarms raised since the last input change.
func (v *Visualizer) Intercepts() int { return v.intercepts }

// Animating reports whether a frame driver is live.
func (v *Visualizer) Animating() bool { return v.sched.Active() > 0 }

// Update redraws the lab when either input changed. Any running animation
// is stopped and the previous drawing cleared before the new one starts.
// It reports whether a redraw happened.
func (v *Visualizer) Update(topic concept.ID, measured bool) bool {
	if v.drawn && topic == v.topic && measured == v.measured {
		return false
	}
	v.topic = topic
	v.measured = measured
	v.outcome = ""
	v.intercepts = 0
	v.render()
	return true
}

// Rerender rebuilds the current drawing from scratch. A committed outcome
// is kept.
func (v *Visualizer) Rerender() {
	v.render()
}

// Advance runs one animation frame at now.
func (v *Visualizer) Advance(now time.Time) { v.sched.Advance(now) }

// Step runs one animation frame d after the previous one.
func (v *Visualizer) Step(d time.Duration) { v.sched.Step(d) }

// Close stops every animation and clears the drawing.
func (v *Visualizer) Close() {
	v.teardown()
	v.drawn = false
}

func (v *Visualizer) teardown() {
	v.sched.StopAll()
	v.driver = nil
	v.surface.Clear()
}

func (v *Visualizer) render() {
	v.teardown()
	v.drawDefs()

	switch v.topic {
	case concept.Superposition:
		v.drawSuperposition()
	case concept.Entanglement:
		v.drawEntanglement()
	case concept.QKD:
		v.drawQKD()
	default:
		v.drawIdle()
	}
	v.drawn = true
}

// commit fixes the outcome for the current inputs, drawing it on first use.
func (v *Visualizer) commit() string {
	if v.outcome != "" {
		return v.outcome
	}
	v.outcome = v.flip()
	if v.onMeasure != nil {
		v.onMeasure(v.topic, v.outcome)
	}
	return v.outcome
}

func (v *Visualizer) flip() string {
	if v.rng.Intn(2) == 1 {
		return "1"
	}
	return "0"
}

func complement(d string) string {
	if d == "0" {
		return "1"
	}
	return "0"
}

func (v *Visualizer) drawDefs() {
	defs := v.surface.Append("defs")
	glow := defs.Append("filter").Attr("id", "glow")
	glow.Append("feGaussianBlur").Attr("stdDeviation", "3.5").Attr("result", "coloredBlur")
	merge := glow.Append("feMerge")
	merge.Append("feMergeNode").Attr("in", "coloredBlur")
	merge.Append("feMergeNode").Attr("in", "SourceGraphic")
}

func (v *Visualizer) drawIdle() {
	v.surface.Append("text").
		Attr("id", "placeholder").
		Attr("x", scene.Width/2).
		Attr("y", scene.Height/2).
		Attr("text-anchor", "middle").
		Attr("fill", colorIdle).
		SetText("请选择左侧实验课题")
}
