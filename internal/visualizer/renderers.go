package visualizer

import (
	"math"
	"time"

	"github.com/san-kum/qlab/internal/anim"
	"github.com/san-kum/qlab/internal/scene"
)

const (
	orbitRadius = 60.0
	// one radian of orbit per 200ms
	orbitPeriod = 200 * time.Millisecond

	transitDuration = 2 * time.Second
	alarmFade       = time.Second

	aliceX = 100.0
	bobX   = 500.0
)

func (v *Visualizer) drawSuperposition() {
	g := v.surface.Append("g").Attr("transform", scene.Translate(scene.Width/2, scene.Height/2))

	g.Append("circle").
		Attr("id", "orbit").
		Attr("r", orbitRadius).
		Attr("fill", "none").
		Attr("stroke", colorQubit).
		Attr("stroke-dasharray", "4,4").
		Attr("opacity", 0.3)

	qubit := g.Append("circle").
		Attr("id", "qubit").
		Attr("cx", 0).
		Attr("cy", 0).
		Attr("r", 15).
		Attr("fill", colorQubit).
		Attr("filter", "url(#glow)")

	label := g.Append("text").
		Attr("id", "label").
		Attr("text-anchor", "middle").
		Attr("dy", 35).
		Attr("fill", colorMuted).
		Attr("font-size", "12px").
		SetText("叠加态 |ψ⟩ = α|0⟩ + β|1⟩")

	value := g.Append("text").
		Attr("id", "value").
		Attr("text-anchor", "middle").
		Attr("dy", ".3em").
		Attr("fill", "white").
		Attr("font-weight", "bold").
		SetText("?")

	if !v.measured {
		v.driver = v.sched.Start(func(elapsed time.Duration) {
			angle := float64(elapsed) / float64(orbitPeriod)
			qubit.Attr("cx", math.Cos(angle)*orbitRadius).
				Attr("cy", math.Sin(angle)*orbitRadius)
			value.SetText(v.flip())
		})
		return
	}

	result := v.commit()
	qubit.Attr("cx", 0).Attr("cy", 0).Attr("fill", colorSettled)
	value.SetText(result).Attr("font-size", "24px")
	label.SetText("坍缩为结果: " + result)
}

type particle struct {
	body  *scene.Element
	digit *scene.Element
}

func (v *Visualizer) drawParticle(g *scene.Element, id string, x, y float64, name string) particle {
	pg := g.Append("g").Attr("id", id).Attr("transform", scene.Translate(x, y))
	body := pg.Append("circle").
		Attr("id", id+"-body").
		Attr("r", 20).
		Attr("fill", colorParticle).
		Attr("filter", "url(#glow)")
	digit := pg.Append("text").
		Attr("id", id+"-digit").
		Attr("text-anchor", "middle").
		Attr("dy", ".3em").
		Attr("fill", "white").
		SetText("?")
	pg.Append("text").
		Attr("y", 35).
		Attr("text-anchor", "middle").
		Attr("fill", colorMuted).
		Attr("font-size", "10px").
		SetText(name)
	return particle{body: body, digit: digit}
}

func (v *Visualizer) drawEntanglement() {
	g := v.surface.Append("g")
	x1, x2, y := scene.Width*0.3, scene.Width*0.7, float64(scene.Height/2)

	link := g.Append("line").
		Attr("id", "link").
		Attr("x1", x1).Attr("y1", y).
		Attr("x2", x2).Attr("y2", y).
		Attr("stroke", colorLink).
		Attr("stroke-width", 2)
	if v.measured {
		link.Attr("stroke-dasharray", "none").Attr("opacity", 1)
	} else {
		link.Attr("stroke-dasharray", "5,5").Attr("opacity", 0.4)
	}

	a := v.drawParticle(g, "particle-a", x1, y, "粒子 A")
	b := v.drawParticle(g, "particle-b", x2, y, "粒子 B")

	if !v.measured {
		v.driver = v.sched.Start(func(time.Duration) {
			d := v.flip()
			a.digit.SetText(d)
			b.digit.SetText(complement(d))
		})
		return
	}

	result := v.commit()
	a.digit.SetText(result)
	b.digit.SetText(complement(result))
	a.body.Attr("fill", colorSettled)
	b.body.Attr("fill", colorSettled)
}

func (v *Visualizer) drawQKD() {
	g := v.surface.Append("g")
	y := float64(scene.Height / 2)

	for _, end := range []struct {
		id, name string
		x        float64
	}{{"alice", "Alice", aliceX}, {"bob", "Bob", bobX}} {
		g.Append("circle").
			Attr("id", end.id).
			Attr("cx", end.x).Attr("cy", y).
			Attr("r", 30).
			Attr("fill", colorNode).
			Attr("stroke", colorParticle)
		g.Append("text").
			Attr("x", end.x).Attr("y", y+50).
			Attr("text-anchor", "middle").
			Attr("fill", colorParticle).
			SetText(end.name)
	}

	photon := g.Append("circle").
		Attr("id", "photon").
		Attr("r", 8).
		Attr("fill", colorPhoton).
		Attr("filter", "url(#glow)")

	eavesdropped := v.measured
	var transit func()
	transit = func() {
		photon.Attr("cx", aliceX).Attr("cy", y).Attr("opacity", 1)
		v.driver = v.sched.Transition(transitDuration, anim.CubicInOut, func(p float64) {
			photon.Attr("cx", anim.Lerp(aliceX, bobX, p))
		}, func() {
			if eavesdropped {
				photon.Attr("fill", colorAlarm).Attr("r", 12)
				v.raiseAlarm(g, y)
			}
			transit()
		})
	}
	transit()
}

// raiseAlarm shows a transient eavesdropping label that fades out and
// removes itself.
func (v *Visualizer) raiseAlarm(g *scene.Element, y float64) {
	v.intercepts++
	label := g.Append("text").
		Attr("class", "alarm").
		Attr("x", scene.Width/2).
		Attr("y", y-40).
		Attr("text-anchor", "middle").
		Attr("fill", colorAlarm).
		Attr("opacity", 1).
		SetText("检测到窃听！秘钥废弃")
	v.sched.Transition(alarmFade, anim.CubicInOut, func(p float64) {
		label.Attr("opacity", 1-p)
	}, label.Remove)
}
