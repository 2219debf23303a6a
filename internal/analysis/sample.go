package analysis

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/qlab/internal/concept"
	"github.com/san-kum/qlab/internal/visualizer"
)

var ErrNoOutcome = errors.New("topic has no measurement outcome")

// Sample summarizes n measurement episodes of one topic.
type Sample struct {
	Topic concept.ID
	// Counts of outcome 0 and 1.
	Counts   [2]int
	Outcomes []float64
	// Running frequency of outcome 1 after each episode.
	Running []float64
	Mean    float64
	StdDev  float64
	// Chi-square statistic against a fair coin and its p-value.
	ChiSquare float64
	PValue    float64
	// Episodes whose partner particle showed the complement (entanglement).
	AntiCorrelated int
}

func (s *Sample) N() int { return len(s.Outcomes) }

// SampleOutcomes runs n episodes of select-then-measure for topic and
// records the committed digit of each.
func SampleOutcomes(topic concept.ID, n int, rng *rand.Rand) (*Sample, error) {
	if topic != concept.Superposition && topic != concept.Entanglement {
		return nil, fmt.Errorf("%w: %q", ErrNoOutcome, topic)
	}
	if n <= 0 {
		return nil, fmt.Errorf("episodes must be positive, got %d", n)
	}

	var digit string
	v := visualizer.New(
		visualizer.WithRand(rng),
		visualizer.WithStart(time.Unix(0, 0)),
		visualizer.OnMeasure(func(_ concept.ID, d string) { digit = d }),
	)
	defer v.Close()

	s := &Sample{
		Topic:    topic,
		Outcomes: make([]float64, 0, n),
		Running:  make([]float64, 0, n),
	}
	ones := 0
	for i := 0; i < n; i++ {
		digit = ""
		v.Update(topic, false)
		v.Update(topic, true)
		if digit == "" {
			return nil, fmt.Errorf("episode %d: no outcome committed", i)
		}

		x := 0.0
		if digit == "1" {
			x = 1
			ones++
		}
		s.Counts[int(x)]++
		s.Outcomes = append(s.Outcomes, x)
		s.Running = append(s.Running, float64(ones)/float64(i+1))

		if topic == concept.Entanglement {
			a := v.Surface().Find("particle-a-digit")
			b := v.Surface().Find("particle-b-digit")
			if a != nil && b != nil && a.Text != b.Text {
				s.AntiCorrelated++
			}
		}
	}

	s.Mean = stat.Mean(s.Outcomes, nil)
	if n > 1 {
		s.StdDev = stat.StdDev(s.Outcomes, nil)
	}
	half := float64(n) / 2
	s.ChiSquare = stat.ChiSquare(
		[]float64{float64(s.Counts[0]), float64(s.Counts[1])},
		[]float64{half, half},
	)
	s.PValue = distuv.ChiSquared{K: 1}.Survival(s.ChiSquare)
	return s, nil
}

// Plot charts the running frequency of outcome 1.
func Plot(s *Sample, width, height int) string {
	if s == nil || len(s.Running) == 0 {
		return ""
	}
	return asciigraph.Plot(s.Running,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(1),
		asciigraph.Precision(2),
		asciigraph.Caption(fmt.Sprintf("P(1) over %d measurements of %s", s.N(), s.Topic)),
	)
}
