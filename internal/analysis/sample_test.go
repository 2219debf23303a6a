package analysis

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/san-kum/qlab/internal/concept"
)

func TestSampleOutcomesFair(t *testing.T) {
	s, err := SampleOutcomes(concept.Superposition, 2000, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("sampling failed: %v", err)
	}

	if s.N() != 2000 || s.Counts[0]+s.Counts[1] != 2000 {
		t.Errorf("expected 2000 episodes, got %d (%v)", s.N(), s.Counts)
	}
	if math.Abs(s.Mean-0.5) > 0.05 {
		t.Errorf("expected mean near 0.5, got %f", s.Mean)
	}
	if math.Abs(s.StdDev-0.5) > 0.02 {
		t.Errorf("expected stddev near 0.5, got %f", s.StdDev)
	}
	if last := s.Running[len(s.Running)-1]; math.Abs(last-s.Mean) > 1e-9 {
		t.Errorf("running frequency should end at the mean, got %f vs %f", last, s.Mean)
	}
	if s.PValue <= 0 || s.PValue > 1 {
		t.Errorf("p-value out of range: %f", s.PValue)
	}
}

func TestSampleEntanglementAlwaysAnticorrelated(t *testing.T) {
	s, err := SampleOutcomes(concept.Entanglement, 300, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("sampling failed: %v", err)
	}
	if s.AntiCorrelated != 300 {
		t.Errorf("expected every pair to disagree, got %d/300", s.AntiCorrelated)
	}
}

func TestSampleOutcomesErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, topic := range []concept.ID{concept.QKD, concept.Idle} {
		if _, err := SampleOutcomes(topic, 10, rng); !errors.Is(err, ErrNoOutcome) {
			t.Errorf("%q: expected ErrNoOutcome, got %v", topic, err)
		}
	}
	if _, err := SampleOutcomes(concept.Superposition, 0, rng); err == nil {
		t.Error("expected error for zero episodes")
	}
}

func TestSampleSingleEpisode(t *testing.T) {
	s, err := SampleOutcomes(concept.Superposition, 1, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("sampling failed: %v", err)
	}
	if s.StdDev != 0 {
		t.Errorf("expected zero spread for one episode, got %f", s.StdDev)
	}
}

func TestPlot(t *testing.T) {
	s, _ := SampleOutcomes(concept.Superposition, 100, rand.New(rand.NewSource(5)))
	out := Plot(s, 40, 6)
	if !strings.Contains(out, "P(1) over 100 measurements of superposition") {
		t.Errorf("expected caption in chart:\n%s", out)
	}
	if Plot(nil, 40, 6) != "" || Plot(&Sample{}, 40, 6) != "" {
		t.Error("expected empty chart without data")
	}
}
