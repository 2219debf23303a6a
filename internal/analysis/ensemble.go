package analysis

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/qlab/internal/concept"
)

// Ensemble runs independent samples of one topic in parallel. Run i uses
// seed SeedStart+i, so results are reproducible.
type Ensemble struct {
	Topic     concept.ID
	Runs      int
	Episodes  int
	SeedStart int64
}

// Run samples every member. Each member owns its visualizer, so members
// share nothing.
func (e Ensemble) Run(ctx context.Context) ([]*Sample, error) {
	if e.Runs <= 0 {
		return nil, fmt.Errorf("runs must be positive, got %d", e.Runs)
	}

	results := make([]*Sample, e.Runs)
	errs := make([]error, e.Runs)

	var wg sync.WaitGroup
	for i := 0; i < e.Runs; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[idx] = err
				return
			}
			rng := rand.New(rand.NewSource(e.SeedStart + int64(idx)))
			results[idx], errs[idx] = SampleOutcomes(e.Topic, e.Episodes, rng)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Spread is the mean and standard deviation of the members' means.
func Spread(samples []*Sample) (mean, std float64) {
	means := make([]float64, len(samples))
	for i, s := range samples {
		means[i] = s.Mean
	}
	if len(means) == 0 {
		return 0, 0
	}
	if len(means) == 1 {
		return means[0], 0
	}
	return stat.MeanStdDev(means, nil)
}
