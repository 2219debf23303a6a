package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Spectrum is the magnitude spectrum of the centred outcome sequence, DC bin
// dropped. A fair source gives a flat spectrum; a repeating pattern shows up
// as a peak.
func Spectrum(s *Sample) []float64 {
	n := len(s.Outcomes)
	if n < 4 {
		return nil
	}

	centred := make([]float64, n)
	for i, x := range s.Outcomes {
		centred[i] = x - s.Mean
	}

	coeff := fourier.NewFFT(n).Coefficients(nil, centred)
	ps := make([]float64, len(coeff)-1)
	for i, c := range coeff[1:] {
		ps[i] = cmplx.Abs(c)
	}
	return ps
}

// PeakRatio is the largest bin of ps over its mean bin.
func PeakRatio(ps []float64) float64 {
	if len(ps) == 0 {
		return 0
	}
	m := stat.Mean(ps, nil)
	if m == 0 {
		return 0
	}
	return floats.Max(ps) / m
}
