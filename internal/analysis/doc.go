// Package analysis samples lab measurements and summarizes them.
//
//   - [SampleOutcomes]: run n measure episodes through a lab visualizer
//   - [Plot]: running frequency of outcome 1 as an ASCII chart
//   - [Spectrum], [PeakRatio]: look for repeating patterns in the outcomes
//
// Outcomes are cosmetic coin flips; sampling is a way to check that the
// displayed digits are fair and that entangled pairs always disagree:
//
//	s, err := analysis.SampleOutcomes(concept.Superposition, 1000, rng)
//	fmt.Println(analysis.Plot(s, 60, 10))
package analysis
