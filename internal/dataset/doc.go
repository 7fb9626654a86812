// Package dataset produces the sample pairs a Koopman operator is fitted
// from.
//
// Pairs come from two places. A [Sampler] draws random initial states and
// controls inside configured ranges and integrates each one sample interval
// forward with a [sim.Oracle]. Recorded [Trial] data, loaded from CSV,
// yields one pair per pair of consecutive samples inside a trial; no pair
// ever spans two trials.
package dataset
