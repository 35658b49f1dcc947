package stepcount

import (
	"math"
	"sync/atomic"
)

// Accumulator converts peak abscissas to step increments and keeps the
// cumulative count. A single goroutine adds; any goroutine may read Total.
type Accumulator struct {
	bits          atomic.Uint64
	resolution    float64
	slideDuration float64
	binOffset     float64
}

// NewAccumulator returns a zeroed accumulator using cfg's conversion
// constants.
func NewAccumulator(cfg Config) *Accumulator {
	return &Accumulator{
		resolution:    cfg.FFTResolution(),
		slideDuration: cfg.SlideDuration,
		binOffset:     cfg.BinOffset,
	}
}

// Frequency maps a peak abscissa to a cadence in Hz.
func (a *Accumulator) Frequency(abscissa float64) float64 {
	return a.resolution * (abscissa + a.binOffset)
}

// Increment is the number of steps one window at the given abscissa adds.
func (a *Accumulator) Increment(abscissa float64) float64 {
	return a.slideDuration * a.Frequency(abscissa)
}

// Add adds c steps and returns the new total. Negative increments are
// ignored so the total never decreases.
func (a *Accumulator) Add(c float64) float64 {
	if !(c > 0) {
		return a.Total()
	}
	for {
		old := a.bits.Load()
		next := math.Float64frombits(old) + c
		if a.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}

// Total is a consistent snapshot of the cumulative count.
func (a *Accumulator) Total() float64 {
	return math.Float64frombits(a.bits.Load())
}

// Reset zeroes the count.
func (a *Accumulator) Reset() {
	a.bits.Store(0)
}
