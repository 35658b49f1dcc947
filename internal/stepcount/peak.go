package stepcount

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/stepcount/internal/dsp"
)

// ErrNoPeakCandidate means no grid point had a derivative inside the
// candidate range. The window contributes no steps; it is not a failure.
var ErrNoPeakCandidate = errors.New("stepcount: no peak candidate on frequency grid")

// Peak is the refined maximum of the cadence band fit.
type Peak struct {
	// Abscissa is the grid value of the maximum, in the 1..BandBins
	// domain rather than Hz.
	Abscissa float64
	// Value is the fitted polynomial evaluated at Abscissa.
	Value float64
	// Coefficients of the fit, highest degree first.
	Coefficients []float64
	// Candidates is the number of grid points whose derivative fell in
	// the candidate range.
	Candidates int
}

// PeakEstimator fits a quartic to the cadence band and finds its sub-bin
// maximum. The design matrix and grid are built once; Estimate itself
// holds no state between calls.
type PeakEstimator struct {
	solver   dsp.LinearSolver
	design   *mat.Dense
	grid     []float64
	bandBins int
	derivMin float64
	derivMax float64
}

// NewPeakEstimator prepares an estimator for cfg. A nil solver selects
// dsp.QRSolver.
func NewPeakEstimator(cfg Config, solver dsp.LinearSolver) *PeakEstimator {
	if solver == nil {
		solver = dsp.QRSolver{}
	}
	abscissas := make([]float64, cfg.BandBins)
	for i := range abscissas {
		abscissas[i] = float64(i + 1)
	}
	return &PeakEstimator{
		solver:   solver,
		design:   dsp.Vandermonde(abscissas, PolynomialDegree),
		grid:     cfg.FrequencyGrid(),
		bandBins: cfg.BandBins,
		derivMin: cfg.DerivativeMin,
		derivMax: cfg.DerivativeMax,
	}
}

// Fit solves for the quartic through the band magnitudes at abscissas
// 1..len(band) and returns its coefficients highest degree first.
func (e *PeakEstimator) Fit(band []float64) ([]float64, error) {
	if len(band) != e.bandBins {
		return nil, &dsp.IllFormedSystemError{
			Reason: dsp.FailureIllegalParameter, Index: 2,
			Err: fmt.Errorf("band has %d bins, want %d", len(band), e.bandBins),
		}
	}
	ascending, err := e.solver.Solve(e.design, band)
	if err != nil {
		return nil, err
	}
	return dsp.Reverse(ascending), nil
}

// Estimate fits the band and returns the grid point maximising the fit
// among points whose derivative lies in the candidate range. When no point
// qualifies it returns the fit with ErrNoPeakCandidate.
func (e *PeakEstimator) Estimate(band []float64) (Peak, error) {
	coeffs, err := e.Fit(band)
	if err != nil {
		return Peak{}, err
	}
	values := dsp.EvaluatePolynomial(coeffs, e.grid)
	slopes := dsp.EvaluatePolynomial(dsp.Differentiate(coeffs), e.grid)

	peak := Peak{Coefficients: coeffs}
	best := -1
	for i, d := range slopes {
		if d < e.derivMin || d > e.derivMax {
			continue
		}
		peak.Candidates++
		if best < 0 || values[i] > values[best] {
			best = i
		}
	}
	if best < 0 {
		return peak, ErrNoPeakCandidate
	}
	peak.Abscissa = e.grid[best]
	peak.Value = values[best]
	return peak, nil
}

// Grid returns a copy of the search grid.
func (e *PeakEstimator) Grid() []float64 {
	return append([]float64(nil), e.grid...)
}
