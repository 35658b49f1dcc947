package stepcount

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/stepcount/internal/dsp"
)

func TestPeakEstimator_FitRoundTrip(t *testing.T) {
	e := NewPeakEstimator(DefaultConfig(), nil)
	want := []float64{0.5, -3, 2, 7, 11} // highest degree first
	band := dsp.EvaluatePolynomial(want, []float64{1, 2, 3, 4, 5})

	got, err := e.Fit(band)
	require.NoError(t, err)
	for i := range want {
		assert.InEpsilon(t, want[i], got[i], 1e-6, "coefficient %d", i)
	}
}

func TestPeakEstimator_SymmetricPeak(t *testing.T) {
	e := NewPeakEstimator(DefaultConfig(), nil)
	peak, err := e.Estimate([]float64{0, 0, 160, 0, 0})
	require.NoError(t, err)

	assert.InDelta(t, 3.0, peak.Abscissa, 1e-3)
	assert.InDelta(t, 160, peak.Value, 1e-3)
	assert.Len(t, peak.Coefficients, 5)
	assert.Positive(t, peak.Candidates)
}

func TestPeakEstimator_NoCandidate(t *testing.T) {
	e := NewPeakEstimator(DefaultConfig(), nil)
	// A falling line has slope -1 everywhere.
	peak, err := e.Estimate([]float64{5, 4, 3, 2, 1})
	assert.ErrorIs(t, err, ErrNoPeakCandidate)
	assert.Zero(t, peak.Candidates)
	assert.Len(t, peak.Coefficients, 5)
}

func TestPeakEstimator_CandidateRange(t *testing.T) {
	// p(t) = 0.25·t: slope 0.25 everywhere, so every grid point is a
	// candidate and the largest abscissa wins.
	e := NewPeakEstimator(DefaultConfig(), nil)
	peak, err := e.Estimate([]float64{0.25, 0.5, 0.75, 1, 1.25})
	require.NoError(t, err)
	assert.Equal(t, 40001, peak.Candidates)
	assert.InDelta(t, 5.0, peak.Abscissa, 1e-9)
}

func TestPeakEstimator_WrongBandLength(t *testing.T) {
	e := NewPeakEstimator(DefaultConfig(), nil)
	_, err := e.Estimate([]float64{1, 2, 3})
	var ill *dsp.IllFormedSystemError
	require.True(t, errors.As(err, &ill))
	assert.Equal(t, dsp.FailureIllegalParameter, ill.Reason)
}

type failingSolver struct{ err error }

func (f failingSolver) Solve(mat.Matrix, []float64) ([]float64, error) { return nil, f.err }

func TestPeakEstimator_SolverFailure(t *testing.T) {
	want := &dsp.IllFormedSystemError{Reason: dsp.FailureSingularFactor, Index: 3}
	e := NewPeakEstimator(DefaultConfig(), failingSolver{err: want})
	_, err := e.Estimate([]float64{1, 2, 3, 2, 1})
	assert.Same(t, want, err)
}
