package stepcount

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stepcount/internal/dsp"
	"github.com/banshee-data/stepcount/internal/motion"
	"github.com/banshee-data/stepcount/internal/testutil"
)

func toneWindow(axis motion.Axis, freq, amp float64) motion.Window {
	return motion.NewWindow(0, testutil.Samples(320, 100, testutil.Tone{Axis: axis, Frequency: freq, Amplitude: amp}))
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(DefaultConfig())
	require.NoError(t, err)
	return p
}

func TestPipeline_CadenceToneEndToEnd(t *testing.T) {
	p := newTestPipeline(t)

	// 1.25 Hz is exactly bin 4 of a 320-sample window at 100 Hz, the
	// centre of the cadence band.
	res, err := p.Process(context.Background(), toneWindow(motion.AxisX, 1.25, 1))
	require.NoError(t, err)

	assert.Equal(t, motion.AxisX, res.Axis)
	assert.True(t, res.GatePassed)
	assert.Equal(t, OutcomeCounted, res.Outcome)
	assert.InDelta(t, 0, res.W0, 1e-9)
	assert.InDelta(t, 32, res.Wc, 1e-9)
	assert.InDelta(t, 3.0, res.PeakAbscissa, 1e-3)
	assert.InDelta(t, 1.25, res.FrequencyHz, 1e-3)
	assert.InDelta(t, 1.5625, res.Increment, 1e-3)
	assert.Len(t, res.Spectrum, 160)
	assert.Len(t, res.Coefficients, 5)
	assert.Empty(t, res.Error)
}

func TestPipeline_TonesWithinOneBin(t *testing.T) {
	p := newTestPipeline(t)
	res := DefaultConfig().FFTResolution()

	for _, f := range []float64{0.9375, 1.0, 1.25, 1.5, 1.5625, 1.75} {
		for _, axis := range motion.Axes {
			t.Run(fmt.Sprintf("%.4fHz/%s", f, axis), func(t *testing.T) {
				out, err := p.Process(context.Background(), toneWindow(axis, f, 1))
				require.NoError(t, err)
				require.Equal(t, OutcomeCounted, out.Outcome)
				assert.Equal(t, axis, out.Axis)
				assert.LessOrEqual(t, math.Abs(out.FrequencyHz-f), res)
				assert.InDelta(t, 1.25*out.FrequencyHz, out.Increment, 1e-12)
			})
		}
	}
}

// The abscissa search spans 1..5 and fw = resolution*(abscissa+1), so no
// estimate can exceed 6*0.3125 = 1.875 Hz. A tone above the cadence band
// only leaks into bins 2..6 and is reported at the low edge.
func TestPipeline_ToneAboveCadenceBand(t *testing.T) {
	p := newTestPipeline(t)
	cfg := p.Config()
	ceiling := cfg.FFTResolution() * (cfg.FrequencyMax + cfg.BinOffset)
	require.InDelta(t, 1.875, ceiling, 1e-12)

	for _, tc := range []struct {
		freq, wantHz float64
	}{
		{3.0, 0.6672},
		{2.0, 0.7208},
	} {
		t.Run(fmt.Sprintf("%.1fHz", tc.freq), func(t *testing.T) {
			res, err := p.Process(context.Background(), toneWindow(motion.AxisX, tc.freq, 1))
			require.NoError(t, err)
			assert.Equal(t, motion.AxisX, res.Axis)
			require.Equal(t, OutcomeCounted, res.Outcome)
			assert.InDelta(t, tc.wantHz, res.FrequencyHz, 1e-3)
			assert.LessOrEqual(t, res.FrequencyHz, ceiling)
			assert.InDelta(t, cfg.SlideDuration*res.FrequencyHz, res.Increment, 1e-12)
		})
	}

	acc := NewAccumulator(cfg)
	assert.InDelta(t, ceiling, acc.Frequency(cfg.FrequencyMax), 1e-12)
	assert.InDelta(t, 1.25*ceiling, acc.Increment(cfg.FrequencyMax), 1e-12)
}

func TestPipeline_Idempotent(t *testing.T) {
	p := newTestPipeline(t)
	w := motion.NewWindow(125, testutil.Samples(320, 100,
		testutil.Tone{Axis: motion.AxisY, Frequency: 1.4, Amplitude: 0.8, Offset: 0.1},
		testutil.Tone{Axis: motion.AxisZ, Frequency: 0.3, Amplitude: 0.2, Offset: 1},
	))

	first, err := p.Process(context.Background(), w)
	require.NoError(t, err)
	second, err := p.Process(context.Background(), w)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 125, first.StartIndex)
}

func TestPipeline_GateRejectsQuietWindow(t *testing.T) {
	p := newTestPipeline(t)
	res, err := p.Process(context.Background(), toneWindow(motion.AxisX, 1.25, 0.05))
	require.NoError(t, err)
	assert.Equal(t, OutcomeGateRejected, res.Outcome)
	assert.False(t, res.GatePassed)
	assert.Zero(t, res.Increment)
	assert.Nil(t, res.Coefficients)
}

func TestPipeline_GateRejectsGravityOnly(t *testing.T) {
	p := newTestPipeline(t)
	res, err := p.Process(context.Background(), motion.NewWindow(0, testutil.Constant(320, 100, 0, 0, 1)))
	require.NoError(t, err)
	assert.Equal(t, motion.AxisZ, res.Axis)
	assert.Equal(t, OutcomeGateRejected, res.Outcome)
}

func TestPipeline_SolverFailureIsLocal(t *testing.T) {
	cfg := DefaultConfig()
	spec, err := dsp.NewFFTSpectrometer(cfg.WindowSize)
	require.NoError(t, err)
	solverErr := &dsp.IllFormedSystemError{Reason: dsp.FailureInternal}
	p, err := NewPipelineWith(cfg, spec, failingSolver{err: solverErr})
	require.NoError(t, err)

	res, err := p.Process(context.Background(), toneWindow(motion.AxisX, 1.25, 1))
	var ill *dsp.IllFormedSystemError
	require.True(t, errors.As(err, &ill))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, res.GatePassed)
	assert.Zero(t, res.Increment)
	assert.NotEmpty(t, res.Error)
}

type brokenSpectrometer struct{}

func (brokenSpectrometer) MagnitudeSpectrum([]float64) ([]float64, error) {
	return nil, &dsp.SpectralSetupError{Length: 320, Reason: "unsupported"}
}

func TestPipeline_SpectralFailure(t *testing.T) {
	p, err := NewPipelineWith(DefaultConfig(), brokenSpectrometer{}, nil)
	require.NoError(t, err)

	res, err := p.Process(context.Background(), toneWindow(motion.AxisX, 1.25, 1))
	var setup *dsp.SpectralSetupError
	require.True(t, errors.As(err, &setup))
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestPipeline_ShortWindow(t *testing.T) {
	p := newTestPipeline(t)
	_, err := p.Process(context.Background(), motion.NewWindow(0, testutil.Constant(100, 100, 1, 1, 1)))
	var under *motion.BufferUnderrunError
	assert.True(t, errors.As(err, &under))
}

func TestPipeline_Cancelled(t *testing.T) {
	p := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := p.Process(ctx, toneWindow(motion.AxisX, 1.25, 1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestNewPipeline_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 7
	_, err := NewPipeline(cfg)
	assert.Error(t, err)

	_, err = NewPipelineWith(DefaultConfig(), nil, nil)
	assert.Error(t, err)
}
