package stepcount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/stepcount/internal/dsp"
	"github.com/banshee-data/stepcount/internal/motion"
)

// Outcome summarises what happened to one window.
type Outcome string

const (
	OutcomeCounted      Outcome = "counted"
	OutcomeGateRejected Outcome = "gate_rejected"
	OutcomeNoPeak       Outcome = "no_peak"
	OutcomeFailed       Outcome = "failed"
)

// WindowResult is the record of one processed window. Cumulative and
// Index are filled in by the Scheduler; Pipeline.Process leaves them zero.
type WindowResult struct {
	SessionID    string      `json:"session_id,omitempty"`
	Index        int         `json:"window_index"`
	StartIndex   int         `json:"start_index"`
	Axis         motion.Axis `json:"axis"`
	W0           float64     `json:"w0"`
	Wc           float64     `json:"wc"`
	GatePassed   bool        `json:"gate_passed"`
	Outcome      Outcome     `json:"outcome"`
	PeakAbscissa float64     `json:"peak_abscissa"`
	FrequencyHz  float64     `json:"frequency_hz"`
	Increment    float64     `json:"increment"`
	Cumulative   float64     `json:"cumulative"`
	Error        string      `json:"error,omitempty"`
	ProcessedAt  time.Time   `json:"processed_at"`

	// Spectrum and Coefficients are kept for plotting and charts but not
	// serialised.
	Spectrum     []float64 `json:"-"`
	Coefficients []float64 `json:"-"`
}

// Pipeline runs the per-window stages: axis selection, spectrum, gate,
// peak estimation and step conversion. It never touches the cumulative
// count, so processing the same window twice yields the same result.
// A Pipeline is not safe for concurrent use because the spectrometer
// reuses its buffers.
type Pipeline struct {
	cfg          Config
	spectrometer dsp.Spectrometer
	gate         EnergyGate
	peaks        *PeakEstimator
	conv         *Accumulator
}

// NewPipeline validates cfg and prepares the gonum-backed stages. A
// configuration the transform cannot support is returned as a
// *dsp.SpectralSetupError and should abort the session.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	spec, err := dsp.NewFFTSpectrometer(cfg.WindowSize)
	if err != nil {
		return nil, err
	}
	return NewPipelineWith(cfg, spec, dsp.QRSolver{})
}

// NewPipelineWith builds a pipeline around caller-supplied numerics.
func NewPipelineWith(cfg Config, spec dsp.Spectrometer, solver dsp.LinearSolver) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if spec == nil {
		return nil, errors.New("stepcount: nil spectrometer")
	}
	return &Pipeline{
		cfg:          cfg,
		spectrometer: spec,
		gate:         NewEnergyGate(cfg),
		peaks:        NewPeakEstimator(cfg, solver),
		conv:         NewAccumulator(cfg),
	}, nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Grid returns the peak search grid.
func (p *Pipeline) Grid() []float64 { return p.peaks.Grid() }

// Process analyses one window. Gate rejection and a missing peak candidate
// are ordinary outcomes with a nil error. Spectral and solver failures are
// returned with a partially filled result whose Outcome is OutcomeFailed.
// ctx is checked between stages.
func (p *Pipeline) Process(ctx context.Context, w motion.Window) (WindowResult, error) {
	res := WindowResult{StartIndex: w.Start, Outcome: OutcomeFailed}
	fail := func(err error) (WindowResult, error) {
		res.Error = err.Error()
		return res, err
	}
	if w.Len() != p.cfg.WindowSize {
		return fail(&motion.BufferUnderrunError{Start: w.Start, Size: p.cfg.WindowSize, Available: w.Len()})
	}

	res.Axis = SelectAxis(w)
	spectrum, err := p.spectrometer.MagnitudeSpectrum(w.Column(res.Axis))
	if err != nil {
		return fail(err)
	}
	res.Spectrum = spectrum
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	decision, err := p.gate.Evaluate(spectrum)
	if err != nil {
		return fail(&dsp.SpectralSetupError{Length: len(spectrum), Reason: err.Error()})
	}
	res.W0, res.Wc, res.GatePassed = decision.W0, decision.Wc, decision.Pass
	if !decision.Pass {
		res.Outcome = OutcomeGateRejected
		return res, nil
	}

	peak, err := p.peaks.Estimate(p.gate.Band(spectrum))
	res.Coefficients = peak.Coefficients
	switch {
	case errors.Is(err, ErrNoPeakCandidate):
		res.Outcome = OutcomeNoPeak
		return res, nil
	case err != nil:
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	res.PeakAbscissa = peak.Abscissa
	res.FrequencyHz = p.conv.Frequency(peak.Abscissa)
	res.Increment = p.conv.Increment(peak.Abscissa)
	res.Outcome = OutcomeCounted
	return res, nil
}
