// Package stepcount turns windows of accelerometer samples into a
// cumulative step estimate.
//
// Each window is reduced to the axis with the most mean absolute energy,
// transformed to a one-sided magnitude spectrum and gated on the energy in
// the cadence band. Windows that pass have the cadence band fitted with a
// quartic whose maximum, located on a dense grid through its derivative,
// gives a sub-bin cadence frequency. That frequency times the slide
// duration is the window's step increment.
package stepcount

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/stepcount/internal/dsp"
)

// Config holds the tuning for one session. It is immutable once a session
// starts.
type Config struct {
	SamplingRate  float64 // Hz
	WindowSize    int     // samples per window
	SlideDuration float64 // seconds between window starts

	// Energy gate. Bins [0, NoiseBins) form the low-frequency reference,
	// bins [BandStart, BandStart+BandBins) the cadence band.
	NoiseBins   int
	BandStart   int
	BandBins    int
	EnergyFloor float64

	// Dense abscissa grid the fitted polynomial is searched over, in the
	// 1..BandBins abscissa domain.
	FrequencyMin  float64
	FrequencyMax  float64
	FrequencyStep float64

	// Grid points whose derivative lies in [DerivativeMin, DerivativeMax]
	// are peak candidates.
	DerivativeMin float64
	DerivativeMax float64

	// BinOffset is added to the peak abscissa before scaling by the
	// frequency resolution. Abscissa t addresses spectrum bin
	// BandStart+t-1, so the offset of 1.0 is a calibration value kept for
	// compatibility with recorded step totals rather than a derived
	// bin-to-Hz mapping.
	BinOffset float64

	// ProcessTimeout bounds one window's processing. Zero disables it.
	ProcessTimeout time.Duration
}

// PolynomialDegree is the degree of the cadence band fit.
const PolynomialDegree = 4

// DefaultConfig returns the tuning the thresholds were calibrated with.
func DefaultConfig() Config {
	return Config{
		SamplingRate:   100,
		WindowSize:     320,
		SlideDuration:  1.25,
		NoiseBins:      2,
		BandStart:      2,
		BandBins:       5,
		EnergyFloor:    10,
		FrequencyMin:   1,
		FrequencyMax:   5,
		FrequencyStep:  0.0001,
		DerivativeMin:  0,
		DerivativeMax:  0.5,
		BinOffset:      1,
		ProcessTimeout: 2 * time.Second,
	}
}

// SlideStep is the number of samples between consecutive window starts.
func (c Config) SlideStep() int {
	return int(math.Round(c.SamplingRate * c.SlideDuration))
}

// FFTResolution is the spectrum bin width in Hz.
func (c Config) FFTResolution() float64 {
	return dsp.FrequencyResolution(c.SamplingRate, c.WindowSize)
}

// GridPoints is the number of points in the dense search grid.
func (c Config) GridPoints() int {
	return int(math.Round((c.FrequencyMax-c.FrequencyMin)/c.FrequencyStep)) + 1
}

// FrequencyGrid returns the evenly spaced search grid from FrequencyMin to
// FrequencyMax inclusive.
func (c Config) FrequencyGrid() []float64 {
	return floats.Span(make([]float64, c.GridPoints()), c.FrequencyMin, c.FrequencyMax)
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch {
	case !(c.SamplingRate > 0):
		return fmt.Errorf("sampling rate must be positive, got %v", c.SamplingRate)
	case c.WindowSize < 2 || c.WindowSize%2 != 0:
		return fmt.Errorf("window size must be even and at least 2, got %d", c.WindowSize)
	case !(c.SlideDuration > 0):
		return fmt.Errorf("slide duration must be positive, got %v", c.SlideDuration)
	case c.SlideStep() < 1:
		return fmt.Errorf("slide of %vs at %vHz is shorter than one sample", c.SlideDuration, c.SamplingRate)
	case c.NoiseBins < 1:
		return fmt.Errorf("noise bins must be at least 1, got %d", c.NoiseBins)
	case c.BandStart < 0:
		return fmt.Errorf("cadence band start must be non-negative, got %d", c.BandStart)
	case c.BandBins < PolynomialDegree+1:
		return fmt.Errorf("cadence band needs at least %d bins for a degree-%d fit, got %d", PolynomialDegree+1, PolynomialDegree, c.BandBins)
	case c.BandStart+c.BandBins > c.WindowSize/2, c.NoiseBins > c.WindowSize/2:
		return fmt.Errorf("spectrum of %d bins cannot hold noise bins [0,%d) and cadence band [%d,%d)",
			c.WindowSize/2, c.NoiseBins, c.BandStart, c.BandStart+c.BandBins)
	case c.EnergyFloor < 0:
		return fmt.Errorf("energy floor must be non-negative, got %v", c.EnergyFloor)
	case !(c.FrequencyStep > 0):
		return fmt.Errorf("frequency step must be positive, got %v", c.FrequencyStep)
	case !(c.FrequencyMax > c.FrequencyMin):
		return fmt.Errorf("frequency max %v must exceed min %v", c.FrequencyMax, c.FrequencyMin)
	case c.GridPoints() > 10_000_000:
		return fmt.Errorf("frequency grid of %d points is too dense", c.GridPoints())
	case c.DerivativeMax < c.DerivativeMin:
		return fmt.Errorf("derivative max %v below min %v", c.DerivativeMax, c.DerivativeMin)
	case c.ProcessTimeout < 0:
		return fmt.Errorf("process timeout must be non-negative, got %v", c.ProcessTimeout)
	}
	return nil
}
