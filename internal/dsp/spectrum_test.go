package dsp

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(n int, bin, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Cos(2*math.Pi*bin*float64(i)/float64(n))
	}
	return out
}

func TestNewFFTSpectrometer_Validation(t *testing.T) {
	for _, n := range []int{-4, 0, 1, 3, 319} {
		_, err := NewFFTSpectrometer(n)
		var setup *SpectralSetupError
		assert.True(t, errors.As(err, &setup), "n=%d: got %v", n, err)
	}

	s, err := NewFFTSpectrometer(320)
	require.NoError(t, err)
	assert.Equal(t, 320, s.Len())
	assert.Equal(t, 160, s.Bins())
}

func TestMagnitudeSpectrum_PureTone(t *testing.T) {
	const n = 320
	s, err := NewFFTSpectrometer(n)
	require.NoError(t, err)

	spec, err := s.MagnitudeSpectrum(cosine(n, 4, 1.5))
	require.NoError(t, err)
	require.Len(t, spec, n/2)

	assert.InDelta(t, 1.5*n/2, spec[4], 1e-9)
	for k, v := range spec {
		if k == 4 {
			continue
		}
		assert.InDelta(t, 0, v, 1e-9, "bin %d", k)
	}
}

func TestMagnitudeSpectrum_DC(t *testing.T) {
	s, err := NewFFTSpectrometer(8)
	require.NoError(t, err)

	spec, err := s.MagnitudeSpectrum([]float64{1, 1, 1, 1, 1, 1, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 8, spec[0], 1e-12)
	assert.InDelta(t, 0, spec[1], 1e-12)
}

func TestMagnitudeSpectrum_NonNegativeAndIdempotent(t *testing.T) {
	s, err := NewFFTSpectrometer(64)
	require.NoError(t, err)

	sig := make([]float64, 64)
	for i := range sig {
		sig[i] = math.Sin(float64(i)*0.7) - 0.3*math.Cos(float64(i)*2.1) + 0.05*float64(i%5)
	}
	first, err := s.MagnitudeSpectrum(sig)
	require.NoError(t, err)
	second, err := s.MagnitudeSpectrum(sig)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for k, v := range first {
		assert.GreaterOrEqual(t, v, 0.0, "bin %d", k)
	}
}

func TestMagnitudeSpectrum_LengthMismatch(t *testing.T) {
	s, err := NewFFTSpectrometer(16)
	require.NoError(t, err)

	_, err = s.MagnitudeSpectrum(make([]float64, 15))
	var setup *SpectralSetupError
	require.True(t, errors.As(err, &setup))
	assert.Equal(t, 15, setup.Length)
}

func TestFrequencyResolution(t *testing.T) {
	assert.Equal(t, 0.3125, FrequencyResolution(100, 320))
}
