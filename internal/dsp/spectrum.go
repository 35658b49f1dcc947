// Package dsp provides the numeric building blocks of the step pipeline: a
// real-input DFT magnitude spectrum, a least-squares solver and polynomial
// helpers.
package dsp

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrometer turns a real signal into its magnitude spectrum.
type Spectrometer interface {
	MagnitudeSpectrum(signal []float64) ([]float64, error)
}

// FFTSpectrometer computes |DFT| of fixed-length real sequences.
//
// The returned spectrum has Len()/2 entries, bin k being the unnormalised
// magnitude sqrt(re²+im²) of the k-th DFT coefficient (so a pure cosine of
// amplitude A on an integer bin k>0 reads A·N/2). The Nyquist coefficient is
// discarded.
//
// An FFTSpectrometer reuses its work buffers and must not be shared between
// goroutines.
type FFTSpectrometer struct {
	n      int
	fft    *fourier.FFT
	coeffs []complex128
}

// NewFFTSpectrometer prepares a transform for sequences of length n. n must
// be even and at least 2.
func NewFFTSpectrometer(n int) (s *FFTSpectrometer, err error) {
	if n < 2 || n%2 != 0 {
		return nil, &SpectralSetupError{Length: n, Reason: "length must be even and at least 2"}
	}
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, &SpectralSetupError{Length: n, Reason: fmt.Sprint(r)}
		}
	}()
	return &FFTSpectrometer{
		n:      n,
		fft:    fourier.NewFFT(n),
		coeffs: make([]complex128, n/2+1),
	}, nil
}

// Len is the input length the transform was prepared for.
func (s *FFTSpectrometer) Len() int { return s.n }

// Bins is the number of magnitude values MagnitudeSpectrum returns.
func (s *FFTSpectrometer) Bins() int { return s.n / 2 }

// MagnitudeSpectrum returns the first Len()/2 DFT magnitudes of signal.
func (s *FFTSpectrometer) MagnitudeSpectrum(signal []float64) (spec []float64, err error) {
	if len(signal) != s.n {
		return nil, &SpectralSetupError{Length: len(signal), Reason: fmt.Sprintf("transform prepared for length %d", s.n)}
	}
	defer func() {
		if r := recover(); r != nil {
			spec, err = nil, &SpectralSetupError{Length: s.n, Reason: fmt.Sprint(r)}
		}
	}()

	s.coeffs = s.fft.Coefficients(s.coeffs, signal)
	spec = make([]float64, s.n/2)
	for k := range spec {
		spec[k] = cmplx.Abs(s.coeffs[k])
	}
	return spec, nil
}

// FrequencyResolution is the bin spacing in Hz for n samples at rate hz.
func FrequencyResolution(rate float64, n int) float64 {
	return rate / float64(n)
}
