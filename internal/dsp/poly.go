package dsp

import "gonum.org/v1/gonum/mat"

// Vandermonde returns the len(xs)×(degree+1) design matrix with entry
// (i, j) equal to xs[i]^j, i.e. ascending powers along each row.
func Vandermonde(xs []float64, degree int) *mat.Dense {
	cols := degree + 1
	data := make([]float64, len(xs)*cols)
	for i, x := range xs {
		p := 1.0
		for j := 0; j < cols; j++ {
			data[i*cols+j] = p
			p *= x
		}
	}
	return mat.NewDense(len(xs), cols, data)
}

// Reverse returns a copy of coeffs in the opposite order. Solvers return
// ascending-power coefficients; the evaluation helpers take descending.
func Reverse(coeffs []float64) []float64 {
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[len(coeffs)-1-i] = c
	}
	return out
}

// EvaluatePolynomial evaluates the polynomial with descending-power
// coefficients at every x using Horner's rule. An empty coefficient list
// is the zero polynomial.
func EvaluatePolynomial(coeffs, xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = Horner(coeffs, x)
	}
	return out
}

// Horner evaluates a descending-power polynomial at x.
func Horner(coeffs []float64, x float64) float64 {
	var acc float64
	for _, c := range coeffs {
		acc = acc*x + c
	}
	return acc
}

// Differentiate returns the descending-power coefficients of the
// derivative. A polynomial of degree d yields d coefficients; a constant
// yields none.
func Differentiate(coeffs []float64) []float64 {
	n := len(coeffs)
	if n <= 1 {
		return nil
	}
	out := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		out[i] = coeffs[i] * float64(n-1-i)
	}
	return out
}
