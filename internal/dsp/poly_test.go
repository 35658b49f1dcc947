package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVandermonde(t *testing.T) {
	v := Vandermonde([]float64{0, 2, 3}, 2)
	r, c := v.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, []float64{1, 0, 0}, v.RawRowView(0))
	assert.Equal(t, []float64{1, 2, 4}, v.RawRowView(1))
	assert.Equal(t, []float64{1, 3, 9}, v.RawRowView(2))
}

func TestEvaluatePolynomial(t *testing.T) {
	// 2x³ - x + 5
	coeffs := []float64{2, 0, -1, 5}
	got := EvaluatePolynomial(coeffs, []float64{-1, 0, 1, 2})
	assert.Equal(t, []float64{4, 5, 6, 19}, got)

	assert.Equal(t, []float64{0, 0}, EvaluatePolynomial(nil, []float64{3, 4}))
}

func TestDifferentiate(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   []float64
		want []float64
	}{
		{"quartic", []float64{1, 2, 3, 4, 5}, []float64{4, 6, 6, 4}},
		{"linear", []float64{3, 7}, []float64{3}},
		{"constant", []float64{9}, nil},
		{"empty", nil, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Differentiate(tc.in))
		})
	}
}

func TestReverse(t *testing.T) {
	in := []float64{1, 2, 3}
	assert.Equal(t, []float64{3, 2, 1}, Reverse(in))
	assert.Equal(t, []float64{1, 2, 3}, in)
}
