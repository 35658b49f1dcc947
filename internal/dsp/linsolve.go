package dsp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultSingularTolerance is the relative size below which a diagonal
// entry of R is treated as zero.
const DefaultSingularTolerance = 1e-12

// LinearSolver solves the overdetermined system A·x ≈ b in the least-squares
// sense. Failures are reported as *IllFormedSystemError.
type LinearSolver interface {
	Solve(a mat.Matrix, b []float64) ([]float64, error)
}

// QRSolver solves least-squares problems through a Householder QR
// factorisation of A. The zero value uses DefaultSingularTolerance.
type QRSolver struct {
	// Tolerance is compared against |R_ii| / max_j |R_jj|.
	Tolerance float64
}

// Solve returns x minimising ‖A·x − b‖₂. A must have at least as many rows
// as columns and len(b) must equal the row count. Neither input is
// modified.
func (s QRSolver) Solve(a mat.Matrix, b []float64) (x []float64, err error) {
	if a == nil {
		return nil, &IllFormedSystemError{Reason: FailureIllegalParameter, Index: 1, Err: errors.New("nil matrix")}
	}
	rows, cols := a.Dims()
	if rows == 0 || cols == 0 || rows < cols {
		return nil, &IllFormedSystemError{
			Reason: FailureIllegalParameter, Index: 1,
			Err: fmt.Errorf("matrix is %d×%d, need rows ≥ cols > 0", rows, cols),
		}
	}
	if len(b) != rows {
		return nil, &IllFormedSystemError{
			Reason: FailureIllegalParameter, Index: 2,
			Err: fmt.Errorf("rhs has %d entries, matrix has %d rows", len(b), rows),
		}
	}
	for i := 0; i < rows; i++ {
		if !finite(b[i]) {
			return nil, &IllFormedSystemError{Reason: FailureIllegalParameter, Index: 2, Err: fmt.Errorf("rhs[%d] is not finite", i)}
		}
		for j := 0; j < cols; j++ {
			if !finite(a.At(i, j)) {
				return nil, &IllFormedSystemError{Reason: FailureIllegalParameter, Index: 1, Err: fmt.Errorf("a[%d][%d] is not finite", i, j)}
			}
		}
	}

	defer func() {
		if r := recover(); r != nil {
			x, err = nil, &IllFormedSystemError{Reason: FailureInternal, Err: fmt.Errorf("%v", r)}
		}
	}()

	var qr mat.QR
	qr.Factorize(a)

	var r mat.Dense
	qr.RTo(&r)
	if idx := s.singularDiagonal(&r, cols); idx > 0 {
		return nil, &IllFormedSystemError{Reason: FailureSingularFactor, Index: idx}
	}

	rhs := mat.NewVecDense(rows, append([]float64(nil), b...))
	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, rhs); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, &IllFormedSystemError{Reason: FailureSingularFactor, Index: smallestDiagonal(&r, cols), Err: err}
		}
		return nil, &IllFormedSystemError{Reason: FailureInternal, Err: err}
	}

	x = make([]float64, cols)
	for i := range x {
		x[i] = sol.AtVec(i)
	}
	return x, nil
}

// singularDiagonal returns the 1-based index of the first negligible
// diagonal entry of r, or 0 when all are usable.
func (s QRSolver) singularDiagonal(r *mat.Dense, n int) int {
	tol := s.Tolerance
	if tol <= 0 {
		tol = DefaultSingularTolerance
	}
	var scale float64
	for i := 0; i < n; i++ {
		scale = math.Max(scale, math.Abs(r.At(i, i)))
	}
	for i := 0; i < n; i++ {
		if d := math.Abs(r.At(i, i)); d == 0 || d <= tol*scale {
			return i + 1
		}
	}
	return 0
}

func smallestDiagonal(r *mat.Dense, n int) int {
	idx, best := 0, math.Inf(1)
	for i := 0; i < n; i++ {
		if d := math.Abs(r.At(i, i)); d < best {
			idx, best = i, d
		}
	}
	return idx + 1
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
