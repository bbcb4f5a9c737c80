package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

type DOK struct {
	M *sparse.DOK
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{sparse.NewDOK(nr, nc)}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix       { return m.M.T() }

func (m DOK) Set(i, j int, val float64) { m.M.Set(i, j, val) }

// Accum adds val to the element at (i, j).
func (m DOK) Accum(i, j int, val float64) { m.M.Set(i, j, m.M.At(i, j)+val) }

func (m DOK) ToCSR() CSR {
	return CSR{m.M.ToCSR()}
}

type CSR struct {
	M *sparse.CSR
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m CSR) Dims() (r, c int)    { return m.M.Dims() }
func (m CSR) At(i, j int) float64 { return m.M.At(i, j) }
func (m CSR) T() mat.Matrix       { return m.M.T() }

func (m CSR) NNZ() int                  { return m.M.NNZ() }
func (m CSR) Set(i, j int, val float64) { m.M.Set(i, j, val) }

func (m CSR) DoNonZero(fn func(i, j int, v float64)) { m.M.DoNonZero(fn) }

// MulCSR returns the sparse product a*b.
func MulCSR(a, b CSR) (R CSR) {
	var (
		nrA, ncA = a.Dims()
		nrB, ncB = b.Dims()
	)
	if ncA != nrB {
		err := fmt.Errorf("dimension mismatch in MulCSR: a is %vx%v, b is %vx%v", nrA, ncA, nrB, ncB)
		panic(err)
	}
	prod := sparse.NewCSR(nrA, ncB, nil, nil, nil)
	prod.Mul(a.M, b.M)
	R = CSR{prod}
	return
}

// DiagCSR returns a square sparse matrix with d on the diagonal.
func DiagCSR(d []float64) (R CSR) {
	dok := NewDOK(len(d), len(d))
	for i, val := range d {
		dok.Set(i, i, val)
	}
	R = dok.ToCSR()
	return
}

// Transpose returns an explicit CSR transpose of m.
func (m CSR) Transpose() (R CSR) {
	var (
		nr, nc = m.Dims()
	)
	dok := NewDOK(nc, nr)
	m.DoNonZero(func(i, j int, v float64) {
		dok.Set(j, i, v)
	})
	R = dok.ToCSR()
	return
}

// AddScaled returns m + alpha*b.
func (m CSR) AddScaled(alpha float64, b CSR) (R CSR) {
	var (
		nr, nc   = m.Dims()
		nrB, ncB = b.Dims()
	)
	if nr != nrB || nc != ncB {
		err := fmt.Errorf("dimension mismatch in AddScaled: %vx%v vs %vx%v", nr, nc, nrB, ncB)
		panic(err)
	}
	dok := NewDOK(nr, nc)
	m.DoNonZero(func(i, j int, v float64) {
		dok.Accum(i, j, v)
	})
	b.DoNonZero(func(i, j int, v float64) {
		dok.Accum(i, j, alpha*v)
	})
	R = dok.ToCSR()
	return
}

// MulVec multiplies m by the column vector x.
func (m CSR) MulVec(x []float64) (b []float64) {
	var (
		nr, nc = m.Dims()
	)
	if len(x) != nc {
		err := fmt.Errorf("dimension mismatch in MulVec: nc = %v, len(x) = %v", nc, len(x))
		panic(err)
	}
	b = make([]float64, nr)
	m.DoNonZero(func(i, j int, v float64) {
		b[i] += v * x[j]
	})
	return
}

// MulVecT multiplies the transpose of m by the column vector x.
func (m CSR) MulVecT(x []float64) (b []float64) {
	var (
		nr, nc = m.Dims()
	)
	if len(x) != nr {
		err := fmt.Errorf("dimension mismatch in MulVecT: nr = %v, len(x) = %v", nr, len(x))
		panic(err)
	}
	b = make([]float64, nc)
	m.DoNonZero(func(i, j int, v float64) {
		b[j] += v * x[i]
	})
	return
}

// ZeroRowUnitPivot zeroes row i and sets a unit pivot at (i, i). It is
// used to pin a reference value when the assembled operator carries a
// constant nullspace.
func (m CSR) ZeroRowUnitPivot(i int) {
	var cols Index
	m.DoNonZero(func(r, j int, v float64) {
		if r == i {
			cols = append(cols, j)
		}
	})
	for _, j := range cols {
		m.Set(i, j, 0)
	}
	m.Set(i, i, 1)
}

func (m CSR) ToDense() (R Matrix) {
	R = Matrix{m.M.ToDense()}
	return
}
