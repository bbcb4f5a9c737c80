package utils

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

type Matrix struct {
	M *mat.Dense
}

func NewMatrix(nr, nc int, dataO ...[]float64) (R Matrix) {
	var m *mat.Dense
	if len(dataO) != 0 {
		if len(dataO[0]) != nr*nc {
			err := fmt.Errorf("mismatch in allocation: NewMatrix nr,nc = %v,%v, len(data[0]) = %v", nr, nc, len(dataO[0]))
			panic(err)
		}
		m = mat.NewDense(nr, nc, dataO[0])
	} else {
		m = mat.NewDense(nr, nc, make([]float64, nr*nc))
	}
	R = Matrix{m}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m Matrix) Dims() (r, c int)          { return m.M.Dims() }
func (m Matrix) At(i, j int) float64       { return m.M.At(i, j) }
func (m Matrix) T() mat.Matrix             { return m.M.T() }
func (m Matrix) RawMatrix() blas64.General { return m.M.RawMatrix() }

func (m Matrix) Set(i, j int, val float64) Matrix { // Changes receiver
	m.M.Set(i, j, val)
	return m
}

func (m Matrix) Copy() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
		data   = m.RawMatrix().Data
		dataR  = make([]float64, nr*nc)
	)
	copy(dataR, data)
	R = NewMatrix(nr, nc, dataR)
	return
}

func (m Matrix) Transpose() (R Matrix) { // Does not change receiver
	var (
		nr, nc = m.Dims()
	)
	R = NewMatrix(nc, nr)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			R.M.Set(j, i, m.M.At(i, j))
		}
	}
	return
}

func (m Matrix) Mul(A Matrix) (R Matrix) { // Does not change receiver
	var (
		nrM, _ = m.M.Dims()
		_, ncA = A.M.Dims()
	)
	R = NewMatrix(nrM, ncA)
	R.M.Mul(m.M, A.M)
	return
}

// MulVec multiplies m by the column vector x.
func (m Matrix) MulVec(x []float64) (b []float64) {
	var (
		nr, nc = m.Dims()
	)
	if len(x) != nc {
		err := fmt.Errorf("dimension mismatch in MulVec: nc = %v, len(x) = %v", nc, len(x))
		panic(err)
	}
	b = make([]float64, nr)
	for i := 0; i < nr; i++ {
		var sum float64
		row := m.M.RawRowView(i)
		for j, val := range row {
			sum += val * x[j]
		}
		b[i] = sum
	}
	return
}

// MulVecT multiplies the transpose of m by the column vector x.
func (m Matrix) MulVecT(x []float64) (b []float64) {
	var (
		nr, nc = m.Dims()
	)
	if len(x) != nr {
		err := fmt.Errorf("dimension mismatch in MulVecT: nr = %v, len(x) = %v", nr, len(x))
		panic(err)
	}
	b = make([]float64, nc)
	for i := 0; i < nr; i++ {
		row := m.M.RawRowView(i)
		for j, val := range row {
			b[j] += val * x[i]
		}
	}
	return
}

// Col returns a copy of column j.
func (m Matrix) Col(j int) (c []float64) {
	var (
		nr, _ = m.Dims()
	)
	c = make([]float64, nr)
	mat.Col(c, j, m.M)
	return
}

func (m Matrix) SetCol(j int, data []float64) Matrix { // Changes receiver
	m.M.SetCol(j, data)
	return m
}

// Row returns a copy of row i.
func (m Matrix) Row(i int) (r []float64) {
	var (
		_, nc = m.Dims()
	)
	r = make([]float64, nc)
	copy(r, m.M.RawRowView(i))
	return
}

func (m Matrix) SetRow(i int, data []float64) Matrix { // Changes receiver
	m.M.SetRow(i, data)
	return m
}
