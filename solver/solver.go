// Package solver wraps the linear-algebra backends behind a
// factorize-once, solve-many interface. A Decomposition owns whatever
// state the backend builds for one system matrix and must be released
// before its simulation factorizes a replacement.
package solver

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/geonum/godcr/utils"
)

// Decomposition solves A*X = B (and the transposed system) for
// multi-column right-hand sides against one factorized operator.
type Decomposition interface {
	Solve(B utils.Matrix) (utils.Matrix, error)
	SolveT(B utils.Matrix) (utils.Matrix, error)
	Release()
}

// Solver produces a Decomposition for a sparse system matrix.
type Solver interface {
	Factorize(A utils.CSR) (Decomposition, error)
}

// LU is the default direct solver. The assembled DC operators are modest
// in size and possibly unsymmetric after the nullspace pivot, so a dense
// LU with transposed-solve support covers every formulation.
type LU struct{}

type luDecomposition struct {
	lu *mat.LU
	n  int
}

func (LU) Factorize(A utils.CSR) (Decomposition, error) {
	nr, nc := A.Dims()
	if nr != nc {
		return nil, fmt.Errorf("cannot factorize a non-square operator: %v x %v", nr, nc)
	}
	var lu mat.LU
	lu.Factorize(A.ToDense().M)
	d := &luDecomposition{lu: &lu, n: nr}
	// Probe the factorization so a singular operator fails at
	// factorization time rather than on first use.
	probe := utils.NewMatrix(nr, 1)
	if _, err := d.Solve(probe); err != nil {
		return nil, fmt.Errorf("system matrix is singular or badly conditioned: %w", err)
	}
	return d, nil
}

func (d *luDecomposition) solve(B utils.Matrix, trans bool) (X utils.Matrix, err error) {
	if d.lu == nil {
		err = fmt.Errorf("decomposition used after Release")
		return
	}
	nr, nc := B.Dims()
	if nr != d.n {
		err = fmt.Errorf("right-hand side has %v rows, system has %v degrees of freedom", nr, d.n)
		return
	}
	X = utils.NewMatrix(nr, nc)
	if err = d.lu.SolveTo(X.M, trans, B.M); err != nil {
		err = fmt.Errorf("linear solve failed: %w", err)
		return
	}
	return
}

func (d *luDecomposition) Solve(B utils.Matrix) (utils.Matrix, error)  { return d.solve(B, false) }
func (d *luDecomposition) SolveT(B utils.Matrix) (utils.Matrix, error) { return d.solve(B, true) }

func (d *luDecomposition) Release() { d.lu = nil }
