package solver

import (
	"fmt"

	"github.com/vladimir-ch/iterative"

	"github.com/geonum/godcr/utils"
)

// CG solves with conjugate gradients instead of a direct factorization.
// It keeps only the sparse operator, so it scales to meshes where the
// dense LU does not, but it requires a symmetric positive-definite
// system: use it with the cell-centered Dirichlet formulation.
type CG struct {
	Tolerance     float64 // relative residual target, default 1e-10
	MaxIterations int     // default 10 * n
}

type cgDecomposition struct {
	a   utils.CSR
	n   int
	cfg CG
}

func (s CG) Factorize(A utils.CSR) (Decomposition, error) {
	nr, nc := A.Dims()
	if nr != nc {
		return nil, fmt.Errorf("cannot solve a non-square operator: %v x %v", nr, nc)
	}
	var asym float64
	A.DoNonZero(func(i, j int, v float64) {
		if d := v - A.At(j, i); d > asym || -d > asym {
			if d < 0 {
				d = -d
			}
			asym = d
		}
	})
	if asym > 1e-12 {
		return nil, fmt.Errorf("CG requires a symmetric operator: max |A - A^T| entry = %v", asym)
	}
	return &cgDecomposition{a: A, n: nr, cfg: s}, nil
}

func (d *cgDecomposition) solve(B utils.Matrix) (X utils.Matrix, err error) {
	if d.n == 0 {
		err = fmt.Errorf("decomposition used after Release")
		return
	}
	nr, nc := B.Dims()
	if nr != d.n {
		err = fmt.Errorf("right-hand side has %v rows, system has %v degrees of freedom", nr, d.n)
		return
	}
	var (
		tol     = d.cfg.Tolerance
		maxIter = d.cfg.MaxIterations
	)
	if tol == 0 {
		tol = 1e-10
	}
	if maxIter == 0 {
		maxIter = 10 * d.n
	}
	ops := iterative.MatrixOps{
		MatVec: func(dst, src []float64) {
			copy(dst, d.a.MulVec(src))
		},
	}
	X = utils.NewMatrix(nr, nc)
	for j := 0; j < nc; j++ {
		res, cgErr := iterative.LinearSolve(ops, B.Col(j), &iterative.CG{}, iterative.Settings{
			Tolerance:     tol,
			MaxIterations: maxIter,
		})
		if cgErr != nil {
			err = fmt.Errorf("CG failed on column %v: %w", j, cgErr)
			return
		}
		X.SetCol(j, res.X)
	}
	return
}

// Solve and SolveT coincide: Factorize rejects unsymmetric operators.
func (d *cgDecomposition) Solve(B utils.Matrix) (utils.Matrix, error)  { return d.solve(B) }
func (d *cgDecomposition) SolveT(B utils.Matrix) (utils.Matrix, error) { return d.solve(B) }

func (d *cgDecomposition) Release() { d.n = 0 }
