package resistivity

import (
	"fmt"
	"sort"

	"github.com/geonum/godcr/maps"
	"github.com/geonum/godcr/mesh"
	"github.com/geonum/godcr/utils"
)

// BCType selects the boundary condition of the cell-centered formulation.
type BCType string

const (
	Dirichlet BCType = "Dirichlet"
	Neumann   BCType = "Neumann"
	Mixed     BCType = "Mixed"
)

// Formulation is one finite-volume discretization of the DC resistivity
// operator. GetA assembles the system matrix for the current model,
// GetADeriv is the directional derivative of A(m)*u with respect to the
// model applied to v (or its transpose in adjoint mode), and GetRHSDeriv
// is the model derivative of the source term, identically zero for this
// PDE but kept as a slot for generality.
type Formulation interface {
	LocType() string // discretization location of the potential: "CC" or "N"
	NDoF() int
	GetA(m []float64) (utils.CSR, error)
	GetADeriv(m, u, v []float64, adjoint bool) ([]float64, error)
	GetRHSDeriv(v []float64, adjoint bool) ([]float64, bool)
}

// CellCentered discretizes the potential at cell centers:
// A = Div * diag(MfRhoI) * Grad, current flux on faces.
type CellCentered struct {
	msh     *mesh.TensorMesh
	mapping maps.Map
	bc      BCType
	verbose bool

	Div, Grad utils.CSR
	vol       []float64
	acf       utils.CSR // cell-center to face averaging
}

func newCellCentered(msh *mesh.TensorMesh, mapping maps.Map, bc BCType, verbose bool) (f *CellCentered, err error) {
	switch bc {
	case Dirichlet, Neumann, Mixed:
	default:
		err = fmt.Errorf("unknown boundary condition %q (want Dirichlet, Neumann or Mixed)", bc)
		return
	}
	f = &CellCentered{
		msh:     msh,
		mapping: mapping,
		bc:      bc,
		verbose: verbose,
		vol:     msh.Vol(),
		acf:     msh.AveCC2F(),
	}
	err = f.setBC()
	return
}

func (f *CellCentered) LocType() string { return "CC" }
func (f *CellCentered) NDoF() int       { return f.msh.NC() }

// setBC builds the volume-weighted divergence and the gradient with the
// requested boundary handling folded in.
func (f *CellCentered) setBC() (err error) {
	f.Div = utils.MulCSR(utils.DiagCSR(f.vol), f.msh.FaceDiv())
	if f.bc == Dirichlet {
		if f.verbose {
			fmt.Println("Homogeneous Dirichlet is the natural BC for the cell-centered discretization.")
		}
		f.Grad = f.Div.Transpose()
		return
	}

	sides := f.msh.FaceBoundary()
	alpha := make([][]float64, len(sides))
	beta := make([][]float64, len(sides))
	gamma := make([][]float64, len(sides))
	for s, side := range sides {
		n := len(side.Faces)
		alpha[s] = make([]float64, n)
		beta[s] = utils.VecConst(1, n)
		gamma[s] = make([]float64, n)
	}
	if f.bc == Mixed {
		// Robin coefficient alpha = (x - xs)/r^2 per boundary face from
		// the point-source decay model of Dey and Morrison (1979). The
		// reference source location is the horizontal median and the
		// top-most vertical cell center; the top side stays Neumann.
		ref := []float64{median(f.msh.CellCentersX())}
		if f.msh.Dim == 3 {
			ref = append(ref, median(f.msh.CellCentersY()))
			ccz := f.msh.CellCentersZ()
			ref = append(ref, ccz[len(ccz)-1])
		} else {
			ccy := f.msh.CellCentersY()
			ref = append(ref, ccy[len(ccy)-1])
		}
		topSide := 2*f.msh.Dim - 1
		for s, side := range sides {
			if s == topSide { // vertical plus side stays Neumann
				continue
			}
			axis := s / 2 // 0:x, 1:y, 2:z sides
			for i, c := range side.Centroids {
				var r2 float64
				for d := range ref {
					r2 += (c[d] - ref[d]) * (c[d] - ref[d])
				}
				alpha[s][i] = (c[axis] - ref[axis]) / r2
			}
		}
	}

	var yBC []float64
	if _, yBC, err = f.msh.GetXBCYBC(alpha, beta, gamma); err != nil {
		return
	}
	Pbc, B := f.msh.GetBCProjWFSimple()
	M := utils.MulCSR(B, f.acf)
	f.Grad = f.Div.Transpose().AddScaled(-1, utils.MulCSR(Pbc, utils.MulCSR(utils.DiagCSR(yBC), M)))
	return
}

// faceRho returns rho = 1/sigma and the diagonal of the face
// inverse-resistivity mass matrix for the current model.
func (f *CellCentered) faceRho(m []float64) (rho, w []float64, err error) {
	sigma := f.mapping.Apply(m)
	if len(sigma) != f.msh.NC() {
		err = fmt.Errorf("mapped conductivity has %v entries, mesh has %v cells", len(sigma), f.msh.NC())
		return
	}
	for i, val := range sigma {
		if val <= 0 {
			err = fmt.Errorf("conductivity must be strictly positive: sigma[%v] = %v", i, val)
			return
		}
	}
	rho = utils.VecRecip(sigma)
	w = utils.VecRecip(f.acf.MulVec(utils.VecElMul(f.vol, rho)))
	return
}

func (f *CellCentered) GetA(m []float64) (A utils.CSR, err error) {
	var w []float64
	if _, w, err = f.faceRho(m); err != nil {
		return
	}
	A = utils.MulCSR(f.Div, utils.MulCSR(utils.DiagCSR(w), f.Grad))
	if f.bc == Neumann {
		if f.verbose {
			fmt.Println("Perturbing first row of A to remove nullspace for Neumann BC.")
		}
		A.ZeroRowUnitPivot(0)
	}
	return
}

func (f *CellCentered) GetADeriv(m, u, v []float64, adjoint bool) ([]float64, error) {
	rho, w, err := f.faceRho(m)
	if err != nil {
		return nil, err
	}
	var (
		gu   = f.Grad.MulVec(u)
		rho2 = utils.VecElMul(rho, rho)
		w2   = utils.VecElMul(w, w)
	)
	if adjoint {
		// The pivoted row of A is constant in m, so its adjoint
		// contribution vanishes.
		if f.bc == Neumann {
			v = utils.VecCopy(v)
			v[0] = 0
		}
		a := utils.VecElMul(gu, f.Div.MulVecT(v))
		a = utils.VecScale(-1, utils.VecElMul(w2, a))
		a = utils.VecElMul(f.vol, f.acf.MulVecT(a))
		a = utils.VecScale(-1, utils.VecElMul(rho2, a))
		return f.mapping.Deriv(m, a, true), nil
	}
	s := f.mapping.Deriv(m, v, false)
	s = utils.VecScale(-1, utils.VecElMul(rho2, s))
	s = f.acf.MulVec(utils.VecElMul(f.vol, s))
	s = utils.VecScale(-1, utils.VecElMul(w2, s))
	out := f.Div.MulVec(utils.VecElMul(gu, s))
	if f.bc == Neumann {
		out[0] = 0
	}
	return out, nil
}

func (f *CellCentered) GetRHSDeriv(v []float64, adjoint bool) ([]float64, bool) {
	// The source term does not depend on the model.
	return nil, false
}

// Nodal discretizes the potential at nodes:
// A = Grad^T * diag(MeSigma) * Grad, current flux on edges. The operator
// carries a constant nullspace and always receives the unit pivot.
type Nodal struct {
	msh     *mesh.TensorMesh
	mapping maps.Map
	verbose bool

	grad, gradT utils.CSR
	vol         []float64
	ace         utils.CSR // cell-center to edge averaging
}

func newNodal(msh *mesh.TensorMesh, mapping maps.Map, verbose bool) (f *Nodal, err error) {
	f = &Nodal{
		msh:     msh,
		mapping: mapping,
		verbose: verbose,
		vol:     msh.Vol(),
		ace:     msh.AveCC2E(),
	}
	f.grad = msh.NodalGrad()
	f.gradT = f.grad.Transpose()
	return
}

func (f *Nodal) LocType() string { return "N" }
func (f *Nodal) NDoF() int       { return f.msh.NN() }

// edgeSigma returns the diagonal of the edge conductivity mass matrix.
func (f *Nodal) edgeSigma(m []float64) (e []float64, err error) {
	sigma := f.mapping.Apply(m)
	if len(sigma) != f.msh.NC() {
		err = fmt.Errorf("mapped conductivity has %v entries, mesh has %v cells", len(sigma), f.msh.NC())
		return
	}
	for i, val := range sigma {
		if val <= 0 {
			err = fmt.Errorf("conductivity must be strictly positive: sigma[%v] = %v", i, val)
			return
		}
	}
	e = f.ace.MulVec(utils.VecElMul(f.vol, sigma))
	return
}

func (f *Nodal) GetA(m []float64) (A utils.CSR, err error) {
	var e []float64
	if e, err = f.edgeSigma(m); err != nil {
		return
	}
	A = utils.MulCSR(f.gradT, utils.MulCSR(utils.DiagCSR(e), f.grad))
	if f.verbose {
		fmt.Println("Perturbing first row of A to remove the constant nullspace of the nodal operator.")
	}
	A.ZeroRowUnitPivot(0)
	return
}

func (f *Nodal) GetADeriv(m, u, v []float64, adjoint bool) ([]float64, error) {
	if nm := len(f.mapping.Apply(m)); nm != f.msh.NC() {
		return nil, fmt.Errorf("mapped conductivity has %v entries, mesh has %v cells", nm, f.msh.NC())
	}
	gu := f.grad.MulVec(u)
	if adjoint {
		// Row 0 of A is the constant pivot row.
		v = utils.VecCopy(v)
		v[0] = 0
		a := utils.VecElMul(gu, f.grad.MulVec(v))
		a = utils.VecElMul(f.vol, f.ace.MulVecT(a))
		return f.mapping.Deriv(m, a, true), nil
	}
	s := f.mapping.Deriv(m, v, false)
	s = f.ace.MulVec(utils.VecElMul(f.vol, s))
	out := f.gradT.MulVec(utils.VecElMul(gu, s))
	out[0] = 0
	return out, nil
}

func (f *Nodal) GetRHSDeriv(v []float64, adjoint bool) ([]float64, bool) {
	return nil, false
}

func median(v []float64) float64 {
	s := utils.VecCopy(v)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return 0.5 * (s[n/2-1] + s[n/2])
}
