// Package resistivity implements the finite-volume forward and adjoint
// simulation engine for the steady-state DC resistivity PDE
// div(sigma grad phi) = -q. Two dual discretizations are provided
// (cell-centered and nodal potentials); the shared engine solves all
// sources against one cached factorization, predicts receiver data, and
// computes forward- and adjoint-mode sensitivities of the data with
// respect to the conductivity model.
package resistivity

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/geonum/godcr/maps"
	"github.com/geonum/godcr/mesh"
	"github.com/geonum/godcr/solver"
	"github.com/geonum/godcr/survey"
	"github.com/geonum/godcr/utils"
)

// Config carries the collaborators and policy flags of a simulation.
// Zero values select the defaults: identity mapping, dense LU solves,
// Dirichlet boundary (cell-centered only), no stored Jacobian, no
// mini-survey reduction.
type Config struct {
	Mesh    *mesh.TensorMesh
	Survey  *survey.Survey
	Mapping maps.Map
	Solver  solver.Solver
	BC      BCType

	StoreJ      bool
	Miniaturize bool
	Verbose     bool
}

type simState int

const (
	stateUninitialized simState = iota
	stateModelDirty
	stateFieldsComputed
	stateJacobianComputed
)

func (st simState) String() string {
	switch st {
	case stateModelDirty:
		return "ModelSet-Dirty"
	case stateFieldsComputed:
		return "FieldsComputed"
	case stateJacobianComputed:
		return "JacobianComputed"
	default:
		return "Uninitialized"
	}
}

// Simulation owns the model, the live factorization and the sensitivity
// caches. Setting a new model transitions the state machine back to
// dirty and drops every derived cache; exactly one factorization is live
// at a time.
type Simulation struct {
	Mesh    *mesh.TensorMesh
	Survey  *survey.Survey
	Mapping maps.Map
	Solver  solver.Solver
	StoreJ  bool
	Verbose bool

	form  Formulation
	mini  *survey.MiniSurvey
	state simState

	model   []float64
	ainv    solver.Decomposition
	jmat    *utils.Matrix
	gtgdiag []float64
}

func newSimulation(cfg Config) (s *Simulation, err error) {
	if cfg.Mesh == nil {
		err = fmt.Errorf("simulation requires a mesh")
		return
	}
	if cfg.Mesh.Dim != 2 && cfg.Mesh.Dim != 3 {
		err = fmt.Errorf("simulation supports 2-D and 3-D meshes, got dim = %v", cfg.Mesh.Dim)
		return
	}
	if cfg.Survey == nil || len(cfg.Survey.Sources) == 0 {
		err = fmt.Errorf("simulation requires a survey with at least one source")
		return
	}
	if cfg.Mapping == nil {
		cfg.Mapping = maps.IdentityMap{}
	}
	if cfg.Solver == nil {
		cfg.Solver = solver.LU{}
	}
	s = &Simulation{
		Mesh:    cfg.Mesh,
		Survey:  cfg.Survey,
		Mapping: cfg.Mapping,
		Solver:  cfg.Solver,
		StoreJ:  cfg.StoreJ,
		Verbose: cfg.Verbose,
		state:   stateUninitialized,
	}
	if cfg.Miniaturize {
		s.mini = survey.Reduce(cfg.Survey)
	}
	return
}

// NewCellCentered builds a simulation with the potential discretized at
// cell centers and the boundary condition of cfg.BC (default Dirichlet).
func NewCellCentered(cfg Config) (s *Simulation, err error) {
	if s, err = newSimulation(cfg); err != nil {
		return
	}
	bc := cfg.BC
	if bc == "" {
		bc = Dirichlet
	}
	if s.form, err = newCellCentered(cfg.Mesh, s.Mapping, bc, cfg.Verbose); err != nil {
		return nil, err
	}
	if cfg.Verbose {
		fmt.Printf("DC resistivity, cell-centered formulation: %v cells, %v boundary condition, %v sources\n",
			cfg.Mesh.NC(), bc, len(cfg.Survey.Sources))
	}
	return
}

// NewNodal builds a simulation with the potential discretized at nodes.
// The nodal operator always receives the nullspace unit pivot.
func NewNodal(cfg Config) (s *Simulation, err error) {
	if cfg.BC != "" && cfg.BC != Neumann {
		err = fmt.Errorf("the nodal formulation fixes its natural (Neumann) boundary, got %q", cfg.BC)
		return
	}
	if s, err = newSimulation(cfg); err != nil {
		return
	}
	if s.form, err = newNodal(cfg.Mesh, s.Mapping, cfg.Verbose); err != nil {
		return nil, err
	}
	if cfg.Verbose {
		fmt.Printf("DC resistivity, nodal formulation: %v nodes, %v sources\n",
			cfg.Mesh.NN(), len(cfg.Survey.Sources))
	}
	return
}

// Formulation exposes the active discretization.
func (s *Simulation) Formulation() Formulation { return s.form }

// MiniSurvey exposes the active reduction, nil when passthrough.
func (s *Simulation) MiniSurvey() *survey.MiniSurvey { return s.mini }

// Model returns the currently held model.
func (s *Simulation) Model() []float64 { return s.model }

// activeSurvey is the survey the solves iterate: the reduced pole-pole
// survey when miniaturization found redundancy, the original otherwise.
func (s *Simulation) activeSurvey() *survey.Survey {
	if s.mini != nil {
		return s.mini.Survey
	}
	return s.Survey
}

// SetModel installs m, invalidating the Jacobian and diagonal caches when
// the model actually changed.
func (s *Simulation) SetModel(m []float64) {
	if m == nil {
		return
	}
	if s.model != nil && floats.Equal(s.model, m) {
		return
	}
	s.model = utils.VecCopy(m)
	s.jmat = nil
	s.gtgdiag = nil
	s.state = stateModelDirty
}

// Fields solves the forward problem for every source in one batched
// solve: phi = A^-1 q. The previous factorization is released before the
// replacement is built, so at most one factorization is live.
func (s *Simulation) Fields(m []float64) (f *Fields, err error) {
	s.SetModel(m)
	if s.model == nil {
		err = fmt.Errorf("no model set: pass m to Fields or call SetModel first")
		return
	}
	if s.ainv != nil {
		s.ainv.Release()
		s.ainv = nil
	}
	var A utils.CSR
	if A, err = s.form.GetA(s.model); err != nil {
		return
	}
	if s.ainv, err = s.Solver.Factorize(A); err != nil {
		return
	}
	var q utils.Matrix
	if q, err = s.getSourceTerm(); err != nil {
		return
	}
	var phi utils.Matrix
	if phi, err = s.ainv.Solve(q); err != nil {
		return
	}
	f = &Fields{Phi: phi, locType: s.form.LocType()}
	s.state = stateFieldsComputed
	return
}

// getSourceTerm evaluates every active source onto the mesh degrees of
// freedom, one column per source.
func (s *Simulation) getSourceTerm() (q utils.Matrix, err error) {
	var (
		srcs = s.activeSurvey().Sources
		n    = s.form.NDoF()
	)
	q = utils.NewMatrix(n, len(srcs))
	for i, src := range srcs {
		var col []float64
		if col, err = src.Eval(s.Mesh, s.form.LocType()); err != nil {
			return
		}
		if len(col) != n {
			err = fmt.Errorf("source %v injects %v values, formulation has %v degrees of freedom", i, len(col), n)
			return
		}
		q.SetCol(i, col)
	}
	return
}

// DPred predicts data for model m: project fields through every
// receiver, concatenate in survey order, and expand through the
// mini-survey combination when active.
func (s *Simulation) DPred(m []float64, f *Fields) (data []float64, err error) {
	if f == nil {
		if f, err = s.Fields(m); err != nil {
			return
		}
	} else {
		s.SetModel(m)
	}
	var pred []float64
	for i, src := range s.activeSurvey().Sources {
		phi := f.Get(i)
		for _, rx := range src.Receivers() {
			var P utils.CSR
			if P, err = rx.GetP(s.Mesh, f.LocType()); err != nil {
				return
			}
			pred = append(pred, P.MulVec(phi)...)
		}
	}
	return s.miniSurveyData(pred)
}

func (s *Simulation) miniSurveyData(d []float64) ([]float64, error) {
	if s.mini == nil {
		return d, nil
	}
	return s.mini.ExpandData(d)
}

func (s *Simulation) miniSurveyDataT(v []float64) ([]float64, error) {
	if s.mini == nil {
		return utils.VecCopy(v), nil
	}
	return s.mini.ReduceData(v)
}

// solveColumn solves A*x = rhs (or the transposed system) against the
// cached factorization.
func (s *Simulation) solveColumn(rhs []float64, trans bool) (x []float64, err error) {
	if s.ainv == nil {
		err = fmt.Errorf("no live factorization: fields were not computed by this simulation (state = %v)", s.state)
		return
	}
	B := utils.NewMatrix(len(rhs), 1)
	B.SetCol(0, rhs)
	var X utils.Matrix
	if trans {
		X, err = s.ainv.SolveT(B)
	} else {
		X, err = s.ainv.Solve(B)
	}
	if err != nil {
		return
	}
	x = X.Col(0)
	return
}

// Jvec computes the forward sensitivity product J*v by solving one
// perturbed-state system per source against the cached factorization.
func (s *Simulation) Jvec(m, v []float64, f *Fields) (jv []float64, err error) {
	if f == nil {
		if f, err = s.Fields(m); err != nil {
			return
		}
	} else {
		s.SetModel(m)
	}
	if len(v) != len(s.model) {
		err = fmt.Errorf("perturbation has %v entries, model has %v", len(v), len(s.model))
		return
	}
	if s.StoreJ {
		var J *utils.Matrix
		if J, err = s.GetJ(m, f); err != nil {
			return
		}
		return J.MulVec(v), nil
	}
	var out []float64
	for i, src := range s.activeSurvey().Sources {
		u := f.Get(i)
		var dav []float64
		if dav, err = s.form.GetADeriv(s.model, u, v, false); err != nil {
			return
		}
		rhs := utils.VecScale(-1, dav)
		if dq, ok := s.form.GetRHSDeriv(v, false); ok {
			rhs = utils.VecAdd(rhs, dq)
		}
		if dq, ok := src.EvalDeriv(len(s.model), v, false); ok {
			rhs = utils.VecAdd(rhs, dq)
		}
		var du []float64
		if du, err = s.solveColumn(rhs, false); err != nil {
			return
		}
		for _, rx := range src.Receivers() {
			var P utils.CSR
			if P, err = rx.GetP(s.Mesh, f.LocType()); err != nil {
				return
			}
			out = append(out, P.MulVec(f.PhiDeriv(du, v))...)
		}
	}
	return s.miniSurveyData(out)
}

// Jtvec computes the adjoint sensitivity product J^T*v: one adjoint-state
// solve per receiver block against the transposed cached factorization.
func (s *Simulation) Jtvec(m, v []float64, f *Fields) (jtv []float64, err error) {
	if f == nil {
		if f, err = s.Fields(m); err != nil {
			return
		}
	} else {
		s.SetModel(m)
	}
	if len(v) != s.Survey.ND() {
		err = fmt.Errorf("data-space vector has %v entries, survey has %v data", len(v), s.Survey.ND())
		return
	}
	if s.StoreJ {
		var J *utils.Matrix
		if J, err = s.GetJ(m, f); err != nil {
			return
		}
		return J.MulVecT(v), nil
	}
	return s.jtvec(v, f)
}

// jtvec is the shared adjoint loop. With a data-space vector it
// accumulates J^T*v; the full-matrix variant below reuses the same
// per-receiver algebra to fill columns of J^T instead.
func (s *Simulation) jtvec(v []float64, f *Fields) (jtv []float64, err error) {
	var vm []float64
	if vm, err = s.miniSurveyDataT(v); err != nil {
		return
	}
	jtv = make([]float64, len(s.model))
	var offset int
	for i, src := range s.activeSurvey().Sources {
		u := f.Get(i)
		for _, rx := range src.Receivers() {
			var P utils.CSR
			if P, err = rx.GetP(s.Mesh, f.LocType()); err != nil {
				return
			}
			ptv := P.MulVecT(vm[offset : offset+rx.ND()])
			offset += rx.ND()
			dfDuT, dfDmT := f.PhiDerivAdjoint(ptv)
			var w []float64
			if w, err = s.solveColumn(dfDuT, true); err != nil {
				return
			}
			var dav []float64
			if dav, err = s.form.GetADeriv(s.model, u, w, true); err != nil {
				return
			}
			duDmT := utils.VecScale(-1, dav)
			if dq, ok := s.form.GetRHSDeriv(w, true); ok {
				duDmT = utils.VecAdd(duDmT, dq)
			}
			if dq, ok := src.EvalDeriv(len(s.model), w, true); ok {
				duDmT = utils.VecAdd(duDmT, dq)
			}
			if dfDmT != nil {
				duDmT = utils.VecAdd(duDmT, dfDmT)
			}
			floats.Add(jtv, duDmT)
		}
	}
	return
}

// jtvecFull materializes J^T column by column without ever forming J by
// the storeJ route: each receiver's projection rows become adjoint
// right-hand sides solved in one batched transposed solve.
func (s *Simulation) jtvecFull(f *Fields) (JT utils.Matrix, err error) {
	var (
		active = s.activeSurvey()
		nM     = len(s.model)
	)
	if s.ainv == nil {
		err = fmt.Errorf("no live factorization: fields were not computed by this simulation (state = %v)", s.state)
		return
	}
	JT = utils.NewMatrix(nM, active.ND())
	var col int
	for i, src := range active.Sources {
		u := f.Get(i)
		for _, rx := range src.Receivers() {
			var P utils.CSR
			if P, err = rx.GetP(s.Mesh, f.LocType()); err != nil {
				return
			}
			PT := P.ToDense().Transpose()
			var W utils.Matrix
			if W, err = s.ainv.SolveT(PT); err != nil {
				return
			}
			for r := 0; r < rx.ND(); r++ {
				w := W.Col(r)
				var dav []float64
				if dav, err = s.form.GetADeriv(s.model, u, w, true); err != nil {
					return
				}
				duDmT := utils.VecScale(-1, dav)
				if dq, ok := s.form.GetRHSDeriv(w, true); ok {
					duDmT = utils.VecAdd(duDmT, dq)
				}
				if dq, ok := src.EvalDeriv(nM, w, true); ok {
					duDmT = utils.VecAdd(duDmT, dq)
				}
				JT.SetCol(col, duDmT)
				col++
			}
		}
	}
	return
}

// GetJ materializes and caches the dense sensitivity matrix (rows = data
// in original survey order, columns = model parameters).
func (s *Simulation) GetJ(m []float64, f *Fields) (J *utils.Matrix, err error) {
	s.SetModel(m)
	if s.jmat != nil {
		return s.jmat, nil
	}
	if f == nil {
		if f, err = s.Fields(m); err != nil {
			return
		}
	}
	var JT utils.Matrix
	if JT, err = s.jtvecFull(f); err != nil {
		return
	}
	Jm := JT.Transpose() // reduced data space
	if s.mini != nil {
		if Jm, err = s.mini.ExpandDataMat(Jm); err != nil {
			return
		}
	}
	s.jmat = &Jm
	s.state = stateJacobianComputed
	return s.jmat, nil
}

// GetJtJDiag returns diag(J^T W^2 J) without forming the product. W is a
// per-datum weight vector; nil means unit weights. The diagonal is cached
// until the model changes.
func (s *Simulation) GetJtJDiag(m, W []float64) (diag []float64, err error) {
	s.SetModel(m)
	if s.gtgdiag != nil {
		return s.gtgdiag, nil
	}
	var J *utils.Matrix
	if J, err = s.GetJ(m, nil); err != nil {
		return
	}
	nD, nM := J.Dims()
	if W == nil {
		W = utils.VecConst(1, nD)
	} else if len(W) != nD {
		err = fmt.Errorf("weight vector has %v entries, survey has %v data", len(W), nD)
		return
	}
	diag = make([]float64, nM)
	for i := 0; i < nD; i++ {
		w2 := W[i] * W[i]
		row := J.Row(i)
		for j, val := range row {
			diag[j] += w2 * val * val
		}
	}
	s.gtgdiag = diag
	return
}
