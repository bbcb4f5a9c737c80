package resistivity

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geonum/godcr/maps"
	"github.com/geonum/godcr/mesh"
	"github.com/geonum/godcr/solver"
	"github.com/geonum/godcr/survey"
	"github.com/geonum/godcr/utils"
)

func testMesh() *mesh.TensorMesh {
	msh, err := mesh.NewTensorMesh(
		utils.VecConst(1, 5), utils.VecConst(1, 5), utils.VecConst(1, 5), [3]float64{})
	if err != nil {
		panic(err)
	}
	return msh
}

// electrodes along a line on the top surface.
func electrode(i int) []float64 { return []float64{0.5 + float64(i), 2.5, 4.5} }

// testSurvey mixes dipole and pole sources and receivers over shared
// electrodes, so the mini reduction has real redundancy to remove. The
// currents differ on purpose: the reduction must rescale its unit-current
// pole solves per datum.
func testSurvey() *survey.Survey {
	rx1, _ := survey.NewDipoleRx([][]float64{electrode(2)}, [][]float64{electrode(3)})
	rx2, _ := survey.NewDipoleRx([][]float64{electrode(3)}, [][]float64{electrode(4)})
	rx3 := survey.NewPoleRx([][]float64{electrode(3), electrode(4)})
	return survey.NewSurvey([]survey.Source{
		survey.NewDipoleSrc([]survey.Receiver{rx1}, electrode(0), electrode(1), 2.0),
		survey.NewDipoleSrc([]survey.Receiver{rx2}, electrode(1), electrode(2), 1.0),
		survey.NewPoleSrc([]survey.Receiver{rx3}, electrode(0), 1.5),
	})
}

func uniformModel(msh *mesh.TensorMesh, val float64) []float64 {
	return utils.VecConst(val, msh.NC())
}

func randomModel(rng *rand.Rand, n int) (m []float64) {
	m = make([]float64, n)
	for i := range m {
		m[i] = 0.01 * (1 + 0.5*rng.Float64())
	}
	return
}

func relDelta(a []float64) float64 {
	return 1.e-8 * math.Max(1, utils.VecMaxAbs(a))
}

func TestForwardFields(t *testing.T) {
	var (
		msh = testMesh()
		srv = testSurvey()
		m   = uniformModel(msh, 0.01)
	)
	s, err := NewCellCentered(Config{Mesh: msh, Survey: srv})
	assert.NoError(t, err)
	assert.Equal(t, stateUninitialized, s.state)

	f, err := s.Fields(m)
	assert.NoError(t, err)
	assert.Equal(t, stateFieldsComputed, s.state)
	assert.Equal(t, len(srv.Sources), f.NSources())
	assert.Equal(t, "CC", f.LocType())

	// each potential column satisfies A*phi = q to solver precision
	A, err := s.form.GetA(m)
	assert.NoError(t, err)
	q, err := s.getSourceTerm()
	assert.NoError(t, err)
	for i := range srv.Sources {
		r := utils.VecSub(A.MulVec(f.Get(i)), q.Col(i))
		assert.InDeltaf(t, 0., utils.VecMaxAbs(r), 1.e-10, "forward residual, source %v", i)
	}

	// predictions are deterministic for an unchanged model
	d1, err := s.DPred(m, nil)
	assert.NoError(t, err)
	d2, err := s.DPred(m, nil)
	assert.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Equal(t, srv.ND(), len(d1))

	// a model change must flow through to the predictions
	d3, err := s.DPred(utils.VecScale(2, m), nil)
	assert.NoError(t, err)
	assert.Greater(t, utils.VecMaxAbs(utils.VecSub(d1, d3)), 0.)
}

func TestPotentialDecayAndSuperposition(t *testing.T) {
	msh := testMesh()
	// a positive pole injection yields positive potentials that decay
	// away from the source
	for _, bc := range []BCType{Dirichlet, Mixed} {
		rx := survey.NewPoleRx([][]float64{
			{3.5, 2.5, 4.5},
			{4.5, 2.5, 4.5},
		})
		srv := survey.NewSurvey([]survey.Source{
			survey.NewPoleSrc([]survey.Receiver{rx}, []float64{2.5, 2.5, 4.5}, 1.0),
		})
		s, err := NewCellCentered(Config{Mesh: msh, Survey: srv, BC: bc})
		assert.NoError(t, err)
		d, err := s.DPred(uniformModel(msh, 0.01), nil)
		assert.NoError(t, err)
		assert.Greater(t, d[0], d[1])
		assert.Greater(t, d[1], 0.)
	}
	// dipole data equal the difference of the two pole solutions under
	// every boundary condition
	for _, bc := range []BCType{Dirichlet, Neumann, Mixed} {
		var (
			a  = electrode(0)
			b  = electrode(1)
			m  = uniformModel(msh, 0.01)
			rx = survey.NewPoleRx([][]float64{electrode(3), electrode(4)})
		)
		dipSrv := survey.NewSurvey([]survey.Source{
			survey.NewDipoleSrc([]survey.Receiver{rx}, a, b, 1.0),
		})
		poleSrv := survey.NewSurvey([]survey.Source{
			survey.NewPoleSrc([]survey.Receiver{rx}, a, 1.0),
			survey.NewPoleSrc([]survey.Receiver{rx}, b, 1.0),
		})
		sDip, err := NewCellCentered(Config{Mesh: msh, Survey: dipSrv, BC: bc})
		assert.NoError(t, err)
		sPole, err := NewCellCentered(Config{Mesh: msh, Survey: poleSrv, BC: bc})
		assert.NoError(t, err)
		dDip, err := sDip.DPred(m, nil)
		assert.NoError(t, err)
		dPole, err := sPole.DPred(m, nil)
		assert.NoError(t, err)
		for i := range dDip {
			assert.InDeltaf(t, dPole[i]-dPole[2+i], dDip[i], relDelta(dDip), "superposition under %v, datum %v", bc, i)
		}
	}
}

func TestFormulationBoundaries(t *testing.T) {
	var (
		msh = testMesh()
		rng = rand.New(rand.NewSource(3))
	)
	// Dirichlet: the folded gradient is exactly the transposed divergence
	{
		f, err := newCellCentered(msh, maps.IdentityMap{}, Dirichlet, false)
		assert.NoError(t, err)
		x := randomModel(rng, msh.NC())
		assert.InDeltaSlice(t, f.Div.MulVecT(x), f.Grad.MulVec(x), 1.e-12)
	}
	// Neumann: folding zeroes the boundary rows of the gradient
	{
		f, err := newCellCentered(msh, maps.IdentityMap{}, Neumann, false)
		assert.NoError(t, err)
		g := f.Grad.MulVec(randomModel(rng, msh.NC()))
		for _, side := range msh.FaceBoundaryInd() {
			for _, bf := range side {
				assert.InDeltaf(t, 0., g[bf], 1.e-12, "Neumann boundary row %v", bf)
			}
		}
	}
	// Mixed: the Robin fold produces a nonsingular operator without a pivot
	{
		f, err := newCellCentered(msh, maps.IdentityMap{}, Mixed, false)
		assert.NoError(t, err)
		A, err := f.GetA(uniformModel(msh, 0.01))
		assert.NoError(t, err)
		_, err = solver.LU{}.Factorize(A)
		assert.NoError(t, err)
	}
	// unknown boundary condition
	{
		_, err := newCellCentered(msh, maps.IdentityMap{}, BCType("Absorbing"), false)
		assert.NotNil(t, err)
	}
}

func TestAdjointConsistency(t *testing.T) {
	var (
		msh = testMesh()
		rng = rand.New(rand.NewSource(17))
	)
	build := func(nodal bool, bc BCType, storeJ, mini bool, mapping maps.Map) *Simulation {
		cfg := Config{
			Mesh: msh, Survey: testSurvey(), Mapping: mapping,
			BC: bc, StoreJ: storeJ, Miniaturize: mini,
		}
		var (
			s   *Simulation
			err error
		)
		if nodal {
			s, err = NewNodal(cfg)
		} else {
			s, err = NewCellCentered(cfg)
		}
		assert.NoError(t, err)
		return s
	}
	cases := []struct {
		name         string
		nodal        bool
		bc           BCType
		storeJ, mini bool
	}{
		{name: "cc dirichlet", bc: Dirichlet},
		{name: "cc neumann", bc: Neumann},
		{name: "cc mixed", bc: Mixed},
		{name: "cc dirichlet storeJ", bc: Dirichlet, storeJ: true},
		{name: "cc dirichlet mini", bc: Dirichlet, mini: true},
		{name: "cc mixed storeJ mini", bc: Mixed, storeJ: true, mini: true},
		{name: "nodal", nodal: true},
		{name: "nodal storeJ mini", nodal: true, storeJ: true, mini: true},
	}
	for _, tc := range cases {
		var (
			s = build(tc.nodal, tc.bc, tc.storeJ, tc.mini, nil)
			m = randomModel(rng, msh.NC())
			v = make([]float64, msh.NC())
			w = make([]float64, s.Survey.ND())
		)
		for i := range v {
			v[i] = rng.Float64() - 0.5
		}
		for i := range w {
			w[i] = rng.Float64() - 0.5
		}
		f, err := s.Fields(m)
		assert.NoError(t, err)
		jv, err := s.Jvec(m, v, f)
		assert.NoError(t, err)
		jtw, err := s.Jtvec(m, w, f)
		assert.NoError(t, err)
		var (
			lhs = utils.VecDot(jv, w)
			rhs = utils.VecDot(v, jtw)
		)
		assert.InDeltaf(t, lhs, rhs, 1.e-8*math.Max(1, math.Abs(lhs)), "adjoint identity, %v", tc.name)
	}
	// the exp mapping chains through both sensitivity modes
	{
		s := build(false, Dirichlet, false, false, maps.ExpMap{})
		var (
			m = make([]float64, msh.NC())
			v = make([]float64, msh.NC())
			w = make([]float64, s.Survey.ND())
		)
		for i := range m {
			m[i] = math.Log(0.01) + 0.3*(rng.Float64()-0.5)
			v[i] = rng.Float64() - 0.5
		}
		for i := range w {
			w[i] = rng.Float64() - 0.5
		}
		f, err := s.Fields(m)
		assert.NoError(t, err)
		jv, err := s.Jvec(m, v, f)
		assert.NoError(t, err)
		jtw, err := s.Jtvec(m, w, f)
		assert.NoError(t, err)
		lhs, rhs := utils.VecDot(jv, w), utils.VecDot(v, jtw)
		assert.InDeltaf(t, lhs, rhs, 1.e-8*math.Max(1, math.Abs(lhs)), "adjoint identity, exp map")
	}
}

func TestJacobianFiniteDifference(t *testing.T) {
	var (
		msh = testMesh()
		rng = rand.New(rand.NewSource(29))
		eps = 1.e-6
	)
	builders := []struct {
		name  string
		build func() (*Simulation, error)
	}{
		{"cell-centered", func() (*Simulation, error) {
			return NewCellCentered(Config{Mesh: msh, Survey: testSurvey()})
		}},
		{"nodal", func() (*Simulation, error) {
			return NewNodal(Config{Mesh: msh, Survey: testSurvey()})
		}},
	}
	for _, b := range builders {
		s, err := b.build()
		assert.NoError(t, err)
		var (
			m = uniformModel(msh, 0.01)
			v = make([]float64, msh.NC())
		)
		for i := range v {
			v[i] = rng.Float64() - 0.5
		}
		f, err := s.Fields(m)
		assert.NoError(t, err)
		jv, err := s.Jvec(m, v, f)
		assert.NoError(t, err)

		dPlus, err := s.DPred(utils.VecAdd(m, utils.VecScale(eps, v)), nil)
		assert.NoError(t, err)
		dMinus, err := s.DPred(utils.VecSub(m, utils.VecScale(eps, v)), nil)
		assert.NoError(t, err)
		fd := utils.VecScale(1/(2*eps), utils.VecSub(dPlus, dMinus))
		for i := range jv {
			assert.InDeltaf(t, fd[i], jv[i], 1.e-4*math.Max(1, math.Abs(fd[i])),
				"finite difference, %v, datum %v", b.name, i)
		}
	}
}

func TestStoredJacobian(t *testing.T) {
	var (
		msh = testMesh()
		rng = rand.New(rand.NewSource(41))
		m   = randomModel(rng, msh.NC())
		v   = make([]float64, msh.NC())
		w   = make([]float64, testSurvey().ND())
	)
	for i := range v {
		v[i] = rng.Float64() - 0.5
	}
	for i := range w {
		w[i] = rng.Float64() - 0.5
	}
	sOnFly, err := NewCellCentered(Config{Mesh: msh, Survey: testSurvey()})
	assert.NoError(t, err)
	sStored, err := NewCellCentered(Config{Mesh: msh, Survey: testSurvey(), StoreJ: true})
	assert.NoError(t, err)

	// both sensitivity routes agree
	{
		jv1, err := sOnFly.Jvec(m, v, nil)
		assert.NoError(t, err)
		jv2, err := sStored.Jvec(m, v, nil)
		assert.NoError(t, err)
		assert.InDeltaSlice(t, jv1, jv2, relDelta(jv1))
		jt1, err := sOnFly.Jtvec(m, w, nil)
		assert.NoError(t, err)
		jt2, err := sStored.Jtvec(m, w, nil)
		assert.NoError(t, err)
		assert.InDeltaSlice(t, jt1, jt2, relDelta(jt1))
	}
	// explicit J rows reproduce Jvec
	{
		J, err := sStored.GetJ(m, nil)
		assert.NoError(t, err)
		nD, nM := J.Dims()
		assert.Equal(t, sStored.Survey.ND(), nD)
		assert.Equal(t, msh.NC(), nM)
		jv, err := sOnFly.Jvec(m, v, nil)
		assert.NoError(t, err)
		assert.InDeltaSlice(t, jv, J.MulVec(v), relDelta(jv))
	}
	// GetJtJDiag against the explicit weighted sum of squared rows
	{
		J, err := sStored.GetJ(m, nil)
		assert.NoError(t, err)
		nD, nM := J.Dims()
		W := make([]float64, nD)
		for i := range W {
			W[i] = 0.5 + rng.Float64()
		}
		diag, err := sStored.GetJtJDiag(m, W)
		assert.NoError(t, err)
		want := make([]float64, nM)
		for i := 0; i < nD; i++ {
			row := J.Row(i)
			for j, val := range row {
				want[j] += W[i] * W[i] * val * val
			}
		}
		assert.InDeltaSlice(t, want, diag, relDelta(want))
	}
	// caches persist for an unchanged model and drop on a new one
	{
		J1, err := sStored.GetJ(m, nil)
		assert.NoError(t, err)
		assert.Equal(t, stateJacobianComputed, sStored.state)
		J2, err := sStored.GetJ(m, nil)
		assert.NoError(t, err)
		assert.True(t, J1 == J2)

		m2 := utils.VecScale(2, m)
		sStored.SetModel(m2)
		assert.Equal(t, stateModelDirty, sStored.state)
		J3, err := sStored.GetJ(m2, nil)
		assert.NoError(t, err)
		assert.True(t, J1 != J3)
		var maxDiff float64
		for i := 0; i < sStored.Survey.ND(); i++ {
			maxDiff = math.Max(maxDiff, utils.VecMaxAbs(utils.VecSub(J1.Row(i), J3.Row(i))))
		}
		assert.Greater(t, maxDiff, 0.)
	}
}

func TestMiniaturize(t *testing.T) {
	var (
		msh = testMesh()
		rng = rand.New(rand.NewSource(53))
		m   = randomModel(rng, msh.NC())
	)
	plain, err := NewCellCentered(Config{Mesh: msh, Survey: testSurvey()})
	assert.NoError(t, err)
	mini, err := NewCellCentered(Config{Mesh: msh, Survey: testSurvey(), Miniaturize: true})
	assert.NoError(t, err)
	assert.Nil(t, plain.MiniSurvey())
	assert.NotNil(t, mini.MiniSurvey())
	assert.Less(t, mini.MiniSurvey().NDMini(), 4*mini.Survey.ND())
	// the reduced survey solves fewer systems but predicts the same data
	assert.Less(t, len(mini.activeSurvey().Sources), mini.MiniSurvey().NDMini())

	dPlain, err := plain.DPred(m, nil)
	assert.NoError(t, err)
	dMini, err := mini.DPred(m, nil)
	assert.NoError(t, err)
	assert.InDeltaSlice(t, dPlain, dMini, relDelta(dPlain))

	var (
		v = make([]float64, msh.NC())
		w = make([]float64, plain.Survey.ND())
	)
	for i := range v {
		v[i] = rng.Float64() - 0.5
	}
	for i := range w {
		w[i] = rng.Float64() - 0.5
	}
	jvPlain, err := plain.Jvec(m, v, nil)
	assert.NoError(t, err)
	jvMini, err := mini.Jvec(m, v, nil)
	assert.NoError(t, err)
	assert.InDeltaSlice(t, jvPlain, jvMini, relDelta(jvPlain))

	jtPlain, err := plain.Jtvec(m, w, nil)
	assert.NoError(t, err)
	jtMini, err := mini.Jtvec(m, w, nil)
	assert.NoError(t, err)
	assert.InDeltaSlice(t, jtPlain, jtMini, relDelta(jtPlain))

	// a 2 A dipole-dipole survey: the reduced unit-current pole solves
	// must be rescaled by the source current, not predicted at 1 A
	{
		srv := func() *survey.Survey {
			rx, _ := survey.NewDipoleRx([][]float64{electrode(2)}, [][]float64{electrode(3)})
			return survey.NewSurvey([]survey.Source{
				survey.NewDipoleSrc([]survey.Receiver{rx}, electrode(0), electrode(1), 2.0),
			})
		}
		sPlain, err := NewCellCentered(Config{Mesh: msh, Survey: srv()})
		assert.NoError(t, err)
		sMini, err := NewCellCentered(Config{Mesh: msh, Survey: srv(), Miniaturize: true})
		assert.NoError(t, err)
		assert.NotNil(t, sMini.MiniSurvey())
		dPlain, err := sPlain.DPred(m, nil)
		assert.NoError(t, err)
		dMini, err := sMini.DPred(m, nil)
		assert.NoError(t, err)
		assert.InDeltaSlice(t, dPlain, dMini, relDelta(dPlain))
	}

	// without redundancy the reduction is a passthrough and predictions
	// are bit-identical
	{
		rx := survey.NewPoleRx([][]float64{electrode(3)})
		srv := func() *survey.Survey {
			return survey.NewSurvey([]survey.Source{
				survey.NewPoleSrc([]survey.Receiver{rx}, electrode(0), 1.0),
			})
		}
		sPlain, err := NewCellCentered(Config{Mesh: msh, Survey: srv()})
		assert.NoError(t, err)
		sMini, err := NewCellCentered(Config{Mesh: msh, Survey: srv(), Miniaturize: true})
		assert.NoError(t, err)
		assert.Nil(t, sMini.MiniSurvey())
		d1, err := sPlain.DPred(m, nil)
		assert.NoError(t, err)
		d2, err := sMini.DPred(m, nil)
		assert.NoError(t, err)
		assert.Equal(t, d1, d2)
	}
}

func TestIterativeSolverOption(t *testing.T) {
	// the Dirichlet cell-centered operator is SPD, so CG reproduces the
	// direct predictions
	var (
		msh = testMesh()
		m   = uniformModel(msh, 0.01)
	)
	direct, err := NewCellCentered(Config{Mesh: msh, Survey: testSurvey()})
	assert.NoError(t, err)
	iter, err := NewCellCentered(Config{
		Mesh: msh, Survey: testSurvey(),
		Solver: solver.CG{Tolerance: 1.e-12},
	})
	assert.NoError(t, err)
	dLU, err := direct.DPred(m, nil)
	assert.NoError(t, err)
	dCG, err := iter.DPred(m, nil)
	assert.NoError(t, err)
	for i := range dLU {
		assert.InDeltaf(t, dLU[i], dCG[i], 1.e-6*math.Max(1, math.Abs(dLU[i])), "CG prediction, datum %v", i)
	}
}

func TestValidation(t *testing.T) {
	msh := testMesh()
	{
		_, err := NewCellCentered(Config{Survey: testSurvey()})
		assert.NotNil(t, err)
		_, err = NewCellCentered(Config{Mesh: msh})
		assert.NotNil(t, err)
		_, err = NewCellCentered(Config{Mesh: msh, Survey: survey.NewSurvey(nil)})
		assert.NotNil(t, err)
		_, err = NewCellCentered(Config{Mesh: msh, Survey: testSurvey(), BC: BCType("Robin")})
		assert.NotNil(t, err)
		_, err = NewNodal(Config{Mesh: msh, Survey: testSurvey(), BC: Dirichlet})
		assert.NotNil(t, err)
	}
	{
		s, err := NewCellCentered(Config{Mesh: msh, Survey: testSurvey()})
		assert.NoError(t, err)
		_, err = s.Fields(nil) // no model set yet
		assert.NotNil(t, err)
		_, err = s.Fields(utils.VecConst(-1, msh.NC())) // nonphysical conductivity
		assert.NotNil(t, err)
		_, err = s.Fields(utils.VecConst(0.01, 3)) // wrong model length
		assert.NotNil(t, err)
	}
	{
		s, err := NewCellCentered(Config{Mesh: msh, Survey: testSurvey()})
		assert.NoError(t, err)
		m := uniformModel(msh, 0.01)
		_, err = s.Jvec(m, utils.VecConst(0, 3), nil)
		assert.NotNil(t, err)
		_, err = s.Jtvec(m, utils.VecConst(0, s.Survey.ND()+1), nil)
		assert.NotNil(t, err)
		_, err = s.GetJtJDiag(m, utils.VecConst(1, 2))
		assert.NotNil(t, err)
	}
	// a wrong-length model paired with previously computed fields is
	// reported as an error from the sensitivity routines, not a panic
	for _, nodal := range []bool{false, true} {
		var (
			s   *Simulation
			err error
			cfg = Config{Mesh: msh, Survey: testSurvey()}
		)
		if nodal {
			s, err = NewNodal(cfg)
		} else {
			s, err = NewCellCentered(cfg)
		}
		assert.NoError(t, err)
		f, err := s.Fields(uniformModel(msh, 0.01))
		assert.NoError(t, err)
		bad := utils.VecConst(0.01, 3)
		assert.NotPanics(t, func() {
			_, err = s.Jvec(bad, utils.VecConst(0, 3), f)
		})
		assert.NotNil(t, err)
		assert.NotPanics(t, func() {
			_, err = s.Jtvec(bad, utils.VecConst(0, s.Survey.ND()), f)
		})
		assert.NotNil(t, err)
	}
}
