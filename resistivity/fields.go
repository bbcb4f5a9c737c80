package resistivity

import (
	"fmt"

	"github.com/geonum/godcr/utils"
)

// Fields holds the potential solutions of one forward solve, one column
// per source in the order the sources were solved. For the DC problem
// the projected field is the potential itself, so the projection
// derivative with respect to the solution is the identity and the direct
// model dependence is zero; both hooks are kept so receivers can name
// which field derivative to invoke.
type Fields struct {
	Phi     utils.Matrix
	locType string
}

func (f *Fields) NSources() int {
	_, nc := f.Phi.Dims()
	return nc
}

// Get returns the potential vector of source i.
func (f *Fields) Get(i int) []float64 {
	if i < 0 || i >= f.NSources() {
		panic(fmt.Errorf("source index %v out of range, fields hold %v sources", i, f.NSources()))
	}
	return f.Phi.Col(i)
}

// LocType names the discretization location the potentials live on.
func (f *Fields) LocType() string { return f.locType }

// PhiDeriv is the forward derivative of the phi projection with respect
// to the solution applied to du (the model perturbation v does not enter
// the projection directly).
func (f *Fields) PhiDeriv(du, v []float64) []float64 { return du }

// PhiDerivAdjoint splits an adjoint projection vector into its
// solution-space and model-space contributions. The model-space part is
// nil for the DC potential.
func (f *Fields) PhiDerivAdjoint(ptv []float64) (dfDuT, dfDmT []float64) {
	return ptv, nil
}
