// Package maps provides model-to-conductivity mappings and their
// directional derivatives, used to chain the simulation's system-matrix
// derivative back to model space.
package maps

import (
	"math"

	"github.com/geonum/godcr/utils"
)

// Map transforms a model vector into per-cell conductivities. Deriv is the
// directional derivative of Apply: forward mode maps a model-space vector
// to property space, adjoint mode maps property space back to model space.
type Map interface {
	Apply(m []float64) []float64
	Deriv(m, v []float64, adjoint bool) []float64
}

// IdentityMap treats the model directly as conductivity.
type IdentityMap struct{}

func (IdentityMap) Apply(m []float64) []float64 { return utils.VecCopy(m) }

func (IdentityMap) Deriv(m, v []float64, adjoint bool) []float64 { return utils.VecCopy(v) }

// ExpMap treats the model as log-conductivity, keeping the property
// strictly positive for any real model.
type ExpMap struct{}

func (ExpMap) Apply(m []float64) []float64 {
	return utils.VecApply(m, math.Exp)
}

// Deriv is diagonal, so forward and adjoint coincide.
func (e ExpMap) Deriv(m, v []float64, adjoint bool) []float64 {
	return utils.VecElMul(e.Apply(m), v)
}
