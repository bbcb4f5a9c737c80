// Package survey describes DC resistivity acquisition geometry: current
// sources (pole and dipole electrode pairs), potential receivers, and the
// survey container. It also implements the mini pole-pole reduction that
// deduplicates electrode evaluations across a dipole-dipole survey.
package survey

import (
	"fmt"

	"github.com/geonum/godcr/mesh"
	"github.com/geonum/godcr/utils"
)

// Receiver measures potentials at one or more locations. ND is the number
// of data the receiver produces per source. GetP builds the sparse
// projection from mesh degrees of freedom to data.
type Receiver interface {
	ND() int
	GetP(msh *mesh.TensorMesh, locType string) (utils.CSR, error)
	LocationsM() [][]float64
	LocationsN() [][]float64 // nil for pole receivers
}

// PoleRx measures the potential at each location against remote ground.
type PoleRx struct {
	Locations [][]float64
}

func NewPoleRx(locations [][]float64) *PoleRx {
	return &PoleRx{Locations: locations}
}

func (rx *PoleRx) ND() int                 { return len(rx.Locations) }
func (rx *PoleRx) LocationsM() [][]float64 { return rx.Locations }
func (rx *PoleRx) LocationsN() [][]float64 { return nil }

func (rx *PoleRx) GetP(msh *mesh.TensorMesh, locType string) (utils.CSR, error) {
	return msh.InterpolationMat(rx.Locations, locType)
}

// DipoleRx measures potential differences between paired M and N electrodes.
type DipoleRx struct {
	LocsM, LocsN [][]float64
}

func NewDipoleRx(locsM, locsN [][]float64) (*DipoleRx, error) {
	if len(locsM) != len(locsN) {
		return nil, fmt.Errorf("dipole receiver needs matched electrode lists: len(M) = %v, len(N) = %v", len(locsM), len(locsN))
	}
	return &DipoleRx{LocsM: locsM, LocsN: locsN}, nil
}

func (rx *DipoleRx) ND() int                 { return len(rx.LocsM) }
func (rx *DipoleRx) LocationsM() [][]float64 { return rx.LocsM }
func (rx *DipoleRx) LocationsN() [][]float64 { return rx.LocsN }

func (rx *DipoleRx) GetP(msh *mesh.TensorMesh, locType string) (P utils.CSR, err error) {
	var PM, PN utils.CSR
	if PM, err = msh.InterpolationMat(rx.LocsM, locType); err != nil {
		return
	}
	if PN, err = msh.InterpolationMat(rx.LocsN, locType); err != nil {
		return
	}
	P = PM.AddScaled(-1, PN)
	return
}

// Source injects current at one (pole) or two (dipole) electrodes. Eval
// projects the injection pattern onto mesh degrees of freedom. EvalDeriv
// is the model derivative of the injection, identically zero for this
// PDE; the slot is kept for interface generality.
type Source interface {
	Receivers() []Receiver
	Eval(msh *mesh.TensorMesh, locType string) ([]float64, error)
	EvalDeriv(nM int, v []float64, adjoint bool) ([]float64, bool)
	ElectrodeA() []float64
	ElectrodeB() ([]float64, bool)
	Current() float64
	ND() int
}

type PoleSrc struct {
	Loc []float64
	I   float64
	Rx  []Receiver
}

func NewPoleSrc(rx []Receiver, loc []float64, current float64) *PoleSrc {
	return &PoleSrc{Loc: loc, I: current, Rx: rx}
}

func (s *PoleSrc) Receivers() []Receiver         { return s.Rx }
func (s *PoleSrc) ElectrodeA() []float64         { return s.Loc }
func (s *PoleSrc) ElectrodeB() ([]float64, bool) { return nil, false }
func (s *PoleSrc) Current() float64              { return s.I }

func (s *PoleSrc) Eval(msh *mesh.TensorMesh, locType string) (q []float64, err error) {
	var P utils.CSR
	if P, err = msh.InterpolationMat([][]float64{s.Loc}, locType); err != nil {
		return
	}
	q = P.MulVecT([]float64{s.I})
	return
}

func (s *PoleSrc) EvalDeriv(nM int, v []float64, adjoint bool) ([]float64, bool) {
	return nil, false
}

func (s *PoleSrc) ND() (n int) {
	for _, rx := range s.Rx {
		n += rx.ND()
	}
	return
}

type DipoleSrc struct {
	LocA, LocB []float64
	I          float64
	Rx         []Receiver
}

func NewDipoleSrc(rx []Receiver, locA, locB []float64, current float64) *DipoleSrc {
	return &DipoleSrc{LocA: locA, LocB: locB, I: current, Rx: rx}
}

func (s *DipoleSrc) Receivers() []Receiver         { return s.Rx }
func (s *DipoleSrc) ElectrodeA() []float64         { return s.LocA }
func (s *DipoleSrc) ElectrodeB() ([]float64, bool) { return s.LocB, true }
func (s *DipoleSrc) Current() float64              { return s.I }

func (s *DipoleSrc) Eval(msh *mesh.TensorMesh, locType string) (q []float64, err error) {
	var PA, PB utils.CSR
	if PA, err = msh.InterpolationMat([][]float64{s.LocA}, locType); err != nil {
		return
	}
	if PB, err = msh.InterpolationMat([][]float64{s.LocB}, locType); err != nil {
		return
	}
	q = utils.VecSub(PA.MulVecT([]float64{s.I}), PB.MulVecT([]float64{s.I}))
	return
}

func (s *DipoleSrc) EvalDeriv(nM int, v []float64, adjoint bool) ([]float64, bool) {
	return nil, false
}

func (s *DipoleSrc) ND() (n int) {
	for _, rx := range s.Rx {
		n += rx.ND()
	}
	return
}

// Survey is an ordered sequence of sources, each owning an ordered
// sequence of receivers. Data vectors are ordered by (source, receiver,
// location) traversal.
type Survey struct {
	Sources []Source
}

func NewSurvey(sources []Source) *Survey {
	return &Survey{Sources: sources}
}

func (s *Survey) ND() (n int) {
	for _, src := range s.Sources {
		n += src.ND()
	}
	return
}
