// Package mesh implements tensor-product finite-volume meshes in two and
// three dimensions, supplying the discrete operators and geometric
// quantities consumed by the resistivity simulation: face divergence,
// nodal gradient, cell-to-face and cell-to-edge averaging, cell volumes,
// boundary face enumeration and boundary-condition projection.
package mesh

import (
	"fmt"
)

type TensorMesh struct {
	Hx, Hy, Hz []float64 // cell widths along each axis; Hz empty for 2-D
	X0         [3]float64
	Dim        int
}

func NewTensorMesh(hx, hy, hz []float64, x0 [3]float64) (msh *TensorMesh, err error) {
	dim := 3
	if len(hz) == 0 {
		dim = 2
	}
	if len(hx) == 0 || len(hy) == 0 {
		err = fmt.Errorf("tensor mesh requires cell widths on x and y: len(hx) = %v, len(hy) = %v", len(hx), len(hy))
		return
	}
	for _, h := range [][]float64{hx, hy, hz} {
		for _, val := range h {
			if val <= 0 {
				err = fmt.Errorf("tensor mesh cell widths must be strictly positive, got %v", val)
				return
			}
		}
	}
	msh = &TensorMesh{
		Hx:  hx,
		Hy:  hy,
		Hz:  hz,
		X0:  x0,
		Dim: dim,
	}
	return
}

func (msh *TensorMesh) nCells() (nx, ny, nz int) {
	nx, ny = len(msh.Hx), len(msh.Hy)
	nz = 1
	if msh.Dim == 3 {
		nz = len(msh.Hz)
	}
	return
}

// NC is the number of cells.
func (msh *TensorMesh) NC() int {
	nx, ny, nz := msh.nCells()
	return nx * ny * nz
}

// NN is the number of nodes.
func (msh *TensorMesh) NN() int {
	nx, ny, nz := msh.nCells()
	if msh.Dim == 2 {
		return (nx + 1) * (ny + 1)
	}
	return (nx + 1) * (ny + 1) * (nz + 1)
}

// NF is the total number of faces, all x faces first, then y, then z.
func (msh *TensorMesh) NF() int {
	nx, ny, nz := msh.nCells()
	if msh.Dim == 2 {
		return (nx+1)*ny + nx*(ny+1)
	}
	return (nx+1)*ny*nz + nx*(ny+1)*nz + nx*ny*(nz+1)
}

// NE is the total number of edges, all x edges first, then y, then z.
func (msh *TensorMesh) NE() int {
	nx, ny, nz := msh.nCells()
	if msh.Dim == 2 {
		return nx*(ny+1) + (nx+1)*ny
	}
	return nx*(ny+1)*(nz+1) + (nx+1)*ny*(nz+1) + (nx+1)*(ny+1)*nz
}

// Linear index helpers. Cells, nodes, faces and edges are numbered with x
// fastest, then y, then z, matching the operator assembly below.
func (msh *TensorMesh) cellIdx(i, j, k int) int {
	nx, ny, _ := msh.nCells()
	return i + nx*j + nx*ny*k
}

func (msh *TensorMesh) nodeIdx(i, j, k int) int {
	nx, ny, _ := msh.nCells()
	return i + (nx+1)*j + (nx+1)*(ny+1)*k
}

func (msh *TensorMesh) fxIdx(i, j, k int) int {
	nx, ny, _ := msh.nCells()
	return i + (nx+1)*j + (nx+1)*ny*k
}

func (msh *TensorMesh) fyIdx(i, j, k int) int {
	nx, ny, nz := msh.nCells()
	off := (nx + 1) * ny * nz
	return off + i + nx*j + nx*(ny+1)*k
}

func (msh *TensorMesh) fzIdx(i, j, k int) int {
	nx, ny, nz := msh.nCells()
	off := (nx+1)*ny*nz + nx*(ny+1)*nz
	return off + i + nx*j + nx*ny*k
}

func (msh *TensorMesh) exIdx(i, j, k int) int {
	nx, ny, _ := msh.nCells()
	return i + nx*j + nx*(ny+1)*k
}

func (msh *TensorMesh) eyIdx(i, j, k int) int {
	nx, ny, nz := msh.nCells()
	off := nx * (ny + 1)
	if msh.Dim == 3 {
		off = nx * (ny + 1) * (nz + 1)
	}
	return off + i + (nx+1)*j + (nx+1)*ny*k
}

func (msh *TensorMesh) ezIdx(i, j, k int) int {
	nx, ny, nz := msh.nCells()
	off := nx*(ny+1)*(nz+1) + (nx+1)*ny*(nz+1)
	return off + i + (nx+1)*j + (nx+1)*(ny+1)*k
}

// nodePositions returns the node coordinates along one axis.
func nodePositions(x0 float64, h []float64) (x []float64) {
	x = make([]float64, len(h)+1)
	x[0] = x0
	for i, val := range h {
		x[i+1] = x[i] + val
	}
	return
}

// cellCenters returns the cell-center coordinates along one axis.
func cellCenters(x0 float64, h []float64) (x []float64) {
	nodes := nodePositions(x0, h)
	x = make([]float64, len(h))
	for i := range h {
		x[i] = 0.5 * (nodes[i] + nodes[i+1])
	}
	return
}

// CellCentersX returns cell-center coordinates along x.
func (msh *TensorMesh) CellCentersX() []float64 { return cellCenters(msh.X0[0], msh.Hx) }

// CellCentersY returns cell-center coordinates along y.
func (msh *TensorMesh) CellCentersY() []float64 { return cellCenters(msh.X0[1], msh.Hy) }

// CellCentersZ returns cell-center coordinates along z; it panics on 2-D meshes.
func (msh *TensorMesh) CellCentersZ() []float64 {
	if msh.Dim != 3 {
		panic("CellCentersZ requires a 3-D mesh")
	}
	return cellCenters(msh.X0[2], msh.Hz)
}

// Vol returns the cell volumes in cell ordering.
func (msh *TensorMesh) Vol() (v []float64) {
	nx, ny, nz := msh.nCells()
	v = make([]float64, msh.NC())
	for k := 0; k < nz; k++ {
		hz := 1.0
		if msh.Dim == 3 {
			hz = msh.Hz[k]
		}
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				v[msh.cellIdx(i, j, k)] = msh.Hx[i] * msh.Hy[j] * hz
			}
		}
	}
	return
}

// FaceAreas returns the face areas in face ordering. 2-D faces have unit depth.
func (msh *TensorMesh) FaceAreas() (a []float64) {
	nx, ny, nz := msh.nCells()
	a = make([]float64, msh.NF())
	hz := func(k int) float64 {
		if msh.Dim == 3 {
			return msh.Hz[k]
		}
		return 1.0
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i <= nx; i++ {
				a[msh.fxIdx(i, j, k)] = msh.Hy[j] * hz(k)
			}
		}
	}
	for k := 0; k < nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i < nx; i++ {
				a[msh.fyIdx(i, j, k)] = msh.Hx[i] * hz(k)
			}
		}
	}
	if msh.Dim == 3 {
		for k := 0; k <= nz; k++ {
			for j := 0; j < ny; j++ {
				for i := 0; i < nx; i++ {
					a[msh.fzIdx(i, j, k)] = msh.Hx[i] * msh.Hy[j]
				}
			}
		}
	}
	return
}
