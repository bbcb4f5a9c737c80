package mesh

import (
	"fmt"
	"sort"

	"github.com/geonum/godcr/utils"
)

// nearest returns the index of the grid coordinate closest to x.
func nearest(grid []float64, x float64) int {
	i := sort.SearchFloat64s(grid, x)
	if i == 0 {
		return 0
	}
	if i == len(grid) {
		return len(grid) - 1
	}
	if x-grid[i-1] <= grid[i]-x {
		return i - 1
	}
	return i
}

// InterpolationMat builds a sparse point projection matrix from mesh
// degrees of freedom to the given locations. locType selects the
// discretization location: "CC" for cell centers, "N" for nodes.
func (msh *TensorMesh) InterpolationMat(locs [][]float64, locType string) (P utils.CSR, err error) {
	var (
		gx, gy, gz []float64
		idx        func(i, j, k int) int
		nDoF       int
	)
	switch locType {
	case "CC":
		gx, gy = msh.CellCentersX(), msh.CellCentersY()
		if msh.Dim == 3 {
			gz = msh.CellCentersZ()
		}
		idx, nDoF = msh.cellIdx, msh.NC()
	case "N":
		gx = nodePositions(msh.X0[0], msh.Hx)
		gy = nodePositions(msh.X0[1], msh.Hy)
		if msh.Dim == 3 {
			gz = nodePositions(msh.X0[2], msh.Hz)
		}
		idx, nDoF = msh.nodeIdx, msh.NN()
	default:
		err = fmt.Errorf("unknown interpolation location type %q (want \"CC\" or \"N\")", locType)
		return
	}
	dok := utils.NewDOK(len(locs), nDoF)
	for r, loc := range locs {
		if len(loc) != msh.Dim {
			err = fmt.Errorf("location %v has %v coordinates on a %v-D mesh", r, len(loc), msh.Dim)
			return
		}
		i := nearest(gx, loc[0])
		j := nearest(gy, loc[1])
		k := 0
		if msh.Dim == 3 {
			k = nearest(gz, loc[2])
		}
		dok.Set(r, idx(i, j, k), 1)
	}
	P = dok.ToCSR()
	return
}
