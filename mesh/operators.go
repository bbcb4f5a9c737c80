package mesh

import (
	"github.com/geonum/godcr/utils"
)

// FaceDiv returns the discrete divergence operator (NC x NF). Each row
// sums the outward face fluxes of one cell scaled by face area over cell
// volume.
func (msh *TensorMesh) FaceDiv() utils.CSR {
	var (
		nx, ny, nz = msh.nCells()
		vol        = msh.Vol()
		areas      = msh.FaceAreas()
		dok        = utils.NewDOK(msh.NC(), msh.NF())
	)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				c := msh.cellIdx(i, j, k)
				rv := 1. / vol[c]
				fxm, fxp := msh.fxIdx(i, j, k), msh.fxIdx(i+1, j, k)
				fym, fyp := msh.fyIdx(i, j, k), msh.fyIdx(i, j+1, k)
				dok.Set(c, fxm, -areas[fxm]*rv)
				dok.Set(c, fxp, areas[fxp]*rv)
				dok.Set(c, fym, -areas[fym]*rv)
				dok.Set(c, fyp, areas[fyp]*rv)
				if msh.Dim == 3 {
					fzm, fzp := msh.fzIdx(i, j, k), msh.fzIdx(i, j, k+1)
					dok.Set(c, fzm, -areas[fzm]*rv)
					dok.Set(c, fzp, areas[fzp]*rv)
				}
			}
		}
	}
	return dok.ToCSR()
}

// NodalGrad returns the discrete gradient operator from nodes to edges
// (NE x NN), differencing node values over edge lengths.
func (msh *TensorMesh) NodalGrad() utils.CSR {
	var (
		nx, ny, nz = msh.nCells()
		dok        = utils.NewDOK(msh.NE(), msh.NN())
		nzn        = 1
	)
	if msh.Dim == 3 {
		nzn = nz + 1
	}
	for k := 0; k < nzn; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i < nx; i++ {
				e := msh.exIdx(i, j, k)
				rh := 1. / msh.Hx[i]
				dok.Set(e, msh.nodeIdx(i, j, k), -rh)
				dok.Set(e, msh.nodeIdx(i+1, j, k), rh)
			}
		}
	}
	for k := 0; k < nzn; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i <= nx; i++ {
				e := msh.eyIdx(i, j, k)
				rh := 1. / msh.Hy[j]
				dok.Set(e, msh.nodeIdx(i, j, k), -rh)
				dok.Set(e, msh.nodeIdx(i, j+1, k), rh)
			}
		}
	}
	if msh.Dim == 3 {
		for k := 0; k < nz; k++ {
			for j := 0; j <= ny; j++ {
				for i := 0; i <= nx; i++ {
					e := msh.ezIdx(i, j, k)
					rh := 1. / msh.Hz[k]
					dok.Set(e, msh.nodeIdx(i, j, k), -rh)
					dok.Set(e, msh.nodeIdx(i, j, k+1), rh)
				}
			}
		}
	}
	return dok.ToCSR()
}

// AveCC2F returns the cell-center to face averaging operator (NF x NC).
// Interior faces average their two neighbor cells, boundary faces take
// the single adjacent cell.
func (msh *TensorMesh) AveCC2F() utils.CSR {
	var (
		nx, ny, nz = msh.nCells()
		dok        = utils.NewDOK(msh.NF(), msh.NC())
	)
	setPair := func(f, cm, cp int, hasM, hasP bool) {
		switch {
		case hasM && hasP:
			dok.Set(f, cm, 0.5)
			dok.Set(f, cp, 0.5)
		case hasM:
			dok.Set(f, cm, 1)
		default:
			dok.Set(f, cp, 1)
		}
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i <= nx; i++ {
				setPair(msh.fxIdx(i, j, k),
					msh.cellIdx(max(i-1, 0), j, k), msh.cellIdx(min(i, nx-1), j, k),
					i > 0, i < nx)
			}
		}
	}
	for k := 0; k < nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i < nx; i++ {
				setPair(msh.fyIdx(i, j, k),
					msh.cellIdx(i, max(j-1, 0), k), msh.cellIdx(i, min(j, ny-1), k),
					j > 0, j < ny)
			}
		}
	}
	if msh.Dim == 3 {
		for k := 0; k <= nz; k++ {
			for j := 0; j < ny; j++ {
				for i := 0; i < nx; i++ {
					setPair(msh.fzIdx(i, j, k),
						msh.cellIdx(i, j, max(k-1, 0)), msh.cellIdx(i, j, min(k, nz-1)),
						k > 0, k < nz)
				}
			}
		}
	}
	return dok.ToCSR()
}

// AveCC2E returns the cell-center to edge averaging operator (NE x NC).
// Each edge averages the cells sharing it (up to four in 3-D, two in 2-D).
func (msh *TensorMesh) AveCC2E() utils.CSR {
	var (
		nx, ny, nz = msh.nCells()
		dok        = utils.NewDOK(msh.NE(), msh.NC())
		nzn        = 1
	)
	if msh.Dim == 3 {
		nzn = nz + 1
	}
	neighbors1D := func(j, n int) (out []int) {
		if j > 0 {
			out = append(out, j-1)
		}
		if j < n {
			out = append(out, j)
		}
		return
	}
	setEdge := func(e, i int, js, ks []int) {
		w := 1. / float64(len(js)*len(ks))
		for _, jj := range js {
			for _, kk := range ks {
				dok.Set(e, msh.cellIdx(i, jj, kk), w)
			}
		}
	}
	setEdgeX := func(e int, is []int, j int, ks []int) {
		w := 1. / float64(len(is)*len(ks))
		for _, ii := range is {
			for _, kk := range ks {
				dok.Set(e, msh.cellIdx(ii, j, kk), w)
			}
		}
	}
	for k := 0; k < nzn; k++ {
		ks := []int{0}
		if msh.Dim == 3 {
			ks = neighbors1D(k, nz)
		}
		for j := 0; j <= ny; j++ {
			js := neighbors1D(j, ny)
			for i := 0; i < nx; i++ {
				// x edges vary over j, k neighbors
				e := msh.exIdx(i, j, k)
				setEdge(e, i, js, ks)
			}
		}
	}
	for k := 0; k < nzn; k++ {
		ks := []int{0}
		if msh.Dim == 3 {
			ks = neighbors1D(k, nz)
		}
		for j := 0; j < ny; j++ {
			for i := 0; i <= nx; i++ {
				e := msh.eyIdx(i, j, k)
				setEdgeX(e, neighbors1D(i, nx), j, ks)
			}
		}
	}
	if msh.Dim == 3 {
		for k := 0; k < nz; k++ {
			for j := 0; j <= ny; j++ {
				js := neighbors1D(j, ny)
				for i := 0; i <= nx; i++ {
					e := msh.ezIdx(i, j, k)
					is := neighbors1D(i, nx)
					w := 1. / float64(len(is)*len(js))
					for _, ii := range is {
						for _, jj := range js {
							dok.Set(e, msh.cellIdx(ii, jj, k), w)
						}
					}
				}
			}
		}
	}
	return dok.ToCSR()
}
