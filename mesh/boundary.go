package mesh

import (
	"fmt"

	"github.com/geonum/godcr/utils"
)

// BoundarySide collects the boundary faces of one side of the mesh
// (x-/x+/y-/y+/z-/z+), their centroids, the outward orientation sign and
// the distance from each face to its adjacent cell center.
type BoundarySide struct {
	Faces     utils.Index
	Centroids [][]float64
	Sign      float64
	HalfWidth []float64
}

// FaceBoundary enumerates the boundary sides in x-/x+/y-/y+(/z-/z+) order.
func (msh *TensorMesh) FaceBoundary() (sides []BoundarySide) {
	var (
		nx, ny, nz = msh.nCells()
		xn         = nodePositions(msh.X0[0], msh.Hx)
		yn         = nodePositions(msh.X0[1], msh.Hy)
		xc         = cellCenters(msh.X0[0], msh.Hx)
		yc         = cellCenters(msh.X0[1], msh.Hy)
		zn, zc     []float64
	)
	if msh.Dim == 3 {
		zn = nodePositions(msh.X0[2], msh.Hz)
		zc = cellCenters(msh.X0[2], msh.Hz)
	}
	centroid := func(x, y, z float64) []float64 {
		if msh.Dim == 2 {
			return []float64{x, y}
		}
		return []float64{x, y, z}
	}
	xm := BoundarySide{Sign: -1}
	xp := BoundarySide{Sign: 1}
	for k := 0; k < nz; k++ {
		z := 0.0
		if msh.Dim == 3 {
			z = zc[k]
		}
		for j := 0; j < ny; j++ {
			xm.Faces = append(xm.Faces, msh.fxIdx(0, j, k))
			xm.Centroids = append(xm.Centroids, centroid(xn[0], yc[j], z))
			xm.HalfWidth = append(xm.HalfWidth, msh.Hx[0]/2)
			xp.Faces = append(xp.Faces, msh.fxIdx(nx, j, k))
			xp.Centroids = append(xp.Centroids, centroid(xn[nx], yc[j], z))
			xp.HalfWidth = append(xp.HalfWidth, msh.Hx[nx-1]/2)
		}
	}
	ym := BoundarySide{Sign: -1}
	yp := BoundarySide{Sign: 1}
	for k := 0; k < nz; k++ {
		z := 0.0
		if msh.Dim == 3 {
			z = zc[k]
		}
		for i := 0; i < nx; i++ {
			ym.Faces = append(ym.Faces, msh.fyIdx(i, 0, k))
			ym.Centroids = append(ym.Centroids, centroid(xc[i], yn[0], z))
			ym.HalfWidth = append(ym.HalfWidth, msh.Hy[0]/2)
			yp.Faces = append(yp.Faces, msh.fyIdx(i, ny, k))
			yp.Centroids = append(yp.Centroids, centroid(xc[i], yn[ny], z))
			yp.HalfWidth = append(yp.HalfWidth, msh.Hy[ny-1]/2)
		}
	}
	sides = []BoundarySide{xm, xp, ym, yp}
	if msh.Dim == 3 {
		zm := BoundarySide{Sign: -1}
		zp := BoundarySide{Sign: 1}
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				zm.Faces = append(zm.Faces, msh.fzIdx(i, j, 0))
				zm.Centroids = append(zm.Centroids, centroid(xc[i], yc[j], zn[0]))
				zm.HalfWidth = append(zm.HalfWidth, msh.Hz[0]/2)
				zp.Faces = append(zp.Faces, msh.fzIdx(i, j, nz))
				zp.Centroids = append(zp.Centroids, centroid(xc[i], yc[j], zn[nz]))
				zp.HalfWidth = append(zp.HalfWidth, msh.Hz[nz-1]/2)
			}
		}
		sides = append(sides, zm, zp)
	}
	return
}

// FaceBoundaryInd returns the boundary face indices per side, ordered
// x-/x+/y-/y+(/z-/z+).
func (msh *TensorMesh) FaceBoundaryInd() (inds []utils.Index) {
	for _, side := range msh.FaceBoundary() {
		inds = append(inds, side.Faces)
	}
	return
}

// GetBCProjWFSimple returns the boundary projection pair used to fold
// Robin boundary terms into the gradient operator: Pbc (NF x NBF)
// scatters area-weighted boundary values back onto faces, B (NBF x NF)
// selects the boundary faces. Boundary faces are ordered side by side as
// in FaceBoundary.
func (msh *TensorMesh) GetBCProjWFSimple() (Pbc, B utils.CSR) {
	var (
		areas = msh.FaceAreas()
		sides = msh.FaceBoundary()
		nBF   int
	)
	for _, side := range sides {
		nBF += len(side.Faces)
	}
	pbcDOK := utils.NewDOK(msh.NF(), nBF)
	bDOK := utils.NewDOK(nBF, msh.NF())
	var row int
	for _, side := range sides {
		for _, f := range side.Faces {
			pbcDOK.Set(f, row, areas[f])
			bDOK.Set(row, f, 1)
			row++
		}
	}
	Pbc, B = pbcDOK.ToCSR(), bDOK.ToCSR()
	return
}

// GetXBCYBC combines per-side Robin coefficients (alpha, beta, gamma per
// boundary face, sides ordered as in FaceBoundary) into the ghost-value
// weight xBC and the folded gradient weight yBC per boundary face.
// With the boundary value a distance d inside the cell:
//
//	alpha*phi_b + beta*(phi_b - phi_c)/d = gamma
//
// eliminating phi_b gives phi_b = xBC*phi_c + gamma/(alpha + beta/d) with
// xBC = (beta/d)/(alpha + beta/d). yBC carries the outward sign so that
// Grad - Pbc*diag(yBC)*B*AveCC2F reproduces the boundary flux.
func (msh *TensorMesh) GetXBCYBC(alpha, beta, gamma [][]float64) (xBC, yBC []float64, err error) {
	sides := msh.FaceBoundary()
	if len(alpha) != len(sides) || len(beta) != len(sides) || len(gamma) != len(sides) {
		err = fmt.Errorf("boundary coefficients must supply %v sides: got alpha %v, beta %v, gamma %v",
			len(sides), len(alpha), len(beta), len(gamma))
		return
	}
	for s, side := range sides {
		n := len(side.Faces)
		if len(alpha[s]) != n || len(beta[s]) != n || len(gamma[s]) != n {
			err = fmt.Errorf("boundary coefficient length mismatch on side %v: want %v faces, got alpha %v, beta %v, gamma %v",
				s, n, len(alpha[s]), len(beta[s]), len(gamma[s]))
			return
		}
		for i := 0; i < n; i++ {
			d := side.HalfWidth[i]
			x := (beta[s][i] / d) / (alpha[s][i] + beta[s][i]/d)
			xBC = append(xBC, x)
			yBC = append(yBC, side.Sign*(2*x-1))
		}
	}
	return
}
