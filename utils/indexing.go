package utils

type Index []int

func NewIndex(N int) (I Index) {
	return make(Index, N)
}

func NewRange(rmin, rmax int) (r Index) {
	var (
		size = rmax - rmin + 1 // INCLUSIVE RANGE
	)
	r = make(Index, size)
	for i := range r {
		r[i] = i + rmin
	}
	return
}

func (I Index) Add(val int) (r Index) {
	r = make(Index, len(I))
	for i, ival := range I {
		r[i] = val + ival
	}
	return r
}

func (I Index) Subset(J Index) (r Index) {
	r = make(Index, len(J))
	for j, val := range J {
		r[j] = I[val]
	}
	return
}

// Gather returns v evaluated at the indices of I.
func (I Index) Gather(v []float64) (r []float64) {
	r = make([]float64, len(I))
	for i, ind := range I {
		r[i] = v[ind]
	}
	return
}

// ScatterAdd accumulates src into dst at the indices of I, scaled by sign.
// Accumulation (not assignment) is required when I contains repeated indices.
func (I Index) ScatterAdd(dst, src []float64, sign float64) {
	for i, ind := range I {
		dst[ind] += sign * src[i]
	}
}
