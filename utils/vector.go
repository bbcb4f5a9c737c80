package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

func VecConst(val float64, N int) (v []float64) {
	v = make([]float64, N)
	for i := range v {
		v[i] = val
	}
	return
}

func VecCopy(v []float64) (r []float64) {
	r = make([]float64, len(v))
	copy(r, v)
	return
}

// VecElMul returns the elementwise product of a and b.
func VecElMul(a, b []float64) (r []float64) {
	checkLen("VecElMul", a, b)
	r = make([]float64, len(a))
	for i, val := range a {
		r[i] = val * b[i]
	}
	return
}

func VecScale(a float64, v []float64) (r []float64) {
	r = make([]float64, len(v))
	for i, val := range v {
		r[i] = a * val
	}
	return
}

func VecAdd(a, b []float64) (r []float64) {
	checkLen("VecAdd", a, b)
	r = make([]float64, len(a))
	copy(r, a)
	floats.Add(r, b)
	return
}

func VecSub(a, b []float64) (r []float64) {
	checkLen("VecSub", a, b)
	r = make([]float64, len(a))
	copy(r, a)
	floats.Sub(r, b)
	return
}

func VecDot(a, b []float64) float64 {
	checkLen("VecDot", a, b)
	return floats.Dot(a, b)
}

func VecNorm(v []float64) float64 {
	return floats.Norm(v, 2)
}

// VecApply returns f applied elementwise to v.
func VecApply(v []float64, f func(float64) float64) (r []float64) {
	r = make([]float64, len(v))
	for i, val := range v {
		r[i] = f(val)
	}
	return
}

// VecRecip returns the elementwise reciprocal of v.
func VecRecip(v []float64) (r []float64) {
	return VecApply(v, func(x float64) float64 { return 1. / x })
}

func VecMaxAbs(v []float64) (m float64) {
	for _, val := range v {
		m = math.Max(m, math.Abs(val))
	}
	return
}

func checkLen(who string, a, b []float64) {
	if len(a) != len(b) {
		err := fmt.Errorf("dimension mismatch in %s: len(a) = %v, len(b) = %v", who, len(a), len(b))
		panic(err)
	}
}
