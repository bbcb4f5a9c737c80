package survey

import (
	"fmt"

	"github.com/geonum/godcr/utils"
)

// MiniSurvey is a reduced pole-pole survey derived from a dipole-dipole
// survey by deduplicating (current electrode, potential electrode) pairs.
// The reduced sources all inject unit current; the four-term reciprocity
// identity, scaled by the original source amperage, reconstructs each
// original datum:
//
//	V(AB,MN) = I * (V1(A,M) - V1(A,N) - V1(B,M) + V1(B,N))
//
// invAM holds, per original datum, the index of its AM term in the
// reduced data vector. The AN/BM/BN terms exist only for dipole
// receivers/sources, so they are kept as compressed (datum, reduced
// index) pairs.
type MiniSurvey struct {
	Survey *Survey

	nD, nDMini int
	scale      []float64 // original source current per datum
	invAM      utils.Index
	anData     utils.Index
	anMini     utils.Index
	bmData     utils.Index
	bmMini     utils.Index
	bnData     utils.Index
	bnMini     utils.Index
}

type poleCollector struct {
	txKeys  []string
	txLocs  [][]float64
	txIndex map[string]int
	rxKeys  [][]string
	rxLocs  [][][]float64
	rxIndex []map[string]int
}

func locKey(loc []float64) string {
	return fmt.Sprintf("%.12g|%.12g|%.12g", loc[0], loc[1], at(loc, 2))
}

func at(loc []float64, i int) float64 {
	if i < len(loc) {
		return loc[i]
	}
	return 0
}

// add registers a (tx pole, rx pole) pair and returns its (source, local
// receiver) position in the reduced survey.
func (pc *poleCollector) add(tx, rx []float64) (txID, rxLocal int) {
	tk := locKey(tx)
	txID, ok := pc.txIndex[tk]
	if !ok {
		txID = len(pc.txKeys)
		pc.txIndex[tk] = txID
		pc.txKeys = append(pc.txKeys, tk)
		pc.txLocs = append(pc.txLocs, tx)
		pc.rxKeys = append(pc.rxKeys, nil)
		pc.rxLocs = append(pc.rxLocs, nil)
		pc.rxIndex = append(pc.rxIndex, make(map[string]int))
	}
	rk := locKey(rx)
	rxLocal, ok = pc.rxIndex[txID][rk]
	if !ok {
		rxLocal = len(pc.rxKeys[txID])
		pc.rxIndex[txID][rk] = rxLocal
		pc.rxKeys[txID] = append(pc.rxKeys[txID], rk)
		pc.rxLocs[txID] = append(pc.rxLocs[txID], rx)
	}
	return
}

// Reduce builds the mini pole-pole survey for s. It returns nil when the
// survey carries no dipole redundancy (all sources and receivers already
// poles with no repeated electrode pairs); callers treat nil as a
// passthrough.
func Reduce(s *Survey) *MiniSurvey {
	var (
		pc = &poleCollector{txIndex: make(map[string]int)}
		nD = s.ND()
	)
	type ref struct{ txID, rxLocal int }
	type term struct {
		datum int
		ref
	}
	var (
		refAM     = make([]ref, 0, nD)
		scale     = make([]float64, 0, nD)
		termsAN   []term
		termsBM   []term
		termsBN   []term
		anyDipole bool
		datum     int
	)
	for _, src := range s.Sources {
		a := src.ElectrodeA()
		b, srcIsDipole := src.ElectrodeB()
		for _, rx := range src.Receivers() {
			locsM := rx.LocationsM()
			locsN := rx.LocationsN()
			for r := range locsM {
				txID, rxLocal := pc.add(a, locsM[r])
				refAM = append(refAM, ref{txID, rxLocal})
				scale = append(scale, src.Current())
				if locsN != nil {
					anyDipole = true
					ti, ri := pc.add(a, locsN[r])
					termsAN = append(termsAN, term{datum, ref{ti, ri}})
				}
				if srcIsDipole {
					anyDipole = true
					ti, ri := pc.add(b, locsM[r])
					termsBM = append(termsBM, term{datum, ref{ti, ri}})
					if locsN != nil {
						ti, ri = pc.add(b, locsN[r])
						termsBN = append(termsBN, term{datum, ref{ti, ri}})
					}
				}
				datum++
			}
		}
	}

	// Reduced data index = source offset + local receiver position.
	offsets := make([]int, len(pc.txLocs))
	var nDMini int
	for i := range pc.txLocs {
		offsets[i] = nDMini
		nDMini += len(pc.rxLocs[i])
	}
	if !anyDipole && nDMini == nD {
		return nil
	}

	ms := &MiniSurvey{
		nD:     nD,
		nDMini: nDMini,
		scale:  scale,
		invAM:  utils.NewIndex(nD),
	}
	for i := 0; i < nD; i++ {
		ms.invAM[i] = offsets[refAM[i].txID] + refAM[i].rxLocal
	}
	split := func(terms []term) (data, mini utils.Index) {
		for _, tm := range terms {
			data = append(data, tm.datum)
			mini = append(mini, offsets[tm.txID]+tm.rxLocal)
		}
		return
	}
	ms.anData, ms.anMini = split(termsAN)
	ms.bmData, ms.bmMini = split(termsBM)
	ms.bnData, ms.bnMini = split(termsBN)

	sources := make([]Source, len(pc.txLocs))
	for i, tx := range pc.txLocs {
		rx := NewPoleRx(pc.rxLocs[i])
		sources[i] = NewPoleSrc([]Receiver{rx}, tx, 1.0)
	}
	ms.Survey = NewSurvey(sources)
	return ms
}

// ND is the original dipole-dipole data count.
func (ms *MiniSurvey) ND() int { return ms.nD }

// NDMini is the reduced pole-pole data count.
func (ms *MiniSurvey) NDMini() int { return ms.nDMini }

// ExpandData reconstructs the full dipole-dipole data vector from reduced
// unit-current pole evaluations via the four-term combination, scaled by
// each datum's source current. Terms whose electrode is absent contribute
// zero.
func (ms *MiniSurvey) ExpandData(mini []float64) (out []float64, err error) {
	if len(mini) != ms.nDMini {
		err = fmt.Errorf("reduced data length mismatch: want %v, got %v", ms.nDMini, len(mini))
		return
	}
	out = ms.invAM.Gather(mini)
	ms.anData.ScatterAdd(out, ms.anMini.Gather(mini), -1)
	ms.bmData.ScatterAdd(out, ms.bmMini.Gather(mini), -1)
	ms.bnData.ScatterAdd(out, ms.bnMini.Gather(mini), 1)
	out = utils.VecElMul(out, ms.scale)
	return
}

// ReduceData is the transpose of ExpandData: it scatters a dipole-dipole
// data-space vector back onto the reduced poles. Accumulation is additive
// because distinct original data may reference the same reduced pole.
func (ms *MiniSurvey) ReduceData(v []float64) (out []float64, err error) {
	if len(v) != ms.nD {
		err = fmt.Errorf("data length mismatch: want %v, got %v", ms.nD, len(v))
		return
	}
	w := utils.VecElMul(v, ms.scale)
	out = make([]float64, ms.nDMini)
	ms.invAM.ScatterAdd(out, w, 1)
	ms.anMini.ScatterAdd(out, ms.anData.Gather(w), -1)
	ms.bmMini.ScatterAdd(out, ms.bmData.Gather(w), -1)
	ms.bnMini.ScatterAdd(out, ms.bnData.Gather(w), 1)
	return
}

// ExpandDataMat applies ExpandData to every column of a (NDMini x k) matrix.
func (ms *MiniSurvey) ExpandDataMat(mini utils.Matrix) (out utils.Matrix, err error) {
	nr, nc := mini.Dims()
	if nr != ms.nDMini {
		err = fmt.Errorf("reduced data row mismatch: want %v, got %v", ms.nDMini, nr)
		return
	}
	out = utils.NewMatrix(ms.nD, nc)
	for j := 0; j < nc; j++ {
		var col []float64
		if col, err = ms.ExpandData(mini.Col(j)); err != nil {
			return
		}
		out.SetCol(j, col)
	}
	return
}
