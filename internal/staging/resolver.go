package staging

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Stage is the overall AJCC stage.
type Stage string

const (
	StageI   Stage = "I"
	StageII  Stage = "II"
	StageIII Stage = "III"
	StageIV  Stage = "IV"
)

// ErrOutsideTable signals a (T, N, M) combination outside the documented
// combination table. The validator guarantees this is unreachable for valid
// enum inputs, so seeing it means the validator's contract was violated.
type ErrOutsideTable struct {
	T TCategory
	N NCategory
	M MCategory
}

func (e *ErrOutsideTable) Error() string {
	return fmt.Sprintf("staging: combination (%s, %s, %s) outside AJCC table", e.T, e.N, e.M)
}

// stageTable maps collapsed T rows and N columns to the overall stage for
// M0 disease. Any non-M0 value yields stage IV before this table is consulted.
var stageTable = map[collapsedT]map[NCategory]Stage{
	ct1: {N0: StageI, N1: StageII, N2: StageIII, N3: StageIII},
	ct2: {N0: StageI, N1: StageII, N2: StageIII, N3: StageIII},
	ct3: {N0: StageII, N1: StageIII, N2: StageIII, N3: StageIII},
	ct4: {N0: StageIII, N1: StageIII, N2: StageIII, N3: StageIII},
}

// Resolve maps a validated (T, N, M) triple to the overall AJCC stage.
// It is pure and total over the valid code domain: every valid triple maps to
// exactly one of I-IV. Triples outside the domain return *ErrOutsideTable
// rather than a silent default.
func Resolve(t TCategory, n NCategory, m MCategory) (Stage, error) {
	if !t.Valid() || !n.Valid() || !m.Valid() {
		return "", &ErrOutsideTable{T: t, N: n, M: m}
	}

	// Metastatic disease overrides T and N.
	if m != M0 {
		return StageIV, nil
	}

	row, ok := t.Collapse()
	if !ok {
		return "", &ErrOutsideTable{T: t, N: n, M: m}
	}
	stage, ok := stageTable[row][n]
	if !ok {
		return "", &ErrOutsideTable{T: t, N: n, M: m}
	}
	return stage, nil
}

// OverallConfidence combines per-axis confidences under the weakest-link
// policy: the combined stage is only as trustworthy as its least certain
// axis, so the minimum is used rather than an average.
func OverallConfidence(t, n, m float64) float64 {
	return floats.Min([]float64{t, n, m})
}
