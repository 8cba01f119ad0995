package staging

// TNM category codes for NSCLC per the AJCC 8th-edition manual. The model is
// instructed to answer with exactly these strings; anything else is rejected
// by the validator before it can reach the resolver.

// TCategory describes the primary tumor.
type TCategory string

const (
	T0  TCategory = "T0"
	T1a TCategory = "T1a"
	T1b TCategory = "T1b"
	T1c TCategory = "T1c"
	T2a TCategory = "T2a"
	T2b TCategory = "T2b"
	T3  TCategory = "T3"
	T4  TCategory = "T4"
)

// NCategory describes regional lymph-node involvement.
type NCategory string

const (
	N0 NCategory = "N0"
	N1 NCategory = "N1"
	N2 NCategory = "N2"
	N3 NCategory = "N3"
)

// MCategory describes distant metastasis.
type MCategory string

const (
	M0  MCategory = "M0"
	M1a MCategory = "M1a"
	M1b MCategory = "M1b"
	M1c MCategory = "M1c"
)

var (
	tCategories = []TCategory{T0, T1a, T1b, T1c, T2a, T2b, T3, T4}
	nCategories = []NCategory{N0, N1, N2, N3}
	mCategories = []MCategory{M0, M1a, M1b, M1c}
)

// TCodes returns the allowed T codes in schema order.
func TCodes() []string { return codeStrings(tCategories) }

// NCodes returns the allowed N codes in schema order.
func NCodes() []string { return codeStrings(nCategories) }

// MCodes returns the allowed M codes in schema order.
func MCodes() []string { return codeStrings(mCategories) }

func codeStrings[C ~string](codes []C) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}

func (t TCategory) Valid() bool {
	switch t {
	case T0, T1a, T1b, T1c, T2a, T2b, T3, T4:
		return true
	}
	return false
}

func (n NCategory) Valid() bool {
	switch n {
	case N0, N1, N2, N3:
		return true
	}
	return false
}

func (m MCategory) Valid() bool {
	switch m {
	case M0, M1a, M1b, M1c:
		return true
	}
	return false
}

// collapsedT is the coarse T row used for the stage lookup only. Staging
// reports still carry the finer sub-code.
type collapsedT string

const (
	ct1 collapsedT = "T1"
	ct2 collapsedT = "T2"
	ct3 collapsedT = "T3"
	ct4 collapsedT = "T4"
)

// Collapse maps T sub-codes to their parent category for the combination
// table: T1a/T1b/T1c fold into T1 and T2a/T2b into T2. T0 shares the T1 row,
// matching the smallest-tumor behavior of the source table.
func (t TCategory) Collapse() (collapsedT, bool) {
	switch t {
	case T0, T1a, T1b, T1c:
		return ct1, true
	case T2a, T2b:
		return ct2, true
	case T3:
		return ct3, true
	case T4:
		return ct4, true
	}
	return "", false
}
