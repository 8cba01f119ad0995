package staging

import (
	"fmt"

	"github.com/arbovm/levenshtein"
)

// Verdict is the outcome of validating a RawOutput. A diagnostic verdict
// carries a valid (T, N, M) triple with per-axis confidences; a non-diagnostic
// verdict carries only the reason.
type Verdict struct {
	Diagnostic bool
	T          TCategory
	N          NCategory
	M          MCategory
	TConf      float64
	NConf      float64
	MConf      float64
	Reason     string
}

func nonDiagnostic(reason string) Verdict {
	return Verdict{Reason: reason}
}

// Validate checks untrusted model output against the TNM taxonomy and decides
// whether the case is diagnostic. It is the defensive layer between the
// hallucination-prone external model and the clinically interpreted result:
// no invalid code value may pass through to the resolver.
//
// Partial staging is deliberately unsupported. AJCC overall staging requires
// all three axes, so a known T with an unknown N still yields a fully
// non-diagnostic verdict.
func Validate(raw RawOutput) Verdict {
	// The model's own error statement wins over whatever else it produced.
	if raw.Error != "" {
		return nonDiagnostic(raw.Error)
	}

	if raw.TStage != "" && !TCategory(raw.TStage).Valid() {
		return nonDiagnostic(unknownCodeReason("T", raw.TStage, TCodes()))
	}
	if raw.NStage != "" && !NCategory(raw.NStage).Valid() {
		return nonDiagnostic(unknownCodeReason("N", raw.NStage, NCodes()))
	}
	if raw.MStage != "" && !MCategory(raw.MStage).Valid() {
		return nonDiagnostic(unknownCodeReason("M", raw.MStage, MCodes()))
	}

	// A confidence reported for an axis the model left empty means the output
	// is internally contradictory and cannot be trusted.
	if (raw.Confidences.T != nil && raw.TStage == "") ||
		(raw.Confidences.N != nil && raw.NStage == "") ||
		(raw.Confidences.M != nil && raw.MStage == "") {
		return nonDiagnostic("inconsistent model output: confidence reported for an absent category")
	}

	switch {
	case raw.TStage == "":
		return nonDiagnostic("incomplete staging output: T category missing")
	case raw.NStage == "":
		return nonDiagnostic("incomplete staging output: N category missing")
	case raw.MStage == "":
		return nonDiagnostic("incomplete staging output: M category missing")
	}

	return Verdict{
		Diagnostic: true,
		T:          TCategory(raw.TStage),
		N:          NCategory(raw.NStage),
		M:          MCategory(raw.MStage),
		TConf:      clamp01(raw.Confidences.T),
		NConf:      clamp01(raw.Confidences.N),
		MConf:      clamp01(raw.Confidences.M),
	}
}

// clamp01 forces a confidence into [0,1]; an absent value is the least
// trustworthy and maps to 0.
func clamp01(v *float64) float64 {
	if v == nil {
		return 0
	}
	switch {
	case *v < 0:
		return 0
	case *v > 1:
		return 1
	}
	return *v
}

// unknownCodeReason builds the rejection reason for an unrecognized code,
// naming the closest known code when one is plausibly near. The case stays
// non-diagnostic either way; the hint only helps whoever reads the reason.
func unknownCodeReason(axis, got string, known []string) string {
	reason := fmt.Sprintf("unrecognized %s category %q", axis, got)
	if closest, dist := closestCode(got, known); dist > 0 && dist <= 2 {
		reason += fmt.Sprintf(" (closest known code: %s)", closest)
	}
	return reason
}

func closestCode(got string, known []string) (string, int) {
	best, bestDist := "", -1
	for _, code := range known {
		d := levenshtein.Distance(got, code)
		if bestDist < 0 || d < bestDist {
			best, bestDist = code, d
		}
	}
	return best, bestDist
}
