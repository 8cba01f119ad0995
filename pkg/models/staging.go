package models

// ConfidenceScores carries the per-axis and overall confidence values for a
// staging result. Values are always present and clamped to [0,1]; they are
// zero when the corresponding axis could not be assessed.
type ConfidenceScores struct {
	T     float64 `json:"t"`
	N     float64 `json:"n"`
	M     float64 `json:"m"`
	Stage float64 `json:"stage"`
}

// StagingResult is the caller-facing outcome of a single CT analysis.
//
// Invariants maintained by the assembler:
//   - Error non-nil implies T, N, M and Stage are all nil.
//   - Stage non-nil implies T, N and M are all non-nil valid codes whose
//     combination appears in the AJCC table.
type StagingResult struct {
	T           *string          `json:"t"`
	N           *string          `json:"n"`
	M           *string          `json:"m"`
	Stage       *string          `json:"stage"`
	Confidences ConfidenceScores `json:"confidences"`
	Error       *string          `json:"error,omitempty"`
}

// Diagnostic reports whether the result carries a usable stage.
func (r *StagingResult) Diagnostic() bool {
	return r.Error == nil && r.Stage != nil
}

// AnalysisResponse is the JSON envelope returned by the /analyze endpoint.
type AnalysisResponse struct {
	Success bool           `json:"success"`
	Data    *StagingResult `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}
