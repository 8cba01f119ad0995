package staging

// RawOutput is the untrusted structured response produced by the vision
// model. It mirrors the output schema but carries no validity guarantees:
// codes may be unknown strings, confidences may be out of range, and null
// patterns may be inconsistent. It is consumed exactly once by Validate and
// never exposed downstream unmodified.
type RawOutput struct {
	TStage      string         `json:"t_stage,omitempty"`
	NStage      string         `json:"n_stage,omitempty"`
	MStage      string         `json:"m_stage,omitempty"`
	Confidences RawConfidences `json:"confidence_scores"`
	Error       string         `json:"error,omitempty"`
}

// RawConfidences uses pointers so that an absent confidence can be told apart
// from a reported zero.
type RawConfidences struct {
	T       *float64 `json:"t_confidence,omitempty"`
	N       *float64 `json:"n_confidence,omitempty"`
	M       *float64 `json:"m_confidence,omitempty"`
	Overall *float64 `json:"overall_confidence,omitempty"`
}
