package adjudication

// Scorer combines per-document extraction confidences and validation warnings
// into a single confidence value in [0,1].
//
// The score is the minimum per-document confidence minus a fixed penalty per
// WARNING flag.  BLOCKING flags contribute nothing here; they are handled by
// decision logic directly.  The scorer is deterministic: no randomness, no
// clock.
type Scorer struct {
	policy Policy
}

// NewScorer constructs a Scorer bound to a policy table.
func NewScorer(policy Policy) *Scorer {
	return &Scorer{policy: policy}
}

// Score returns the claim confidence given the present-document confidences
// and the full flag list.
func (s *Scorer) Score(docConfidences []float64, flags []Flag) float64 {
	if len(docConfidences) == 0 {
		return 0
	}
	score := docConfidences[0]
	for _, c := range docConfidences[1:] {
		if c < score {
			score = c
		}
	}
	score -= float64(warningCount(flags)) * s.policy.WarningPenalty
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
