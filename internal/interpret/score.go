package interpret

// Confidence weights. Specificity dominates because a precise pattern hit is
// worth more than strong terminology on a loose one.
const (
	weightSpecificity = 0.5
	weightTerm        = 0.3
	weightNumeric     = 0.2
)

// Score computes the candidate's confidence, clipped to [0, 1].
func Score(c MatchCandidate) float64 {
	s := weightSpecificity*c.Specificity + weightTerm*c.TermStrength + weightNumeric*c.NumericCertainty
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
