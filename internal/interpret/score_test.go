package interpret

import (
	"math"
	"testing"
)

func TestScoreWeights(t *testing.T) {
	cases := []struct {
		spec, term, numeric float64
		want                float64
	}{
		{1.0, 1.0, 1.0, 1.0},
		{0.95, 1.0, 0.85, 0.945},
		{0.8, 0.7, 0.6, 0.73},
		{0, 0, 0, 0},
	}
	for _, tc := range cases {
		c := MatchCandidate{Specificity: tc.spec, TermStrength: tc.term, NumericCertainty: tc.numeric}
		if got := Score(c); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("Score(%v,%v,%v) = %v, want %v", tc.spec, tc.term, tc.numeric, got, tc.want)
		}
	}
}

func TestScoreClipped(t *testing.T) {
	c := MatchCandidate{Specificity: 2, TermStrength: 2, NumericCertainty: 2}
	if got := Score(c); got != 1.0 {
		t.Fatalf("Score = %v, want clip to 1.0", got)
	}
	c = MatchCandidate{Specificity: -1, TermStrength: -1, NumericCertainty: -1}
	if got := Score(c); got != 0.0 {
		t.Fatalf("Score = %v, want clip to 0.0", got)
	}
}
