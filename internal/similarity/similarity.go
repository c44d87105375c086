// Package similarity implements the word-level edit-distance rule that drives
// the adaptive-learning trigger: a rejected attempt is considered a rephrasing
// of an accepted command when their word sequences are within a
// word-count-dependent Levenshtein threshold.
package similarity

import (
	"sort"
	"strings"
)

// MinWords is the smallest command length eligible for comparison. A
// three-word command such as "mute channel 2" still qualifies.
const MinWords = 3

// maxWordCountGap is the word-count difference beyond which a comparison is
// skipped outright: closing a larger gap costs more insertions/deletions than
// any valid threshold allows, so skipping preserves correctness.
const maxWordCountGap = 2

// Result describes one comparison between an accepted command's text and a
// prior attempt. Computed transiently, never persisted.
type Result struct {
	Distance  int
	Threshold int
	Match     bool
}

// Threshold returns the allowed edit distance for a command of n words:
// n-1 for up to five words, n-2 from six words on.
func Threshold(n int) int {
	if n <= 5 {
		return n - 1
	}
	return n - 2
}

// Compare evaluates whether attempt is a plausible rephrasing of accepted.
// Both texts are normalized to lowercase word sets; word order is deliberately
// ignored for language flexibility. The threshold is taken from the accepted
// command's word count.
func Compare(accepted, attempt string) Result {
	a := normalize(accepted)
	b := normalize(attempt)

	threshold := Threshold(len(a))
	if len(a) < MinWords || len(b) < MinWords {
		return Result{Threshold: threshold}
	}
	if gap := len(a) - len(b); gap > maxWordCountGap || gap < -maxWordCountGap {
		return Result{Threshold: threshold}
	}

	d := levenshtein(a, b)
	return Result{Distance: d, Threshold: threshold, Match: d <= threshold}
}

// Eligible reports whether text is long enough to take part in comparisons.
func Eligible(text string) bool {
	return len(strings.Fields(text)) >= MinWords
}

func normalize(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	sort.Strings(words)
	return words
}

// levenshtein computes edit distance over word tokens with unit costs,
// using the two-row formulation.
func levenshtein(a, b []string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
