package interpret

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxInputLength caps accepted fragment length; anything longer is discarded
// before matching.
const MaxInputLength = 200

var (
	punctRe      = regexp.MustCompile(`[^\w\s+.-]`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	numericLevelRe = regexp.MustCompile(`(minus|negative|plus|positive|-|\+)?\s*(\d+(?:\.\d+)?)\s*(?:db|decibels?)?\b`)
	relativeBitRe  = regexp.MustCompile(`\b(?:a (?:bit|little|touch|hair)|slightly|just a (?:bit|touch))\b`)
)

// normalizeText lowercases a fragment and strips punctuation that carries no
// meaning for matching. Hyphens, signs and decimal points survive because
// they appear inside numbers and compound words ("hi-hat", "-6").
func normalizeText(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = punctRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// Numeric-parse certainty tiers for the confidence scorer.
const (
	certaintyExplicit = 1.0
	certaintyKeyword  = 0.85
	certaintyInferred = 0.6
	certaintyNone     = 0.0
)

// levelValue is a parsed fader/send level.
type levelValue struct {
	centi     int
	certainty float64
}

// relative small nudge applied to the last known level, in centi-dB.
const inferredDelta = 200

// Absolute fallbacks when no prior level exists for a relative request.
const (
	defaultBoost = 300
	defaultCut   = -600
)

// parseLevel resolves a spoken level expression to centi-dB. Explicit numbers
// rank highest, terminology keywords next, inferred relative nudges lowest.
// direction is +1/-1 when the surrounding phrase implied one, else 0.
// lastLevel carries the channel's last known level when the session has one.
func (m *Matchers) parseLevel(text string, direction int, lastLevel int, haveLast bool) (levelValue, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return levelValue{}, false
	}

	if relativeBitRe.MatchString(text) {
		return m.inferredLevel(direction, lastLevel, haveLast), true
	}

	// Keyword lookup runs before the numeric regex so that phrases such as
	// "minus infinity" resolve to the protocol sentinel.
	if v, ok := m.table.DBKeyword(text); ok {
		return levelValue{centi: v, certainty: certaintyKeyword}, true
	}

	if mm := numericLevelRe.FindStringSubmatch(text); mm != nil {
		v := parseFloat(mm[2])
		switch mm[1] {
		case "minus", "negative", "-":
			v = -v
		}
		if direction < 0 && v > 0 {
			v = -v
		}
		return levelValue{centi: EncodeDB(v), certainty: certaintyExplicit}, true
	}

	return levelValue{}, false
}

func (m *Matchers) inferredLevel(direction int, lastLevel int, haveLast bool) levelValue {
	if direction == 0 {
		direction = 1
	}
	if haveLast {
		return levelValue{centi: lastLevel + direction*inferredDelta, certainty: certaintyInferred}
	}
	if direction > 0 {
		return levelValue{centi: defaultBoost, certainty: certaintyInferred}
	}
	return levelValue{centi: defaultCut, certainty: certaintyInferred}
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
