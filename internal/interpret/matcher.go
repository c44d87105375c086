package interpret

import (
	"strings"

	"github.com/mixctl/mixctl-core/internal/terms"
)

// matcherFunc extracts zero or one candidate for its category.
type matcherFunc func(m *Matchers, text string, sess Session) (MatchCandidate, bool)

// Matchers is the full category matcher set. Matchers run independently; the
// single highest-specificity candidate wins, ties broken by the configured
// category priority.
type Matchers struct {
	table *terms.Table
	rank  map[Category]int
	funcs map[Category]matcherFunc
}

// NewMatchers builds the matcher set. priority decides tie-breaks; categories
// missing from it rank last in DefaultPriority order.
func NewMatchers(table *terms.Table, priority []Category) *Matchers {
	if len(priority) == 0 {
		priority = DefaultPriority
	}
	rank := make(map[Category]int, len(DefaultPriority))
	for i, c := range priority {
		rank[c] = i
	}
	for i, c := range DefaultPriority {
		if _, ok := rank[c]; !ok {
			rank[c] = len(priority) + i
		}
	}
	return &Matchers{
		table: table,
		rank:  rank,
		funcs: map[Category]matcherFunc{
			CategoryChannelFader: matchChannelFader,
			CategoryChannelMute:  matchChannelMute,
			CategoryChannelSolo:  matchChannelSolo,
			CategoryChannelLabel: matchChannelLabel,
			CategoryRouting:      matchRouting,
			CategoryPan:          matchPan,
			CategoryStereoWidth:  matchStereoWidth,
			CategoryScene:        matchScene,
			CategoryDCA:          matchDCA,
			CategoryEffects:      matchEffects,
			CategoryDynamics:     matchDynamics,
			CategoryContext:      matchContext,
		},
	}
}

// Match normalizes text, runs every category matcher, and returns the best
// candidate. A false return is the normal "no match" outcome, not an error.
func (m *Matchers) Match(text string, sess Session) (MatchCandidate, bool) {
	norm := normalizeText(text)
	if norm == "" || len(norm) > MaxInputLength {
		return MatchCandidate{}, false
	}

	var best MatchCandidate
	found := false
	for _, cat := range DefaultPriority {
		fn := m.funcs[cat]
		if fn == nil {
			continue
		}
		cand, ok := fn(m, norm, sess)
		if !ok {
			continue
		}
		if !found || cand.Specificity > best.Specificity ||
			(cand.Specificity == best.Specificity && m.rank[cand.Category] < m.rank[best.Category]) {
			best = cand
			found = true
		}
	}
	return best, found
}

// targetRef is a resolved command target: an explicit number or an
// instrument alias with its default channel.
type targetRef struct {
	num      int // one-based
	desc     string
	strength float64
}

// resolveTarget parses "channel 5", "track seven", a bare instrument name, or
// an aliased instrument phrase into a one-based channel number.
func (m *Matchers) resolveTarget(text string) (targetRef, bool) {
	text = strings.TrimSpace(text)
	fields := strings.Fields(text)
	if len(fields) >= 2 {
		switch fields[0] {
		case "channel", "ch", "track", "trk", "input", "strip":
			if n, ok := m.table.Number(fields[1]); ok {
				return targetRef{num: n, desc: "channel " + fields[1], strength: terms.StrengthExact}, true
			}
			return targetRef{}, false
		}
	}
	if im, ok := m.table.ResolveInstrument(text); ok && im.Channel > 0 {
		return targetRef{num: im.Channel, desc: im.Canonical, strength: im.Strength}, true
	}
	return targetRef{}, false
}

func newCandidate(cat Category, spec, term, numeric float64) MatchCandidate {
	return MatchCandidate{
		Category:         cat,
		Slots:            make(map[string]string),
		Specificity:      spec,
		TermStrength:     term,
		NumericCertainty: numeric,
	}
}
