package interpret

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mixctl/mixctl-core/internal/terms"
)

var (
	reSendChannel = regexp.MustCompile(`^(?:send|route|feed|patch|add) (?:channel|ch|track|trk) (\S+) (?:to|into) (?:mix|aux|bus|monitor|wedge) (\S+)(?: at (.+))?$`)

	reSendInstr = regexp.MustCompile(`^(?:send|route|feed|patch) (?:the )?(.+?) (?:to|into) (?:mix|aux|bus|monitor|wedge) (\S+)(?: at (.+))?$`)

	reSendRemove = regexp.MustCompile(`^(?:remove|take|pull) (?:channel|ch|track|trk) (\S+) (?:from|out of) (?:mix|aux|bus|monitor|wedge) (\S+)$`)
)

func matchRouting(m *Matchers, text string, sess Session) (MatchCandidate, bool) {
	if mm := reSendChannel.FindStringSubmatch(text); mm != nil {
		if cand, ok := m.sendCandidate(sess, 1.0, terms.StrengthExact, mm[1], "channel "+mm[1], mm[2], mm[3], 1); ok {
			return cand, true
		}
	}
	if mm := reSendInstr.FindStringSubmatch(text); mm != nil {
		if im, ok := m.table.ResolveInstrument(mm[1]); ok && im.Channel > 0 {
			if cand, ok := m.sendCandidate(sess, 0.8, im.Strength, strconv.Itoa(im.Channel), im.Canonical, mm[2], mm[3], 1); ok {
				return cand, true
			}
		}
	}
	if mm := reSendRemove.FindStringSubmatch(text); mm != nil {
		if cand, ok := m.sendCandidate(sess, 1.0, terms.StrengthExact, mm[1], "channel "+mm[1], mm[2], "", 0); ok {
			return cand, true
		}
	}
	return MatchCandidate{}, false
}

func (m *Matchers) sendCandidate(sess Session, spec, strength float64, numText, desc, mixText, levelText string, on int) (MatchCandidate, bool) {
	n, ok := m.table.Number(numText)
	if !ok {
		return MatchCandidate{}, false
	}
	mix, ok := m.table.Number(mixText)
	if !ok {
		return MatchCandidate{}, false
	}
	certainty := certaintyExplicit
	c := newCandidate(CategoryRouting, spec, strength, certainty)
	c.Slots[slotNum] = strconv.Itoa(n)
	c.Slots[slotMix] = strconv.Itoa(mix)
	c.Slots[slotState] = strconv.Itoa(on)
	c.Slots[slotTarget] = desc
	if levelText != "" {
		if lv, ok := m.levelFor(sess, n, levelText, 0); ok {
			c.Slots[slotSendLevel] = strconv.Itoa(lv.centi)
			c.NumericCertainty = lv.certainty
		}
	}
	return c, true
}

var (
	rePanChannel = regexp.MustCompile(`^pan (?:channel|ch|track|trk) (\S+)(?: to)?(?: the)? (.+)$`)
	rePanAny     = regexp.MustCompile(`^pan (?:the )?(.+)$`)
	reCenter     = regexp.MustCompile(`^(?:center|centre) (?:the )?(.+)$`)
	rePanNumeric = regexp.MustCompile(`^(-?\d+)(?: percent)?(?: (left|right))?$`)
)

func matchPan(m *Matchers, text string, _ Session) (MatchCandidate, bool) {
	if mm := rePanChannel.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[1]); ok {
			if pan, certainty, ok := m.parsePan(mm[2]); ok {
				return panCandidate(1.0, terms.StrengthExact, n, "channel "+mm[1], pan, certainty), true
			}
		}
	}

	if mm := rePanAny.FindStringSubmatch(text); mm != nil {
		rest := mm[1]
		if pan, phrase, ok := m.panKeywordIn(rest); ok {
			name := strings.TrimSpace(strings.Replace(rest, phrase, "", 1))
			name = strings.TrimSuffix(name, " to the")
			name = strings.TrimSuffix(name, " to")
			if im, ok := m.table.ResolveInstrument(name); ok && im.Channel > 0 {
				return panCandidate(0.8, im.Strength, im.Channel, im.Canonical, pan, certaintyKeyword), true
			}
		}
	}

	if mm := reCenter.FindStringSubmatch(text); mm != nil {
		if im, ok := m.table.ResolveInstrument(mm[1]); ok && im.Channel > 0 {
			return panCandidate(0.8, im.Strength, im.Channel, im.Canonical, 0, certaintyKeyword), true
		}
	}

	return MatchCandidate{}, false
}

// parsePan resolves a spoken pan position: a terminology keyword or an
// explicit signed number, optionally qualified with left/right.
func (m *Matchers) parsePan(text string) (int, float64, bool) {
	if v, ok := m.table.PanPosition(text); ok {
		return v, certaintyKeyword, true
	}
	if mm := rePanNumeric.FindStringSubmatch(strings.TrimSpace(text)); mm != nil {
		v, err := strconv.Atoi(mm[1])
		if err != nil {
			return 0, 0, false
		}
		if mm[2] == "left" && v > 0 {
			v = -v
		}
		return v, certaintyExplicit, true
	}
	return 0, 0, false
}

// panKeywordIn finds the longest pan keyword phrase contained in text.
func (m *Matchers) panKeywordIn(text string) (int, string, bool) {
	for _, phrase := range m.table.PanPhrases() {
		if strings.Contains(text, phrase) {
			v, _ := m.table.PanPosition(phrase)
			return v, phrase, true
		}
	}
	return 0, "", false
}

func panCandidate(spec, strength float64, num int, desc string, pan int, certainty float64) MatchCandidate {
	c := newCandidate(CategoryPan, spec, strength, certainty)
	c.Slots[slotNum] = strconv.Itoa(num)
	c.Slots[slotPan] = strconv.Itoa(pan)
	c.Slots[slotTarget] = desc
	return c
}

var reSpread = regexp.MustCompile(`^(?:spread|widen) (?:out )?(?:the )?(.+?)( wide| wider| out| a bit| slightly)?$`)

func matchStereoWidth(m *Matchers, text string, _ Session) (MatchCandidate, bool) {
	mm := reSpread.FindStringSubmatch(text)
	if mm == nil {
		return MatchCandidate{}, false
	}
	im, ok := m.table.ResolveInstrument(mm[1])
	if !ok || im.Channel <= 0 {
		return MatchCandidate{}, false
	}
	width := 50
	switch strings.TrimSpace(mm[2]) {
	case "wide", "wider", "out":
		width = 100
	case "a bit", "slightly":
		width = 25
	}
	c := newCandidate(CategoryStereoWidth, 0.8, im.Strength, certaintyKeyword)
	c.Slots[slotNum] = strconv.Itoa(im.Channel)
	c.Slots[slotWidth] = strconv.Itoa(width)
	c.Slots[slotTarget] = im.Canonical
	return c, true
}
