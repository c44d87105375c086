package interpret

import (
	"regexp"
	"strconv"

	"github.com/mixctl/mixctl-core/internal/terms"
)

// Channel fader rules, most specific first. Patterns operate on normalized
// text (lowercase, punctuation stripped).
var (
	reFaderSet = regexp.MustCompile(`^(?:set |put )?(?:channel|ch|track|trk|fader|input) (\S+) (?:(?:fader|level|volume) )?(?:to|at) (.+)$`)

	reFaderSlang = regexp.MustCompile(`^(crank|slam|smash) (?:channel|ch|track|trk) (\S+)(?: (?:to|at) (.+))?$`)

	reFaderBury = regexp.MustCompile(`^(bury) (?:channel |ch |track )?(\S+)$`)

	reFaderMove = regexp.MustCompile(`^(?:bring|pull|push|bump|nudge|take|turn) (up|down) (?:channel|ch|track|trk) (\S+)(?: (?:to |at |by )?(.+))?$`)

	reFaderRelative = regexp.MustCompile(`^(?:channel|ch|track|trk) (\S+) (up|down)(?: by)? (.+)$`)

	reFaderInstrMoveHead = regexp.MustCompile(`^(?:bring|pull|push|turn) (up|down) (?:the )?(.+?)(?: (?:to|at) (.+))?$`)

	reFaderInstrMoveTail = regexp.MustCompile(`^(?:bring|pull|push|turn) (?:the )?(.+?) (up|down)(?: (?:to |at |by )?(.+))?$`)

	reFaderInstrSet = regexp.MustCompile(`^(?:set|put|dial in|park) (?:the )?(.+?) (?:to|at) (.+)$`)
)

func matchChannelFader(m *Matchers, text string, sess Session) (MatchCandidate, bool) {
	if mm := reFaderSet.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[1]); ok {
			if lv, ok := m.levelFor(sess, n, mm[2], 0); ok {
				return faderCandidate(1.0, terms.StrengthExact, n, "channel "+mm[1], lv), true
			}
		}
	}

	if mm := reFaderSlang.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[2]); ok {
			if mm[3] != "" {
				if lv, ok := m.levelFor(sess, n, mm[3], 1); ok {
					return faderCandidate(0.95, terms.StrengthExact, n, "channel "+mm[2], lv), true
				}
			}
			v, _ := m.table.DBKeyword(mm[1])
			lv := levelValue{centi: v, certainty: certaintyKeyword}
			return faderCandidate(0.95, terms.StrengthExact, n, "channel "+mm[2], lv), true
		}
	}

	if mm := reFaderBury.FindStringSubmatch(text); mm != nil {
		if tr, ok := m.resolveTarget("channel " + mm[2]); ok {
			v, _ := m.table.DBKeyword(mm[1])
			lv := levelValue{centi: v, certainty: certaintyKeyword}
			return faderCandidate(0.9, tr.strength, tr.num, tr.desc, lv), true
		}
		if tr, ok := m.resolveTarget(mm[2]); ok {
			v, _ := m.table.DBKeyword(mm[1])
			lv := levelValue{centi: v, certainty: certaintyKeyword}
			return faderCandidate(0.8, tr.strength, tr.num, tr.desc, lv), true
		}
	}

	if mm := reFaderMove.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[2]); ok {
			dir := 1
			if mm[1] == "down" {
				dir = -1
			}
			lv, ok := m.levelFor(sess, n, mm[3], dir)
			if !ok {
				lv = m.inferredLevel(dir, 0, false)
			}
			return faderCandidate(0.9, terms.StrengthExact, n, "channel "+mm[2], lv), true
		}
	}

	if mm := reFaderRelative.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[1]); ok {
			if cand, ok := m.relativeFader(sess, n, "channel "+mm[1], terms.StrengthExact, mm[2], mm[3]); ok {
				return cand, true
			}
		}
	}

	if mm := reFaderInstrMoveHead.FindStringSubmatch(text); mm != nil {
		if im, ok := m.table.ResolveInstrument(mm[2]); ok && im.Channel > 0 {
			dir := 1
			if mm[1] == "down" {
				dir = -1
			}
			lv, ok := m.levelFor(sess, im.Channel, mm[3], dir)
			if !ok {
				lv = m.inferredLevel(dir, 0, false)
			}
			return faderCandidate(0.8, im.Strength, im.Channel, im.Canonical, lv), true
		}
	}

	if mm := reFaderInstrMoveTail.FindStringSubmatch(text); mm != nil {
		if im, ok := m.table.ResolveInstrument(mm[1]); ok && im.Channel > 0 {
			if cand, ok := m.relativeFader(sess, im.Channel, im.Canonical, im.Strength, mm[2], mm[3]); ok {
				return cand, true
			}
		}
	}

	if mm := reFaderInstrSet.FindStringSubmatch(text); mm != nil {
		if im, ok := m.table.ResolveInstrument(mm[1]); ok && im.Channel > 0 {
			if lv, ok := m.levelFor(sess, im.Channel, mm[2], 0); ok {
				return faderCandidate(0.8, im.Strength, im.Channel, im.Canonical, lv), true
			}
		}
	}

	return MatchCandidate{}, false
}

// levelFor parses a level expression with the channel's session history as
// the reference point for relative nudges. num is one-based.
func (m *Matchers) levelFor(sess Session, num int, text string, direction int) (levelValue, bool) {
	last, have := 0, false
	if sess != nil {
		last, have = sess.LastLevel(num - 1)
	}
	return m.parseLevel(text, direction, last, have)
}

// relativeFader handles "track 4 up 2 db" style adjustments: when the session
// knows the channel's current level the delta is applied to it, otherwise the
// delta is treated as an absolute offset from unity.
func (m *Matchers) relativeFader(sess Session, num int, desc string, strength float64, dirWord, amount string) (MatchCandidate, bool) {
	dir := 1
	if dirWord == "down" {
		dir = -1
	}
	lv, ok := m.levelFor(sess, num, amount, dir)
	if !ok {
		lv = m.inferredLevel(dir, 0, false)
	} else if lv.certainty == certaintyExplicit {
		// The spoken number is a delta, not an absolute target.
		last, have := 0, false
		if sess != nil {
			last, have = sess.LastLevel(num - 1)
		}
		delta := lv.centi
		if dir < 0 && delta > 0 {
			delta = -delta
		}
		if have {
			lv = levelValue{centi: last + delta, certainty: certaintyKeyword}
		} else {
			lv = levelValue{centi: delta, certainty: certaintyInferred}
		}
	}
	return faderCandidate(0.85, strength, num, desc, lv), true
}

func faderCandidate(spec, strength float64, num int, desc string, lv levelValue) MatchCandidate {
	c := newCandidate(CategoryChannelFader, spec, strength, lv.certainty)
	c.Slots[slotNum] = strconv.Itoa(num)
	c.Slots[slotLevel] = strconv.Itoa(lv.centi)
	c.Slots[slotTarget] = desc
	return c
}

// Mute/solo/label rules.
var (
	reMuteChannel   = regexp.MustCompile(`^(?:mute|kill|cut|dump|turn off) (?:channel|ch|track|trk) (\S+)$`)
	reUnmuteChannel = regexp.MustCompile(`^(?:unmute|restore|bring back|turn on|open) (?:channel|ch|track|trk) (\S+)$`)
	reMuteInstr     = regexp.MustCompile(`^(?:mute|kill|cut|dump|turn off) (?:the )?(.+)$`)
	reUnmuteInstr   = regexp.MustCompile(`^(?:unmute|restore|bring back|turn on|open) (?:the )?(.+)$`)

	reSoloChannel   = regexp.MustCompile(`^(?:solo|cue|pfl) (?:channel|ch|track|trk) (\S+)$`)
	reUnsoloChannel = regexp.MustCompile(`^(?:unsolo|un-solo|clear solo on|solo off on) (?:channel|ch|track|trk) (\S+)$`)
	reSoloInstr     = regexp.MustCompile(`^(?:solo|cue|pfl) (?:the )?(.+)$`)
	reUnsoloInstr   = regexp.MustCompile(`^(?:unsolo|un-solo) (?:the )?(.+)$`)

	reLabelChannel = regexp.MustCompile(`^(?:label|name|call) (?:channel|ch|track|trk) (\S+) (?:as )?(.+)$`)
)

func matchChannelMute(m *Matchers, text string, _ Session) (MatchCandidate, bool) {
	if mm := reMuteChannel.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[1]); ok {
			return switchCandidate(CategoryChannelMute, 1.0, terms.StrengthExact, n, "channel "+mm[1], 1), true
		}
	}
	if mm := reUnmuteChannel.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[1]); ok {
			return switchCandidate(CategoryChannelMute, 1.0, terms.StrengthExact, n, "channel "+mm[1], 0), true
		}
	}
	if mm := reMuteInstr.FindStringSubmatch(text); mm != nil {
		if im, ok := m.table.ResolveInstrument(mm[1]); ok && im.Channel > 0 {
			return switchCandidate(CategoryChannelMute, 0.8, im.Strength, im.Channel, im.Canonical, 1), true
		}
	}
	if mm := reUnmuteInstr.FindStringSubmatch(text); mm != nil {
		if im, ok := m.table.ResolveInstrument(mm[1]); ok && im.Channel > 0 {
			return switchCandidate(CategoryChannelMute, 0.8, im.Strength, im.Channel, im.Canonical, 0), true
		}
	}
	return MatchCandidate{}, false
}

func matchChannelSolo(m *Matchers, text string, _ Session) (MatchCandidate, bool) {
	if mm := reSoloChannel.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[1]); ok {
			return switchCandidate(CategoryChannelSolo, 1.0, terms.StrengthExact, n, "channel "+mm[1], 1), true
		}
	}
	if mm := reUnsoloChannel.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[1]); ok {
			return switchCandidate(CategoryChannelSolo, 1.0, terms.StrengthExact, n, "channel "+mm[1], 0), true
		}
	}
	if mm := reSoloInstr.FindStringSubmatch(text); mm != nil {
		if im, ok := m.table.ResolveInstrument(mm[1]); ok && im.Channel > 0 {
			return switchCandidate(CategoryChannelSolo, 0.8, im.Strength, im.Channel, im.Canonical, 1), true
		}
	}
	if mm := reUnsoloInstr.FindStringSubmatch(text); mm != nil {
		if im, ok := m.table.ResolveInstrument(mm[1]); ok && im.Channel > 0 {
			return switchCandidate(CategoryChannelSolo, 0.8, im.Strength, im.Channel, im.Canonical, 0), true
		}
	}
	return MatchCandidate{}, false
}

func matchChannelLabel(m *Matchers, text string, _ Session) (MatchCandidate, bool) {
	mm := reLabelChannel.FindStringSubmatch(text)
	if mm == nil {
		return MatchCandidate{}, false
	}
	n, ok := m.table.Number(mm[1])
	if !ok {
		return MatchCandidate{}, false
	}
	c := newCandidate(CategoryChannelLabel, 1.0, terms.StrengthExact, certaintyExplicit)
	c.Slots[slotNum] = strconv.Itoa(n)
	c.Slots[slotLabel] = mm[2]
	c.Slots[slotTarget] = "channel " + mm[1]
	return c, true
}

func switchCandidate(cat Category, spec, strength float64, num int, desc string, state int) MatchCandidate {
	c := newCandidate(cat, spec, strength, certaintyExplicit)
	c.Slots[slotNum] = strconv.Itoa(num)
	c.Slots[slotState] = strconv.Itoa(state)
	c.Slots[slotTarget] = desc
	return c
}
