package interpret

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reReverb = regexp.MustCompile(`^(?:add|put|throw) (?:a |some )?(hall|plate|room|chamber)? ?(?:reverb|verb|rev) (?:on|to|on to|onto) (?:the )?(.+)$`)

	reDelay = regexp.MustCompile(`^(?:add|put|throw) (?:a |some )?(slapback|slap|ping pong|tape)? ?(?:delay|echo) (?:on|to|on to|onto) (?:the )?(.+)$`)
)

func matchEffects(m *Matchers, text string, _ Session) (MatchCandidate, bool) {
	if mm := reReverb.FindStringSubmatch(text); mm != nil {
		flavor := mm[1]
		if flavor == "" {
			flavor = "hall"
		}
		if cand, ok := m.insertCandidate(flavor+"_reverb", mm[2]); ok {
			return cand, true
		}
	}
	if mm := reDelay.FindStringSubmatch(text); mm != nil {
		flavor := mm[1]
		switch flavor {
		case "slap", "slapback":
			flavor = "slapback"
		case "ping pong":
			flavor = "pingpong"
		case "":
			flavor = "mono"
		}
		if cand, ok := m.insertCandidate(flavor+"_delay", mm[2]); ok {
			return cand, true
		}
	}
	return MatchCandidate{}, false
}

func (m *Matchers) insertCandidate(insertType, target string) (MatchCandidate, bool) {
	tr, ok := m.resolveTarget(target)
	if !ok {
		return MatchCandidate{}, false
	}
	c := newCandidate(CategoryEffects, 0.85, tr.strength, certaintyKeyword)
	c.Slots[slotNum] = strconv.Itoa(tr.num)
	c.Slots[slotInsertType] = insertType
	c.Slots[slotTarget] = tr.desc
	return c, true
}

var (
	reCompress = regexp.MustCompile(`^(?:compress|squash|put a comp(?:ressor)? on) (?:the )?(.+)$`)
	reGate     = regexp.MustCompile(`^gate (?:the )?(.+)$`)
	reLimit    = regexp.MustCompile(`^(?:limit|put a limiter on) (?:the )?(.+)$`)

	reCompRatio = regexp.MustCompile(`^(?:set )?(?:the )?comp(?:ressor)? ratio (?:on |for )?(.+?) to (\d+)(?: to 1)?$`)

	reCompThreshold = regexp.MustCompile(`^(?:set )?(?:the )?comp(?:ressor)? threshold (?:on |for )?(.+?) (?:to|at) (.+)$`)
)

func matchDynamics(m *Matchers, text string, _ Session) (MatchCandidate, bool) {
	if mm := reCompRatio.FindStringSubmatch(text); mm != nil {
		if tr, ok := m.resolveTarget(mm[1]); ok {
			ratio, err := strconv.Atoi(mm[2])
			if err == nil && ratio > 0 {
				return dynCandidate(0.9, tr, "Compressor", "Ratio", ratio*100), true
			}
		}
	}
	if mm := reCompThreshold.FindStringSubmatch(text); mm != nil {
		if tr, ok := m.resolveTarget(mm[1]); ok {
			if lv, ok := m.parseLevel(mm[2], 0, 0, false); ok {
				c := dynCandidate(0.9, tr, "Compressor", "Threshold", lv.centi)
				c.NumericCertainty = lv.certainty
				return c, true
			}
		}
	}
	if mm := reCompress.FindStringSubmatch(text); mm != nil {
		if tr, ok := m.resolveTarget(mm[1]); ok {
			return dynCandidate(0.8, tr, "Compressor", "On", 1), true
		}
	}
	if mm := reGate.FindStringSubmatch(text); mm != nil {
		if tr, ok := m.resolveTarget(mm[1]); ok {
			return dynCandidate(0.8, tr, "Gate", "On", 1), true
		}
	}
	if mm := reLimit.FindStringSubmatch(text); mm != nil {
		if tr, ok := m.resolveTarget(mm[1]); ok {
			return dynCandidate(0.8, tr, "Limiter", "On", 1), true
		}
	}
	return MatchCandidate{}, false
}

func dynCandidate(spec float64, tr targetRef, proc, param string, value int) MatchCandidate {
	c := newCandidate(CategoryDynamics, spec, tr.strength, certaintyKeyword)
	c.Slots[slotNum] = strconv.Itoa(tr.num)
	c.Slots[slotDynProc] = proc
	c.Slots[slotDynParam] = param
	c.Slots[slotDynValue] = strconv.Itoa(value)
	c.Slots[slotTarget] = tr.desc
	return c
}

// Pronoun/ellipsis commands. The matcher resolves the reference against the
// session's last addressed target; when none exists the candidate is still
// produced so the generator can report an ambiguous reference.
var (
	reCtxMove = regexp.MustCompile(`^(?:bring|pull|push|turn|take|bump|nudge) (?:it|that|this) (up|down)(?: (?:to |at |by )?(.+))?$`)
	reCtxSet  = regexp.MustCompile(`^(?:set|put|park) (?:it|that|this) (?:to|at) (.+)$`)
	reCtxMute = regexp.MustCompile(`^(mute|kill|unmute|restore|solo) (?:it|that|this)$`)
	reCtxPan  = regexp.MustCompile(`^pan (?:it|that|this)(?: to)?(?: the)? (.+)$`)
)

func matchContext(m *Matchers, text string, sess Session) (MatchCandidate, bool) {
	ref, haveRef := ChannelRef{}, false
	if sess != nil {
		ref, haveRef = sess.LastChannel()
	}

	if mm := reCtxMove.FindStringSubmatch(text); mm != nil {
		dir := 1
		if mm[1] == "down" {
			dir = -1
		}
		var lv levelValue
		if haveRef && ref.Kind == RefChannel {
			var ok bool
			lv, ok = m.levelFor(sess, ref.Index+1, mm[2], dir)
			if !ok {
				lv = m.inferredLevel(dir, 0, false)
			}
		} else {
			lv = m.inferredLevel(dir, 0, false)
		}
		return ctxCandidate(ref, haveRef, "fader", map[string]string{slotLevel: strconv.Itoa(lv.centi)}, lv.certainty), true
	}

	if mm := reCtxSet.FindStringSubmatch(text); mm != nil {
		if lv, ok := m.parseLevel(mm[1], 0, 0, false); ok {
			return ctxCandidate(ref, haveRef, "fader", map[string]string{slotLevel: strconv.Itoa(lv.centi)}, lv.certainty), true
		}
		return MatchCandidate{}, false
	}

	if mm := reCtxMute.FindStringSubmatch(text); mm != nil {
		op, state := "mute", 1
		switch mm[1] {
		case "unmute", "restore":
			state = 0
		case "solo":
			op = "solo"
		}
		return ctxCandidate(ref, haveRef, op, map[string]string{slotState: strconv.Itoa(state)}, certaintyExplicit), true
	}

	if mm := reCtxPan.FindStringSubmatch(text); mm != nil {
		if pan, certainty, ok := m.parsePan(mm[1]); ok {
			return ctxCandidate(ref, haveRef, "pan", map[string]string{slotPan: strconv.Itoa(pan)}, certainty), true
		}
	}

	return MatchCandidate{}, false
}

const (
	slotCtxOp   = "ctx_op"
	slotCtxKind = "ctx_kind"
)

func ctxCandidate(ref ChannelRef, haveRef bool, op string, extra map[string]string, certainty float64) MatchCandidate {
	// Terminology strength sits at the relative-adjective fallback tier.
	c := newCandidate(CategoryContext, 0.6, 0.5, certainty)
	c.Slots[slotCtxOp] = op
	if haveRef {
		c.Slots[slotCtxKind] = string(ref.Kind)
		c.Slots[slotNum] = strconv.Itoa(ref.Index + 1)
		c.Slots[slotTarget] = strings.TrimSpace(string(ref.Kind) + " " + strconv.Itoa(ref.Index+1))
	}
	for k, v := range extra {
		c.Slots[k] = v
	}
	return c
}
