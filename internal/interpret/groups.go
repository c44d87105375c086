package interpret

import (
	"regexp"
	"strconv"

	"github.com/mixctl/mixctl-core/internal/terms"
)

var (
	reSceneRecall = regexp.MustCompile(`^(?:recall|load|go to|switch to|call up) (?:scene|preset|snapshot|memory) (\S+)$`)
	reSceneStore  = regexp.MustCompile(`^(?:store|save) (?:scene|preset|snapshot|memory) (\S+)$`)
	reSceneBare   = regexp.MustCompile(`^(?:scene|preset|snapshot|memory) (\S+)$`)
)

func matchScene(m *Matchers, text string, _ Session) (MatchCandidate, bool) {
	if mm := reSceneRecall.FindStringSubmatch(text); mm != nil {
		return sceneCandidate(m, 1.0, mm[1], "recall")
	}
	if mm := reSceneStore.FindStringSubmatch(text); mm != nil {
		return sceneCandidate(m, 1.0, mm[1], "store")
	}
	if mm := reSceneBare.FindStringSubmatch(text); mm != nil {
		return sceneCandidate(m, 0.7, mm[1], "recall")
	}
	return MatchCandidate{}, false
}

func sceneCandidate(m *Matchers, spec float64, numText, op string) (MatchCandidate, bool) {
	n, ok := m.table.Number(numText)
	if !ok {
		return MatchCandidate{}, false
	}
	c := newCandidate(CategoryScene, spec, terms.StrengthExact, certaintyExplicit)
	c.Slots[slotScene] = strconv.Itoa(n)
	c.Slots[slotSceneOp] = op
	c.Slots[slotTarget] = "scene " + numText
	return c, true
}

var (
	reDCASet = regexp.MustCompile(`^(?:set )?(?:dca|vca|group) (\S+) (?:to|at) (.+)$`)

	reDCAMove = regexp.MustCompile(`^(?:bring|pull|push) (up|down) (?:dca|vca|group) (\S+)$`)

	reDCAHot = regexp.MustCompile(`^(?:dca|vca|group) (\S+) (hot|loud|cooking)$`)

	reDCAMute   = regexp.MustCompile(`^(?:mute|kill|turn off) (?:dca|vca|group) (\S+)$`)
	reDCAUnmute = regexp.MustCompile(`^(?:unmute|restore|turn on) (?:dca|vca|group) (\S+)$`)

	reDCALabel = regexp.MustCompile(`^(?:label|name|call) (?:dca|vca|group) (\S+) (?:as )?(.+)$`)
)

func matchDCA(m *Matchers, text string, sess Session) (MatchCandidate, bool) {
	if mm := reDCASet.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[1]); ok {
			if lv, ok := m.parseLevel(mm[2], 0, 0, false); ok {
				return dcaFaderCandidate(1.0, n, "dca "+mm[1], lv), true
			}
		}
	}
	if mm := reDCAMove.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[2]); ok {
			dir := 1
			if mm[1] == "down" {
				dir = -1
			}
			return dcaFaderCandidate(0.9, n, "dca "+mm[2], m.inferredLevel(dir, 0, false)), true
		}
	}
	if mm := reDCAHot.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[1]); ok {
			// Pushing a whole group hot runs a touch above a single channel.
			lv := levelValue{centi: 500, certainty: certaintyKeyword}
			return dcaFaderCandidate(0.85, n, "dca "+mm[1], lv), true
		}
	}
	if mm := reDCAMute.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[1]); ok {
			return dcaSwitchCandidate(1.0, n, "dca "+mm[1], 0), true
		}
	}
	if mm := reDCAUnmute.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[1]); ok {
			return dcaSwitchCandidate(1.0, n, "dca "+mm[1], 1), true
		}
	}
	if mm := reDCALabel.FindStringSubmatch(text); mm != nil {
		if n, ok := m.table.Number(mm[1]); ok {
			c := newCandidate(CategoryDCA, 1.0, terms.StrengthExact, certaintyExplicit)
			c.Slots[slotNum] = strconv.Itoa(n)
			c.Slots[slotLabel] = mm[2]
			c.Slots[slotTarget] = "dca " + mm[1]
			return c, true
		}
	}
	return MatchCandidate{}, false
}

func dcaFaderCandidate(spec float64, num int, desc string, lv levelValue) MatchCandidate {
	c := newCandidate(CategoryDCA, spec, terms.StrengthExact, lv.certainty)
	c.Slots[slotNum] = strconv.Itoa(num)
	c.Slots[slotLevel] = strconv.Itoa(lv.centi)
	c.Slots[slotTarget] = desc
	return c
}

// dcaSwitchCandidate models DCA mute via Fader/On: state 0 is muted.
func dcaSwitchCandidate(spec float64, num int, desc string, state int) MatchCandidate {
	c := newCandidate(CategoryDCA, spec, terms.StrengthExact, certaintyExplicit)
	c.Slots[slotNum] = strconv.Itoa(num)
	c.Slots[slotState] = strconv.Itoa(state)
	c.Slots[slotTarget] = desc
	return c
}
