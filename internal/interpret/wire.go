package interpret

import (
	"strconv"
	"strings"
)

const faderLevelPath = "MIXER:Current/Channel/Fader/Level"

// TargetOf parses the channel or DCA a command addresses out of its wire
// text. Scene commands address the whole console and report false.
func TargetOf(cmd Command) (ChannelRef, bool) {
	fields := strings.Fields(cmd.WireText)
	if len(fields) < 3 || fields[0] != "set" {
		return ChannelRef{}, false
	}
	idx, err := strconv.Atoi(fields[2])
	if err != nil || idx < 0 {
		return ChannelRef{}, false
	}
	kind := RefChannel
	if strings.Contains(fields[1], "/DCA/") {
		kind = RefDCA
	}
	return ChannelRef{Kind: kind, Index: idx}, true
}

// FaderLevelOf reports the zero-based channel and centi-dB level of a
// channel fader command.
func FaderLevelOf(cmd Command) (channel, centi int, ok bool) {
	fields := strings.Fields(cmd.WireText)
	if len(fields) != 5 || fields[0] != "set" || fields[1] != faderLevelPath {
		return 0, 0, false
	}
	channel, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, 0, false
	}
	centi, err = strconv.Atoi(fields[4])
	if err != nil {
		return 0, 0, false
	}
	return channel, centi, true
}
