// Package terms holds the professional audio terminology table: the static
// mapping from mixing-desk jargon to canonical instrument names, default
// channel assignments, dB keywords and pan positions.
//
// Lookup is exact first, then prefix, then phonetic: Double Metaphone code
// overlap filters candidates and Jaro-Winkler similarity ranks them, the same
// two-stage scheme used for transcript entity alignment.
package terms

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// Match strengths fed into the confidence scorer.
const (
	StrengthExact    = 1.0
	StrengthFuzzy    = 0.7
	StrengthRelative = 0.5
)

const phoneticThreshold = 0.70

// InstrumentMatch is the result of resolving a spoken instrument reference.
type InstrumentMatch struct {
	Canonical string
	Channel   int // one-based, as spoken
	Strength  float64
}

// Table is the terminology database. Read-only after construction and safe
// for concurrent use.
type Table struct {
	numberWords       map[string]int
	instrumentAliases map[string]string
	defaultChannels   map[string]int
	dbKeywords        map[string]int
	panPositions      map[string]int

	// keyword lists ordered longest-first so multi-word entries win.
	dbKeywordOrder  []string
	panOrder        []string
	instrumentNames []string
}

// NewTable returns the built-in terminology table.
func NewTable() *Table {
	t := &Table{
		numberWords: map[string]int{
			"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
			"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
			"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
			"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
			"nineteen": 19, "twenty": 20, "twenty-one": 21, "twenty-two": 22,
			"twenty-three": 23, "twenty-four": 24, "twenty-five": 25,
			"twenty-six": 26, "twenty-seven": 27, "twenty-eight": 28,
			"twenty-nine": 29, "thirty": 30, "thirty-one": 31,
			"thirty-two": 32, "thirty-three": 33, "thirty-four": 34,
			"thirty-five": 35, "thirty-six": 36, "thirty-seven": 37,
			"thirty-eight": 38, "thirty-nine": 39, "forty": 40,
		},
		instrumentAliases: map[string]string{
			"vocal": "vocals", "vocals": "vocals", "vox": "vocals",
			"lead vocal": "vocals", "lead vox": "vocals",
			"background vocals": "background vocals", "bg vocals": "background vocals", "bg vox": "background vocals",
			"kick": "kick drum", "kick drum": "kick drum", "bass drum": "kick drum", "bd": "kick drum",
			"snare": "snare drum", "snare drum": "snare drum", "sd": "snare drum",
			"hi-hat": "hihat", "hihat": "hihat", "hh": "hihat", "hat": "hihat",
			"overhead": "overheads", "overheads": "overheads", "oh": "overheads", "cymbals": "overheads",
			"bass": "bass guitar", "bass guitar": "bass guitar", "di": "bass guitar",
			"guitar": "electric guitar", "electric guitar": "electric guitar", "gtr": "electric guitar",
			"lead guitar": "electric guitar", "elec": "electric guitar",
			"acoustic": "acoustic guitar", "acoustic guitar": "acoustic guitar", "ac": "acoustic guitar",
			"keys": "keyboard", "keyboard": "keyboard", "kb": "keyboard", "piano": "keyboard",
			"drums": "drums", "strings": "strings",
			"sax": "saxophone", "saxophone": "saxophone",
		},
		defaultChannels: map[string]int{
			"vocals":            1,
			"kick drum":         2,
			"snare drum":        3,
			"hihat":             4,
			"bass guitar":       5,
			"electric guitar":   6,
			"keyboard":          7,
			"acoustic guitar":   8,
			"drums":             9,
			"overheads":         10,
			"strings":           11,
			"saxophone":         12,
			"background vocals": 13,
		},
		dbKeywords: map[string]int{
			"unity": 0, "zero": 0, "nominal": 0, "line level": 0,
			"minus infinity": -32768, "negative infinity": -32768,
			"off": -32768, "kill": -32768,
			"hot": 300, "loud": 300, "cooking": 300, "pushing": 300,
			"crank": 300, "slam": 300, "smash": 300, "cranked": 300,
			"quiet": -1000, "low": -1000, "soft": -1000, "park": -1000,
			"back": -600, "bring down": -600, "take down": -600,
			"bury": -1500, "lose": -1500, "ditch": -1500,
			"boost": 600, "bump": 300, "push": 300, "up": 300,
			"pull": -300,
		},
		panPositions: map[string]int{
			"hard left": -100, "full left": -100,
			"left": -50, "slightly left": -25, "slight left": -25, "little left": -25,
			"center": 0, "centre": 0, "middle": 0, "dead center": 0, "centered": 0,
			"slightly right": 25, "slight right": 25, "little right": 25,
			"right": 50, "hard right": 100, "full right": 100,
		},
	}
	t.dbKeywordOrder = orderedKeys(t.dbKeywords)
	t.panOrder = orderedKeys(t.panPositions)
	for alias := range t.instrumentAliases {
		t.instrumentNames = append(t.instrumentNames, alias)
	}
	sort.Strings(t.instrumentNames)
	return t
}

func orderedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Number parses a spoken number, digits or words.
func (t *Table) Number(word string) (int, bool) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return 0, false
	}
	n := 0
	numeric := true
	for _, r := range word {
		if r < '0' || r > '9' {
			numeric = false
			break
		}
		n = n*10 + int(r-'0')
	}
	if numeric {
		return n, true
	}
	v, ok := t.numberWords[word]
	return v, ok
}

// DBKeyword resolves a dB jargon keyword contained in text to its centi-dB
// value. Multi-word keywords take precedence over their single-word parts.
func (t *Table) DBKeyword(text string) (int, bool) {
	text = strings.ToLower(text)
	for _, kw := range t.dbKeywordOrder {
		if containsPhrase(text, kw) {
			return t.dbKeywords[kw], true
		}
	}
	return 0, false
}

// PanPosition resolves a spoken pan position to the protocol's -100..100 range.
func (t *Table) PanPosition(text string) (int, bool) {
	text = strings.ToLower(text)
	for _, kw := range t.panOrder {
		if containsPhrase(text, kw) {
			return t.panPositions[kw], true
		}
	}
	return 0, false
}

// PanPhrases returns the pan position keywords ordered longest-first, for
// callers that need to locate a position phrase inside a larger fragment.
func (t *Table) PanPhrases() []string {
	return t.panOrder
}

// ResolveInstrument maps a spoken instrument reference to its canonical name
// and default channel. Exact alias hits score StrengthExact; prefix and
// phonetic hits score StrengthFuzzy.
func (t *Table) ResolveInstrument(name string) (InstrumentMatch, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "the ")
	if name == "" {
		return InstrumentMatch{}, false
	}

	if canonical, ok := t.instrumentAliases[name]; ok {
		return InstrumentMatch{Canonical: canonical, Channel: t.defaultChannels[canonical], Strength: StrengthExact}, true
	}

	// Prefix pass: trailing words ("vocal track"), plural forms, or a
	// truncated alias.
	for _, alias := range t.instrumentNames {
		if (len(alias) >= 3 && strings.HasPrefix(name, alias)) || (len(name) >= 3 && strings.HasPrefix(alias, name)) {
			canonical := t.instrumentAliases[alias]
			return InstrumentMatch{Canonical: canonical, Channel: t.defaultChannels[canonical], Strength: StrengthFuzzy}, true
		}
	}

	return t.phoneticResolve(name)
}

func (t *Table) phoneticResolve(name string) (InstrumentMatch, bool) {
	primary, secondary := matchr.DoubleMetaphone(name)

	best := ""
	bestScore := 0.0
	for _, alias := range t.instrumentNames {
		ap, as := matchr.DoubleMetaphone(alias)
		if !codesOverlap(primary, secondary, ap, as) {
			continue
		}
		if score := matchr.JaroWinkler(name, alias, false); score >= phoneticThreshold && score > bestScore {
			best, bestScore = alias, score
		}
	}
	if best == "" {
		return InstrumentMatch{}, false
	}
	canonical := t.instrumentAliases[best]
	return InstrumentMatch{Canonical: canonical, Channel: t.defaultChannels[canonical], Strength: StrengthFuzzy}, true
}

func codesOverlap(p1, s1, p2, s2 string) bool {
	for _, a := range []string{p1, s1} {
		if a == "" {
			continue
		}
		if a == p2 || a == s2 {
			return true
		}
	}
	return false
}

// containsPhrase reports whether phrase occurs in text on word boundaries.
func containsPhrase(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		startOK := start == 0 || !isWordChar(text[start-1])
		endOK := end == len(text) || !isWordChar(text[end])
		if startOK && endOK {
			return true
		}
		idx = start + 1
		if idx >= len(text) {
			return false
		}
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '-'
}
