package game

import (
	"fmt"
	"strings"
)

// ForceZenithSymbol in a question forces the next draw to be a zenith.
const ForceZenithSymbol = "◇"

// ZenithChancePercent is the unforced zenith probability per draw.
const ZenithChancePercent = 5

// Vibe is the card category.
type Vibe string

const (
	VibeAcuity  Vibe = "acuity"
	VibeValor   Vibe = "valor"
	VibeVariety Vibe = "variety"
)

// Vibes lists every category in display order.
var Vibes = []Vibe{VibeAcuity, VibeValor, VibeVariety}

// Level is the card rarity, 1 (Common) to 3 (Legendary).
type Level int

const (
	LevelCommon    Level = 1
	LevelRare      Level = 2
	LevelLegendary Level = 3
)

// Levels lists every rarity in ascending order.
var Levels = []Level{LevelCommon, LevelRare, LevelLegendary}

// levelWeights are cumulative percentages: 75 Common, 20 Rare, 5 Legendary.
var levelWeights = []struct {
	level      Level
	cumulative int
}{
	{LevelCommon, 75},
	{LevelRare, 95},
	{LevelLegendary, 100},
}

func (l Level) Name() string {
	switch l {
	case LevelCommon:
		return "Common"
	case LevelRare:
		return "Rare"
	case LevelLegendary:
		return "Legendary"
	default:
		return "Unknown"
	}
}

// LevelForRoll maps a roll in [1,100] onto a level.
func LevelForRoll(roll int) Level {
	for _, w := range levelWeights {
		if roll <= w.cumulative {
			return w.level
		}
	}
	return LevelCommon
}

// Fields is the reading printed on a card.
type Fields struct {
	Intention     string `json:"intention"`
	PersonalGoal  string `json:"personal_goal"`
	AffixingValue string `json:"affixing_value"`
}

var vibeFields = map[Vibe]map[Level]Fields{
	VibeAcuity: {
		LevelCommon:    {"Clarity", "Reduce noise.", "Truth over comfort."},
		LevelRare:      {"Insight", "See structure.", "Depth and precision."},
		LevelLegendary: {"Revelation", "Cut illusion.", "Crystalline wisdom."},
	},
	VibeValor: {
		LevelCommon:    {"Courage", "Act once.", "Action beats fear."},
		LevelRare:      {"Resolve", "Commit fully.", "Strength with purpose."},
		LevelLegendary: {"Command", "Lead boldly.", "Transform through will."},
	},
	VibeVariety: {
		LevelCommon:    {"Play", "Try new paths.", "Curiosity first."},
		LevelRare:      {"Surprise", "Break pattern.", "Creative risk."},
		LevelLegendary: {"Wonder", "Transcend limits.", "Reality bending."},
	},
}

// VibeFields returns the card text. A zenith overrides goal and value.
func VibeFields(vibe Vibe, level Level, zenith bool) Fields {
	f := vibeFields[vibe][level]
	if zenith {
		f.Intention = "ZENITH: " + f.Intention
		f.PersonalGoal = "Focus intention."
		f.AffixingValue = "Alignment creates power."
	}
	return f
}

// Card is one draw.
type Card struct {
	Vibe   Vibe   `json:"vibe"`
	Level  Level  `json:"level"`
	Rarity string `json:"rarity"`
	Zenith bool   `json:"zenith"`
	Forced bool   `json:"forced"`
	Fields Fields `json:"fields"`
}

// Stats accumulates the draws of one session.
type Stats struct {
	Draws        int           `json:"draws"`
	Vibes        map[Vibe]int  `json:"vibes"`
	Levels       map[Level]int `json:"levels"`
	Zenith       int           `json:"zenith"`
	ZenithForced int           `json:"zenith_forced"`
}

func NewStats() Stats {
	s := Stats{Vibes: map[Vibe]int{}, Levels: map[Level]int{}}
	for _, v := range Vibes {
		s.Vibes[v] = 0
	}
	for _, l := range Levels {
		s.Levels[l] = 0
	}
	return s
}

func (s *Stats) record(c Card) {
	s.Draws++
	s.Vibes[c.Vibe]++
	s.Levels[c.Level]++
	if c.Zenith {
		s.Zenith++
	}
	if c.Forced {
		s.ZenithForced++
	}
}

func (s Stats) clone() Stats {
	out := s
	out.Vibes = make(map[Vibe]int, len(s.Vibes))
	for k, v := range s.Vibes {
		out.Vibes[k] = v
	}
	out.Levels = make(map[Level]int, len(s.Levels))
	for k, v := range s.Levels {
		out.Levels[k] = v
	}
	return out
}

func (s Stats) vibeLine() string {
	parts := make([]string, 0, len(Vibes))
	for _, v := range Vibes {
		parts = append(parts, fmt.Sprintf("%s %d", strings.ToUpper(string(v[:1]))+string(v[1:]), s.Vibes[v]))
	}
	return strings.Join(parts, ", ")
}

func (s Stats) levelLine() string {
	parts := make([]string, 0, len(Levels))
	for _, l := range Levels {
		parts = append(parts, fmt.Sprintf("%s %d", l.Name(), s.Levels[l]))
	}
	return strings.Join(parts, ", ")
}

// Draw produces one card. A question containing ForceZenithSymbol forces a zenith.
func Draw(r Randomizer, question string) Card {
	vibe, level := r.DrawCard()
	forced := strings.Contains(question, ForceZenithSymbol)
	zenith := forced || r.Chance(ZenithChancePercent)
	return Card{
		Vibe:   vibe,
		Level:  level,
		Rarity: level.Name(),
		Zenith: zenith,
		Forced: forced,
		Fields: VibeFields(vibe, level, zenith),
	}
}
