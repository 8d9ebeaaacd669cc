package npc

import "encoding/json"

// Style 性格: how far a bot pushes its hand before standing.
type Style byte

const (
	StyleConservative Style = iota + 1
	StyleBalanced
	StyleAggressive
)

var StyleDictionary = map[Style]string{
	StyleConservative: "conservative",
	StyleBalanced:     "balanced",
	StyleAggressive:   "aggressive",
}

func (s Style) String() string {
	if name, ok := StyleDictionary[s]; ok {
		return name
	}
	return "balanced"
}

// StayThreshold is the score at which the style stops drawing.
func (s Style) StayThreshold() int {
	switch s {
	case StyleConservative:
		return 17
	case StyleAggressive:
		return 19
	}
	return 18
}

func (s Style) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Style) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*s = StyleBalanced
	for k, v := range StyleDictionary {
		if v == name {
			*s = k
		}
	}
	return nil
}

// PersonalityProfile defines the tunable parameters for a RuleBrain.
type PersonalityProfile struct {
	Style      Style   `json:"style"`
	BetShare   float64 `json:"betShare"`   // 0.0–1.0: share of balance a bot may stake, 0 => 0.2
	Randomness float64 `json:"randomness"` // 0.0–1.0: think delay spread
}

// NPCPersona defines a named NPC character.
type NPCPersona struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Tagline   string             `json:"tagline"`
	AvatarKey string             `json:"avatarKey"`
	Brain     PersonalityProfile `json:"brain"`
}
