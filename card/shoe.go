package card

import "math/rand"

// Shoe is a shuffled 52-card sequence with a draw cursor. Draw never fails:
// once the cursor reaches the end a fresh deck is shuffled in and dealing
// continues. A Shoe is owned by exactly one game and is not safe for
// concurrent use.
type Shoe struct {
	rng        *rand.Rand
	cards      CardList
	cursor     int
	reshuffles int
}

// NewShoe builds a freshly shuffled shoe.
func NewShoe(rng *rand.Rand) *Shoe {
	s := &Shoe{rng: rng}
	s.cards = FullDeck()
	s.cards.Shuffle(s.rng)
	return s
}

// NewScriptedShoe deals the given cards first, in order, and only then
// falls back to shuffled full decks. Used for fixtures and replays.
func NewScriptedShoe(rng *rand.Rand, script []Card) *Shoe {
	if len(script) == 0 {
		return NewShoe(rng)
	}
	s := &Shoe{rng: rng}
	s.cards.Init(script)
	return s
}

// Draw removes and returns the next card.
func (s *Shoe) Draw() Card {
	if s.cursor >= len(s.cards) {
		s.regenerate()
	}
	c := s.cards[s.cursor]
	s.cursor++
	return c
}

// Remaining reports how many cards are left before the next regeneration.
func (s *Shoe) Remaining() int {
	return len(s.cards) - s.cursor
}

// Reshuffles counts how many times the shoe was regenerated.
func (s *Shoe) Reshuffles() int {
	return s.reshuffles
}

func (s *Shoe) regenerate() {
	s.cards = FullDeck()
	s.cards.Shuffle(s.rng)
	s.cursor = 0
	s.reshuffles++
}
