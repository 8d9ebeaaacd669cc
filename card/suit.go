package card

type Suit byte

const (
	Spade   Suit = iota // ♠
	Heart               // ♥
	Club                // ♣
	Diamond             // ♦
)

func (s Suit) String() string {
	switch s {
	case Spade:
		return "♠"
	case Heart:
		return "♥"
	case Club:
		return "♣"
	case Diamond:
		return "♦"
	}
	return "?"
}

// Name is the lowercase english suit name used on the wire.
func (s Suit) Name() string {
	switch s {
	case Spade:
		return "spades"
	case Heart:
		return "hearts"
	case Club:
		return "clubs"
	case Diamond:
		return "diamonds"
	}
	return "unknown"
}

// Red reports hearts and diamonds.
func (s Suit) Red() bool {
	return s == Heart || s == Diamond
}
