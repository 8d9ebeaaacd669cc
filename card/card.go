package card

import (
	"fmt"
	"strings"
)

// Card 牌枚举
//
// 编码规则:
// - 高4位: 花色 (0:Spade, 1:Heart, 2:Club, 3:Diamond)
// - 低4位: 点数 (1:A, 2..10, 11:J, 12:Q, 13:K)
//
// Cards are plain values; two cards are equal when rank and suit match.
type Card byte

func (c Card) String() string {
	if c == CardInvalid {
		return "Invalid"
	}
	if c == CardRear {
		return "Rear"
	}
	return c.Symbol() + c.Suit().String()
}

// Rank 获取牌面值 1-13 (A=1, K=13)
func (c Card) Rank() byte {
	if c == CardInvalid || c == CardRear {
		return 0
	}
	return byte(c & 0x0F)
}

// Suit 花色 (0:Spades, 1:Hearts, 2:Clubs, 3:Diamonds)
func (c Card) Suit() Suit {
	return Suit(c >> 4)
}

func (c Card) IsAce() bool {
	return c.Rank() == 1
}

// IsTenValue reports 10, J, Q and K.
func (c Card) IsTenValue() bool {
	return c.Rank() >= 10
}

// Valid reports whether c encodes one of the 52 real cards.
func (c Card) Valid() bool {
	r := c.Rank()
	return r >= 1 && r <= 13 && c.Suit() <= Diamond
}

// PointValue 返回基础点数: A=1, 2..10 原值, J/Q/K=10.
// The flexible ace values are handled by the hand evaluator.
func (c Card) PointValue() int {
	r := int(c.Rank())
	if r > 10 {
		return 10
	}
	return r
}

// Symbol is the rank as printed on the card face.
func (c Card) Symbol() string {
	switch r := c.Rank(); r {
	case 0:
		return "?"
	case 1:
		return "A"
	case 11:
		return "J"
	case 12:
		return "Q"
	case 13:
		return "K"
	default:
		return fmt.Sprintf("%d", r)
	}
}

// ParseCard 将字符串 (如 "As", "Td", "10h") 转换为 Card
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return CardInvalid, fmt.Errorf("invalid card string: %q", s)
	}

	var suitBase Card
	switch s[len(s)-1] {
	case 's', 'S':
		suitBase = 0x00
	case 'h', 'H':
		suitBase = 0x10
	case 'c', 'C':
		suitBase = 0x20
	case 'd', 'D':
		suitBase = 0x30
	default:
		return CardInvalid, fmt.Errorf("invalid suit in %q", s)
	}

	rankStr := strings.ToUpper(s[:len(s)-1])
	var rank Card
	switch rankStr {
	case "A":
		rank = 1
	case "T", "10":
		rank = 10
	case "J":
		rank = 11
	case "Q":
		rank = 12
	case "K":
		rank = 13
	default:
		if len(rankStr) != 1 || rankStr[0] < '2' || rankStr[0] > '9' {
			return CardInvalid, fmt.Errorf("invalid rank in %q", s)
		}
		rank = Card(rankStr[0] - '0')
	}
	return suitBase + rank, nil
}

// MustParseCards parses a space separated list and panics on bad input.
// Intended for tests and fixtures.
func MustParseCards(s string) []Card {
	fields := strings.Fields(s)
	out := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			panic(err)
		}
		out = append(out, c)
	}
	return out
}
