package card

import "testing"

func TestParseCard(t *testing.T) {
	cases := []struct {
		in   string
		want Card
	}{
		{"As", CardSpadeA},
		{"10h", CardHeart10},
		{"Td", CardDiamond10},
		{"kc", CardClubK},
		{"7D", CardDiamond7},
	}
	for _, tc := range cases {
		got, err := ParseCard(tc.in)
		if err != nil {
			t.Fatalf("ParseCard(%q) err: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCard(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, bad := range []string{"", "A", "1s", "11h", "Ax", "Zs"} {
		if _, err := ParseCard(bad); err == nil {
			t.Fatalf("ParseCard(%q) expected error", bad)
		}
	}
}

func TestCardValues(t *testing.T) {
	if CardHeartA.PointValue() != 1 || !CardHeartA.IsAce() {
		t.Fatalf("ace base value wrong")
	}
	for _, c := range []Card{CardSpade10, CardSpadeJ, CardHeartQ, CardClubK} {
		if c.PointValue() != 10 || !c.IsTenValue() {
			t.Fatalf("%v should be worth 10", c)
		}
	}
	if CardDiamond9.IsTenValue() {
		t.Fatalf("9 is not ten-valued")
	}
	if got := CardDiamond10.String(); got != "10♦" {
		t.Fatalf("String() = %q", got)
	}
	if CardRear.Valid() || CardInvalid.Valid() {
		t.Fatalf("placeholders must not be valid cards")
	}
}

func TestFullDeckDistinct(t *testing.T) {
	deck := FullDeck()
	if deck.Count() != DeckSize {
		t.Fatalf("deck size %d", deck.Count())
	}
	seen := map[Card]bool{}
	for _, c := range deck {
		if !c.Valid() || seen[c] {
			t.Fatalf("bad or duplicate card %v", c)
		}
		seen[c] = true
	}
}
