package xidach

import "xidach-lite/card"

const (
	MinValidScore  = 16
	BlackjackScore = 21
	FiveCardCount  = 5

	// hostEarlyCheckScore lets a host holding exactly two cards start
	// checking one point below MinValidScore.
	hostEarlyCheckScore = 15
)

// aceValues are the totals an ace may contribute.
var aceValues = [...]int{1, 10, 11}

// Hand is a classified set of cards.
type Hand struct {
	Tier  HandTier
	Score int
	Count int
}

// BestScore returns the highest attainable total that is <= 21, or the
// lowest total above 21 when every choice of ace values busts.
func BestScore(cards []card.Card) int {
	if len(cards) == 0 {
		return 0
	}
	base, aces := 0, 0
	for _, c := range cards {
		if c.IsAce() {
			aces++
			continue
		}
		base += c.PointValue()
	}

	// reach[t] is true when total t is attainable.
	reach := make([]bool, base+aces*aceValues[len(aceValues)-1]+1)
	reach[base] = true
	for i := 0; i < aces; i++ {
		next := make([]bool, len(reach))
		for t, ok := range reach {
			if !ok {
				continue
			}
			for _, v := range aceValues {
				if t+v < len(next) {
					next[t+v] = true
				}
			}
		}
		reach = next
	}

	for t := min(BlackjackScore, len(reach)-1); t >= 0; t-- {
		if reach[t] {
			return t
		}
	}
	for t := BlackjackScore + 1; t < len(reach); t++ {
		if reach[t] {
			return t
		}
	}
	return base
}

// Classify returns the tier and best score of cards.
func Classify(cards []card.Card) Hand {
	h := Hand{Score: BestScore(cards), Count: len(cards)}
	switch {
	case len(cards) == 0:
		h.Tier = TierInvalid
	case len(cards) == 2 && cards[0].IsAce() && cards[1].IsAce():
		h.Tier = TierNaturalPairAce
	case len(cards) == 2 && isAceTen(cards[0], cards[1]):
		h.Tier = TierNaturalAceTen
	case len(cards) == FiveCardCount && h.Score <= BlackjackScore:
		h.Tier = TierFiveCardCharlie
	case h.Score > BlackjackScore:
		h.Tier = TierBusted
	case h.Score >= MinValidScore:
		h.Tier = TierNormal
	default:
		h.Tier = TierInvalid
	}
	return h
}

func isAceTen(a, b card.Card) bool {
	return (a.IsAce() && b.IsTenValue()) || (b.IsAce() && a.IsTenValue())
}

// Compare returns 1 when a beats b, -1 when b beats a and 0 on a tie.
// Different tiers resolve by tier order. Five-card hands prefer the lower
// total, normal hands the higher one, every other tier ties with itself.
func Compare(a, b Hand) int {
	if a.Tier != b.Tier {
		if a.Tier < b.Tier {
			return 1
		}
		return -1
	}
	switch a.Tier {
	case TierFiveCardCharlie:
		return sign(b.Score - a.Score)
	case TierNormal:
		return sign(a.Score - b.Score)
	}
	return 0
}

// CanDrawMore is false for five cards, a bust or a natural.
func CanDrawMore(cards []card.Card) bool {
	if len(cards) >= FiveCardCount {
		return false
	}
	if BestScore(cards) > BlackjackScore {
		return false
	}
	return !Classify(cards).Tier.Natural()
}

// CanStay is the player stop rule: at least 16 points or five cards.
func CanStay(cards []card.Card) bool {
	return len(cards) >= FiveCardCount || BestScore(cards) >= MinValidScore
}

// HostCanCheck is the threshold the host must meet before checking seats.
func HostCanCheck(cards []card.Card) bool {
	score := BestScore(cards)
	switch {
	case score >= MinValidScore:
		return true
	case len(cards) == 2 && score >= hostEarlyCheckScore:
		return true
	case len(cards) == FiveCardCount:
		return true
	}
	return false
}

// PayoutMultiplier is the bet multiple moved from host to player (negative
// moves it the other way). It does not cover an INVALID player hand, which
// settles through the penalty rule instead.
func PayoutMultiplier(player, host Hand) int {
	if player.Tier == TierBusted {
		if host.Tier == TierBusted || host.Tier == TierInvalid {
			return 0
		}
		return -1
	}
	if host.Tier == TierInvalid {
		return 1
	}
	switch cmp := Compare(player, host); {
	case cmp > 0:
		if player.Tier.Natural() {
			return 2
		}
		return 1
	case cmp < 0:
		if host.Tier.Natural() {
			return -2
		}
		return -1
	}
	return 0
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
