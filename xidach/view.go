package xidach

import (
	"math"

	"xidach-lite/card"
)

// CardView is one card as a viewer sees it. Hidden cards carry no rank or
// suit.
type CardView struct {
	Hidden bool   `json:"hidden,omitempty"`
	Rank   string `json:"rank,omitempty"`
	Suit   string `json:"suit,omitempty"`
}

type HandView struct {
	Tier  string `json:"tier"`
	Score int    `json:"score"`
}

type SeatView struct {
	SeatIndex int        `json:"seatIndex"`
	Name      string     `json:"name"`
	Robot     bool       `json:"robot,omitempty"`
	Balance   int64      `json:"balance"`
	Bet       int64      `json:"bet"`
	IsHost    bool       `json:"isHost"`
	HasStayed bool       `json:"hasStayed"`
	IsChecked bool       `json:"isChecked"`
	Result    string     `json:"result,omitempty"`
	Payout    int64      `json:"payout"`
	Connected bool       `json:"connected"`
	IsMe      bool       `json:"isMe"`
	IsMyTurn  bool       `json:"isMyTurn"`
	Cards     []CardView `json:"cards"`
	Hand      *HandView  `json:"hand,omitempty"`
	CanHit    *bool      `json:"canHit,omitempty"`
	CanStay   *bool      `json:"canStay,omitempty"`
}

// View is the per-viewer projection pushed to clients. Seats is indexed by
// seat number and nil where the seat is empty.
type View struct {
	Phase        string      `json:"phase"`
	Round        uint32      `json:"round"`
	HostSeat     int         `json:"hostSeat"`
	CurrentTurn  int         `json:"currentTurn"`
	TurnTimeLeft int         `json:"turnTimeLeft"`
	MaxSeats     int         `json:"maxSeats"`
	Seats        []*SeatView `json:"seats"`
}

// View renders the table for viewerID. Card faces are shown to their owner,
// to the host for seats it has already checked, and to everyone once the
// round is in RESULTS. An empty viewerID is a spectator.
func (g *Game) View(viewerID string) View {
	g.mu.Lock()
	defer g.mu.Unlock()

	v := View{
		Phase:        g.phase.String(),
		Round:        g.round,
		HostSeat:     NoSeat,
		CurrentTurn:  g.turn,
		TurnTimeLeft: int(math.Ceil(g.turnTimeLeftLocked(g.now()).Seconds())),
		MaxSeats:     len(g.seats),
		Seats:        make([]*SeatView, len(g.seats)),
	}
	viewer := g.playerLocked(viewerID)

	for _, p := range g.occupiedLocked() {
		if p.isHost {
			v.HostSeat = p.Seat
		}
		isMe := viewer == p
		sv := &SeatView{
			SeatIndex: p.Seat,
			Name:      p.Name,
			Robot:     p.Robot,
			Balance:   p.balance,
			Bet:       p.bet,
			IsHost:    p.isHost,
			HasStayed: p.hasStayed,
			IsChecked: p.isChecked,
			Result:    p.result.String(),
			Payout:    p.payout,
			Connected: p.connected,
			IsMe:      isMe,
			IsMyTurn:  isMe && g.isTurnOfLocked(p),
			Cards:     make([]CardView, 0, len(p.cards)),
		}

		faceUp := isMe || g.phase == PhaseResults || (p.isChecked && viewer != nil && viewer.isHost)
		for _, c := range p.cards {
			sv.Cards = append(sv.Cards, cardView(c, faceUp))
		}
		if faceUp && len(p.cards) > 0 {
			h := Classify(p.cards)
			sv.Hand = &HandView{Tier: h.Tier.String(), Score: h.Score}
		}
		if sv.IsMyTurn {
			canHit := CanDrawMore(p.cards)
			canStay := p.isHost || CanStay(p.cards)
			sv.CanHit = &canHit
			sv.CanStay = &canStay
		}
		v.Seats[p.Seat] = sv
	}
	return v
}

func (g *Game) isTurnOfLocked(p *Player) bool {
	switch g.phase {
	case PhasePlayerTurns:
		return !p.isHost && p.Seat == g.turn
	case PhaseHostTurn:
		return p.isHost && !p.hasStayed
	}
	return false
}

func cardView(c card.Card, faceUp bool) CardView {
	if !faceUp {
		return CardView{Hidden: true}
	}
	return CardView{Rank: c.Symbol(), Suit: c.Suit().Name()}
}
