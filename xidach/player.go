package xidach

import "xidach-lite/card"

type Player struct {
	ID    string
	Name  string
	Seat  int
	Robot bool

	balance int64
	bet     int64
	// balance when the current round was dealt
	roundStartBalance int64

	cards card.CardList

	isHost    bool
	hasStayed bool
	isChecked bool
	connected bool
	leaving   bool

	result Result
	payout int64
}

func (p *Player) Balance() int64       { return p.balance }
func (p *Player) Bet() int64           { return p.bet }
func (p *Player) IsHost() bool         { return p.isHost }
func (p *Player) HasStayed() bool      { return p.hasStayed }
func (p *Player) IsChecked() bool      { return p.isChecked }
func (p *Player) Connected() bool      { return p.connected }
func (p *Player) Result() Result       { return p.result }
func (p *Player) Payout() int64        { return p.payout }
func (p *Player) Cards() card.CardList { return p.cards.Clone() }
func (p *Player) Hand() Hand           { return Classify(p.cards) }

func (p *Player) resetForRound() {
	p.cards = make(card.CardList, 0, FiveCardCount)
	p.hasStayed = false
	p.isChecked = false
	p.result = ResultNone
	p.payout = 0
	p.roundStartBalance = p.balance
}

func (p *Player) addCard(c card.Card) {
	p.cards = append(p.cards, c)
}

// Seat is one fixed table slot. The zero value is an empty seat.
type Seat struct {
	player *Player
}

func (s Seat) Occupied() bool { return s.player != nil }

// Player returns the occupant and whether the seat is occupied.
func (s Seat) Player() (*Player, bool) {
	return s.player, s.player != nil
}
