package xidach

import "xidach-lite/card"

// SeatState is one seat as it stood when a round was dealt.
type SeatState struct {
	Seat     int    `json:"seat"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Robot    bool   `json:"robot,omitempty"`
	Balance  int64  `json:"balance"`
	Bet      int64  `json:"bet"`
	IsHost   bool   `json:"isHost,omitempty"`
}

// RoundStart is everything needed to re-deal a round exactly: the table
// before the deal, the shoe seed, and any scripted cards dealt ahead of the
// shuffled shoe.
type RoundStart struct {
	Round  uint32      `json:"round"`
	Seed   int64       `json:"seed"`
	Script []card.Card `json:"script,omitempty"`
	Seats  []SeatState `json:"seats"`
}

func (g *Game) captureRoundStartLocked(players []*Player) *RoundStart {
	var seed int64
	if g.pendingSeed != nil {
		seed = *g.pendingSeed
		g.pendingSeed = nil
	} else {
		seed = g.rng.Int63()
	}
	rs := &RoundStart{Round: g.round + 1, Seed: seed}
	if len(g.deckOverride) > 0 {
		rs.Script = append([]card.Card(nil), g.deckOverride...)
	}
	for _, p := range players {
		rs.Seats = append(rs.Seats, SeatState{
			Seat:     p.Seat,
			PlayerID: p.ID,
			Name:     p.Name,
			Robot:    p.Robot,
			Balance:  p.balance,
			Bet:      p.bet,
			IsHost:   p.isHost,
		})
	}
	return rs
}

// LastRoundStart returns the table state captured at the most recent deal.
func (g *Game) LastRoundStart() *RoundStart {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.roundStart == nil {
		return nil
	}
	rs := *g.roundStart
	rs.Seats = append([]SeatState(nil), g.roundStart.Seats...)
	rs.Script = append([]card.Card(nil), g.roundStart.Script...)
	return &rs
}

// Restore builds a game positioned just before rs was dealt. The next Deal
// reuses rs.Seed and rs.Script, so it reproduces the same cards.
func Restore(cfg Config, rs RoundStart) (*Game, error) {
	cfg.DeckOverride = rs.Script
	g, err := NewGame(cfg)
	if err != nil {
		return nil, err
	}
	for _, s := range rs.Seats {
		if s.Seat < 0 || s.Seat >= len(g.seats) {
			return nil, ErrInvalidSeat
		}
		if g.seats[s.Seat].Occupied() {
			return nil, ErrSeatOccupied
		}
		g.seats[s.Seat] = Seat{player: &Player{
			ID:        s.PlayerID,
			Name:      s.Name,
			Seat:      s.Seat,
			Robot:     s.Robot,
			balance:   s.Balance,
			bet:       s.Bet,
			isHost:    s.IsHost,
			connected: true,
		}}
	}
	g.assignHostLocked()
	if rs.Round > 0 {
		g.round = rs.Round - 1
	}
	seed := rs.Seed
	g.pendingSeed = &seed
	return g, nil
}
