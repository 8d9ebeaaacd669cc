package xidach

import (
	"time"

	"xidach-lite/card"
)

// PlayerSnapshot is a full, unredacted copy of one seat. Use View for
// anything sent to a client.
type PlayerSnapshot struct {
	ID        string
	Name      string
	Seat      int
	Robot     bool
	Balance   int64
	Bet       int64
	Cards     card.CardList
	Hand      Hand
	IsHost    bool
	HasStayed bool
	IsChecked bool
	Connected bool
	Leaving   bool
	Result    Result
	Payout    int64
}

type Snapshot struct {
	Round         uint32
	Phase         Phase
	HostSeat      int
	TurnSeat      int
	MaxSeats      int
	RoundSeed     int64
	TimerArmed    bool
	TimerDeadline time.Time
	Players       []PlayerSnapshot
}

// PlayerByID finds a seated player in the snapshot.
func (s Snapshot) PlayerByID(playerID string) (PlayerSnapshot, bool) {
	for _, p := range s.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return PlayerSnapshot{}, false
}

// Occupied is the number of seated players.
func (s Snapshot) Occupied() int { return len(s.Players) }

// Snapshot returns a deep copy of the game state.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Round:         g.round,
		Phase:         g.phase,
		HostSeat:      NoSeat,
		TurnSeat:      g.turn,
		MaxSeats:      len(g.seats),
		RoundSeed:     g.roundSeed,
		TimerArmed:    g.timer.armed,
		TimerDeadline: g.timer.deadline,
	}
	for _, p := range g.occupiedLocked() {
		if p.isHost {
			s.HostSeat = p.Seat
		}
		s.Players = append(s.Players, PlayerSnapshot{
			ID:        p.ID,
			Name:      p.Name,
			Seat:      p.Seat,
			Robot:     p.Robot,
			Balance:   p.balance,
			Bet:       p.bet,
			Cards:     p.cards.Clone(),
			Hand:      Classify(p.cards),
			IsHost:    p.isHost,
			HasStayed: p.hasStayed,
			IsChecked: p.isChecked,
			Connected: p.connected,
			Leaving:   p.leaving,
			Result:    p.result,
			Payout:    p.payout,
		})
	}
	return s
}
