package xidach

import (
	"time"

	"xidach-lite/card"
)

// SeatResult is one seat's line in a finished round.
type SeatResult struct {
	Seat          int
	PlayerID      string
	Name          string
	Robot         bool
	IsHost        bool
	Cards         card.CardList
	Hand          Hand
	Bet           int64
	Result        Result
	Payout        int64
	Penalty       bool
	BalanceBefore int64
	BalanceAfter  int64
}

// RoundResult is the settled record of one round, captured before evictions.
type RoundResult struct {
	Round     uint32
	Seed      int64
	HostSeat  int
	Seats     []SeatResult
	Evictions []Eviction
	EndedAt   time.Time
}

// HostDelta is the host's net balance change for the round.
func (r *RoundResult) HostDelta() int64 {
	for _, s := range r.Seats {
		if s.IsHost {
			return s.BalanceAfter - s.BalanceBefore
		}
	}
	return 0
}

// PlayerDelta sums every non-host payout. A settled round always has
// PlayerDelta() == -HostDelta().
func (r *RoundResult) PlayerDelta() int64 {
	var total int64
	for _, s := range r.Seats {
		if !s.IsHost {
			total += s.Payout
		}
	}
	return total
}

// penaltyAmountLocked is the stake an INVALID hand forfeits: the sum of
// every non-host bet at the table.
func (g *Game) penaltyAmountLocked() int64 {
	var total int64
	for _, p := range g.occupiedLocked() {
		if !p.isHost {
			total += p.bet
		}
	}
	return total
}

// settleSeatLocked applies settlement for one seat against the host and
// marks it checked.
func (g *Game) settleSeatLocked(p, host *Player) Settlement {
	hand := Classify(p.cards)
	hostHand := Classify(host.cards)
	s := Settlement{
		Seat:     p.Seat,
		PlayerID: p.ID,
		Hand:     hand,
		HostHand: hostHand,
		Bet:      p.bet,
	}
	if hand.Tier == TierInvalid {
		s.Penalty = true
		s.Multiplier = -1
		s.Payout = -g.penaltyAmountLocked()
	} else {
		s.Multiplier = PayoutMultiplier(hand, hostHand)
		s.Payout = p.bet * int64(s.Multiplier)
	}
	switch {
	case s.Payout > 0:
		s.Result = ResultWin
	case s.Payout < 0:
		s.Result = ResultLose
	default:
		s.Result = ResultTie
	}

	p.balance += s.Payout
	host.balance -= s.Payout
	p.payout = s.Payout
	p.result = s.Result
	p.isChecked = true
	return s
}

// resolveAllLocked settles every unchecked seat in ascending order and
// finalizes the round.
func (g *Game) resolveAllLocked(o *Outcome) error {
	host := g.hostLocked()
	if host == nil {
		return ErrInvalidState("settlement without a host")
	}
	for _, p := range g.uncheckedLocked() {
		o.Settlements = append(o.Settlements, g.settleSeatLocked(p, host))
	}
	return g.finalizeLocked(o)
}

// finalizeLocked closes the round: the host gets its own result, the timer
// is cancelled, the result record is captured, and bankrupt or departing
// seats are cleared.
func (g *Game) finalizeLocked(o *Outcome) error {
	host := g.hostLocked()
	if host == nil {
		return ErrInvalidState("finalize without a host")
	}
	host.result = ResultHost
	host.payout = host.balance - host.roundStartBalance

	g.phase = PhaseResults
	g.turn = NoSeat
	g.timer.cancel()

	rr := &RoundResult{
		Round:    g.round,
		Seed:     g.roundSeed,
		HostSeat: host.Seat,
		EndedAt:  g.now(),
	}
	for _, p := range g.occupiedLocked() {
		rr.Seats = append(rr.Seats, SeatResult{
			Seat:          p.Seat,
			PlayerID:      p.ID,
			Name:          p.Name,
			Robot:         p.Robot,
			IsHost:        p.isHost,
			Cards:         p.cards.Clone(),
			Hand:          Classify(p.cards),
			Bet:           p.bet,
			Result:        p.result,
			Payout:        p.payout,
			Penalty:       p.result == ResultLose && Classify(p.cards).Tier == TierInvalid,
			BalanceBefore: p.roundStartBalance,
			BalanceAfter:  p.balance,
		})
	}

	for _, p := range g.occupiedLocked() {
		var reason EvictionReason
		switch {
		case p.leaving:
			reason = EvictLeft
		case p.balance <= 0:
			reason = EvictBankrupt
		default:
			continue
		}
		ev := Eviction{Seat: p.Seat, PlayerID: p.ID, Reason: reason, Balance: p.balance}
		rr.Evictions = append(rr.Evictions, ev)
		o.Evictions = append(o.Evictions, ev)
		g.removeSeatLocked(p.Seat)
	}
	// a stake never outgrows the balance behind it
	for _, p := range g.occupiedLocked() {
		if p.bet > p.balance {
			p.bet = p.balance
		}
	}

	g.lastResult = rr
	o.PhaseChanged = true
	o.RoundFinished = true
	return nil
}

// LastResult returns the most recent settled round, or nil.
func (g *Game) LastResult() *RoundResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastResult == nil {
		return nil
	}
	rr := *g.lastResult
	rr.Seats = append([]SeatResult(nil), g.lastResult.Seats...)
	rr.Evictions = append([]Eviction(nil), g.lastResult.Evictions...)
	return &rr
}
