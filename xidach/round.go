package xidach

import (
	"math/rand"

	"xidach-lite/card"
)

// Deal starts a round: per-round state is reset, a fresh shoe is built from a
// new round seed, two cards go to every occupied seat in two passes, naturals
// freeze, and the turn pointer moves to the first eligible seat.
func (g *Game) Deal(playerID string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.phase.acceptsSeating() {
		return Outcome{}, ErrWrongPhase
	}
	if g.playerLocked(playerID) == nil {
		return Outcome{}, ErrNotSeated
	}
	players := g.occupiedLocked()
	if len(players) < g.cfg.MinPlayers {
		return Outcome{}, ErrNotEnoughPlayers
	}

	g.assignHostLocked()
	for _, p := range players {
		if p.bet > p.balance {
			p.bet = p.balance
		}
	}
	g.roundStart = g.captureRoundStartLocked(players)

	g.round++
	g.roundSeed = g.roundStart.Seed
	g.lastResult = nil
	shoeRng := rand.New(rand.NewSource(g.roundSeed))
	if len(g.deckOverride) > 0 {
		g.shoe = card.NewScriptedShoe(shoeRng, g.deckOverride)
		g.deckOverride = nil
	} else {
		g.shoe = card.NewShoe(shoeRng)
	}

	for _, p := range players {
		p.resetForRound()
	}

	g.phase = PhaseDealing
	for pass := 0; pass < 2; pass++ {
		for _, p := range players {
			p.addCard(g.shoe.Draw())
		}
	}
	for _, p := range players {
		if Classify(p.cards).Tier.Natural() {
			p.hasStayed = true
		}
	}

	o := Outcome{Action: ActionDeal, Seat: NoSeat, PhaseChanged: true}
	g.phase = PhasePlayerTurns
	g.turn = g.nextTurnLocked(len(g.seats))
	if g.turn == NoSeat {
		if err := g.enterHostTurnLocked(&o); err != nil {
			return Outcome{}, err
		}
	} else {
		g.timer.arm(g.now())
	}
	o.Phase = g.phase
	return o, nil
}

// Hit draws one card for the caller.
func (g *Game) Hit(playerID string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.actorLocked(playerID)
	if err != nil {
		return Outcome{}, err
	}
	if !CanDrawMore(p.cards) {
		return Outcome{}, ErrCannotDraw
	}
	o := Outcome{Action: ActionHit, Seat: p.Seat}
	if err := g.applyHitLocked(p, &o); err != nil {
		return Outcome{}, err
	}
	o.Phase = g.phase
	return o, nil
}

// Stay freezes the caller. A non-host seat needs at least 16 points or five
// cards to stop.
func (g *Game) Stay(playerID string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.actorLocked(playerID)
	if err != nil {
		return Outcome{}, err
	}
	if !p.isHost && !CanStay(p.cards) {
		return Outcome{}, ErrScoreTooLow
	}
	o := Outcome{Action: ActionStay, Seat: p.Seat}
	if err := g.applyStayLocked(p, &o); err != nil {
		return Outcome{}, err
	}
	o.Phase = g.phase
	return o, nil
}

// HostCheck settles exactly one seat against the host.
func (g *Game) HostCheck(playerID string, targetSeat int) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	host, err := g.checkerLocked(playerID)
	if err != nil {
		return Outcome{}, err
	}
	target := g.occupantLocked(targetSeat)
	if target == nil || target.isHost {
		return Outcome{}, ErrInvalidTarget
	}
	if target.isChecked {
		return Outcome{}, ErrAlreadyChecked
	}

	o := Outcome{Action: ActionHostCheck, Seat: targetSeat}
	o.Settlements = append(o.Settlements, g.settleSeatLocked(target, host))
	if len(g.uncheckedLocked()) == 0 {
		if err := g.finalizeLocked(&o); err != nil {
			return Outcome{}, err
		}
	} else {
		g.timer.arm(g.now())
	}
	o.Phase = g.phase
	return o, nil
}

// CheckAll settles every seat the host has not checked yet.
func (g *Game) CheckAll(playerID string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	host, err := g.checkerLocked(playerID)
	if err != nil {
		return Outcome{}, err
	}
	o := Outcome{Action: ActionCheckAll, Seat: host.Seat}
	if err := g.resolveAllLocked(&o); err != nil {
		return Outcome{}, err
	}
	o.Phase = g.phase
	return o, nil
}

// actorLocked validates a hit/stay caller: seated, not frozen, and holding
// the turn for the current phase.
func (g *Game) actorLocked(playerID string) (*Player, error) {
	p := g.playerLocked(playerID)
	if p == nil {
		return nil, ErrNotSeated
	}
	switch g.phase {
	case PhasePlayerTurns:
		if p.hasStayed {
			return nil, ErrSeatFrozen
		}
		if p.isHost || p.Seat != g.turn {
			return nil, ErrNotYourTurn
		}
	case PhaseHostTurn:
		if !p.isHost {
			return nil, ErrNotYourTurn
		}
		if p.hasStayed {
			return nil, ErrSeatFrozen
		}
	default:
		return nil, ErrWrongPhase
	}
	return p, nil
}

func (g *Game) checkerLocked(playerID string) (*Player, error) {
	if g.phase != PhaseHostTurn {
		return nil, ErrWrongPhase
	}
	host := g.playerLocked(playerID)
	if host == nil || !host.isHost {
		return nil, ErrNotHost
	}
	if !HostCanCheck(host.cards) {
		return nil, ErrHostNotReady
	}
	return host, nil
}

func (g *Game) applyHitLocked(p *Player, o *Outcome) error {
	c := g.shoe.Draw()
	p.addCard(c)
	o.Drawn = c
	if Classify(p.cards).Tier == TierBusted || !CanDrawMore(p.cards) {
		o.AutoStayed = true
		return g.freezeLocked(p, o)
	}
	g.timer.arm(g.now())
	return nil
}

func (g *Game) applyStayLocked(p *Player, o *Outcome) error {
	return g.freezeLocked(p, o)
}

// freezeLocked ends drawing for p. A frozen player passes the turn on; a
// frozen host triggers settlement of every unchecked seat.
func (g *Game) freezeLocked(p *Player, o *Outcome) error {
	p.hasStayed = true
	if p.isHost {
		return g.resolveAllLocked(o)
	}
	g.advanceTurnLocked(o)
	return nil
}

func (g *Game) advanceTurnLocked(o *Outcome) {
	next := g.nextTurnLocked(g.turn)
	if next == NoSeat {
		// enterHostTurnLocked only fails without a host, which Deal rules out.
		_ = g.enterHostTurnLocked(o)
		return
	}
	g.turn = next
	g.timer.arm(g.now())
}

// nextTurnLocked scans right to left from start (exclusive): lower indices
// first, then wraps to the top and comes back down to start.
func (g *Game) nextTurnLocked(start int) int {
	for i := start - 1; i >= 0; i-- {
		if g.eligibleLocked(i) {
			return i
		}
	}
	for i := len(g.seats) - 1; i > start; i-- {
		if g.eligibleLocked(i) {
			return i
		}
	}
	return NoSeat
}

func (g *Game) eligibleLocked(seatIndex int) bool {
	p := g.occupantLocked(seatIndex)
	return p != nil && !p.isHost && !p.hasStayed
}

func (g *Game) enterHostTurnLocked(o *Outcome) error {
	g.phase = PhaseHostTurn
	g.turn = NoSeat
	o.PhaseChanged = true
	host := g.hostLocked()
	if host == nil {
		return ErrInvalidState("host turn without a host")
	}
	if host.hasStayed {
		return g.resolveAllLocked(o)
	}
	g.timer.arm(g.now())
	return nil
}

func (g *Game) uncheckedLocked() []*Player {
	var out []*Player
	for _, p := range g.occupiedLocked() {
		if !p.isHost && !p.isChecked {
			out = append(out, p)
		}
	}
	return out
}
