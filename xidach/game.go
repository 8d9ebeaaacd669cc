package xidach

import (
	"math/rand"
	"sync"
	"time"

	"xidach-lite/card"
)

// Game is the authoritative state of one room: a fixed row of seats, the
// round phase, the turn pointer, the shoe and the turn timer. Every exported
// method validates fully before mutating, so a rejected call leaves the game
// unchanged.
type Game struct {
	cfg Config
	rng *rand.Rand
	now func() time.Time

	mu sync.Mutex

	seats []Seat

	phase Phase
	round uint32
	turn  int

	shoe         *card.Shoe
	roundSeed    int64
	pendingSeed  *int64
	deckOverride []card.Card

	timer turnTimer

	roundStart *RoundStart
	lastResult *RoundResult
}

func NewGame(cfg Config) (*Game, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Game{
		cfg:          cfg,
		rng:          rand.New(rand.NewSource(seed)),
		now:          now,
		seats:        make([]Seat, cfg.MaxSeats),
		phase:        PhaseLobby,
		turn:         NoSeat,
		deckOverride: append([]card.Card(nil), cfg.DeckOverride...),
		timer:        turnTimer{limit: cfg.TurnTimeout},
	}, nil
}

func (g *Game) Config() Config { return g.cfg }

func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

func (g *Game) Round() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.round
}

// SeatOf returns the seat index held by playerID.
func (g *Game) SeatOf(playerID string) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p := g.playerLocked(playerID); p != nil {
		return p.Seat, true
	}
	return NoSeat, false
}

// Sit places playerID at seatIndex. A non-positive balance means the
// configured starting balance. The first occupant of a hostless table
// becomes host.
func (g *Game) Sit(playerID, name string, seatIndex int, balance int64, robot bool) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if seatIndex < 0 || seatIndex >= len(g.seats) {
		return Outcome{}, ErrInvalidSeat
	}
	if g.seats[seatIndex].Occupied() {
		return Outcome{}, ErrSeatOccupied
	}
	if !g.phase.acceptsSeating() {
		return Outcome{}, ErrWrongPhase
	}
	if g.playerLocked(playerID) != nil {
		return Outcome{}, ErrAlreadySeated
	}
	if balance <= 0 {
		balance = g.cfg.StartingBalance
	}

	p := &Player{
		ID:        playerID,
		Name:      name,
		Seat:      seatIndex,
		Robot:     robot,
		balance:   balance,
		bet:       min(g.cfg.MinBet, balance),
		connected: true,
	}
	if g.hostLocked() == nil {
		p.isHost = true
	}
	g.seats[seatIndex] = Seat{player: p}
	return Outcome{Action: ActionSit, Seat: seatIndex, Phase: g.phase}, nil
}

// Leave frees the caller's seat. During a round the seat is only marked and
// is removed when the round settles; until then it keeps being auto-played.
func (g *Game) Leave(playerID string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := g.playerLocked(playerID)
	if p == nil {
		return Outcome{}, ErrNotSeated
	}
	o := Outcome{Action: ActionLeave, Seat: p.Seat, Phase: g.phase}
	if g.phase.InRound() {
		p.leaving = true
		p.connected = false
		o.Deferred = true
		return o, nil
	}
	g.removeSeatLocked(p.Seat)
	return o, nil
}

// SetBet changes the caller's stake for the next deal.
func (g *Game) SetBet(playerID string, amount int64) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := g.playerLocked(playerID)
	if p == nil {
		return Outcome{}, ErrNotSeated
	}
	if !g.phase.acceptsSeating() {
		return Outcome{}, ErrWrongPhase
	}
	if amount < g.cfg.MinBet || amount > g.cfg.MaxBet || amount > p.balance {
		return Outcome{}, ErrInvalidBet
	}
	p.bet = amount
	return Outcome{Action: ActionSetBet, Seat: p.Seat, Phase: g.phase}, nil
}

// TransferHost hands the bank to the occupant of targetSeat between rounds.
func (g *Game) TransferHost(playerID string, targetSeat int) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.phase.acceptsSeating() {
		return Outcome{}, ErrWrongPhase
	}
	p := g.playerLocked(playerID)
	if p == nil || !p.isHost {
		return Outcome{}, ErrNotHost
	}
	target := g.occupantLocked(targetSeat)
	if target == nil || target == p {
		return Outcome{}, ErrInvalidTarget
	}
	p.isHost = false
	target.isHost = true
	return Outcome{Action: ActionTransferHost, Seat: targetSeat, Phase: g.phase}, nil
}

// SetConnected records a connection drop or resume. It does not touch the
// seat or the timer.
func (g *Game) SetConnected(playerID string, connected bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := g.playerLocked(playerID)
	if p == nil {
		return ErrNotSeated
	}
	p.connected = connected
	return nil
}

// --- internal helpers (caller holds g.mu) ---

func (g *Game) playerLocked(playerID string) *Player {
	if playerID == "" {
		return nil
	}
	for _, s := range g.seats {
		if p, ok := s.Player(); ok && p.ID == playerID {
			return p
		}
	}
	return nil
}

func (g *Game) occupantLocked(seatIndex int) *Player {
	if seatIndex < 0 || seatIndex >= len(g.seats) {
		return nil
	}
	p, _ := g.seats[seatIndex].Player()
	return p
}

func (g *Game) hostLocked() *Player {
	for _, s := range g.seats {
		if p, ok := s.Player(); ok && p.isHost {
			return p
		}
	}
	return nil
}

func (g *Game) occupiedLocked() []*Player {
	out := make([]*Player, 0, len(g.seats))
	for _, s := range g.seats {
		if p, ok := s.Player(); ok {
			out = append(out, p)
		}
	}
	return out
}

// removeSeatLocked clears a seat and, if it held the host, moves the bank to
// the lowest remaining seat index.
func (g *Game) removeSeatLocked(seatIndex int) {
	p := g.occupantLocked(seatIndex)
	if p == nil {
		return
	}
	g.seats[seatIndex] = Seat{}
	if p.isHost {
		g.assignHostLocked()
	}
}

func (g *Game) assignHostLocked() {
	if g.hostLocked() != nil {
		return
	}
	for _, s := range g.seats {
		if p, ok := s.Player(); ok {
			p.isHost = true
			return
		}
	}
}
