package xidach

import "time"

// TimerToken identifies one arming of the turn timer. Every arm or cancel
// moves the token forward, so an expiry carrying an older token is a no-op.
type TimerToken uint64

type turnTimer struct {
	limit    time.Duration
	deadline time.Time
	token    TimerToken
	armed    bool
}

func (t *turnTimer) arm(now time.Time) {
	t.token++
	if t.limit <= 0 {
		t.armed = false
		return
	}
	t.armed = true
	t.deadline = now.Add(t.limit)
}

func (t *turnTimer) cancel() {
	t.token++
	t.armed = false
	t.deadline = time.Time{}
}

// TimerToken returns the live token, if the timer is armed.
func (g *Game) TimerToken() (TimerToken, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timer.token, g.timer.armed
}

// PendingTimeout reports the live token when the deadline has passed at now.
// The caller posts that token back through Expire on the room's serialized
// path.
func (g *Game) PendingTimeout(now time.Time) (TimerToken, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.timer.armed || now.Before(g.timer.deadline) {
		return 0, false
	}
	return g.timer.token, true
}

// TurnTimeLeft is the time until the live deadline, zero when disarmed or
// already past.
func (g *Game) TurnTimeLeft(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turnTimeLeftLocked(now)
}

func (g *Game) turnTimeLeftLocked(now time.Time) time.Duration {
	if !g.timer.armed {
		return 0
	}
	if left := g.timer.deadline.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Expire runs the forced moves for the timer generation named by token.
// In PLAYER_TURNS every remaining non-host seat is stayed, or hit when it
// cannot stay yet, until the turn reaches the host. In HOST_TURN every
// unchecked seat is settled.
func (g *Game) Expire(token TimerToken) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.timer.armed || token != g.timer.token {
		return Outcome{}, ErrStaleTimer
	}
	o := Outcome{Action: ActionTimeout, Seat: NoSeat}

	switch g.phase {
	case PhasePlayerTurns:
		for g.phase == PhasePlayerTurns && g.turn != NoSeat {
			p := g.occupantLocked(g.turn)
			if p == nil {
				return Outcome{}, ErrInvalidState("turn points at an empty seat")
			}
			forced := ForcedAction{Seat: p.Seat, PlayerID: p.ID}
			var err error
			if CanStay(p.cards) {
				forced.Action = ActionStay
				err = g.applyStayLocked(p, &o)
			} else {
				forced.Action = ActionHit
				err = g.applyHitLocked(p, &o)
				forced.Drawn = o.Drawn
			}
			o.Forced = append(o.Forced, forced)
			if err != nil {
				return Outcome{}, err
			}
		}
		// the host timer armed on entry is left running so the host gets a
		// full turn.
	case PhaseHostTurn:
		if err := g.resolveAllLocked(&o); err != nil {
			return Outcome{}, err
		}
	default:
		return Outcome{}, ErrStaleTimer
	}
	o.Drawn = 0
	o.AutoStayed = false
	o.Phase = g.phase
	return o, nil
}
