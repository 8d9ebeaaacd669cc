package main

import (
	"fmt"
	"time"

	"xidach-lite/replay"
	"xidach-lite/xidach"
	"xidach-lite/xidach/npc"
)

// maxStepsPerRound bounds a round before the turn timer is forced.
const maxStepsPerRound = 64

// simulator plays bot-only rounds straight against the engine.
type simulator struct {
	cfg      xidach.Config
	game     *xidach.Game
	npc      *npc.Manager
	recorder *replay.Recorder
	now      time.Time
	rounds   int
}

// roundReport is one settled round plus the checks run on it.
type roundReport struct {
	Result  *xidach.RoundResult
	Tape    *replay.Tape
	Forced  int
	Replays bool
}

func newSimulator(seats int, seed int64, registry *npc.PersonaRegistry) (*simulator, error) {
	s := &simulator{now: time.Unix(1_700_000_000, 0)}
	cfg := xidach.DefaultConfig()
	cfg.Seed = seed
	cfg.Clock = func() time.Time { return s.now }
	if seats > cfg.MaxSeats {
		return nil, fmt.Errorf("at most %d seats", cfg.MaxSeats)
	}
	if seats < cfg.MinPlayers {
		return nil, fmt.Errorf("at least %d seats", cfg.MinPlayers)
	}
	game, err := xidach.NewGame(cfg)
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	s.game = game
	s.npc = npc.NewManagerWithSeed(registry, seed)
	s.recorder = replay.NewRecorder("sim", cfg)

	for seat := 0; seat < seats; seat++ {
		inst, err := s.npc.SpawnNPC(game, seat, nil, 0)
		if err != nil {
			return nil, err
		}
		s.chooseBet(inst.PlayerID)
	}
	return s, nil
}

func (s *simulator) chooseBet(playerID string) {
	if bet, ok := s.npc.ChooseBet(playerID, s.game.Snapshot(), s.cfg); ok {
		_, _ = s.game.SetBet(playerID, bet)
	}
}

// playRound deals, lets every bot act until settlement and returns the
// result. A round that stalls is finished by the turn timer.
func (s *simulator) playRound() (*roundReport, error) {
	snap := s.game.Snapshot()
	if snap.Occupied() < s.cfg.MinPlayers {
		return nil, fmt.Errorf("only %d players left", snap.Occupied())
	}
	host, ok := hostOf(snap)
	if !ok {
		return nil, fmt.Errorf("table has no host")
	}
	if _, err := s.game.Deal(host); err != nil {
		return nil, fmt.Errorf("deal: %w", err)
	}
	s.rounds++
	s.recorder.Begin(fmt.Sprintf("sim-%d", s.rounds), s.game.LastRoundStart(), host)

	report := &roundReport{}
	for step := 0; s.game.Phase().InRound(); step++ {
		if step >= maxStepsPerRound {
			if err := s.expire(report); err != nil {
				return nil, err
			}
			continue
		}
		snap := s.game.Snapshot()
		actor, ok := actingSeat(snap)
		if !ok {
			if err := s.expire(report); err != nil {
				return nil, err
			}
			continue
		}
		decision := s.npc.OnTurn(actor, snap, s.cfg)
		if !s.apply(actor, decision) {
			if err := s.expire(report); err != nil {
				return nil, err
			}
		}
	}

	rr := s.game.LastResult()
	if rr == nil {
		return nil, fmt.Errorf("round %d finished without a result", s.rounds)
	}
	report.Result = rr
	report.Tape = s.recorder.Finish(rr)
	report.Replays = replay.Verify(report.Tape) == nil

	for _, ev := range rr.Evictions {
		s.npc.DespawnNPC(ev.PlayerID)
	}
	for _, ps := range s.game.Snapshot().Players {
		s.chooseBet(ps.ID)
	}
	return report, nil
}

// apply plays a bot decision with the same fallbacks a room uses and
// reports whether anything was accepted.
func (s *simulator) apply(playerID string, d npc.Decision) bool {
	try := func(action xidach.ActionType, target int) bool {
		var err error
		switch action {
		case xidach.ActionHit:
			_, err = s.game.Hit(playerID)
		case xidach.ActionStay:
			_, err = s.game.Stay(playerID)
		case xidach.ActionCheckAll:
			_, err = s.game.CheckAll(playerID)
		case xidach.ActionHostCheck:
			_, err = s.game.HostCheck(playerID, target)
		default:
			return false
		}
		if err != nil {
			return false
		}
		s.recorder.Record(action, playerID, target)
		return true
	}

	switch d.Action {
	case xidach.ActionHit:
		return try(xidach.ActionHit, 0) || try(xidach.ActionStay, 0)
	case xidach.ActionStay:
		return try(xidach.ActionStay, 0) || try(xidach.ActionHit, 0)
	case xidach.ActionCheckAll:
		return try(xidach.ActionCheckAll, 0) || try(xidach.ActionHit, 0)
	case xidach.ActionHostCheck:
		return try(xidach.ActionHostCheck, int(d.Amount))
	}
	return false
}

// expire jumps the clock past the turn deadline and fires the timer.
func (s *simulator) expire(report *roundReport) error {
	s.now = s.now.Add(s.cfg.TurnTimeout + time.Second)
	token, due := s.game.PendingTimeout(s.now)
	if !due {
		return fmt.Errorf("round %d stalled in %s with no timer", s.rounds, s.game.Phase())
	}
	o, err := s.game.Expire(token)
	if err != nil {
		return err
	}
	s.recorder.Record(xidach.ActionTimeout, "", 0)
	report.Forced += len(o.Forced)
	return nil
}

func hostOf(snap xidach.Snapshot) (string, bool) {
	for _, ps := range snap.Players {
		if ps.IsHost {
			return ps.ID, true
		}
	}
	return "", false
}

func actingSeat(snap xidach.Snapshot) (string, bool) {
	seat := xidach.NoSeat
	switch snap.Phase {
	case xidach.PhasePlayerTurns:
		seat = snap.TurnSeat
	case xidach.PhaseHostTurn:
		seat = snap.HostSeat
	}
	for _, ps := range snap.Players {
		if ps.Seat == seat {
			return ps.ID, true
		}
	}
	return "", false
}

// zeroSum reports whether the round moved no chips in or out of the table.
func zeroSum(rr *xidach.RoundResult) bool {
	var total int64
	for _, s := range rr.Seats {
		total += s.BalanceAfter - s.BalanceBefore
	}
	return total == 0 && rr.PlayerDelta() == -rr.HostDelta()
}
