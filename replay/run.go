package replay

import (
	"fmt"

	"xidach-lite/xidach"
)

// Run re-deals tape.Start and applies every step, returning the settled
// round.
func Run(tape *Tape) (*xidach.RoundResult, error) {
	if err := validateTape(tape); err != nil {
		return nil, err
	}

	cfg := xidach.DefaultConfig()
	cfg.MaxSeats = tape.Table.MaxSeats
	cfg.MinBet = tape.Table.MinBet
	cfg.MaxBet = tape.Table.MaxBet
	cfg.BetOptions = nil
	cfg.StartingBalance = tape.Table.StartingBalance
	cfg.TurnTimeout = xidach.DefaultTurnTimeout

	game, err := xidach.Restore(cfg, tape.Start)
	if err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "restore_failed", Message: err.Error()}
	}

	for i, step := range tape.Steps {
		action, _ := xidach.ParseActionType(step.Type)
		if _, err := applyStep(game, action, step); err != nil {
			snap := game.Snapshot()
			return nil, &ReplayError{
				StepIndex: int32(i),
				Reason:    "action_apply_failed",
				Message:   fmt.Sprintf("%s by %q: %v", step.Type, step.PlayerID, err),
				Expected: &ExpectedState{
					Phase:    snap.Phase.String(),
					TurnSeat: snap.TurnSeat,
					HostSeat: snap.HostSeat,
				},
			}
		}
	}

	if game.Phase() != xidach.PhaseResults {
		return nil, &ReplayError{
			StepIndex: int32(len(tape.Steps)),
			Reason:    "round_unfinished",
			Message:   fmt.Sprintf("tape ends in %s", game.Phase()),
		}
	}
	return game.LastResult(), nil
}

func applyStep(g *xidach.Game, action xidach.ActionType, step Step) (xidach.Outcome, error) {
	switch action {
	case xidach.ActionDeal:
		return g.Deal(step.PlayerID)
	case xidach.ActionHit:
		return g.Hit(step.PlayerID)
	case xidach.ActionStay:
		return g.Stay(step.PlayerID)
	case xidach.ActionHostCheck:
		return g.HostCheck(step.PlayerID, step.Target)
	case xidach.ActionCheckAll:
		return g.CheckAll(step.PlayerID)
	case xidach.ActionLeave:
		return g.Leave(step.PlayerID)
	case xidach.ActionTimeout:
		token, ok := g.TimerToken()
		if !ok {
			return xidach.Outcome{}, xidach.ErrStaleTimer
		}
		return g.Expire(token)
	}
	return xidach.Outcome{}, fmt.Errorf("unsupported step type %q", step.Type)
}

// Verify replays the tape and checks the recomputed outcome against the
// recorded one, seat by seat.
func Verify(tape *Tape) error {
	rr, err := Run(tape)
	if err != nil {
		return err
	}
	got := OutcomesFromResult(rr)
	if len(got) != len(tape.Result) {
		return &ReplayError{
			StepIndex: -1,
			Reason:    "result_mismatch",
			Message:   fmt.Sprintf("recorded %d seats, replay settled %d", len(tape.Result), len(got)),
		}
	}
	for i := range got {
		if got[i] != tape.Result[i] {
			return &ReplayError{
				StepIndex: -1,
				Reason:    "result_mismatch",
				Message:   fmt.Sprintf("seat %d: recorded %+v, replayed %+v", tape.Result[i].Seat, tape.Result[i], got[i]),
			}
		}
	}
	return nil
}

func validateTape(tape *Tape) error {
	if tape == nil {
		return &ReplayError{StepIndex: -1, Reason: "invalid_tape", Message: "nil tape"}
	}
	if tape.TapeVersion != TapeVersion {
		return &ReplayError{StepIndex: -1, Reason: "invalid_version", Message: fmt.Sprintf("unsupported tape version %d", tape.TapeVersion)}
	}
	if tape.Table.MaxSeats < 2 {
		return &ReplayError{StepIndex: -1, Reason: "invalid_table", Message: "table.max_seats must be >= 2"}
	}
	if len(tape.Start.Seats) < 2 {
		return &ReplayError{StepIndex: -1, Reason: "invalid_seats", Message: "at least 2 seats are required"}
	}
	if len(tape.Steps) == 0 || tape.Steps[0].Type != xidach.ActionDeal.String() {
		return &ReplayError{StepIndex: 0, Reason: "missing_deal", Message: "first step must be a deal"}
	}
	for i, step := range tape.Steps {
		if _, ok := xidach.ParseActionType(step.Type); !ok {
			return &ReplayError{StepIndex: int32(i), Reason: "invalid_action", Message: fmt.Sprintf("unknown step type %q", step.Type)}
		}
	}
	return nil
}
