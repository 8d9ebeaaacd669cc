package replay

import "xidach-lite/xidach"

const TapeVersion = 1

// Tape is one round as recorded by a room: the table before the deal, the
// shoe seed, every accepted action in order, and the settled outcome.
type Tape struct {
	TapeVersion int               `json:"tape_version"`
	RoomID      string            `json:"room_id"`
	RoundID     string            `json:"round_id"`
	Table       TableSpec         `json:"table"`
	Start       xidach.RoundStart `json:"start"`
	Steps       []Step            `json:"steps"`
	Result      []SeatOutcome     `json:"result,omitempty"`
}

type TableSpec struct {
	MaxSeats        int   `json:"max_seats"`
	MinBet          int64 `json:"min_bet"`
	MaxBet          int64 `json:"max_bet"`
	StartingBalance int64 `json:"starting_balance"`
}

// Step is one accepted call into the game. Timeout steps carry no player.
type Step struct {
	Seq      uint64 `json:"seq"`
	Type     string `json:"type"`
	PlayerID string `json:"player_id,omitempty"`
	Target   int    `json:"target,omitempty"`
}

// SeatOutcome is the settled line for one seat.
type SeatOutcome struct {
	Seat         int    `json:"seat"`
	PlayerID     string `json:"player_id"`
	Cards        string `json:"cards"`
	Result       string `json:"result"`
	Payout       int64  `json:"payout"`
	BalanceAfter int64  `json:"balance_after"`
}

// TableSpecFromConfig copies the settlement-relevant table settings.
func TableSpecFromConfig(cfg xidach.Config) TableSpec {
	return TableSpec{
		MaxSeats:        cfg.MaxSeats,
		MinBet:          cfg.MinBet,
		MaxBet:          cfg.MaxBet,
		StartingBalance: cfg.StartingBalance,
	}
}

// OutcomesFromResult flattens a round result into tape form.
func OutcomesFromResult(rr *xidach.RoundResult) []SeatOutcome {
	if rr == nil {
		return nil
	}
	out := make([]SeatOutcome, 0, len(rr.Seats))
	for _, s := range rr.Seats {
		out = append(out, SeatOutcome{
			Seat:         s.Seat,
			PlayerID:     s.PlayerID,
			Cards:        s.Cards.String(),
			Result:       s.Result.String(),
			Payout:       s.Payout,
			BalanceAfter: s.BalanceAfter,
		})
	}
	return out
}
