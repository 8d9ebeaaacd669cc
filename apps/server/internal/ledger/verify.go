package ledger

import (
	"errors"
	"fmt"

	"xidach-lite/replay"
)

// VerifyReport is the outcome of re-running a stored round.
type VerifyReport struct {
	RoundID  string              `json:"round_id"`
	Verified bool                `json:"verified"`
	Steps    int                 `json:"steps"`
	Error    *replay.ReplayError `json:"error,omitempty"`
}

// VerifyRound replays the stored tape and checks the recomputed settlement
// against both the tape's own result and the stored seat rows.
func VerifyRound(detail *RoundDetail) VerifyReport {
	report := VerifyReport{RoundID: detail.RoundID}
	if detail.Tape == nil {
		report.Error = &replay.ReplayError{StepIndex: -1, Reason: "missing_tape", Message: "round has no stored tape"}
		return report
	}
	report.Steps = len(detail.Tape.Steps)

	if err := replay.Verify(detail.Tape); err != nil {
		var re *replay.ReplayError
		if errors.As(err, &re) {
			report.Error = re
		} else {
			report.Error = &replay.ReplayError{StepIndex: -1, Reason: "replay_failed", Message: err.Error()}
		}
		return report
	}

	stored := make(map[int]SeatRow, len(detail.Seats))
	for _, row := range detail.Seats {
		stored[row.Seat] = row
	}
	if len(stored) != len(detail.Tape.Result) {
		report.Error = &replay.ReplayError{
			StepIndex: -1,
			Reason:    "ledger_mismatch",
			Message:   fmt.Sprintf("ledger has %d seats, tape settled %d", len(stored), len(detail.Tape.Result)),
		}
		return report
	}
	for _, want := range detail.Tape.Result {
		row, ok := stored[want.Seat]
		if !ok || row.PlayerID != want.PlayerID || row.Payout != want.Payout || row.BalanceAfter != want.BalanceAfter {
			report.Error = &replay.ReplayError{
				StepIndex: -1,
				Reason:    "ledger_mismatch",
				Message:   fmt.Sprintf("seat %d: ledger %+v, replayed %+v", want.Seat, row, want),
			}
			return report
		}
	}

	report.Verified = true
	return report
}
