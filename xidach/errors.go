package xidach

import "errors"

// Reason is the closed set of rejection causes returned by action calls.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonInvalidSeat
	ReasonSeatOccupied
	ReasonWrongPhase
	ReasonNotYourTurn
	ReasonScoreTooLow
	ReasonNotHost
	ReasonInvalidTarget
	ReasonAlreadyChecked
	ReasonNotSeated
	ReasonAlreadySeated
	ReasonInvalidBet
	ReasonNotEnoughPlayers
	ReasonSeatFrozen
	ReasonCannotDraw
	ReasonHostNotReady
	ReasonStaleTimer
)

var reasonCodes = map[Reason]string{
	ReasonNone:             "none",
	ReasonInvalidSeat:      "invalid_seat",
	ReasonSeatOccupied:     "seat_occupied",
	ReasonWrongPhase:       "wrong_phase",
	ReasonNotYourTurn:      "not_your_turn",
	ReasonScoreTooLow:      "score_too_low",
	ReasonNotHost:          "not_host",
	ReasonInvalidTarget:    "invalid_target",
	ReasonAlreadyChecked:   "already_checked",
	ReasonNotSeated:        "not_seated",
	ReasonAlreadySeated:    "already_seated",
	ReasonInvalidBet:       "invalid_bet",
	ReasonNotEnoughPlayers: "not_enough_players",
	ReasonSeatFrozen:       "seat_frozen",
	ReasonCannotDraw:       "cannot_draw",
	ReasonHostNotReady:     "host_not_ready",
	ReasonStaleTimer:       "stale_timer",
}

// User-facing text shown by clients.
var reasonMessages = map[Reason]string{
	ReasonInvalidSeat:      "Ghế không hợp lệ",
	ReasonSeatOccupied:     "Ghế đã có người",
	ReasonWrongPhase:       "Không thể thực hiện lúc này",
	ReasonNotYourTurn:      "Chưa đến lượt bạn",
	ReasonScoreTooLow:      "Cần ít nhất 16 điểm để dừng",
	ReasonNotHost:          "Bạn không phải nhà cái",
	ReasonInvalidTarget:    "Người chơi không hợp lệ",
	ReasonAlreadyChecked:   "Người chơi này đã được xét bài",
	ReasonNotSeated:        "Bạn chưa có ghế",
	ReasonAlreadySeated:    "Bạn đã có ghế",
	ReasonInvalidBet:       "Mức cược không hợp lệ",
	ReasonNotEnoughPlayers: "Cần ít nhất 2 người chơi",
	ReasonSeatFrozen:       "Bạn đã dừng bài",
	ReasonCannotDraw:       "Không thể bốc bài",
	ReasonHostNotReady:     "Nhà cái cần ít nhất 16 điểm để xét bài",
	ReasonStaleTimer:       "Lượt này đã hết giờ",
}

// String is the stable machine code.
func (r Reason) String() string {
	if s, ok := reasonCodes[r]; ok {
		return s
	}
	return "unknown"
}

func (r Reason) Message() string {
	return reasonMessages[r]
}

// ActionError is a rejected action. Rejections never mutate game state.
type ActionError struct {
	Reason Reason
}

func (e *ActionError) Error() string { return "action rejected: " + e.Reason.String() }

func (e *ActionError) Is(target error) bool {
	t, ok := target.(*ActionError)
	return ok && t.Reason == e.Reason
}

var (
	ErrInvalidSeat      = &ActionError{ReasonInvalidSeat}
	ErrSeatOccupied     = &ActionError{ReasonSeatOccupied}
	ErrWrongPhase       = &ActionError{ReasonWrongPhase}
	ErrNotYourTurn      = &ActionError{ReasonNotYourTurn}
	ErrScoreTooLow      = &ActionError{ReasonScoreTooLow}
	ErrNotHost          = &ActionError{ReasonNotHost}
	ErrInvalidTarget    = &ActionError{ReasonInvalidTarget}
	ErrAlreadyChecked   = &ActionError{ReasonAlreadyChecked}
	ErrNotSeated        = &ActionError{ReasonNotSeated}
	ErrAlreadySeated    = &ActionError{ReasonAlreadySeated}
	ErrInvalidBet       = &ActionError{ReasonInvalidBet}
	ErrNotEnoughPlayers = &ActionError{ReasonNotEnoughPlayers}
	ErrSeatFrozen       = &ActionError{ReasonSeatFrozen}
	ErrCannotDraw       = &ActionError{ReasonCannotDraw}
	ErrHostNotReady     = &ActionError{ReasonHostNotReady}
	ErrStaleTimer       = &ActionError{ReasonStaleTimer}
)

// ReasonOf extracts the rejection reason, or ReasonNone for other errors.
func ReasonOf(err error) Reason {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ReasonNone
}

// InvalidStateError marks a broken internal invariant. The call that hit it
// is aborted; the game stays usable.
type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }
