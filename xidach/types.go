package xidach

import "xidach-lite/card"

// NoSeat marks an absent seat index (no host, no current turn).
const NoSeat = -1

// Phase is the round state.
type Phase byte

const (
	PhaseLobby       Phase = 0
	PhaseDealing     Phase = 1
	PhasePlayerTurns Phase = 2
	PhaseHostTurn    Phase = 3
	PhaseResults     Phase = 4
)

var PhaseTypeDictionary = map[Phase]string{
	PhaseLobby:       "LOBBY",
	PhaseDealing:     "DEALING",
	PhasePlayerTurns: "PLAYER_TURNS",
	PhaseHostTurn:    "HOST_TURN",
	PhaseResults:     "RESULTS",
}

func (p Phase) String() string {
	if s, ok := PhaseTypeDictionary[p]; ok {
		return s
	}
	return "UNKNOWN"
}

// acceptsSeating reports the between-rounds phases.
func (p Phase) acceptsSeating() bool {
	return p == PhaseLobby || p == PhaseResults
}

// InRound reports whether cards are out and not yet settled.
func (p Phase) InRound() bool {
	return p == PhaseDealing || p == PhasePlayerTurns || p == PhaseHostTurn
}

// HandTier is a hand category, ordered best first. Lower value beats higher value.
type HandTier byte

const (
	TierNaturalPairAce  HandTier = iota + 1 // Xì Bàng: A A
	TierNaturalAceTen                       // Xì Dách: A + 10/J/Q/K
	TierFiveCardCharlie                     // Ngũ Linh: 5 cards <= 21
	TierNormal                              // 16..21
	TierBusted                              // > 21
	TierInvalid                             // < 16 with fewer than 5 cards
)

var HandTierDictionary = map[HandTier]string{
	TierNaturalPairAce:  "NATURAL_PAIR_ACE",
	TierNaturalAceTen:   "NATURAL_ACE_TEN",
	TierFiveCardCharlie: "FIVE_CARD_CHARLIE",
	TierNormal:          "NORMAL",
	TierBusted:          "BUSTED",
	TierInvalid:         "INVALID",
}

func (t HandTier) String() string {
	if s, ok := HandTierDictionary[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// Natural reports the two 2-card tiers that freeze on deal and pay double.
func (t HandTier) Natural() bool {
	return t == TierNaturalPairAce || t == TierNaturalAceTen
}

// Result is a seat's outcome for the round.
type Result byte

const (
	ResultNone Result = iota
	ResultWin
	ResultLose
	ResultTie
	ResultHost
)

var ResultDictionary = map[Result]string{
	ResultNone: "",
	ResultWin:  "win",
	ResultLose: "lose",
	ResultTie:  "tie",
	ResultHost: "host",
}

func (r Result) String() string { return ResultDictionary[r] }

type ActionType byte

const (
	ActionNone         ActionType = 0
	ActionSit          ActionType = 1
	ActionLeave        ActionType = 2
	ActionSetBet       ActionType = 3
	ActionDeal         ActionType = 4
	ActionHit          ActionType = 5
	ActionStay         ActionType = 6
	ActionHostCheck    ActionType = 7
	ActionCheckAll     ActionType = 8
	ActionTransferHost ActionType = 9
	ActionTimeout      ActionType = 10
)

var ActionTypeDictionary = map[ActionType]string{
	ActionNone:         "none",
	ActionSit:          "sit",
	ActionLeave:        "leave",
	ActionSetBet:       "set_bet",
	ActionDeal:         "deal",
	ActionHit:          "hit",
	ActionStay:         "stay",
	ActionHostCheck:    "host_check",
	ActionCheckAll:     "check_all",
	ActionTransferHost: "transfer_host",
	ActionTimeout:      "timeout",
}

func (a ActionType) String() string {
	if s, ok := ActionTypeDictionary[a]; ok {
		return s
	}
	return "unknown"
}

// ParseActionType is the inverse of ActionType.String.
func ParseActionType(s string) (ActionType, bool) {
	for a, name := range ActionTypeDictionary {
		if name == s {
			return a, true
		}
	}
	return ActionNone, false
}

// Outcome is the success value of every action. Fields not relevant to the
// action stay zero.
type Outcome struct {
	Action ActionType
	Seat   int

	// Drawn is the card dealt by a hit.
	Drawn card.Card
	// AutoStayed is set when a hit froze the seat (bust or fifth card).
	AutoStayed bool
	// Deferred is set when a leave during a round was queued until settlement.
	Deferred bool

	PhaseChanged  bool
	Phase         Phase
	RoundFinished bool

	Settlements []Settlement
	Evictions   []Eviction
	Forced      []ForcedAction
}

// Settlement records one seat checked against the host.
type Settlement struct {
	Seat       int
	PlayerID   string
	Hand       Hand
	HostHand   Hand
	Bet        int64
	Multiplier int
	Penalty    bool
	Payout     int64
	Result     Result
}

// EvictionReason explains why a seat was cleared at round end.
type EvictionReason string

const (
	EvictBankrupt EvictionReason = "bankrupt"
	EvictLeft     EvictionReason = "left"
)

type Eviction struct {
	Seat     int
	PlayerID string
	Reason   EvictionReason
	Balance  int64
}

// ForcedAction is one move applied on a player's behalf at timer expiry.
type ForcedAction struct {
	Seat     int
	PlayerID string
	Action   ActionType
	Drawn    card.Card
}
