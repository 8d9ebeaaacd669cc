package nakama

const (
	// RpcQuickMatch is the Nakama RPC id clients call to find or create an open table.
	RpcQuickMatch = "quick_match"

	// MatchNameXiDach is the authoritative match handler name registered with Nakama.
	MatchNameXiDach = "xidach_match"

	// LabelGame is the "game" value of every match label.
	LabelGame = "xidach"
)

// Op codes for client messages and server pushes. Payloads are the same
// envelopes the websocket server uses.
const (
	// Client -> Server
	OpSit          int64 = 1
	OpLeaveSeat    int64 = 2
	OpSetBet       int64 = 3
	OpDeal         int64 = 4
	OpHit          int64 = 5
	OpStay         int64 = 6
	OpHostCheck    int64 = 7
	OpCheckAll     int64 = 8
	OpTransferHost int64 = 9

	// Server -> Client
	OpJoined      int64 = 101
	OpState       int64 = 102 // per presence
	OpTimer       int64 = 103
	OpRoundResult int64 = 104
	OpError       int64 = 105
)

// Runtime env keys read at match init.
const (
	envTurnSeconds = "xidach_turn_seconds"
	envBotsEnabled = "xidach_bots_enabled"
	envMaxSeats    = "xidach_max_seats"
)
