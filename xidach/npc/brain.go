package npc

import (
	"xidach-lite/card"
	"xidach-lite/xidach"
)

// GameView is a read-only projection of the game state visible to the NPC.
type GameView struct {
	Phase     xidach.Phase
	Cards     []card.Card
	Hand      xidach.Hand
	IsHost    bool
	Balance   int64
	Bet       int64
	MinBet    int64
	MaxBet    int64
	CanDraw   bool
	CanStay   bool
	CanCheck  bool // host only: threshold reached for checking seats
	Unchecked int  // host only: seats still waiting for a check
}

// Decision is what a BrainDecider returns.
type Decision struct {
	Action xidach.ActionType
	Amount int64
}

// BrainDecider is the core interface all NPC types implement.
type BrainDecider interface {
	// Decide is called when it's the NPC's turn.
	Decide(view GameView) Decision
	// ChooseBet picks the stake for the next deal.
	ChooseBet(view GameView) int64
	// Name returns a human-readable identifier for debugging.
	Name() string
}
