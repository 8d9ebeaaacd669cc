package room

import (
	"errors"
	"fmt"
	"log"
	"time"

	"xidach-lite/xidach"
	"xidach-lite/xidach/npc"
)

// --- NPC support ---

// isNPC checks whether a playerID belongs to an NPC (caller must hold r.mu).
func (r *Room) isNPC(playerID string) bool {
	if r.npcManager == nil {
		return false
	}
	return r.npcManager.IsNPC(playerID)
}

// actingNPCLocked returns the bot whose move the round is waiting on.
func (r *Room) actingNPCLocked(snap xidach.Snapshot) (string, bool) {
	var seat int
	switch snap.Phase {
	case xidach.PhasePlayerTurns:
		seat = snap.TurnSeat
	case xidach.PhaseHostTurn:
		seat = snap.HostSeat
	default:
		return "", false
	}
	for _, ps := range snap.Players {
		if ps.Seat == seat && r.isNPC(ps.ID) {
			return ps.ID, true
		}
	}
	return "", false
}

// scheduleNPCLocked starts one think-then-act goroutine per state version.
// The move re-enters through the event queue and is dropped if anything
// changed in the meantime.
func (r *Room) scheduleNPCLocked() {
	if r.npcManager == nil || r.npcVersion == r.stateVersion {
		return
	}
	snap := r.game.Snapshot()
	playerID, ok := r.actingNPCLocked(snap)
	if !ok {
		return
	}
	r.npcVersion = r.stateVersion
	version := r.stateVersion
	cfg := r.cfg
	thinkDelay := r.npcThinkDelay
	if thinkDelay <= 0 {
		thinkDelay = r.npcManager.GetThinkDelay(playerID)
	}
	mgr := r.npcManager

	go func() {
		// Simulate thinking
		time.Sleep(thinkDelay)

		decision := mgr.OnTurn(playerID, snap, cfg)
		err := r.SubmitEvent(Event{
			Type:     EventNPCAction,
			PlayerID: playerID,
			Action:   decision.Action,
			Amount:   decision.Amount,
			Version:  version,
		})
		if err != nil && !errors.Is(err, ErrRoomClosed) {
			log.Printf("[Room %s] NPC %s action %v failed: %v", r.ID, playerID, decision.Action, err)
		}
	}()
}

func (r *Room) handleNPCAction(e Event) error {
	if e.Version != r.stateVersion || !r.isNPC(e.PlayerID) {
		return nil
	}
	pid := e.PlayerID
	hit := func() (xidach.Outcome, error) { return r.game.Hit(pid) }
	stay := func() (xidach.Outcome, error) { return r.game.Stay(pid) }

	var err error
	switch e.Action {
	case xidach.ActionHit:
		if err = r.applyLocked(pid, xidach.ActionHit, 0, hit); err != nil {
			err = r.applyLocked(pid, xidach.ActionStay, 0, stay)
		}
	case xidach.ActionStay:
		if err = r.applyLocked(pid, xidach.ActionStay, 0, stay); err != nil {
			err = r.applyLocked(pid, xidach.ActionHit, 0, hit)
		}
	case xidach.ActionCheckAll:
		err = r.applyLocked(pid, xidach.ActionCheckAll, 0, func() (xidach.Outcome, error) {
			return r.game.CheckAll(pid)
		})
		if err != nil {
			err = r.applyLocked(pid, xidach.ActionHit, 0, hit)
		}
	case xidach.ActionHostCheck:
		target := int(e.Amount)
		err = r.applyLocked(pid, xidach.ActionHostCheck, target, func() (xidach.Outcome, error) {
			return r.game.HostCheck(pid, target)
		})
	default:
		err = fmt.Errorf("unsupported NPC action %v", e.Action)
	}
	// The turn timer still covers a bot whose move was refused.
	return err
}

// SeatNPC spawns a bot at seat. A nil persona picks one from the registry.
func (r *Room) SeatNPC(persona *npc.NPCPersona, seat int, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seatNPCLocked(persona, seat, balance)
}

func (r *Room) seatNPCLocked(persona *npc.NPCPersona, seat int, balance int64) error {
	if r.closed {
		return ErrRoomClosed
	}
	if r.npcManager == nil {
		return fmt.Errorf("NPC manager not available")
	}
	inst, err := r.npcManager.SpawnNPC(r.game, seat, persona, balance)
	if err != nil {
		return err
	}
	r.chooseNPCBetLocked(inst.PlayerID)
	r.broadcastStateLocked()
	log.Printf("[Room %s] NPC %s seated at seat %d", r.ID, inst.Persona.Name, seat)
	return nil
}

// AddBots fills up to n empty seats with bots and returns how many sat.
func (r *Room) AddBots(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	seated := 0
	for seat := 0; seat < r.cfg.MaxSeats && seated < n; seat++ {
		if r.seatTakenLocked(seat) {
			continue
		}
		if err := r.seatNPCLocked(nil, seat, 0); err != nil {
			log.Printf("[Room %s] add bot at seat %d failed: %v", r.ID, seat, err)
			break
		}
		seated++
	}
	return seated
}

func (r *Room) seatTakenLocked(seat int) bool {
	for _, ps := range r.game.Snapshot().Players {
		if ps.Seat == seat {
			return true
		}
	}
	return false
}

func (r *Room) chooseNPCBetsLocked() {
	if r.npcManager == nil {
		return
	}
	for _, ps := range r.game.Snapshot().Players {
		if r.isNPC(ps.ID) {
			r.chooseNPCBetLocked(ps.ID)
		}
	}
}

func (r *Room) chooseNPCBetLocked(playerID string) {
	bet, ok := r.npcManager.ChooseBet(playerID, r.game.Snapshot(), r.cfg)
	if !ok {
		return
	}
	if _, err := r.game.SetBet(playerID, bet); err != nil {
		log.Printf("[Room %s] NPC %s bet %d rejected: %v", r.ID, playerID, bet, err)
	}
}
