package replay

import (
	"sync"

	"xidach-lite/xidach"
)

// Recorder collects the steps of the round in progress. A room calls Begin
// after each deal, Record for every accepted action, and Finish once the
// round settles.
type Recorder struct {
	mu     sync.Mutex
	roomID string
	table  TableSpec
	tape   *Tape
	seq    uint64
}

func NewRecorder(roomID string, cfg xidach.Config) *Recorder {
	return &Recorder{roomID: roomID, table: TableSpecFromConfig(cfg)}
}

// Begin opens a tape for a freshly dealt round. The deal itself is the
// first step.
func (r *Recorder) Begin(roundID string, start *xidach.RoundStart, dealer string) {
	if start == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq = 0
	r.tape = &Tape{
		TapeVersion: TapeVersion,
		RoomID:      r.roomID,
		RoundID:     roundID,
		Table:       r.table,
		Start:       *start,
	}
	r.recordLocked(xidach.ActionDeal, dealer, 0)
}

// Record appends one accepted action. Actions outside a round are ignored.
func (r *Recorder) Record(action xidach.ActionType, playerID string, target int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tape == nil {
		return
	}
	r.recordLocked(action, playerID, target)
}

func (r *Recorder) recordLocked(action xidach.ActionType, playerID string, target int) {
	r.seq++
	r.tape.Steps = append(r.tape.Steps, Step{
		Seq:      r.seq,
		Type:     action.String(),
		PlayerID: playerID,
		Target:   target,
	})
}

// Finish closes the open tape with the settled result and returns it.
func (r *Recorder) Finish(rr *xidach.RoundResult) *Tape {
	r.mu.Lock()
	defer r.mu.Unlock()
	tape := r.tape
	r.tape = nil
	if tape == nil {
		return nil
	}
	tape.Result = OutcomesFromResult(rr)
	return tape
}
