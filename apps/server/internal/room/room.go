package room

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"xidach-lite/apps/server/internal/codec"
	"xidach-lite/apps/server/internal/ledger"
	"xidach-lite/replay"
	"xidach-lite/xidach"
	"xidach-lite/xidach/npc"

	"github.com/google/uuid"
)

// Room owns one game behind an actor loop. Every mutation, including timer
// expiry and bot moves, goes through the events queue or the ticker, both
// serialized by mu.
type Room struct {
	ID      string
	Name    string
	Default bool

	cfg xidach.Config

	mu       sync.RWMutex
	game     *xidach.Game
	members  map[string]*Member // playerID -> member
	closed   bool
	stopOnce sync.Once

	// Event channel for actor pattern
	events chan Event
	done   chan struct{}

	serverSeq uint64
	// stateVersion moves on every accepted game action; bot moves carry the
	// version they were decided on.
	stateVersion uint64
	npcVersion   uint64

	emptySince    time.Time
	nextDealAt    time.Time
	lastTimerSecs int

	send     func(playerID string, msg codec.ServerMessage)
	ledger   ledger.Service
	chips    ChipStore
	recorder *replay.Recorder
	roundID  string

	npcManager    *npc.Manager
	npcThinkDelay time.Duration

	roundEndHooks []RoundEndHook

	now func() time.Time
}

// Member is a connected (or recently dropped) client of the room. Seated
// bots are not members.
type Member struct {
	PlayerID string
	Name     string
	Online   bool
	LastSeen time.Time
	// Balance is carried into the next Sit; <= 0 means the table default.
	Balance int64
}

// ChipStore keeps a player's balance between tables. Settle is called off
// the actor goroutine after every round for each human seat.
type ChipStore interface {
	Settle(playerID string, chips int64) error
}

// Options wires a room to its collaborators. Every field is optional.
type Options struct {
	Send    func(playerID string, msg codec.ServerMessage)
	Ledger  ledger.Service
	Chips   ChipStore
	NPC     *npc.Manager
	Clock   func() time.Time
	Default bool
	// NPCThinkDelay overrides persona think delays when > 0.
	NPCThinkDelay time.Duration
}

// Event types for the actor message queue
type EventType int

const (
	EventJoin EventType = iota
	EventLeaveRoom
	EventSit
	EventLeaveSeat
	EventSetBet
	EventDeal
	EventHit
	EventStay
	EventHostCheck
	EventCheckAll
	EventTransferHost
	EventConnLost
	EventConnResume
	EventNPCAction
	EventClose
)

// Event represents a message to the room actor
type Event struct {
	Type     EventType
	PlayerID string
	Name     string
	Seat     int
	Amount   int64
	Balance  int64

	// Bot moves only.
	Action  xidach.ActionType
	Version uint64

	Timestamp time.Time
	Response  chan error
}

// RoundEndInfo is emitted once a round settles.
type RoundEndInfo struct {
	RoomID  string
	RoundID string
	Result  *xidach.RoundResult
	Tape    *replay.Tape
}

// RoundEndHook is a post-settlement callback.
type RoundEndHook func(info RoundEndInfo)

var ErrRoomClosed = codec.ErrRoomClosed

const (
	DefaultName    = "Khách"
	maxNameRunes   = 20
	offlineSeatTTL = 30 * time.Second
	autoDealDelay  = 4 * time.Second
	persistTimeout = 3 * time.Second
)

// New creates a room and starts its actor.
func New(id, name string, cfg xidach.Config, opts Options) (*Room, error) {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	cfg.Clock = now
	game, err := xidach.NewGame(cfg)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", id, err)
	}
	ledgerService := opts.Ledger
	if ledgerService == nil {
		ledgerService = ledger.NewNoopService()
	}
	send := opts.Send
	if send == nil {
		send = func(string, codec.ServerMessage) {}
	}

	r := &Room{
		ID:            id,
		Name:          name,
		Default:       opts.Default,
		cfg:           cfg,
		game:          game,
		members:       make(map[string]*Member),
		events:        make(chan Event, 256),
		done:          make(chan struct{}),
		emptySince:    now(),
		lastTimerSecs: -1,
		send:          send,
		ledger:        ledgerService,
		chips:         opts.Chips,
		recorder:      replay.NewRecorder(id, cfg),
		npcManager:    opts.NPC,
		npcThinkDelay: opts.NPCThinkDelay,
		now:           now,
	}

	go r.run()

	log.Printf("[Room %s] Created %q (seats=%d, bet=%d..%d)", id, name, cfg.MaxSeats, cfg.MinBet, cfg.MaxBet)
	return r, nil
}

// run is the main actor loop
func (r *Room) run() {
	// Sub-second heartbeat for turn expiry, timer pushes and bot deals.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case event := <-r.events:
			err := r.handleEvent(event)
			if event.Response != nil {
				event.Response <- err
			}
		case <-ticker.C:
			r.tick()
		case <-r.done:
			log.Printf("[Room %s] Actor stopped", r.ID)
			return
		}
	}
}

// SubmitEvent sends an event to the actor and waits for its result.
func (r *Room) SubmitEvent(e Event) error {
	e.Timestamp = r.now()
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrRoomClosed
	}

	select {
	case r.events <- e:
	case <-r.done:
		return ErrRoomClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-r.done:
		return ErrRoomClosed
	}
}

func (r *Room) handleEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed && e.Type != EventClose {
		return ErrRoomClosed
	}

	switch e.Type {
	case EventJoin:
		return r.handleJoin(e.PlayerID, e.Name, e.Balance, e.Timestamp)
	case EventLeaveRoom:
		return r.handleLeaveRoom(e.PlayerID, e.Timestamp)
	case EventConnLost:
		return r.handleConnLost(e.PlayerID, e.Timestamp)
	case EventConnResume:
		return r.handleConnResume(e.PlayerID, e.Timestamp)
	case EventNPCAction:
		return r.handleNPCAction(e)
	case EventClose:
		r.stopLocked()
		return nil
	}

	if r.members[e.PlayerID] == nil {
		return codec.ErrNotInRoom
	}
	pid := e.PlayerID
	switch e.Type {
	case EventSit:
		return r.handleSit(pid, e.Seat)
	case EventLeaveSeat:
		return r.applyLocked(pid, xidach.ActionLeave, 0, func() (xidach.Outcome, error) {
			return r.game.Leave(pid)
		})
	case EventSetBet:
		return r.applyLocked(pid, xidach.ActionSetBet, 0, func() (xidach.Outcome, error) {
			return r.game.SetBet(pid, e.Amount)
		})
	case EventDeal:
		return r.applyLocked(pid, xidach.ActionDeal, 0, func() (xidach.Outcome, error) {
			return r.game.Deal(pid)
		})
	case EventHit:
		return r.applyLocked(pid, xidach.ActionHit, 0, func() (xidach.Outcome, error) {
			return r.game.Hit(pid)
		})
	case EventStay:
		return r.applyLocked(pid, xidach.ActionStay, 0, func() (xidach.Outcome, error) {
			return r.game.Stay(pid)
		})
	case EventHostCheck:
		return r.applyLocked(pid, xidach.ActionHostCheck, e.Seat, func() (xidach.Outcome, error) {
			return r.game.HostCheck(pid, e.Seat)
		})
	case EventCheckAll:
		return r.applyLocked(pid, xidach.ActionCheckAll, 0, func() (xidach.Outcome, error) {
			return r.game.CheckAll(pid)
		})
	case EventTransferHost:
		return r.applyLocked(pid, xidach.ActionTransferHost, e.Seat, func() (xidach.Outcome, error) {
			return r.game.TransferHost(pid, e.Seat)
		})
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

func (r *Room) handleJoin(playerID, name string, balance int64, now time.Time) error {
	name = NormalizeName(name)
	if m, exists := r.members[playerID]; exists {
		m.Online = true
		m.LastSeen = now
		m.Name = name
		if _, seated := r.game.SeatOf(playerID); seated {
			_ = r.game.SetConnected(playerID, true)
		}
		log.Printf("[Room %s] Player %s rejoined", r.ID, playerID)
		r.sendJoinedLocked(m)
		r.broadcastStateLocked()
		return nil
	}

	m := &Member{
		PlayerID: playerID,
		Name:     name,
		Online:   true,
		LastSeen: now,
		Balance:  balance,
	}
	r.members[playerID] = m
	r.updateEmptySinceLocked(now)
	log.Printf("[Room %s] Player %s joined", r.ID, playerID)

	r.sendJoinedLocked(m)
	r.broadcastStateLocked()
	return nil
}

func (r *Room) handleLeaveRoom(playerID string, now time.Time) error {
	m := r.members[playerID]
	if m == nil {
		return nil
	}
	if _, seated := r.game.SeatOf(playerID); seated {
		if err := r.applyLocked(playerID, xidach.ActionLeave, 0, func() (xidach.Outcome, error) {
			return r.game.Leave(playerID)
		}); err != nil {
			log.Printf("[Room %s] leave seat failed for %s: %v", r.ID, playerID, err)
		}
	}
	delete(r.members, playerID)
	r.updateEmptySinceLocked(now)
	log.Printf("[Room %s] Player %s left", r.ID, playerID)
	return nil
}

func (r *Room) handleSit(playerID string, seat int) error {
	m := r.members[playerID]
	return r.applyLocked(playerID, xidach.ActionSit, seat, func() (xidach.Outcome, error) {
		return r.game.Sit(playerID, m.Name, seat, m.Balance, false)
	})
}

func (r *Room) handleConnLost(playerID string, now time.Time) error {
	m := r.members[playerID]
	if m == nil {
		return nil
	}
	m.Online = false
	m.LastSeen = now
	if err := r.game.SetConnected(playerID, false); err == nil {
		r.broadcastStateLocked()
	}
	log.Printf("[Room %s] Player %s connection lost", r.ID, playerID)
	return nil
}

func (r *Room) handleConnResume(playerID string, now time.Time) error {
	m := r.members[playerID]
	if m == nil {
		return codec.ErrNotInRoom
	}
	m.Online = true
	m.LastSeen = now
	if err := r.game.SetConnected(playerID, true); err == nil {
		r.broadcastStateLocked()
	} else {
		r.sendStateLocked(playerID)
	}
	log.Printf("[Room %s] Player %s connection resumed", r.ID, playerID)
	return nil
}

// applyLocked runs one game call and, when accepted, records it and fans the
// new state out.
func (r *Room) applyLocked(playerID string, action xidach.ActionType, target int, call func() (xidach.Outcome, error)) error {
	o, err := call()
	if err != nil {
		return err
	}
	if action == xidach.ActionDeal {
		r.beginRoundLocked(playerID)
	} else {
		r.recorder.Record(action, playerID, target)
	}
	r.afterOutcomeLocked(o)
	return nil
}

func (r *Room) beginRoundLocked(dealer string) {
	r.roundID = uuid.NewString()
	r.nextDealAt = time.Time{}
	r.lastTimerSecs = -1
	r.recorder.Begin(r.roundID, r.game.LastRoundStart(), dealer)
	log.Printf("[Room %s] Round %d dealt by %s (round_id=%s)", r.ID, r.game.Round(), dealer, r.roundID)
}

func (r *Room) afterOutcomeLocked(o xidach.Outcome) {
	r.stateVersion++
	if o.RoundFinished {
		r.finishRoundLocked()
	}
	r.broadcastStateLocked()
	r.scheduleNPCLocked()
}

func (r *Room) finishRoundLocked() {
	rr := r.game.LastResult()
	if rr == nil {
		return
	}
	roundID := r.roundID
	if roundID == "" {
		roundID = uuid.NewString()
	}
	tape := r.recorder.Finish(rr)
	r.roundID = ""
	r.lastTimerSecs = -1

	r.broadcastLocked(codec.TypeRoundResult, codec.RoundResultFrom(roundID, rr))

	for _, s := range rr.Seats {
		if m := r.members[s.PlayerID]; m != nil {
			m.Balance = s.BalanceAfter
		}
	}
	for _, ev := range rr.Evictions {
		if m := r.members[ev.PlayerID]; m != nil {
			m.Balance = ev.Balance
		}
		if r.npcManager != nil && r.npcManager.IsNPC(ev.PlayerID) {
			r.npcManager.DespawnNPC(ev.PlayerID)
		}
		log.Printf("[Room %s] Seat %d evicted player=%s reason=%s", r.ID, ev.Seat, ev.PlayerID, ev.Reason)
	}
	log.Printf("[Room %s] Round %d settled (round_id=%s, host_delta=%d)", r.ID, rr.Round, roundID, rr.HostDelta())

	r.persistRound(roundID, rr, tape)
	r.settleChips(rr)
	r.dispatchRoundEndHooks(RoundEndInfo{RoomID: r.ID, RoundID: roundID, Result: rr, Tape: tape})
	r.chooseNPCBetsLocked()
}

func (r *Room) persistRound(roundID string, rr *xidach.RoundResult, tape *replay.Tape) {
	rec := ledger.NewRoundRecord(r.ID, roundID, rr, tape)
	svc := r.ledger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := svc.RecordRound(ctx, rec); err != nil {
			log.Printf("[Ledger] record round failed: room=%s round_id=%s err=%v", rec.RoomID, rec.RoundID, err)
		}
	}()
}

func (r *Room) settleChips(rr *xidach.RoundResult) {
	if r.chips == nil {
		return
	}
	balances := make(map[string]int64, len(rr.Seats))
	for _, s := range rr.Seats {
		if !s.Robot {
			balances[s.PlayerID] = s.BalanceAfter
		}
	}
	if len(balances) == 0 {
		return
	}
	store := r.chips
	go func() {
		for playerID, chips := range balances {
			if err := store.Settle(playerID, chips); err != nil {
				log.Printf("[Room %s] save chips failed: player=%s err=%v", r.ID, playerID, err)
			}
		}
	}()
}

func (r *Room) dispatchRoundEndHooks(info RoundEndInfo) {
	if len(r.roundEndHooks) == 0 {
		return
	}
	hooks := append([]RoundEndHook(nil), r.roundEndHooks...)
	for _, hook := range hooks {
		go func(cb RoundEndHook) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("[Room %s] round end hook panic: %v", r.ID, rec)
				}
			}()
			cb(info)
		}(hook)
	}
}

func (r *Room) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	now := r.now()
	r.handleTimeoutLocked(now)
	r.pushTimerLocked(now)
	r.releaseOfflineMembers(now)
	r.autoDealLocked(now)
}

func (r *Room) handleTimeoutLocked(now time.Time) {
	token, due := r.game.PendingTimeout(now)
	if !due {
		return
	}
	o, err := r.game.Expire(token)
	if err != nil {
		log.Printf("[Room %s] timeout handler failed: %v", r.ID, err)
		return
	}
	log.Printf("[Room %s] Turn timer expired, forced=%d phase=%s", r.ID, len(o.Forced), o.Phase)
	r.recorder.Record(xidach.ActionTimeout, "", 0)
	r.afterOutcomeLocked(o)
}

// pushTimerLocked sends the whole-second countdown whenever it changes.
func (r *Room) pushTimerLocked(now time.Time) {
	if !r.game.Phase().InRound() {
		return
	}
	secs := int(math.Ceil(r.game.TurnTimeLeft(now).Seconds()))
	if secs == r.lastTimerSecs {
		return
	}
	r.lastTimerSecs = secs
	r.broadcastLocked(codec.TypeTimer, codec.Timer{Seconds: secs})
}

func (r *Room) releaseOfflineMembers(now time.Time) {
	for playerID, m := range r.members {
		if m.Online || now.Sub(m.LastSeen) < offlineSeatTTL {
			continue
		}
		if err := r.handleLeaveRoom(playerID, now); err != nil {
			m.LastSeen = now
			log.Printf("[Room %s] auto-leave failed for offline player %s: %v", r.ID, playerID, err)
			continue
		}
		log.Printf("[Room %s] Released offline player %s after %s", r.ID, playerID, offlineSeatTTL)
	}
}

// autoDealLocked lets a bot host start the next round while someone is
// watching.
func (r *Room) autoDealLocked(now time.Time) {
	snap := r.game.Snapshot()
	hostID := ""
	if snap.Phase == xidach.PhaseLobby || snap.Phase == xidach.PhaseResults {
		for _, ps := range snap.Players {
			if ps.IsHost && ps.Robot && !ps.Leaving {
				hostID = ps.ID
			}
		}
	}
	if hostID == "" || snap.Occupied() < r.cfg.MinPlayers || r.onlineMembersLocked() == 0 {
		r.nextDealAt = time.Time{}
		return
	}
	if r.nextDealAt.IsZero() {
		r.nextDealAt = now.Add(autoDealDelay)
		return
	}
	if now.Before(r.nextDealAt) {
		return
	}
	if err := r.applyLocked(hostID, xidach.ActionDeal, 0, func() (xidach.Outcome, error) {
		return r.game.Deal(hostID)
	}); err != nil {
		r.nextDealAt = now.Add(autoDealDelay)
		log.Printf("[Room %s] bot deal failed: %v", r.ID, err)
	}
}

// Stop shuts down the room actor
func (r *Room) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Room) stopLocked() {
	r.closed = true
	r.nextDealAt = time.Time{}
	r.stopOnce.Do(func() {
		close(r.done)
	})
}

func (r *Room) updateEmptySinceLocked(now time.Time) {
	if len(r.members) == 0 {
		if r.emptySince.IsZero() {
			r.emptySince = now
		}
		return
	}
	r.emptySince = time.Time{}
}

func (r *Room) onlineMembersLocked() int {
	n := 0
	for _, m := range r.members {
		if m.Online {
			n++
		}
	}
	return n
}

// IsIdleFor reports a room nobody has been in for at least ttl.
func (r *Room) IsIdleFor(ttl time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return true
	}
	if len(r.members) > 0 {
		return false
	}
	if r.emptySince.IsZero() {
		return false
	}
	return r.now().Sub(r.emptySince) >= ttl
}

func (r *Room) IsClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Info is the directory line for this room.
func (r *Room) Info() codec.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := r.game.Snapshot()
	observers := 0
	for playerID := range r.members {
		if _, seated := snap.PlayerByID(playerID); !seated {
			observers++
		}
	}
	return codec.RoomInfo{
		ID:            r.ID,
		Name:          r.Name,
		PlayerCount:   snap.Occupied(),
		ObserverCount: observers,
		MaxSeats:      snap.MaxSeats,
		Phase:         snap.Phase.String(),
	}
}

// Snapshot returns current game state (thread-safe)
func (r *Room) Snapshot() xidach.Snapshot {
	return r.game.Snapshot()
}

// View renders the table for one viewer.
func (r *Room) View(viewerID string) xidach.View {
	return r.game.View(viewerID)
}

// Config is the game configuration the room was created with.
func (r *Room) Config() xidach.Config {
	return r.cfg
}

// AddRoundEndHook registers a post-settlement callback.
func (r *Room) AddRoundEndHook(hook RoundEndHook) {
	if hook == nil {
		return
	}
	r.mu.Lock()
	r.roundEndHooks = append(r.roundEndHooks, hook)
	r.mu.Unlock()
}

// NormalizeName trims a display name and falls back to the guest name.
func NormalizeName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return DefaultName
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	return name
}

// --- Broadcast helpers ---

func (r *Room) nextSeq() uint64 {
	r.serverSeq++
	return r.serverSeq
}

func (r *Room) sendJoinedLocked(m *Member) {
	r.send(m.PlayerID, codec.NewServerMessage(codec.TypeJoinedRoom, r.ID, r.nextSeq(), codec.JoinedRoom{
		RoomID:   r.ID,
		RoomName: r.Name,
		PlayerID: m.PlayerID,
		Name:     m.Name,
	}))
}

func (r *Room) sendStateLocked(playerID string) {
	r.send(playerID, codec.NewServerMessage(codec.TypeState, r.ID, r.nextSeq(), r.game.View(playerID)))
}

// broadcastStateLocked pushes each online member its own view.
func (r *Room) broadcastStateLocked() {
	for playerID, m := range r.members {
		if !m.Online {
			continue
		}
		r.sendStateLocked(playerID)
	}
}

func (r *Room) broadcastLocked(msgType string, data any) {
	seq := r.nextSeq()
	for playerID, m := range r.members {
		if !m.Online {
			continue
		}
		r.send(playerID, codec.NewServerMessage(msgType, r.ID, seq, data))
	}
}
