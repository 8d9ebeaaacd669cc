package nakama

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	"xidach-lite/apps/server/internal/codec"
	"xidach-lite/apps/server/internal/ledger"
	"xidach-lite/apps/server/internal/room"
	"xidach-lite/replay"
	"xidach-lite/xidach"
	"xidach-lite/xidach/npc"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	tickRate = 2 // ticks per second

	// maxPresencesPerSeat bounds spectators: a full table plus watchers.
	maxPresencesPerSeat = 3

	botAutoFillSeconds = 5
	autoDealSeconds    = 4
	emptyMatchSeconds  = 60

	persistTimeout = 3 * time.Second
	balanceTimeout = 2 * time.Second
)

// MatchState holds the authoritative runtime state for the Nakama match handler.
type MatchState struct {
	MatchID string `json:"match_id"`
	Name    string `json:"name"`
	Tick    int64  `json:"tick"`

	Config xidach.Config `json:"-"`
	Game   *xidach.Game  `json:"-"`

	Presences map[string]runtime.Presence `json:"-"` // Map UserId -> Presence for targeted messaging
	Formats   map[string]codec.Format     `json:"-"` // push encoding per user
	Balances  map[string]int64            `json:"-"` // carried into the next sit

	Recorder *replay.Recorder `json:"-"`
	RoundID  string           `json:"round_id"`
	Ledger   ledger.Service   `json:"-"`

	// StateVersion moves on every accepted action; a pending bot move is
	// dropped when it no longer matches.
	StateVersion uint64 `json:"state_version"`

	BotsEnabled      bool         `json:"bots_enabled"`
	NPC              *npc.Manager `json:"-"`
	BotVersion       uint64       `json:"bot_version"`
	BotWaitUntil     int64        `json:"bot_wait_until"` // Tick when the bot should act
	BotActed         bool         `json:"bot_acted"`
	LastSoloSeatTick int64        `json:"last_solo_seat_tick"`

	Seq           uint64 `json:"seq"`
	LastTimerSecs int    `json:"last_timer_secs"`
	Label         string `json:"label"`
	EmptySince    int64  `json:"empty_since"`

	clock func() time.Time
}

func newMatchState(matchID string, cfg xidach.Config, ledgerService ledger.Service, personas *npc.PersonaRegistry) (*MatchState, error) {
	if ledgerService == nil {
		ledgerService = ledger.NewNoopService()
	}
	state := &MatchState{
		MatchID:       matchID,
		Presences:     make(map[string]runtime.Presence),
		Formats:       make(map[string]codec.Format),
		Balances:      make(map[string]int64),
		Ledger:        ledgerService,
		LastTimerSecs: -1,
	}
	cfg.Clock = state.now
	game, err := xidach.NewGame(cfg)
	if err != nil {
		return nil, err
	}
	state.Config = cfg
	state.Game = game
	state.Recorder = replay.NewRecorder(matchID, cfg)
	if personas != nil {
		state.NPC = npc.NewManager(personas)
	}
	return state, nil
}

func (ms *MatchState) now() time.Time {
	if ms.clock != nil {
		return ms.clock()
	}
	return time.Now()
}

func (ms *MatchState) GetOpenSeatsCount() int {
	snap := ms.Game.Snapshot()
	return snap.MaxSeats - snap.Occupied()
}

// GetHumanSeatCount counts seated players that are not bots.
func (ms *MatchState) GetHumanSeatCount() int {
	count := 0
	for _, ps := range ms.Game.Snapshot().Players {
		if !ps.Robot {
			count++
		}
	}
	return count
}

func (ms *MatchState) isBot(userID string) bool {
	return ms.NPC != nil && ms.NPC.IsNPC(userID)
}

func (ms *MatchState) ticksFor(d time.Duration) int64 {
	ticks := int64(math.Ceil(d.Seconds() * tickRate))
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

type matchHandler struct {
	ledger   ledger.Service
	personas *npc.PersonaRegistry
}

func newMatchHandler(ledgerService ledger.Service, personas *npc.PersonaRegistry) *matchHandler {
	return &matchHandler{ledger: ledgerService, personas: personas}
}

// configFromEnv applies the runtime env overrides to the default table.
func configFromEnv(env map[string]string) (xidach.Config, bool) {
	cfg := xidach.DefaultConfig()
	if val, ok := env[envTurnSeconds]; ok {
		if i, err := strconv.Atoi(val); err == nil && i >= 0 {
			cfg.TurnTimeout = time.Duration(i) * time.Second
		}
	}
	if val, ok := env[envMaxSeats]; ok {
		if i, err := strconv.Atoi(val); err == nil && i >= cfg.MinPlayers {
			cfg.MaxSeats = i
		}
	}
	return cfg, env[envBotsEnabled] == "true"
}

// MatchInit is called when the match is created.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	cfg, botsEnabled := configFromEnv(env)
	matchID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string)

	state, err := newMatchState(matchID, cfg, mh.ledger, mh.personas)
	if err != nil {
		logger.Error("MatchInit: Failed to create game: %v", err)
		return nil, 0, ""
	}
	state.BotsEnabled = botsEnabled
	state.Name = paramString(params, "name")
	if state.Name == "" {
		state.Name = "Bàn Nakama"
	}
	if bots := paramInt(params, "bots"); bots > 0 {
		state.BotsEnabled = true
		added := mh.addBots(state, bots, logger)
		logger.Info("MatchInit: Seated %d bots.", added)
	}

	label, err := state.label()
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}
	state.Label = label

	logger.Debug("MatchInit: %s ready (seats=%d, turn=%s, bots=%t).", state.Name, cfg.MaxSeats, cfg.TurnTimeout, state.BotsEnabled)
	return state, tickRate, label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	if _, rejoin := matchState.Presences[presence.GetUserId()]; !rejoin && len(matchState.Presences) >= matchState.Config.MaxSeats*maxPresencesPerSeat {
		return state, false, "Match full"
	}
	matchState.Formats[presence.GetUserId()] = formatFromMetadata(metadata)
	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		userID := p.GetUserId()
		matchState.Presences[userID] = p
		matchState.EmptySince = 0

		if _, known := matchState.Balances[userID]; !known {
			matchState.Balances[userID] = mh.carriedBalance(ctx, matchState, logger, userID)
		}
		if _, seated := matchState.Game.SeatOf(userID); seated {
			if err := matchState.Game.SetConnected(userID, true); err != nil {
				logger.Warn("MatchJoin: reconnect %s failed: %v", userID, err)
			}
		}

		mh.sendTo(matchState, dispatcher, logger, p, OpJoined, codec.TypeJoinedRoom, codec.JoinedRoom{
			RoomID:   matchState.MatchID,
			RoomName: matchState.Name,
			PlayerID: userID,
			Name:     room.NormalizeName(p.GetUsername()),
		})
		logger.Debug("MatchJoin: User %s joined.", userID)
	}

	mh.broadcastState(matchState, dispatcher, logger)
	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) carriedBalance(ctx context.Context, state *MatchState, logger runtime.Logger, userID string) int64 {
	ctx, cancel := context.WithTimeout(ctx, balanceTimeout)
	defer cancel()
	balance, ok, err := state.Ledger.LastBalance(ctx, userID)
	if err != nil {
		logger.Warn("MatchJoin: balance lookup for %s failed: %v", userID, err)
		return 0
	}
	if !ok {
		return 0
	}
	return balance
}

// MatchLeave is called when one or more players leave the match. A seat
// left mid-round keeps being played by the turn timer until settlement.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		userID := p.GetUserId()
		delete(matchState.Presences, userID)
		delete(matchState.Formats, userID)

		if _, seated := matchState.Game.SeatOf(userID); !seated {
			continue
		}
		_ = matchState.Game.SetConnected(userID, false)
		if err := mh.apply(ctx, matchState, dispatcher, logger, userID, xidach.ActionLeave, 0, func() (xidach.Outcome, error) {
			return matchState.Game.Leave(userID)
		}); err != nil {
			logger.Warn("MatchLeave: User %s could not leave seat: %v", userID, err)
		}
	}

	if len(matchState.Presences) == 0 && matchState.GetHumanSeatCount() == 0 {
		logger.Info("MatchLeave: Terminating match with no humans.")
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	for _, msg := range messages {
		mh.handleMessage(ctx, matchState, dispatcher, logger, msg)
	}

	now := matchState.now()
	mh.handleTimeout(ctx, matchState, dispatcher, logger, now)
	mh.pushTimer(matchState, dispatcher, logger, now)

	if matchState.BotsEnabled {
		mh.processBots(ctx, matchState, dispatcher, logger)
	}

	if len(matchState.Presences) == 0 {
		if matchState.EmptySince == 0 {
			matchState.EmptySince = tick
		} else if tick-matchState.EmptySince >= emptyMatchSeconds*tickRate {
			logger.Info("MatchLoop: Terminating match idle for %ds.", emptyMatchSeconds)
			return nil
		}
	}

	return matchState
}

func (mh *matchHandler) handleMessage(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	userID := msg.GetUserId()
	req, err := decodePayload(msg.GetData())
	if err != nil {
		logger.Warn("handleMessage: Invalid payload from %s (op=%d): %v", userID, msg.GetOpCode(), err)
		mh.sendError(state, dispatcher, logger, userID, err)
		return
	}
	game := state.Game

	switch msg.GetOpCode() {
	case OpSit:
		if req.SeatIndex == nil {
			err = codec.ErrBadMessage
			break
		}
		seat := *req.SeatIndex
		name := room.NormalizeName(msg.GetUsername())
		balance := state.Balances[userID]
		err = mh.apply(ctx, state, dispatcher, logger, userID, xidach.ActionSit, seat, func() (xidach.Outcome, error) {
			return game.Sit(userID, name, seat, balance, false)
		})
	case OpLeaveSeat:
		err = mh.apply(ctx, state, dispatcher, logger, userID, xidach.ActionLeave, 0, func() (xidach.Outcome, error) {
			return game.Leave(userID)
		})
	case OpSetBet:
		err = mh.apply(ctx, state, dispatcher, logger, userID, xidach.ActionSetBet, 0, func() (xidach.Outcome, error) {
			return game.SetBet(userID, req.Amount)
		})
	case OpDeal:
		err = mh.apply(ctx, state, dispatcher, logger, userID, xidach.ActionDeal, 0, func() (xidach.Outcome, error) {
			return game.Deal(userID)
		})
	case OpHit:
		err = mh.apply(ctx, state, dispatcher, logger, userID, xidach.ActionHit, 0, func() (xidach.Outcome, error) {
			return game.Hit(userID)
		})
	case OpStay:
		err = mh.apply(ctx, state, dispatcher, logger, userID, xidach.ActionStay, 0, func() (xidach.Outcome, error) {
			return game.Stay(userID)
		})
	case OpHostCheck:
		if req.TargetSeatIndex == nil {
			err = codec.ErrBadMessage
			break
		}
		target := *req.TargetSeatIndex
		err = mh.apply(ctx, state, dispatcher, logger, userID, xidach.ActionHostCheck, target, func() (xidach.Outcome, error) {
			return game.HostCheck(userID, target)
		})
	case OpCheckAll:
		err = mh.apply(ctx, state, dispatcher, logger, userID, xidach.ActionCheckAll, 0, func() (xidach.Outcome, error) {
			return game.CheckAll(userID)
		})
	case OpTransferHost:
		if req.TargetSeatIndex == nil {
			err = codec.ErrBadMessage
			break
		}
		target := *req.TargetSeatIndex
		err = mh.apply(ctx, state, dispatcher, logger, userID, xidach.ActionTransferHost, target, func() (xidach.Outcome, error) {
			return game.TransferHost(userID, target)
		})
	default:
		logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		return
	}

	if err != nil {
		logger.Debug("handleMessage: User %s op %d rejected: %v", userID, msg.GetOpCode(), err)
		mh.sendError(state, dispatcher, logger, userID, err)
	}
}

// apply runs one game call and, when accepted, records it and fans the new
// state out.
func (mh *matchHandler) apply(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, action xidach.ActionType, target int, call func() (xidach.Outcome, error)) error {
	o, err := call()
	if err != nil {
		return err
	}
	if action == xidach.ActionDeal {
		state.RoundID = uuid.NewString()
		state.LastTimerSecs = -1
		state.Recorder.Begin(state.RoundID, state.Game.LastRoundStart(), userID)
		logger.Info("Round %d dealt by %s (round_id=%s)", state.Game.Round(), userID, state.RoundID)
	} else {
		state.Recorder.Record(action, userID, target)
	}
	mh.afterOutcome(ctx, state, dispatcher, logger, o)
	return nil
}

func (mh *matchHandler) afterOutcome(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, o xidach.Outcome) {
	state.StateVersion++
	if o.RoundFinished {
		mh.finishRound(ctx, state, dispatcher, logger)
	}
	mh.broadcastState(state, dispatcher, logger)
	mh.updateLabel(state, dispatcher, logger)
}

func (mh *matchHandler) finishRound(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	rr := state.Game.LastResult()
	if rr == nil {
		return
	}
	roundID := state.RoundID
	if roundID == "" {
		roundID = uuid.NewString()
	}
	tape := state.Recorder.Finish(rr)
	state.RoundID = ""
	state.LastTimerSecs = -1

	mh.broadcast(state, dispatcher, logger, OpRoundResult, codec.TypeRoundResult, codec.RoundResultFrom(roundID, rr))

	for _, s := range rr.Seats {
		if !s.Robot {
			state.Balances[s.PlayerID] = s.BalanceAfter
		}
	}
	for _, ev := range rr.Evictions {
		if state.isBot(ev.PlayerID) {
			state.NPC.DespawnNPC(ev.PlayerID)
			continue
		}
		state.Balances[ev.PlayerID] = ev.Balance
	}
	logger.Info("Round %d settled (round_id=%s, host_delta=%d)", rr.Round, roundID, rr.HostDelta())

	// Economy writes happen inline in the loop, bounded by a timeout.
	pctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := state.Ledger.RecordRound(pctx, ledger.NewRoundRecord(state.MatchID, roundID, rr, tape)); err != nil {
		logger.Error("Failed to record round %s: %v", roundID, err)
	}

	mh.chooseBotBets(state, logger)
}

func (mh *matchHandler) handleTimeout(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, now time.Time) {
	token, due := state.Game.PendingTimeout(now)
	if !due {
		return
	}
	o, err := state.Game.Expire(token)
	if err != nil {
		logger.Warn("handleTimeout: expire failed: %v", err)
		return
	}
	logger.Debug("Turn timer expired, forced=%d phase=%s", len(o.Forced), o.Phase)
	state.Recorder.Record(xidach.ActionTimeout, "", 0)
	mh.afterOutcome(ctx, state, dispatcher, logger, o)
}

// pushTimer sends the whole-second countdown whenever it changes.
func (mh *matchHandler) pushTimer(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, now time.Time) {
	if !state.Game.Phase().InRound() {
		return
	}
	secs := int(math.Ceil(state.Game.TurnTimeLeft(now).Seconds()))
	if secs == state.LastTimerSecs {
		return
	}
	state.LastTimerSecs = secs
	mh.broadcast(state, dispatcher, logger, OpTimer, codec.TypeTimer, codec.Timer{Seconds: secs})
}

func (mh *matchHandler) processBots(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if state.NPC == nil {
		return
	}
	snap := state.Game.Snapshot()

	// 1. A lone human gets an opponent after a short wait.
	if !snap.Phase.InRound() && snap.Occupied() < state.Config.MinPlayers && state.GetHumanSeatCount() > 0 {
		if state.LastSoloSeatTick == 0 {
			state.LastSoloSeatTick = state.Tick
		}
		if state.Tick-state.LastSoloSeatTick >= botAutoFillSeconds*tickRate {
			added := mh.addBots(state, state.Config.MinPlayers-snap.Occupied(), logger)
			state.LastSoloSeatTick = 0
			if added > 0 {
				state.StateVersion++
				mh.broadcastState(state, dispatcher, logger)
				mh.updateLabel(state, dispatcher, logger)
			}
			return
		}
	} else {
		state.LastSoloSeatTick = 0
	}

	// 2. The bot the table is waiting on.
	botID, action, ok := mh.actingBot(state, snap)
	if !ok {
		state.BotWaitUntil = 0
		return
	}
	if state.BotVersion != state.StateVersion || state.BotWaitUntil == 0 {
		state.BotVersion = state.StateVersion
		state.BotActed = false
		delay := state.ticksFor(state.NPC.GetThinkDelay(botID))
		if action == xidach.ActionDeal {
			delay = autoDealSeconds * tickRate
		}
		state.BotWaitUntil = state.Tick + delay
		logger.Debug("processBots: Bot %s will act at tick %d (current %d)", botID, state.BotWaitUntil, state.Tick)
	}
	if state.BotActed || state.Tick < state.BotWaitUntil {
		return
	}
	state.BotActed = true

	if action == xidach.ActionDeal {
		if err := mh.apply(ctx, state, dispatcher, logger, botID, xidach.ActionDeal, 0, func() (xidach.Outcome, error) {
			return state.Game.Deal(botID)
		}); err != nil {
			logger.Warn("processBots: Bot %s failed to deal: %v", botID, err)
		}
		return
	}

	decision := state.NPC.OnTurn(botID, snap, state.Config)
	if err := mh.applyBotDecision(ctx, state, dispatcher, logger, botID, decision); err != nil {
		// The turn timer still covers a bot whose move was refused.
		logger.Warn("processBots: Bot %s failed to act (%v): %v", botID, decision.Action, err)
	}
}

// actingBot returns the bot the round is waiting on. Between rounds a bot
// host deals while a human is watching.
func (mh *matchHandler) actingBot(state *MatchState, snap xidach.Snapshot) (string, xidach.ActionType, bool) {
	var seat int
	action := xidach.ActionNone
	switch snap.Phase {
	case xidach.PhasePlayerTurns:
		seat = snap.TurnSeat
	case xidach.PhaseHostTurn:
		seat = snap.HostSeat
	case xidach.PhaseLobby, xidach.PhaseResults:
		if snap.Occupied() < state.Config.MinPlayers || len(state.Presences) == 0 {
			return "", action, false
		}
		seat = snap.HostSeat
		action = xidach.ActionDeal
	default:
		return "", action, false
	}
	for _, ps := range snap.Players {
		if ps.Seat == seat && state.isBot(ps.ID) && !ps.Leaving {
			return ps.ID, action, true
		}
	}
	return "", action, false
}

func (mh *matchHandler) applyBotDecision(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, botID string, decision npc.Decision) error {
	game := state.Game
	hit := func() (xidach.Outcome, error) { return game.Hit(botID) }
	stay := func() (xidach.Outcome, error) { return game.Stay(botID) }

	var err error
	switch decision.Action {
	case xidach.ActionHit:
		if err = mh.apply(ctx, state, dispatcher, logger, botID, xidach.ActionHit, 0, hit); err != nil {
			err = mh.apply(ctx, state, dispatcher, logger, botID, xidach.ActionStay, 0, stay)
		}
	case xidach.ActionStay:
		if err = mh.apply(ctx, state, dispatcher, logger, botID, xidach.ActionStay, 0, stay); err != nil {
			err = mh.apply(ctx, state, dispatcher, logger, botID, xidach.ActionHit, 0, hit)
		}
	case xidach.ActionCheckAll:
		err = mh.apply(ctx, state, dispatcher, logger, botID, xidach.ActionCheckAll, 0, func() (xidach.Outcome, error) {
			return game.CheckAll(botID)
		})
		if err != nil {
			err = mh.apply(ctx, state, dispatcher, logger, botID, xidach.ActionHit, 0, hit)
		}
	case xidach.ActionHostCheck:
		target := int(decision.Amount)
		err = mh.apply(ctx, state, dispatcher, logger, botID, xidach.ActionHostCheck, target, func() (xidach.Outcome, error) {
			return game.HostCheck(botID, target)
		})
	default:
		err = fmt.Errorf("unsupported bot action %v", decision.Action)
	}
	return err
}

// addBots seats up to n bots in the lowest free seats.
func (mh *matchHandler) addBots(state *MatchState, n int, logger runtime.Logger) int {
	if state.NPC == nil || n <= 0 {
		return 0
	}
	taken := make(map[int]bool)
	for _, ps := range state.Game.Snapshot().Players {
		taken[ps.Seat] = true
	}
	added := 0
	for seat := 0; seat < state.Config.MaxSeats && added < n; seat++ {
		if taken[seat] {
			continue
		}
		inst, err := state.NPC.SpawnNPC(state.Game, seat, nil, 0)
		if err != nil {
			logger.Error("addBots: Failed to seat bot at %d: %v", seat, err)
			break
		}
		mh.chooseBotBet(state, logger, inst.PlayerID)
		logger.Info("addBots: Added bot %s (%s) to seat %d", inst.Persona.Name, inst.PlayerID, seat)
		added++
	}
	return added
}

func (mh *matchHandler) chooseBotBets(state *MatchState, logger runtime.Logger) {
	if state.NPC == nil {
		return
	}
	for _, ps := range state.Game.Snapshot().Players {
		if state.isBot(ps.ID) {
			mh.chooseBotBet(state, logger, ps.ID)
		}
	}
}

func (mh *matchHandler) chooseBotBet(state *MatchState, logger runtime.Logger, botID string) {
	bet, ok := state.NPC.ChooseBet(botID, state.Game.Snapshot(), state.Config)
	if !ok {
		return
	}
	if _, err := state.Game.SetBet(botID, bet); err != nil {
		logger.Warn("Bot %s bet %d rejected: %v", botID, bet, err)
	}
}

// --- Push helpers ---

func (mh *matchHandler) sendTo(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, presence runtime.Presence, opCode int64, msgType string, data any) {
	state.Seq++
	msg := codec.NewServerMessage(msgType, state.MatchID, state.Seq, data)
	bytes, err := codec.EncodeServer(msg, state.Formats[presence.GetUserId()])
	if err != nil {
		logger.Error("Failed to marshal %s: %v", msgType, err)
		return
	}
	if err := dispatcher.BroadcastMessage(opCode, bytes, []runtime.Presence{presence}, nil, true); err != nil {
		logger.Warn("Failed to send %s to %s: %v", msgType, presence.GetUserId(), err)
	}
}

func (mh *matchHandler) broadcast(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, opCode int64, msgType string, data any) {
	for _, p := range state.Presences {
		mh.sendTo(state, dispatcher, logger, p, opCode, msgType, data)
	}
}

// broadcastState pushes each presence its own view of the table.
func (mh *matchHandler) broadcastState(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	for userID, p := range state.Presences {
		mh.sendTo(state, dispatcher, logger, p, OpState, codec.TypeState, state.Game.View(userID))
	}
}

// sendError sends an error envelope to a specific user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, err error) {
	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}
	mh.sendTo(state, dispatcher, logger, presence, OpError, codec.TypeError, codec.ErrorFrom(err))
}

func (ms *MatchState) label() (string, error) {
	snap := ms.Game.Snapshot()
	return marshalLabel(LabelGame, ms.Name, snap.Phase.String(), snap.MaxSeats-snap.Occupied())
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := state.label()
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if label == state.Label {
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
		return
	}
	state.Label = label
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Match terminated with %d grace seconds", graceSeconds)
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
