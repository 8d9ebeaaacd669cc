package nakama

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"xidach-lite/apps/server/internal/codec"
	"xidach-lite/apps/server/internal/ledger"
	"xidach-lite/card"
	"xidach-lite/replay"
	"xidach-lite/xidach"
	"xidach-lite/xidach/npc"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type sentMessage struct {
	opCode int64
	userID string
	data   []byte
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	sent         []sentMessage
	labelUpdates int
	lastLabel    string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	for _, p := range presences {
		md.sent = append(md.sent, sentMessage{opCode: opCode, userID: p.GetUserId(), data: append([]byte(nil), data...)})
	}
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labelUpdates++
	md.lastLabel = label
	return nil
}

// last decodes the newest push with opCode sent to userID.
func (md *mockDispatcher) last(t *testing.T, userID string, opCode int64, format codec.Format) map[string]any {
	t.Helper()
	for i := len(md.sent) - 1; i >= 0; i-- {
		m := md.sent[i]
		if m.userID != userID || m.opCode != opCode {
			continue
		}
		msg, err := codec.DecodeServer(m.data, format)
		if err != nil {
			t.Fatalf("DecodeServer: %v", err)
		}
		data, _ := msg["data"].(map[string]any)
		return data
	}
	t.Fatalf("no op %d sent to %s", opCode, userID)
	return nil
}

func (md *mockDispatcher) count(userID string, opCode int64) int {
	n := 0
	for _, m := range md.sent {
		if m.userID == userID && m.opCode == opCode {
			n++
		}
	}
	return n
}

type testPresence struct {
	userID   string
	username string
}

func (p testPresence) GetHidden() bool                   { return false }
func (p testPresence) GetPersistence() bool              { return false }
func (p testPresence) GetUsername() string               { return p.username }
func (p testPresence) GetStatus() string                 { return "" }
func (p testPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }
func (p testPresence) GetUserId() string                 { return p.userID }
func (p testPresence) GetSessionId() string              { return "session-" + p.userID }
func (p testPresence) GetNodeId() string                 { return "node-1" }

type testMatchData struct {
	testPresence
	opCode int64
	data   []byte
}

func (d testMatchData) GetOpCode() int64      { return d.opCode }
func (d testMatchData) GetData() []byte       { return d.data }
func (d testMatchData) GetReliable() bool     { return true }
func (d testMatchData) GetReceiveTime() int64 { return 0 }

type memoryLedger struct {
	rounds   []ledger.RoundRecord
	balances map[string]int64
}

func (l *memoryLedger) Close() error { return nil }
func (l *memoryLedger) RecordRound(_ context.Context, rec ledger.RoundRecord) error {
	l.rounds = append(l.rounds, rec)
	return nil
}
func (l *memoryLedger) ListRecent(context.Context, string, int) ([]ledger.HistoryItem, error) {
	return nil, nil
}
func (l *memoryLedger) GetRound(context.Context, string) (*ledger.RoundDetail, error) {
	return nil, ledger.ErrNotFound
}
func (l *memoryLedger) LastBalance(_ context.Context, playerID string) (int64, bool, error) {
	b, ok := l.balances[playerID]
	return b, ok, nil
}

type harness struct {
	handler    *matchHandler
	state      *MatchState
	dispatcher *mockDispatcher
	ledger     *memoryLedger
	now        time.Time
	tick       int64
}

func newHarness(t *testing.T, deck string, personas *npc.PersonaRegistry) *harness {
	t.Helper()
	cfg := xidach.DefaultConfig()
	cfg.Seed = 42
	if deck != "" {
		cfg.DeckOverride = card.MustParseCards(deck)
	}
	h := &harness{
		dispatcher: &mockDispatcher{},
		ledger:     &memoryLedger{balances: map[string]int64{}},
		now:        time.Unix(1_700_000_000, 0),
	}
	h.handler = newMatchHandler(h.ledger, personas)
	state, err := newMatchState("match-1.nakama", cfg, h.ledger, personas)
	if err != nil {
		t.Fatalf("newMatchState: %v", err)
	}
	state.Name = "Bàn thử"
	state.clock = func() time.Time { return h.now }
	h.state = state
	return h
}

func (h *harness) join(userIDs ...string) {
	var presences []runtime.Presence
	for _, id := range userIDs {
		presences = append(presences, testPresence{userID: id, username: id})
	}
	h.handler.MatchJoin(context.Background(), noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, presences)
}

// loop runs one tick with the given messages.
func (h *harness) loop(messages ...runtime.MatchData) interface{} {
	h.tick++
	return h.handler.MatchLoop(context.Background(), noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, messages)
}

func msg(userID string, opCode int64, body string) runtime.MatchData {
	var data []byte
	if body != "" {
		data = []byte(body)
	}
	return testMatchData{testPresence: testPresence{userID: userID, username: userID}, opCode: opCode, data: data}
}

func TestMatchRound_NaturalSettlesAndPersists(t *testing.T) {
	// seat 0: 10s 8h (18), seat 1: As Kd (Xì Dách)
	h := newHarness(t, "10s As 8h Kd", nil)
	h.join("host", "p1")

	joined := h.dispatcher.last(t, "p1", OpJoined, codec.FormatJSON)
	if joined["roomName"] != "Bàn thử" || joined["playerId"] != "p1" {
		t.Fatalf("joined = %v", joined)
	}

	h.loop(msg("host", OpSit, `{"seatIndex":0}`), msg("p1", OpSit, `{"seatIndex":1}`))
	h.loop(msg("host", OpDeal, ""))
	if phase := h.state.Game.Phase(); phase != xidach.PhaseHostTurn {
		t.Fatalf("phase after natural deal = %s, want HOST_TURN", phase)
	}
	h.loop(msg("host", OpCheckAll, ""))

	snap := h.state.Game.Snapshot()
	if snap.Phase != xidach.PhaseResults {
		t.Fatalf("phase = %s, want RESULTS", snap.Phase)
	}
	p1, _ := snap.PlayerByID("p1")
	if p1.Balance != xidach.DefaultStartingBalance+200 {
		t.Fatalf("p1 balance = %d, want %d", p1.Balance, xidach.DefaultStartingBalance+200)
	}
	if got := h.state.Balances["p1"]; got != p1.Balance {
		t.Fatalf("carried balance = %d, want %d", got, p1.Balance)
	}

	for _, viewer := range []string{"host", "p1"} {
		rr := h.dispatcher.last(t, viewer, OpRoundResult, codec.FormatJSON)
		seats, _ := rr["seats"].([]any)
		if rr["round"] != float64(1) || len(seats) != 2 || rr["roundId"] == "" {
			t.Fatalf("round_result for %s = %v", viewer, rr)
		}
	}

	if len(h.ledger.rounds) != 1 {
		t.Fatalf("persisted rounds = %d, want 1", len(h.ledger.rounds))
	}
	rec := h.ledger.rounds[0]
	if rec.RoomID != "match-1.nakama" || rec.Tape == nil || len(rec.Tape.Steps) != 2 {
		t.Fatalf("persisted record = %+v", rec)
	}
	if err := replay.Verify(rec.Tape); err != nil {
		t.Fatalf("recorded tape does not replay: %v", err)
	}
}

func TestMatchRound_RejectionsGoToSender(t *testing.T) {
	h := newHarness(t, "", nil)
	h.join("host", "p1")

	h.loop(msg("host", OpSit, `{"seatIndex":0}`))
	h.loop(msg("p1", OpSit, `{"seatIndex":0}`))
	if e := h.dispatcher.last(t, "p1", OpError, codec.FormatJSON); e["reason"] != "seat_occupied" || e["message"] != "Ghế đã có người" {
		t.Fatalf("occupied seat error = %v", e)
	}

	h.loop(msg("p1", OpHostCheck, ""))
	if e := h.dispatcher.last(t, "p1", OpError, codec.FormatJSON); e["code"] != float64(codec.CodeBadMessage) {
		t.Fatalf("host_check without target = %v", e)
	}

	h.loop(msg("host", OpDeal, ""))
	if e := h.dispatcher.last(t, "host", OpError, codec.FormatJSON); e["reason"] != "not_enough_players" {
		t.Fatalf("solo deal = %v", e)
	}
	if h.dispatcher.count("p1", OpError) != 2 {
		t.Fatalf("p1 errors = %d, want 2", h.dispatcher.count("p1", OpError))
	}
}

func TestMatchRound_TimerExpiryForcesRound(t *testing.T) {
	// seat 1 holds 12 and never acts.
	h := newHarness(t, "10s 10c 8h 2h", nil)
	h.join("host", "p1")
	h.loop(msg("host", OpSit, `{"seatIndex":0}`), msg("p1", OpSit, `{"seatIndex":1}`))
	h.loop(msg("host", OpDeal, ""))

	if timer := h.dispatcher.last(t, "p1", OpTimer, codec.FormatJSON); timer["seconds"] != float64(15) {
		t.Fatalf("timer = %v, want 15", timer)
	}

	h.now = h.now.Add(16 * time.Second)
	h.loop()
	if phase := h.state.Game.Phase(); phase != xidach.PhaseHostTurn {
		t.Fatalf("phase after player timeout = %s, want HOST_TURN", phase)
	}
	h.now = h.now.Add(16 * time.Second)
	h.loop()
	if phase := h.state.Game.Phase(); phase != xidach.PhaseResults {
		t.Fatalf("phase after host timeout = %s, want RESULTS", phase)
	}

	if len(h.ledger.rounds) != 1 {
		t.Fatalf("persisted rounds = %d, want 1", len(h.ledger.rounds))
	}
	steps := h.ledger.rounds[0].Tape.Steps
	if steps[len(steps)-1].Type != xidach.ActionTimeout.String() {
		t.Fatalf("last step = %+v, want timeout", steps[len(steps)-1])
	}
	if err := replay.Verify(h.ledger.rounds[0].Tape); err != nil {
		t.Fatalf("timed-out tape does not replay: %v", err)
	}
}

func TestMatchJoin_CarriesLedgerBalanceAndProtoFrames(t *testing.T) {
	h := newHarness(t, "", nil)
	h.ledger.balances["lan"] = 4200

	_, ok, _ := h.handler.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, h.dispatcher, 0, h.state, testPresence{userID: "lan", username: "lan"}, map[string]string{"format": "proto"})
	if !ok {
		t.Fatalf("join attempt rejected")
	}
	h.join("lan")

	body, err := structpb.NewStruct(map[string]interface{}{"seatIndex": 2})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	data, err := proto.Marshal(body)
	if err != nil {
		t.Fatalf("proto.Marshal: %v", err)
	}
	h.loop(testMatchData{testPresence: testPresence{userID: "lan", username: "lan"}, opCode: OpSit, data: data})

	view := h.dispatcher.last(t, "lan", OpState, codec.FormatProto)
	seats, _ := view["seats"].([]any)
	me, _ := seats[2].(map[string]any)
	if me == nil || me["balance"] != float64(4200) || me["isMe"] != true {
		t.Fatalf("own seat = %v", me)
	}
}

func TestMatchLabel_TracksSeatsAndPhase(t *testing.T) {
	h := newHarness(t, "", nil)
	h.join("host", "p1")
	h.loop(msg("host", OpSit, `{"seatIndex":0}`), msg("p1", OpSit, `{"seatIndex":1}`))

	var label map[string]any
	if err := json.Unmarshal([]byte(h.dispatcher.lastLabel), &label); err != nil {
		t.Fatalf("label %q: %v", h.dispatcher.lastLabel, err)
	}
	if label["game"] != LabelGame || label["open"] != float64(8) || label["phase"] != "LOBBY" {
		t.Fatalf("label = %v", label)
	}
	if h.state.GetOpenSeatsCount() != 8 {
		t.Fatalf("open seats = %d, want 8", h.state.GetOpenSeatsCount())
	}

	updates := h.dispatcher.labelUpdates
	h.loop(msg("host", OpSetBet, `{"amount":200}`))
	if h.dispatcher.labelUpdates != updates {
		t.Fatalf("bet change should not rewrite an unchanged label")
	}
}

func TestMatchLeave_TerminatesWithoutHumans(t *testing.T) {
	h := newHarness(t, "", nil)
	h.join("host")
	h.loop(msg("host", OpSit, `{"seatIndex":0}`))

	next := h.handler.MatchLeave(context.Background(), noopLogger{}, nil, nil, h.dispatcher, h.tick, h.state, []runtime.Presence{testPresence{userID: "host"}})
	if next != nil {
		t.Fatalf("match with no humans should terminate")
	}
}

func TestProcessBots_FillsSoloTableAndPlays(t *testing.T) {
	h := newHarness(t, "", npc.NewDefaultRegistry())
	h.state.BotsEnabled = true
	h.state.NPC = npc.NewManagerWithSeed(npc.NewDefaultRegistry(), 7)
	h.join("host")
	h.loop(msg("host", OpSit, `{"seatIndex":0}`))

	for i := 0; i < botAutoFillSeconds*tickRate+1; i++ {
		h.loop()
	}
	snap := h.state.Game.Snapshot()
	if snap.Occupied() != 2 || h.state.GetHumanSeatCount() != 1 {
		t.Fatalf("seats after auto-fill = %d (humans %d), want 2 (1)", snap.Occupied(), h.state.GetHumanSeatCount())
	}

	h.loop(msg("host", OpDeal, ""))
	// Bots think at most a few seconds; the host then checks everyone.
	for i := 0; i < 20*tickRate && h.state.Game.Phase() == xidach.PhasePlayerTurns; i++ {
		h.now = h.now.Add(time.Second / tickRate)
		h.loop()
	}
	if phase := h.state.Game.Phase(); phase == xidach.PhasePlayerTurns {
		t.Fatalf("bot never finished its turn")
	}
}

func TestConfigFromEnv(t *testing.T) {
	cfg, bots := configFromEnv(map[string]string{
		envTurnSeconds: "20",
		envMaxSeats:    "6",
		envBotsEnabled: "true",
	})
	if cfg.TurnTimeout != 20*time.Second || cfg.MaxSeats != 6 || !bots {
		t.Fatalf("cfg = %+v bots=%t", cfg, bots)
	}

	cfg, bots = configFromEnv(nil)
	if cfg.TurnTimeout != xidach.DefaultTurnTimeout || cfg.MaxSeats != xidach.DefaultMaxSeats || bots {
		t.Fatalf("default cfg = %+v bots=%t", cfg, bots)
	}
}

// fakeNakama overrides the two calls quick_match makes; anything else panics.
type fakeNakama struct {
	runtime.NakamaModule
	matches    []*api.Match
	created    int
	lastQuery  string
	lastParams map[string]interface{}
}

func (f *fakeNakama) MatchList(ctx context.Context, limit int, authoritative bool, label string, minSize, maxSize *int, query string) ([]*api.Match, error) {
	f.lastQuery = query
	return f.matches, nil
}

func (f *fakeNakama) MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error) {
	f.created++
	f.lastParams = params
	return "new-match." + module, nil
}

func TestRpcQuickMatch(t *testing.T) {
	nk := &fakeNakama{}
	out, err := rpcQuickMatch(context.Background(), noopLogger{}, nil, nk, `{"name":"Sòng","bots":2}`)
	if err != nil {
		t.Fatalf("rpcQuickMatch: %v", err)
	}
	var resp QuickMatchResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("response %q: %v", out, err)
	}
	if !resp.IsNew || resp.MatchID != "new-match."+MatchNameXiDach || nk.created != 1 {
		t.Fatalf("create response = %+v (created %d)", resp, nk.created)
	}
	if nk.lastParams["name"] != "Sòng" || nk.lastParams["bots"] != 2 {
		t.Fatalf("create params = %v", nk.lastParams)
	}
	if nk.lastQuery != "+label.game:xidach +label.open:>=1" {
		t.Fatalf("query = %q", nk.lastQuery)
	}

	nk.matches = []*api.Match{{MatchId: "open-1"}}
	out, err = rpcQuickMatch(context.Background(), noopLogger{}, nil, nk, "")
	if err != nil {
		t.Fatalf("rpcQuickMatch: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("response %q: %v", out, err)
	}
	if resp.IsNew || resp.MatchID != "open-1" || nk.created != 1 {
		t.Fatalf("join response = %+v (created %d)", resp, nk.created)
	}

	if _, err := rpcQuickMatch(context.Background(), noopLogger{}, nil, nk, "{"); err == nil {
		t.Fatalf("bad payload should fail")
	}
}

func TestParamHelpers(t *testing.T) {
	params := map[string]interface{}{"name": "Bàn 7", "bots": float64(3), "n": "4"}
	if paramString(params, "name") != "Bàn 7" || paramString(params, "missing") != "" {
		t.Fatalf("paramString")
	}
	if paramInt(params, "bots") != 3 || paramInt(params, "n") != 4 || paramInt(params, "missing") != 0 {
		t.Fatalf("paramInt")
	}
}
