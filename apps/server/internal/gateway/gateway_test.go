package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"xidach-lite/apps/server/internal/auth"
	"xidach-lite/apps/server/internal/codec"
	"xidach-lite/apps/server/internal/lobby"
	"xidach-lite/apps/server/internal/room"
	"xidach-lite/xidach"

	"github.com/gorilla/websocket"
)

type testServer struct {
	srv     *httptest.Server
	auth    *auth.Manager
	tickets *auth.Ticketer
	lobby   *lobby.Lobby
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	lby := lobby.New(xidach.DefaultConfig(), room.Options{}, time.Minute)
	mgr := auth.NewManager()
	tickets, err := auth.NewTicketer("gateway-test-secret", time.Minute)
	if err != nil {
		t.Fatalf("NewTicketer: %v", err)
	}
	gw := New(lby, mgr, tickets)
	lby.EnsureDefaultRooms(1, 0)

	srv := httptest.NewServer(http.HandlerFunc(gw.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		lby.Close()
	})
	return &testServer{srv: srv, auth: mgr, tickets: tickets, lobby: lby}
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(s.url(query), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial %q: %v (status %d)", query, err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s *testServer) url(query string) string {
	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func send(t *testing.T, conn *websocket.Conn, msg codec.ClientMessage, format codec.Format) {
	t.Helper()
	data, err := codec.EncodeClient(msg, format)
	if err != nil {
		t.Fatalf("EncodeClient: %v", err)
	}
	frame := websocket.TextMessage
	if format == codec.FormatProto {
		frame = websocket.BinaryMessage
	}
	if err := conn.WriteMessage(frame, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil skips pushes until one of type want arrives and returns its data.
func readUntil(t *testing.T, conn *websocket.Conn, format codec.Format, want string, match func(map[string]any) bool) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		frame, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if format == codec.FormatProto && frame != websocket.BinaryMessage {
			t.Fatalf("proto connection got frame type %d", frame)
		}
		msg, err := codec.DecodeServer(data, format)
		if err != nil {
			t.Fatalf("DecodeServer: %v", err)
		}
		if msg["type"] != want {
			continue
		}
		payload, _ := msg["data"].(map[string]any)
		if match == nil || match(payload) {
			return payload
		}
	}
}

func intPtr(v int) *int { return &v }

func TestGuestJoinSitAndErrors(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, "")

	hello := readUntil(t, conn, codec.FormatJSON, codec.TypeHello, nil)
	playerID, _ := hello["playerId"].(string)
	if playerID == "" || hello["token"] == "" || !strings.HasPrefix(hello["name"].(string), "Khách ") {
		t.Fatalf("hello = %v", hello)
	}

	send(t, conn, codec.ClientMessage{Type: codec.TypeListRooms}, codec.FormatJSON)
	list := readUntil(t, conn, codec.FormatJSON, codec.TypeRoomList, nil)
	rooms, _ := list["rooms"].([]any)
	if len(rooms) != 1 || rooms[0].(map[string]any)["name"] != "Bàn 1" {
		t.Fatalf("room_list = %v", list)
	}

	send(t, conn, codec.ClientMessage{Type: codec.TypeJoinRoom, RoomID: "room-404"}, codec.FormatJSON)
	if e := readUntil(t, conn, codec.FormatJSON, codec.TypeError, nil); e["message"] != "Phòng không tồn tại" {
		t.Fatalf("unknown room error = %v", e)
	}

	send(t, conn, codec.ClientMessage{Type: codec.TypeHit}, codec.FormatJSON)
	if e := readUntil(t, conn, codec.FormatJSON, codec.TypeError, nil); e["reason"] != "not_in_room" {
		t.Fatalf("action outside a room = %v", e)
	}

	send(t, conn, codec.ClientMessage{Type: codec.TypeJoinRoom, RoomID: "room-1", Name: "Lan"}, codec.FormatJSON)
	joined := readUntil(t, conn, codec.FormatJSON, codec.TypeJoinedRoom, nil)
	if joined["playerId"] != playerID || joined["name"] != "Lan" || joined["roomName"] != "Bàn 1" {
		t.Fatalf("joined_room = %v", joined)
	}

	send(t, conn, codec.ClientMessage{Type: codec.TypeSit}, codec.FormatJSON)
	if e := readUntil(t, conn, codec.FormatJSON, codec.TypeError, nil); e["code"] != float64(codec.CodeBadMessage) {
		t.Fatalf("sit without seat = %v", e)
	}

	send(t, conn, codec.ClientMessage{Type: codec.TypeSit, SeatIndex: intPtr(3)}, codec.FormatJSON)
	state := readUntil(t, conn, codec.FormatJSON, codec.TypeState, func(d map[string]any) bool {
		seats, _ := d["seats"].([]any)
		return len(seats) > 3 && seats[3] != nil
	})
	me := state["seats"].([]any)[3].(map[string]any)
	if me["name"] != "Lan" || me["isMe"] != true || me["isHost"] != true {
		t.Fatalf("own seat = %v", me)
	}

	send(t, conn, codec.ClientMessage{Type: codec.TypeDeal}, codec.FormatJSON)
	if e := readUntil(t, conn, codec.FormatJSON, codec.TypeError, nil); e["reason"] != "not_enough_players" || e["message"] != "Cần ít nhất 2 người chơi" {
		t.Fatalf("solo deal = %v", e)
	}
}

func TestTwoPlayersDeal(t *testing.T) {
	s := newTestServer(t)
	a := s.dial(t, "")
	b := s.dial(t, "")

	for i, conn := range []*websocket.Conn{a, b} {
		send(t, conn, codec.ClientMessage{Type: codec.TypeJoinRoom, RoomID: "room-1"}, codec.FormatJSON)
		readUntil(t, conn, codec.FormatJSON, codec.TypeJoinedRoom, nil)
		send(t, conn, codec.ClientMessage{Type: codec.TypeSit, SeatIndex: intPtr(i)}, codec.FormatJSON)
	}
	readUntil(t, a, codec.FormatJSON, codec.TypeState, func(d map[string]any) bool {
		seats, _ := d["seats"].([]any)
		return len(seats) > 1 && seats[1] != nil
	})

	send(t, a, codec.ClientMessage{Type: codec.TypeDeal}, codec.FormatJSON)
	for _, conn := range []*websocket.Conn{a, b} {
		state := readUntil(t, conn, codec.FormatJSON, codec.TypeState, func(d map[string]any) bool {
			return d["round"] == float64(1)
		})
		if state["phase"] == "LOBBY" {
			t.Fatalf("phase after deal = %v", state["phase"])
		}
	}

	info := s.lobby.Get("room-1").Info()
	if info.PlayerCount != 2 || info.Phase == "LOBBY" {
		t.Fatalf("room info = %+v", info)
	}
}

func TestSessionAndTicketIdentity(t *testing.T) {
	s := newTestServer(t)

	first := s.dial(t, "")
	hello := readUntil(t, first, codec.FormatJSON, codec.TypeHello, nil)
	token := hello["token"].(string)
	first.Close()

	again := s.dial(t, "token="+token)
	rehello := readUntil(t, again, codec.FormatJSON, codec.TypeHello, nil)
	if rehello["playerId"] != hello["playerId"] {
		t.Fatalf("session reconnect changed identity: %v vs %v", rehello["playerId"], hello["playerId"])
	}
	if _, hasToken := rehello["token"]; hasToken {
		t.Fatalf("reused session should not resend a token")
	}

	acct, _, err := s.auth.Register("lan_99", "secret12")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	ticket, err := s.tickets.Issue(acct.ID, acct.Username)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	conn := s.dial(t, "ticket="+ticket)
	th := readUntil(t, conn, codec.FormatJSON, codec.TypeHello, nil)
	if th["playerId"] != acct.PlayerID() || th["name"] != "lan_99" {
		t.Fatalf("ticket hello = %v", th)
	}

	_, resp, err := websocket.DefaultDialer.Dial(s.url("ticket=not-a-jwt"), nil)
	if err == nil {
		t.Fatalf("bad ticket should not connect")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad ticket response = %v", resp)
	}
}

func TestAccountCarriesNameAndChips(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, "")
	hello := readUntil(t, conn, codec.FormatJSON, codec.TypeHello, nil)
	token := hello["token"].(string)
	accountID, ok := auth.AccountIDOf(hello["playerId"].(string))
	if !ok {
		t.Fatalf("guest player id %v is not an account", hello["playerId"])
	}
	if err := s.auth.SaveChips(accountID, 7777); err != nil {
		t.Fatalf("SaveChips: %v", err)
	}

	send(t, conn, codec.ClientMessage{Type: codec.TypeJoinRoom, RoomID: "room-1", Name: "  Út Mười "}, codec.FormatJSON)
	readUntil(t, conn, codec.FormatJSON, codec.TypeJoinedRoom, nil)
	send(t, conn, codec.ClientMessage{Type: codec.TypeSit, SeatIndex: intPtr(2)}, codec.FormatJSON)
	state := readUntil(t, conn, codec.FormatJSON, codec.TypeState, func(d map[string]any) bool {
		seats, _ := d["seats"].([]any)
		return len(seats) > 2 && seats[2] != nil
	})
	me := state["seats"].([]any)[2].(map[string]any)
	if me["balance"] != float64(7777) || me["name"] != "Út Mười" {
		t.Fatalf("seat = %v, want the account's 7777 chips", me)
	}
	conn.Close()

	again := s.dial(t, "token="+token)
	if h := readUntil(t, again, codec.FormatJSON, codec.TypeHello, nil); h["name"] != "Út Mười" {
		t.Fatalf("reconnect hello = %v, want the saved name", h)
	}
}

func TestProtoFrames(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, "format=proto")

	readUntil(t, conn, codec.FormatProto, codec.TypeHello, nil)
	send(t, conn, codec.ClientMessage{Type: codec.TypeCreateRoom, Name: "Sòng proto"}, codec.FormatProto)
	created := readUntil(t, conn, codec.FormatProto, codec.TypeRoomCreated, nil)
	if created["id"] != "room-2" || created["name"] != "Sòng proto" {
		t.Fatalf("room_created = %v", created)
	}

	send(t, conn, codec.ClientMessage{Type: codec.TypeJoinRoom, RoomID: "room-2"}, codec.FormatProto)
	readUntil(t, conn, codec.FormatProto, codec.TypeJoinedRoom, nil)
	send(t, conn, codec.ClientMessage{Type: codec.TypeSetBet, Amount: 1}, codec.FormatProto)
	if e := readUntil(t, conn, codec.FormatProto, codec.TypeError, nil); e["reason"] != "not_seated" {
		t.Fatalf("bet while standing = %v", e)
	}
}
