package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"xidach-lite/xidach"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client -> server message types.
const (
	TypeListRooms    = "list_rooms"
	TypeCreateRoom   = "create_room"
	TypeJoinRoom     = "join_room"
	TypeLeaveRoom    = "leave_room"
	TypeSit          = "sit"
	TypeLeaveSeat    = "leave_seat"
	TypeSetBet       = "set_bet"
	TypeDeal         = "deal"
	TypeHit          = "hit"
	TypeStay         = "stay"
	TypeHostCheck    = "host_check"
	TypeCheckAll     = "check_all"
	TypeTransferHost = "transfer_host"
)

// Server -> client message types.
const (
	TypeHello       = "hello"
	TypeRoomList    = "room_list"
	TypeRoomCreated = "room_created"
	TypeJoinedRoom  = "joined_room"
	TypeState       = "state"
	TypeTimer       = "timer"
	TypeRoundResult = "round_result"
	TypeError       = "error"
)

// Format selects the frame encoding of a connection.
type Format int

const (
	FormatJSON Format = iota
	FormatProto
)

func (f Format) String() string {
	if f == FormatProto {
		return "proto"
	}
	return "json"
}

// ClientMessage is one request from a client. Fields unused by a type are
// left zero.
type ClientMessage struct {
	Type            string `json:"type"`
	RoomID          string `json:"roomId,omitempty"`
	Name            string `json:"name,omitempty"`
	Bots            int    `json:"bots,omitempty"`
	SeatIndex       *int   `json:"seatIndex,omitempty"`
	TargetSeatIndex *int   `json:"targetSeatIndex,omitempty"`
	Amount          int64  `json:"amount,omitempty"`
}

// ServerMessage is one push to a client.
type ServerMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	Seq    uint64 `json:"seq,omitempty"`
	TsMs   int64  `json:"ts,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// Hello is the first push on a connection. Guests keep Token to come back
// as the same player.
type Hello struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Token    string `json:"token,omitempty"`
}

type RoomInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PlayerCount   int    `json:"playerCount"`
	ObserverCount int    `json:"observerCount"`
	MaxSeats      int    `json:"maxSeats"`
	Phase         string `json:"phase"`
}

type RoomList struct {
	Rooms []RoomInfo `json:"rooms"`
}

type RoomCreated struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type JoinedRoom struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type Timer struct {
	Seconds int `json:"seconds"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type SeatResult struct {
	Seat         int      `json:"seat"`
	PlayerID     string   `json:"playerId"`
	Name         string   `json:"name"`
	IsHost       bool     `json:"isHost"`
	Cards        []string `json:"cards"`
	Tier         string   `json:"tier"`
	Score        int      `json:"score"`
	Bet          int64    `json:"bet"`
	Result       string   `json:"result"`
	Payout       int64    `json:"payout"`
	Penalty      bool     `json:"penalty,omitempty"`
	BalanceAfter int64    `json:"balance"`
}

type RoundResult struct {
	RoundID   string       `json:"roundId,omitempty"`
	Round     uint32       `json:"round"`
	HostSeat  int          `json:"hostSeat"`
	Seats     []SeatResult `json:"seats"`
	Evictions []int        `json:"evictedSeats,omitempty"`
}

// Message codes for failures that are not engine rejections.
const (
	CodeBadMessage   = 100
	CodeNoRoom       = 101
	CodeNotInRoom    = 102
	CodeRoomClosed   = 103
	CodeUnauthorized = 104
	CodeInternal     = 199
)

var (
	ErrBadMessage = errors.New("bad message")
	ErrNoRoom     = errors.New("room not found")
	ErrNotInRoom  = errors.New("not in a room")
	ErrRoomClosed = errors.New("room closed")
)

// NewServerMessage stamps a push with the current time.
func NewServerMessage(msgType, roomID string, seq uint64, data any) ServerMessage {
	return ServerMessage{
		Type:   msgType,
		RoomID: roomID,
		Seq:    seq,
		TsMs:   time.Now().UnixMilli(),
		Data:   data,
	}
}

// ErrorFrom maps any error to the error payload clients render. Engine
// rejections keep their reason code and Vietnamese text.
func ErrorFrom(err error) ErrorPayload {
	if err == nil {
		return ErrorPayload{}
	}
	if reason := xidach.ReasonOf(err); reason != xidach.ReasonNone {
		return ErrorPayload{Code: int(reason), Reason: reason.String(), Message: reason.Message()}
	}
	switch {
	case errors.Is(err, ErrBadMessage):
		return ErrorPayload{Code: CodeBadMessage, Reason: "bad_message", Message: "Yêu cầu không hợp lệ"}
	case errors.Is(err, ErrNoRoom):
		return ErrorPayload{Code: CodeNoRoom, Reason: "no_room", Message: "Phòng không tồn tại"}
	case errors.Is(err, ErrNotInRoom):
		return ErrorPayload{Code: CodeNotInRoom, Reason: "not_in_room", Message: "Bạn chưa vào phòng"}
	case errors.Is(err, ErrRoomClosed):
		return ErrorPayload{Code: CodeRoomClosed, Reason: "room_closed", Message: "Phòng đã đóng"}
	}
	return ErrorPayload{Code: CodeInternal, Reason: "internal", Message: err.Error()}
}

func ErrorMessage(roomID string, err error) ServerMessage {
	return NewServerMessage(TypeError, roomID, 0, ErrorFrom(err))
}

// RoundResultFrom flattens a settled round for clients.
func RoundResultFrom(roundID string, rr *xidach.RoundResult) RoundResult {
	out := RoundResult{RoundID: roundID, Round: rr.Round, HostSeat: rr.HostSeat}
	for _, s := range rr.Seats {
		cards := make([]string, 0, len(s.Cards))
		for _, c := range s.Cards {
			cards = append(cards, c.String())
		}
		out.Seats = append(out.Seats, SeatResult{
			Seat:         s.Seat,
			PlayerID:     s.PlayerID,
			Name:         s.Name,
			IsHost:       s.IsHost,
			Cards:        cards,
			Tier:         s.Hand.Tier.String(),
			Score:        s.Hand.Score,
			Bet:          s.Bet,
			Result:       s.Result.String(),
			Payout:       s.Payout,
			Penalty:      s.Penalty,
			BalanceAfter: s.BalanceAfter,
		})
	}
	for _, ev := range rr.Evictions {
		out.Evictions = append(out.Evictions, ev.Seat)
	}
	return out
}

// DecodeClient parses a client frame. Binary frames carry a protobuf
// google.protobuf.Struct with the same keys as the JSON form.
func DecodeClient(data []byte, binary bool) (ClientMessage, error) {
	var msg ClientMessage
	if binary {
		var s structpb.Struct
		if err := proto.Unmarshal(data, &s); err != nil {
			return msg, fmt.Errorf("%w: %v", ErrBadMessage, err)
		}
		raw, err := json.Marshal(s.AsMap())
		if err != nil {
			return msg, fmt.Errorf("%w: %v", ErrBadMessage, err)
		}
		data = raw
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if msg.Type == "" {
		return msg, fmt.Errorf("%w: missing type", ErrBadMessage)
	}
	return msg, nil
}

// EncodeServer renders a push in the connection's format.
func EncodeServer(msg ServerMessage, format Format) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if format != FormatProto {
		return raw, nil
	}
	s, err := toStruct(raw)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// EncodeClient is the client-side counterpart of DecodeClient, used by bots
// and tests.
func EncodeClient(msg ClientMessage, format Format) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if format != FormatProto {
		return raw, nil
	}
	s, err := toStruct(raw)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// DecodeServer parses a push back into its generic form.
func DecodeServer(data []byte, format Format) (map[string]any, error) {
	if format == FormatProto {
		var s structpb.Struct
		if err := proto.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return s.AsMap(), nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func toStruct(raw []byte) (*structpb.Struct, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
