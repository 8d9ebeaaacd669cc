package gateway

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"xidach-lite/apps/server/internal/auth"
	"xidach-lite/apps/server/internal/codec"
	"xidach-lite/apps/server/internal/lobby"
	"xidach-lite/apps/server/internal/room"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: Restrict in production
	},
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID       string
	PlayerID string
	Name     string
	Format   codec.Format
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway
	LastPing time.Time

	done      chan struct{}
	closeOnce sync.Once

	// Current room association, touched only by readPump.
	RoomID string
	Room   *room.Room
}

// Gateway manages WebSocket connections
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	playerConns map[string]*Connection // playerID -> connection
	nextConnID  uint64

	lobby   *lobby.Lobby
	auth    auth.Service
	tickets *auth.Ticketer
	wallet  *auth.Wallet
}

// New creates a Gateway and registers it as the lobby's push channel.
// tickets may be nil.
func New(lby *lobby.Lobby, authService auth.Service, tickets *auth.Ticketer) *Gateway {
	g := &Gateway{
		connections: make(map[string]*Connection),
		playerConns: make(map[string]*Connection),
		lobby:       lby,
		auth:        authService,
		tickets:     tickets,
		wallet:      auth.NewWallet(authService),
	}
	lby.SetSend(g.SendToPlayer)
	return g
}

type identity struct {
	playerID string
	name     string
	token    string
}

// identify resolves who is connecting: a signed ticket, a session token, or
// a fresh guest account.
func (g *Gateway) identify(r *http.Request) (identity, error) {
	q := r.URL.Query()
	if ticket := strings.TrimSpace(q.Get("ticket")); ticket != "" {
		if g.tickets == nil {
			return identity{}, auth.ErrInvalidTicket
		}
		accountID, username, err := g.tickets.Parse(ticket)
		if err != nil {
			return identity{}, err
		}
		acct, err := g.auth.Account(accountID)
		if err != nil {
			// the ticket is signed; keep its name if the store is unreachable
			log.Printf("[Gateway] account lookup failed: account=%d err=%v", accountID, err)
			acct = auth.Account{ID: accountID, Username: username}
		}
		return identity{playerID: acct.PlayerID(), name: acct.Name()}, nil
	}

	token := strings.TrimSpace(q.Get("token"))
	if token == "" {
		token = bearerToken(r.Header.Get("Authorization"))
	}
	acct, sessionToken, reused := g.auth.ResolveOrCreateGuest(token)
	if acct.ID == 0 {
		return identity{}, errors.New("guest account unavailable")
	}
	id := identity{playerID: acct.PlayerID(), name: acct.Name()}
	if !reused {
		id.token = sessionToken
	}
	return id, nil
}

// HandleWebSocket handles WebSocket upgrade and connection
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id, err := g.identify(r)
	if err != nil {
		log.Printf("[Gateway] Rejecting connection: %v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	format := codec.FormatJSON
	if strings.EqualFold(r.URL.Query().Get("format"), "proto") {
		format = codec.FormatProto
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	connID := fmt.Sprintf("conn_%d", g.nextConnID)
	c := &Connection{
		ID:       connID,
		PlayerID: id.playerID,
		Name:     id.name,
		Format:   format,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Gateway:  g,
		LastPing: time.Now(),
		done:     make(chan struct{}),
	}
	previous := g.playerConns[id.playerID]
	g.connections[connID] = c
	g.playerConns[id.playerID] = c
	total := len(g.connections)
	g.mu.Unlock()

	if previous != nil {
		log.Printf("[Gateway] Player %s reconnected, closing %s", id.playerID, previous.ID)
		previous.close()
	}
	log.Printf("[Gateway] Client connected: %s (player=%s, format=%s), total: %d", connID, id.playerID, format, total)

	c.push(codec.NewServerMessage(codec.TypeHello, "", 0, codec.Hello{
		PlayerID: id.playerID,
		Name:     id.name,
		Token:    id.token,
	}))

	go c.readPump()
	go c.writePump()
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.Conn.Close()
	})
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.close()
	}()

	c.Conn.SetReadLimit(65536)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		c.LastPing = time.Now()
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}
		c.handleMessage(message, messageType == websocket.BinaryMessage)
	}
}

func (c *Connection) handleMessage(data []byte, binary bool) {
	msg, err := codec.DecodeClient(data, binary)
	if err != nil {
		log.Printf("[Gateway] Failed to decode from player %s: %v", c.PlayerID, err)
		c.sendError(err)
		return
	}

	switch msg.Type {
	case codec.TypeListRooms:
		c.push(codec.NewServerMessage(codec.TypeRoomList, "", 0, codec.RoomList{Rooms: c.Gateway.lobby.List()}))
	case codec.TypeCreateRoom:
		c.handleCreateRoom(msg)
	case codec.TypeJoinRoom:
		c.handleJoinRoom(msg)
	case codec.TypeLeaveRoom:
		c.leaveRoom()
		c.Gateway.broadcastRoomList()
	case codec.TypeSit:
		if msg.SeatIndex == nil {
			c.sendError(fmt.Errorf("%w: seatIndex required", codec.ErrBadMessage))
			return
		}
		c.submit(room.Event{Type: room.EventSit, Seat: *msg.SeatIndex})
		c.Gateway.broadcastRoomList()
	case codec.TypeLeaveSeat:
		c.submit(room.Event{Type: room.EventLeaveSeat})
		c.Gateway.broadcastRoomList()
	case codec.TypeSetBet:
		c.submit(room.Event{Type: room.EventSetBet, Amount: msg.Amount})
	case codec.TypeDeal:
		c.submit(room.Event{Type: room.EventDeal})
	case codec.TypeHit:
		c.submit(room.Event{Type: room.EventHit})
	case codec.TypeStay:
		c.submit(room.Event{Type: room.EventStay})
	case codec.TypeHostCheck:
		if msg.TargetSeatIndex == nil {
			c.sendError(fmt.Errorf("%w: targetSeatIndex required", codec.ErrBadMessage))
			return
		}
		c.submit(room.Event{Type: room.EventHostCheck, Seat: *msg.TargetSeatIndex})
	case codec.TypeCheckAll:
		c.submit(room.Event{Type: room.EventCheckAll})
	case codec.TypeTransferHost:
		if msg.TargetSeatIndex == nil {
			c.sendError(fmt.Errorf("%w: targetSeatIndex required", codec.ErrBadMessage))
			return
		}
		c.submit(room.Event{Type: room.EventTransferHost, Seat: *msg.TargetSeatIndex})
	default:
		log.Printf("[Gateway] Unknown message type %q from player %s", msg.Type, c.PlayerID)
		c.sendError(fmt.Errorf("%w: unknown type %q", codec.ErrBadMessage, msg.Type))
	}
}

func (c *Connection) handleCreateRoom(msg codec.ClientMessage) {
	r, err := c.Gateway.lobby.Create(msg.Name, msg.Bots)
	if err != nil {
		c.sendError(err)
		return
	}
	c.push(codec.NewServerMessage(codec.TypeRoomCreated, r.ID, 0, codec.RoomCreated{ID: r.ID, Name: r.Name}))
	c.Gateway.broadcastRoomList()
}

func (c *Connection) handleJoinRoom(msg codec.ClientMessage) {
	r := c.Gateway.lobby.Get(msg.RoomID)
	if r == nil {
		c.sendError(codec.ErrNoRoom)
		return
	}
	if c.Room != nil && c.Room != r {
		c.leaveRoom()
	}

	if strings.TrimSpace(msg.Name) != "" {
		c.rename(msg.Name)
	}
	err := r.SubmitEvent(room.Event{
		Type:     room.EventJoin,
		PlayerID: c.PlayerID,
		Name:     c.Name,
		Balance:  c.Gateway.wallet.Stack(c.PlayerID),
	})
	if err != nil {
		c.sendError(err)
		return
	}
	c.RoomID = r.ID
	c.Room = r
	log.Printf("[Gateway] Player %s joined room %s", c.PlayerID, r.ID)
	c.Gateway.broadcastRoomList()
}

func (c *Connection) leaveRoom() {
	if c.Room == nil {
		return
	}
	if err := c.Room.SubmitEvent(room.Event{Type: room.EventLeaveRoom, PlayerID: c.PlayerID}); err != nil && !errors.Is(err, room.ErrRoomClosed) {
		log.Printf("[Gateway] leave room %s failed for player %s: %v", c.RoomID, c.PlayerID, err)
	}
	c.Room = nil
	c.RoomID = ""
}

func (c *Connection) submit(e room.Event) {
	if c.Room == nil {
		c.sendError(codec.ErrNotInRoom)
		return
	}
	e.PlayerID = c.PlayerID
	if err := c.Room.SubmitEvent(e); err != nil {
		c.sendError(err)
	}
}

// rename adopts the name a player joined with and stores it on the account
// so the next connection opens with it.
func (c *Connection) rename(raw string) {
	c.Name = room.NormalizeName(raw)
	if _, err := c.Gateway.wallet.Rename(c.PlayerID, c.Name); err != nil {
		log.Printf("[Gateway] save name failed: player=%s err=%v", c.PlayerID, err)
	}
}

func (c *Connection) sendError(err error) {
	c.push(codec.ErrorMessage(c.RoomID, err))
}

// push encodes msg in the connection's format and queues it.
func (c *Connection) push(msg codec.ServerMessage) {
	data, err := codec.EncodeServer(msg, c.Format)
	if err != nil {
		log.Printf("[Gateway] encode %s for player %s failed: %v", msg.Type, c.PlayerID, err)
		return
	}
	select {
	case c.Send <- data:
	default:
		// Drop if buffer full
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	frameType := websocket.TextMessage
	if c.Format == codec.FormatProto {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(frameType, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(time.Second))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.ID)
	current := g.playerConns[c.PlayerID] == c
	if current {
		delete(g.playerConns, c.PlayerID)
	}
	total := len(g.connections)
	g.mu.Unlock()

	// A replaced connection leaves the room to its successor.
	if current && c.Room != nil {
		if err := c.Room.SubmitEvent(room.Event{Type: room.EventConnLost, PlayerID: c.PlayerID}); err != nil && !errors.Is(err, room.ErrRoomClosed) {
			log.Printf("[Gateway] conn lost for player %s failed: %v", c.PlayerID, err)
		}
	}
	log.Printf("[Gateway] Client disconnected: %s, total: %d", c.ID, total)
}

// SendToPlayer pushes a room message to a player's live connection, if any.
func (g *Gateway) SendToPlayer(playerID string, msg codec.ServerMessage) {
	g.mu.RLock()
	c := g.playerConns[playerID]
	g.mu.RUnlock()

	if c != nil {
		c.push(msg)
	}
}

// broadcastRoomList sends the directory to every connection
func (g *Gateway) broadcastRoomList() {
	msg := codec.NewServerMessage(codec.TypeRoomList, "", 0, codec.RoomList{Rooms: g.lobby.List()})
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.connections {
		c.push(msg)
	}
}

func bearerToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(raw) >= len(prefix) && strings.EqualFold(raw[:len(prefix)], prefix) {
		return strings.TrimSpace(raw[len(prefix):])
	}
	return ""
}
