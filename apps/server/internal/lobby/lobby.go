package lobby

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"xidach-lite/apps/server/internal/codec"
	"xidach-lite/apps/server/internal/room"
	"xidach-lite/xidach"
)

const (
	reapInterval   = 30 * time.Second
	defaultIdleTTL = 60 * time.Second
	maxRoomBots    = 9
)

// Lobby is the room directory. Rooms share nothing; the lobby only maps IDs
// to running room actors.
type Lobby struct {
	mu     sync.RWMutex
	rooms  map[string]*room.Room
	nextID uint64

	// Template for every room created here
	config  xidach.Config
	options room.Options
	idleTTL time.Duration
}

// New creates a lobby. Options.Send may be filled in later with SetSend,
// before any room is created.
func New(cfg xidach.Config, opts room.Options, idleTTL time.Duration) *Lobby {
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	opts.Default = false
	return &Lobby{
		rooms:   make(map[string]*room.Room),
		config:  cfg,
		options: opts,
		idleTTL: idleTTL,
	}
}

// SetSend sets the push function handed to rooms created afterwards.
func (l *Lobby) SetSend(fn func(playerID string, msg codec.ServerMessage)) {
	l.mu.Lock()
	l.options.Send = fn
	l.mu.Unlock()
}

// EnsureDefaultRooms opens "Bàn 1".."Bàn n" when the lobby is empty. Default
// rooms are never reaped.
func (l *Lobby) EnsureDefaultRooms(n, bots int) {
	l.mu.RLock()
	empty := len(l.rooms) == 0
	l.mu.RUnlock()
	if !empty {
		return
	}
	for i := 0; i < n; i++ {
		if _, err := l.create("", bots, true); err != nil {
			log.Printf("[Lobby] default room failed: %v", err)
		}
	}
}

// Create opens a room. A blank name becomes "Bàn N".
func (l *Lobby) Create(name string, bots int) (*room.Room, error) {
	return l.create(name, bots, false)
}

func (l *Lobby) create(name string, bots int, isDefault bool) (*room.Room, error) {
	l.mu.Lock()
	l.nextID++
	id := fmt.Sprintf("room-%d", l.nextID)
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Bàn %d", l.nextID)
	}
	opts := l.options
	opts.Default = isDefault
	r, err := room.New(id, name, l.config, opts)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.rooms[id] = r
	l.mu.Unlock()

	if bots > maxRoomBots {
		bots = maxRoomBots
	}
	if bots > 0 {
		seated := r.AddBots(bots)
		log.Printf("[Lobby] Room %s seated %d bots", id, seated)
	}
	log.Printf("[Lobby] Created room %s (%s)", id, name)
	return r, nil
}

// Get returns a room by ID
func (l *Lobby) Get(roomID string) *room.Room {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rooms[roomID]
}

// List returns every room's directory line, ordered by room number.
func (l *Lobby) List() []codec.RoomInfo {
	l.mu.RLock()
	rooms := make([]*room.Room, 0, len(l.rooms))
	for _, r := range l.rooms {
		rooms = append(rooms, r)
	}
	l.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return roomNumber(rooms[i].ID) < roomNumber(rooms[j].ID) })
	out := make([]codec.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	return out
}

// Remove stops and forgets a room.
func (l *Lobby) Remove(roomID string) bool {
	l.mu.Lock()
	r := l.rooms[roomID]
	delete(l.rooms, roomID)
	l.mu.Unlock()
	if r == nil {
		return false
	}
	r.Stop()
	log.Printf("[Lobby] Removed room %s", roomID)
	return true
}

// ReapIdle removes non-default rooms that have had no members for the idle
// TTL, and any room whose actor has stopped.
func (l *Lobby) ReapIdle() []string {
	l.mu.RLock()
	var victims []string
	for id, r := range l.rooms {
		if r.IsClosed() || (!r.Default && r.IsIdleFor(l.idleTTL)) {
			victims = append(victims, id)
		}
	}
	l.mu.RUnlock()

	for _, id := range victims {
		l.Remove(id)
	}
	return victims
}

// Run reaps idle rooms every 30s until ctx is done.
func (l *Lobby) Run(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if reaped := l.ReapIdle(); len(reaped) > 0 {
				log.Printf("[Lobby] Reaped idle rooms: %v", reaped)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close stops every room.
func (l *Lobby) Close() {
	l.mu.Lock()
	rooms := l.rooms
	l.rooms = make(map[string]*room.Room)
	l.mu.Unlock()
	for _, r := range rooms {
		r.Stop()
	}
}

func roomNumber(id string) uint64 {
	n, err := strconv.ParseUint(strings.TrimPrefix(id, "room-"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
