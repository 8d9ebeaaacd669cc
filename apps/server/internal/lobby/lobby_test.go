package lobby

import (
	"sync"
	"testing"
	"time"

	"xidach-lite/apps/server/internal/room"
	"xidach-lite/xidach"
	"xidach-lite/xidach/npc"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLobby(t *testing.T, mgr *npc.Manager) (*Lobby, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(xidach.DefaultConfig(), room.Options{Clock: clk.now, NPC: mgr, NPCThinkDelay: time.Hour}, time.Minute)
	t.Cleanup(l.Close)
	return l, clk
}

func TestDefaultRoomsAndListing(t *testing.T) {
	l, _ := newTestLobby(t, nil)
	l.EnsureDefaultRooms(3, 0)
	l.EnsureDefaultRooms(3, 0) // no-op once populated

	for i := 0; i < 8; i++ {
		if _, err := l.Create("", 0); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	list := l.List()
	if len(list) != 11 {
		t.Fatalf("rooms = %d, want 11", len(list))
	}
	if list[0].ID != "room-1" || list[0].Name != "Bàn 1" || list[2].Name != "Bàn 3" {
		t.Fatalf("default rooms = %+v", list[:3])
	}
	// numeric, not lexical, order
	if list[9].ID != "room-10" || list[10].ID != "room-11" {
		t.Fatalf("order = %s, %s", list[9].ID, list[10].ID)
	}
	if list[0].MaxSeats != xidach.DefaultMaxSeats || list[0].Phase != "LOBBY" {
		t.Fatalf("info = %+v", list[0])
	}
}

func TestCreateWithNameAndBots(t *testing.T) {
	l, _ := newTestLobby(t, npc.NewManagerWithSeed(npc.NewDefaultRegistry(), 3))
	r, err := l.Create("  Sòng nhà  ", 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.Name != "Sòng nhà" {
		t.Fatalf("name = %q", r.Name)
	}
	if got := l.Get(r.ID); got != r {
		t.Fatalf("Get(%s) = %v", r.ID, got)
	}
	if info := r.Info(); info.PlayerCount != 2 || info.ObserverCount != 0 {
		t.Fatalf("info = %+v", info)
	}
}

func TestReapIdleKeepsDefaultsAndOccupiedRooms(t *testing.T) {
	l, clk := newTestLobby(t, nil)
	l.EnsureDefaultRooms(1, 0)
	empty, _ := l.Create("empty", 0)
	busy, _ := l.Create("busy", 0)
	if err := busy.SubmitEvent(room.Event{Type: room.EventJoin, PlayerID: "u1"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	if reaped := l.ReapIdle(); len(reaped) != 0 {
		t.Fatalf("reaped fresh rooms: %v", reaped)
	}
	clk.advance(61 * time.Second)
	reaped := l.ReapIdle()
	if len(reaped) != 1 || reaped[0] != empty.ID {
		t.Fatalf("reaped = %v, want [%s]", reaped, empty.ID)
	}
	if !empty.IsClosed() || l.Get(empty.ID) != nil {
		t.Fatalf("reaped room still reachable")
	}
	if l.Get("room-1") == nil || l.Get(busy.ID) == nil {
		t.Fatalf("default or occupied room was reaped")
	}

	if !l.Remove(busy.ID) || l.Remove(busy.ID) {
		t.Fatalf("Remove should succeed once")
	}
}
