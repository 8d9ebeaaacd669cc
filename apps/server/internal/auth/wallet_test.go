package auth

import "testing"

func TestWallet_StackAndSettle(t *testing.T) {
	m := NewManager()
	w := NewWallet(m)
	acct, _, _ := m.ResolveOrCreateGuest("")
	player := acct.PlayerID()

	if got := w.Stack(player); got != StartingChips {
		t.Fatalf("fresh stack = %d, want %d", got, StartingChips)
	}
	if err := w.Settle(player, 10900); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got := w.Stack(player); got != 10900 {
		t.Fatalf("stack after win = %d, want 10900", got)
	}

	// busted accounts buy in at the table default
	if err := w.Settle(player, -300); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got := w.Stack(player); got != 0 {
		t.Fatalf("busted stack = %d, want 0", got)
	}

	if err := w.Settle("npc-9000001", 5000); err != nil {
		t.Fatalf("bot settle should be ignored, got %v", err)
	}
	if got := w.Stack("npc-9000001"); got != 0 {
		t.Fatalf("bot stack = %d, want 0", got)
	}
	if got := w.Stack("424242"); got != 0 {
		t.Fatalf("unknown account stack = %d, want 0", got)
	}
}

func TestWallet_Rename(t *testing.T) {
	m := NewManager()
	w := NewWallet(m)
	acct, _, _ := m.ResolveOrCreateGuest("")

	renamed, err := w.Rename(acct.PlayerID(), "Cô Sáu")
	if err != nil || renamed.Name() != "Cô Sáu" {
		t.Fatalf("Rename = (%+v, %v)", renamed, err)
	}
	if _, err := w.Rename("npc-1", "Bot"); err == nil {
		t.Fatalf("renaming a bot should fail")
	}
}

func TestAccountIDOf(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"100001", 100001, true},
		{"0", 0, false},
		{"npc-9000001", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := AccountIDOf(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("AccountIDOf(%q) = (%d, %v), want (%d, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
