package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestManager_RegisterOpensStartingStack(t *testing.T) {
	m := NewManager()
	acct, token, err := m.Register("Chu_Tu", "matkhau1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acct.Username != "chu_tu" || acct.Name() != "chu_tu" || acct.Guest {
		t.Fatalf("account = %+v, want registered chu_tu", acct)
	}
	if acct.Chips != StartingChips {
		t.Fatalf("chips = %d, want %d", acct.Chips, StartingChips)
	}
	got, ok := m.ResolveSession(token)
	if !ok || got.ID != acct.ID {
		t.Fatalf("ResolveSession = (%+v, %v)", got, ok)
	}

	if _, _, err := m.Register("CHU_TU", "matkhau1"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate register err = %v, want ErrUsernameTaken", err)
	}
	if _, _, err := m.Register("ab", "matkhau1"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("short username err = %v", err)
	}
	if _, _, err := m.Register("chu_nam", "12345"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("short password err = %v", err)
	}
}

func TestManager_LoginAndLogout(t *testing.T) {
	m := NewManager()
	acct, first, err := m.Register("chu_tu", "matkhau1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := m.Login("chu_tu", "sai-roi"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	again, second, err := m.Login(" Chu_Tu ", "matkhau1")
	if err != nil || again.ID != acct.ID || second == first {
		t.Fatalf("Login = (%+v, %q, %v)", again, second, err)
	}

	m.Logout(first)
	if _, ok := m.ResolveSession(first); ok {
		t.Fatalf("logged out session still resolves")
	}
	if _, ok := m.ResolveSession(second); !ok {
		t.Fatalf("logout revoked the other session")
	}
}

func TestManager_SessionsExpire(t *testing.T) {
	m := NewManager()
	clock := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return clock }
	m.sessionTTL = time.Hour

	_, token, _ := m.ResolveOrCreateGuest("")
	clock = clock.Add(59 * time.Minute)
	if _, ok := m.ResolveSession(token); !ok {
		t.Fatalf("session expired early")
	}
	// resolving slides the expiry
	clock = clock.Add(59 * time.Minute)
	if _, ok := m.ResolveSession(token); !ok {
		t.Fatalf("session did not slide")
	}
	clock = clock.Add(2 * time.Hour)
	if _, ok := m.ResolveSession(token); ok {
		t.Fatalf("session should have expired")
	}
}

func TestManager_GuestsAreReusedBySession(t *testing.T) {
	m := NewManager()
	guest, token, reused := m.ResolveOrCreateGuest("")
	if guest.ID == 0 || token == "" || reused {
		t.Fatalf("new guest = (%+v, %q, %v)", guest, token, reused)
	}
	if !guest.Guest || !strings.HasPrefix(guest.Username, guestPrefix) || !strings.HasPrefix(guest.DisplayName, "Khách ") {
		t.Fatalf("guest account = %+v", guest)
	}
	if _, _, err := m.Login(guest.Username, "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("guest login err = %v", err)
	}

	same, sameToken, reused := m.ResolveOrCreateGuest(token)
	if !reused || same.ID != guest.ID || sameToken != token {
		t.Fatalf("second call = (%+v, %q, %v), want reuse", same, sameToken, reused)
	}
	other, _, reused := m.ResolveOrCreateGuest("stale")
	if reused || other.ID == guest.ID {
		t.Fatalf("stale token reused account %d", other.ID)
	}
}

func TestManager_ProfileAndChips(t *testing.T) {
	m := NewManager()
	acct, _, _ := m.ResolveOrCreateGuest("")

	renamed, err := m.SetDisplayName(acct.ID, "  Anh   Ba \t")
	if err != nil || renamed.DisplayName != "Anh Ba" {
		t.Fatalf("SetDisplayName = (%+v, %v)", renamed, err)
	}
	if _, err := m.SetDisplayName(acct.ID, " \n "); !errors.Is(err, ErrInvalidDisplayName) {
		t.Fatalf("blank name err = %v", err)
	}
	if err := m.SaveChips(acct.ID, 12500); err != nil {
		t.Fatalf("SaveChips: %v", err)
	}
	got, err := m.Account(acct.ID)
	if err != nil || got.Chips != 12500 || got.Name() != "Anh Ba" {
		t.Fatalf("Account = (%+v, %v)", got, err)
	}
	if err := m.SaveChips(42, 1); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("unknown account err = %v", err)
	}
}

func TestNormalizeDisplayName_Caps(t *testing.T) {
	got, err := normalizeDisplayName("Nguyen Van Tam Muoi Chin Tuoi Roi")
	if err != nil {
		t.Fatalf("normalizeDisplayName: %v", err)
	}
	if n := len([]rune(got)); n > maxDisplayRunes {
		t.Fatalf("name %q has %d runes, want <= %d", got, n, maxDisplayRunes)
	}
	if got != "Nguyen Van Tam Muoi" {
		t.Fatalf("name = %q", got)
	}
}
