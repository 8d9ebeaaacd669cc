package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTicket_IssueAndParse(t *testing.T) {
	tk, err := NewTicketer("bi-mat", time.Minute)
	if err != nil {
		t.Fatalf("new ticketer: %v", err)
	}
	ticket, err := tk.Issue(100042, "anh_tu")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	accountID, username, err := tk.Parse(ticket)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if accountID != 100042 || username != "anh_tu" {
		t.Fatalf("parse = (%d, %q), want (100042, anh_tu)", accountID, username)
	}
}

func TestTicket_RejectsWrongSecret(t *testing.T) {
	a, _ := NewTicketer("secret-a", time.Minute)
	b, _ := NewTicketer("secret-b", time.Minute)
	ticket, err := a.Issue(7, "x")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, _, err := b.Parse(ticket); !errors.Is(err, ErrInvalidTicket) {
		t.Fatalf("expected ErrInvalidTicket, got %v", err)
	}
}

func TestTicket_RejectsExpired(t *testing.T) {
	tk, _ := NewTicketer("bi-mat", time.Minute)
	tk.now = func() time.Time { return time.Now().Add(-time.Hour) }
	ticket, err := tk.Issue(7, "x")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, _, err := tk.Parse(ticket); !errors.Is(err, ErrInvalidTicket) {
		t.Fatalf("expected expired ticket to be rejected, got %v", err)
	}
}

func TestTicket_RejectsGarbage(t *testing.T) {
	tk, _ := NewTicketer("bi-mat", time.Minute)
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, _, err := tk.Parse(raw); !errors.Is(err, ErrInvalidTicket) {
			t.Fatalf("Parse(%q) err = %v, want ErrInvalidTicket", raw, err)
		}
	}
	if _, err := NewTicketer("  ", time.Minute); err == nil {
		t.Fatalf("expected empty secret to be rejected")
	}
}
