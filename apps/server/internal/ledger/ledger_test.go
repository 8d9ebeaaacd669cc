package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"xidach-lite/replay"
	"xidach-lite/xidach"
)

func newMemoryLedger(t *testing.T) *SQLiteService {
	t.Helper()
	s, err := NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("open sqlite ledger: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// playTimedOutRound deals one round and lets the timer play every seat.
func playTimedOutRound(t *testing.T, roundID string, seed int64, players ...string) RoundRecord {
	t.Helper()
	cfg := xidach.DefaultConfig()
	cfg.Seed = seed
	g, err := xidach.NewGame(cfg)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	for i, id := range players {
		if _, err := g.Sit(id, "Người "+id, i*2, 0, false); err != nil {
			t.Fatalf("Sit(%s): %v", id, err)
		}
	}

	rec := replay.NewRecorder("room-1", cfg)
	if _, err := g.Deal(players[0]); err != nil {
		t.Fatalf("Deal: %v", err)
	}
	rec.Begin(roundID, g.LastRoundStart(), players[0])
	for i := 0; i < 20 && g.Phase() != xidach.PhaseResults; i++ {
		token, ok := g.TimerToken()
		if !ok {
			t.Fatalf("timer not armed in %s", g.Phase())
		}
		if _, err := g.Expire(token); err != nil {
			t.Fatalf("Expire: %v", err)
		}
		rec.Record(xidach.ActionTimeout, "", 0)
	}
	rr := g.LastResult()
	if rr == nil {
		t.Fatalf("round did not settle")
	}
	return NewRoundRecord("room-1", roundID, rr, rec.Finish(rr))
}

func TestSQLiteLedger_RecordAndQuery(t *testing.T) {
	s := newMemoryLedger(t)
	ctx := context.Background()

	rec := playTimedOutRound(t, "r-1", 11, "100001", "100002", "100003")
	if err := s.RecordRound(ctx, rec); err != nil {
		t.Fatalf("RecordRound: %v", err)
	}
	// a second write of the same round is ignored
	if err := s.RecordRound(ctx, rec); err != nil {
		t.Fatalf("RecordRound again: %v", err)
	}

	detail, err := s.GetRound(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetRound: %v", err)
	}
	if len(detail.Seats) != 3 {
		t.Fatalf("seats = %d, want 3", len(detail.Seats))
	}
	if detail.HostID != rec.HostID || detail.Seed != rec.Seed {
		t.Fatalf("detail = host %q seed %d, want host %q seed %d", detail.HostID, detail.Seed, rec.HostID, rec.Seed)
	}
	if detail.Tape == nil || len(detail.Tape.Steps) == 0 {
		t.Fatalf("expected stored tape")
	}

	items, err := s.ListRecent(ctx, "100002", 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(items) != 1 || items[0].RoundID != "r-1" {
		t.Fatalf("ListRecent = %+v, want one item for r-1", items)
	}

	var want int64
	for _, seat := range rec.Seats {
		if seat.PlayerID == "100002" {
			want = seat.BalanceAfter
		}
	}
	bal, ok, err := s.LastBalance(ctx, "100002")
	if err != nil || !ok || bal != want {
		t.Fatalf("LastBalance = (%d, %v, %v), want (%d, true, nil)", bal, ok, err, want)
	}

	if _, ok, err := s.LastBalance(ctx, "nobody"); ok || err != nil {
		t.Fatalf("LastBalance(nobody) = (%v, %v), want (false, nil)", ok, err)
	}
	if _, err := s.GetRound(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetRound(missing) err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteLedger_LastBalanceFollowsLatestRound(t *testing.T) {
	s := newMemoryLedger(t)
	ctx := context.Background()

	first := playTimedOutRound(t, "r-1", 3, "a", "b")
	second := playTimedOutRound(t, "r-2", 4, "a", "b")
	second.PlayedAt = first.PlayedAt.Add(time.Minute)
	for _, rec := range []RoundRecord{first, second} {
		if err := s.RecordRound(ctx, rec); err != nil {
			t.Fatalf("RecordRound(%s): %v", rec.RoundID, err)
		}
	}

	var want int64
	for _, seat := range second.Seats {
		if seat.PlayerID == "b" {
			want = seat.BalanceAfter
		}
	}
	got, ok, err := s.LastBalance(ctx, "b")
	if err != nil || !ok || got != want {
		t.Fatalf("LastBalance = (%d, %v, %v), want %d from r-2", got, ok, err, want)
	}

	items, err := s.ListRecent(ctx, "b", 0)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(items) != 2 || items[0].RoundID != "r-2" {
		t.Fatalf("ListRecent order = %+v, want r-2 first", items)
	}
}

func TestSQLiteLedger_KeepLimitTrimsOldRounds(t *testing.T) {
	s := newMemoryLedger(t)
	s.keepLimit = 2
	ctx := context.Background()

	for i, id := range []string{"r-1", "r-2", "r-3"} {
		rec := playTimedOutRound(t, id, int64(i+1), "a", "b")
		if err := s.RecordRound(ctx, rec); err != nil {
			t.Fatalf("RecordRound(%s): %v", id, err)
		}
	}
	if _, err := s.GetRound(ctx, "r-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("oldest round should be trimmed, err = %v", err)
	}
	detail, err := s.GetRound(ctx, "r-3")
	if err != nil {
		t.Fatalf("GetRound(r-3): %v", err)
	}
	if len(detail.Seats) != 2 {
		t.Fatalf("seats = %d, want 2", len(detail.Seats))
	}
}

func TestVerifyRound(t *testing.T) {
	rec := playTimedOutRound(t, "r-1", 21, "a", "b", "c")
	detail := &RoundDetail{RoundID: rec.RoundID, Seats: rec.Seats, Tape: rec.Tape}

	if report := VerifyRound(detail); !report.Verified {
		t.Fatalf("expected verified round, got %+v", report.Error)
	}

	detail.Seats[1].BalanceAfter += 100
	report := VerifyRound(detail)
	if report.Verified || report.Error == nil || report.Error.Reason != "ledger_mismatch" {
		t.Fatalf("tampered ledger row: got %+v", report)
	}

	if report := VerifyRound(&RoundDetail{RoundID: "x"}); report.Verified || report.Error.Reason != "missing_tape" {
		t.Fatalf("missing tape: got %+v", report)
	}
}

func TestRebind(t *testing.T) {
	s := &sqlStore{dialect: dialectPostgres}
	got := s.rebind("SELECT a FROM t WHERE x = ? AND y = ? LIMIT ?")
	want := "SELECT a FROM t WHERE x = $1 AND y = $2 LIMIT $3"
	if got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}
	s.dialect = dialectSQLite
	if got := s.rebind("x = ?"); got != "x = ?" {
		t.Fatalf("sqlite rebind changed query: %q", got)
	}
}
