package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"xidach-lite/replay"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// sqlStore holds the queries shared by the sqlite and postgres services.
// Queries are written with ? placeholders and rebound for postgres.
type sqlStore struct {
	db        *sql.DB
	dialect   dialect
	keepLimit int
	borrowed  bool
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil || s.borrowed {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *sqlStore) RecordRound(ctx context.Context, rec RoundRecord) error {
	if strings.TrimSpace(rec.RoundID) == "" {
		return fmt.Errorf("round id is required")
	}
	if rec.PlayedAt.IsZero() {
		rec.PlayedAt = time.Now().UTC()
	}
	var tapeJSON any
	if rec.Tape != nil {
		raw, err := replay.Encode(rec.Tape)
		if err != nil {
			return fmt.Errorf("encode tape: %w", err)
		}
		tapeJSON = string(raw)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	res, err := tx.ExecContext(ctx, s.rebind(`
INSERT INTO ledger_rounds (
    round_id, room_id, round_no, seed, host_player_id, played_at_ms, tape_json, created_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (round_id) DO NOTHING
`), rec.RoundID, rec.RoomID, int64(rec.Round), rec.Seed, rec.HostID, rec.PlayedAt.UTC().UnixMilli(), tapeJSON, nowMs)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// already recorded
		return tx.Commit()
	}

	for _, seat := range rec.Seats {
		if _, err := tx.ExecContext(ctx, s.rebind(`
INSERT INTO ledger_round_seats (
    round_id, seat, player_id, display_name, robot, is_host, bet, cards, tier, score,
    result, payout, penalty, balance_before, balance_after
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`), rec.RoundID, seat.Seat, seat.PlayerID, seat.Name, seat.Robot, seat.IsHost, seat.Bet, seat.Cards, seat.Tier, seat.Score,
			seat.Result, seat.Payout, seat.Penalty, seat.BalanceBefore, seat.BalanceAfter); err != nil {
			return err
		}
	}

	if s.keepLimit > 0 {
		if _, err := tx.ExecContext(ctx, s.rebind(`
DELETE FROM ledger_rounds
WHERE id <= (
    SELECT id
    FROM ledger_rounds
    ORDER BY id DESC
    LIMIT 1 OFFSET ?
)
`), s.keepLimit); err != nil {
			log.Printf("[Ledger] trim rounds failed: keep=%d err=%v", s.keepLimit, err)
		}
	}

	return tx.Commit()
}

func (s *sqlStore) ListRecent(ctx context.Context, playerID string, limit int) ([]HistoryItem, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return []HistoryItem{}, nil
	}
	limit = clampLimit(limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT r.round_id, r.room_id, r.round_no, r.played_at_ms,
       p.seat, p.is_host, p.bet, p.cards, p.tier, p.score, p.result, p.payout, p.balance_after
FROM ledger_round_seats AS p
JOIN ledger_rounds AS r ON r.round_id = p.round_id
WHERE p.player_id = ?
ORDER BY r.played_at_ms DESC, r.id DESC
LIMIT ?
`), playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]HistoryItem, 0, limit)
	for rows.Next() {
		var item HistoryItem
		var roundNo, playedAtMs int64
		if err := rows.Scan(
			&item.RoundID, &item.RoomID, &roundNo, &playedAtMs,
			&item.Seat, &item.IsHost, &item.Bet, &item.Cards, &item.Tier, &item.Score, &item.Result, &item.Payout, &item.BalanceAfter,
		); err != nil {
			return nil, err
		}
		item.Round = uint32(roundNo)
		item.PlayedAt = time.UnixMilli(playedAtMs).UTC()
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *sqlStore) GetRound(ctx context.Context, roundID string) (*RoundDetail, error) {
	roundID = strings.TrimSpace(roundID)
	if roundID == "" {
		return nil, ErrNotFound
	}

	var detail RoundDetail
	var roundNo, playedAtMs int64
	var tapeJSON sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind(`
SELECT round_id, room_id, round_no, seed, host_player_id, played_at_ms, tape_json
FROM ledger_rounds
WHERE round_id = ?
`), roundID).Scan(&detail.RoundID, &detail.RoomID, &roundNo, &detail.Seed, &detail.HostID, &playedAtMs, &tapeJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	detail.Round = uint32(roundNo)
	detail.PlayedAt = time.UnixMilli(playedAtMs).UTC()
	if tapeJSON.Valid && tapeJSON.String != "" {
		tape, err := replay.Decode([]byte(tapeJSON.String))
		if err != nil {
			log.Printf("[Ledger] decode stored tape failed: round=%s err=%v", roundID, err)
		} else {
			detail.Tape = tape
		}
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT seat, player_id, display_name, robot, is_host, bet, cards, tier, score,
       result, payout, penalty, balance_before, balance_after
FROM ledger_round_seats
WHERE round_id = ?
ORDER BY seat ASC
`), roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var row SeatRow
		if err := rows.Scan(
			&row.Seat, &row.PlayerID, &row.Name, &row.Robot, &row.IsHost, &row.Bet, &row.Cards, &row.Tier, &row.Score,
			&row.Result, &row.Payout, &row.Penalty, &row.BalanceBefore, &row.BalanceAfter,
		); err != nil {
			return nil, err
		}
		detail.Seats = append(detail.Seats, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (s *sqlStore) LastBalance(ctx context.Context, playerID string) (int64, bool, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return 0, false, nil
	}
	var balance int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
SELECT p.balance_after
FROM ledger_round_seats AS p
JOIN ledger_rounds AS r ON r.round_id = p.round_id
WHERE p.player_id = ?
ORDER BY r.played_at_ms DESC, r.id DESC
LIMIT 1
`), playerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return balance, true, nil
}

func ensureLedgerSchema(ctx context.Context, db *sql.DB, d dialect) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if d == dialectPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS ledger_rounds (
    ` + idColumn + `,
    round_id TEXT NOT NULL UNIQUE,
    room_id TEXT NOT NULL,
    round_no BIGINT NOT NULL,
    seed BIGINT NOT NULL,
    host_player_id TEXT NOT NULL DEFAULT '',
    played_at_ms BIGINT NOT NULL,
    tape_json TEXT,
    created_at_ms BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_rounds_played ON ledger_rounds(played_at_ms DESC)`,
		`
CREATE TABLE IF NOT EXISTS ledger_round_seats (
    round_id TEXT NOT NULL,
    seat INTEGER NOT NULL,
    player_id TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    robot BOOLEAN NOT NULL DEFAULT FALSE,
    is_host BOOLEAN NOT NULL DEFAULT FALSE,
    bet BIGINT NOT NULL,
    cards TEXT NOT NULL,
    tier TEXT NOT NULL,
    score INTEGER NOT NULL,
    result TEXT NOT NULL,
    payout BIGINT NOT NULL,
    penalty BOOLEAN NOT NULL DEFAULT FALSE,
    balance_before BIGINT NOT NULL,
    balance_after BIGINT NOT NULL,
    PRIMARY KEY (round_id, seat),
    FOREIGN KEY (round_id) REFERENCES ledger_rounds(round_id) ON DELETE CASCADE
)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_round_seats_player ON ledger_round_seats(player_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
