package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

const (
	queryTimeout   = 5 * time.Second
	accountColumns = `id, username, display_name, kind, chips`
)

// sqlStore holds the account queries shared by the sqlite and postgres
// managers. Timestamps are unix milliseconds in both dialects.
type sqlStore struct {
	db         *sql.DB
	dialect    dialect
	sessionTTL time.Duration
	now        func() time.Time
}

func newSQLStore(db *sql.DB, d dialect, sessionTTL time.Duration) *sqlStore {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &sqlStore{db: db, dialect: d, sessionTTL: sessionTTL, now: time.Now}
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *sqlStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) uniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if s.dialect == dialectPostgres {
		return isPostgresUniqueViolation(err)
	}
	return isSQLiteUniqueViolation(err)
}

func (s *sqlStore) nowMs() int64 { return s.now().UTC().UnixMilli() }

func (s *sqlStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner, extra ...any) (Account, error) {
	var acct Account
	var kind string
	dest := append([]any{&acct.ID, &acct.Username, &acct.DisplayName, &kind, &acct.Chips}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	acct.Guest = kind == kindGuest
	return acct, nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) insertAccountTx(ctx context.Context, tx *sql.Tx, username, displayName, kind string, passwordHash any) (Account, error) {
	nowMs := s.nowMs()
	row := tx.QueryRowContext(ctx, s.rebind(`
INSERT INTO accounts (
    username, display_name, kind, password_hash, chips, created_at_ms, updated_at_ms, last_login_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING `+accountColumns), username, displayName, kind, passwordHash, StartingChips, nowMs, nowMs, nowMs)
	return scanAccount(row)
}

func (s *sqlStore) issueSessionTx(ctx context.Context, tx *sql.Tx, accountID uint64) (string, error) {
	nowMs := s.nowMs()
	token := mustToken()
	_, err := tx.ExecContext(ctx, s.rebind(`
INSERT INTO account_sessions (token, account_id, issued_at_ms, expires_at_ms, last_seen_at_ms)
VALUES (?, ?, ?, ?, ?)
`), token, accountID, nowMs, nowMs+s.sessionTTL.Milliseconds(), nowMs)
	return token, err
}

func (s *sqlStore) Register(username, password string) (Account, string, error) {
	if err := validateCredentials(username, password); err != nil {
		return Account{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, "", err
	}
	normalized := normalizeUsername(username)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	var acct Account
	var token string
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if acct, err = s.insertAccountTx(ctx, tx, normalized, normalized, kindLocal, string(hash)); err != nil {
			return err
		}
		token, err = s.issueSessionTx(ctx, tx, acct.ID)
		return err
	})
	if err != nil {
		if s.uniqueViolation(err) {
			return Account{}, "", ErrUsernameTaken
		}
		return Account{}, "", err
	}
	return acct, token, nil
}

func (s *sqlStore) Login(username, password string) (Account, string, error) {
	normalized := normalizeUsername(username)
	if normalized == "" || password == "" {
		return Account{}, "", ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	var hash sql.NullString
	acct, err := scanAccount(s.db.QueryRowContext(ctx, s.rebind(`
SELECT `+accountColumns+`, password_hash
FROM accounts
WHERE lower(username) = ?
  AND kind = ?
`), normalized, kindLocal), &hash)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, "", ErrInvalidCredentials
		}
		return Account{}, "", err
	}
	if !hash.Valid || bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(password)) != nil {
		return Account{}, "", ErrInvalidCredentials
	}

	var token string
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		nowMs := s.nowMs()
		if _, err := tx.ExecContext(ctx, s.rebind(`
UPDATE accounts
SET last_login_at_ms = ?,
    updated_at_ms = ?
WHERE id = ?
`), nowMs, nowMs, acct.ID); err != nil {
			return err
		}
		var err error
		token, err = s.issueSessionTx(ctx, tx, acct.ID)
		return err
	})
	if err != nil {
		return Account{}, "", err
	}
	return acct, token, nil
}

func (s *sqlStore) ResolveSession(token string) (Account, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Account{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	nowMs := s.nowMs()
	res, err := s.db.ExecContext(ctx, s.rebind(`
UPDATE account_sessions
SET last_seen_at_ms = ?,
    expires_at_ms = ?
WHERE token = ?
  AND revoked_at_ms IS NULL
  AND expires_at_ms > ?
`), nowMs, nowMs+s.sessionTTL.Milliseconds(), token, nowMs)
	if err != nil {
		return Account{}, false
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return Account{}, false
	}
	acct, err := scanAccount(s.db.QueryRowContext(ctx, s.rebind(`
SELECT `+accountColumns+`
FROM accounts
WHERE id = (SELECT account_id FROM account_sessions WHERE token = ?)
`), token))
	if err != nil {
		return Account{}, false
	}
	return acct, true
}

func (s *sqlStore) Logout(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	_, _ = s.db.ExecContext(ctx, s.rebind(`
UPDATE account_sessions
SET revoked_at_ms = ?
WHERE token = ?
  AND revoked_at_ms IS NULL
`), s.nowMs(), token)
}

func (s *sqlStore) ResolveOrCreateGuest(token string) (Account, string, bool) {
	if acct, ok := s.ResolveSession(token); ok {
		return acct, strings.TrimSpace(token), true
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	for i := 0; i < 5; i++ {
		var acct Account
		var session string
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			username, displayName := guestNames()
			var err error
			if acct, err = s.insertAccountTx(ctx, tx, username, displayName, kindGuest, nil); err != nil {
				return err
			}
			session, err = s.issueSessionTx(ctx, tx, acct.ID)
			return err
		})
		if err == nil {
			return acct, session, false
		}
		if !s.uniqueViolation(err) {
			log.Printf("[Auth] create guest failed: err=%v", err)
			return Account{}, "", false
		}
	}
	return Account{}, "", false
}

func (s *sqlStore) Account(accountID uint64) (Account, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	return scanAccount(s.db.QueryRowContext(ctx, s.rebind(`
SELECT `+accountColumns+`
FROM accounts
WHERE id = ?
`), accountID))
}

func (s *sqlStore) SetDisplayName(accountID uint64, name string) (Account, error) {
	name, err := normalizeDisplayName(name)
	if err != nil {
		return Account{}, err
	}
	if err := s.updateAccount(`display_name = ?`, name, accountID); err != nil {
		return Account{}, err
	}
	return s.Account(accountID)
}

func (s *sqlStore) SaveChips(accountID uint64, chips int64) error {
	return s.updateAccount(`chips = ?`, chips, accountID)
}

func (s *sqlStore) updateAccount(assignment string, value any, accountID uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	res, err := s.db.ExecContext(ctx, s.rebind(`
UPDATE accounts
SET `+assignment+`,
    updated_at_ms = ?
WHERE id = ?
`), value, s.nowMs(), accountID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func ensureAccountSchema(ctx context.Context, db *sql.DB, d dialect) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if d == dialectPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS accounts (
    ` + idColumn + `,
    username TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL DEFAULT 'local',
    password_hash TEXT,
    chips BIGINT NOT NULL,
    created_at_ms BIGINT NOT NULL,
    updated_at_ms BIGINT NOT NULL,
    last_login_at_ms BIGINT
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_accounts_username_ci ON accounts(lower(username))`,
		`
CREATE TABLE IF NOT EXISTS account_sessions (
    token TEXT PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    issued_at_ms BIGINT NOT NULL,
    expires_at_ms BIGINT NOT NULL,
    revoked_at_ms BIGINT,
    last_seen_at_ms BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_account_sessions_account ON account_sessions(account_id, expires_at_ms)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
