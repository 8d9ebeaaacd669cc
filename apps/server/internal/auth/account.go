package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"xidach-lite/xidach"
)

const (
	defaultSessionTTL = 30 * 24 * time.Hour
	tokenBytes        = 32
	guestPrefix       = "khach_"
	maxDisplayRunes   = 20

	kindLocal = "local"
	kindGuest = "guest"
)

// StartingChips is the stack every new account opens with.
const StartingChips int64 = xidach.DefaultStartingBalance

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidDisplayName = errors.New("invalid display name")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = errors.New("account not found")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]{2,31}$`)

// Account is a player's identity at the tables: the name shown on the seat
// and the chips carried from one room to the next.
type Account struct {
	ID          uint64 `json:"accountId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Chips       int64  `json:"chips"`
	Guest       bool   `json:"guest"`
}

// PlayerID is the id the account plays under in rooms and the ledger.
func (a Account) PlayerID() string { return strconv.FormatUint(a.ID, 10) }

// Name is what a seat shows: the display name, or the username when unset.
func (a Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// AccountIDOf reverses PlayerID. Bot ids ("npc-...") are not accounts.
func AccountIDOf(playerID string) (uint64, bool) {
	id, err := strconv.ParseUint(playerID, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func authSessionTTLFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv("AUTH_SESSION_TTL"))
	if raw == "" {
		return defaultSessionTTL
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl <= 0 {
		return defaultSessionTTL
	}
	return ttl
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateCredentials(username, password string) error {
	if !usernamePattern.MatchString(strings.TrimSpace(username)) {
		return ErrInvalidUsername
	}
	if len(password) < 6 || len(password) > 72 {
		return ErrInvalidPassword
	}
	return nil
}

// normalizeDisplayName collapses whitespace, drops control characters and
// caps the name at maxDisplayRunes.
func normalizeDisplayName(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return "", ErrInvalidDisplayName
	}
	if utf8.RuneCountInString(cleaned) > maxDisplayRunes {
		cleaned = strings.TrimSpace(string([]rune(cleaned)[:maxDisplayRunes]))
	}
	return cleaned, nil
}

// guestNames returns a fresh guest username and the seat name shown for it,
// e.g. "khach_3fa9c1d2" and "Khách 3FA9".
func guestNames() (username, displayName string) {
	suffix := strings.ToLower(strings.NewReplacer("-", "x", "_", "x").Replace(mustToken()[:8]))
	return guestPrefix + suffix, "Khách " + strings.ToUpper(suffix[:4])
}

func mustToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
