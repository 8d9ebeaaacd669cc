package auth

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

const (
	defaultTicketTTL = 2 * time.Minute
	ticketIssuer     = "xidach"
	ticketKind       = "ws"
)

var ErrInvalidTicket = errors.New("invalid ticket")

// Ticketer issues short-lived HS256 tickets that let a websocket upgrade
// carry an identity without putting the session token in the URL.
type Ticketer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTicketer(secret string, ttl time.Duration) (*Ticketer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("empty ticket secret")
	}
	if ttl <= 0 {
		ttl = defaultTicketTTL
	}
	return &Ticketer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// NewTicketerFromEnv reads AUTH_JWT_SECRET and AUTH_TICKET_TTL. Without a
// secret a random one is generated, so tickets do not survive a restart.
func NewTicketerFromEnv() (*Ticketer, error) {
	secret := strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET"))
	if secret == "" {
		log.Printf("[Auth] AUTH_JWT_SECRET not set, using an ephemeral ticket secret")
		secret = mustToken()
	}
	ttl := defaultTicketTTL
	if raw := strings.TrimSpace(os.Getenv("AUTH_TICKET_TTL")); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			ttl = parsed
		}
	}
	return NewTicketer(secret, ttl)
}

// Issue signs a ticket for the account.
func (t *Ticketer) Issue(accountID uint64, username string) (string, error) {
	if accountID == 0 {
		return "", fmt.Errorf("account id is required")
	}
	now := t.now()
	claims := jwt.MapClaims{
		"iss":  ticketIssuer,
		"sub":  strconv.FormatUint(accountID, 10),
		"name": username,
		"typ":  ticketKind,
		"iat":  now.Unix(),
		"exp":  now.Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates the signature and expiry and returns the identity it
// carries.
func (t *Ticketer) Parse(ticket string) (accountID uint64, username string, err error) {
	ticket = strings.TrimSpace(ticket)
	if ticket == "" {
		return 0, "", ErrInvalidTicket
	}
	token, err := jwt.Parse(ticket, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidTicket
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", ErrInvalidTicket
	}
	if iss, _ := claims["iss"].(string); iss != ticketIssuer {
		return 0, "", ErrInvalidTicket
	}
	if typ, _ := claims["typ"].(string); typ != ticketKind {
		return 0, "", ErrInvalidTicket
	}
	sub, _ := claims["sub"].(string)
	accountID, err = strconv.ParseUint(sub, 10, 64)
	if err != nil || accountID == 0 {
		return 0, "", ErrInvalidTicket
	}
	username, _ = claims["name"].(string)
	return accountID, username, nil
}
