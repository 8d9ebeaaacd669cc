package auth

import (
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Manager keeps accounts and sessions in process memory. Used by tests and
// AUTH_MODE=memory; everything is lost on restart.
type Manager struct {
	mu sync.Mutex

	nextAccountID uint64
	sessionTTL    time.Duration
	now           func() time.Time
	sessions      map[string]memorySession // token -> session
	accounts      map[uint64]*memoryAccount
	byUsername    map[string]uint64 // normalized username -> account
}

type memorySession struct {
	accountID uint64
	expiresAt time.Time
}

type memoryAccount struct {
	Account
	passwordHash []byte
	lastLogin    time.Time
}

func NewManager() *Manager {
	return &Manager{
		nextAccountID: 100000, // readable ids from the first account on
		sessionTTL:    defaultSessionTTL,
		now:           time.Now,
		sessions:      make(map[string]memorySession),
		accounts:      make(map[uint64]*memoryAccount),
		byUsername:    make(map[string]uint64),
	}
}

func (m *Manager) addAccountLocked(username, displayName string, guest bool, hash []byte) *memoryAccount {
	m.nextAccountID++
	rec := &memoryAccount{
		Account: Account{
			ID:          m.nextAccountID,
			Username:    username,
			DisplayName: displayName,
			Chips:       StartingChips,
			Guest:       guest,
		},
		passwordHash: hash,
		lastLogin:    m.now(),
	}
	m.accounts[rec.ID] = rec
	m.byUsername[username] = rec.ID
	return rec
}

func (m *Manager) issueSessionLocked(accountID uint64) string {
	token := mustToken()
	m.sessions[token] = memorySession{accountID: accountID, expiresAt: m.now().Add(m.sessionTTL)}
	return token
}

func (m *Manager) resolveSessionLocked(token string) (*memoryAccount, bool) {
	sess, ok := m.sessions[token]
	if token == "" || !ok {
		return nil, false
	}
	now := m.now()
	if !now.Before(sess.expiresAt) {
		delete(m.sessions, token)
		return nil, false
	}
	sess.expiresAt = now.Add(m.sessionTTL)
	m.sessions[token] = sess
	rec, ok := m.accounts[sess.accountID]
	return rec, ok
}

func (m *Manager) Register(username, password string) (Account, string, error) {
	if err := validateCredentials(username, password); err != nil {
		return Account{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	normalized := normalizeUsername(username)
	if _, taken := m.byUsername[normalized]; taken {
		return Account{}, "", ErrUsernameTaken
	}
	rec := m.addAccountLocked(normalized, normalized, false, hash)
	return rec.Account, m.issueSessionLocked(rec.ID), nil
}

func (m *Manager) Login(username, password string) (Account, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byUsername[normalizeUsername(username)]
	if !ok || password == "" {
		return Account{}, "", ErrInvalidCredentials
	}
	rec := m.accounts[id]
	if rec.Guest || bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)) != nil {
		return Account{}, "", ErrInvalidCredentials
	}
	rec.lastLogin = m.now()
	return rec.Account, m.issueSessionLocked(id), nil
}

func (m *Manager) ResolveSession(token string) (Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.resolveSessionLocked(token)
	if !ok {
		return Account{}, false
	}
	return rec.Account, true
}

func (m *Manager) Logout(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

func (m *Manager) ResolveOrCreateGuest(token string) (Account, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.resolveSessionLocked(token); ok {
		return rec.Account, token, true
	}
	for {
		username, displayName := guestNames()
		if _, taken := m.byUsername[username]; taken {
			continue
		}
		rec := m.addAccountLocked(username, displayName, true, nil)
		return rec.Account, m.issueSessionLocked(rec.ID), false
	}
}

func (m *Manager) Account(accountID uint64) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.accounts[accountID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return rec.Account, nil
}

func (m *Manager) SetDisplayName(accountID uint64, name string) (Account, error) {
	name, err := normalizeDisplayName(name)
	if err != nil {
		return Account{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.accounts[accountID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	rec.DisplayName = name
	return rec.Account, nil
}

func (m *Manager) SaveChips(accountID uint64, chips int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	rec.Chips = chips
	return nil
}

// Close is a no-op; the in-memory store has nothing to release.
func (m *Manager) Close() error { return nil }
