package auth

// Service is the account contract consumed by the gateway, the room wallet
// and the HTTP handlers.
type Service interface {
	Register(username, password string) (acct Account, sessionToken string, err error)
	Login(username, password string) (acct Account, sessionToken string, err error)
	ResolveSession(token string) (acct Account, ok bool)
	Logout(token string)

	// ResolveOrCreateGuest returns the account bound to token when the session
	// is still valid; otherwise it creates a guest account with a new session.
	ResolveOrCreateGuest(token string) (acct Account, sessionToken string, reused bool)

	Account(accountID uint64) (Account, error)
	SetDisplayName(accountID uint64, name string) (Account, error)
	// SaveChips stores the balance an account left its last table with.
	SaveChips(accountID uint64, chips int64) error

	Close() error
}
