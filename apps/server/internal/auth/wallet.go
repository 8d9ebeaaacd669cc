package auth

import "log"

// Wallet lets rooms treat an account's chips as the seat balance: a seat
// opens with the account's stack and every settled round writes the new
// balance back. Player ids that are not accounts (bots) are ignored.
type Wallet struct {
	accounts Service
}

func NewWallet(accounts Service) *Wallet {
	return &Wallet{accounts: accounts}
}

// Stack is the balance playerID should sit down with. 0 means the table's
// starting balance: unknown players and busted accounts buy in fresh.
func (w *Wallet) Stack(playerID string) int64 {
	id, ok := AccountIDOf(playerID)
	if !ok {
		return 0
	}
	acct, err := w.accounts.Account(id)
	if err != nil {
		log.Printf("[Auth] stack lookup failed: player=%s err=%v", playerID, err)
		return 0
	}
	if acct.Chips <= 0 {
		return 0
	}
	return acct.Chips
}

// Settle stores the balance playerID left a round with.
func (w *Wallet) Settle(playerID string, chips int64) error {
	id, ok := AccountIDOf(playerID)
	if !ok {
		return nil
	}
	return w.accounts.SaveChips(id, chips)
}

// Rename records the name a player chose at a table.
func (w *Wallet) Rename(playerID, name string) (Account, error) {
	id, ok := AccountIDOf(playerID)
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return w.accounts.SetDisplayName(id, name)
}
