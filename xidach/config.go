package xidach

import (
	"fmt"
	"time"

	"xidach-lite/card"
)

// Table defaults.
const (
	DefaultMaxSeats        = 10
	DefaultStartingBalance = 10000
	DefaultMinBet          = 100
	DefaultMaxBet          = 5000
	DefaultTurnTimeout     = 15 * time.Second
)

var DefaultBetOptions = []int64{100, 200, 500, 1000, 2000, 5000}

type Config struct {
	// Table
	MaxSeats   int
	MinPlayers int

	// Betting
	MinBet          int64
	MaxBet          int64
	BetOptions      []int64
	StartingBalance int64

	// Per-turn countdown (0 disables the timer)
	TurnTimeout time.Duration

	// RNG seed (0 => time-based)
	Seed int64

	// Clock is used for timer deadlines; nil means time.Now.
	Clock func() time.Time

	// DeckOverride is dealt, in order, by the first deal only.
	DeckOverride []card.Card
}

// DefaultConfig returns the standard ten-seat table.
func DefaultConfig() Config {
	return Config{
		MaxSeats:        DefaultMaxSeats,
		MinPlayers:      2,
		MinBet:          DefaultMinBet,
		MaxBet:          DefaultMaxBet,
		BetOptions:      append([]int64(nil), DefaultBetOptions...),
		StartingBalance: DefaultStartingBalance,
		TurnTimeout:     DefaultTurnTimeout,
	}
}

// Validate reports the first setting NewGame would reject.
func (c Config) Validate() error { return c.validate() }

func (c Config) validate() error {
	if c.MaxSeats < 2 {
		return fmt.Errorf("MaxSeats must be >= 2")
	}
	if c.MinPlayers < 2 || c.MinPlayers > c.MaxSeats {
		return fmt.Errorf("MinPlayers must be in [2, MaxSeats]")
	}
	if c.MinBet <= 0 || c.MaxBet < c.MinBet {
		return fmt.Errorf("invalid bet range: min=%d max=%d", c.MinBet, c.MaxBet)
	}
	for _, opt := range c.BetOptions {
		if opt < c.MinBet || opt > c.MaxBet {
			return fmt.Errorf("bet option %d outside [%d, %d]", opt, c.MinBet, c.MaxBet)
		}
	}
	if c.StartingBalance <= 0 {
		return fmt.Errorf("StartingBalance must be > 0")
	}
	if c.TurnTimeout < 0 {
		return fmt.Errorf("TurnTimeout must be >= 0")
	}
	for i, cd := range c.DeckOverride {
		if !cd.Valid() {
			return fmt.Errorf("deck override card %d is invalid", i)
		}
	}
	return nil
}
