package table

import (
	"fmt"
	"time"
)

// Config is a table's fixed settings.
type Config struct {
	ID         string
	Name       string
	MaxSeats   int
	SmallBlind int
	BigBlind   int
	Ante       int

	// ActionTimeout is the per-turn action clock.
	ActionTimeout time.Duration
	// TimeBank is each seat's reserve, restored at the start of every hand.
	TimeBank time.Duration
	// HandPause is the wait between one hand completing and the next starting.
	HandPause time.Duration

	BuyInMin int
	BuyInMax int

	// DeckSeed, when non-zero, deals a reproducible sequence of decks in
	// place of crypto shuffles. Meant for development and replays.
	DeckSeed int64
}

// DefaultConfig returns a 6-max 10/20 table.
func DefaultConfig(id string) Config {
	return Config{
		ID:            id,
		Name:          id,
		MaxSeats:      6,
		SmallBlind:    10,
		BigBlind:      20,
		ActionTimeout: 30 * time.Second,
		TimeBank:      30 * time.Second,
		HandPause:     3 * time.Second,
		BuyInMin:      400,
		BuyInMax:      2000,
	}
}

// Validate checks that the settings can run hands.
func (c Config) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("table id is required")
	case c.MaxSeats < 2 || c.MaxSeats > 10:
		return fmt.Errorf("table %s: max seats must be between 2 and 10, got %d", c.ID, c.MaxSeats)
	case c.SmallBlind <= 0 || c.BigBlind < c.SmallBlind:
		return fmt.Errorf("table %s: invalid blinds %d/%d", c.ID, c.SmallBlind, c.BigBlind)
	case c.Ante < 0:
		return fmt.Errorf("table %s: negative ante", c.ID)
	case c.ActionTimeout <= 0:
		return fmt.Errorf("table %s: action timeout must be positive", c.ID)
	case c.TimeBank < 0 || c.HandPause < 0:
		return fmt.Errorf("table %s: negative time bank or hand pause", c.ID)
	case c.BuyInMin <= 0 || (c.BuyInMax > 0 && c.BuyInMax < c.BuyInMin):
		return fmt.Errorf("table %s: invalid buy-in range %d-%d", c.ID, c.BuyInMin, c.BuyInMax)
	}
	return nil
}

func (c Config) validBuyIn(amount int) bool {
	if amount < c.BuyInMin {
		return false
	}
	return c.BuyInMax == 0 || amount <= c.BuyInMax
}
