// Package store persists table and hand history. Memory is the source of
// truth for a hand in progress; rows here are written after the fact through
// AsyncWriter and read back only to restore tables after a restart.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/poker"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// TableRow is a table's durable configuration and seating.
type TableRow struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	MaxSeats      int       `json:"max_seats"`
	SmallBlind    int       `json:"small_blind"`
	BigBlind      int       `json:"big_blind"`
	Ante          int       `json:"ante"`
	Button        int       `json:"button"`
	HandNumber    int       `json:"hand_number"`
	CurrentHandID string    `json:"current_hand_id,omitempty"`
	Seats         []SeatRow `json:"seats"`
	NeedsReview   bool      `json:"needs_review"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SeatRow is one occupied seat.
type SeatRow struct {
	Seat     int    `json:"seat"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Stack    int    `json:"stack"`
}

// HandRow is a hand's public state.
type HandRow struct {
	ID             string         `json:"id"`
	TableID        string         `json:"table_id"`
	Number         int            `json:"number"`
	Phase          game.Street    `json:"phase"`
	Pot            int            `json:"pot"`
	Board          []poker.Card   `json:"board"`
	ButtonSeat     int            `json:"button_seat"`
	SmallBlindSeat int            `json:"small_blind_seat"`
	BigBlindSeat   int            `json:"big_blind_seat"`
	SidePots       []game.SidePot `json:"side_pots"`
	Deck           []poker.Card   `json:"deck"`
	Aborted        bool           `json:"aborted"`
	StartedAt      time.Time      `json:"started_at"`
	EndedAt        *time.Time     `json:"ended_at,omitempty"`
}

// HandPlayerRow is a player's part in one hand.
type HandPlayerRow struct {
	HandID     string       `json:"hand_id"`
	Seat       int          `json:"seat"`
	PlayerID   string       `json:"player_id"`
	HoleCards  []poker.Card `json:"hole_cards"`
	Committed  int          `json:"committed"`
	Folded     bool         `json:"folded"`
	AllIn      bool         `json:"all_in"`
	StackStart int          `json:"stack_start"`
	StackEnd   int          `json:"stack_end"`
}

// ActionRow is one entry of the append-only action log.
type ActionRow struct {
	HandID    string      `json:"hand_id"`
	Seq       int         `json:"seq"`
	Seat      int         `json:"seat"`
	PlayerID  string      `json:"player_id"`
	Action    game.Action `json:"action"`
	Amount    int         `json:"amount"`
	Phase     game.Street `json:"phase"`
	Forced    bool        `json:"forced"`
	CreatedAt time.Time   `json:"created_at"`
}

// ActionRowFrom converts a hand log record.
func ActionRowFrom(rec game.ActionRecord, at time.Time) ActionRow {
	return ActionRow{
		HandID:    rec.HandID,
		Seq:       rec.Seq,
		Seat:      rec.Seat,
		PlayerID:  rec.Player,
		Action:    rec.Action,
		Amount:    rec.Amount,
		Phase:     rec.Street,
		Forced:    rec.Forced,
		CreatedAt: at,
	}
}

// Store is the persistence contract. Save methods upsert.
type Store interface {
	SaveTable(ctx context.Context, row TableRow) error
	LoadTable(ctx context.Context, id string) (TableRow, error)
	ListTables(ctx context.Context) ([]TableRow, error)

	SaveHand(ctx context.Context, row HandRow) error
	LoadHand(ctx context.Context, id string) (HandRow, error)
	SaveHandPlayers(ctx context.Context, handID string, rows []HandPlayerRow) error
	LoadHandPlayers(ctx context.Context, handID string) ([]HandPlayerRow, error)

	AppendAction(ctx context.Context, row ActionRow) error
	LoadActions(ctx context.Context, handID string) ([]ActionRow, error)

	Close()
}
