package table

import "errors"

var (
	ErrSeatOccupied = errors.New("seat occupied")
	ErrTableFull    = errors.New("table full")
	ErrInvalidSeat  = errors.New("invalid seat")
	ErrInvalidBuyIn = errors.New("invalid buy-in")
	ErrNotSeated    = errors.New("player not seated")
	ErrNoHand       = errors.New("no hand in progress")
	ErrTableClosed  = errors.New("table closed")
	ErrEmptyMessage = errors.New("empty chat message")
	ErrUnknownTable = errors.New("unknown table")
)
