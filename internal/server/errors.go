package server

import (
	"errors"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/table"
)

var (
	// ErrUnknownMessage is reported for message types the server does not
	// accept from clients.
	ErrUnknownMessage = errors.New("unknown message type")

	ErrConnectionClosed = errors.New("connection closed")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{game.ErrNotYourTurn, "not_your_turn"},
	{game.ErrInvalidAction, "invalid_action"},
	{game.ErrRaiseTooSmall, "raise_too_small"},
	{game.ErrInsufficientStack, "insufficient_stack"},
	{game.ErrHandComplete, "hand_complete"},
	{table.ErrSeatOccupied, "seat_occupied"},
	{table.ErrTableFull, "table_full"},
	{table.ErrInvalidSeat, "invalid_seat"},
	{table.ErrInvalidBuyIn, "invalid_buy_in"},
	{table.ErrNotSeated, "not_seated"},
	{table.ErrNoHand, "no_hand"},
	{table.ErrTableClosed, "table_closed"},
	{table.ErrEmptyMessage, "empty_message"},
	{table.ErrUnknownTable, "unknown_table"},
	{ErrUnknownMessage, "unknown_message_type"},
}

// errorCode maps an error to its wire code.
func errorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal_error"
}
