package game

import (
	"errors"
	"fmt"
)

// Validation errors. They are returned before any state is mutated.
var (
	ErrNotYourTurn       = errors.New("not your turn")
	ErrInvalidAction     = errors.New("invalid action")
	ErrRaiseTooSmall     = errors.New("raise too small")
	ErrInsufficientStack = errors.New("insufficient stack")
	ErrHandComplete      = errors.New("hand is complete")
	ErrUnknownSeat       = errors.New("seat not in hand")
)

// InvariantError reports corrupted hand state. It is a bug-class failure:
// the owner is expected to abort the hand and refund stacks.
type InvariantError struct {
	HandID string
	Check  string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("hand %s: invariant %q violated: %s", e.HandID, e.Check, e.Detail)
}
