package table

import "time"

// Status is a seat's badge as shown to other players.
type Status string

const (
	StatusActive       Status = "active"
	StatusSittingOut   Status = "sitting_out"
	StatusDisconnected Status = "disconnected"
)

type seat struct {
	Seat     int
	PlayerID string
	Name     string
	Stack    int
	TimeBank time.Duration

	SittingOut bool
	Connected  bool
	// LeaveAfterHand vacates the seat once the current hand settles.
	LeaveAfterHand bool
}

func (s *seat) status() Status {
	switch {
	case !s.Connected:
		return StatusDisconnected
	case s.SittingOut:
		return StatusSittingOut
	}
	return StatusActive
}

// eligible reports whether the seat is dealt into the next hand.
func (s *seat) eligible() bool {
	return !s.SittingOut && !s.LeaveAfterHand && s.Stack > 0
}
