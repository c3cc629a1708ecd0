// Package timer implements the per-table action clock with a one-shot time
// bank extension.
//
// The timer never touches game state. When a countdown runs out it calls the
// fire callback with the token it was armed with; the owner posts that into
// its own serialised loop and calls Expire there. Start and Cancel invalidate
// older tokens, so a firing that races with a real action is discarded by the
// same loop that accepted the action.
package timer

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// State is the timer's lifecycle state.
type State uint8

const (
	Idle State = iota
	Running
	Expired
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Expired:
		return "expired"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Token identifies one arming of the timer.
type Token uint64

// Expiry is delivered to the fire callback when a countdown runs out.
type Expiry struct {
	Seat  int
	Token Token
}

// Result is what Expire decided about a delivered token.
type Result uint8

const (
	// Stale means the token was superseded by Start or Cancel.
	Stale Result = iota
	// Extended means the seat's time bank was armed as a second countdown.
	Extended
	// TimedOut means the seat is out of time and must take the default action.
	TimedOut
)

// TurnTimer is the action clock for whichever seat is currently to act.
type TurnTimer struct {
	clock quartz.Clock
	fire  func(Expiry)

	mu        sync.Mutex
	state     State
	seat      int
	token     Token
	bank      time.Duration
	extended  bool
	armedAt   time.Time
	deadline  time.Time
	countdown *quartz.Timer
}

// New returns an idle timer. fire is called from a clock goroutine.
func New(clock quartz.Clock, fire func(Expiry)) *TurnTimer {
	return &TurnTimer{clock: clock, fire: fire, seat: -1}
}

// Start arms a countdown of limit for seat, replacing any running one. bank
// is the seat's remaining time bank, available once if limit runs out.
func (t *TurnTimer) Start(seat int, limit, bank time.Duration) Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.seat = seat
	t.bank = bank
	t.extended = false
	return t.armLocked(limit)
}

func (t *TurnTimer) armLocked(d time.Duration) Token {
	t.token++
	tok := t.token
	seat := t.seat
	t.state = Running
	t.armedAt = t.clock.Now()
	t.deadline = t.armedAt.Add(d)
	t.countdown = t.clock.AfterFunc(d, func() {
		t.fire(Expiry{Seat: seat, Token: tok})
	}, "timer", "turn")
	return tok
}

func (t *TurnTimer) stopLocked() {
	if t.countdown != nil {
		t.countdown.Stop()
		t.countdown = nil
	}
}

// Cancel stops the running countdown and returns how much time bank the
// seat used on this turn.
func (t *TurnTimer) Cancel() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Running {
		return 0
	}
	t.stopLocked()
	t.token++
	t.state = Cancelled
	if !t.extended {
		return 0
	}
	return min(t.clock.Since(t.armedAt), t.bank)
}

// Expire settles a delivered token. For a current token it either arms the
// time bank (once per turn) or reports the seat out of time. The second
// return value is the bank time consumed, set with TimedOut.
func (t *TurnTimer) Expire(tok Token) (Result, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Running || tok != t.token {
		return Stale, 0
	}
	t.countdown = nil
	if !t.extended && t.bank > 0 {
		t.extended = true
		t.armLocked(t.bank)
		return Extended, 0
	}
	t.state = Expired
	t.token++
	if t.extended {
		return TimedOut, t.bank
	}
	return TimedOut, 0
}

// State returns the current state.
func (t *TurnTimer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Seat returns the seat the timer was last started for, or -1.
func (t *TurnTimer) Seat() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seat
}

// Token returns the token of the running countdown.
func (t *TurnTimer) Token() Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

// Deadline returns when the running countdown ends, or zero.
func (t *TurnTimer) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Running {
		return time.Time{}
	}
	return t.deadline
}

// Remaining returns the time left on the running countdown.
func (t *TurnTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Running {
		return 0
	}
	return max(t.clock.Until(t.deadline), 0)
}

// InBank reports whether the running countdown is the time bank extension.
func (t *TurnTimer) InBank() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == Running && t.extended
}
