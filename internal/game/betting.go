package game

import "fmt"

// Legal is the set of actions open to a seat, with sizing bounds.
type Legal struct {
	Actions    []Action `json:"actions"`
	ToCall     int      `json:"toCall"`
	MinRaiseTo int      `json:"minRaiseTo,omitempty"`
	MaxRaiseTo int      `json:"maxRaiseTo,omitempty"`
}

// Allows reports whether a is in the set.
func (l Legal) Allows(a Action) bool {
	for _, x := range l.Actions {
		if x == a {
			return true
		}
	}
	return false
}

// LegalActions returns what seat may do now. It is empty unless seat is the
// current actor.
func (h *Hand) LegalActions(seat int) Legal {
	p := h.Player(seat)
	if p == nil || !h.Street.Betting() || seat != h.ActorSeat || !p.CanAct() {
		return Legal{}
	}

	legal := Legal{ToCall: h.ToCall(seat)}
	maxTo := p.Bet + p.Stack
	raise := h.canRaise(p)
	if h.CurrentBet <= p.Bet {
		legal.Actions = append(legal.Actions, Check)
		if raise {
			if h.CurrentBet == 0 {
				legal.Actions = append(legal.Actions, Bet)
			} else {
				legal.Actions = append(legal.Actions, Raise)
			}
		}
		legal.Actions = append(legal.Actions, Fold)
	} else {
		legal.Actions = append(legal.Actions, Call)
		if raise && maxTo >= h.CurrentBet+h.MinRaise {
			legal.Actions = append(legal.Actions, Raise)
		}
		legal.Actions = append(legal.Actions, Fold)
	}
	if raise || (h.CurrentBet > p.Bet && maxTo <= h.CurrentBet) {
		legal.Actions = append(legal.Actions, AllIn)
	}
	if raise {
		legal.MinRaiseTo = min(h.CurrentBet+h.MinRaise, maxTo)
		legal.MaxRaiseTo = maxTo
	}
	return legal
}

// canRaise reports whether p may put in more than a call. Betting is closed
// to a player who already acted on the last full raise, and to anyone with
// nobody left to respond.
func (h *Hand) canRaise(p *Player) bool {
	if p.Bet+p.Stack <= h.CurrentBet {
		return false
	}
	if p.acted && p.actedSeq >= h.fullRaiseSeq {
		return false
	}
	for _, o := range h.Players {
		if o != p && o.CanAct() {
			return true
		}
	}
	return false
}

// DefaultAction is what a seat does when its clock runs out: check when
// nothing is owed, otherwise fold.
func (h *Hand) DefaultAction(seat int) Action {
	p := h.Player(seat)
	if p != nil && p.Bet >= h.CurrentBet {
		return Check
	}
	return Fold
}

// ProcessAction applies a player decision. amount is the "raise to" total
// for bet and raise and is ignored otherwise.
func (h *Hand) ProcessAction(seat int, action Action, amount int) (Outcome, error) {
	return h.process(seat, action, amount, false)
}

// ProcessDefault applies DefaultAction for seat, marked as forced in the log.
func (h *Hand) ProcessDefault(seat int) (Outcome, error) {
	return h.process(seat, h.DefaultAction(seat), 0, true)
}

func (h *Hand) process(seat int, action Action, amount int, forced bool) (Outcome, error) {
	var out Outcome
	if !h.Street.Betting() {
		return out, ErrHandComplete
	}
	if seat != h.ActorSeat {
		return out, ErrNotYourTurn
	}
	p := h.Player(seat)
	if p == nil {
		return out, ErrUnknownSeat
	}

	action, amount = h.normalise(p, action, amount)
	moved := 0
	switch action {
	case Fold:
		p.Folded = true
	case Check:
		if p.Bet < h.CurrentBet {
			return out, fmt.Errorf("%w: check facing %d", ErrInvalidAction, h.CurrentBet-p.Bet)
		}
	case Call:
		if p.Bet >= h.CurrentBet {
			return out, fmt.Errorf("%w: nothing to call", ErrInvalidAction)
		}
		moved = p.commit(h.CurrentBet - p.Bet)
	case Bet, Raise:
		var err error
		if moved, err = h.raiseTo(p, amount); err != nil {
			return out, err
		}
	default:
		return out, fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}

	p.acted = true
	p.actedSeq = h.fullRaiseSeq
	out.Record = h.record(p, action, moved, forced)

	if len(h.live()) == 1 {
		h.collectBets()
		h.finishUncontested(&out)
		return out, nil
	}
	if h.roundComplete() {
		return out, h.endRound(&out)
	}
	h.ActorSeat = h.nextToAct(seat)
	return out, nil
}

// normalise maps all_in onto the call or raise it amounts to, and swaps bet
// and raise to match whether a bet is already open.
func (h *Hand) normalise(p *Player, action Action, amount int) (Action, int) {
	maxTo := p.Bet + p.Stack
	if action == AllIn {
		if maxTo <= h.CurrentBet {
			return Call, 0
		}
		action, amount = Raise, maxTo
	}
	switch {
	case action == Raise && h.CurrentBet == 0:
		action = Bet
	case action == Bet && h.CurrentBet > 0:
		action = Raise
	}
	return action, amount
}

func (h *Hand) raiseTo(p *Player, to int) (int, error) {
	maxTo := p.Bet + p.Stack
	switch {
	case !h.canRaise(p):
		return 0, fmt.Errorf("%w: betting is not open to seat %d", ErrInvalidAction, p.Seat)
	case to > maxTo:
		return 0, fmt.Errorf("%w: raise to %d with %d behind", ErrInsufficientStack, to, maxTo)
	case to <= h.CurrentBet:
		return 0, fmt.Errorf("%w: raise to %d does not exceed %d", ErrRaiseTooSmall, to, h.CurrentBet)
	case to < h.CurrentBet+h.MinRaise && to != maxTo:
		return 0, fmt.Errorf("%w: minimum is %d", ErrRaiseTooSmall, h.CurrentBet+h.MinRaise)
	}

	moved := p.commit(to - p.Bet)
	if size := to - h.CurrentBet; size >= h.MinRaise {
		h.MinRaise = size
		h.fullRaiseSeq++
	}
	h.CurrentBet = to
	return moved, nil
}

// roundComplete reports whether the current betting round is closed.
func (h *Hand) roundComplete() bool {
	var active []*Player
	for _, p := range h.Players {
		if p.CanAct() {
			active = append(active, p)
		}
	}
	switch len(active) {
	case 0:
		return true
	case 1:
		if active[0].Bet >= h.CurrentBet {
			return true
		}
	}
	for _, p := range active {
		if !p.acted || p.Bet < h.CurrentBet {
			return false
		}
	}
	return true
}

// nextToAct returns the first seat clockwise after seat that can act and
// still owes a decision, or -1.
func (h *Hand) nextToAct(seat int) int {
	for _, p := range h.clockwiseFrom(seat) {
		if p.CanAct() && (!p.acted || p.Bet < h.CurrentBet) {
			return p.Seat
		}
	}
	return -1
}
