package game

import "github.com/lox/cardroom/poker"

// Player is a seat's state for the duration of one hand.
type Player struct {
	Seat       int
	ID         string
	Stack      int
	StartStack int
	Bet        int // this street
	TotalBet   int // this hand, antes and blinds included
	Folded     bool
	AllIn      bool
	HoleCards  []poker.Card

	// acted is set once the player has acted this street. actedSeq records
	// the hand's full-raise counter at that moment, so a later short all-in
	// does not give them another chance to raise.
	acted    bool
	actedSeq int
}

// CanAct reports whether the player can still make decisions.
func (p *Player) CanAct() bool {
	return !p.Folded && !p.AllIn
}

// Acted reports whether the player has acted on the current street.
func (p *Player) Acted() bool {
	return p.acted
}

// commit moves up to amount chips from the stack to the current bet and
// returns what was actually moved.
func (p *Player) commit(amount int) int {
	if amount > p.Stack {
		amount = p.Stack
	}
	p.Stack -= amount
	p.Bet += amount
	p.TotalBet += amount
	if p.Stack == 0 {
		p.AllIn = true
	}
	return amount
}
