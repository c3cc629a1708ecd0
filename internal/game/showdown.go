package game

import (
	"fmt"

	"github.com/lox/cardroom/poker"
)

// PotResult is how one tier was settled.
type PotResult struct {
	SidePot
	Winners []int          `json:"winners"`
	Rank    poker.HandRank `json:"rank,omitempty"`
	Hand    string         `json:"hand,omitempty"`
}

// Result is the settlement of a finished hand.
type Result struct {
	HandID string `json:"handId"`
	// Payouts maps seat to chips received, returned uncalled bets included.
	Payouts map[int]int `json:"payouts"`
	Pots    []PotResult `json:"pots"`
	// Shown holds the hole cards revealed at showdown.
	Shown    map[int][]poker.Card `json:"shown,omitempty"`
	Showdown bool                 `json:"showdown"`
	Aborted  bool                 `json:"aborted,omitempty"`
	Reason   string               `json:"reason,omitempty"`
}

func (h *Hand) collectBets() {
	for _, p := range h.Players {
		h.Collected += p.Bet
		p.Bet = 0
		p.acted = false
		p.actedSeq = 0
	}
	h.CurrentBet = 0
	h.MinRaise = h.Config.BigBlind
	h.fullRaiseSeq = 0
}

// endRound closes the street: bets are collected, pots recomputed, and the
// hand moves to the next street, runs the board out, or goes to showdown.
func (h *Hand) endRound(out *Outcome) error {
	h.collectBets()
	if len(h.live()) == 1 {
		h.finishUncontested(out)
		return nil
	}
	h.Pots = Allocate(h.contributions(), h.foldedSeats())

	for h.Street < StreetRiver {
		if err := h.dealStreet(out); err != nil {
			return err
		}
		if h.canActCount() >= 2 {
			h.ActorSeat = h.nextToAct(h.Button)
			return nil
		}
	}
	h.showdown(out)
	return nil
}

func (h *Hand) dealStreet(out *Outcome) error {
	n := 1
	if h.Street == StreetPreflop {
		n = 3
	}
	cards, err := h.deck.Deal(n)
	if err != nil {
		return &InvariantError{HandID: h.ID, Check: "deck", Detail: err.Error()}
	}
	h.Street++
	h.Board = append(h.Board, cards...)
	out.Streets = append(out.Streets, StreetChange{
		Street: h.Street,
		Dealt:  cards,
		Board:  append([]poker.Card(nil), h.Board...),
		Pot:    h.Pot(),
	})
	return nil
}

func (h *Hand) finishUncontested(out *Outcome) {
	winner := h.live()[0]
	total := h.Pot()
	h.Pots = []SidePot{{Amount: total, Cap: winner.TotalBet, Eligible: []int{winner.Seat}}}
	winner.Stack += total
	h.Collected = 0

	h.Result = &Result{
		HandID:  h.ID,
		Payouts: map[int]int{winner.Seat: total},
		Pots:    []PotResult{{SidePot: h.Pots[0], Winners: []int{winner.Seat}}},
	}
	h.finish(out)
}

func (h *Hand) showdown(out *Outcome) {
	h.Street = StreetShowdown
	h.ActorSeat = -1
	out.Streets = append(out.Streets, StreetChange{
		Street: StreetShowdown,
		Board:  append([]poker.Card(nil), h.Board...),
		Pot:    h.Pot(),
	})

	res := &Result{
		HandID:   h.ID,
		Payouts:  make(map[int]int),
		Shown:    make(map[int][]poker.Card),
		Showdown: true,
	}
	ranks := make(map[int]poker.HandRank)
	for _, p := range h.live() {
		res.Shown[p.Seat] = p.HoleCards
	}

	for _, pot := range h.Pots {
		pr := PotResult{SidePot: pot}
		switch len(pot.Eligible) {
		case 0:
		case 1:
			pr.Winners = pot.Eligible
		default:
			contenders := make([]poker.HandRank, len(pot.Eligible))
			for i, seat := range pot.Eligible {
				r, ok := ranks[seat]
				if !ok {
					r = poker.Evaluate(h.Player(seat).HoleCards, h.Board)
					ranks[seat] = r
				}
				contenders[i] = r
			}
			best, idx := poker.CompareWinners(contenders)
			for _, i := range idx {
				pr.Winners = append(pr.Winners, pot.Eligible[i])
			}
			pr.Rank = best
			pr.Hand = best.String()
		}
		h.split(pr.Amount, pr.Winners, res.Payouts)
		res.Pots = append(res.Pots, pr)
	}

	for seat, amount := range res.Payouts {
		h.Player(seat).Stack += amount
	}
	h.Collected = 0
	h.Result = res
	h.finish(out)
}

// split divides amount evenly among winners. Odd chips go one at a time to
// winners in seat order starting left of the button.
func (h *Hand) split(amount int, winners []int, payouts map[int]int) {
	if len(winners) == 0 || amount == 0 {
		return
	}
	share := amount / len(winners)
	rem := amount % len(winners)
	for _, seat := range winners {
		payouts[seat] += share
	}
	if rem == 0 {
		return
	}
	isWinner := make(map[int]bool, len(winners))
	for _, seat := range winners {
		isWinner[seat] = true
	}
	for _, p := range h.clockwiseFrom(h.Button) {
		if rem == 0 {
			break
		}
		if isWinner[p.Seat] {
			payouts[p.Seat]++
			rem--
		}
	}
}

func (h *Hand) finish(out *Outcome) {
	h.Street = StreetComplete
	h.ActorSeat = -1
	out.Result = h.Result
}

// Abort cancels the hand and restores every stack to its hand-start value.
func (h *Hand) Abort(reason string) *Result {
	for _, p := range h.Players {
		p.Stack = p.StartStack
		p.Bet = 0
		p.TotalBet = 0
	}
	h.Collected = 0
	h.Pots = nil
	h.CurrentBet = 0
	h.Result = &Result{
		HandID:  h.ID,
		Payouts: map[int]int{},
		Aborted: true,
		Reason:  reason,
	}
	h.Street = StreetComplete
	h.ActorSeat = -1
	return h.Result
}

// CheckInvariants verifies chip conservation and turn state.
func (h *Hand) CheckInvariants() error {
	start, stacks := 0, 0
	for _, p := range h.Players {
		if p.Stack < 0 {
			return h.violation("stack", fmt.Sprintf("seat %d stack %d", p.Seat, p.Stack))
		}
		if p.AllIn && p.Stack != 0 {
			return h.violation("all-in", fmt.Sprintf("seat %d all-in with %d behind", p.Seat, p.Stack))
		}
		if p.Bet > p.TotalBet {
			return h.violation("bet", fmt.Sprintf("seat %d bet %d exceeds total %d", p.Seat, p.Bet, p.TotalBet))
		}
		start += p.StartStack
		stacks += p.Stack
	}
	if start != stacks+h.Pot() {
		return h.violation("conservation", fmt.Sprintf("start %d != stacks %d + pot %d", start, stacks, h.Pot()))
	}
	if len(h.Pots) > 0 && !h.Complete() && potTotal(h.Pots) != h.Collected {
		return h.violation("pots", fmt.Sprintf("tiers %d != collected %d", potTotal(h.Pots), h.Collected))
	}
	if h.Street.Betting() {
		p := h.Player(h.ActorSeat)
		if p == nil || !p.CanAct() {
			return h.violation("actor", fmt.Sprintf("seat %d cannot act", h.ActorSeat))
		}
	}
	return nil
}

func (h *Hand) violation(check, detail string) error {
	return &InvariantError{HandID: h.ID, Check: check, Detail: detail}
}
