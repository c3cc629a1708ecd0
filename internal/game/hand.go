package game

import (
	"fmt"
	"sort"

	"github.com/lox/cardroom/poker"
)

// Config holds the forced-bet schedule for a hand.
type Config struct {
	SmallBlind int
	BigBlind   int
	Ante       int
}

// Seat is a player dealt into a new hand.
type Seat struct {
	Seat  int
	ID    string
	Stack int
}

// HandOption configures a Hand during creation.
type HandOption func(*Hand)

// WithDeck deals from deck instead of a freshly shuffled one.
func WithDeck(deck *poker.Deck) HandOption {
	return func(h *Hand) {
		h.deck = deck
	}
}

// Hand is the state of one hand of hold'em.
type Hand struct {
	ID      string
	Config  Config
	Players []*Player // ordered by seat, which is clockwise order

	Button         int
	SmallBlindSeat int
	BigBlindSeat   int

	Street     Street
	Board      []poker.Card
	CurrentBet int
	// MinRaise is the size of the last full bet or raise this street.
	MinRaise int
	// ActorSeat is the seat to act, or -1 when nobody is.
	ActorSeat int
	// Collected holds chips already moved off the betting line.
	Collected int
	Pots      []SidePot
	Log       []ActionRecord
	Result    *Result

	deck         *poker.Deck
	fullRaiseSeq int
}

// StreetChange describes a street transition caused by an action.
type StreetChange struct {
	Street Street       `json:"street"`
	Dealt  []poker.Card `json:"dealt,omitempty"`
	Board  []poker.Card `json:"board"`
	Pot    int          `json:"pot"`
}

// Outcome is everything a single call into the hand changed.
type Outcome struct {
	Record  ActionRecord
	Streets []StreetChange
	Result  *Result
}

// NewHand deals a new hand. button is the dealer seat; when it is not one of
// seats the next dealt-in seat clockwise takes the button. Antes and blinds
// are posted and hole cards dealt before NewHand returns, and the hand may
// already be complete if the forced bets put everyone all-in.
func NewHand(id string, cfg Config, seats []Seat, button int, opts ...HandOption) (*Hand, error) {
	if cfg.SmallBlind <= 0 || cfg.BigBlind < cfg.SmallBlind || cfg.Ante < 0 {
		return nil, fmt.Errorf("invalid blinds %d/%d ante %d", cfg.SmallBlind, cfg.BigBlind, cfg.Ante)
	}

	h := &Hand{
		ID:        id,
		Config:    cfg,
		Street:    StreetBlinds,
		ActorSeat: -1,
		MinRaise:  cfg.BigBlind,
	}
	seen := make(map[int]bool, len(seats))
	for _, s := range seats {
		if s.Stack <= 0 {
			continue
		}
		if seen[s.Seat] {
			return nil, fmt.Errorf("duplicate seat %d", s.Seat)
		}
		seen[s.Seat] = true
		h.Players = append(h.Players, &Player{Seat: s.Seat, ID: s.ID, Stack: s.Stack, StartStack: s.Stack})
	}
	if len(h.Players) < 2 {
		return nil, fmt.Errorf("need at least 2 players with chips, have %d", len(h.Players))
	}
	if 2*len(h.Players)+5 > 52 {
		return nil, fmt.Errorf("too many players: %d", len(h.Players))
	}
	sort.Slice(h.Players, func(i, j int) bool { return h.Players[i].Seat < h.Players[j].Seat })

	for _, opt := range opts {
		opt(h)
	}
	if h.deck == nil {
		h.deck = poker.NewShuffledDeck()
	}

	h.Button = h.Players[h.indexAtOrAfter(button)].Seat
	if len(h.Players) == 2 {
		h.SmallBlindSeat = h.Button
	} else {
		h.SmallBlindSeat = h.nextSeat(h.Button)
	}
	h.BigBlindSeat = h.nextSeat(h.SmallBlindSeat)

	if err := h.dealHoleCards(); err != nil {
		return nil, err
	}
	h.postForcedBets()

	h.Street = StreetPreflop
	h.CurrentBet = cfg.BigBlind
	h.ActorSeat = h.nextToAct(h.BigBlindSeat)

	var out Outcome
	if h.roundComplete() {
		if err := h.endRound(&out); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hand) dealHoleCards() error {
	first := h.indexOf(h.nextSeat(h.Button))
	for range 2 {
		for i := range h.Players {
			p := h.Players[(first+i)%len(h.Players)]
			cards, err := h.deck.Deal(1)
			if err != nil {
				return fmt.Errorf("deal hole cards: %w", err)
			}
			p.HoleCards = append(p.HoleCards, cards...)
		}
	}
	return nil
}

func (h *Hand) postForcedBets() {
	if h.Config.Ante > 0 {
		for _, p := range h.Players {
			amount := min(h.Config.Ante, p.Stack)
			p.Stack -= amount
			p.TotalBet += amount
			h.Collected += amount
			if p.Stack == 0 {
				p.AllIn = true
			}
			h.record(p, PostAnte, amount, false)
		}
		h.Pots = Allocate(h.contributions(), h.foldedSeats())
	}
	sb := h.Player(h.SmallBlindSeat)
	h.record(sb, PostSmallBlind, sb.commit(h.Config.SmallBlind), false)
	bb := h.Player(h.BigBlindSeat)
	h.record(bb, PostBigBlind, bb.commit(h.Config.BigBlind), false)
}

func (h *Hand) record(p *Player, action Action, amount int, forced bool) ActionRecord {
	rec := ActionRecord{
		HandID: h.ID,
		Seq:    len(h.Log) + 1,
		Seat:   p.Seat,
		Player: p.ID,
		Action: action,
		Amount: amount,
		BetTo:  p.Bet,
		Street: h.Street,
		Forced: forced,
	}
	h.Log = append(h.Log, rec)
	return rec
}

// Player returns the player in seat, or nil.
func (h *Hand) Player(seat int) *Player {
	if i := h.indexOf(seat); i >= 0 {
		return h.Players[i]
	}
	return nil
}

// PlayerByID returns the player with id, or nil.
func (h *Hand) PlayerByID(id string) *Player {
	for _, p := range h.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Pot returns every chip committed this hand: collected chips plus the
// current street's bets.
func (h *Hand) Pot() int {
	total := h.Collected
	for _, p := range h.Players {
		total += p.Bet
	}
	return total
}

// Complete reports whether the hand has been settled.
func (h *Hand) Complete() bool {
	return h.Street == StreetComplete
}

// RemainingDeck returns the undealt cards, top first.
func (h *Hand) RemainingDeck() []poker.Card {
	return h.deck.Cards()
}

// ToCall returns the chips seat needs to add to match the current bet.
func (h *Hand) ToCall(seat int) int {
	p := h.Player(seat)
	if p == nil || h.CurrentBet <= p.Bet {
		return 0
	}
	return min(h.CurrentBet-p.Bet, p.Stack)
}

func (h *Hand) indexOf(seat int) int {
	for i, p := range h.Players {
		if p.Seat == seat {
			return i
		}
	}
	return -1
}

// indexAtOrAfter returns the index of seat, or of the first seat clockwise
// after it when seat is not dealt in.
func (h *Hand) indexAtOrAfter(seat int) int {
	for i, p := range h.Players {
		if p.Seat >= seat {
			return i
		}
	}
	return 0
}

// nextSeat returns the dealt-in seat clockwise after seat.
func (h *Hand) nextSeat(seat int) int {
	for _, p := range h.Players {
		if p.Seat > seat {
			return p.Seat
		}
	}
	return h.Players[0].Seat
}

// clockwiseFrom returns the players in clockwise order starting after seat.
func (h *Hand) clockwiseFrom(seat int) []*Player {
	start := h.indexAtOrAfter(seat + 1)
	out := make([]*Player, 0, len(h.Players))
	for i := range h.Players {
		out = append(out, h.Players[(start+i)%len(h.Players)])
	}
	return out
}

func (h *Hand) contributions() map[int]int {
	out := make(map[int]int, len(h.Players))
	for _, p := range h.Players {
		out[p.Seat] = p.TotalBet - p.Bet
	}
	return out
}

func (h *Hand) foldedSeats() map[int]bool {
	out := make(map[int]bool)
	for _, p := range h.Players {
		if p.Folded {
			out[p.Seat] = true
		}
	}
	return out
}

func (h *Hand) live() []*Player {
	var out []*Player
	for _, p := range h.Players {
		if !p.Folded {
			out = append(out, p)
		}
	}
	return out
}

func (h *Hand) canActCount() int {
	n := 0
	for _, p := range h.Players {
		if p.CanAct() {
			n++
		}
	}
	return n
}
