package table

import (
	"slices"
	"time"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/poker"
)

// Snapshot is a point-in-time copy of a table. Snapshots built by the table
// are unredacted; use RedactFor before showing one to anybody.
type Snapshot struct {
	TableID       string     `json:"tableId"`
	Name          string     `json:"name"`
	MaxSeats      int        `json:"maxSeats"`
	SmallBlind    int        `json:"smallBlind"`
	BigBlind      int        `json:"bigBlind"`
	Ante          int        `json:"ante"`
	ActionTimeout float64    `json:"actionTimeoutSeconds"`
	Seats         []SeatView `json:"seats"`
	Button        int        `json:"button"`
	HandNumber    int        `json:"handNumber"`
	Hand          *HandView  `json:"hand,omitempty"`
	NeedsReview   bool       `json:"needsReview"`
	Seq           uint64     `json:"seq"`
}

// SeatView is one occupied seat.
type SeatView struct {
	Seat     int     `json:"seat"`
	PlayerID string  `json:"playerId"`
	Name     string  `json:"name"`
	Stack    int     `json:"stack"`
	Status   Status  `json:"status"`
	TimeBank float64 `json:"timeBankSeconds"`

	InHand    bool         `json:"inHand"`
	Bet       int          `json:"bet"`
	TotalBet  int          `json:"totalBet"`
	Folded    bool         `json:"folded"`
	AllIn     bool         `json:"allIn"`
	HoleCards []poker.Card `json:"holeCards,omitempty"`
}

// HandView is the current hand, or the one just settled while the table
// pauses between hands.
type HandView struct {
	ID             string         `json:"id"`
	Number         int            `json:"number"`
	Phase          game.Street    `json:"phase"`
	Live           bool           `json:"live"`
	Pot            int            `json:"pot"`
	Board          []poker.Card   `json:"board"`
	Button         int            `json:"button"`
	SmallBlindSeat int            `json:"smallBlindSeat"`
	BigBlindSeat   int            `json:"bigBlindSeat"`
	CurrentBet     int            `json:"currentBet"`
	MinRaise       int            `json:"minRaise"`
	ActorSeat      int            `json:"actorSeat"`
	SidePots       []game.SidePot `json:"sidePots,omitempty"`
	Deadline       time.Time      `json:"deadline,omitzero"`
	TimeRemaining  float64        `json:"timeRemainingSeconds"`
	InBank         bool           `json:"inBank"`
	Result         *game.Result   `json:"result,omitempty"`
}

// Seat returns the view of seat, if occupied.
func (s Snapshot) Seat(seat int) (SeatView, bool) {
	for _, v := range s.Seats {
		if v.Seat == seat {
			return v, true
		}
	}
	return SeatView{}, false
}

// SeatOf returns the view of playerID's seat, if seated.
func (s Snapshot) SeatOf(playerID string) (SeatView, bool) {
	for _, v := range s.Seats {
		if v.PlayerID == playerID {
			return v, true
		}
	}
	return SeatView{}, false
}

// RedactFor returns a copy safe to send to viewer. The viewer keeps their own
// hole cards; everyone else's are removed unless the hand is at showdown and
// that player did not fold. An empty viewer gets the public view.
func (s Snapshot) RedactFor(viewer string) Snapshot {
	out := s
	showdown := s.Hand != nil && s.Hand.Phase == game.StreetShowdown
	out.Seats = make([]SeatView, len(s.Seats))
	for i, v := range s.Seats {
		reveal := viewer != "" && v.PlayerID == viewer
		if showdown && v.InHand && !v.Folded {
			reveal = true
		}
		if reveal {
			v.HoleCards = slices.Clone(v.HoleCards)
		} else {
			v.HoleCards = nil
		}
		out.Seats[i] = v
	}
	if s.Hand != nil {
		h := *s.Hand
		h.Board = slices.Clone(h.Board)
		out.Hand = &h
	}
	return out
}

func (t *Table) snapshot() Snapshot {
	snap := Snapshot{
		TableID:       t.cfg.ID,
		Name:          t.cfg.Name,
		MaxSeats:      t.cfg.MaxSeats,
		SmallBlind:    t.cfg.SmallBlind,
		BigBlind:      t.cfg.BigBlind,
		Ante:          t.cfg.Ante,
		ActionTimeout: t.cfg.ActionTimeout.Seconds(),
		Button:        t.button,
		HandNumber:    t.handNumber,
		NeedsReview:   t.needsReview,
		Seq:           t.seq,
	}

	h := t.hand
	if h == nil {
		h = t.last
	}
	for _, s := range t.seats {
		if s == nil {
			continue
		}
		v := SeatView{
			Seat:     s.Seat,
			PlayerID: s.PlayerID,
			Name:     s.Name,
			Stack:    s.Stack,
			Status:   s.status(),
			TimeBank: s.TimeBank.Seconds(),
		}
		if h != nil {
			if p := h.Player(s.Seat); p != nil && p.ID == s.PlayerID {
				v.InHand = true
				if h == t.hand {
					v.Stack = p.Stack
				}
				v.Bet = p.Bet
				v.TotalBet = p.TotalBet
				v.Folded = p.Folded
				v.AllIn = p.AllIn
				v.HoleCards = slices.Clone(p.HoleCards)
			}
		}
		snap.Seats = append(snap.Seats, v)
	}
	if h != nil {
		snap.Hand = t.handView(h)
	}
	return snap
}

func (t *Table) handView(h *game.Hand) *HandView {
	v := &HandView{
		ID:             h.ID,
		Number:         t.handNumber,
		Phase:          h.Street,
		Live:           h == t.hand && !h.Complete(),
		Pot:            h.Pot(),
		Board:          slices.Clone(h.Board),
		Button:         h.Button,
		SmallBlindSeat: h.SmallBlindSeat,
		BigBlindSeat:   h.BigBlindSeat,
		CurrentBet:     h.CurrentBet,
		MinRaise:       h.MinRaise,
		ActorSeat:      h.ActorSeat,
		SidePots:       slices.Clone(h.Pots),
		Result:         h.Result,
	}
	if h.Complete() {
		v.Pot = settledPot(h)
		if h.Result != nil && h.Result.Showdown {
			v.Phase = game.StreetShowdown
		}
	}
	if v.Live && h.ActorSeat >= 0 {
		v.Deadline = t.timer.Deadline()
		v.TimeRemaining = t.timer.Remaining().Seconds()
		v.InBank = t.timer.InBank()
	}
	return v
}
