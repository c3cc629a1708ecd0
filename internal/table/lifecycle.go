package table

import (
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/timer"
)

func (t *Table) eligibleCount() int {
	n := 0
	for _, s := range t.seats {
		if s != nil && s.eligible() {
			n++
		}
	}
	return n
}

// scheduleNextHand arms the between-hands pause when a hand could start.
func (t *Table) scheduleNextHand() {
	if t.hand != nil || t.pause != nil || t.needsReview || t.eligibleCount() < 2 {
		return
	}
	t.pauseToken++
	tok := t.pauseToken
	t.pause = t.clock.AfterFunc(t.cfg.HandPause, func() {
		t.post(func() { t.onPauseElapsed(tok) })
	}, "table", "pause")
}

func (t *Table) stopPause() {
	if t.pause != nil {
		t.pause.Stop()
		t.pause = nil
	}
	t.pauseToken++
}

func (t *Table) onPauseElapsed(tok uint64) {
	if tok != t.pauseToken || t.pause == nil {
		return
	}
	t.pause = nil
	t.startHand()
}

func (t *Table) startHand() {
	if t.hand != nil || t.needsReview {
		return
	}
	var dealt []game.Seat
	for _, s := range t.seats {
		if s != nil && s.eligible() {
			dealt = append(dealt, game.Seat{Seat: s.Seat, ID: s.PlayerID, Stack: s.Stack})
		}
	}
	if len(dealt) < 2 {
		return
	}

	cfg := game.Config{SmallBlind: t.cfg.SmallBlind, BigBlind: t.cfg.BigBlind, Ante: t.cfg.Ante}
	button := (t.button + 1) % len(t.seats)
	h, err := game.NewHand(newHandID(), cfg, dealt, button, game.WithDeck(t.newDeck()))
	if err != nil {
		t.logger.Error("Could not start hand", "error", err)
		return
	}
	for _, s := range t.seats {
		if s != nil {
			s.TimeBank = t.cfg.TimeBank
		}
	}
	t.handNumber++
	t.hand = h
	t.last = nil
	t.button = h.Button
	t.handStarted = t.clock.Now()
	t.logger.Info("Hand started", "hand", h.ID, "number", t.handNumber, "button", h.Button, "players", len(h.Players))

	seats := make([]int, len(h.Players))
	for i, p := range h.Players {
		seats[i] = p.Seat
	}
	t.publish(&HandStarted{
		EventHeader:    t.header(),
		Number:         t.handNumber,
		Button:         h.Button,
		SmallBlindSeat: h.SmallBlindSeat,
		BigBlindSeat:   h.BigBlindSeat,
		Seats:          seats,
	})

	pot := 0
	committed := make(map[int]int)
	for _, rec := range h.Log {
		pot += rec.Amount
		committed[rec.Seat] += rec.Amount
		t.publish(&ActionTaken{
			EventHeader: t.header(),
			Record:      rec,
			Pot:         pot,
			Stack:       h.Player(rec.Seat).StartStack - committed[rec.Seat],
		})
	}
	if h.Complete() {
		// Forced bets put everyone all-in and the board was run out.
		change := game.StreetChange{Street: h.Street, Board: h.Board, Pot: settledPot(h)}
		if h.Result != nil && h.Result.Showdown {
			change.Street = game.StreetShowdown
		}
		t.publish(&PhaseChanged{EventHeader: t.header(), Change: change})
	}

	t.persistTable()
	t.persistHand(h, 0)
	if err := h.CheckInvariants(); err != nil {
		t.abort(err)
		return
	}
	t.advance()
}

// advance moves play to the next decision: it starts the clock for a player
// who is present, acts at once for one who is sitting out, and settles the
// hand when it is over.
func (t *Table) advance() {
	for t.hand != nil {
		h := t.hand
		if h.Complete() {
			t.finishHand()
			return
		}
		seatNo := h.ActorSeat
		s := t.seats[seatNo]
		if s != nil && t.inHand(s) && !s.SittingOut {
			t.startTurn(s)
			return
		}
		from := len(h.Log)
		out, err := h.ProcessDefault(seatNo)
		if err != nil {
			t.abort(err)
			return
		}
		if !t.emitOutcome(out, from) {
			return
		}
	}
}

func (t *Table) startTurn(s *seat) {
	t.timer.Start(s.Seat, t.cfg.ActionTimeout, s.TimeBank)
	t.publish(&TurnChanged{
		EventHeader: t.header(),
		Seat:        s.Seat,
		PlayerID:    s.PlayerID,
		Legal:       t.hand.LegalActions(s.Seat),
		Deadline:    t.timer.Deadline(),
		Remaining:   t.cfg.ActionTimeout,
	})
}

// forceIfActing takes the default action for s if the hand is waiting on them.
func (t *Table) forceIfActing(s *seat) {
	if t.hand == nil || t.hand.Complete() || t.hand.ActorSeat != s.Seat || !t.inHand(s) {
		return
	}
	s.TimeBank = max(s.TimeBank-t.timer.Cancel(), 0)
	from := len(t.hand.Log)
	out, err := t.hand.ProcessDefault(s.Seat)
	if err != nil {
		t.abort(err)
		return
	}
	if t.emitOutcome(out, from) {
		t.advance()
	}
}

func (t *Table) onExpiry(e timer.Expiry) {
	res, used := t.timer.Expire(e.Token)
	switch res {
	case timer.Stale:
		return
	case timer.Extended:
		s := t.seats[e.Seat]
		if s == nil || t.hand == nil {
			return
		}
		t.logger.Debug("Time bank started", "player", s.PlayerID, "seat", s.Seat, "bank", s.TimeBank)
		t.publish(&TurnChanged{
			EventHeader: t.header(),
			Seat:        s.Seat,
			PlayerID:    s.PlayerID,
			Legal:       t.hand.LegalActions(s.Seat),
			Deadline:    t.timer.Deadline(),
			Remaining:   s.TimeBank,
			InBank:      true,
		})
		return
	}

	h := t.hand
	if h == nil || h.ActorSeat != e.Seat {
		t.logger.Warn("Timer expired for a seat that is not acting", "seat", e.Seat)
		return
	}
	s := t.seats[e.Seat]
	s.TimeBank = max(s.TimeBank-used, 0)
	action := h.DefaultAction(e.Seat)
	t.logger.Warn("Action timed out", "player", s.PlayerID, "seat", s.Seat, "default", action)

	from := len(h.Log)
	out, err := h.ProcessDefault(e.Seat)
	if err != nil {
		t.abort(err)
		return
	}
	ok := t.emitOutcome(out, from)
	if !s.SittingOut {
		s.SittingOut = true
		t.publish(&StatusChanged{EventHeader: t.header(), Seat: s.Seat, PlayerID: s.PlayerID, Status: s.status()})
	}
	if ok {
		t.advance()
	}
}

// emitOutcome publishes what an action changed, checks the hand, and queues
// the writes. It returns false if the hand had to be aborted.
func (t *Table) emitOutcome(out game.Outcome, from int) bool {
	h := t.hand
	stack := 0
	if p := h.Player(out.Record.Seat); p != nil {
		stack = p.Stack
	}
	pot := h.Pot()
	if h.Complete() {
		pot = settledPot(h)
	}
	t.publish(&ActionTaken{EventHeader: t.header(), Record: out.Record, Pot: pot, Stack: stack})
	for _, change := range out.Streets {
		t.publish(&PhaseChanged{EventHeader: t.header(), Change: change})
	}
	if err := h.CheckInvariants(); err != nil {
		t.abort(err)
		return false
	}
	t.persistHand(h, from)
	return true
}

func (t *Table) finishHand() {
	h := t.hand
	t.timer.Cancel()
	stacks := t.syncStacks(h)
	res := *h.Result
	t.logger.Info("Hand complete", "hand", h.ID, "showdown", res.Showdown, "duration", durationSince(t.handStarted, t.clock.Now()))
	t.publish(&HandCompleted{EventHeader: t.header(), Result: res, Stacks: stacks})
	t.persistHand(h, len(h.Log))
	t.closeHand()
	t.scheduleNextHand()
}

// abort cancels the current hand after a failed consistency check. Stacks go
// back to their hand-start values and the table stops dealing until
// ClearReview.
func (t *Table) abort(cause error) {
	h := t.hand
	if h == nil {
		return
	}
	t.timer.Cancel()
	res := *h.Abort(cause.Error())
	t.needsReview = true
	t.logger.Error("Hand aborted, table flagged for review", "hand", h.ID, "error", cause)
	stacks := t.syncStacks(h)
	t.publish(&TableFlagged{EventHeader: t.header(), Reason: cause.Error()})
	t.publish(&HandCompleted{EventHeader: t.header(), Result: res, Stacks: stacks})
	t.persistHand(h, len(h.Log))
	t.stopPause()
	t.closeHand()
}

func (t *Table) syncStacks(h *game.Hand) map[int]int {
	stacks := make(map[int]int, len(h.Players))
	for _, p := range h.Players {
		if s := t.seats[p.Seat]; s != nil && s.PlayerID == p.ID {
			s.Stack = p.Stack
		}
		stacks[p.Seat] = p.Stack
	}
	return stacks
}

func (t *Table) closeHand() {
	t.last = t.hand
	t.hand = nil
	t.persistTable()
	for _, s := range t.seats {
		if s != nil && s.LeaveAfterHand {
			t.vacate(s)
		}
	}
}

func settledPot(h *game.Hand) int {
	if h.Result == nil {
		return h.Pot()
	}
	total := 0
	for _, pr := range h.Result.Pots {
		total += pr.Amount
	}
	return total
}
