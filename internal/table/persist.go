package table

import (
	"context"
	"slices"
	"time"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/store"
)

// Persister accepts fire-and-forget writes. *store.AsyncWriter implements it.
type Persister interface {
	Enqueue(name string, fn store.WriteFunc) bool
}

type discardPersister struct{}

func (discardPersister) Enqueue(string, store.WriteFunc) bool { return true }

// Rows are built on the table goroutine so the writer never sees live state.

func (t *Table) tableRow() store.TableRow {
	row := store.TableRow{
		ID:          t.cfg.ID,
		Name:        t.cfg.Name,
		MaxSeats:    t.cfg.MaxSeats,
		SmallBlind:  t.cfg.SmallBlind,
		BigBlind:    t.cfg.BigBlind,
		Ante:        t.cfg.Ante,
		Button:      t.button,
		HandNumber:  t.handNumber,
		NeedsReview: t.needsReview,
		UpdatedAt:   t.clock.Now(),
	}
	if t.hand != nil {
		row.CurrentHandID = t.hand.ID
	}
	for _, s := range t.seats {
		if s != nil {
			row.Seats = append(row.Seats, store.SeatRow{Seat: s.Seat, PlayerID: s.PlayerID, Name: s.Name, Stack: s.Stack})
		}
	}
	return row
}

func (t *Table) handRow(h *game.Hand) store.HandRow {
	row := store.HandRow{
		ID:             h.ID,
		TableID:        t.cfg.ID,
		Number:         t.handNumber,
		Phase:          h.Street,
		Pot:            h.Pot(),
		Board:          slices.Clone(h.Board),
		ButtonSeat:     h.Button,
		SmallBlindSeat: h.SmallBlindSeat,
		BigBlindSeat:   h.BigBlindSeat,
		SidePots:       slices.Clone(h.Pots),
		Deck:           h.RemainingDeck(),
		StartedAt:      t.handStarted,
	}
	if h.Complete() {
		now := t.clock.Now()
		row.EndedAt = &now
		row.Pot = settledPot(h)
		if h.Result != nil {
			row.Aborted = h.Result.Aborted
		}
	}
	return row
}

func handPlayerRows(h *game.Hand) []store.HandPlayerRow {
	rows := make([]store.HandPlayerRow, 0, len(h.Players))
	for _, p := range h.Players {
		row := store.HandPlayerRow{
			HandID:     h.ID,
			Seat:       p.Seat,
			PlayerID:   p.ID,
			HoleCards:  slices.Clone(p.HoleCards),
			Committed:  p.TotalBet,
			Folded:     p.Folded,
			AllIn:      p.AllIn,
			StackStart: p.StartStack,
		}
		if h.Complete() {
			row.StackEnd = p.Stack
		}
		rows = append(rows, row)
	}
	return rows
}

func (t *Table) persistTable() {
	row := t.tableRow()
	t.persist.Enqueue("table "+row.ID, func(ctx context.Context, s store.Store) error {
		return s.SaveTable(ctx, row)
	})
}

// persistHand writes the hand row, its players, and any log records from
// index from onwards.
func (t *Table) persistHand(h *game.Hand, from int) {
	row := t.handRow(h)
	players := handPlayerRows(h)
	var actions []store.ActionRow
	at := t.clock.Now()
	for _, rec := range h.Log[from:] {
		actions = append(actions, store.ActionRowFrom(rec, at))
	}
	t.persist.Enqueue("hand "+h.ID, func(ctx context.Context, s store.Store) error {
		if err := s.SaveHand(ctx, row); err != nil {
			return err
		}
		if err := s.SaveHandPlayers(ctx, row.ID, players); err != nil {
			return err
		}
		for _, a := range actions {
			if err := s.AppendAction(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func durationSince(start, now time.Time) time.Duration {
	if start.IsZero() {
		return 0
	}
	return now.Sub(start)
}
