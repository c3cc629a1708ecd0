package table

import (
	"context"
	"errors"
	"fmt"

	"github.com/lox/cardroom/internal/store"
)

// Restore starts a table from its persisted row. Seats and stacks come back
// with every player disconnected and sitting out until they rejoin. A hand
// that was still running when the process stopped is not resumed: it is
// marked aborted and its players get their hand-start stacks back.
func Restore(ctx context.Context, st store.Store, cfg Config, opts ...Option) (*Table, error) {
	t, err := newTable(cfg, opts...)
	if err != nil {
		return nil, err
	}
	row, err := st.LoadTable(ctx, cfg.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		t.start()
		return t, nil
	case err != nil:
		return nil, fmt.Errorf("load table %s: %w", cfg.ID, err)
	}

	t.button = row.Button
	t.handNumber = row.HandNumber
	t.needsReview = row.NeedsReview
	for _, sr := range row.Seats {
		if sr.Seat < 0 || sr.Seat >= len(t.seats) || t.seats[sr.Seat] != nil {
			t.logger.Warn("Dropping restored seat", "seat", sr.Seat, "player", sr.PlayerID)
			continue
		}
		t.seats[sr.Seat] = &seat{
			Seat:       sr.Seat,
			PlayerID:   sr.PlayerID,
			Name:       sr.Name,
			Stack:      sr.Stack,
			TimeBank:   cfg.TimeBank,
			SittingOut: true,
		}
	}
	if row.CurrentHandID != "" {
		if err := t.settleInterrupted(ctx, st, row.CurrentHandID); err != nil {
			return nil, fmt.Errorf("restore hand %s: %w", row.CurrentHandID, err)
		}
	}
	if err := st.SaveTable(ctx, t.tableRow()); err != nil {
		return nil, fmt.Errorf("save table %s: %w", cfg.ID, err)
	}
	t.logger.Info("Table restored", "seats", len(row.Seats), "hands", t.handNumber, "needs_review", t.needsReview)
	t.start()
	return t, nil
}

// settleInterrupted reconciles seat stacks with the hand that was current
// when the table row was last written.
func (t *Table) settleInterrupted(ctx context.Context, st store.Store, handID string) error {
	hand, err := st.LoadHand(ctx, handID)
	if errors.Is(err, store.ErrNotFound) {
		// The hand row never landed, so the seat stacks predate it.
		return nil
	}
	if err != nil {
		return err
	}
	players, err := st.LoadHandPlayers(ctx, handID)
	if err != nil {
		return err
	}

	finished := hand.EndedAt != nil && !hand.Aborted
	for _, p := range players {
		s := t.seats[p.Seat]
		if s == nil || s.PlayerID != p.PlayerID {
			continue
		}
		if finished {
			s.Stack = p.StackEnd
		} else {
			s.Stack = p.StackStart
		}
	}
	if finished || hand.Aborted {
		return nil
	}

	now := t.clock.Now()
	hand.Aborted = true
	hand.EndedAt = &now
	t.logger.Warn("Refunded hand interrupted by restart", "hand", handID, "players", len(players))
	return st.SaveHand(ctx, hand)
}
