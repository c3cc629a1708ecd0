package game

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/poker"
)

// scriptedDeck builds a full deck that deals holes (in deal order, starting
// left of the button) followed by board.
func scriptedDeck(t *testing.T, holes []string, board string) *poker.Deck {
	t.Helper()
	var top []poker.Card
	parsed := make([][]poker.Card, len(holes))
	for i, h := range holes {
		parsed[i] = poker.MustParseCards(h)
		require.Len(t, parsed[i], 2)
	}
	for round := range 2 {
		for _, cards := range parsed {
			top = append(top, cards[round])
		}
	}
	top = append(top, poker.MustParseCards(board)...)

	used := map[poker.Card]bool{}
	for _, c := range top {
		used[c] = true
	}
	for _, c := range poker.OrderedCards() {
		if !used[c] {
			top = append(top, c)
		}
	}
	deck, err := poker.DeckFromCards(top)
	require.NoError(t, err)
	return deck
}

func seats(stacks ...int) []Seat {
	out := make([]Seat, len(stacks))
	for i, s := range stacks {
		out[i] = Seat{Seat: i, ID: string(rune('a' + i)), Stack: s}
	}
	return out
}

func mustAct(t *testing.T, h *Hand, seat int, a Action, amount int) Outcome {
	t.Helper()
	out, err := h.ProcessAction(seat, a, amount)
	require.NoError(t, err, "seat %d %s %d", seat, a, amount)
	require.NoError(t, h.CheckInvariants())
	return out
}

func stacks(h *Hand) []int {
	out := make([]int, len(h.Players))
	for i, p := range h.Players {
		out[i] = p.Stack
	}
	return out
}
