package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/handid"
	"github.com/lox/cardroom/poker"
)

// Set CARDROOM_TEST_POSTGRES_URL to run against a real database.
func testPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("CARDROOM_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("CARDROOM_TEST_POSTGRES_URL not set")
	}
	p, err := Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestPostgresRoundTrip(t *testing.T) {
	p := testPostgres(t)
	ctx := context.Background()
	tableID := "test-" + handid.New()
	handID := handid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, err := p.LoadTable(ctx, tableID)
	require.ErrorIs(t, err, ErrNotFound)

	tbl := TableRow{
		ID: tableID, Name: "one", MaxSeats: 6, SmallBlind: 10, BigBlind: 20, Button: 2,
		HandNumber: 7, CurrentHandID: handID,
		Seats: []SeatRow{{Seat: 2, PlayerID: "p", Name: "P", Stack: 100}},
	}
	require.NoError(t, p.SaveTable(ctx, tbl))
	tbl.HandNumber = 8
	require.NoError(t, p.SaveTable(ctx, tbl), "saves upsert")
	row, err := p.LoadTable(ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, 8, row.HandNumber)
	assert.Equal(t, handID, row.CurrentHandID)
	assert.Equal(t, tbl.Seats, row.Seats)

	hand := HandRow{
		ID: handID, TableID: tableID, Number: 8, Phase: game.StreetFlop, Pot: 60,
		Board:     poker.MustParseCards("As Kd 2c"),
		SidePots:  []game.SidePot{{Amount: 60, Cap: 30, Eligible: []int{1, 2}}},
		Deck:      poker.MustParseCards("Qh Jh"),
		StartedAt: now,
	}
	require.NoError(t, p.SaveHand(ctx, hand))
	got, err := p.LoadHand(ctx, handID)
	require.NoError(t, err)
	assert.Equal(t, game.StreetFlop, got.Phase)
	assert.Equal(t, hand.Board, got.Board)
	assert.Equal(t, hand.SidePots, got.SidePots)
	assert.Equal(t, hand.Deck, got.Deck)
	assert.True(t, now.Equal(got.StartedAt))
	assert.Nil(t, got.EndedAt)

	players := []HandPlayerRow{
		{HandID: handID, Seat: 1, PlayerID: "a", HoleCards: poker.MustParseCards("Ah Ad"), Committed: 30, StackStart: 500, StackEnd: 470},
		{HandID: handID, Seat: 2, PlayerID: "b", HoleCards: poker.MustParseCards("7c 2d"), Committed: 30, Folded: true, StackStart: 500, StackEnd: 470},
	}
	require.NoError(t, p.SaveHandPlayers(ctx, handID, players))
	loaded, err := p.LoadHandPlayers(ctx, handID)
	require.NoError(t, err)
	assert.Equal(t, players, loaded)

	rec := ActionRow{HandID: handID, Seq: 1, Seat: 1, PlayerID: "a", Action: game.Call, Amount: 20, Phase: game.StreetPreflop, CreatedAt: now}
	require.NoError(t, p.AppendAction(ctx, rec))
	require.NoError(t, p.AppendAction(ctx, rec), "replayed writes are idempotent")
	actions, err := p.LoadActions(ctx, handID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, game.Call, actions[0].Action)
	assert.Equal(t, game.StreetPreflop, actions[0].Phase)
}
